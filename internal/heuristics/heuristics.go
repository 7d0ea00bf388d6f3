// Package heuristics suggests what to plot for a stream from the hints in its
// start and descriptor documents.
package heuristics

import (
	"maps"
	"slices"

	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/run"
)

// LineKey identifies one (x, y) pair plotted from one stream.
type LineKey struct {
	X      string
	Y      string
	Stream string
}

// ImageKey identifies one image field of one stream.
type ImageKey struct {
	Field  string
	Stream string
}

// HintedFields returns the interesting fields of a descriptor: for each
// device (in name order), its hinted fields if it gave any, else all of its
// fields.
func HintedFields(d docs.Descriptor) []string {
	var columns []string
	for _, obj := range slices.Sorted(maps.Keys(d.ObjectKeys)) {
		columns = append(columns, objectFields(d, obj)...)
	}
	return columns
}

func objectFields(d docs.Descriptor, obj string) []string {
	if h, ok := d.Hints[obj]; ok && h.Fields != nil {
		return h.Fields
	}
	return d.ObjectKeys[obj]
}

// InferLinesToPlot suggests (x, y) pairs for a stream. It returns nothing
// when the stream has no descriptor or when the plan has two dimensions.
func InferLinesToPlot(r run.Run, stream run.Stream) []LineKey {
	descriptors := stream.Descriptors()
	if len(descriptors) == 0 {
		return nil
	}
	start := r.Metadata().Start

	guess := []docs.Dimension{{Fields: []string{"time"}, Stream: "primary"}}
	if start.Motors != nil {
		guess = make([]docs.Dimension, len(start.Motors))
		for i, m := range start.Motors {
			guess[i] = docs.Dimension{Fields: []string{m}, Stream: "primary"}
		}
	}

	cleanupMotors := false
	dimensions := start.Hints.Dimensions
	if dimensions == nil {
		cleanupMotors = true
		dimensions = guess
	}

	streams := make(map[string]struct{})
	for _, d := range dimensions {
		streams[d.Stream] = struct{}{}
	}
	if len(streams) != 1 {
		cleanupMotors = true
		dimensions = guess
		log.Warn(log.CatModel, "ignoring hinted dimensions because they span streams", "run", r.UID())
	}

	var dimFields, allDimFields []string
	for _, d := range dimensions {
		if len(d.Fields) > 0 {
			dimFields = append(dimFields, d.Fields[0])
		}
		allDimFields = append(allDimFields, d.Fields...)
	}
	if len(dimensions) == 0 {
		return nil
	}
	dimStream := dimensions[0].Stream

	// Only the first descriptor matters; configuration is not consulted.
	descriptor := descriptors[0]
	streamName := descriptor.Name
	if streamName == "" {
		streamName = "primary"
	}

	columns := HintedFields(descriptor)

	if streamName == "primary" && cleanupMotors {
		// Guessed dimensions hold object names; expand them to fields.
		fixed := make([]string, 0, len(dimFields))
		for _, obj := range dimFields {
			if obj == "time" {
				fixed = append(fixed, "time")
				continue
			}
			fixed = append(fixed, objectFields(descriptor, obj)...)
		}
		dimFields = fixed
	}

	columns = slices.DeleteFunc(columns, func(c string) bool {
		return slices.Contains(allDimFields, c)
	})

	if streamName != dimStream {
		dimFields = []string{"time"}
	}

	switch len(dimFields) {
	case 1:
		x := dimFields[0]
		var keys []LineKey
		for _, y := range columns {
			dk, ok := descriptor.DataKeys[y]
			if !ok {
				log.Warn(log.CatModel, "omitting hinted field missing from data keys", "field", y, "stream", streamName)
				continue
			}
			if dk.Dtype != "number" && dk.Dtype != "integer" {
				log.Warn(log.CatModel, "omitting field from plot", "field", y, "dtype", dk.Dtype)
				continue
			}
			keys = append(keys, LineKey{X: x, Y: y, Stream: streamName})
		}
		return keys
	case 2:
		// Grids and scatter plots of two dimensions are not drawn as lines.
		return []LineKey{}
	default:
		return nil
	}
}

// InferImages suggests the fields of a stream that can be shown as images:
// those whose stacked data (events along the leading axis) has 2 to 4 dims.
func InferImages(r run.Run, stream run.Stream) []ImageKey {
	descriptors := stream.Descriptors()
	if len(descriptors) == 0 {
		return nil
	}
	d := descriptors[0]
	var keys []ImageKey
	for _, field := range slices.Sorted(maps.Keys(d.DataKeys)) {
		dk := d.DataKeys[field]
		if dk.External != "" {
			continue
		}
		ndim := len(dk.Shape) + 1
		if ndim >= 2 && ndim < 5 {
			keys = append(keys, ImageKey{Field: field, Stream: stream.Name()})
		}
	}
	return keys
}
