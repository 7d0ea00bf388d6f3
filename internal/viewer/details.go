package viewer

import (
	"fmt"
	"strings"
	"time"

	"github.com/zjrosen/skywidgets/internal/run"
)

// runDetails describes r as markdown.
func runDetails(r run.Run) string {
	md := r.Metadata()
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Scan %d\n\n", md.Start.ScanID)
	fmt.Fprintf(&sb, "- **uid**: `%s`\n", r.UID())
	if md.Start.PlanName != "" {
		fmt.Fprintf(&sb, "- **plan**: %s\n", md.Start.PlanName)
	}
	if md.Start.Time > 0 {
		fmt.Fprintf(&sb, "- **started**: %s\n", epochTime(md.Start.Time).Format(time.DateTime))
	}
	if len(md.Start.Motors) > 0 {
		fmt.Fprintf(&sb, "- **motors**: %s\n", strings.Join(md.Start.Motors, ", "))
	}
	if streams := r.StreamNames(); len(streams) > 0 {
		fmt.Fprintf(&sb, "- **streams**: %s\n", strings.Join(streams, ", "))
	}

	switch {
	case md.Stop != nil:
		fmt.Fprintf(&sb, "- **status**: %s", md.Stop.ExitStatus)
		if md.Stop.Reason != "" {
			fmt.Fprintf(&sb, " (%s)", md.Stop.Reason)
		}
		sb.WriteByte('\n')
		if md.Start.Time > 0 && md.Stop.Time >= md.Start.Time {
			d := epochTime(md.Stop.Time).Sub(epochTime(md.Start.Time)).Round(time.Millisecond)
			fmt.Fprintf(&sb, "- **duration**: %s\n", d)
		}
		for stream, n := range md.Stop.NumEvents {
			fmt.Fprintf(&sb, "- **events in %s**: %d\n", stream, n)
		}
	case run.IsLiveAndNotCompleted(r):
		sb.WriteString("- **status**: running\n")
	default:
		sb.WriteString("- **status**: unknown\n")
	}
	return sb.String()
}

func epochTime(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second)))
}
