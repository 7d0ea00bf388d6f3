package static

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"

	"github.com/zjrosen/skywidgets/internal/templates"
)

// ErrInvalidBeamline is returned for names unsafe in hostnames and paths.
var ErrInvalidBeamline = errors.New("beamline must be letters, digits, '-' or '_'")

var beamlineName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// NginxSite describes the generated server block.
type NginxSite struct {
	Beamline   string
	QueueURL   string
	Listen     int
	ServerName string
	Root       string
}

// NewNginxSite fills in the NSLS-II naming for beamline.
func NewNginxSite(beamline, queueURL string) (NginxSite, error) {
	if !beamlineName.MatchString(beamline) {
		return NginxSite{}, fmt.Errorf("%w: %q", ErrInvalidBeamline, beamline)
	}
	u, err := url.Parse(queueURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return NginxSite{}, fmt.Errorf("queue url %q must be an absolute http(s) url", queueURL)
	}
	return NginxSite{
		Beamline:   beamline,
		QueueURL:   queueURL,
		Listen:     80,
		ServerName: "queue-monitor-" + beamline + ".nsls2.bnl.gov",
		Root:       "/var/www/queue-monitor-" + beamline,
	}, nil
}

// Write renders the config.
func (s NginxSite) Write(w io.Writer) error {
	return templates.NginxSite.Execute(w, s)
}
