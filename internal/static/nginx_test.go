package static

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNginxSite_Render(t *testing.T) {
	site, err := NewNginxSite("bl1", "https://queue-bl1.bnl.gov:443")
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, site.Write(&b))
	out := b.String()

	require.Contains(t, out, "server_name queue-monitor-bl1.nsls2.bnl.gov;")
	require.Contains(t, out, "root /var/www/queue-monitor-bl1;")
	require.Contains(t, out, "proxy_pass https://queue-bl1.bnl.gov:443;")
	require.Contains(t, out, "listen 80;")
	require.Contains(t, out, "access_log /var/log/nginx/queue-monitor-bl1.access.log;")
	require.Contains(t, out, "try_files $uri $uri/ /index.html;")
}

func TestNewNginxSite_Validation(t *testing.T) {
	_, err := NewNginxSite("bl 1", "http://x")
	require.ErrorIs(t, err, ErrInvalidBeamline)
	_, err = NewNginxSite("../etc", "http://x")
	require.ErrorIs(t, err, ErrInvalidBeamline)
	_, err = NewNginxSite("bl1", "queue:443")
	require.Error(t, err)
}
