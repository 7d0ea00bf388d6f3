package templates

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTemplates_AllParse(t *testing.T) {
	var names []string
	err := fs.WalkDir(FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && strings.HasSuffix(path, ".tmpl") {
			names = append(names, path)
		}
		return nil
	})
	require.NoError(t, err)
	require.Contains(t, names, "nginx/site.conf.tmpl")
	require.NotNil(t, NginxSite.Lookup("site.conf.tmpl"))
}
