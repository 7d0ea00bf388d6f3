// Package templates embeds the text templates shipped with the binary.
package templates

import (
	"embed"
	"io/fs"
	"text/template"
)

//go:embed nginx
var files embed.FS

// FS returns the embedded template tree.
func FS() fs.FS {
	return files
}

// NginxSite is the nginx server block for one beamline's queue monitor.
var NginxSite = template.Must(template.ParseFS(files, "nginx/site.conf.tmpl"))
