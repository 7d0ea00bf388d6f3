// Package static serves and deploys the queue monitor web assets.
package static

import (
	"net/http"
	"strings"

	"github.com/zjrosen/skywidgets/internal/log"
)

// Handler serves dir with CORS headers and caching disabled, so browsers
// always fetch fresh copies during development.
func Handler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		// Never answer 304.
		r.Header.Del("If-Modified-Since")
		r.Header.Del("If-None-Match")

		log.Debug(log.CatServer, "Static request", "method", r.Method, "path", r.URL.Path)
		files.ServeHTTP(&noValidators{ResponseWriter: w}, r)
	})
}

// noValidators drops ETag and Last-Modified before headers go out.
type noValidators struct {
	http.ResponseWriter
	wrote bool
}

func (w *noValidators) strip() {
	if w.wrote {
		return
	}
	w.wrote = true
	for k := range w.Header() {
		switch strings.ToLower(k) {
		case "etag", "last-modified":
			w.Header().Del(k)
		}
	}
}

func (w *noValidators) WriteHeader(code int) {
	w.strip()
	w.ResponseWriter.WriteHeader(code)
}

func (w *noValidators) Write(b []byte) (int, error) {
	w.strip()
	return w.ResponseWriter.Write(b)
}

func (w *noValidators) Unwrap() http.ResponseWriter { return w.ResponseWriter }
