package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#fdf1d6"/><circle cx="100" cy="80" r="35" fill="#f0b429"/><path d="M45 170c0-30 25-50 55-50s55 20 55 50" fill="#f0b429"/><text x="100" y="192" text-anchor="middle" font-family="Arial" font-size="14" fill="#8a6d1a">POTS</text></svg>`

// StaticFileServer serves avatar images, falling back to a placeholder when
// the requested file does not exist.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
