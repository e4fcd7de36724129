package router

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// spaHandler serves the built site from dir. Unknown paths fall back to
// index.html so client-side routes resolve; unknown /api paths stay 404.
func spaHandler(dir string) http.HandlerFunc {
	root := os.DirFS(dir)
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" || !fileExists(root, name) {
			name = "index.html"
		}
		if !fileExists(root, name) {
			http.NotFound(w, r)
			return
		}
		http.ServeFileFS(w, r, root, name)
	}
}

func fileExists(root fs.FS, name string) bool {
	info, err := fs.Stat(root, name)
	return err == nil && !info.IsDir()
}
