package httpapi

import (
	"net/http"
)

// NewMux serves /healthz and the files under staticDir at /static/.
// Feature modules register their own routes on the returned mux.
func NewMux(health Health, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, health)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	return mux
}
