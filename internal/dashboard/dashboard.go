// Package dashboard is Sentinel's local browser-facing UI: a static file
// server for the scan/policy/quarantine dashboard, plus a push-notification
// event stream at /events (see Broadcaster and Server). The authoritative
// request/response surface remains internal/ipc's Unix socket; this
// package only serves the UI that renders it and pushes it live updates.
package dashboard

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
)

//go:embed all:static
var staticFiles embed.FS

// Handler serves the embedded dashboard UI.
type Handler struct {
	fileServer http.Handler
}

// New creates a dashboard UI handler.
func New() *Handler {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		slog.Error("dashboard: failed to get static subdirectory", "error", err)
	}

	var fileCount int
	fs.WalkDir(staticFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			fileCount++
		}
		return nil
	})
	slog.Info("dashboard static assets embedded", "count", fileCount)

	return &Handler{
		fileServer: http.FileServer(http.FS(staticFS)),
	}
}

// ServeHTTP serves the dashboard's static files, falling back to
// index.html for the root and any unrecognized SPA route.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/" || path == "" || path == "/index.html" {
		h.serveIndex(w, r)
		return
	}
	if _, err := fs.Stat(staticFiles, "static"+path); err != nil {
		h.serveIndex(w, r)
		return
	}
	h.fileServer.ServeHTTP(w, r)
}

func (h *Handler) serveIndex(w http.ResponseWriter, r *http.Request) {
	content, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "dashboard not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(content)
}
