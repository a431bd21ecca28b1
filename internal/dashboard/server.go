package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Server is the dashboard's HTTP surface: the static UI at "/" and a
// websocket event stream at "/events". Grounded on internal/control/
// api.go's mux-building pattern (dashboard catch-all plus named routes)
// and cmd/elida/main.go's ListenAndServe/Shutdown lifecycle, reduced to
// the one surface SPEC_FULL.md actually wants from it.
type Server struct {
	httpServer  *http.Server
	Broadcaster *Broadcaster

	streamCtx    context.Context
	streamCancel context.CancelFunc
}

// NewServer builds a Server listening on addr. Call Start to run it and
// Shutdown to stop it gracefully.
func NewServer(addr string) *Server {
	broadcaster := NewBroadcaster()
	mux := http.NewServeMux()

	streamCtx, streamCancel := context.WithCancel(context.Background())

	s := &Server{
		Broadcaster:  broadcaster,
		streamCtx:    streamCtx,
		streamCancel: streamCancel,
	}

	mux.Handle("/{path...}", New())
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		broadcaster.serveEvents(s.streamCtx, w, r)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // disabled: /events is a long-lived stream
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start runs the HTTP server until Shutdown is called or it fails to bind.
// Intended to be run on its own goroutine, mirroring cmd/elida/main.go's
// controlServer.ListenAndServe goroutine.
func (s *Server) Start() error {
	slog.Info("dashboard server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. streamCancel is fired first so
// every open /events connection unblocks and returns — otherwise
// http.Server.Shutdown would wait indefinitely for those long-lived
// handlers, which never return on their own.
func (s *Server) Shutdown(ctx context.Context) error {
	s.streamCancel()
	return s.httpServer.Shutdown(ctx)
}

// Publish is a convenience passthrough so callers holding only a *Server
// don't also need to reach into its Broadcaster field.
func (s *Server) Publish(eventType string, payload any) {
	s.Broadcaster.Publish(eventType, payload)
}
