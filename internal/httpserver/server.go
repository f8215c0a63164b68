package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// ShutdownTimeout bounds graceful shutdown. Hijacked websocket connections
// are not tracked by http.Server and end with the process.
var ShutdownTimeout = 10 * time.Second

// Server wraps the http.Server with defaults suited to long-lived change
// feed connections.
type Server struct {
	inner *http.Server
}

// New constructs a server listening on the provided port. WriteTimeout stays
// unset so websocket streams are not cut off; handlers bound their own writes.
func New(port int, handler http.Handler, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	if logger != nil {
		srv.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelWarn)
	}
	return &Server{inner: srv}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.inner.Addr
}

// Start begins serving HTTP traffic. A graceful shutdown is not an error.
func (s *Server) Start() error {
	return normalize(s.inner.ListenAndServe())
}

// Serve accepts connections on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	return normalize(s.inner.Serve(ln))
}

// Shutdown gracefully terminates the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}

func normalize(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
