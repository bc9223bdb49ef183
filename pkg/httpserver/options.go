package httpserver

import (
	"context"
	"log/slog"
)

// Option configures the server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithShutdownHook registers fn to run after the HTTP server has stopped
// accepting requests. Hooks run in registration order and share the
// shutdown deadline.
func WithShutdownHook(name string, fn func(context.Context) error) Option {
	return func(s *Server) {
		if fn != nil {
			s.hooks = append(s.hooks, hook{name: name, fn: fn})
		}
	}
}

// WithStartHook registers fn to run once the listener is open.
func WithStartHook(fn func(addr string)) Option {
	return func(s *Server) {
		if fn != nil {
			s.onStart = append(s.onStart, fn)
		}
	}
}
