package httpserver

import (
	"github.com/cyberinferno/go-httpd/body"
	"github.com/cyberinferno/go-httpd/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithName sets the name used in log messages.
func WithName(name string) Option {
	return func(s *Server) {
		s.name = name
	}
}

// WithLogger sets the logger. The default, also used for nil, discards
// everything.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithConfig replaces the default limits.
func WithConfig(cfg Config) Option {
	return func(s *Server) {
		s.cfg = cfg
	}
}

// WithBodies sets the factory used for request bodies and passed to the app.
// A nil factory selects body.Default.
func WithBodies(f body.Factory) Option {
	return func(s *Server) {
		s.bodies = f
	}
}

// WithConnectHook sets the hook run for every new connection.
func WithConnectHook(hook ConnectHook) Option {
	return func(s *Server) {
		s.onConnect = hook
	}
}
