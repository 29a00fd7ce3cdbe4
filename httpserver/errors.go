package httpserver

import "errors"

var (
	// ErrBadAddress is returned by New for a listen address that is neither
	// host:port nor an absolute unix socket path.
	ErrBadAddress = errors.New("httpserver: bad address")

	// ErrInvalidConfig is returned by New for out-of-range settings.
	ErrInvalidConfig = errors.New("httpserver: invalid config")

	// ErrServerRunning is returned when Start or Serve is called twice.
	ErrServerRunning = errors.New("httpserver: server already running")

	// ErrServerClosed is returned when Start or Serve is called after Stop.
	ErrServerClosed = errors.New("httpserver: server closed")

	// ErrApplication wraps errors returned by the application.
	ErrApplication = errors.New("httpserver: application error")
)
