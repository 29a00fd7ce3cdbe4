package httpserver

import (
	"fmt"
	"slices"
	"time"
)

const (
	DefaultMaxConnections = 25
	DefaultMaxRequests    = 500
	DefaultTimeout        = 30 * time.Second
	DefaultAcquireTimeout = 2 * time.Second
)

// DefaultKeepAliveStatuses are the error statuses after which the
// connection stays open.
var DefaultKeepAliveStatuses = []int{404, 409, 412}

// Config bounds the resources a Server may use.
type Config struct {
	// MaxConnections is the number of connections served concurrently.
	MaxConnections int `env:"HTTPD_MAX_CONNECTIONS" envDefault:"25"`

	// MaxRequests is the number of requests served on one connection
	// before it is closed.
	MaxRequests int `env:"HTTPD_MAX_REQUESTS" envDefault:"500"`

	// Timeout bounds every single read or write on a connection.
	Timeout time.Duration `env:"HTTPD_TIMEOUT" envDefault:"30s"`

	// AcquireTimeout bounds how long an accepted connection waits for a
	// free slot before it is dropped.
	AcquireTimeout time.Duration `env:"HTTPD_ACQUIRE_TIMEOUT" envDefault:"2s"`

	// KeepAliveStatuses lists statuses >= 400 that do not close the connection.
	KeepAliveStatuses []int `env:"HTTPD_KEEPALIVE_STATUSES" envDefault:"404,409,412" envSeparator:","`
}

// DefaultConfig returns the built-in limits.
func DefaultConfig() Config {
	return Config{
		MaxConnections:    DefaultMaxConnections,
		MaxRequests:       DefaultMaxRequests,
		Timeout:           DefaultTimeout,
		AcquireTimeout:    DefaultAcquireTimeout,
		KeepAliveStatuses: slices.Clone(DefaultKeepAliveStatuses),
	}
}

// Validate reports the first out-of-range setting.
func (c Config) Validate() error {
	switch {
	case c.MaxConnections <= 0:
		return fmt.Errorf("%w: need max_connections > 0; got %d", ErrInvalidConfig, c.MaxConnections)
	case c.MaxRequests <= 0:
		return fmt.Errorf("%w: need max_requests > 0; got %d", ErrInvalidConfig, c.MaxRequests)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: need timeout > 0; got %s", ErrInvalidConfig, c.Timeout)
	case c.AcquireTimeout <= 0:
		return fmt.Errorf("%w: need acquire_timeout > 0; got %s", ErrInvalidConfig, c.AcquireTimeout)
	}
	for _, status := range c.KeepAliveStatuses {
		if status < 400 || status > 599 {
			return fmt.Errorf("%w: keep-alive status must be an error status; got %d", ErrInvalidConfig, status)
		}
	}
	return nil
}
