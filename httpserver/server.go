// Package httpserver is an embeddable HTTP/1.1 server core. A Server
// accepts connections on a TCP or unix socket, bounds how many are served
// at once, and runs each connection in its own goroutine. Each goroutine
// reads requests, hands them to an App, validates and writes the responses,
// and decides whether the connection stays open.
package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/cyberinferno/go-httpd/body"
	"github.com/cyberinferno/go-httpd/logger"
	"github.com/cyberinferno/go-httpd/tlsconf"
)

const maxAcceptDelay = time.Second

// Server accepts connections and serves them with an App. A Server is
// not reusable after Stop.
type Server struct {
	name      string
	logger    logger.Logger
	cfg       Config
	app       App
	onConnect ConnectHook
	bodies    body.Factory
	tlsConfig *tls.Config

	addr     Address
	listener net.Listener
	slots    *semaphore.Weighted
	conns    connRegistry
	workers  sync.WaitGroup

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
	stopped atomic.Bool
}

// New binds addr and returns a Server ready to Start or Serve.
//
// Parameters:
//   - addr: "host:port", an absolute unix socket path, or "@name"
//   - app: The application handling every request
//   - opts: Optional settings
//
// Returns:
//   - The listening Server, or an error wrapping ErrBadAddress or
//     ErrInvalidConfig, or the listen error
func New(addr string, app App, opts ...Option) (*Server, error) {
	return newServer(addr, app, nil, opts)
}

// NewTLS is New for a TLS server. The handshake runs in each connection's
// worker before the on_connect hook.
//
// Parameters:
//   - tlsConfig: Server configuration; it must pass tlsconf.Validate
//   - addr: "host:port", an absolute unix socket path, or "@name"
//   - app: The application handling every request
//   - opts: Optional settings
//
// Returns:
//   - The listening Server, or an error wrapping tlsconf.ErrInvalidConfig
//     before anything is bound, or any error New returns
func NewTLS(tlsConfig *tls.Config, addr string, app App, opts ...Option) (*Server, error) {
	if err := tlsconf.Validate(tlsConfig); err != nil {
		return nil, err
	}
	return newServer(addr, app, tlsConfig, opts)
}

func newServer(addr string, app App, tlsConfig *tls.Config, opts []Option) (*Server, error) {
	if app == nil {
		return nil, fmt.Errorf("%w: app is required", ErrInvalidConfig)
	}
	address, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		name:      "httpd",
		logger:    logger.Nop(),
		cfg:       DefaultConfig(),
		app:       app,
		bodies:    body.Default,
		tlsConfig: tlsConfig,
		addr:      address,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	if s.bodies == nil {
		s.bodies = body.Default
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	if s.onConnect == nil {
		if c, ok := app.(Connector); ok {
			s.onConnect = c.OnConnect
		}
	}

	ln, err := net.Listen(address.Network, address.Addr)
	if err != nil {
		return nil, fmt.Errorf("server %s failed to listen on %s: %w", s.name, address, err)
	}
	s.listener = ln
	s.slots = semaphore.NewWeighted(int64(s.cfg.MaxConnections))
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// ActiveConnections returns the number of connections being served.
func (s *Server) ActiveConnections() int {
	return s.conns.len()
}

// Start runs the accept loop in a new goroutine.
func (s *Server) Start() error {
	if s.stopped.Load() {
		return ErrServerClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerRunning
	}

	s.logger.Info(fmt.Sprintf("%s server started", s.name),
		logger.Field{Key: "addr", Value: s.addr.String()},
		logger.Field{Key: "tls", Value: s.tlsConfig != nil},
		logger.Field{Key: "max_connections", Value: s.cfg.MaxConnections},
	)
	go s.acceptLoop()
	return nil
}

// Serve runs the accept loop until ctx is cancelled or Stop is called,
// then waits for every connection to finish. It returns nil on a clean stop.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		s.Stop()
	case <-s.done:
	}
	return nil
}

// Stop closes the listener and every active connection, then waits for
// the accept loop and all connection goroutines to exit. It must not be
// called from an App or ConnectHook.
func (s *Server) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}

	if s.cancel != nil {
		s.cancel()
	}
	_ = s.listener.Close()
	closed := s.conns.closeAll()

	if s.running.Load() {
		<-s.done
	}
	s.logger.Info(fmt.Sprintf("%s server stopped", s.name), logger.Field{Key: "closed_connections", Value: closed})
}

func (s *Server) acceptLoop() {
	defer close(s.done)

	var delay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.stopped.Load() || errors.Is(err, net.ErrClosed) {
				break
			}
			delay = min(max(2*delay, 5*time.Millisecond), maxAcceptDelay)
			s.logger.Error(fmt.Sprintf("%s server accept error", s.name),
				logger.Err(err), logger.Field{Key: "retry_in", Value: delay.String()})
			time.Sleep(delay)
			continue
		}
		delay = 0
		s.admit(conn)
	}

	s.workers.Wait()
}

// admit waits up to AcquireTimeout for a free slot and hands conn to a new
// worker goroutine, or drops it.
func (s *Server) admit(conn net.Conn) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.AcquireTimeout)
	err := s.slots.Acquire(ctx, 1)
	cancel()
	if err != nil {
		shutdown(conn)
		if s.ctx.Err() != nil {
			s.logger.Debug(fmt.Sprintf("%s server stopping, connection dropped", s.name),
				logger.Field{Key: "client", Value: remote(conn)})
			return
		}
		s.logger.Warn("connection rejected: too many connections",
			logger.Field{Key: "client", Value: remote(conn)},
			logger.Field{Key: "max_connections", Value: s.cfg.MaxConnections},
		)
		return
	}

	s.workers.Add(1)
	go s.serveConn(conn)
}

func remote(conn net.Conn) string {
	if a := conn.RemoteAddr(); a != nil && a.String() != "" {
		return a.String()
	}
	return "unix"
}
