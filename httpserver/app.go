package httpserver

import (
	"net"

	"github.com/cyberinferno/go-httpd/body"
	"github.com/cyberinferno/go-httpd/codec"
)

// App handles requests. It must fully consume req.Body, when present,
// before returning. bodies builds streaming response bodies.
type App interface {
	ServeHTTP1(s *Session, req *codec.Request, bodies body.Factory) (*codec.Response, error)
}

// AppFunc adapts a function to App.
type AppFunc func(s *Session, req *codec.Request, bodies body.Factory) (*codec.Response, error)

// ServeHTTP1 implements App.
func (f AppFunc) ServeHTTP1(s *Session, req *codec.Request, bodies body.Factory) (*codec.Response, error) {
	return f(s, req, bodies)
}

// ConnectHook runs once per connection, after the TLS handshake and before
// the first request. Returning false closes the connection.
type ConnectHook func(s *Session, conn net.Conn) bool

// Connector is implemented by applications that want to vet connections
// themselves. It is used when no ConnectHook option is given.
type Connector interface {
	OnConnect(s *Session, conn net.Conn) bool
}
