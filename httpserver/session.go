package httpserver

import (
	"crypto/tls"
	"net"
)

// TLSInfo describes the negotiated TLS parameters of a connection.
type TLSInfo struct {
	Version     string
	CipherSuite string

	// Compression is always false; TLS compression is never negotiated.
	Compression bool
}

// Session is the per-connection state shared by the on_connect hook and
// every request on that connection. It is owned by a single goroutine and
// needs no locking.
type Session struct {
	ID       uint32
	Client   net.Addr
	Requests int
	TLS      *TLSInfo

	// Values holds data attached by the on_connect hook or the application.
	Values map[string]any
}

func newSession(id uint32, client net.Addr) *Session {
	return &Session{
		ID:     id,
		Client: client,
		Values: make(map[string]any),
	}
}

// Set stores v under key.
func (s *Session) Set(key string, v any) {
	s.Values[key] = v
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (any, bool) {
	v, ok := s.Values[key]
	return v, ok
}

func tlsInfo(state tls.ConnectionState) *TLSInfo {
	return &TLSInfo{
		Version:     tls.VersionName(state.Version),
		CipherSuite: tls.CipherSuiteName(state.CipherSuite),
	}
}
