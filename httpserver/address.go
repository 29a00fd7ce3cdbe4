package httpserver

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
)

// Address is a parsed listen address.
type Address struct {
	Network string
	Addr    string
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return a.Network + ":" + a.Addr
}

// ParseAddress parses a listen address: "host:port" for TCP, an absolute
// normalized path for a unix socket, or "@name" for a Linux abstract socket.
func ParseAddress(s string) (Address, error) {
	switch {
	case s == "":
		return Address{}, fmt.Errorf("%w: empty address", ErrBadAddress)
	case strings.HasPrefix(s, "@"):
		if len(s) == 1 {
			return Address{}, fmt.Errorf("%w: empty abstract socket name", ErrBadAddress)
		}
		return Address{Network: "unix", Addr: s}, nil
	case strings.ContainsRune(s, '/'):
		if !filepath.IsAbs(s) || filepath.Clean(s) != s {
			return Address{}, fmt.Errorf("%w: bad socket filename: %q", ErrBadAddress, s)
		}
		return Address{Network: "unix", Addr: s}, nil
	}

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrBadAddress, err)
	}
	if port == "" {
		return Address{}, fmt.Errorf("%w: missing port in %q", ErrBadAddress, s)
	}
	network := "tcp"
	if host != "" {
		ip := net.ParseIP(host)
		switch {
		case ip == nil:
		case ip.To4() != nil:
			network = "tcp4"
		default:
			network = "tcp6"
		}
	}
	return Address{Network: network, Addr: s}, nil
}
