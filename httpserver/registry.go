package httpserver

import (
	"net"
	"sync"
	"sync/atomic"
)

// connRegistry assigns session IDs and tracks live connections so Stop can
// close them. Safe for concurrent use.
type connRegistry struct {
	lastID atomic.Uint32
	conns  sync.Map
}

// add registers conn and returns its new ID. IDs start at 1 and wrap.
func (r *connRegistry) add(conn net.Conn) uint32 {
	id := r.lastID.Add(1)
	r.conns.Store(id, conn)
	return id
}

func (r *connRegistry) remove(id uint32) {
	r.conns.Delete(id)
}

// closeAll closes every registered connection and returns how many there were.
func (r *connRegistry) closeAll() int {
	n := 0
	r.conns.Range(func(_, v any) bool {
		_ = v.(net.Conn).Close()
		n++
		return true
	})
	return n
}

func (r *connRegistry) len() int {
	n := 0
	r.conns.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
