package gate

import (
	"net/netip"
	"sync"
)

// blocklist is the runtime set of rejected IPs. Safe for concurrent use.
type blocklist struct {
	mu  sync.RWMutex
	ips map[netip.Addr]struct{}
}

func newBlocklist() *blocklist {
	return &blocklist{ips: make(map[netip.Addr]struct{})}
}

// add returns false when ip was already blocked.
func (b *blocklist) add(ip netip.Addr) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.ips[ip]; ok {
		return false
	}
	b.ips[ip] = struct{}{}
	return true
}

// remove returns false when ip was not blocked.
func (b *blocklist) remove(ip netip.Addr) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.ips[ip]; !ok {
		return false
	}
	delete(b.ips, ip)
	return true
}

func (b *blocklist) contains(ip netip.Addr) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.ips[ip]
	return ok
}

func (b *blocklist) size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ips)
}
