// Package gate implements an on_connect hook that decides which peers may
// talk to the server. Unix socket peers and configured networks are let in
// directly, blocked IPs are refused, and every other IP is judged by a
// Policy whose answers are cached per IP.
package gate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/cyberinferno/go-httpd/httpserver"
	"github.com/cyberinferno/go-httpd/logger"
)

// SessionKey is the httpserver.Session value holding why a peer was allowed.
const SessionKey = "gate.allowed_by"

const (
	ReasonUnix   = "unix"
	ReasonCIDR   = "cidr"
	ReasonPolicy = "policy"
)

var (
	ErrDenied     = errors.New("gate: peer denied")
	ErrBadNetwork = errors.New("gate: bad network")
)

// Config lists the statically allowed networks and the policy settings.
type Config struct {
	// AllowCIDRs holds networks ("10.0.0.0/8") or single IPs always allowed.
	AllowCIDRs []string `env:"GATE_ALLOW_CIDRS" envSeparator:","`

	// AllowUnix lets every unix socket peer in.
	AllowUnix bool `env:"GATE_ALLOW_UNIX" envDefault:"true"`

	// AllowDomains enables a forward-confirmed reverse DNS policy for
	// peers whose host name ends in one of these domains.
	AllowDomains []string `env:"GATE_ALLOW_DOMAINS" envSeparator:","`

	DecisionTTL     time.Duration `env:"GATE_DECISION_TTL" envDefault:"5m"`
	DecisionTimeout time.Duration `env:"GATE_DECISION_TIMEOUT" envDefault:"2s"`

	// RedisAddr shares policy decisions through redis instead of memory.
	RedisAddr   string `env:"GATE_REDIS_ADDR"`
	RedisPrefix string `env:"GATE_REDIS_PREFIX" envDefault:"httpd:gate:"`
}

// Enabled reports whether any allow rule is configured.
func (c Config) Enabled() bool {
	return len(c.AllowCIDRs) > 0 || len(c.AllowDomains) > 0
}

// Policy decides whether ip may connect. It is consulted only for IPs not
// covered by the static rules, and its answers are cached.
type Policy func(ctx context.Context, ip netip.Addr) (bool, error)

// AllowList is the gate. Safe for concurrent use.
type AllowList struct {
	prefixes  []netip.Prefix
	allowUnix bool
	blocked   *blocklist
	policy    Policy
	cache     Cache
	ttl       time.Duration
	timeout   time.Duration
	logger    logger.Logger
}

// Option configures an AllowList.
type Option func(*AllowList)

// WithPolicy sets the policy for IPs outside the allowed networks.
func WithPolicy(p Policy) Option {
	return func(a *AllowList) {
		a.policy = p
	}
}

// WithCache replaces the default in-memory decision cache.
func WithCache(c Cache) Option {
	return func(a *AllowList) {
		a.cache = c
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *AllowList) {
		a.logger = l
	}
}

// New builds an AllowList from cfg. Without a policy option and without
// AllowDomains, IPs outside AllowCIDRs are refused.
//
// Parameters:
//   - cfg: Allowed networks, unix socket rule and decision settings
//   - opts: Optional policy, decision cache and logger
//
// Returns:
//   - The AllowList, or an error wrapping ErrBadNetwork if an entry of
//     cfg.AllowCIDRs is neither a CIDR nor an IP
func New(cfg Config, opts ...Option) (*AllowList, error) {
	a := &AllowList{
		allowUnix: cfg.AllowUnix,
		blocked:   newBlocklist(),
		ttl:       cfg.DecisionTTL,
		timeout:   cfg.DecisionTimeout,
		logger:    logger.Nop(),
	}
	for _, s := range cfg.AllowCIDRs {
		p, err := parsePrefix(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		a.prefixes = append(a.prefixes, p)
	}
	if a.ttl <= 0 {
		a.ttl = 5 * time.Minute
	}
	if a.timeout <= 0 {
		a.timeout = 2 * time.Second
	}

	for _, opt := range opts {
		opt(a)
	}
	if a.policy == nil && len(cfg.AllowDomains) > 0 {
		a.policy = ReverseDNSPolicy(net.DefaultResolver, cfg.AllowDomains)
	}
	if a.cache == nil {
		a.cache = NewMemoryCache(time.Minute)
	}
	return a, nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("%w: %w", ErrBadNetwork, err)
		}
		return p.Masked(), nil
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %w", ErrBadNetwork, err)
	}
	ip = ip.Unmap()
	return netip.PrefixFrom(ip, ip.BitLen()), nil
}

// Block refuses ip from now on, whatever the other rules say. It reports
// whether ip was newly blocked.
func (a *AllowList) Block(ip netip.Addr) bool {
	return a.blocked.add(ip.Unmap())
}

// Unblock lifts a Block. It reports whether ip was blocked.
func (a *AllowList) Unblock(ip netip.Addr) bool {
	return a.blocked.remove(ip.Unmap())
}

// Blocked returns the number of blocked IPs.
func (a *AllowList) Blocked() int {
	return a.blocked.size()
}

// Forget drops the cached policy decision for ip.
func (a *AllowList) Forget(ctx context.Context, ip netip.Addr) error {
	return a.cache.Forget(ctx, ip.Unmap().String())
}

// Purge drops every cached policy decision.
func (a *AllowList) Purge(ctx context.Context) error {
	return a.cache.Purge(ctx)
}

// Check decides whether the peer at addr may connect and returns the
// reason it was allowed. A refusal wraps ErrDenied; any other error comes
// from the policy or the cache.
func (a *AllowList) Check(ctx context.Context, addr net.Addr) (string, error) {
	if ua, ok := addr.(*net.UnixAddr); ok || addr == nil {
		if a.allowUnix {
			return ReasonUnix, nil
		}
		return "", fmt.Errorf("%w: unix socket peer %v", ErrDenied, ua)
	}

	ip, err := peerIP(addr)
	if err != nil {
		return "", err
	}
	if a.blocked.contains(ip) {
		return "", fmt.Errorf("%w: %s is blocked", ErrDenied, ip)
	}
	for _, p := range a.prefixes {
		if p.Contains(ip) {
			return ReasonCIDR, nil
		}
	}
	if a.policy == nil {
		return "", fmt.Errorf("%w: %s is not in an allowed network", ErrDenied, ip)
	}

	allowed, err := a.cache.GetOrDecide(ctx, ip.String(), a.ttl, func(ctx context.Context) (bool, error) {
		return a.policy(ctx, ip)
	})
	if err != nil {
		return "", fmt.Errorf("gate: policy for %s: %w", ip, err)
	}
	if !allowed {
		return "", fmt.Errorf("%w: %s refused by policy", ErrDenied, ip)
	}
	return ReasonPolicy, nil
}

// OnConnect is an httpserver.ConnectHook. It records the allow reason in
// the session under SessionKey.
func (a *AllowList) OnConnect(s *httpserver.Session, conn net.Conn) bool {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	reason, err := a.Check(ctx, conn.RemoteAddr())
	if err != nil {
		fields := []logger.Field{logger.Err(err), {Key: "conn_id", Value: s.ID}}
		if errors.Is(err, ErrDenied) {
			a.logger.Info("peer denied", fields...)
		} else {
			a.logger.Warn("peer check failed", fields...)
		}
		return false
	}
	s.Set(SessionKey, reason)
	return true
}

func peerIP(addr net.Addr) (netip.Addr, error) {
	switch v := addr.(type) {
	case *net.TCPAddr:
		if ip, ok := netip.AddrFromSlice(v.IP); ok {
			return ip.Unmap(), nil
		}
	default:
		if ap, err := netip.ParseAddrPort(addr.String()); err == nil {
			return ap.Addr().Unmap(), nil
		}
	}
	return netip.Addr{}, fmt.Errorf("%w: cannot read peer IP from %s", ErrDenied, addr)
}

// ReverseDNSPolicy allows IPs whose reverse DNS name lies under one of
// domains and resolves back to the same IP.
func ReverseDNSPolicy(resolver *net.Resolver, domains []string) Policy {
	suffixes := make([]string, 0, len(domains))
	for _, d := range domains {
		if d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), "."); d != "" {
			suffixes = append(suffixes, d)
		}
	}

	return func(ctx context.Context, ip netip.Addr) (bool, error) {
		names, err := resolver.LookupAddr(ctx, ip.String())
		if err != nil {
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
				return false, nil
			}
			return false, err
		}
		for _, name := range names {
			name = strings.TrimSuffix(strings.ToLower(name), ".")
			if !matchesDomain(name, suffixes) {
				continue
			}
			addrs, err := resolver.LookupNetIP(ctx, "ip", name)
			if err != nil {
				continue
			}
			for _, a := range addrs {
				if a.Unmap() == ip {
					return true, nil
				}
			}
		}
		return false, nil
	}
}

func matchesDomain(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if name == s || strings.HasSuffix(name, "."+s) {
			return true
		}
	}
	return false
}
