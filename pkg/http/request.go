package http

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig lists the reverse proxies allowed to report the client address.
// The zero value trusts no proxy, so only the peer address is used.
type IPConfig struct {
	trusted []netip.Prefix
}

// NewIPConfig parses TRUSTED_PROXIES entries. Bare addresses are accepted as
// single-host prefixes.
func NewIPConfig(entries []string) (*IPConfig, error) {
	cfg := &IPConfig{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			addr, err := netip.ParseAddr(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			addr = addr.Unmap()
			cfg.trusted = append(cfg.trusted, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		cfg.trusted = append(cfg.trusted, prefix.Masked())
	}
	return cfg, nil
}

func (c *IPConfig) trusts(addr netip.Addr) bool {
	if c == nil || !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ExtractClientIP returns the address audit events and rate limits key on.
// Forwarding headers are only read when the peer is a trusted proxy.
// X-Forwarded-For is walked from the right and the first hop that is not
// itself a trusted proxy wins, so a client cannot spoof the leftmost entry.
func ExtractClientIP(r *http.Request, cfg *IPConfig) string {
	peer, peerText := remoteAddr(r)
	if !cfg.trusts(peer) {
		return peerText
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			if !cfg.trusts(hop) {
				return hop.Unmap().String()
			}
		}
	}

	if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xri.Unmap().String()
	}
	return peerText
}

func remoteAddr(r *http.Request) (netip.Addr, string) {
	if r.RemoteAddr == "" {
		return netip.Addr{}, "unknown"
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, host
	}
	return addr.Unmap(), addr.Unmap().String()
}
