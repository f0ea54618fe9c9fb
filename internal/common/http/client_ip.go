package http

import (
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPResolver derives the client address that rate limits key on.
// The TCP peer is authoritative. Forwarding headers are read only when the
// peer itself is a trusted proxy.
type ClientIPResolver struct {
	trusted []netip.Prefix
}

func NewClientIPResolver(trustedProxies []netip.Prefix) *ClientIPResolver {
	return &ClientIPResolver{trusted: trustedProxies}
}

// ClientIP returns the peer address, or for a trusted peer the right-most
// X-Forwarded-For hop that is not a trusted proxy, falling back to
// X-Real-IP. A nil resolver trusts nobody.
func (c *ClientIPResolver) ClientIP(r *http.Request) string {
	peer, ok := parseHost(r.RemoteAddr)
	if !ok {
		return r.RemoteAddr
	}
	if !c.isTrusted(peer) {
		return peer.String()
	}

	if ip, ok := c.fromForwardedFor(r.Header.Values("X-Forwarded-For")); ok {
		return ip.String()
	}
	if ip, ok := parseHost(r.Header.Get("X-Real-IP")); ok {
		return ip.String()
	}
	return peer.String()
}

func (c *ClientIPResolver) fromForwardedFor(values []string) (netip.Addr, bool) {
	var hops []string
	for _, v := range values {
		hops = append(hops, strings.Split(v, ",")...)
	}

	var nearest netip.Addr
	for i := len(hops) - 1; i >= 0; i-- {
		ip, ok := parseHost(hops[i])
		if !ok {
			return netip.Addr{}, false
		}
		if !c.isTrusted(ip) {
			return ip, true
		}
		nearest = ip
	}
	return nearest, nearest.IsValid()
}

func (c *ClientIPResolver) isTrusted(ip netip.Addr) bool {
	if c == nil {
		return false
	}
	for _, prefix := range c.trusted {
		if prefix.Contains(ip) {
			return true
		}
	}
	return false
}

// parseHost accepts "ip", "ip:port" and "[ipv6]:port".
func parseHost(raw string) (netip.Addr, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return netip.Addr{}, false
	}
	if addrPort, err := netip.ParseAddrPort(raw); err == nil {
		return addrPort.Addr().Unmap(), true
	}
	if ip, err := netip.ParseAddr(raw); err == nil {
		return ip.Unmap(), true
	}
	return netip.Addr{}, false
}

// ParseTrustedProxies parses a comma-separated list of addresses and CIDR
// prefixes.
func ParseTrustedProxies(raw string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			prefix, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		ip, err := netip.ParseAddr(part)
		if err != nil {
			return nil, err
		}
		ip = ip.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(ip, ip.BitLen()))
	}
	return prefixes, nil
}
