package resolver

import (
	"errors"
	"net"
	"net/url"
)

// ErrBlockedBySSRFGuard is returned for any candidate that fails the guard.
var ErrBlockedBySSRFGuard = errors.New("resolver: blocked by SSRF guard")

// checkSSRF rejects schemes outside {http, https}, loopback/link-local/
// RFC-1918 IP literals, and bracketed IPv6 loopback, before any network
// I/O is attempted. Any URL parse error is also blocked.
func checkSSRF(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrBlockedBySSRFGuard
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrBlockedBySSRFGuard
	}

	host := u.Hostname()
	if host == "" {
		return ErrBlockedBySSRFGuard
	}

	ip := net.ParseIP(host)
	if ip == nil {
		// Not a literal; DNS resolution happens at dial time and is outside
		// this guard's scope by design (it only blocks obvious literals).
		return nil
	}

	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || isPrivate(ip) {
		return ErrBlockedBySSRFGuard
	}
	return nil
}

func isPrivate(ip net.IP) bool {
	for _, cidr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7"} {
		_, block, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if block.Contains(ip) {
			return true
		}
	}
	return false
}
