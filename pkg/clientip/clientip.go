package clientip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// DefaultHeaders is the order in which proxy headers are trusted by GetIP.
var DefaultHeaders = []string{
	"CF-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// Resolver extracts the origin address of a request from a fixed list of
// trusted proxy headers, falling back to RemoteAddr.
type Resolver struct {
	headers []string
}

// New returns a Resolver trusting headers in the given order.
// With no headers only RemoteAddr is used.
func New(headers ...string) *Resolver {
	return &Resolver{headers: headers}
}

var defaultResolver = New(DefaultHeaders...)

// GetIP returns the client's address using DefaultHeaders.
func GetIP(r *http.Request) string {
	return defaultResolver.GetIP(r)
}

// GetIP returns the normalized client address or "" when none is valid.
func (c *Resolver) GetIP(r *http.Request) string {
	for _, h := range c.headers {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		// forwarded chains list the origin first
		for part := range strings.SplitSeq(v, ",") {
			if ip := parseIP(part); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

func parseIP(s string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil || addr.Zone() != "" {
		return ""
	}
	return addr.Unmap().String()
}
