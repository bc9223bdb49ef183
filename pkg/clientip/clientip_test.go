package clientip_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/tenantmux/pkg/clientip"
)

func newRequest(headers map[string]string, remoteAddr string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = remoteAddr
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestGetIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"remote addr with port", nil, "10.0.0.1:5432", "10.0.0.1"},
		{"remote addr without port", nil, "10.0.0.1", "10.0.0.1"},
		{"cloudflare wins", map[string]string{"CF-Connecting-IP": "203.0.113.7", "X-Forwarded-For": "198.51.100.1"}, "10.0.0.1:1", "203.0.113.7"},
		{"first valid forwarded entry", map[string]string{"X-Forwarded-For": "garbage, 198.51.100.1, 10.0.0.2"}, "10.0.0.1:1", "198.51.100.1"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.9 "}, "10.0.0.1:1", "198.51.100.9"},
		{"invalid headers fall back", map[string]string{"X-Real-IP": "not-an-ip", "CF-Connecting-IP": "999.1.1.1"}, "10.0.0.1:1", "10.0.0.1"},
		{"ipv6 remote", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"mapped ipv4 is unmapped", map[string]string{"X-Real-IP": "::ffff:192.0.2.1"}, "", "192.0.2.1"},
		{"zoned address rejected", map[string]string{"X-Real-IP": "fe80::1%eth0"}, "10.0.0.1:1", "10.0.0.1"},
		{"nothing valid", nil, "bogus", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, clientip.GetIP(newRequest(tt.headers, tt.remoteAddr)))
		})
	}
}

func TestResolver_CustomHeaders(t *testing.T) {
	t.Parallel()

	r := newRequest(map[string]string{
		"X-Forwarded-For": "198.51.100.1",
		"Fly-Client-IP":   "203.0.113.5",
	}, "10.0.0.1:1")

	assert.Equal(t, "203.0.113.5", clientip.New("Fly-Client-IP").GetIP(r))
	assert.Equal(t, "10.0.0.1", clientip.New().GetIP(r), "untrusted headers are ignored")
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var got string
	h := clientip.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = clientip.GetIPFromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), newRequest(map[string]string{"X-Forwarded-For": "198.51.100.1"}, "10.0.0.1:1"))
	assert.Equal(t, "198.51.100.1", got)
	assert.Empty(t, clientip.GetIPFromContext(t.Context()))
}
