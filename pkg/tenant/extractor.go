package tenant

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Signal names a request signal that can identify a tenant.
type Signal string

const (
	// SignalHeader is an explicit tenant header, honoured for authorized
	// administrative or cross-tenant callers only.
	SignalHeader Signal = "header"
	// SignalClaim is a tenant claim in a verified identity token.
	SignalClaim Signal = "claim"
	// SignalSubdomain is a slug taken from the request host.
	SignalSubdomain Signal = "subdomain"
)

// Extractor pulls a raw tenant identifier from a request.
// It returns an empty string when its signal is absent.
type Extractor interface {
	Extract(r *http.Request) (string, error)
}

// ExtractorFunc is an adapter to allow the use of ordinary functions as Extractors.
type ExtractorFunc func(r *http.Request) (string, error)

// Extract calls the function.
func (f ExtractorFunc) Extract(r *http.Request) (string, error) {
	return f(r)
}

// SubdomainExtractor takes the tenant slug from the request host.
type SubdomainExtractor struct {
	// Suffix is the base domain including the leading dot (".example.com").
	// When set, only hosts under it yield a slug. When empty the first label
	// of a host with at least three labels is used.
	Suffix string
}

// NewSubdomainExtractor creates a subdomain extractor for the given base domain.
func NewSubdomainExtractor(suffix string) *SubdomainExtractor {
	suffix = strings.ToLower(strings.TrimSpace(suffix))
	if suffix != "" && !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}
	return &SubdomainExtractor{Suffix: suffix}
}

// Extract returns "acme" for "acme.example.com".
func (e *SubdomainExtractor) Extract(r *http.Request) (string, error) {
	host := strings.ToLower(r.Host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" || net.ParseIP(host) != nil {
		return "", nil
	}

	var labels []string
	if e.Suffix != "" {
		if !strings.HasSuffix(host, e.Suffix) || len(host) == len(e.Suffix) {
			return "", nil
		}
		labels = strings.Split(strings.TrimSuffix(host, e.Suffix), ".")
	} else {
		labels = strings.Split(host, ".")
		if len(labels) < 3 {
			return "", nil
		}
		labels = labels[:len(labels)-2]
	}

	if labels[0] == "www" {
		labels = labels[1:]
	}
	// Nested subdomains ("a.b.example.com") carry no single slug.
	if len(labels) != 1 || labels[0] == "" {
		return "", nil
	}
	return labels[0], nil
}

// HeaderExtractor reads an explicit tenant header. The header is honoured
// only when Authorize accepts the request; otherwise it is ignored, as if
// absent, so ordinary clients cannot switch tenants by setting it.
type HeaderExtractor struct {
	HeaderName string
	Authorize  func(r *http.Request) bool
}

// NewHeaderExtractor creates a header extractor. A nil authorize function
// rejects every caller.
func NewHeaderExtractor(headerName string, authorize func(r *http.Request) bool) *HeaderExtractor {
	if headerName == "" {
		headerName = "X-Tenant-ID"
	}
	return &HeaderExtractor{HeaderName: headerName, Authorize: authorize}
}

func (e *HeaderExtractor) Extract(r *http.Request) (string, error) {
	value := strings.TrimSpace(r.Header.Get(e.HeaderName))
	if value == "" {
		return "", nil
	}
	if e.Authorize == nil || !e.Authorize(r) {
		return "", nil
	}
	return value, nil
}

// ClaimExtractor reads the tenant claim from a verified identity token that
// earlier middleware placed in the request context.
type ClaimExtractor struct {
	Claim func(r *http.Request) (string, bool)
}

// NewClaimExtractor creates a claim extractor.
func NewClaimExtractor(claim func(r *http.Request) (string, bool)) *ClaimExtractor {
	return &ClaimExtractor{Claim: claim}
}

func (e *ClaimExtractor) Extract(r *http.Request) (string, error) {
	if e.Claim == nil {
		return "", nil
	}
	v, ok := e.Claim(r)
	if !ok {
		return "", nil
	}
	return strings.TrimSpace(v), nil
}

// normalizeIdentifier lowercases an identifier and validates it as either a
// UUID or a DNS label (1-63 chars of [a-z0-9-], starting and ending with an
// alphanumeric).
func normalizeIdentifier(identifier string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(identifier))
	if id == "" {
		return "", ErrInvalidIdentifier
	}
	if u, err := uuid.Parse(id); err == nil {
		return u.String(), nil
	}
	if len(id) > 63 {
		return "", ErrInvalidIdentifier
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-' && i > 0 && i < len(id)-1:
		default:
			return "", ErrInvalidIdentifier
		}
	}
	return id, nil
}
