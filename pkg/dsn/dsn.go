// Package dsn masks credentials in database connection addresses so they can
// be attached to logs, metrics and errors.
package dsn

import (
	"net/url"
	"regexp"
	"strings"
)

// masked matches the placeholder url.URL.Redacted uses.
const masked = "xxxxx"

// keywordPassword matches password=value pairs in libpq keyword/value strings,
// including single-quoted values.
var keywordPassword = regexp.MustCompile(`(?i)(password\s*=\s*)('(?:[^'\\]|\\.)*'|\S+)`)

// Mask returns the address with any password replaced.
// URL addresses keep scheme, user, host and database; keyword/value addresses
// keep everything except the password value. Query parameters are dropped from
// URL addresses because drivers accept secrets there too (sslpassword, etc).
func Mask(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}

	if strings.Contains(address, "://") {
		u, err := url.Parse(address)
		if err != nil {
			// Unparseable URL: show only the scheme, never the rest.
			return address[:strings.Index(address, "://")] + "://" + masked
		}
		u.RawQuery = ""
		u.Fragment = ""
		return u.Redacted()
	}

	return keywordPassword.ReplaceAllString(address, "${1}"+masked)
}
