package logger

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/tenantmux/pkg/dsn"
)

// Error creates an "error" attribute. Nil errors yield an empty Attr,
// which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// TenantID records the tenant identifier under "tenant_id".
func TenantID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("tenant_id", id)
}

// CompanyID records the company identifier under "company_id".
func CompanyID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("company_id", id)
}

// Address records a connection address with its credentials masked.
func Address(address string) slog.Attr {
	return slog.String("address", dsn.Mask(address))
}

// Identifier records the raw tenant identifier taken from a request signal.
func Identifier(id string) slog.Attr {
	return slog.String("identifier", id)
}

// Signal records which request signal identified the tenant.
func Signal(name string) slog.Attr {
	return slog.String("signal", name)
}

// RequestID records the request identifier under "request_id".
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Component records the emitting component.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Reason records why something happened (eviction reason, failure reason).
func Reason(reason string) slog.Attr {
	return slog.String("reason", reason)
}

// Count records a numeric count under "count".
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Duration records a duration under "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Alert marks a record as one that must page an operator.
// Log pipelines route records with alert=true to alerting.
func Alert() slog.Attr {
	return slog.Bool("alert", true)
}
