package audit

import (
	"net/http"
	"time"

	"github.com/dmitrymomot/tenantmux/pkg/clientip"
	"github.com/dmitrymomot/tenantmux/pkg/requestid"
)

// ActorExtractor returns the acting user's identifier, or "" for anonymous requests.
type ActorExtractor func(r *http.Request) string

// CaptureOption configures a Capturer.
type CaptureOption func(*Capturer)

// WithActorExtractor sets how the actor is identified.
func WithActorExtractor(fn ActorExtractor) CaptureOption {
	return func(c *Capturer) {
		c.actor = fn
	}
}

// WithCaptureClock replaces time.Now, for tests.
func WithCaptureClock(now func() time.Time) CaptureOption {
	return func(c *Capturer) {
		if now != nil {
			c.now = now
		}
	}
}

// Capturer builds the audit Context of a request.
type Capturer struct {
	actor ActorExtractor
	now   func() time.Time
}

// NewCapturer creates a Capturer.
func NewCapturer(opts ...CaptureOption) *Capturer {
	c := &Capturer{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capture reads actor, origin address, user agent and request id from r.
// The tenant is filled in once it has been resolved.
func (c *Capturer) Capture(r *http.Request) *Context {
	ctx := r.Context()

	ip := clientip.GetIPFromContext(ctx)
	if ip == "" {
		ip = clientip.GetIP(r)
	}

	ac := &Context{
		IP:         ip,
		UserAgent:  r.UserAgent(),
		RequestID:  requestid.FromContext(ctx),
		CapturedAt: c.now().UTC(),
	}
	if c.actor != nil {
		ac.ActorID = c.actor(r)
	}
	return ac
}
