package connmux

import (
	"sync"
	"time"
)

// Lease is one caller's claim on a shared handle. Leases count in-flight
// users; they do not give exclusive access.
type Lease struct {
	m    *Multiplexer
	e    *entry
	once sync.Once
}

// Conn returns the shared handle. Callers must not close it.
func (l *Lease) Conn() Conn { return l.e.conn }

// Address returns the connection address the handle is bound to.
func (l *Lease) Address() string { return l.e.address }

// CreatedAt returns when the underlying handle was constructed.
func (l *Lease) CreatedAt() time.Time {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	return l.e.createdAt
}

// Release returns the lease. Safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() { l.m.release(l.e) })
}

// ReportError records a connection-level failure on the handle. After
// Config.FailureThreshold consecutive failures the handle is evicted.
func (l *Lease) ReportError(err error) {
	if err == nil {
		return
	}
	l.m.reportFailure(l.e, err)
}

// ReportSuccess resets the consecutive failure count.
func (l *Lease) ReportSuccess() {
	l.m.reportSuccess(l.e)
}
