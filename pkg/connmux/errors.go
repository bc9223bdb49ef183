package connmux

import "errors"

var (
	ErrEmptyAddress     = errors.New("empty connection address")
	ErrClosed           = errors.New("multiplexer closed")
	ErrCapacityExceeded = errors.New("handle capacity exceeded")
	ErrConstructFailed  = errors.New("handle construction failed")
	ErrConstructTimeout = errors.New("handle construction timed out")
	ErrShutdownTimeout  = errors.New("shutdown deadline exceeded, handles force-closed")
	ErrNilConn          = errors.New("factory returned nil handle")
)
