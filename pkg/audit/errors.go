package audit

import "errors"

var (
	ErrEventValidation     = errors.New("audit event validation failed")
	ErrQueueFull           = errors.New("audit queue is full")
	ErrRecorderClosed      = errors.New("audit recorder is closed")
	ErrStorageNotAvailable = errors.New("audit storage not available")
	ErrShutdownTimeout     = errors.New("audit recorder shutdown deadline exceeded")
)
