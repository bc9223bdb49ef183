package s3client

import "errors"

var (
	ErrInvalidConfig      = errors.New("s3: bucket and region are required")
	ErrFailedToLoadConfig = errors.New("s3: failed to load aws config")
	ErrHealthcheckFailed  = errors.New("s3 healthcheck failed")
	ErrBucketNotFound     = errors.New("s3: bucket not found")
	ErrAccessDenied       = errors.New("s3: access denied")
	ErrUnavailable        = errors.New("s3: service unavailable")
)
