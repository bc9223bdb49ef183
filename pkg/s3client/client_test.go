package s3client_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantmux/pkg/s3client"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires bucket and region", func(t *testing.T) {
		t.Parallel()

		_, err := s3client.New(context.Background(), s3client.Config{Bucket: "audit"})
		assert.ErrorIs(t, err, s3client.ErrInvalidConfig)
	})

	t.Run("builds client for custom endpoint", func(t *testing.T) {
		t.Parallel()

		client, err := s3client.New(context.Background(), s3client.Config{
			Bucket:         "audit",
			Region:         "us-east-1",
			AccessKeyID:    "key",
			SecretKey:      "secret",
			Endpoint:       "http://localhost:9000",
			ForcePathStyle: true,
		})
		require.NoError(t, err)
		assert.True(t, client.Options().UsePathStyle)
		assert.Equal(t, "http://localhost:9000", *client.Options().BaseEndpoint)
	})
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.NoError(t, s3client.Classify(nil, "put"))
	assert.ErrorIs(t, s3client.Classify(context.DeadlineExceeded, "put"), context.DeadlineExceeded)
	assert.ErrorIs(t, s3client.Classify(&smithy.GenericAPIError{Code: "AccessDenied"}, "put"), s3client.ErrAccessDenied)
	assert.ErrorIs(t, s3client.Classify(&smithy.GenericAPIError{Code: "NoSuchBucket"}, "put"), s3client.ErrBucketNotFound)
	assert.ErrorIs(t, s3client.Classify(&smithy.GenericAPIError{Code: "SlowDown"}, "put"), s3client.ErrUnavailable)

	err := s3client.Classify(errors.New("boom"), "put")
	assert.EqualError(t, err, "put failed: boom")
}

type fakeBucket struct{ err error }

func (f fakeBucket) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.err
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	require.NoError(t, s3client.Healthcheck(fakeBucket{}, "audit")(context.Background()))

	err := s3client.Healthcheck(fakeBucket{err: &smithy.GenericAPIError{Code: "NotFound"}}, "audit")(context.Background())
	assert.ErrorIs(t, err, s3client.ErrHealthcheckFailed)
	assert.ErrorIs(t, err, s3client.ErrBucketNotFound)
}
