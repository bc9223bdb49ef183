package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// DefaultPrefix is the key prefix batches are archived under.
const DefaultPrefix = "audit"

// ObjectPutter is the part of the S3 API the archive uses. *s3.Client
// satisfies it.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Storage archives every batch as one NDJSON object keyed by the flush
// date, e.g. audit/2026/10/19/<uuid>.ndjson.
type S3Storage struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

func NewS3Storage(client ObjectPutter, bucket, prefix string) *S3Storage {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &S3Storage{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

func (s *S3Storage) StoreBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return fmt.Errorf("encode event %s: %w", events[i].ID, err)
		}
	}

	key := path.Join(s.prefix, s.now().UTC().Format("2006/01/02"), uuid.NewString()+".ndjson")
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body.Bytes()),
		ContentLength: aws.Int64(int64(body.Len())),
		ContentType:   aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
