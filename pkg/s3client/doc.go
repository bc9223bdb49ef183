// Package s3client builds AWS S3 clients from environment configuration.
//
// It is used by the audit archive sink, which writes each flushed batch as
// one NDJSON object. Endpoint and ForcePathStyle make it work against
// S3-compatible stores such as MinIO.
//
//	var cfg s3client.Config
//	config.MustLoad(&cfg)
//	client, err := s3client.New(ctx, cfg)
//	storage := audit.NewS3Storage(client, cfg.Bucket, cfg.AuditPrefix)
package s3client
