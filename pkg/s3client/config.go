package s3client

// Config holds the S3 (or S3-compatible) bucket the audit archive writes to.
type Config struct {
	Bucket      string `env:"S3_BUCKET,required"`
	Region      string `env:"S3_REGION,required"`
	AccessKeyID string `env:"S3_ACCESS_KEY_ID"`
	SecretKey   string `env:"S3_SECRET_KEY"`
	// Endpoint is set for S3-compatible services such as MinIO.
	Endpoint       string `env:"S3_ENDPOINT"`
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE" envDefault:"false"`
	// AuditPrefix is the key prefix audit batches are archived under.
	AuditPrefix string `env:"S3_AUDIT_PREFIX" envDefault:"audit"`
}
