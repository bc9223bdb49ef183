package opensearch

// Config holds the OpenSearch connection used by the audit sink.
type Config struct {
	Addresses    []string `env:"OPENSEARCH_ADDRESSES,required"`
	Username     string   `env:"OPENSEARCH_USERNAME"`
	Password     string   `env:"OPENSEARCH_PASSWORD"`
	MaxRetries   int      `env:"OPENSEARCH_MAX_RETRIES" envDefault:"3"`
	DisableRetry bool     `env:"OPENSEARCH_DISABLE_RETRY" envDefault:"false"`
	// AuditIndex receives audit events.
	AuditIndex string `env:"OPENSEARCH_AUDIT_INDEX" envDefault:"audit-events"`
}
