package main

import (
	"log/slog"
	"time"
)

// Audit sinks selectable with AUDIT_SINK.
const (
	sinkPostgres   = "postgres"
	sinkMongo      = "mongo"
	sinkOpenSearch = "opensearch"
	sinkS3         = "s3"
)

// Tenant stores selectable with TENANT_STORE.
const (
	storePostgres = "postgres"
	storeFile     = "file"
)

type appConfig struct {
	Env       string     `env:"APP_ENV" envDefault:"development"`
	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string     `env:"LOG_FORMAT"`

	TenantStore string `env:"TENANT_STORE" envDefault:"postgres"`
	TenantFile  string `env:"TENANT_FILE" envDefault:"tenants.yaml"`
	AuditSink   string `env:"AUDIT_SINK" envDefault:"postgres"`

	// Optional integrations are enabled by their connection settings.
	RedisURL      string `env:"REDIS_URL"`
	JWTSigningKey string `env:"JWT_SIGNING_KEY"`

	Migrate       bool          `env:"PG_MIGRATE" envDefault:"true"`
	HealthTimeout time.Duration `env:"HEALTH_TIMEOUT" envDefault:"2s"`
}
