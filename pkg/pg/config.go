package pg

import "time"

// Config describes the control-plane database.
type Config struct {
	ConnectionString  string        `env:"PG_CONN_URL,required"`
	MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"2"`
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
	MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`

	RetryAttempts int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"2s"`

	// MigrationsPath overrides the embedded control-plane migrations.
	MigrationsPath  string `env:"PG_MIGRATIONS_PATH"`
	MigrationsTable string `env:"PG_MIGRATIONS_TABLE" envDefault:"schema_migrations"`
}

// TenantPoolConfig sizes the pool opened for each tenant database. The
// multiplexer bounds how many of these pools exist at once, so MaxConns is
// per tenant.
type TenantPoolConfig struct {
	MaxConns          int32         `env:"TENANT_PG_MAX_CONNS" envDefault:"4"`
	MinConns          int32         `env:"TENANT_PG_MIN_CONNS" envDefault:"0"`
	MaxConnIdleTime   time.Duration `env:"TENANT_PG_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	MaxConnLifetime   time.Duration `env:"TENANT_PG_MAX_CONN_LIFETIME" envDefault:"30m"`
	HealthCheckPeriod time.Duration `env:"TENANT_PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
	// Ping verifies a new pool before it is handed out.
	Ping bool `env:"TENANT_PG_PING" envDefault:"true"`
}
