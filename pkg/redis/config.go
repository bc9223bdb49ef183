package redis

import "time"

// Config describes the Redis instance used as the shared tenant cache.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL,required"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"10s"`
	// KeyPrefix namespaces tenant records.
	KeyPrefix string `env:"REDIS_TENANT_PREFIX" envDefault:"tenantmux:tenant:"`
	// AddressKey is a base64 AES-256 key for sealing tenant addresses.
	// When empty, addresses are not shared and every process reads them
	// from the control plane.
	AddressKey string `env:"REDIS_ADDRESS_KEY"`
}
