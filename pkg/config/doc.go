// Package config loads environment-driven configuration structs.
//
// Structs declare their variables with github.com/caarlos0/env tags; every
// tunable has a name and a default so there are no untyped option bags:
//
//	type Config struct {
//		MaxHandles  int           `env:"CONNMUX_MAX_HANDLES" envDefault:"64"`
//		IdleTimeout time.Duration `env:"CONNMUX_IDLE_TIMEOUT" envDefault:"10m"`
//	}
//
// Load caches the parsed value per type, MustLoad panics on failure and Parse
// skips the cache and accepts a variable prefix. A .env file is read once via
// github.com/joho/godotenv when present.
package config
