package connmux

import "time"

// Config bounds the registry. Zero values fall back to DefaultConfig.
type Config struct {
	// MaxHandles is the maximum number of live or constructing handles.
	MaxHandles int `env:"CONNMUX_MAX_HANDLES" envDefault:"64"`
	// IdleTimeout is how long an unleased handle may stay unused.
	IdleTimeout time.Duration `env:"CONNMUX_IDLE_TIMEOUT" envDefault:"10m"`
	// ConstructTimeout bounds a single Factory call.
	ConstructTimeout time.Duration `env:"CONNMUX_CONSTRUCT_TIMEOUT" envDefault:"10s"`
	// CapacityWait bounds how long Acquire waits for room when every handle is leased.
	CapacityWait time.Duration `env:"CONNMUX_CAPACITY_WAIT" envDefault:"2s"`
	// SweepInterval is the idle sweeper period. Negative disables the sweeper.
	SweepInterval time.Duration `env:"CONNMUX_SWEEP_INTERVAL" envDefault:"30s"`
	// FailureThreshold is the number of consecutive reported errors after
	// which a handle is considered broken.
	FailureThreshold int `env:"CONNMUX_FAILURE_THRESHOLD" envDefault:"3"`
}

// DefaultConfig returns the defaults used for unset fields.
func DefaultConfig() Config {
	return Config{
		MaxHandles:       64,
		IdleTimeout:      10 * time.Minute,
		ConstructTimeout: 10 * time.Second,
		CapacityWait:     2 * time.Second,
		SweepInterval:    30 * time.Second,
		FailureThreshold: 3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxHandles <= 0 {
		c.MaxHandles = d.MaxHandles
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.ConstructTimeout <= 0 {
		c.ConstructTimeout = d.ConstructTimeout
	}
	if c.CapacityWait <= 0 {
		c.CapacityWait = d.CapacityWait
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	return c
}
