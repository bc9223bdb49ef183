package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/tenantmux/pkg/connmux"
)

var _ connmux.Resetter = (*pgxpool.Pool)(nil)

// TenantFactory returns a multiplexer factory that opens one pgxpool per
// tenant address. The returned handle is the *pgxpool.Pool itself, so it
// can be type-asserted to run queries.
func TenantFactory(cfg TenantPoolConfig) connmux.Factory {
	return func(ctx context.Context, address string) (connmux.Conn, error) {
		poolConfig, err := tenantPoolConfig(address, cfg)
		if err != nil {
			return nil, err
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, errors.Join(ErrFailedToOpenDBConnection, err)
		}
		if cfg.Ping {
			if err := pool.Ping(ctx); err != nil {
				pool.Close()
				return nil, errors.Join(ErrFailedToOpenDBConnection, err)
			}
		}
		return pool, nil
	}
}

func tenantPoolConfig(address string, cfg TenantPoolConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(address)
	if err != nil {
		// pgconn errors may echo the connection string
		return nil, ErrFailedToParseDBConfig
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns >= 0 && cfg.MinConns <= poolConfig.MaxConns {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}
	return poolConfig, nil
}
