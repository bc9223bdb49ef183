// Package pg holds the PostgreSQL plumbing of tenantmux, built on pgx/v5.
//
// Connect opens the control-plane pool with retries, Migrate applies the
// embedded control-plane schema with goose, and Healthcheck returns a probe
// function. TenantFactory is the connmux.Factory that opens one pgxpool per
// tenant database address; the multiplexer owns those pools.
//
// IsConnectionError separates broken handles from failed statements so the
// multiplexer only evicts a tenant pool when the pool itself is unusable.
//
//	cfg := config.MustLoad[pg.Config]()
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//
//	mux := connmux.New(pg.TenantFactory(tenantCfg), muxCfg)
package pg
