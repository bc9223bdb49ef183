// Package connmux multiplexes per-tenant data-access handles keyed by
// connection address.
//
// A Multiplexer owns every handle it creates. Callers borrow a handle with
// Acquire and give it back with Lease.Release; the handle itself stays open
// and is shared by every concurrent caller for the same address.
//
//	mux := connmux.New(pg.TenantFactory(poolCfg), connmux.DefaultConfig(),
//		connmux.WithLogger(log),
//	)
//	defer mux.Close(shutdownCtx)
//
//	lease, err := mux.Acquire(ctx, tenant.Address)
//	if err != nil {
//		return err
//	}
//	defer lease.Release()
//	pool := lease.Conn().(*pgxpool.Pool)
//
// Concurrent first use of an address runs the Factory exactly once; every
// racing caller waits for that construction and receives the same handle.
// A failed construction is not cached.
//
// The registry never holds more than Config.MaxHandles entries. When it is
// full the least recently used idle handle is evicted; if every handle is
// leased, Acquire waits up to Config.CapacityWait for one to become idle and
// then fails with ErrCapacityExceeded.
//
// Evicted handles are closed only after their outstanding leases are
// released. Close drains every handle the same way and force-closes the
// stragglers once its context expires.
//
// Handles that keep failing are dropped: after Config.FailureThreshold
// consecutive Lease.ReportError calls the next Acquire builds a new one.
package connmux
