package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/tenantmux/pkg/cache"
	"github.com/dmitrymomot/tenantmux/pkg/logger"
)

// DirectoryConfig bounds the tenant directory cache. Zero values fall back
// to DefaultDirectoryConfig.
type DirectoryConfig struct {
	// StaleAfter is how long a cached record is served without asking the store.
	StaleAfter time.Duration `env:"TENANT_STALE_AFTER" envDefault:"1m"`
	// MaxAge is the hard limit after which an entry is dropped, even when
	// the store is unreachable.
	MaxAge time.Duration `env:"TENANT_MAX_AGE" envDefault:"15m"`
	// NegativeTTL is how long an unknown identifier is remembered.
	NegativeTTL time.Duration `env:"TENANT_NEGATIVE_TTL" envDefault:"15s"`
	// LookupTimeout bounds one control-plane query.
	LookupTimeout time.Duration `env:"TENANT_LOOKUP_TIMEOUT" envDefault:"3s"`
	// SweepInterval is the janitor period. Negative disables the janitor.
	SweepInterval time.Duration `env:"TENANT_SWEEP_INTERVAL" envDefault:"1m"`
	// MaxEntries caps the local cache size.
	MaxEntries int `env:"TENANT_MAX_ENTRIES" envDefault:"10000"`
}

// DefaultDirectoryConfig returns the defaults used for unset fields.
func DefaultDirectoryConfig() DirectoryConfig {
	return DirectoryConfig{
		StaleAfter:    time.Minute,
		MaxAge:        15 * time.Minute,
		NegativeTTL:   15 * time.Second,
		LookupTimeout: 3 * time.Second,
		SweepInterval: time.Minute,
		MaxEntries:    10000,
	}
}

func (c DirectoryConfig) withDefaults() DirectoryConfig {
	d := DefaultDirectoryConfig()
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	if c.MaxAge <= 0 {
		c.MaxAge = d.MaxAge
	}
	if c.MaxAge < c.StaleAfter {
		c.MaxAge = c.StaleAfter
	}
	if c.NegativeTTL <= 0 {
		c.NegativeTTL = d.NegativeTTL
	}
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = d.LookupTimeout
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = d.MaxEntries
	}
	return c
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithSharedCache adds a second-level cache consulted before the store.
func WithSharedCache(c SharedCache) DirectoryOption {
	return func(d *Directory) {
		d.shared = c
	}
}

// WithDirectoryLogger sets the logger. Defaults to slog.Default().
func WithDirectoryLogger(l *slog.Logger) DirectoryOption {
	return func(d *Directory) {
		if l != nil {
			d.log = l
		}
	}
}

// WithDirectoryClock replaces time.Now, for tests.
func WithDirectoryClock(now func() time.Time) DirectoryOption {
	return func(d *Directory) {
		if now != nil {
			d.now = now
		}
	}
}

// Directory is a time-bounded cache of tenant records in front of the
// control-plane Store.
type Directory struct {
	store   Store
	shared  SharedCache
	cfg     DirectoryConfig
	log     *slog.Logger
	now     func() time.Time
	metrics *directoryMetrics

	local *cache.LRU[string, Entry]
	group singleflight.Group

	// generation is bumped by Invalidate; a fetch that started before the
	// bump does not cache its result.
	invalidation sync.RWMutex
	generation   uint64

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewDirectory creates a Directory and starts its janitor.
func NewDirectory(store Store, cfg DirectoryConfig, opts ...DirectoryOption) *Directory {
	if store == nil {
		panic("tenant: nil store")
	}
	cfg = cfg.withDefaults()
	d := &Directory{
		store: store,
		cfg:   cfg,
		log:   slog.Default(),
		now:   time.Now,
		local: cache.NewLRU[string, Entry](cfg.MaxEntries),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With(logger.Component("tenant_directory"))
	d.metrics = newDirectoryMetrics(func() float64 { return float64(d.local.Len()) })

	if cfg.SweepInterval > 0 {
		go d.janitor()
	} else {
		close(d.done)
	}
	return d
}

// PrometheusCollectors returns the directory's metrics for registration.
func (d *Directory) PrometheusCollectors() []prometheus.Collector {
	return d.metrics.collectors()
}

// Lookup returns the tenant for a UUID or slug.
//
// Fresh cached records are returned without contacting the store. Concurrent
// lookups of the same identifier share one upstream fetch; a caller whose
// context ends stops waiting while the fetch continues for the others. When
// the store fails, the last known record is served until it reaches MaxAge.
func (d *Directory) Lookup(ctx context.Context, identifier string) (*Tenant, error) {
	key, err := normalizeIdentifier(identifier)
	if err != nil {
		return nil, err
	}

	if e, ok := d.local.Get(key); ok {
		age := d.now().Sub(e.FetchedAt)
		switch {
		case e.Tenant == nil && age < d.cfg.NegativeTTL:
			d.metrics.lookups.WithLabelValues(resultNegative).Inc()
			return nil, ErrTenantNotFound
		case e.Tenant != nil && age < d.cfg.StaleAfter:
			d.metrics.lookups.WithLabelValues(resultHit).Inc()
			return e.Tenant, nil
		}
	}

	ch := d.group.DoChan(key, func() (any, error) {
		return d.fetch(key)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Tenant), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetch runs once per key at a time, detached from any caller's context.
func (d *Directory) fetch(key string) (*Tenant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.LookupTimeout)
	defer cancel()

	d.invalidation.RLock()
	gen := d.generation
	d.invalidation.RUnlock()

	var sharedEntry *Entry
	if d.shared != nil {
		e, ok, err := d.shared.Get(ctx, key)
		switch {
		case err != nil:
			d.log.Warn("shared tenant cache unavailable", logger.Identifier(key), logger.Error(err))
		case ok:
			age := d.now().Sub(e.FetchedAt)
			if e.Tenant == nil && age < d.cfg.NegativeTTL {
				d.commit(gen, func() { d.local.Put(key, e) })
				d.metrics.lookups.WithLabelValues(resultNegative).Inc()
				return nil, ErrTenantNotFound
			}
			if e.Tenant != nil && age < d.cfg.StaleAfter {
				d.commit(gen, func() {
					d.remember(e)
					d.local.Put(key, e)
				})
				d.metrics.lookups.WithLabelValues(resultShared).Inc()
				return e.Tenant, nil
			}
			sharedEntry = &e
		}
	}

	t, err := d.store.FindTenant(ctx, key)
	switch {
	case err == nil && t != nil:
		e := Entry{Tenant: t, FetchedAt: d.now()}
		d.commit(gen, func() {
			d.remember(e)
			d.local.Put(key, e)
			d.publish(ctx, e, d.cfg.MaxAge, key, entryKeys(t)...)
		})
		d.metrics.lookups.WithLabelValues(resultMiss).Inc()
		return t, nil

	case err == nil || errors.Is(err, ErrTenantNotFound):
		e := Entry{FetchedAt: d.now()}
		d.commit(gen, func() {
			d.local.Put(key, e)
			d.publish(ctx, e, d.cfg.NegativeTTL, key)
		})
		d.metrics.lookups.WithLabelValues(resultNegative).Inc()
		return nil, ErrTenantNotFound
	}

	if stale, ok := d.lastKnown(key, sharedEntry); ok {
		d.metrics.lookups.WithLabelValues(resultStale).Inc()
		d.log.Warn("serving stale tenant record, control plane lookup failed",
			logger.Identifier(key),
			slog.Duration("age", d.now().Sub(stale.FetchedAt)),
			logger.Error(err),
		)
		return stale.Tenant, nil
	}

	d.metrics.lookups.WithLabelValues(resultError).Inc()
	d.log.Error("tenant lookup failed", logger.Identifier(key), logger.Error(err))
	return nil, fmt.Errorf("%w: %s: %w", ErrLookupFailed, key, err)
}

// lastKnown returns the most recent non-negative entry younger than MaxAge.
func (d *Directory) lastKnown(key string, shared *Entry) (Entry, bool) {
	var best Entry
	if e, ok := d.local.Peek(key); ok && e.Tenant != nil {
		best = e
	}
	if shared != nil && shared.Tenant != nil && shared.FetchedAt.After(best.FetchedAt) {
		best = *shared
	}
	if best.Tenant == nil || d.now().Sub(best.FetchedAt) >= d.cfg.MaxAge {
		return Entry{}, false
	}
	return best, true
}

// commit runs store unless Invalidate was called after the fetch read gen,
// so an invalidated record is never put back by a fetch already in flight.
func (d *Directory) commit(gen uint64, store func()) {
	d.invalidation.RLock()
	defer d.invalidation.RUnlock()
	if d.generation == gen {
		store()
	}
}

// remember indexes a record under its UUID and slug so lookups by either
// share one entry.
func (d *Directory) remember(e Entry) {
	for _, k := range entryKeys(e.Tenant) {
		d.local.Put(k, e)
	}
}

func (d *Directory) publish(ctx context.Context, e Entry, ttl time.Duration, key string, aliases ...string) {
	if d.shared == nil {
		return
	}
	keys := append([]string{key}, aliases...)
	for _, k := range keys {
		if err := d.shared.Set(ctx, k, e, ttl); err != nil {
			d.log.Warn("failed to publish tenant entry", logger.Identifier(k), logger.Error(err))
			return
		}
	}
}

// Invalidate drops the cached records for the given identifiers, including
// the aliases (UUID and slug) of any record found. It is called when a
// downstream operation reports a tenant unreachable or suspended.
func (d *Directory) Invalidate(ctx context.Context, identifiers ...string) {
	d.invalidation.Lock()
	defer d.invalidation.Unlock()
	d.generation++

	keys := make([]string, 0, len(identifiers)*2)
	for _, id := range identifiers {
		key, err := normalizeIdentifier(id)
		if err != nil {
			continue
		}
		keys = append(keys, key)
		if e, ok := d.local.Peek(key); ok && e.Tenant != nil {
			keys = append(keys, entryKeys(e.Tenant)...)
		}
	}
	for _, k := range keys {
		d.local.Remove(k)
		d.group.Forget(k)
	}
	if d.shared != nil && len(keys) > 0 {
		if err := d.shared.Delete(ctx, keys...); err != nil {
			d.log.WarnContext(ctx, "failed to invalidate shared tenant entries", logger.Error(err))
		}
	}
}

// Sweep drops entries past MaxAge and expired negative entries.
// It returns the number of entries dropped.
func (d *Directory) Sweep() int {
	now := d.now()
	return d.local.Prune(func(_ string, e Entry) bool {
		age := now.Sub(e.FetchedAt)
		if e.Tenant == nil {
			return age >= d.cfg.NegativeTTL
		}
		return age >= d.cfg.MaxAge
	})
}

// Len returns the number of local cache entries, aliases included.
func (d *Directory) Len() int {
	return d.local.Len()
}

// Close stops the janitor.
func (d *Directory) Close() error {
	d.closeOnce.Do(func() {
		close(d.stop)
	})
	<-d.done
	return nil
}

func (d *Directory) janitor() {
	ticker := time.NewTicker(d.cfg.SweepInterval)
	defer ticker.Stop()
	defer close(d.done)

	for {
		select {
		case <-ticker.C:
			if n := d.Sweep(); n > 0 {
				d.log.Debug("expired tenant entries dropped", logger.Count(n))
			}
		case <-d.stop:
			return
		}
	}
}

func entryKeys(t *Tenant) []string {
	if t == nil {
		return nil
	}
	keys := []string{t.ID.String()}
	if t.Slug != "" {
		keys = append(keys, strings.ToLower(t.Slug))
	}
	return keys
}
