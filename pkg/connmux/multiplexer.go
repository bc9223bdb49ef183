package connmux

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/tenantmux/pkg/dsn"
	"github.com/dmitrymomot/tenantmux/pkg/logger"
)

// Conn is an opaque data-access handle bound to one address.
// Close must wait for in-flight operations before releasing resources.
type Conn interface {
	Close()
}

// Resetter is implemented by handles that can drop their idle connections
// without waiting for in-flight work, such as *pgxpool.Pool. Handles still
// leased at the shutdown deadline are reset before their background close.
type Resetter interface {
	Reset()
}

// Factory opens a handle for address. It must honour ctx.
type Factory func(ctx context.Context, address string) (Conn, error)

// Stats is a point-in-time view of the registry.
type Stats struct {
	Live         int
	Constructing int
	Leased       int
	Draining     int
}

// Option configures a Multiplexer.
type Option func(*Multiplexer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Multiplexer) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Multiplexer) {
		if now != nil {
			m.now = now
		}
	}
}

// Multiplexer is a registry of shared handles keyed by connection address.
type Multiplexer struct {
	factory Factory
	cfg     Config
	log     *slog.Logger
	now     func() time.Time
	metrics *muxMetrics

	mu       sync.Mutex
	entries  map[string]*entry
	lru      *list.List // of *entry, most recently used at the front
	draining map[*entry]struct{}
	changed  chan struct{} // closed and replaced whenever room may have appeared
	closed   bool

	// pending counts constructions and handles not yet closed after removal.
	pending sync.WaitGroup

	stopSweep chan struct{}
	sweepDone chan struct{}
}

type entry struct {
	address string
	ready   chan struct{} // closed once construction finished
	conn    Conn
	err     error

	createdAt time.Time
	lastUsed  time.Time
	leases    int
	failures  int
	removed   bool
	elem      *list.Element

	closeOnce sync.Once
}

func (e *entry) isReady() bool {
	select {
	case <-e.ready:
		return true
	default:
		return false
	}
}

func (e *entry) close() {
	e.closeOnce.Do(func() {
		if e.conn != nil {
			e.conn.Close()
		}
	})
}

func (e *entry) forceClose() {
	if r, ok := e.conn.(Resetter); ok {
		r.Reset()
	}
	e.close()
}

// New creates a Multiplexer and starts its idle sweeper.
func New(factory Factory, cfg Config, opts ...Option) *Multiplexer {
	if factory == nil {
		panic("connmux: nil factory")
	}
	m := &Multiplexer{
		factory:   factory,
		cfg:       cfg.withDefaults(),
		log:       slog.Default(),
		now:       time.Now,
		metrics:   newMuxMetrics(),
		entries:   make(map[string]*entry),
		lru:       list.New(),
		draining:  make(map[*entry]struct{}),
		changed:   make(chan struct{}),
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.Component("connmux"))

	if m.cfg.SweepInterval > 0 {
		go m.sweep()
	} else {
		close(m.sweepDone)
	}
	return m
}

// PrometheusCollectors returns the multiplexer's metrics for registration.
func (m *Multiplexer) PrometheusCollectors() []prometheus.Collector {
	return m.metrics.collectors()
}

// Acquire returns a lease on the handle for address, constructing the handle
// if none exists. The caller must Release the lease.
func (m *Multiplexer) Acquire(ctx context.Context, address string) (*Lease, error) {
	if address == "" {
		return nil, ErrEmptyAddress
	}

	start := m.now()
	defer func() { m.metrics.acquireWait.Observe(m.now().Sub(start).Seconds()) }()

	var capacityTimer *time.Timer
	defer func() {
		if capacityTimer != nil {
			capacityTimer.Stop()
		}
	}()

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}

		if e, ok := m.entries[address]; ok {
			// The lease is taken before waiting so a constructing entry
			// is never picked as an idle eviction victim.
			e.leases++
			e.lastUsed = m.now()
			m.lru.MoveToFront(e.elem)
			ready := e.isReady()
			m.mu.Unlock()

			if ready {
				return &Lease{m: m, e: e}, nil
			}
			return m.await(ctx, e)
		}

		if len(m.entries) >= m.cfg.MaxHandles {
			victim := m.idleVictimLocked()
			if victim == nil {
				changed := m.changed
				m.mu.Unlock()

				if capacityTimer == nil {
					capacityTimer = time.NewTimer(m.cfg.CapacityWait)
				}
				select {
				case <-changed:
					continue
				case <-capacityTimer.C:
					m.log.WarnContext(ctx, "no idle handle to evict",
						logger.Address(address),
						slog.Int("max_handles", m.cfg.MaxHandles),
					)
					return nil, fmt.Errorf("%w: %d handles leased", ErrCapacityExceeded, m.cfg.MaxHandles)
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			m.removeLocked(victim, reasonCapacity)
		}

		now := m.now()
		e := &entry{
			address:   address,
			ready:     make(chan struct{}),
			createdAt: now,
			lastUsed:  now,
			leases:    1,
		}
		e.elem = m.lru.PushFront(e)
		m.entries[address] = e
		m.pending.Add(1)
		m.updateGaugesLocked()
		m.mu.Unlock()

		go m.construct(e)
		return m.await(ctx, e)
	}
}

// await waits for e's construction. The caller already holds a lease on e.
func (m *Multiplexer) await(ctx context.Context, e *entry) (*Lease, error) {
	select {
	case <-e.ready:
		if e.err != nil {
			return nil, e.err
		}
		return &Lease{m: m, e: e}, nil
	case <-ctx.Done():
		// Stop waiting; the construction keeps going for other waiters.
		m.release(e)
		return nil, ctx.Err()
	}
}

// construct runs the factory on its own deadline so a cancelled caller
// never aborts a construction other callers are waiting on.
func (m *Multiplexer) construct(e *entry) {
	defer m.pending.Done()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConstructTimeout)
	defer cancel()

	type result struct {
		conn Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := m.factory(ctx, e.address)
		done <- result{conn, err}
	}()

	start := m.now()
	var conn Conn
	var err error
	select {
	case r := <-done:
		conn, err = r.conn, r.err
		if err == nil && conn == nil {
			err = ErrNilConn
		}
	case <-ctx.Done():
		err = ctx.Err()
		// A factory that ignores ctx may still deliver a handle later.
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
	}

	if err != nil {
		kind := ErrConstructFailed
		if errors.Is(err, context.DeadlineExceeded) {
			kind = ErrConstructTimeout
		}
		err = fmt.Errorf("%w: %s: %w", kind, dsn.Mask(e.address), err)
		m.metrics.constructions.WithLabelValues("error").Inc()
		m.log.Error("handle construction failed",
			logger.Address(e.address),
			logger.Duration(m.now().Sub(start)),
			logger.Error(err),
		)
	} else {
		m.metrics.constructions.WithLabelValues("success").Inc()
		m.log.Debug("handle constructed",
			logger.Address(e.address),
			logger.Duration(m.now().Sub(start)),
		)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e.conn, e.err = conn, err
	now := m.now()
	e.createdAt, e.lastUsed = now, now
	if err != nil {
		// Failed constructions are never cached.
		m.detachLocked(e)
	} else if e.removed {
		// Invalidated or shut down while constructing.
		m.drainLocked(e)
	}
	close(e.ready)
	m.updateGaugesLocked()
}

// Invalidate removes the handle for address so the next Acquire constructs a
// fresh one. Outstanding leases keep working until released.
func (m *Multiplexer) Invalidate(address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[address]
	if !ok {
		return false
	}
	m.removeLocked(e, reasonManual)
	return true
}

// EvictIdle removes every unleased handle unused for longer than
// Config.IdleTimeout and returns how many were removed.
func (m *Multiplexer) EvictIdle() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var victims []*entry
	for el := m.lru.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if e.leases == 0 && e.isReady() && now.Sub(e.lastUsed) >= m.cfg.IdleTimeout {
			victims = append(victims, e)
		}
	}
	for _, e := range victims {
		m.removeLocked(e, reasonIdle)
	}
	return len(victims)
}

// Stats reports the current registry state.
func (m *Multiplexer) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked()
}

// Close stops accepting acquires and drains every handle, waiting for
// outstanding leases and pending constructions. When ctx expires the
// remaining handles are reset and closed in the background regardless of
// leases, and Close returns ErrShutdownTimeout without waiting for them.
func (m *Multiplexer) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for _, e := range m.entries {
		m.removeLocked(e, reasonShutdown)
	}
	m.mu.Unlock()

	close(m.stopSweep)
	<-m.sweepDone

	drained := make(chan struct{})
	go func() {
		m.pending.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		m.log.InfoContext(ctx, "multiplexer drained")
		return nil
	case <-ctx.Done():
	}

	m.mu.Lock()
	stragglers := make([]*entry, 0, len(m.draining))
	for e := range m.draining {
		stragglers = append(stragglers, e)
		delete(m.draining, e)
	}
	m.updateGaugesLocked()
	m.mu.Unlock()

	for _, e := range stragglers {
		go func() {
			defer m.pending.Done()
			e.forceClose()
		}()
	}
	m.log.WarnContext(ctx, "handles force-closed at shutdown deadline", logger.Count(len(stragglers)))
	return errors.Join(ErrShutdownTimeout, ctx.Err())
}

func (m *Multiplexer) release(e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.leases--
	e.lastUsed = m.now()
	if e.leases > 0 {
		return
	}
	if _, ok := m.draining[e]; ok {
		delete(m.draining, e)
		m.closeAsyncLocked(e)
		return
	}
	if !e.removed {
		m.broadcastLocked()
	}
	m.updateGaugesLocked()
}

func (m *Multiplexer) reportFailure(e *entry, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.removed {
		return
	}
	e.failures++
	if e.failures < m.cfg.FailureThreshold {
		return
	}
	m.log.Warn("evicting broken handle",
		logger.Address(e.address),
		slog.Int("failures", e.failures),
		logger.Error(err),
	)
	m.removeLocked(e, reasonBroken)
}

func (m *Multiplexer) reportSuccess(e *entry) {
	m.mu.Lock()
	e.failures = 0
	m.mu.Unlock()
}

// idleVictimLocked returns the least recently used ready handle without
// leases, or nil.
func (m *Multiplexer) idleVictimLocked() *entry {
	for el := m.lru.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if e.leases == 0 && e.isReady() {
			return e
		}
	}
	return nil
}

// removeLocked takes e out of the registry and schedules its close once
// its leases are released.
func (m *Multiplexer) removeLocked(e *entry, reason string) {
	if e.removed {
		return
	}
	m.detachLocked(e)
	m.metrics.evictions.WithLabelValues(reason).Inc()
	m.log.Debug("handle removed", logger.Address(e.address), logger.Reason(reason))
	if e.isReady() {
		m.drainLocked(e)
	}
	m.updateGaugesLocked()
}

func (m *Multiplexer) detachLocked(e *entry) {
	e.removed = true
	if cur, ok := m.entries[e.address]; ok && cur == e {
		delete(m.entries, e.address)
	}
	if e.elem != nil {
		m.lru.Remove(e.elem)
		e.elem = nil
	}
	m.broadcastLocked()
}

// drainLocked closes a removed, constructed handle now if unleased, or
// when its last lease is released.
func (m *Multiplexer) drainLocked(e *entry) {
	if e.conn == nil {
		return
	}
	m.pending.Add(1)
	if e.leases == 0 {
		m.closeAsyncLocked(e)
		return
	}
	m.draining[e] = struct{}{}
}

func (m *Multiplexer) closeAsyncLocked(e *entry) {
	go func() {
		defer m.pending.Done()
		e.close()
		m.log.Debug("handle closed", logger.Address(e.address))
	}()
	m.updateGaugesLocked()
}

func (m *Multiplexer) broadcastLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

func (m *Multiplexer) statsLocked() Stats {
	s := Stats{Draining: len(m.draining)}
	for _, e := range m.entries {
		if !e.isReady() {
			s.Constructing++
			continue
		}
		s.Live++
		s.Leased += e.leases
	}
	return s
}

func (m *Multiplexer) updateGaugesLocked() {
	s := m.statsLocked()
	m.metrics.handles.WithLabelValues("live").Set(float64(s.Live))
	m.metrics.handles.WithLabelValues("constructing").Set(float64(s.Constructing))
	m.metrics.handles.WithLabelValues("draining").Set(float64(s.Draining))
}

func (m *Multiplexer) sweep() {
	defer close(m.sweepDone)

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopSweep:
			return
		case <-ticker.C:
			if n := m.EvictIdle(); n > 0 {
				m.log.Debug("idle handles evicted", logger.Count(n))
			}
		}
	}
}
