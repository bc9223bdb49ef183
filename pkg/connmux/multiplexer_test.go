package connmux_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantmux/pkg/connmux"
	"github.com/dmitrymomot/tenantmux/pkg/logger"
)

type fakeConn struct {
	address string
	closed  atomic.Bool
}

func (c *fakeConn) Close() { c.closed.Store(true) }

// drainingConn mimics a pool whose Close waits for in-flight work.
type drainingConn struct {
	inflight chan struct{} // closed once in-flight work finishes
	finish   sync.Once
	closed   atomic.Bool
}

func newDrainingConn() *drainingConn {
	return &drainingConn{inflight: make(chan struct{})}
}

func (c *drainingConn) Close() {
	<-c.inflight
	c.closed.Store(true)
}

func (c *drainingConn) done() { c.finish.Do(func() { close(c.inflight) }) }

// resettableConn drops its in-flight work on Reset.
type resettableConn struct {
	*drainingConn
	resets atomic.Int32
}

func (c *resettableConn) Reset() {
	c.resets.Add(1)
	c.done()
}

func newMuxWith(t *testing.T, factory connmux.Factory, opts ...connmux.Option) *connmux.Multiplexer {
	t.Helper()
	opts = append([]connmux.Option{connmux.WithLogger(logger.Discard())}, opts...)
	return connmux.New(factory, testConfig(), opts...)
}

type fakeFactory struct {
	calls atomic.Int32
	gate  chan struct{} // when set, construction blocks until closed
	fail  atomic.Int32  // number of upcoming calls that fail

	mu    sync.Mutex
	conns []*fakeConn
}

func (f *fakeFactory) open(ctx context.Context, address string) (connmux.Conn, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail.Add(-1) >= 0 {
		return nil, errors.New("connection refused")
	}
	f.fail.Store(0)

	c := &fakeConn{address: address}
	f.mu.Lock()
	f.conns = append(f.conns, c)
	f.mu.Unlock()
	return c, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() connmux.Config {
	return connmux.Config{
		MaxHandles:       4,
		IdleTimeout:      time.Minute,
		ConstructTimeout: time.Second,
		CapacityWait:     50 * time.Millisecond,
		SweepInterval:    -1,
		FailureThreshold: 2,
	}
}

func newMux(t *testing.T, f *fakeFactory, cfg connmux.Config, opts ...connmux.Option) *connmux.Multiplexer {
	t.Helper()
	opts = append([]connmux.Option{connmux.WithLogger(logger.Discard())}, opts...)
	m := connmux.New(f.open, cfg, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Close(ctx)
	})
	return m
}

func TestAcquire_SingleConstructionUnderConcurrentFirstUse(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{gate: make(chan struct{})}
	m := newMux(t, f, testConfig())

	const callers = 50
	leases := make([]*connmux.Lease, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			leases[i], errs[i] = m.Acquire(context.Background(), "postgres://acme")
		}()
	}

	// Let every caller reach the wait before construction completes.
	require.Eventually(t, func() bool { return m.Stats().Constructing == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	first := leases[0].Conn()
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Same(t, first, leases[i].Conn())
	}

	stats := m.Stats()
	assert.Equal(t, 1, stats.Live)
	assert.Equal(t, callers, stats.Leased)

	for _, l := range leases {
		l.Release()
	}
	assert.Equal(t, 0, m.Stats().Leased)
}

func TestAcquire_ReusesLiveHandle(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	m := newMux(t, f, testConfig())

	l1, err := m.Acquire(context.Background(), "postgres://acme")
	require.NoError(t, err)
	l1.Release()
	l1.Release() // idempotent

	l2, err := m.Acquire(context.Background(), "postgres://acme")
	require.NoError(t, err)
	defer l2.Release()

	assert.Same(t, l1.Conn(), l2.Conn())
	assert.Equal(t, "postgres://acme", l2.Address())
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestAcquire_DistinctAddressesGetDistinctHandles(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	m := newMux(t, f, testConfig())

	a, err := m.Acquire(context.Background(), "postgres://a")
	require.NoError(t, err)
	defer a.Release()
	b, err := m.Acquire(context.Background(), "postgres://b")
	require.NoError(t, err)
	defer b.Release()

	assert.NotSame(t, a.Conn(), b.Conn())
	assert.Equal(t, 2, m.Stats().Live)
}

func TestAcquire_EmptyAddress(t *testing.T) {
	t.Parallel()

	m := newMux(t, &fakeFactory{}, testConfig())
	_, err := m.Acquire(context.Background(), "")
	assert.ErrorIs(t, err, connmux.ErrEmptyAddress)
}

func TestAcquire_FailedConstructionIsNotCached(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	f.fail.Store(1)
	m := newMux(t, f, testConfig())

	_, err := m.Acquire(context.Background(), "postgres://user:secret@db/acme")
	require.Error(t, err)
	assert.ErrorIs(t, err, connmux.ErrConstructFailed)
	assert.NotContains(t, err.Error(), "secret")
	assert.Equal(t, 0, m.Stats().Live)

	l, err := m.Acquire(context.Background(), "postgres://user:secret@db/acme")
	require.NoError(t, err)
	defer l.Release()
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestAcquire_ConstructTimeout(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{gate: make(chan struct{})}
	cfg := testConfig()
	cfg.ConstructTimeout = 20 * time.Millisecond
	m := newMux(t, f, cfg)

	_, err := m.Acquire(context.Background(), "postgres://slow")
	assert.ErrorIs(t, err, connmux.ErrConstructTimeout)
	assert.Equal(t, 0, m.Stats().Constructing)
}

func TestAcquire_CancelledWaiterDoesNotAbortConstruction(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{gate: make(chan struct{})}
	m := newMux(t, f, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Acquire(ctx, "postgres://acme")
		errCh <- err
	}()

	require.Eventually(t, func() bool { return m.Stats().Constructing == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(f.gate)
	l, err := m.Acquire(context.Background(), "postgres://acme")
	require.NoError(t, err)
	defer l.Release()

	assert.Equal(t, int32(1), f.calls.Load())
}

func TestEvictIdle(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	f := &fakeFactory{}
	m := newMux(t, f, testConfig(), connmux.WithClock(clock.Now))

	l, err := m.Acquire(context.Background(), "postgres://acme")
	require.NoError(t, err)
	conn := l.Conn().(*fakeConn)

	clock.Advance(2 * time.Minute)
	assert.Zero(t, m.EvictIdle(), "leased handles are never idle")

	l.Release()
	clock.Advance(30 * time.Second)
	assert.Zero(t, m.EvictIdle(), "released recently")

	clock.Advance(time.Minute)
	assert.Equal(t, 1, m.EvictIdle())
	assert.Equal(t, 0, m.Stats().Live)
	assert.Eventually(t, conn.closed.Load, time.Second, time.Millisecond)

	l, err = m.Acquire(context.Background(), "postgres://acme")
	require.NoError(t, err)
	defer l.Release()
	assert.Equal(t, int32(2), f.calls.Load())
	assert.NotSame(t, conn, l.Conn())
}

func TestSweeperEvictsIdleHandles(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	cfg := testConfig()
	cfg.IdleTimeout = 10 * time.Millisecond
	cfg.SweepInterval = 5 * time.Millisecond
	m := newMux(t, f, cfg)

	l, err := m.Acquire(context.Background(), "postgres://acme")
	require.NoError(t, err)
	conn := l.Conn().(*fakeConn)
	l.Release()

	assert.Eventually(t, func() bool { return m.Stats().Live == 0 }, time.Second, time.Millisecond)
	assert.Eventually(t, conn.closed.Load, time.Second, time.Millisecond)
}

func TestCapacity_EvictsLeastRecentlyUsedIdleHandle(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	cfg := testConfig()
	cfg.MaxHandles = 2
	m := newMux(t, f, cfg)

	a, err := m.Acquire(context.Background(), "postgres://a")
	require.NoError(t, err)
	a.Release()
	b, err := m.Acquire(context.Background(), "postgres://b")
	require.NoError(t, err)
	b.Release()

	// Touch a so b becomes the least recently used.
	a2, err := m.Acquire(context.Background(), "postgres://a")
	require.NoError(t, err)
	a2.Release()

	c, err := m.Acquire(context.Background(), "postgres://c")
	require.NoError(t, err)
	defer c.Release()

	assert.Equal(t, 2, m.Stats().Live)
	assert.Eventually(t, b.Conn().(*fakeConn).closed.Load, time.Second, time.Millisecond)
	assert.False(t, a.Conn().(*fakeConn).closed.Load())
}

func TestCapacity_FailsWhenAllHandlesLeased(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	cfg := testConfig()
	cfg.MaxHandles = 1
	cfg.CapacityWait = 20 * time.Millisecond
	m := newMux(t, f, cfg)

	a, err := m.Acquire(context.Background(), "postgres://a")
	require.NoError(t, err)
	defer a.Release()

	start := time.Now()
	_, err = m.Acquire(context.Background(), "postgres://b")
	assert.ErrorIs(t, err, connmux.ErrCapacityExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, 1, m.Stats().Live)
}

func TestCapacity_WaitsForRelease(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	cfg := testConfig()
	cfg.MaxHandles = 1
	cfg.CapacityWait = 5 * time.Second
	m := newMux(t, f, cfg)

	a, err := m.Acquire(context.Background(), "postgres://a")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		a.Release()
	}()

	b, err := m.Acquire(context.Background(), "postgres://b")
	require.NoError(t, err)
	defer b.Release()

	assert.Eventually(t, a.Conn().(*fakeConn).closed.Load, time.Second, time.Millisecond)
	assert.Equal(t, 1, m.Stats().Live)
}

func TestCapacity_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	cfg := testConfig()
	cfg.MaxHandles = 1
	cfg.CapacityWait = 5 * time.Second
	m := newMux(t, f, cfg)

	a, err := m.Acquire(context.Background(), "postgres://a")
	require.NoError(t, err)
	defer a.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, "postgres://b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCapacity_RegistryNeverExceedsBound(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	cfg := testConfig()
	cfg.MaxHandles = 3
	cfg.CapacityWait = 10 * time.Millisecond
	m := newMux(t, f, cfg)

	var maxSeen atomic.Int32
	stop := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			s := m.Stats()
			if n := int32(s.Live + s.Constructing); n > maxSeen.Load() {
				maxSeen.Store(n)
			}
		}
	}()

	var wg sync.WaitGroup
	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := m.Acquire(context.Background(), fmt.Sprintf("postgres://db-%d", i%8))
			if err != nil {
				assert.ErrorIs(t, err, connmux.ErrCapacityExceeded)
				return
			}
			time.Sleep(time.Millisecond)
			l.Release()
		}()
	}
	wg.Wait()
	close(stop)
	<-watcherDone

	assert.LessOrEqual(t, maxSeen.Load(), int32(3))
}

func TestReportError_EvictsBrokenHandle(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	m := newMux(t, f, testConfig()) // FailureThreshold: 2

	l, err := m.Acquire(context.Background(), "postgres://acme")
	require.NoError(t, err)
	conn := l.Conn().(*fakeConn)

	l.ReportError(errors.New("broken pipe"))
	assert.Equal(t, 1, m.Stats().Live)
	l.ReportError(errors.New("broken pipe"))
	assert.Equal(t, 0, m.Stats().Live)

	// In-flight work on the evicted handle is not interrupted.
	assert.False(t, conn.closed.Load())
	l.Release()
	assert.Eventually(t, conn.closed.Load, time.Second, time.Millisecond)

	l2, err := m.Acquire(context.Background(), "postgres://acme")
	require.NoError(t, err)
	defer l2.Release()
	assert.NotSame(t, conn, l2.Conn())
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestReportSuccess_ResetsFailures(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	m := newMux(t, f, testConfig())

	l, err := m.Acquire(context.Background(), "postgres://acme")
	require.NoError(t, err)
	defer l.Release()

	l.ReportError(errors.New("timeout"))
	l.ReportSuccess()
	l.ReportError(errors.New("timeout"))
	l.ReportError(nil)

	assert.Equal(t, 1, m.Stats().Live)
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	m := newMux(t, f, testConfig())

	assert.False(t, m.Invalidate("postgres://acme"))

	l, err := m.Acquire(context.Background(), "postgres://acme")
	require.NoError(t, err)
	l.Release()

	assert.True(t, m.Invalidate("postgres://acme"))
	assert.Eventually(t, l.Conn().(*fakeConn).closed.Load, time.Second, time.Millisecond)

	l2, err := m.Acquire(context.Background(), "postgres://acme")
	require.NoError(t, err)
	defer l2.Release()
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestClose_DrainsLeasedHandles(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	m := connmux.New(f.open, testConfig(), connmux.WithLogger(logger.Discard()))

	l, err := m.Acquire(context.Background(), "postgres://acme")
	require.NoError(t, err)
	conn := l.Conn().(*fakeConn)

	closed := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		closed <- m.Close(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, conn.closed.Load(), "handle closed while leased")

	_, err = m.Acquire(context.Background(), "postgres://other")
	assert.ErrorIs(t, err, connmux.ErrClosed)

	l.Release()
	require.NoError(t, <-closed)
	assert.True(t, conn.closed.Load())
}

func TestClose_ForceClosesAtDeadline(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{}
	m := connmux.New(f.open, testConfig(), connmux.WithLogger(logger.Discard()))

	l, err := m.Acquire(context.Background(), "postgres://acme")
	require.NoError(t, err)
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = m.Close(ctx)
	assert.ErrorIs(t, err, connmux.ErrShutdownTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Eventually(t, l.Conn().(*fakeConn).closed.Load, time.Second, time.Millisecond)
	assert.NoError(t, m.Close(context.Background()), "second close is a no-op")
}

func TestClose_WaitsForPendingConstruction(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{gate: make(chan struct{})}
	m := connmux.New(f.open, testConfig(), connmux.WithLogger(logger.Discard()))

	go func() {
		l, err := m.Acquire(context.Background(), "postgres://acme")
		if err == nil {
			time.Sleep(10 * time.Millisecond)
			l.Release()
		}
	}()
	require.Eventually(t, func() bool { return m.Stats().Constructing == 1 }, time.Second, time.Millisecond)

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(f.gate)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.conns, 1)
	assert.True(t, f.conns[0].closed.Load())
}

func TestClose_DeadlineBoundsDrainingHandle(t *testing.T) {
	t.Parallel()

	conn := newDrainingConn()
	t.Cleanup(conn.done)
	m := newMuxWith(t, func(context.Context, string) (connmux.Conn, error) { return conn, nil })

	l, err := m.Acquire(context.Background(), "postgres://acme")
	require.NoError(t, err)
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	returned := make(chan error, 1)
	go func() { returned <- m.Close(ctx) }()

	select {
	case err := <-returned:
		assert.ErrorIs(t, err, connmux.ErrShutdownTimeout)
	case <-time.After(time.Second):
		t.Fatal("Close did not return after its deadline")
	}
	assert.False(t, conn.closed.Load(), "in-flight work still running")

	conn.done()
	assert.Eventually(t, conn.closed.Load, time.Second, time.Millisecond)
}

func TestClose_ResetsHandlesLeasedAtDeadline(t *testing.T) {
	t.Parallel()

	conn := &resettableConn{drainingConn: newDrainingConn()}
	m := newMuxWith(t, func(context.Context, string) (connmux.Conn, error) { return conn, nil })

	l, err := m.Acquire(context.Background(), "postgres://acme")
	require.NoError(t, err)
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, m.Close(ctx), connmux.ErrShutdownTimeout)
	assert.Eventually(t, conn.closed.Load, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), conn.resets.Load())
}

func TestEviction_DoesNotWaitForDrainingClose(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		conns []*drainingConn
	)
	factory := func(context.Context, string) (connmux.Conn, error) {
		c := newDrainingConn()
		mu.Lock()
		conns = append(conns, c)
		mu.Unlock()
		return c, nil
	}
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.done()
		}
	})

	clock := newFakeClock()
	m := newMuxWith(t, factory, connmux.WithClock(clock.Now))

	t.Run("idle eviction", func(t *testing.T) {
		l, err := m.Acquire(context.Background(), "postgres://acme")
		require.NoError(t, err)
		l.Release()
		clock.Advance(2 * time.Minute)

		evicted := make(chan int, 1)
		go func() { evicted <- m.EvictIdle() }()
		select {
		case n := <-evicted:
			assert.Equal(t, 1, n)
		case <-time.After(time.Second):
			t.Fatal("EvictIdle blocked on a draining handle")
		}
	})

	t.Run("invalidated while leased", func(t *testing.T) {
		l, err := m.Acquire(context.Background(), "postgres://acme")
		require.NoError(t, err)
		old := l.Conn()

		assert.True(t, m.Invalidate("postgres://acme"))
		l.Release()

		acquired := make(chan *connmux.Lease, 1)
		go func() {
			next, err := m.Acquire(context.Background(), "postgres://acme")
			if err == nil {
				acquired <- next
			}
		}()
		select {
		case next := <-acquired:
			assert.NotSame(t, old, next.Conn())
			next.Release()
		case <-time.After(time.Second):
			t.Fatal("Acquire blocked on a draining handle")
		}
		assert.Equal(t, 1, m.Stats().Live)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_ = m.Close(ctx)
}
