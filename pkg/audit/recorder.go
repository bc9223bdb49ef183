package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/tenantmux/pkg/logger"
)

// Storage persists batches of audit events. Implementations should write a
// batch atomically where the backend allows it.
type Storage interface {
	StoreBatch(ctx context.Context, events []Event) error
}

// StorageFunc adapts a function to Storage.
type StorageFunc func(ctx context.Context, events []Event) error

func (f StorageFunc) StoreBatch(ctx context.Context, events []Event) error {
	return f(ctx, events)
}

// FailureHandler is called with every event that could not be stored.
type FailureHandler func(events []Event, reason string, err error)

// Config controls the recorder's queue and batching.
type Config struct {
	BufferSize     int           `env:"AUDIT_BUFFER_SIZE" envDefault:"1024"`
	BatchSize      int           `env:"AUDIT_BATCH_SIZE" envDefault:"100"`
	FlushInterval  time.Duration `env:"AUDIT_FLUSH_INTERVAL" envDefault:"200ms"`
	StorageTimeout time.Duration `env:"AUDIT_STORAGE_TIMEOUT" envDefault:"5s"`
}

// DefaultConfig returns the configuration used when no environment is loaded.
func DefaultConfig() Config {
	return Config{
		BufferSize:     1024,
		BatchSize:      100,
		FlushInterval:  200 * time.Millisecond,
		StorageTimeout: 5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.StorageTimeout <= 0 {
		c.StorageTimeout = d.StorageTimeout
	}
	return c
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithFailureHandler replaces the default alerting handler.
func WithFailureHandler(fn FailureHandler) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.onFailure = fn
		}
	}
}

// WithLogger sets the recorder's logger.
func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// Recorder writes audit events asynchronously. Recording never blocks and
// never fails the caller; events that cannot be stored go to the failure
// handler instead.
type Recorder struct {
	storage   Storage
	cfg       Config
	onFailure FailureHandler
	logger    *slog.Logger
	now       func() time.Time
	metrics   *recorderMetrics

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// NewRecorder starts a recorder writing to storage.
func NewRecorder(storage Storage, cfg Config, opts ...RecorderOption) *Recorder {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}

	cfg = cfg.withDefaults()
	r := &Recorder{
		storage: storage,
		cfg:     cfg,
		logger:  slog.Default(),
		now:     time.Now,
		queue:   make(chan Event, cfg.BufferSize),
		done:    make(chan struct{}),
	}
	r.onFailure = r.alert
	for _, opt := range opts {
		opt(r)
	}
	r.metrics = newRecorderMetrics(func() float64 { return float64(len(r.queue)) })

	go r.worker()

	return r
}

// PrometheusCollectors returns the recorder's collectors for registration.
func (r *Recorder) PrometheusCollectors() []prometheus.Collector {
	return r.metrics.collectors()
}

// Record queues one mutation for storage.
func (r *Recorder) Record(ac *Context, e Entry) {
	ev, err := newEvent(ac, e, r.now().UTC())
	if err != nil {
		r.fail([]Event{ev}, ReasonInvalid, err)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.fail([]Event{ev}, ReasonClosed, ErrRecorderClosed)
		return
	}

	select {
	case r.queue <- ev:
	default:
		r.fail([]Event{ev}, ReasonQueueFull, ErrQueueFull)
	}
}

// Close stops accepting events and waits until the queue is drained or ctx ends.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return errors.Join(ErrShutdownTimeout, ctx.Err())
	}
}

func (r *Recorder) worker() {
	defer close(r.done)

	batch := make([]Event, 0, r.cfg.BatchSize)
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.StorageTimeout)
		defer cancel()

		if err := r.storage.StoreBatch(ctx, batch); err != nil {
			r.fail(batch, ReasonStorage, err)
		} else {
			for _, ev := range batch {
				r.metrics.recorded.WithLabelValues(string(ev.Status)).Inc()
			}
		}

		// the failure handler may retain the slice
		batch = make([]Event, 0, r.cfg.BatchSize)
	}

	for {
		select {
		case ev, ok := <-r.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= r.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (r *Recorder) fail(events []Event, reason string, err error) {
	r.metrics.failures.WithLabelValues(reason).Add(float64(len(events)))
	r.onFailure(events, reason, err)
}

func (r *Recorder) alert(events []Event, reason string, err error) {
	for _, ev := range events {
		r.logger.Error("audit event lost",
			logger.Alert(),
			logger.Reason(reason),
			logger.Error(err),
			logger.TenantID(ev.TenantID),
			logger.CompanyID(ev.CompanyID),
			slog.String("action", ev.Action),
			slog.String("event_id", ev.ID.String()),
		)
	}
}
