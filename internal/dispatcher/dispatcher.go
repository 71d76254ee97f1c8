package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/mediatrack/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Sink receives built events. Delivery errors are returned to the caller of
// Dispatch unchanged.
type Sink interface {
	Track(ctx context.Context, e *core.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e *core.Event) error

// Track calls f.
func (f SinkFunc) Track(ctx context.Context, e *core.Event) error {
	return f(ctx, e)
}

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures sink registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered delivers to the sink from its own goroutine through a queue of
// the given size. Dispatch only enqueues; delivery errors are logged and
// counted but not returned.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered sink block Dispatch when its queue is full
// instead of dropping the event.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the sink.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Stats are the delivery counts of one sink.
type Stats struct {
	Dispatched int64 `json:"dispatched"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped,omitempty"`
	Queued     int   `json:"queued,omitempty"`
}

type entry struct {
	sink       Sink
	dispatched atomic.Int64
	failed     atomic.Int64
	dropped    atomic.Int64

	// set for buffered sinks
	buffer   chan *core.Event
	blocking bool
}

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher closed")

// Dispatcher delivers events to named sinks.
type Dispatcher struct {
	logger Logger

	// OTEL metrics
	sinkCount  metric.Int64ObservableGauge
	queueSize  metric.Int64ObservableGauge
	dispatched metric.Int64Counter
	failed     metric.Int64Counter
	dropped    metric.Int64Counter

	mu      sync.RWMutex
	sinks   map[string]*entry
	closed  bool
	workers sync.WaitGroup
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		sinks:  make(map[string]*entry),
		logger: logger,
	}

	m := meter()

	var err error

	d.sinkCount, err = m.Int64ObservableGauge(
		"dispatcher.sinks",
		metric.WithDescription("Number of registered sinks"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sinks gauge: %w", err)
	}

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events queued for buffered sinks"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			o.ObserveInt64(d.sinkCount, int64(len(d.sinks)))
			for name, s := range d.sinks {
				if s.buffer != nil {
					o.ObserveInt64(d.queueSize, int64(len(s.buffer)),
						metric.WithAttributes(attribute.String("sink", name)))
				}
			}
			return nil
		},
		d.sinkCount, d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering sinks callback: %w", err)
	}

	d.dispatched, err = m.Int64Counter(
		"dispatcher.events.dispatched",
		metric.WithDescription("Total events delivered to a sink"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dispatched counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.events.failed",
		metric.WithDescription("Total events a sink failed to accept"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to a full sink queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds s under name, replacing any sink already registered there.
// The queue of a replaced buffered sink is drained by its goroutine.
func (d *Dispatcher) Register(name string, s Sink, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logged {
		s = d.withLogging(name, s)
	}

	e := &entry{sink: s}
	if cfg.bufferSize > 0 {
		e.buffer = make(chan *core.Event, cfg.bufferSize)
		e.blocking = cfg.blocking
		d.workers.Add(1)
		go d.drain(name, e)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.sinks[name]; ok && old.buffer != nil {
		close(old.buffer)
	}
	d.sinks[name] = e
}

// Dispatch delivers e to the named sinks, or to every registered sink when
// no names are given. Names without a registered sink are ignored. Buffered
// sinks only receive e on their queue. Errors of the other sinks, and of
// full queues, are joined.
func (d *Dispatcher) Dispatch(ctx context.Context, e *core.Event, names ...string) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrClosed
	}
	targets := make(map[string]*entry, len(d.sinks))
	if len(names) == 0 {
		for name, s := range d.sinks {
			targets[name] = s
		}
	} else {
		for _, name := range names {
			if s, ok := d.sinks[name]; ok {
				targets[name] = s
			}
		}
	}

	var errs []error
	var direct []string
	for _, name := range sortedKeys(targets) {
		s := targets[name]
		if s.buffer == nil {
			direct = append(direct, name)
			continue
		}
		if err := d.enqueue(ctx, name, s, e); err != nil {
			errs = append(errs, err)
		}
	}
	d.mu.RUnlock()

	for _, name := range direct {
		if err := d.deliver(ctx, name, targets[name], e); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// enqueue must be called with d.mu read-locked so the queue is not closed
// underneath it.
func (d *Dispatcher) enqueue(ctx context.Context, name string, s *entry, e *core.Event) error {
	if s.blocking {
		select {
		case s.buffer <- e:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("sink %s: %w", name, ctx.Err())
		}
	}
	select {
	case s.buffer <- e:
		return nil
	default:
		s.dropped.Add(1)
		d.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", name)))
		return fmt.Errorf("sink %s: queue full", name)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, name string, s *entry, e *core.Event) error {
	sinkAttr := metric.WithAttributes(attribute.String("sink", name))
	if err := s.sink.Track(ctx, e); err != nil {
		s.failed.Add(1)
		d.failed.Add(ctx, 1, sinkAttr)
		return err
	}
	s.dispatched.Add(1)
	d.dispatched.Add(ctx, 1, sinkAttr)
	return nil
}

func (d *Dispatcher) drain(name string, s *entry) {
	defer d.workers.Done()
	for e := range s.buffer {
		if err := d.deliver(context.Background(), name, s, e); err != nil {
			d.logger.Error("buffered dispatch failed", "sink", name, "type", e.Data.Type, "error", err)
		}
	}
}

// Close stops accepting events and waits until every buffered sink has
// delivered its queue. Sinks themselves are not closed.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, s := range d.sinks {
		if s.buffer != nil {
			close(s.buffer)
		}
	}
	d.mu.Unlock()
	d.workers.Wait()
}

// HasSink returns true if a sink is registered under name.
func (d *Dispatcher) HasSink(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.sinks[name]
	return ok
}

// Names returns the registered sink names in sorted order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedKeys(d.sinks)
}

// Stats returns the delivery counts of every registered sink.
func (d *Dispatcher) Stats() map[string]Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]Stats, len(d.sinks))
	for name, s := range d.sinks {
		out[name] = Stats{
			Dispatched: s.dispatched.Load(),
			Failed:     s.failed.Load(),
			Dropped:    s.dropped.Load(),
			Queued:     len(s.buffer),
		}
	}
	return out
}

func (d *Dispatcher) withLogging(name string, s Sink) Sink {
	return SinkFunc(func(ctx context.Context, e *core.Event) error {
		start := time.Now()
		d.logger.Debug("dispatching event", "sink", name, "type", e.Data.Type, "player", e.Data.PlayerID)

		err := s.Track(ctx, e)

		if err != nil {
			d.logger.Error("dispatch failed", "sink", name, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("dispatch complete", "sink", name, "duration", time.Since(start))
		}

		return err
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
