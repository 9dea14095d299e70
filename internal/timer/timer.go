// Package timer provides the periodic tick source that drives preemption.
package timer

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the base tick, the smallest schedulable unit.
const DefaultInterval = time.Millisecond

// MaxHandlers bounds the number of concurrently registered handlers.
const MaxHandlers = 8

var (
	ErrStarted         = errors.New("timer: already started")
	ErrInvalidPeriod   = errors.New("timer: period must be at least one tick")
	ErrTooManyHandlers = errors.New("timer: too many handlers")
	ErrNilHandler      = errors.New("timer: nil handler")
)

// Handler is invoked on the tick goroutine with the current tick count.
type Handler func(tick int64)

type registration struct {
	fn     Handler
	period int64
	due    int64
}

// Timer emits base ticks, counts them atomically and multiplexes registered
// periodic handlers.
type Timer struct {
	interval time.Duration
	count    atomic.Int64
	started  atomic.Bool

	mu       sync.Mutex
	handlers []*registration

	ch       chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a timer with the given base interval. It does not tick until
// Start is called or Tick is driven by hand.
func New(interval time.Duration) *Timer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Timer{
		interval: interval,
		ch:       make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Start begins emitting ticks at the base interval.
func (t *Timer) Start() error {
	if !t.started.CompareAndSwap(false, true) {
		return ErrStarted
	}

	ticker := time.NewTicker(t.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.Tick()
			case <-t.stop:
				return
			}
		}
	}()
	return nil
}

// Stop halts the tick source. Safe to call more than once.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Register adds fn to be called every period ticks, starting period ticks
// from now.
func (t *Timer) Register(fn Handler, period int64) error {
	if fn == nil {
		return ErrNilHandler
	}
	if period < 1 {
		return ErrInvalidPeriod
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.handlers) >= MaxHandlers {
		return ErrTooManyHandlers
	}
	t.handlers = append(t.handlers, &registration{
		fn:     fn,
		period: period,
		due:    t.count.Load() + period,
	})
	return nil
}

// Tick advances the clock by one base tick and runs every due handler in
// registration order. Handlers run outside the registry lock, so a handler
// may register further handlers.
func (t *Timer) Tick() {
	now := t.count.Add(1)

	t.mu.Lock()
	due := make([]Handler, 0, len(t.handlers))
	for _, r := range t.handlers {
		if r.due > now {
			continue
		}
		due = append(due, r.fn)
		r.due = now + r.period
	}
	t.mu.Unlock()

	for _, fn := range due {
		fn(now)
	}

	select {
	case t.ch <- struct{}{}:
	default:
	}
}

// C delivers a signal after ticks. Signals coalesce, so a slow reader sees
// at most one pending signal.
func (t *Timer) C() <-chan struct{} { return t.ch }

// Ticks returns the number of base ticks elapsed.
func (t *Timer) Ticks() int64 { return t.count.Load() }

// Now returns the elapsed time in milliseconds, derived from the tick count.
func (t *Timer) Now() int64 {
	return t.count.Load() * int64(t.interval) / int64(time.Millisecond)
}

// Interval returns the base tick interval.
func (t *Timer) Interval() time.Duration { return t.interval }
