package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jamesainslie/changescan/pkg/changescan/logging"
)

// Defaults used when New receives non-positive values.
const (
	DefaultQueueSize   = 50
	DefaultPollTimeout = 100 * time.Millisecond
)

var (
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("dispatcher closed")

	// ErrNotStarted is returned by Wait when Start was never called.
	ErrNotStarted = errors.New("dispatcher not started")
)

// Stats counts the events handed to the processor.
type Stats struct {
	Created int
	Changed int
	Deleted int
}

// Total returns the number of dispatched events.
func (s Stats) Total() int {
	return s.Created + s.Changed + s.Deleted
}

// Dispatcher drains a bounded queue of events on one goroutine and
// forwards each to a ChangeProcessor. Producers block in Send while the
// queue is full.
//
// Lifecycle: Start, any number of concurrent Send calls, Close once all
// producers are done, then Wait.
type Dispatcher struct {
	processor   ChangeProcessor
	queue       chan StateChangeEvent
	pollTimeout time.Duration
	done        chan struct{}

	mu      sync.RWMutex
	closed  bool
	started bool

	// Written by the consumer goroutine only; read after done is closed.
	stats Stats
	errs  []error
}

// New returns a dispatcher with room for queueSize pending events.
// pollTimeout is how long a blocked Send waits before re-checking its
// context and the closed flag.
func New(processor ChangeProcessor, queueSize int, pollTimeout time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Dispatcher{
		processor:   processor,
		queue:       make(chan StateChangeEvent, queueSize),
		pollTimeout: pollTimeout,
		done:        make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Calling it twice has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}
	d.started = true
	go d.consume()
}

func (d *Dispatcher) consume() {
	defer close(d.done)

	log := logging.Get("dispatch")
	for ev := range d.queue {
		if err := d.deliver(ev); err != nil {
			log.Warn("change processor failed", "path", ev.Path, "kind", ev.Kind(), "error", err)
			d.errs = append(d.errs, fmt.Errorf("%s %s: %w", ev.Kind(), ev.Path, err))
			continue
		}
		switch ev.Kind() {
		case KindCreated:
			d.stats.Created++
		case KindChanged:
			d.stats.Changed++
		case KindDeleted:
			d.stats.Deleted++
		}
	}
	log.Debug("queue drained", "dispatched", d.stats.Total(), "failed", len(d.errs))
}

func (d *Dispatcher) deliver(ev StateChangeEvent) error {
	if p, ok := d.processor.(EventProcessor); ok {
		return p.Process(ev)
	}
	switch ev.Kind() {
	case KindCreated:
		return d.processor.Created(ev.Path)
	case KindDeleted:
		return d.processor.Deleted(ev.Path)
	default:
		return d.processor.Changed(ev.Path)
	}
}

// Send enqueues ev, blocking while the queue is full. It returns the
// context's error if ctx ends first and ErrClosed after Close.
func (d *Dispatcher) Send(ctx context.Context, ev StateChangeEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	timer := time.NewTimer(d.pollTimeout)
	defer timer.Stop()

	for {
		select {
		case d.queue <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			logging.Get("dispatch").Debug("queue full, retrying", "path", ev.Path, "capacity", cap(d.queue))
			timer.Reset(d.pollTimeout)
		}
	}
}

// Close marks the end of production. Pending events are still delivered.
// It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	close(d.queue)
}

// Wait closes the dispatcher, blocks until every queued event has been
// delivered, and returns the joined processor errors.
func (d *Dispatcher) Wait() error {
	d.mu.RLock()
	started := d.started
	d.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	d.Close()
	<-d.done
	return errors.Join(d.errs...)
}

// Stats returns the per-kind count of successfully delivered events. It is
// only meaningful after Wait returns.
func (d *Dispatcher) Stats() Stats {
	select {
	case <-d.done:
		return d.stats
	default:
		return Stats{}
	}
}
