package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/hotel-scout/internal/metrics"
)

// DefaultIdleTimeout is how long a user's worker waits for the next event before exiting.
const DefaultIdleTimeout = time.Minute

const queueSize = 16

// ErrQueueFull is returned when a user's queue cannot take another event.
var ErrQueueFull = errors.New("user event queue is full")

// Handler processes one event.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

// Admitter is implemented by handlers that vet events before they are queued.
// Admit may replace the event; a refused event is not queued.
type Admitter interface {
	Admit(ctx context.Context, ev Event) (Event, bool)
}

// releaser is implemented by admitted events that hold a resource until handled.
type releaser interface {
	Release()
}

func release(ev Event) {
	if r, ok := ev.(releaser); ok {
		r.Release()
	}
}

// Dispatcher runs events of the same user one at a time and in arrival order.
// Different users are handled concurrently.
type Dispatcher struct {
	handler Handler
	logger  *slog.Logger
	workers map[int64]*worker
	idle    time.Duration
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewDispatcher creates a dispatcher. A non-positive idle uses DefaultIdleTimeout.
func NewDispatcher(handler Handler, idle time.Duration, logger *slog.Logger) *Dispatcher {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handler: handler,
		logger:  logger.With("component", "dispatcher"),
		workers: make(map[int64]*worker),
		idle:    idle,
	}
}

type worker struct {
	queue   chan Event
	pending int
}

// Dispatch queues ev for its user, starting a worker when none is running.
// It never blocks: when the user's queue is full the event is dropped with
// ErrQueueFull so one busy user cannot stall the others.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a, ok := d.handler.(Admitter); ok {
		admitted, ok := a.Admit(ctx, ev)
		if !ok {
			return nil
		}
		ev = admitted
	}
	userID := ev.Source().UserID

	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.workers[userID]
	if !ok {
		w = &worker{queue: make(chan Event, queueSize)}
		d.workers[userID] = w
		d.wg.Add(1)
		go d.work(ctx, userID, w)
	}

	select {
	case w.queue <- ev:
		w.pending++
		return nil
	default:
		release(ev)
		d.logger.Warn("Dropping event, queue is full", "user_id", userID, "kind", ev.Kind())
		return fmt.Errorf("%w: user %d", ErrQueueFull, userID)
	}
}

// Active returns the number of running workers.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.workers)
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context, userID int64, w *worker) {
	defer d.wg.Done()

	timer := time.NewTimer(d.idle)
	defer timer.Stop()

	for {
		select {
		case ev := <-w.queue:
			d.mu.Lock()
			w.pending--
			d.mu.Unlock()
			d.handle(ctx, ev)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d.idle)
		case <-timer.C:
			if d.retire(userID, w, false) {
				return
			}
			timer.Reset(d.idle)
		case <-ctx.Done():
			d.retire(userID, w, true)
			d.drain(w)
			return
		}
	}
}

// retire removes the worker unless an event is on its way to it.
func (d *Dispatcher) retire(userID int64, w *worker, force bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w.pending > 0 && !force {
		return false
	}
	if d.workers[userID] == w {
		delete(d.workers, userID)
	}
	return true
}

// drain releases events left in a stopped worker's queue.
func (d *Dispatcher) drain(w *worker) {
	for {
		select {
		case ev := <-w.queue:
			release(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev Event) {
	metrics.Events.WithLabelValues(ev.Kind()).Inc()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Event handler panicked", "user_id", ev.Source().UserID, "panic", r)
		}
	}()
	if err := d.handler.Handle(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Error("Failed to handle event", "user_id", ev.Source().UserID, "kind", ev.Kind(), "error", err)
	}
}
