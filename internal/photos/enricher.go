package photos

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Veraticus/hotel-scout/internal/metrics"
	"github.com/Veraticus/hotel-scout/internal/model"
	"github.com/Veraticus/hotel-scout/internal/service"
)

// Request identifies the hotel a task enriches.
type Request struct {
	SessionID string
	HotelID   string
	HotelName string
	City      string
	UserID    int64
	RequestID int64
}

// Sink receives a task's outcome. Implementations must check Task.Cancelled
// under the same lock that guards the state they write.
type Sink interface {
	PhotosReady(ctx context.Context, task *Task, photos []model.Photo)
	PhotosMissing(ctx context.Context, task *Task, err error)
}

// Task is one background enrichment. Cancellation is cooperative: the task checks
// its token before every side effect.
type Task struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	Request
}

// Cancelled reports whether the task was superseded or stopped.
func (t *Task) Cancelled() bool {
	return t.ctx.Err() != nil
}

// Cancel stops the task at its next checkpoint.
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Enricher runs at most one enrichment task per user.
type Enricher struct {
	searcher Searcher
	store    service.PhotoStore
	logger   *slog.Logger
	tasks    map[int64]*Task
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewEnricher creates an enricher. A nil store skips persistence.
func NewEnricher(searcher Searcher, store service.PhotoStore, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		searcher: searcher,
		store:    store,
		logger:   logger.With("component", "enricher"),
		tasks:    make(map[int64]*Task),
	}
}

// Start cancels the user's running task, if any, and starts a new one.
func (e *Enricher) Start(ctx context.Context, req Request, sink Sink) *Task {
	taskCtx, cancel := context.WithCancel(ctx)
	task := &Task{
		Request: req,
		ctx:     taskCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	e.mu.Lock()
	if prev, ok := e.tasks[req.UserID]; ok {
		prev.Cancel()
	}
	e.tasks[req.UserID] = task
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(task, sink)
	return task
}

// Cancel stops the user's running task, if any.
func (e *Enricher) Cancel(userID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.tasks[userID]; ok {
		t.Cancel()
		delete(e.tasks, userID)
	}
}

// Running reports whether the user has an unfinished task.
func (e *Enricher) Running(userID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.tasks[userID]
	return ok
}

// Wait blocks until every started task has finished.
func (e *Enricher) Wait() {
	e.wg.Wait()
}

func (e *Enricher) run(t *Task, sink Sink) {
	defer e.wg.Done()
	defer close(t.done)
	defer e.release(t)
	defer t.cancel()

	logger := e.logger.With("user_id", t.UserID, "hotel_id", t.HotelID)

	if t.Cancelled() {
		e.cancelled(logger)
		return
	}

	photos, err := e.searcher.Search(t.ctx, t.HotelName, t.City)
	if t.Cancelled() {
		e.cancelled(logger)
		return
	}
	if err != nil {
		logger.Warn("Photo search failed", "error", err)
		metrics.PhotoTasks.WithLabelValues("failed").Inc()
		sink.PhotosMissing(t.ctx, t, err)
		return
	}
	if len(photos) == 0 {
		logger.Debug("No photos found", "hotel", t.HotelName)
		metrics.PhotoTasks.WithLabelValues("missing").Inc()
		sink.PhotosMissing(t.ctx, t, nil)
		return
	}

	if e.store != nil && t.RequestID != 0 {
		saved, err := e.store.SaveHotelPhotos(t.ctx, t.RequestID, t.HotelID, photos)
		switch {
		case err != nil:
			logger.Warn("Failed to persist photos", "error", err)
		case !saved:
			logger.Debug("Photos already persisted")
		}
	}

	if t.Cancelled() {
		e.cancelled(logger)
		return
	}
	metrics.PhotoTasks.WithLabelValues("ready").Inc()
	sink.PhotosReady(t.ctx, t, photos)
}

func (e *Enricher) cancelled(logger *slog.Logger) {
	logger.Debug("Photo task cancelled")
	metrics.PhotoTasks.WithLabelValues("cancelled").Inc()
}

func (e *Enricher) release(t *Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tasks[t.UserID] == t {
		delete(e.tasks, t.UserID)
	}
}
