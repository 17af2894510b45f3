package indexer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrAlreadyRunning is returned when an ingestion trigger arrives while a
// run is in progress. The trigger is dropped, not queued.
var ErrAlreadyRunning = errors.New("ingestion already in progress")

// IngestFunc is the work a trigger dispatches, normally Pipeline.IngestAll.
type IngestFunc func(ctx context.Context) (*IngestResult, error)

// Runner serializes ingestion onto a single worker and guarantees at most
// one run is active process-wide, regardless of trigger source. Acquisition
// is non-blocking: a trigger arriving mid-run is a no-op.
type Runner struct {
	ingest    IngestFunc
	onSuccess func(*IngestResult)
	logger    *slog.Logger

	mu      sync.Mutex // held for the full duration of a run
	running atomic.Bool
	jobs    chan struct{}
}

// NewRunner creates a runner. onSuccess, if non-nil, is invoked after every
// successful run (the query path reads the index through its stable alias,
// so the callback is for bookkeeping, not for swapping handles).
func NewRunner(ingest IngestFunc, onSuccess func(*IngestResult), logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		ingest:    ingest,
		onSuccess: onSuccess,
		logger:    logger,
		// Capacity one: the lock guarantees at most one outstanding job,
		// so Trigger never blocks on the send.
		jobs: make(chan struct{}, 1),
	}
}

// Start launches the worker goroutine. The worker exits when ctx is
// cancelled; there is no cancellation of an in-flight run.
func (r *Runner) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.jobs:
				r.run(ctx)
			}
		}
	}()
}

// Trigger requests an ingestion run. Returns ErrAlreadyRunning if a run is
// active; the caller is expected to surface the conflict, not retry.
func (r *Runner) Trigger() error {
	if !r.mu.TryLock() {
		return ErrAlreadyRunning
	}
	r.running.Store(true)
	r.jobs <- struct{}{}
	return nil
}

// Running reports whether an ingestion run is currently active.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// RunOnce executes an ingestion synchronously, blocking until it finishes.
// Used at startup when no index exists yet. It takes the same lock as
// Trigger, so concurrent triggers during the run are dropped.
func (r *Runner) RunOnce(ctx context.Context) (*IngestResult, error) {
	r.mu.Lock()
	r.running.Store(true)
	defer func() {
		r.running.Store(false)
		r.mu.Unlock()
	}()

	result, err := r.ingest(ctx)
	if err != nil {
		return nil, err
	}
	if r.onSuccess != nil {
		r.onSuccess(result)
	}
	return result, nil
}

// run executes one dispatched job. Failures are logged, never propagated:
// the trigger that caused the run has long since been answered.
func (r *Runner) run(ctx context.Context) {
	defer func() {
		r.running.Store(false)
		r.mu.Unlock()
	}()

	r.logger.Info("ingestion starting")
	result, err := r.ingest(ctx)
	if err != nil {
		r.logger.Error("ingestion failed", "error", err)
		return
	}

	if r.onSuccess != nil {
		r.onSuccess(result)
	}
	r.logger.Info("ingestion finished", "documents", result.TotalDocuments)
}
