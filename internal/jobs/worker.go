package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Nit2312/NyaySarthi/internal/domain"
)

// Worker drives non-terminal jobs of a Pipeline to completion.
type Worker struct {
	pipeline    *Pipeline
	poll        time.Duration
	concurrency int
	logger      *zap.Logger
}

// NewWorker creates a Worker over pipeline.
// If pollInterval is <= 0, it defaults to 500ms; concurrency defaults to 4.
func NewWorker(pipeline *Pipeline, concurrency int, pollInterval time.Duration, logger *zap.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		pipeline:    pipeline,
		poll:        pollInterval,
		concurrency: concurrency,
		logger:      logger.Named("worker"),
	}
}

// Run claims and processes jobs until ctx is cancelled, then waits for the
// jobs it started.
func (w *Worker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for {
		if ctx.Err() != nil {
			break
		}

		id, ok := w.pipeline.claimNext()
		if ok {
			g.Go(func() error {
				w.process(gctx, id)
				return nil
			})
			continue
		}

		select {
		case <-ctx.Done():
		case <-w.pipeline.wake:
		case <-time.After(w.poll):
		}
	}

	return g.Wait()
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	id, ok := w.pipeline.claimNext()
	if !ok {
		return false, nil
	}
	if err := w.process(ctx, id); err != nil {
		return true, fmt.Errorf("processing job %s: %w", id, err)
	}
	return true, nil
}

func (w *Worker) process(ctx context.Context, id string) error {
	defer w.pipeline.release(id)

	rec, err := w.pipeline.Process(ctx, id)
	if err != nil {
		// Removal while in flight is routine, not a worker failure.
		if errors.Is(err, domain.ErrNotFound) {
			w.logger.Debug("job removed while processing", zap.String("job_id", id))
			return nil
		}
		w.logger.Error("worker iteration failed", zap.String("job_id", id), zap.Error(err))
		return err
	}
	w.logger.Debug("job finished", zap.String("job_id", id), zap.String("status", string(rec.Status)))
	return nil
}
