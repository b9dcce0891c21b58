package utils

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerPool runs submitted jobs on a bounded number of goroutines.
// The first job error cancels the pool context; remaining jobs are skipped.
type WorkerPool struct {
	ctx   context.Context
	group *errgroup.Group
}

// NewWorkerPool creates a WorkerPool running at most maxWorkers jobs at once.
// A non-positive maxWorkers means no limit.
func NewWorkerPool(ctx context.Context, maxWorkers int) *WorkerPool {
	g, gctx := errgroup.WithContext(ctx)
	if maxWorkers > 0 {
		g.SetLimit(maxWorkers)
	}
	return &WorkerPool{ctx: gctx, group: g}
}

// Submit enqueues a job, blocking while the pool is at capacity.
func (wp *WorkerPool) Submit(job func(ctx context.Context) error) {
	wp.group.Go(func() error {
		if err := wp.ctx.Err(); err != nil {
			return err
		}
		return job(wp.ctx)
	})
}

// Wait blocks until all submitted jobs have completed and returns the first error.
func (wp *WorkerPool) Wait() error {
	return wp.group.Wait()
}
