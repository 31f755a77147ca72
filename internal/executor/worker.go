package executor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// runParallel runs nodes on e.workers goroutines. A node becomes ready when
// its last dependency finishes, whatever the outcome; step then decides
// whether it runs or is skipped.
func (e *Executor) runParallel(ctx context.Context, r *run, logger *slog.Logger) {
	n := len(r.net.Nodes)
	if n == 0 {
		return
	}
	pending := make([]int32, n)
	dependents := make([][]int, n)
	ready := make(chan int, n)

	for i := range r.net.Nodes {
		deps := r.net.Dependencies(i)
		pending[i] = int32(len(deps))
		for _, d := range deps {
			dependents[d] = append(dependents[d], i)
		}
		if len(deps) == 0 {
			ready <- i
		}
	}

	var remaining sync.WaitGroup
	remaining.Add(n)
	go func() {
		remaining.Wait()
		close(ready)
	}()

	var g errgroup.Group
	for w := 0; w < e.workers; w++ {
		g.Go(func() error {
			e.worker(ctx, r, w, ready, pending, dependents, &remaining, logger)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		r.fail(err)
	}
}

// worker is the processing loop of a single worker.
func (e *Executor) worker(ctx context.Context, r *run, workerID int, ready chan int, pending []int32, dependents [][]int, remaining *sync.WaitGroup, logger *slog.Logger) {
	workerLogger := logger.With("workerID", workerID)
	workerLogger.Debug("Worker started.")

	for i := range ready {
		e.step(ctx, r, i, workerLogger)
		for _, d := range dependents[i] {
			if atomic.AddInt32(&pending[d], -1) == 0 {
				ready <- d
			}
		}
		remaining.Done()
	}
	workerLogger.Debug("Worker finished.")
}
