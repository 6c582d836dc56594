// Package worker runs bounded fan-out jobs on a fixed number of goroutines.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/sessionrec/pkg/logger"
	"github.com/okian/sessionrec/pkg/metrics"
)

const defaultPoolSize = 8

// Task processes the job at index idx.
type Task = func(ctx context.Context, idx int) error

// Pool dispatches indexed jobs to at most size workers. Every dispatched job
// runs to completion; Run does not cancel siblings when one job fails.
type Pool struct {
	name   string
	size   int
	logger logger.Logger
	active atomic.Int64
}

// NewPool creates a pool with at most size concurrent workers.
func NewPool(size int, opts ...Option) *Pool {
	if size < 1 {
		size = defaultPoolSize
	}
	p := &Pool{
		name:   "worker-pool",
		size:   size,
		logger: logger.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the configured worker limit.
func (p *Pool) Size() int { return p.size }

// Workers returns how many goroutines Run would start for n jobs.
func (p *Pool) Workers(n int) int {
	return min(p.size, n)
}

// Run executes task for every index in [0, n) and waits for all of them.
// It returns the first error observed, after every job has finished.
func (p *Pool) Run(ctx context.Context, n int, task Task) error {
	if n <= 0 {
		return nil
	}
	workers := p.Workers(n)

	jobs := make(chan int, n)
	for i := range n {
		jobs <- i
	}
	close(jobs)

	start := time.Now()
	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			p.trackActive(1)
			defer p.trackActive(-1)

			var first error
			for idx := range jobs {
				jobStart := time.Now()
				err := p.safeRun(ctx, task, idx)
				metrics.RecordWorkerProcessingLatency(float64(time.Since(jobStart).Milliseconds()))
				if err != nil {
					metrics.RecordWorkerError()
					p.logger.Warn(ctx, "job failed",
						logger.String("pool", p.name),
						logger.Int("worker", w),
						logger.Int("job", idx),
						logger.Error(err))
					if first == nil {
						first = err
					}
				}
			}
			return first
		})
	}

	err := g.Wait()
	p.logger.Debug(ctx, "fan-out finished",
		logger.String("pool", p.name),
		logger.Int("jobs", n),
		logger.Int("workers", workers),
		logger.Duration("elapsed", time.Since(start)))
	return err
}

func (p *Pool) safeRun(ctx context.Context, task Task, idx int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %d panicked: %v", idx, r)
		}
	}()
	return task(ctx, idx)
}

func (p *Pool) trackActive(delta int64) {
	metrics.UpdateWorkerActiveCount(int(p.active.Add(delta)))
}
