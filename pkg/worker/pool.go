package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"hyperdrive/pkg/logger"
)

// Pool runs independent workers in one process
type Pool struct {
	workers []*Worker
	logger  logger.Logger
}

// IDs derives n worker ids from base. A single worker keeps base unchanged.
func IDs(base string, n int) []string {
	if n <= 1 {
		return []string{base}
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%d", base, i+1)
	}
	return ids
}

// NewPool builds one worker per id with newWorker
func NewPool(ids []string, newWorker func(id string) *Worker, log logger.Logger) *Pool {
	if log == nil {
		log = logger.GetLogger()
	}
	p := &Pool{logger: log}
	for _, id := range ids {
		p.workers = append(p.workers, newWorker(id))
	}
	return p
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return len(p.workers)
}

// Run starts every worker and blocks until all have stopped. Workers stop
// when ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.InfoWithFields("starting worker pool", map[string]interface{}{
		"num_workers": len(p.workers),
	})

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		w := w
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	err := g.Wait()

	p.logger.Info("worker pool stopped")
	return err
}
