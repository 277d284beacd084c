// Package dispatcher manages worker fan-out over the crawl queues.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/worker"
)

// Pool describes the workers consuming one queue.
type Pool struct {
	Name     string
	Queue    crawler.Queue
	Handler  crawler.Handler
	Observer worker.Observer
	Workers  int
}

// Dispatcher fans out queue work to pools of workers.
type Dispatcher struct {
	workers []*worker.Worker
	logger  *zap.Logger
}

// New creates a Dispatcher with one worker per pool slot.
func New(pools []Pool, logger *zap.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var workers []*worker.Worker
	for _, p := range pools {
		if p.Queue == nil || p.Handler == nil {
			return nil, fmt.Errorf("pool %q: queue and handler are required", p.Name)
		}
		if p.Workers < 1 {
			return nil, fmt.Errorf("pool %q: at least one worker is required", p.Name)
		}
		for range p.Workers {
			workers = append(workers, worker.New(p.Name, p.Queue, p.Handler, p.Observer, logger))
		}
	}
	return &Dispatcher{workers: workers, logger: logger}, nil
}

// Size returns the total number of workers.
func (d *Dispatcher) Size() int { return len(d.workers) }

// Run starts all workers and blocks until every worker has returned.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	d.logger.Info("workers started", zap.Int("workers", len(d.workers)))
	wg.Wait()
	d.logger.Info("workers stopped")
}
