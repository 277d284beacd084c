// Package worker implements the queue consumer loop.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

const defaultErrorDelay = time.Second

// Observer is notified of queue activity; the scheduler's quiescence monitor
// implements it.
type Observer interface {
	Received()
	Idle(ctx context.Context)
}

type nopObserver struct{}

func (nopObserver) Received()            {}
func (nopObserver) Idle(context.Context) {}

// Worker consumes one queue and runs a handler per message.
type Worker struct {
	name       string
	queue      crawler.Queue
	handler    crawler.Handler
	observer   Observer
	errorDelay time.Duration
	logger     *zap.Logger
}

// New constructs a Worker.
func New(
	name string,
	queue crawler.Queue,
	handler crawler.Handler,
	observer Observer,
	logger *zap.Logger,
) *Worker {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		name:       name,
		queue:      queue,
		handler:    handler,
		observer:   observer,
		errorDelay: defaultErrorDelay,
		logger:     logger.With(zap.String("queue", name)),
	}
}

// Run blocks, consuming messages until the context finishes or the queue is
// closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		delivery, err := w.queue.Receive(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return
			case errors.Is(err, crawler.ErrQueueClosed):
				w.logger.Info("queue closed, worker stopping")
				return
			case errors.Is(err, crawler.ErrNoMessage):
				w.observer.Idle(ctx)
				continue
			}
			w.logger.Error("queue receive failed", zap.Error(err))
			if !w.pause(ctx) {
				return
			}
			continue
		}
		w.process(ctx, delivery)
	}
}

func (w *Worker) process(ctx context.Context, delivery crawler.Delivery) {
	msg := delivery.Message
	w.observer.Received()
	w.logger.Debug("message received", zap.String("url", msg.URL), zap.Int("depth", msg.Depth))
	if err := w.handler(ctx, msg); err != nil {
		w.logger.Error("handler failed", zap.String("url", msg.URL), zap.Int("depth", msg.Depth), zap.Error(err))
	}
	if err := delivery.Ack(ctx); err != nil {
		w.logger.Error("ack failed", zap.String("url", msg.URL), zap.Error(err))
	}
}

func (w *Worker) pause(ctx context.Context) bool {
	timer := time.NewTimer(w.errorDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
