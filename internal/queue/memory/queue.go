// Package memory provides queue implementations for local development.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// DefaultPollInterval bounds how long Receive waits for a message.
const DefaultPollInterval = time.Second

// Queue is an unbounded in-memory FIFO. Handlers enqueue into the queues they
// consume from, so Enqueue never blocks.
type Queue struct {
	mu       sync.Mutex
	items    []crawler.CrawlMessage
	notify   chan struct{}
	done     chan struct{}
	closed   bool
	interval time.Duration
}

var _ crawler.Queue = (*Queue)(nil)

// NewQueue constructs a queue whose Receive waits up to pollInterval.
func NewQueue(pollInterval time.Duration) *Queue {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Queue{
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		interval: pollInterval,
	}
}

// Enqueue appends msg.
func (q *Queue) Enqueue(ctx context.Context, msg crawler.CrawlMessage) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue canceled: %w", err)
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return crawler.ErrQueueClosed
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()
	q.signal()
	return nil
}

// Receive pops the oldest message, waiting up to the poll interval.
func (q *Queue) Receive(ctx context.Context) (crawler.Delivery, error) {
	timer := time.NewTimer(q.interval)
	defer timer.Stop()
	for {
		msg, ok, err := q.pop()
		if err != nil {
			return crawler.Delivery{}, err
		}
		if ok {
			return crawler.NewDelivery(msg, nil), nil
		}
		select {
		case <-ctx.Done():
			return crawler.Delivery{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.notify:
		case <-q.done:
		case <-timer.C:
			msg, ok, err := q.pop()
			if err != nil {
				return crawler.Delivery{}, err
			}
			if ok {
				return crawler.NewDelivery(msg, nil), nil
			}
			return crawler.Delivery{}, crawler.ErrNoMessage
		}
	}
}

func (q *Queue) pop() (crawler.CrawlMessage, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		if q.closed {
			return crawler.CrawlMessage{}, false, crawler.ErrQueueClosed
		}
		return crawler.CrawlMessage{}, false, nil
	}
	msg := q.items[0]
	q.items[0] = crawler.CrawlMessage{}
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return msg, true, nil
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pending reports the number of queued messages.
func (q *Queue) Pending(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

// Close stops the queue. Messages already queued are still delivered; once
// drained Receive returns crawler.ErrQueueClosed.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return nil
}
