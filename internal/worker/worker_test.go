package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// scriptedQueue replays receive results, then reports the queue closed.
type scriptedQueue struct {
	mu      sync.Mutex
	results []result
	acks    []string
}

type result struct {
	msg crawler.CrawlMessage
	err error
}

func (q *scriptedQueue) Enqueue(context.Context, crawler.CrawlMessage) error { return nil }

func (q *scriptedQueue) Receive(context.Context) (crawler.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.results) == 0 {
		return crawler.Delivery{}, crawler.ErrQueueClosed
	}
	r := q.results[0]
	q.results = q.results[1:]
	if r.err != nil {
		return crawler.Delivery{}, r.err
	}
	return crawler.NewDelivery(r.msg, func(context.Context) error {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.acks = append(q.acks, r.msg.URL)
		return nil
	}), nil
}

func (q *scriptedQueue) Pending(context.Context) (int64, error) { return 0, nil }
func (q *scriptedQueue) Close() error                           { return nil }

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) Received() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "received")
}

func (o *recordingObserver) Idle(context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "idle")
}

func TestWorkerRunProcessesAndNotifies(t *testing.T) {
	t.Parallel()

	q := &scriptedQueue{results: []result{
		{msg: crawler.CrawlMessage{URL: "a", Depth: 0}},
		{err: crawler.ErrNoMessage},
		{msg: crawler.CrawlMessage{URL: "b", Depth: 1}},
	}}
	obs := &recordingObserver{}
	var handled []string
	handler := func(_ context.Context, msg crawler.CrawlMessage) error {
		handled = append(handled, msg.URL)
		if msg.URL == "b" {
			return errors.New("handler failed")
		}
		return nil
	}

	New("visit", q, handler, obs, zap.NewNop()).Run(context.Background())

	assert.Equal(t, []string{"a", "b"}, handled)
	assert.Equal(t, []string{"a", "b"}, q.acks)
	assert.Equal(t, []string{"received", "idle", "received"}, obs.events)
}

func TestWorkerPausesOnReceiveError(t *testing.T) {
	t.Parallel()

	q := &scriptedQueue{results: []result{
		{err: errors.New("broker down")},
		{msg: crawler.CrawlMessage{URL: "after"}},
	}}
	var calls atomic.Int32
	w := New("product", q, func(context.Context, crawler.CrawlMessage) error {
		calls.Add(1)
		return nil
	}, nil, nil)
	w.errorDelay = 5 * time.Millisecond
	w.Run(context.Background())
	assert.Equal(t, int32(1), calls.Load())
}

func TestWorkerStopsOnCancel(t *testing.T) {
	t.Parallel()

	q := &blockingQueue{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New("visit", q, func(context.Context, crawler.CrawlMessage) error { return nil }, nil, nil).Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "worker did not stop after cancel")
	}
}

type blockingQueue struct{ scriptedQueue }

func (q *blockingQueue) Receive(ctx context.Context) (crawler.Delivery, error) {
	<-ctx.Done()
	return crawler.Delivery{}, ctx.Err()
}
