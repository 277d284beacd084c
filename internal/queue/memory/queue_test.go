package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

func TestQueueEnqueueReceive(t *testing.T) {
	t.Parallel()

	q := NewQueue(time.Second)
	result := make(chan crawler.Delivery, 1)
	errCh := make(chan error, 1)

	go func() {
		d, err := q.Receive(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- d
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to start
	msg := crawler.CrawlMessage{URL: "http://www.example.com/", Depth: 2}
	if err := q.Enqueue(context.Background(), msg); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Receive() error = %v", err)
	case got := <-result:
		if got.Message != msg {
			t.Fatalf("expected %+v, got %+v", msg, got.Message)
		}
		require.NoError(t, got.Ack(context.Background()))
	case <-time.After(time.Second):
		t.Fatal("receive did not return message")
	}
}

func TestQueueFIFOAndPending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewQueue(10 * time.Millisecond)
	for i := range 3 {
		require.NoError(t, q.Enqueue(ctx, crawler.CrawlMessage{URL: "u", Depth: i}))
	}
	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending)

	for i := range 3 {
		d, err := q.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, d.Message.Depth)
	}
	pending, err = q.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestQueuePollTimeout(t *testing.T) {
	t.Parallel()

	q := NewQueue(20 * time.Millisecond)
	start := time.Now()
	_, err := q.Receive(context.Background())
	require.ErrorIs(t, err, crawler.ErrNoMessage)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	q := NewQueue(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Receive(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}
	if err := q.Enqueue(ctx, crawler.CrawlMessage{URL: "u"}); err == nil ||
		err.Error() != "enqueue canceled: context canceled" {
		t.Fatalf("expected enqueue cancel error, got %v", err)
	}
}

func TestQueueCloseDrainsThenStops(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewQueue(time.Second)
	require.NoError(t, q.Enqueue(ctx, crawler.CrawlMessage{URL: "last"}))
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	require.ErrorIs(t, q.Enqueue(ctx, crawler.CrawlMessage{URL: "late"}), crawler.ErrQueueClosed)
	d, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "last", d.Message.URL)
	_, err = q.Receive(ctx)
	require.ErrorIs(t, err, crawler.ErrQueueClosed)
}

func TestQueueCloseWakesReceivers(t *testing.T) {
	t.Parallel()

	q := NewQueue(time.Minute)
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Receive(context.Background())
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Close())
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, crawler.ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("receiver not woken by close")
	}
}

func TestQueueConcurrentReceivers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewQueue(50 * time.Millisecond)
	const n = 100

	var (
		mu   sync.Mutex
		seen = make(map[int]bool)
		wg   sync.WaitGroup
	)
	for i := range n {
		require.NoError(t, q.Enqueue(ctx, crawler.CrawlMessage{URL: "u", Depth: i}))
	}
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				d, err := q.Receive(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[d.Message.Depth] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}
