package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/metrics"
)

// Monitor tracks the activity of one queue. It implements worker.Observer.
type Monitor struct {
	name      string
	queue     crawler.Queue
	scheduler *Scheduler

	mu           sync.Mutex
	lastReceived time.Time
	lastChecked  time.Time
	idle         bool
}

// Received records that a message was taken from the queue.
func (m *Monitor) Received() {
	now := m.scheduler.clock.Now()
	m.mu.Lock()
	m.lastReceived = now
	wasIdle := m.idle
	m.idle = false
	m.mu.Unlock()

	m.scheduler.firstCycle.Store(false)
	if wasIdle {
		metrics.SetQueueIdle(m.name, false)
	}
}

// Idle records an empty poll. At most once per check interval it marks the
// queue idle and asks the scheduler whether a new cycle is due.
func (m *Monitor) Idle(ctx context.Context) {
	now := m.scheduler.clock.Now()
	m.mu.Lock()
	if now.Sub(m.lastChecked) < m.scheduler.cfg.CheckEvery {
		m.mu.Unlock()
		return
	}
	m.idle = true
	m.lastChecked = now
	m.mu.Unlock()

	metrics.SetQueueIdle(m.name, true)
	if err := m.scheduler.CheckForRestart(ctx); err != nil {
		m.scheduler.logger.Error("crawl restart failed", zap.String("queue", m.name), zap.Error(err))
	}
}

// Name returns the monitored queue name.
func (m *Monitor) Name() string { return m.name }

func (m *Monitor) state() (idle bool, lastReceived time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idle, m.lastReceived
}
