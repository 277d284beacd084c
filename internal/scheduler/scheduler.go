// Package scheduler restarts the crawl from its seed URL once every queue has
// been quiet long enough.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/metrics"
)

// Frontier is the part of the dedup store a restart touches.
type Frontier interface {
	Reset(ctx context.Context) error
	MarkVisited(ctx context.Context, url string) error
}

// Config configures a Scheduler.
type Config struct {
	// Seed is the trigger URL enqueued at depth zero on every restart.
	Seed string
	// CrawlerDuration is how long every queue must have been quiet.
	CrawlerDuration time.Duration
	// MinInterval debounces consecutive restarts.
	MinInterval time.Duration
	// CheckEvery throttles how often an idle monitor evaluates a restart.
	CheckEvery time.Duration
}

// Scheduler decides when a crawl cycle has finished and starts the next one.
type Scheduler struct {
	cfg      Config
	frontier Frontier
	visitQ   crawler.Queue
	clock    crawler.Clock
	ids      crawler.IDGenerator
	logger   *zap.Logger

	firstCycle atomic.Bool

	mu            sync.Mutex
	monitors      []*Monitor
	lastTriggered time.Time
	cycleID       string
	cycles        int
}

// New builds a Scheduler. The first restart is not debounced.
func New(
	cfg Config,
	frontier Frontier,
	visitQ crawler.Queue,
	clock crawler.Clock,
	ids crawler.IDGenerator,
	logger *zap.Logger,
) (*Scheduler, error) {
	if cfg.Seed == "" {
		return nil, errors.New("scheduler: seed url is required")
	}
	if frontier == nil || visitQ == nil || clock == nil || ids == nil {
		return nil, errors.New("scheduler: missing collaborator")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cfg:           cfg,
		frontier:      frontier,
		visitQ:        visitQ,
		clock:         clock,
		ids:           ids,
		logger:        logger,
		lastTriggered: clock.Now().Add(-cfg.MinInterval),
	}
	s.firstCycle.Store(true)
	return s, nil
}

// Monitor registers queue under name and returns its monitor.
func (s *Scheduler) Monitor(name string, queue crawler.Queue) *Monitor {
	now := s.clock.Now()
	m := &Monitor{
		name:         name,
		queue:        queue,
		scheduler:    s,
		lastReceived: now,
		lastChecked:  now.Add(-s.cfg.CheckEvery),
	}
	s.mu.Lock()
	s.monitors = append(s.monitors, m)
	s.mu.Unlock()
	return m
}

// CheckForRestart starts a new cycle when all monitored queues are idle,
// quiet for CrawlerDuration (skipped before the first message), outside the
// debounce window, and report no pending messages.
func (s *Scheduler) CheckForRestart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for _, m := range s.monitors {
		idle, _ := m.state()
		if !idle {
			return nil
		}
	}

	if !s.firstCycle.Load() {
		for _, m := range s.monitors {
			_, lastReceived := m.state()
			if quiet := now.Sub(lastReceived); quiet < s.cfg.CrawlerDuration {
				s.logger.Debug("queues idle, waiting before restart",
					zap.String("queue", m.name),
					zap.Duration("remaining", (s.cfg.CrawlerDuration-quiet).Round(time.Second)),
				)
				return nil
			}
		}
	}

	if now.Sub(s.lastTriggered) < s.cfg.MinInterval {
		return nil
	}

	for _, m := range s.monitors {
		pending, err := m.queue.Pending(ctx)
		if err != nil {
			return fmt.Errorf("pending %s: %w", m.name, err)
		}
		if pending > 0 {
			s.logger.Warn("queue reported idle but still has messages",
				zap.String("queue", m.name),
				zap.Int64("pending", pending),
			)
			return nil
		}
	}

	return s.restart(ctx, now)
}

func (s *Scheduler) restart(ctx context.Context, now time.Time) error {
	s.lastTriggered = now
	cycleID, err := s.ids.NewID()
	if err != nil {
		return fmt.Errorf("new cycle id: %w", err)
	}
	if err := s.frontier.Reset(ctx); err != nil {
		return err
	}
	if err := s.frontier.MarkVisited(ctx, s.cfg.Seed); err != nil {
		return err
	}
	if err := s.visitQ.Enqueue(ctx, crawler.CrawlMessage{URL: s.cfg.Seed, Depth: 0}); err != nil {
		return fmt.Errorf("enqueue seed: %w", err)
	}
	s.cycleID = cycleID
	s.cycles++
	metrics.ObserveCycleRestart()
	s.logger.Info("crawl cycle started",
		zap.String("cycle_id", cycleID),
		zap.String("seed", s.cfg.Seed),
		zap.Int("cycle", s.cycles),
	)
	return nil
}

// QueueState is the monitor state of one queue.
type QueueState struct {
	Name         string    `json:"name"`
	Idle         bool      `json:"idle"`
	LastReceived time.Time `json:"lastReceivedAt"`
}

// Snapshot is a point-in-time view of the scheduler.
type Snapshot struct {
	CycleID       string       `json:"cycleId,omitempty"`
	Cycles        int          `json:"cycles"`
	FirstCycle    bool         `json:"firstCycle"`
	LastTriggered time.Time    `json:"lastTriggeredAt"`
	Queues        []QueueState `json:"queues"`
}

// Snapshot returns the current state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		CycleID:       s.cycleID,
		Cycles:        s.cycles,
		FirstCycle:    s.firstCycle.Load(),
		LastTriggered: s.lastTriggered,
		Queues:        make([]QueueState, 0, len(s.monitors)),
	}
	for _, m := range s.monitors {
		idle, lastReceived := m.state()
		snap.Queues = append(snap.Queues, QueueState{Name: m.name, Idle: idle, LastReceived: lastReceived})
	}
	return snap
}
