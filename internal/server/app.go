// Package server builds the crawler service from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/api"
	"github.com/JakeFAU/product-crawler/internal/canonical"
	"github.com/JakeFAU/product-crawler/internal/clock/system"
	"github.com/JakeFAU/product-crawler/internal/config"
	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/dispatcher"
	"github.com/JakeFAU/product-crawler/internal/errorsink"
	collyfetcher "github.com/JakeFAU/product-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/product-crawler/internal/frontier"
	"github.com/JakeFAU/product-crawler/internal/id/uuid"
	"github.com/JakeFAU/product-crawler/internal/metrics"
	"github.com/JakeFAU/product-crawler/internal/pipeline"
	"github.com/JakeFAU/product-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/product-crawler/internal/publisher"
	espublisher "github.com/JakeFAU/product-crawler/internal/publisher/elasticsearch"
	logpublisher "github.com/JakeFAU/product-crawler/internal/publisher/log"
	gcppublisher "github.com/JakeFAU/product-crawler/internal/publisher/pubsub"
	kafkaqueue "github.com/JakeFAU/product-crawler/internal/queue/kafka"
	memoryqueue "github.com/JakeFAU/product-crawler/internal/queue/memory"
	"github.com/JakeFAU/product-crawler/internal/retry"
	"github.com/JakeFAU/product-crawler/internal/robots"
	"github.com/JakeFAU/product-crawler/internal/scheduler"
	memorystore "github.com/JakeFAU/product-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/product-crawler/internal/storage/postgres"
	redisstore "github.com/JakeFAU/product-crawler/internal/storage/redis"
	"github.com/JakeFAU/product-crawler/internal/urlpattern"
)

// Queue names used in logs, metrics and the status API.
const (
	VisitQueue   = "visit"
	ProductQueue = "product"
)

const shutdownTimeout = 10 * time.Second

// App contains the running service's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	domain    string
	robotsURL string

	visitQ    crawler.Queue
	productQ  crawler.Queue
	frontier  *frontier.Store
	robots    *robots.Gate
	errSink   *errorsink.File
	dispatch  *dispatcher.Dispatcher
	scheduler *scheduler.Scheduler
	apiServer *api.Server
	closers   []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// Build creates the application's dependencies. Nothing is started.
//
//nolint:funlen // wiring is linear
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	domain, err := cfg.Domain()
	if err != nil {
		return nil, err
	}
	robotsURL, err := cfg.RobotsTxtURL()
	if err != nil {
		return nil, err
	}
	metrics.Init()

	app := &App{cfg: cfg, logger: logger, domain: domain, robotsURL: robotsURL}
	defer func() {
		if err != nil {
			app.closeInfrastructure()
		}
	}()

	app.errSink, err = errorsink.Open(cfg.Crawler.ErrorFile)
	if err != nil {
		return nil, err
	}
	app.addCloser("error sink", app.errSink.Close)
	policy := retry.New(cfg.Crawler.MaxRetry, app.errSink, logger.Named("retry"))

	reg, err := BuildRegistry(cfg, policy, app.errSink, logger)
	if err != nil {
		return nil, err
	}
	urls, err := reg.URLProcessor(domain)
	if err != nil {
		return nil, err
	}
	parser, err := reg.ProductParser(domain)
	if err != nil {
		return nil, err
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.Crawler.Timeout,
		MaxBytes:  cfg.Crawler.MaxBytes,
	}, logger.Named("fetcher"))
	app.robots = robots.NewGate(fetcher, robots.TemotoParser{}, cfg.Crawler.UserAgent, logger.Named("robots"))

	sets, err := app.setupSetStore(ctx)
	if err != nil {
		return nil, err
	}
	app.addCloser("set store", sets.Close)
	patterns, err := urlpattern.New(domain)
	if err != nil {
		return nil, err
	}
	app.frontier, err = frontier.New(
		frontier.Config{Domain: domain, MaxDepth: cfg.Crawler.MaxDepth},
		sets,
		patterns.Valid(),
		urls,
		canonical.New(patterns, nil),
		app.robots,
		logger.Named("frontier"),
	)
	if err != nil {
		return nil, err
	}

	if err := app.setupQueues(); err != nil {
		return nil, err
	}

	sink, err := app.setupSinks(ctx)
	if err != nil {
		return nil, err
	}

	pipe, err := pipeline.New(pipeline.Deps{
		VisitQueue:   app.visitQ,
		ProductQueue: app.productQ,
		Fetcher:      fetcher,
		Limiter:      ratelimit.New(ratelimit.Config{MaxVisit: cfg.Crawler.MaxVisit}),
		Retry:        policy,
		Frontier:     app.frontier,
		URLs:         urls,
		Parser:       parser,
		Sink:         sink,
	}, logger.Named("pipeline"))
	if err != nil {
		return nil, err
	}

	app.scheduler, err = scheduler.New(scheduler.Config{
		Seed:            cfg.Crawler.TriggerURL,
		CrawlerDuration: cfg.Crawler.CrawlerDuration,
		MinInterval:     cfg.Crawler.MinTriggerGap,
		CheckEvery:      cfg.Crawler.IdleCheckInterval,
	}, app.frontier, app.visitQ, system.New(), uuid.New(), logger.Named("scheduler"))
	if err != nil {
		return nil, err
	}

	app.dispatch, err = dispatcher.New([]dispatcher.Pool{
		{
			Name:     VisitQueue,
			Queue:    app.visitQ,
			Handler:  pipe.HandleVisit,
			Observer: app.scheduler.Monitor(VisitQueue, app.visitQ),
			Workers:  cfg.Crawler.VisitWorkers,
		},
		{
			Name:     ProductQueue,
			Queue:    app.productQ,
			Handler:  pipe.HandleProduct,
			Observer: app.scheduler.Monitor(ProductQueue, app.productQ),
			Workers:  cfg.Crawler.ProductWorkers,
		},
	}, logger.Named("dispatcher"))
	if err != nil {
		return nil, err
	}

	app.apiServer = api.NewServer(app.scheduler, domain, app.readinessChecks(), logger.Named("api"))
	logger.Info("application built",
		zap.String("domain", domain),
		zap.String("trigger_url", cfg.Crawler.TriggerURL),
		zap.String("store", cfg.Crawler.Store),
		zap.String("queue", cfg.Queue.Backend),
		zap.Strings("sinks", cfg.Sink.Providers),
		zap.Int("workers", app.dispatch.Size()),
	)
	return app, nil
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

func (a *App) setupSetStore(ctx context.Context) (crawler.SetStore, error) {
	if a.cfg.Crawler.Store != config.BackendRedis {
		a.logger.Info("using in-memory set store")
		return memorystore.NewSetStore(), nil
	}
	store, err := redisstore.NewSetStore(ctx, redisstore.Config{
		Addr:     a.cfg.Redis.Addr,
		Username: a.cfg.Redis.Username,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("redis set store init failed: %w", err)
	}
	a.logger.Info("using redis set store", zap.String("addr", a.cfg.Redis.Addr))
	return store, nil
}

func (a *App) setupQueues() error {
	if a.cfg.Queue.Backend != config.BackendKafka {
		a.logger.Info("using in-memory queues", zap.Duration("poll_interval", a.cfg.Crawler.PollInterval))
		a.visitQ = memoryqueue.NewQueue(a.cfg.Crawler.PollInterval)
		a.productQ = memoryqueue.NewQueue(a.cfg.Crawler.PollInterval)
		a.addCloser("visit queue", a.visitQ.Close)
		a.addCloser("product queue", a.productQ.Close)
		return nil
	}
	kc := a.cfg.Queue.Kafka
	visitQ, err := kafkaqueue.New(kafkaqueue.Config{
		Brokers:      kc.Brokers,
		Topic:        kc.VisitTopic,
		GroupID:      kc.GroupID,
		PollInterval: a.cfg.Crawler.PollInterval,
	}, a.logger.Named("kafka").With(zap.String("queue", VisitQueue)))
	if err != nil {
		return fmt.Errorf("kafka visit queue init failed: %w", err)
	}
	a.visitQ = visitQ
	a.addCloser("visit queue", visitQ.Close)
	productQ, err := kafkaqueue.New(kafkaqueue.Config{
		Brokers:      kc.Brokers,
		Topic:        kc.ProductTopic,
		GroupID:      kc.GroupID,
		PollInterval: a.cfg.Crawler.PollInterval,
	}, a.logger.Named("kafka").With(zap.String("queue", ProductQueue)))
	if err != nil {
		return fmt.Errorf("kafka product queue init failed: %w", err)
	}
	a.productQ = productQ
	a.addCloser("product queue", productQ.Close)
	a.logger.Info("using kafka queues",
		zap.Strings("brokers", kc.Brokers),
		zap.String("visit_topic", kc.VisitTopic),
		zap.String("product_topic", kc.ProductTopic),
	)
	return nil
}

func (a *App) setupSinks(ctx context.Context) (crawler.ProductSink, error) {
	var sinks []publisher.Named
	for _, provider := range a.cfg.Sink.Providers {
		switch provider {
		case config.SinkLog:
			sinks = append(sinks, publisher.Named{Name: provider, Sink: logpublisher.New(a.logger.Named("products"))})
		case config.SinkElasticsearch:
			es, err := espublisher.New(espublisher.Config{
				Addresses: a.cfg.Elasticsearch.Addresses,
				Username:  a.cfg.Elasticsearch.Username,
				Password:  a.cfg.Elasticsearch.Password,
				Index:     a.cfg.Elasticsearch.Index,
			})
			if err != nil {
				return nil, fmt.Errorf("elasticsearch sink init failed: %w", err)
			}
			sinks = append(sinks, publisher.Named{Name: provider, Sink: es})
		case config.SinkPostgres:
			pc := a.cfg.Postgres
			store, err := pgstore.NewProductStore(ctx, pgstore.Config{
				DSN:             pc.DSN,
				Table:           pc.Table,
				MaxConns:        pc.MaxConns,
				MinConns:        pc.MinConns,
				MaxConnLifetime: pc.MaxConnLifetime,
			}, a.domain)
			if err != nil {
				return nil, fmt.Errorf("postgres sink init failed: %w", err)
			}
			a.addCloser("postgres", func() error { store.Close(); return nil })
			if pc.EnsureSchema {
				if err := store.EnsureSchema(ctx); err != nil {
					return nil, err
				}
			}
			sinks = append(sinks, publisher.Named{Name: provider, Sink: store})
		case config.SinkPubSub:
			pub, err := gcppublisher.New(ctx, gcppublisher.Config{
				ProjectID: a.cfg.PubSub.ProjectID,
				TopicID:   a.cfg.PubSub.TopicID,
			}, a.domain)
			if err != nil {
				return nil, fmt.Errorf("pubsub sink init failed: %w", err)
			}
			a.addCloser("pubsub", pub.Close)
			sinks = append(sinks, publisher.Named{Name: provider, Sink: pub})
		default:
			return nil, fmt.Errorf("sink provider %q is not supported", provider)
		}
		a.logger.Info("product sink enabled", zap.String("provider", provider))
	}
	return publisher.NewFanout(sinks...), nil
}

func (a *App) readinessChecks() []api.Check {
	checks := []api.Check{{
		Name: "robots",
		Probe: func(context.Context) error {
			if !a.robots.Loaded() {
				return errors.New("robots.txt not loaded")
			}
			return nil
		},
	}}
	for name, q := range map[string]crawler.Queue{VisitQueue: a.visitQ, ProductQueue: a.productQ} {
		checks = append(checks, api.Check{
			Name: name + "_queue",
			Probe: func(ctx context.Context) error {
				_, err := q.Pending(ctx)
				return err
			},
		})
	}
	return checks
}

// Handler exposes the status API, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run loads robots.txt, starts the workers and the status server, and blocks
// until ctx is canceled or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.robots.EnsureLoaded(ctx, a.robotsURL)

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.logger.Info("dispatcher started", zap.Int("workers", a.dispatch.Size()))
		a.dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		a.logger.Warn("workers did not stop before the shutdown deadline")
	}
	return a.Close()
}

// Close releases queues, stores and sinks.
func (a *App) Close() error {
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("close failed", zap.String("component", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}
