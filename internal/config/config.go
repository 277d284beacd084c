// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/product-crawler/internal/site"
)

// Queue and set store backends.
const (
	BackendMemory = "memory"
	BackendKafka  = "kafka"
	BackendRedis  = "redis"
)

// Product sink providers.
const (
	SinkLog           = "log"
	SinkElasticsearch = "elasticsearch"
	SinkPostgres      = "postgres"
	SinkPubSub        = "pubsub"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server           ServerConfig        `mapstructure:"server"`
	Logging          LoggingConfig       `mapstructure:"logging"`
	Crawler          CrawlerConfig       `mapstructure:"crawler"`
	SupportedDomains []string            `mapstructure:"supported_domains"`
	Domains          []DomainConfig      `mapstructure:"domains"`
	Redis            RedisConfig         `mapstructure:"redis"`
	Queue            QueueConfig         `mapstructure:"queue"`
	Sink             SinkConfig          `mapstructure:"sink"`
	Elasticsearch    ElasticsearchConfig `mapstructure:"elasticsearch"`
	Postgres         PostgresConfig      `mapstructure:"postgres"`
	PubSub           PubSubConfig        `mapstructure:"pubsub"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CrawlerConfig governs the crawl itself.
type CrawlerConfig struct {
	TriggerURL        string        `mapstructure:"trigger_url"`
	MaxDepth          int           `mapstructure:"max_depth"`
	MaxVisit          float64       `mapstructure:"max_visit"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetry          int           `mapstructure:"max_retry"`
	MaxBytes          int           `mapstructure:"max_bytes"`
	CrawlerDuration   time.Duration `mapstructure:"crawler_duration"`
	MinTriggerGap     time.Duration `mapstructure:"minimum_interval_between_two_triggers"`
	IdleCheckInterval time.Duration `mapstructure:"idle_check_interval"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	VisitWorkers      int           `mapstructure:"visit_workers"`
	ProductWorkers    int           `mapstructure:"product_workers"`
	UserAgent         string        `mapstructure:"user_agent"`
	ErrorFile         string        `mapstructure:"error_file"`
	Store             string        `mapstructure:"store"`
}

// DomainConfig wires the URL processor and product parser of one domain.
// Extractor overrides Profile field by field. Domains are a list because
// viper splits map keys on dots.
type DomainConfig struct {
	Name      string              `mapstructure:"name"`
	URLs      site.URLRules       `mapstructure:"urls"`
	Profile   string              `mapstructure:"profile"`
	Extractor site.ExtractorRules `mapstructure:"extractor"`
}

// RedisConfig points at the dedup set store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig selects the queue transport.
type QueueConfig struct {
	Backend string      `mapstructure:"backend"`
	Kafka   KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig configures the Kafka-backed queues.
type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	VisitTopic   string   `mapstructure:"visit_topic"`
	ProductTopic string   `mapstructure:"product_topic"`
	GroupID      string   `mapstructure:"group_id"`
}

// SinkConfig lists the product sinks that receive every product.
type SinkConfig struct {
	Providers []string `mapstructure:"providers"`
}

// ElasticsearchConfig configures the search index sink.
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// PostgresConfig configures the product table sink.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	EnsureSchema    bool          `mapstructure:"ensure_schema"`
}

// PubSubConfig configures the product event sink.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// Load builds a Config from disk and environment. With an empty path the
// working directory and /etc/product-crawler are searched for config.yaml;
// a missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	// Required keys have no default, so Unmarshal only sees their env vars once bound.
	for _, key := range []string{"crawler.trigger_url", "supported_domains"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/product-crawler/")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("crawler.max_depth", 5)
	v.SetDefault("crawler.max_visit", 2.0)
	v.SetDefault("crawler.timeout", "15s")
	v.SetDefault("crawler.max_retry", 3)
	v.SetDefault("crawler.max_bytes", 10*1024*1024)
	v.SetDefault("crawler.crawler_duration", "30m")
	v.SetDefault("crawler.minimum_interval_between_two_triggers", "1m")
	v.SetDefault("crawler.idle_check_interval", "30s")
	v.SetDefault("crawler.poll_interval", "2s")
	v.SetDefault("crawler.visit_workers", 4)
	v.SetDefault("crawler.product_workers", 2)
	v.SetDefault("crawler.user_agent", "product-crawler/1.0")
	v.SetDefault("crawler.error_file", "error_products.txt")
	v.SetDefault("crawler.store", BackendMemory)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("queue.backend", BackendMemory)
	v.SetDefault("queue.kafka.visit_topic", "crawler-visit")
	v.SetDefault("queue.kafka.product_topic", "crawler-product")
	v.SetDefault("queue.kafka.group_id", "product-crawler")
	v.SetDefault("sink.providers", []string{SinkLog})
	v.SetDefault("elasticsearch.index", "products")
	v.SetDefault("postgres.table", "products")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if _, err := c.Domain(); err != nil {
		return err
	}
	if c.Crawler.MaxDepth <= 0 {
		return fmt.Errorf("crawler.max_depth must be > 0")
	}
	if c.Crawler.MaxRetry <= 0 {
		return fmt.Errorf("crawler.max_retry must be > 0")
	}
	if c.Crawler.Timeout <= 0 {
		return fmt.Errorf("crawler.timeout must be > 0")
	}
	if c.Crawler.VisitWorkers <= 0 || c.Crawler.ProductWorkers <= 0 {
		return fmt.Errorf("crawler.visit_workers and crawler.product_workers must be > 0")
	}
	if c.Crawler.IdleCheckInterval <= 0 {
		return fmt.Errorf("crawler.idle_check_interval must be > 0")
	}
	if len(c.SupportedDomains) == 0 {
		return fmt.Errorf("supported_domains must not be empty")
	}
	switch c.Crawler.Store {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when crawler.store is redis")
		}
	default:
		return fmt.Errorf("crawler.store %q is not supported", c.Crawler.Store)
	}
	switch c.Queue.Backend {
	case BackendMemory:
	case BackendKafka:
		if len(c.Queue.Kafka.Brokers) == 0 {
			return fmt.Errorf("queue.kafka.brokers is required when queue.backend is kafka")
		}
	default:
		return fmt.Errorf("queue.backend %q is not supported", c.Queue.Backend)
	}
	if len(c.Sink.Providers) == 0 {
		return fmt.Errorf("sink.providers must not be empty")
	}
	for _, p := range c.Sink.Providers {
		switch p {
		case SinkLog:
		case SinkElasticsearch:
			if len(c.Elasticsearch.Addresses) == 0 {
				return fmt.Errorf("elasticsearch.addresses is required for the elasticsearch sink")
			}
		case SinkPostgres:
			if c.Postgres.DSN == "" {
				return fmt.Errorf("postgres.dsn is required for the postgres sink")
			}
		case SinkPubSub:
			if c.PubSub.ProjectID == "" || c.PubSub.TopicID == "" {
				return fmt.Errorf("pubsub.project_id and pubsub.topic_id are required for the pubsub sink")
			}
		default:
			return fmt.Errorf("sink provider %q is not supported", p)
		}
	}
	return nil
}

// Domain is the crawled domain: the trigger URL host without "www.".
func (c Config) Domain() (string, error) {
	u, err := c.triggerURL()
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."), nil
}

// RobotsTxtURL is scheme://host/robots.txt of the trigger URL.
func (c Config) RobotsTxtURL() (string, error) {
	u, err := c.triggerURL()
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host + "/robots.txt", nil
}

func (c Config) triggerURL() (*url.URL, error) {
	raw := strings.TrimSpace(c.Crawler.TriggerURL)
	if raw == "" {
		return nil, fmt.Errorf("crawler.trigger_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse crawler.trigger_url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("crawler.trigger_url %q must be absolute", raw)
	}
	return u, nil
}

// DomainRules returns the wiring for domain, falling back to defaults when the
// domain has no entry.
func (c Config) DomainRules(domain string) DomainConfig {
	domain = strings.ToLower(strings.TrimSpace(domain))
	for _, dc := range c.Domains {
		if strings.ToLower(strings.TrimSpace(dc.Name)) == domain {
			return dc
		}
	}
	return DomainConfig{Name: domain}
}
