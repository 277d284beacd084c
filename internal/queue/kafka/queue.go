// Package kafka implements crawler.Queue on a Kafka topic consumed by a
// consumer group.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// DefaultPollInterval bounds how long Receive waits for a message.
const DefaultPollInterval = time.Second

// Config holds the settings of one topic-backed queue.
type Config struct {
	Brokers      []string
	Topic        string
	GroupID      string
	PollInterval time.Duration
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// LagReporter reports the number of messages the consumer group has not yet
// committed.
type LagReporter interface {
	Lag(ctx context.Context) (int64, error)
}

// Queue is a Kafka-backed crawler.Queue.
type Queue struct {
	topic  string
	reader messageReader
	writer messageWriter
	lag    LagReporter
	poll   time.Duration
	logger *zap.Logger
}

var _ crawler.Queue = (*Queue)(nil)

// New connects a reader and writer to cfg.Topic.
func New(cfg Config, logger *zap.Logger) (*Queue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("kafka topic and group id are required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: false,
	}
	lag := &GroupLag{
		Client:  &kafka.Client{Addr: kafka.TCP(cfg.Brokers...), Timeout: 10 * time.Second},
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	}
	return NewWithClients(cfg.Topic, reader, writer, lag, cfg.PollInterval, logger), nil
}

// NewWithClients builds a queue from existing clients (tests).
func NewWithClients(
	topic string,
	reader messageReader,
	writer messageWriter,
	lag LagReporter,
	pollInterval time.Duration,
	logger *zap.Logger,
) *Queue {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		topic:  topic,
		reader: reader,
		writer: writer,
		lag:    lag,
		poll:   pollInterval,
		logger: logger,
	}
}

// Enqueue publishes msg as JSON keyed by its URL.
func (q *Queue) Enqueue(ctx context.Context, msg crawler.CrawlMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	err = q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.URL),
		Value: payload,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("write to %s: %w", q.topic, err)
	}
	return nil
}

// Receive fetches the next message, waiting up to the poll interval. The
// offset is committed by Delivery.Ack.
func (q *Queue) Receive(ctx context.Context) (crawler.Delivery, error) {
	pollCtx, cancel := context.WithTimeout(ctx, q.poll)
	m, err := q.reader.FetchMessage(pollCtx)
	cancel()
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return crawler.Delivery{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case errors.Is(err, context.DeadlineExceeded):
			return crawler.Delivery{}, crawler.ErrNoMessage
		case errors.Is(err, io.EOF):
			return crawler.Delivery{}, crawler.ErrQueueClosed
		default:
			return crawler.Delivery{}, fmt.Errorf("fetch from %s: %w", q.topic, err)
		}
	}

	var msg crawler.CrawlMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		q.logger.Error("dropping undecodable message",
			zap.String("topic", q.topic),
			zap.Int64("offset", m.Offset),
			zap.Error(err),
		)
		if commitErr := q.reader.CommitMessages(ctx, m); commitErr != nil {
			return crawler.Delivery{}, fmt.Errorf("commit undecodable message: %w", commitErr)
		}
		return crawler.Delivery{}, fmt.Errorf("decode message at offset %d: %w", m.Offset, err)
	}
	return crawler.NewDelivery(msg, func(ackCtx context.Context) error {
		if err := q.reader.CommitMessages(ackCtx, m); err != nil {
			return fmt.Errorf("commit offset %d: %w", m.Offset, err)
		}
		return nil
	}), nil
}

// Pending reports the consumer group lag on the topic.
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	if q.lag == nil {
		return 0, errors.New("no lag reporter configured")
	}
	n, err := q.lag.Lag(ctx)
	if err != nil {
		return 0, fmt.Errorf("lag of %s: %w", q.topic, err)
	}
	return n, nil
}

// Close shuts down the reader and writer.
func (q *Queue) Close() error {
	return errors.Join(q.reader.Close(), q.writer.Close())
}
