// Package pubsub publishes products to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// Config holds the topic settings.
type Config struct {
	ProjectID string
	TopicID   string
}

// Publisher publishes each product as a JSON message.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	domain string
}

var _ crawler.ProductSink = (*Publisher)(nil)

// New connects to Pub/Sub and binds the configured topic.
func New(ctx context.Context, cfg Config, domain string, opts ...option.ClientOption) (*Publisher, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, errors.New("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &Publisher{client: client, topic: client.Topic(cfg.TopicID), domain: domain}, nil
}

// Publish marshals the product to JSON and waits for the server ack.
func (p *Publisher) Publish(ctx context.Context, product crawler.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("marshal product %s: %w", product.ID, err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"product_id": product.ID,
			"domain":     p.domain,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish product %s: %w", product.ID, err)
	}
	return nil
}

// Close flushes pending messages and closes the client.
func (p *Publisher) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
