// Package elasticsearch indexes products into an Elasticsearch index.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// Config holds the index connection settings.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

// Publisher indexes each product as a document keyed by product id.
type Publisher struct {
	client *es.Client
	index  string
}

var _ crawler.ProductSink = (*Publisher)(nil)

// New builds a Publisher from cfg.
func New(cfg Config) (*Publisher, error) {
	if cfg.Index == "" {
		return nil, errors.New("elasticsearch index is required")
	}
	client, err := es.NewClient(es.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Publisher{client: client, index: cfg.Index}, nil
}

// NewWithClient wraps an existing client (tests).
func NewWithClient(client *es.Client, index string) *Publisher {
	return &Publisher{client: client, index: index}
}

// Publish implements crawler.ProductSink. Re-publishing a product overwrites
// its document.
func (p *Publisher) Publish(ctx context.Context, product crawler.Product) error {
	body, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("marshal product %s: %w", product.ID, err)
	}
	res, err := p.client.Index(
		p.index,
		bytes.NewReader(body),
		p.client.Index.WithContext(ctx),
		p.client.Index.WithDocumentID(product.ID),
	)
	if err != nil {
		return fmt.Errorf("index product %s: %w", product.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("index product %s: %s: %s", product.ID, res.Status(), bytes.TrimSpace(detail))
	}
	return nil
}
