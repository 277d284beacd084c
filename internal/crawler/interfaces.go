package crawler

import (
	"context"
	"time"
)

// Queue is the message transport between pipeline stages.
type Queue interface {
	Enqueue(ctx context.Context, msg CrawlMessage) error
	// Receive waits up to the queue's poll interval and returns ErrNoMessage
	// when nothing arrived.
	Receive(ctx context.Context) (Delivery, error)
	// Pending reports messages waiting to be consumed.
	Pending(ctx context.Context) (int64, error)
	Close() error
}

// Handler processes one message taken from a queue.
type Handler func(ctx context.Context, msg CrawlMessage) error

// Fetcher downloads a page.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (Document, error)
}

// SetStore is a keyed set store backing the dedup sets.
type SetStore interface {
	Add(ctx context.Context, key, member string) error
	Contains(ctx context.Context, key, member string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// ErrorSink records inputs whose processing was abandoned.
type ErrorSink interface {
	Append(text string) error
}

// ProductSink receives extracted products.
type ProductSink interface {
	Publish(ctx context.Context, product Product) error
}

// Component is a per-domain pluggable unit held by the registry.
type Component interface {
	Kind() ComponentKind
	Domain() string
}

// URLProcessor holds the domain-specific URL rules.
type URLProcessor interface {
	Component
	IsProductURL(url string) bool
	ExtractProductID(url string) (string, bool)
	IsValidURL(url string) bool
	Normalize(url string) string
	TrimProductURL(url string) string
}

// ProductParser extracts a product from a fetched product page.
type ProductParser interface {
	Component
	ParseProduct(ctx context.Context, url string, doc Document) (Product, bool)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces identifiers (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
