package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Queue errors surfaced by Queue.Receive.
var (
	ErrNoMessage   = errors.New("no message within poll interval")
	ErrQueueClosed = errors.New("queue closed")
)

// CrawlMessage is the unit of work passed between pipeline stages.
type CrawlMessage struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
}

// Delivery is a received message plus its acknowledgement hook.
type Delivery struct {
	Message CrawlMessage
	ack     func(context.Context) error
}

// NewDelivery wraps msg with an ack callback; ack may be nil.
func NewDelivery(msg CrawlMessage, ack func(context.Context) error) Delivery {
	return Delivery{Message: msg, ack: ack}
}

// Ack confirms the message was handled.
func (d Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// FetchRequest describes a single page fetch.
type FetchRequest struct {
	URL string
	// Raw skips charset detection and returns the body bytes untouched.
	Raw bool
}

// Document is a fetched page.
type Document struct {
	URL         string
	ContentType string
	Body        []byte
}

const xmlContentTypeMarker = "/xml"

// IsXML reports whether the document was served as XML (sitemaps).
func (d Document) IsXML() bool {
	return strings.Contains(strings.ToLower(d.ContentType), xmlContentTypeMarker)
}

// Product is a structured record extracted from a product page.
type Product struct {
	ID           string      `json:"pId"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Keywords     string      `json:"keywords"`
	Barcode      string      `json:"barcode"`
	Price        json.Number `json:"price"`
	WeightGrams  int         `json:"weight"`
	DimensionsMM []int       `json:"dimensions"`
}

// ComponentKind identifies a per-domain component type in the registry.
type ComponentKind string

// Supported component kinds.
const (
	KindURLProcessor  ComponentKind = "url_processor"
	KindProductParser ComponentKind = "product_parser"
)
