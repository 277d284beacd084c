// Package uuid generates crawl cycle identifiers.
package uuid

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// Generator creates time-ordered UUIDv7 strings.
type Generator struct{}

var _ crawler.IDGenerator = Generator{}

// New creates a Generator.
func New() Generator {
	return Generator{}
}

// NewID returns a UUIDv7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// CreatedAt returns the timestamp embedded in a UUIDv7 id.
func CreatedAt(id string) (time.Time, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse id %q: %w", id, err)
	}
	if parsed.Version() != 7 {
		return time.Time{}, fmt.Errorf("id %q is uuid version %d, not 7", id, parsed.Version())
	}
	sec, nsec := parsed.Time().UnixTime()
	return time.Unix(sec, nsec).UTC(), nil
}
