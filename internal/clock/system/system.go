// Package system provides the wall clock used outside tests.
package system

import (
	"time"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// Clock implements crawler.Clock in UTC.
type Clock struct{}

var _ crawler.Clock = Clock{}

// New creates a Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
