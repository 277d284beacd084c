// Package errorsink records the inputs whose processing was abandoned, one
// per line.
package errorsink

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// DefaultPath is the error file used when none is configured.
const DefaultPath = "error_products.txt"

// File appends entries to a file.
type File struct {
	mu    sync.Mutex
	out   zapcore.WriteSyncer
	close func()
}

var _ crawler.ErrorSink = (*File)(nil)

// Open opens path for appending, creating it when missing.
func Open(path string) (*File, error) {
	if path == "" {
		path = DefaultPath
	}
	out, closeFn, err := zap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open error sink %s: %w", path, err)
	}
	return &File{out: out, close: closeFn}, nil
}

// Append writes text followed by a newline.
func (f *File) Append(text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.out.Write([]byte(text)); err != nil {
		return fmt.Errorf("append to error sink: %w", err)
	}
	return nil
}

// Close syncs and closes the file.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.out.Sync()
	f.close()
	if err != nil {
		return fmt.Errorf("sync error sink: %w", err)
	}
	return nil
}

// Memory keeps entries in memory.
type Memory struct {
	mu      sync.Mutex
	entries []string
}

var _ crawler.ErrorSink = (*Memory)(nil)

// Append records text.
func (m *Memory) Append(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, text)
	return nil
}

// Entries returns a copy of the recorded entries.
func (m *Memory) Entries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.entries...)
}
