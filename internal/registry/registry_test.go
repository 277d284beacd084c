package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

type stubComponent struct {
	kind   crawler.ComponentKind
	domain string
}

func (s stubComponent) Kind() crawler.ComponentKind { return s.kind }
func (s stubComponent) Domain() string              { return s.domain }

type stubParser struct{ stubComponent }

func (stubParser) ParseProduct(context.Context, string, crawler.Document) (crawler.Product, bool) {
	return crawler.Product{}, false
}

var allKinds = []crawler.ComponentKind{crawler.KindURLProcessor, crawler.KindProductParser}

func TestRegister(t *testing.T) {
	t.Parallel()

	r := New([]string{"example.com"}, allKinds)
	parser := stubParser{stubComponent{crawler.KindProductParser, "example.com"}}
	require.NoError(t, r.Register("example.com", parser))

	err := r.Register("EXAMPLE.com", parser)
	require.ErrorIs(t, err, ErrDuplicateRegistration)

	err = r.Register("example.com", stubComponent{kind: "thumbnailer"})
	require.ErrorIs(t, err, ErrUnsupportedComponent)

	require.Error(t, r.Register("example.com", nil))
}

func TestValidateStartup(t *testing.T) {
	t.Parallel()

	r := New([]string{"example.com", "other.com", "example.com"}, allKinds)
	assert.Equal(t, []string{"example.com", "other.com"}, r.Domains())

	for _, d := range []string{"example.com", "other.com"} {
		require.NoError(t, r.Register(d, stubComponent{crawler.KindURLProcessor, d}))
	}
	require.NoError(t, r.Register("example.com", stubParser{stubComponent{crawler.KindProductParser, "example.com"}}))

	err := r.ValidateStartup("example.com")
	require.ErrorIs(t, err, ErrComponentNotFound)
	assert.Contains(t, err.Error(), "other.com")

	require.NoError(t, r.Register("other.com", stubParser{stubComponent{crawler.KindProductParser, "other.com"}}))
	require.NoError(t, r.ValidateStartup("Other.com"))
	require.ErrorIs(t, r.ValidateStartup("unknown.com"), ErrUnsupportedDomain)
}

func TestTypedLookups(t *testing.T) {
	t.Parallel()

	r := New([]string{"example.com"}, allKinds)
	require.NoError(t, r.Register("example.com", stubParser{stubComponent{crawler.KindProductParser, "example.com"}}))
	// A component whose kind claims url_processor but lacks the methods.
	require.NoError(t, r.Register("example.com", stubComponent{crawler.KindURLProcessor, "example.com"}))

	parser, err := r.ProductParser("example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", parser.Domain())

	_, err = r.URLProcessor("example.com")
	require.ErrorIs(t, err, ErrComponentNotFound)

	_, err = r.ProductParser("missing.com")
	require.ErrorIs(t, err, ErrComponentNotFound)
}

func TestConcurrentReads(t *testing.T) {
	t.Parallel()

	r := New([]string{"example.com"}, allKinds)
	require.NoError(t, r.Register("example.com", stubParser{stubComponent{crawler.KindProductParser, "example.com"}}))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Get(crawler.KindProductParser, "example.com")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
