package frontier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/site"
	"github.com/JakeFAU/product-crawler/internal/storage/memory"
	"github.com/JakeFAU/product-crawler/internal/urlpattern"
)

type denyList map[string]bool

func (d denyList) IsAllowed(url string) bool { return !d[url] }

type failingSets struct{ crawler.SetStore }

var errStore = errors.New("store unavailable")

func (failingSets) Contains(context.Context, string, string) (bool, error) { return false, errStore }
func (failingSets) Add(context.Context, string, string) error              { return errStore }
func (failingSets) Delete(context.Context, ...string) error                { return errStore }

func newStore(t *testing.T, sets crawler.SetStore, robots Robots) *Store {
	t.Helper()
	patterns, err := urlpattern.New("example.com")
	require.NoError(t, err)
	urls, err := site.NewURLProcessor(patterns, site.URLRules{Filters: []string{urlpattern.Account}}, zap.NewNop())
	require.NoError(t, err)
	if robots == nil {
		robots = denyList{}
	}
	s, err := New(Config{Domain: "Example.com", MaxDepth: 3}, sets, patterns.Valid(), urls, urls.Canonicalizer(), robots, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestShouldVisitRejections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blocked := "http://www.example.com/private/page"
	s := newStore(t, memory.NewSetStore(), denyList{blocked: true})

	cases := []struct {
		name  string
		url   string
		depth int
		want  bool
	}{
		{"at max depth", "http://www.example.com/toys", 3, false},
		{"other domain", "http://www.other.com/toys", 0, false},
		{"media", "http://www.example.com/img/a.png", 0, false},
		{"session id", "http://www.example.com/a;jsessionid=1", 0, false},
		{"configured filter", "http://www.example.com/account/me", 0, false},
		{"robots", blocked, 0, false},
		{"accepted", "http://www.example.com/toys", 2, true},
		{"already visited", "http://www.example.com/toys", 0, false},
		{"https variant of visited", "https://www.example.com/toys", 0, false},
	}
	for _, tc := range cases {
		got, err := s.ShouldVisit(ctx, tc.url, tc.depth)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}
}

func TestShouldVisitCollapsesCategoryPages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sets := memory.NewSetStore()
	s := newStore(t, sets, nil)

	ok, err := s.ShouldVisit(ctx, "https://www.example.com/family/index.jsp?categoryId=5&page=1", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ShouldVisit(ctx, "http://www.example.com/family/index.jsp?categoryId=5&page=2", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.ShouldVisit(ctx, "http://www.example.com/family/index.jsp?categoryId=6&page=2", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	has, err := sets.Contains(ctx, "visitedUrls-example.com", "http://www.example.com/family/index.jsp?categoryId=5")
	require.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, 2, sets.Size(s.VisitedKey()))
}

func TestShouldParseProduct(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t, memory.NewSetStore(), nil)

	ok, err := s.ShouldParseProduct(ctx, "  ")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.ShouldParseProduct(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ShouldParseProduct(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "parsedProductIds-example.com", s.ProductsKey())
}

func TestMarkVisitedAndReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sets := memory.NewSetStore()
	s := newStore(t, sets, nil)

	seed := "https://www.example.com/"
	require.NoError(t, s.MarkVisited(ctx, seed))
	ok, err := s.ShouldVisit(ctx, seed, 0)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = s.ShouldParseProduct(ctx, "9")
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))
	assert.Zero(t, sets.Size(s.VisitedKey()))
	assert.Zero(t, sets.Size(s.ProductsKey()))

	ok, err = s.ShouldVisit(ctx, seed, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.ShouldParseProduct(ctx, "9")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Close())
}

func TestStoreErrorsPropagate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t, failingSets{}, nil)

	_, err := s.ShouldVisit(ctx, "http://www.example.com/toys", 0)
	require.ErrorIs(t, err, errStore)
	_, err = s.ShouldParseProduct(ctx, "1")
	require.ErrorIs(t, err, errStore)
	require.ErrorIs(t, s.MarkVisited(ctx, "http://www.example.com/"), errStore)
	require.ErrorIs(t, s.Reset(ctx), errStore)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, memory.NewSetStore(), nil, nil, nil, nil, nil)
	require.Error(t, err)
	_, err = New(Config{Domain: "example.com"}, nil, nil, nil, nil, nil, nil)
	require.Error(t, err)
}
