package site

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/retry"
)

const productPage = `<!doctype html>
<html><head>
<meta name="description" content=" A castle with 400 bricks. ">
<meta name="keywords" content="bricks,castle">
</head><body>
<span id="productTitle"> Brick   Castle </span>
<div id="corePrice_feature_div"><span class="a-offscreen">$49.99</span></div>
<table id="productDetails_techSpec_section_1">
  <tr><th>Product Dimensions</th><td>10 x 8 x 2 inches; 1.5 Pounds</td></tr>
  <tr><th>Item Weight</th><td>1.5 pounds</td></tr>
  <tr><th>UPC</th><td>012345678905 012345678912</td></tr>
</table>
</body></html>`

type recordingSink struct {
	mu      sync.Mutex
	entries []string
}

func (s *recordingSink) Append(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, text)
	return nil
}

func (s *recordingSink) Entries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.entries...)
}

type countingExtractor struct {
	calls  atomic.Int32
	result Extraction
}

func (e *countingExtractor) Extract(*goquery.Document) Extraction {
	e.calls.Add(1)
	return e.result
}

type fixedIDs map[string]string

func (f fixedIDs) ExtractProductID(url string) (string, bool) {
	id, ok := f[url]
	return id, ok
}

const pageURL = "http://www.example.com/product/index.jsp?productId=77"

func newParser(t *testing.T, ex Extractor, maxRetry int, sink *recordingSink) *Parser {
	t.Helper()
	p, err := NewParser("Example.com", fixedIDs{pageURL: "77"}, ex, retry.New(maxRetry, sink, zap.NewNop()), sink, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestParseProductAmazonProfile(t *testing.T) {
	t.Parallel()

	rules, ok := Profile("amazon.com")
	require.True(t, ok)
	sink := &recordingSink{}
	p := newParser(t, NewSelectorExtractor(rules), 3, sink)
	assert.Equal(t, crawler.KindProductParser, p.Kind())
	assert.Equal(t, "example.com", p.Domain())

	product, ok := p.ParseProduct(context.Background(), pageURL, crawler.Document{URL: pageURL, Body: []byte(productPage)})
	require.True(t, ok)
	assert.Equal(t, crawler.Product{
		ID:           "77",
		Name:         "Brick Castle",
		Description:  "A castle with 400 bricks.",
		Keywords:     "bricks,castle",
		Barcode:      "012345678905",
		Price:        "49.99",
		WeightGrams:  680,
		DimensionsMM: []int{254, 203, 50},
	}, product)
	assert.Empty(t, sink.Entries())
}

func TestParseProductAttemptCounts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		result    Extraction
		wantCalls int32
		wantOK    bool
		wantSink  int
	}{
		{
			name:      "complete product parses once",
			result:    Extraction{Barcode: "1", Price: "2", WeightGrams: 3, DimensionsMM: []int{4}},
			wantCalls: 1,
			wantOK:    true,
		},
		{
			name:      "partial product exhausts retries",
			result:    Extraction{Barcode: "1", Price: "2"},
			wantCalls: 3,
			wantSink:  1,
		},
		{
			name:      "no attributes is not a product",
			result:    Extraction{Name: "About us"},
			wantCalls: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sink := &recordingSink{}
			ex := &countingExtractor{result: tc.result}
			p := newParser(t, ex, 3, sink)
			_, ok := p.ParseProduct(context.Background(), pageURL, crawler.Document{Body: []byte("<html></html>")})
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantCalls, ex.calls.Load())
			assert.Len(t, sink.Entries(), tc.wantSink)
		})
	}
}

func TestParseProductMissingID(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	ex := &countingExtractor{}
	p := newParser(t, ex, 3, sink)
	other := "http://www.example.com/about"
	_, ok := p.ParseProduct(context.Background(), other, crawler.Document{Body: []byte("<html></html>")})
	assert.False(t, ok)
	assert.Zero(t, ex.calls.Load())
	assert.Equal(t, []string{other}, sink.Entries())
}

func TestNewParserRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := NewParser("example.com", nil, &countingExtractor{}, nil, nil, nil)
	require.Error(t, err)
	_, err = NewParser("example.com", fixedIDs{}, nil, nil, nil, nil)
	require.Error(t, err)
}

func TestMicrodataProfile(t *testing.T) {
	t.Parallel()

	rules, ok := Profile("microdata")
	require.True(t, ok)
	assert.Equal(t, []string{"amazon.com", "microdata"}, ProfileNames())

	html := `<div itemscope>
<h1 itemprop="name">Kite</h1>
<meta itemprop="gtin13" content="4006381333931">
<meta itemprop="price" content="19.50">
<span itemprop="weight">250 g</span>
<span itemprop="depth">120 x 80 mm</span>
</div>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	ex := NewSelectorExtractor(rules).Extract(doc)
	assert.Equal(t, 4, ex.Found())
	assert.Equal(t, "Kite", ex.Name)
	assert.Equal(t, "4006381333931", ex.Barcode)
	assert.EqualValues(t, "19.50", ex.Price)
	assert.Equal(t, 250, ex.WeightGrams)
	assert.Equal(t, []int{120, 80}, ex.DimensionsMM)
}
