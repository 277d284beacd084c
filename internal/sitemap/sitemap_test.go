package sitemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const urlSet = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://www.example.com/family/index.jsp?categoryId=1</loc><lastmod>2024-01-01</lastmod></url>
  <url><loc>
     https://www.example.com/buy/kite-12
  </loc></url>
  <url><loc>/product/index.jsp?productId=5</loc></url>
  <url><loc></loc></url>
</urlset>`

const index = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://www.example.com/sitemap-products.xml</loc></sitemap>
  <sitemap><loc>https://www.example.com/sitemap-categories.xml</loc></sitemap>
</sitemapindex>`

func TestParseURLSet(t *testing.T) {
	t.Parallel()

	sm, err := Parse("https://www.example.com/sitemap.xml", []byte(urlSet))
	require.NoError(t, err)
	assert.Equal(t, KindURLSet, sm.Kind)
	assert.Equal(t, "urlset", sm.Kind.String())
	assert.Equal(t, []string{
		"https://www.example.com/family/index.jsp?categoryId=1",
		"https://www.example.com/buy/kite-12",
		"https://www.example.com/product/index.jsp?productId=5",
	}, sm.Locations)
}

func TestParseIndex(t *testing.T) {
	t.Parallel()

	sm, err := Parse("https://www.example.com/sitemap.xml", []byte(index))
	require.NoError(t, err)
	assert.Equal(t, KindIndex, sm.Kind)
	assert.Equal(t, []string{
		"https://www.example.com/sitemap-products.xml",
		"https://www.example.com/sitemap-categories.xml",
	}, sm.Locations)
}

func TestParseRejectsOtherXML(t *testing.T) {
	t.Parallel()

	_, err := Parse("https://www.example.com/feed.xml", []byte(`<rss><channel/></rss>`))
	require.ErrorIs(t, err, ErrNotSitemap)
	assert.Equal(t, "unknown", Kind(0).String())
}
