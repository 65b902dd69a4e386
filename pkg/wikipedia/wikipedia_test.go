package wikipedia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testClient(url string) Client {
	return NewClient(WithAPIURL(url), WithRateLimit(rate.NewLimiter(rate.Inf, 1)))
}

func TestCategoryMembers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "query", q.Get("action"))
		assert.Equal(t, "categorymembers", q.Get("list"))
		assert.Equal(t, "Category:Astronomical catalogues", q.Get("cmtitle"))
		assert.Equal(t, "500", q.Get("cmlimit"))

		_, _ = w.Write([]byte(`{"query": {"categorymembers": [
			{"title": "Gliese Catalogue of Nearby Stars", "ns": 0},
			{"title": "Category:Star catalogues", "ns": 14},
			{"title": "Cape Photographic Durchmusterung", "ns": 0}
		]}}`))
	}))
	defer srv.Close()

	titles, err := testClient(srv.URL).CategoryMembers(context.Background(), "Category:Astronomical catalogues")

	require.NoError(t, err)
	// Non-article namespaces are filtered out.
	assert.Equal(t, []string{"Gliese Catalogue of Nearby Stars", "Cape Photographic Durchmusterung"}, titles)
}

func TestIntroExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "extracts|revisions", q.Get("prop"))
		assert.Equal(t, "1", q.Get("exintro"))
		assert.Equal(t, "Cape Photographic Durchmusterung", q.Get("titles"))

		_, _ = w.Write([]byte(`{"query": {"pages": {"12345": {
			"extract": "The Cape Photographic Durchmusterung is an astrometric star catalogue. It was compiled in the 1890s.",
			"revisions": [{"timestamp": "2022-11-03T08:12:00Z"}]
		}}}}`))
	}))
	defer srv.Close()

	extract, lastMod, err := testClient(srv.URL).IntroExtract(context.Background(), "Cape Photographic Durchmusterung")

	require.NoError(t, err)
	assert.Contains(t, extract, "astrometric star catalogue")
	assert.Equal(t, "2022-11-03T08:12:00Z", lastMod)
}

func TestIntroExtract_MissingPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"query": {"pages": {"-1": {"extract": ""}}}}`))
	}))
	defer srv.Close()

	extract, lastMod, err := testClient(srv.URL).IntroExtract(context.Background(), "No Such Article")

	require.NoError(t, err)
	assert.Empty(t, extract)
	assert.Empty(t, lastMod)
}

func TestCategoryMembers_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CategoryMembers(context.Background(), "Category:Units of time")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
