package pypi

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
	return NewClient(WithBaseURL(url), WithRateLimit(rate.NewLimiter(rate.Inf, 1)))
}

func TestListPackages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/", r.URL.Path)
		assert.Equal(t, "anchorbench/0.1", r.Header.Get("User-Agent"))

		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html><body>
<a href="/simple/aalib-go/">aalib-go</a>
<a href="/simple/zzyzx-utils/">zzyzx-utils</a>
</body></html>`))
	}))
	defer srv.Close()

	names, err := testClient(srv.URL).ListPackages(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"aalib-go", "zzyzx-utils"}, names)
}

func TestMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pypi/obscure-pkg/json", r.URL.Path)

		_, _ = w.Write([]byte(`{
			"info": {
				"name": "obscure-pkg",
				"summary": "does one thing",
				"package_url": "https://pypi.org/project/obscure-pkg/",
				"requires_dist": ["torch==1.4.0", "requests>=2.0; extra == 'http'"]
			},
			"releases": {
				"0.1.0": [{"upload_time_iso_8601": "2019-03-02T11:00:00.000000Z"}]
			}
		}`))
	}))
	defer srv.Close()

	meta, err := testClient(srv.URL).Metadata(context.Background(), "obscure-pkg")

	require.NoError(t, err)
	assert.Equal(t, "obscure-pkg", meta.Info.Name)
	assert.Equal(t, []string{"torch==1.4.0", "requests>=2.0; extra == 'http'"}, meta.Info.RequiresDist)
	require.Contains(t, meta.Releases, "0.1.0")
	assert.Equal(t, "2019-03-02T11:00:00.000000Z", meta.Releases["0.1.0"][0].UploadTime)
}

func TestMetadata_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Metadata(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestListPackages_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ListPackages(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
