// Package pypi provides a minimal client for the PyPI simple index and the
// per-package JSON metadata endpoint.
package pypi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/anchorlab/anchorbench/internal/resilience"
)

const (
	defaultBaseURL   = "https://pypi.org"
	defaultUserAgent = "anchorbench/0.1"
)

// Client performs PyPI operations.
type Client interface {
	// ListPackages returns every package name on the simple index.
	ListPackages(ctx context.Context) ([]string, error)
	// Metadata returns the JSON metadata for one package.
	Metadata(ctx context.Context, name string) (*PackageMetadata, error)
}

// PackageMetadata is the subset of /pypi/<name>/json we consume.
type PackageMetadata struct {
	Info     PackageInfo                `json:"info"`
	Releases map[string][]ReleaseUpload `json:"releases"`
}

// PackageInfo holds per-package fields.
type PackageInfo struct {
	Name         string   `json:"name"`
	Summary      string   `json:"summary"`
	PackageURL   string   `json:"package_url"`
	RequiresDist []string `json:"requires_dist"`
}

// ReleaseUpload is one uploaded file of a release.
type ReleaseUpload struct {
	UploadTime string `json:"upload_time_iso_8601"`
}

// simple index anchors look like <a href="/simple/coolpkg/">coolpkg</a>
var simpleAnchorRe = regexp.MustCompile(`<a href="/simple/([^/]+)/"`)

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate limiter.
func WithRateLimit(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a PyPI client. No credentials are needed.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			// The simple index response is tens of megabytes.
			Timeout: 120 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 4),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) get(ctx context.Context, path string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, eris.Wrap(err, "pypi: rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "pypi: create request")
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "pypi: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "pypi: read response")
	}
	return body, resp.StatusCode, nil
}

func (c *httpClient) ListPackages(ctx context.Context) ([]string, error) {
	body, status, err := c.get(ctx, "/simple/")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		err := eris.Errorf("pypi: unexpected status %d listing packages", status)
		if resilience.IsTransientHTTPStatus(status) {
			return nil, resilience.NewTransientError(err, status)
		}
		return nil, err
	}

	matches := simpleAnchorRe.FindAllSubmatch(body, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, string(m[1]))
	}
	return names, nil
}

func (c *httpClient) Metadata(ctx context.Context, name string) (*PackageMetadata, error) {
	body, status, err := c.get(ctx, "/pypi/"+name+"/json")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		err := eris.Errorf("pypi: unexpected status %d for package %s", status, name)
		if resilience.IsTransientHTTPStatus(status) {
			return nil, resilience.NewTransientError(err, status)
		}
		return nil, err
	}

	var meta PackageMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, eris.Wrapf(err, "pypi: unmarshal metadata for %s", name)
	}
	return &meta, nil
}
