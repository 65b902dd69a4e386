// Package reddit provides a minimal client for Reddit's public JSON
// endpoints: post search and comment listings. No credentials are used;
// a browser-like User-Agent keeps the public endpoints happy.
package reddit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/anchorlab/anchorbench/internal/resilience"
)

const (
	defaultBaseURL   = "https://www.reddit.com"
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 15.6; rv:141.0) Gecko/20100101 Firefox/141.0"
)

// Client performs Reddit read-only operations.
type Client interface {
	SearchPosts(ctx context.Context, query string) ([]Post, error)
	Comments(ctx context.Context, permalink string) ([]Comment, error)
}

// Post is a link post returned by the search endpoint.
type Post struct {
	ID          string  `json:"id"`
	Permalink   string  `json:"permalink"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

// Comment is a top-level comment on a post.
type Comment struct {
	ID         string  `json:"id"`
	Body       string  `json:"body"`
	Permalink  string  `json:"permalink"`
	Subreddit  string  `json:"subreddit"`
	CreatedUTC float64 `json:"created_utc"`
}

type listing[T any] struct {
	Data struct {
		Children []struct {
			Data T `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

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

// NewClient creates a Reddit client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		// Unauthenticated access tolerates roughly one request per second.
		limiter: rate.NewLimiter(rate.Every(1200*time.Millisecond), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "reddit: rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "reddit: create request")
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "reddit: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "reddit: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("reddit: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return body, nil
}

func (c *httpClient) SearchPosts(ctx context.Context, query string) ([]Post, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("sort", "new")
	q.Set("limit", "100")
	q.Set("t", "all")
	q.Set("type", "link")

	body, err := c.get(ctx, "/search.json?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var result listing[Post]
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "reddit: unmarshal search response")
	}

	posts := make([]Post, 0, len(result.Data.Children))
	for _, child := range result.Data.Children {
		posts = append(posts, child.Data)
	}
	return posts, nil
}

func (c *httpClient) Comments(ctx context.Context, permalink string) ([]Comment, error) {
	path := permalink
	if !strings.HasSuffix(path, ".json") {
		path = strings.TrimSuffix(path, "/") + ".json"
	}

	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	// The comments endpoint returns a two-element array: [post, comments].
	var pages []listing[Comment]
	if err := json.Unmarshal(body, &pages); err != nil {
		return nil, eris.Wrap(err, "reddit: unmarshal comments response")
	}
	if len(pages) < 2 {
		return nil, nil
	}

	comments := make([]Comment, 0, len(pages[1].Data.Children))
	for _, child := range pages[1].Data.Children {
		comments = append(comments, child.Data)
	}
	return comments, nil
}
