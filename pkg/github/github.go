// Package github provides a minimal client for the GitHub REST API: repo
// search, git tree listing, and raw file contents. A token is optional;
// unauthenticated requests work at lower rate limits.
package github

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/anchorlab/anchorbench/internal/resilience"
)

const defaultBaseURL = "https://api.github.com"

// Client performs GitHub API operations.
type Client interface {
	SearchRepos(ctx context.Context, query, sort, order string) ([]Repo, error)
	Tree(ctx context.Context, repoFullName, branch string) ([]TreeEntry, error)
	RawFile(ctx context.Context, repoFullName, path, ref string) (string, error)
}

// Repo is a repository returned by the search API.
type Repo struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
	Stars    int    `json:"stargazers_count"`
	PushedAt string `json:"pushed_at"`
	Language string `json:"language"`
	Archived bool   `json:"archived"`
}

// TreeEntry is a single entry in a git tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

type searchResponse struct {
	Items []Repo `json:"items"`
}

type treeResponse struct {
	Tree      []TreeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
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
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a GitHub API client. An empty token is allowed.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		// Unauthenticated search allows 10 requests/minute.
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) get(ctx context.Context, path, accept string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "github: rate limiter")
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "github: create request")
	}
	req.Header.Set("Accept", accept)
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "github: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "github: read response")
	}

	if resp.StatusCode != http.StatusOK {
		// GitHub signals secondary rate limits with 403 and a retry-after header.
		if resp.StatusCode == http.StatusForbidden && resp.Header.Get("Retry-After") != "" {
			return nil, resilience.NewTransientError(
				eris.Errorf("github: secondary rate limit: %s", string(body)), resp.StatusCode)
		}
		err := eris.Errorf("github: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return body, nil
}

func (c *httpClient) SearchRepos(ctx context.Context, query, sort, order string) ([]Repo, error) {
	q := url.Values{}
	q.Set("q", query)
	if sort != "" {
		q.Set("sort", sort)
	}
	if order != "" {
		q.Set("order", order)
	}
	q.Set("per_page", "100")

	body, err := c.get(ctx, "/search/repositories", "application/vnd.github.v3+json", q)
	if err != nil {
		return nil, err
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "github: unmarshal search response")
	}
	return result.Items, nil
}

func (c *httpClient) Tree(ctx context.Context, repoFullName, branch string) ([]TreeEntry, error) {
	q := url.Values{}
	q.Set("recursive", "1")

	body, err := c.get(ctx, "/repos/"+repoFullName+"/git/trees/"+branch, "application/vnd.github.v3+json", q)
	if err != nil {
		return nil, err
	}

	var result treeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "github: unmarshal tree response")
	}
	return result.Tree, nil
}

func (c *httpClient) RawFile(ctx context.Context, repoFullName, path, ref string) (string, error) {
	q := url.Values{}
	if ref != "" {
		q.Set("ref", ref)
	}

	body, err := c.get(ctx, "/repos/"+repoFullName+"/contents/"+path, "application/vnd.github.raw", q)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
