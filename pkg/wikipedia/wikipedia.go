// Package wikipedia provides a minimal MediaWiki API client: category
// member listing and plain-text intro extracts.
package wikipedia

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

const (
	defaultAPIURL    = "https://en.wikipedia.org/w/api.php"
	defaultUserAgent = "anchorbench/0.1"
)

// Client performs MediaWiki API operations.
type Client interface {
	// CategoryMembers returns article titles (namespace 0) in a category.
	CategoryMembers(ctx context.Context, category string) ([]string, error)
	// IntroExtract returns the plain-text introduction of an article and the
	// timestamp of its latest revision. A missing page returns ("", "", nil).
	IntroExtract(ctx context.Context, title string) (extract, lastModified string, err error)
}

type categoryMembersResponse struct {
	Query struct {
		CategoryMembers []struct {
			Title     string `json:"title"`
			Namespace int    `json:"ns"`
		} `json:"categorymembers"`
	} `json:"query"`
}

type extractResponse struct {
	Query struct {
		Pages map[string]struct {
			Extract   string `json:"extract"`
			Revisions []struct {
				Timestamp string `json:"timestamp"`
			} `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

// Option configures the client.
type Option func(*httpClient)

// WithAPIURL overrides the default API endpoint.
func WithAPIURL(url string) Option {
	return func(c *httpClient) {
		c.apiURL = url
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
	apiURL  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Wikipedia client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		apiURL: defaultAPIURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(1200*time.Millisecond), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) get(ctx context.Context, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "wikipedia: rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "wikipedia: create request")
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "wikipedia: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "wikipedia: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("wikipedia: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return body, nil
}

func (c *httpClient) CategoryMembers(ctx context.Context, category string) ([]string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("list", "categorymembers")
	params.Set("cmtitle", category)
	params.Set("cmlimit", "500")

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var result categoryMembersResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "wikipedia: unmarshal category response")
	}

	var titles []string
	for _, m := range result.Query.CategoryMembers {
		if m.Namespace == 0 {
			titles = append(titles, m.Title)
		}
	}
	return titles, nil
}

func (c *httpClient) IntroExtract(ctx context.Context, title string) (string, string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("prop", "extracts|revisions")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("redirects", "1")
	params.Set("titles", title)

	body, err := c.get(ctx, params)
	if err != nil {
		return "", "", err
	}

	var result extractResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", "", eris.Wrap(err, "wikipedia: unmarshal extract response")
	}

	for pageID, page := range result.Query.Pages {
		if pageID == "-1" || page.Extract == "" {
			return "", "", nil
		}
		ts := ""
		if len(page.Revisions) > 0 {
			ts = page.Revisions[0].Timestamp
		}
		return page.Extract, ts, nil
	}
	return "", "", nil
}
