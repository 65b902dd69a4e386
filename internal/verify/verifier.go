// Package verify estimates how rare a candidate fact string is on the open
// web and decides whether it is anchor-like enough to admit into a benchmark.
package verify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/anchorlab/anchorbench/internal/model"
	"github.com/anchorlab/anchorbench/internal/resilience"
	"github.com/anchorlab/anchorbench/pkg/brave"
)

// resultsPerQuery is the page depth requested from the search API. One page
// is enough to reject a candidate; pagination is never worth the quota.
const resultsPerQuery = 10

// Verifier checks candidate fact strings against a web search index.
type Verifier struct {
	search brave.Client
	cache  *Cache
	retry  resilience.RetryConfig
}

// New creates a Verifier. A nil search client puts the verifier in degraded
// mode: every estimate comes back Verified=false and generation proceeds
// with candidates explicitly flagged unverified. cache may be nil.
func New(search brave.Client, cache *Cache) *Verifier {
	return &Verifier{
		search: search,
		cache:  cache,
		retry:  resilience.DefaultRetryConfig(),
	}
}

// Verify estimates how many documents contain the exact candidate string.
// Extra scope terms (e.g. a repo name) are appended as additional quoted
// terms. Verify never returns an error: every failure mode degrades to an
// unverified estimate so a generation run cannot be aborted by the search
// backend.
func (v *Verifier) Verify(ctx context.Context, candidate string, scope ...string) model.RarityEstimate {
	query := buildQuery(candidate, scope)

	if v.search == nil {
		return unverified(query, "missing search credentials")
	}

	if v.cache != nil {
		if est, ok := v.cache.Get(ctx, query); ok {
			return est
		}
	}

	resp, err := v.webSearch(ctx, query)
	if err != nil {
		return unverified(query, "search failed: "+err.Error())
	}

	est := estimate(resp, query)
	v.store(ctx, query, est)
	return est
}

// VerifyAnchored is Verify with a stricter check for candidates that claim
// a specific source: whenever the search returns any results, sourceURL must
// be among them. A populated result page that never cites the source means
// the string occurs in unrelated documents; the estimate comes back with
// SourceMiss set and never passes Admit.
func (v *Verifier) VerifyAnchored(ctx context.Context, candidate, sourceURL string, scope ...string) model.RarityEstimate {
	query := buildQuery(candidate, scope)

	if v.search == nil {
		return unverified(query, "missing search credentials")
	}

	// The miss flag depends on the source, so anchored lookups cache
	// under a composite key.
	cacheKey := query + "\x00" + sourceURL
	if v.cache != nil {
		if est, ok := v.cache.Get(ctx, cacheKey); ok {
			est.Query = query
			return est
		}
	}

	resp, err := v.webSearch(ctx, query)
	if err != nil {
		return unverified(query, "search failed: "+err.Error())
	}

	est := estimate(resp, query)
	if len(resp.Web.Results) > 0 && !resultsContain(resp, sourceURL) {
		est.SourceMiss = true
	}
	v.store(ctx, cacheKey, est)
	return est
}

func (v *Verifier) webSearch(ctx context.Context, query string) (*brave.WebSearchResponse, error) {
	retry := v.retry
	retry.OnRetry = resilience.RetryLogger("brave", "web_search")

	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*brave.WebSearchResponse, error) {
		return v.search.WebSearch(ctx, query, resultsPerQuery)
	})
	if err != nil {
		zap.L().Warn("uniqueness check degraded after retries",
			zap.String("query", query),
			zap.Error(err),
		)
		return nil, err
	}
	return resp, nil
}

func (v *Verifier) store(ctx context.Context, key string, est model.RarityEstimate) {
	if v.cache == nil {
		return
	}
	if err := v.cache.Put(ctx, key, est); err != nil {
		zap.L().Warn("rarity cache write failed", zap.Error(err))
	}
}

// Admit reports whether an estimate passes the domain threshold. Unverified
// estimates are admitted (the flag travels with the record); a source miss
// is never admitted; the boundary is inclusive, so count == threshold is
// admitted.
func Admit(est model.RarityEstimate, threshold int) bool {
	if est.SourceMiss {
		return false
	}
	if !est.Verified {
		return true
	}
	return est.Count <= threshold
}

func buildQuery(candidate string, scope []string) string {
	query := quote(candidate)
	for _, s := range scope {
		query += " " + quote(s)
	}
	return query
}

func estimate(resp *brave.WebSearchResponse, query string) model.RarityEstimate {
	return model.RarityEstimate{
		Count:    len(resp.Web.Results),
		Capped:   len(resp.Web.Results) >= resultsPerQuery,
		Verified: true,
		Query:    query,
	}
}

func unverified(query, reason string) model.RarityEstimate {
	return model.RarityEstimate{
		Verified: false,
		Query:    query,
		Reason:   reason,
	}
}

func resultsContain(resp *brave.WebSearchResponse, sourceURL string) bool {
	want := strings.TrimSuffix(sourceURL, "/")
	for _, r := range resp.Web.Results {
		if strings.TrimSuffix(r.URL, "/") == want {
			return true
		}
	}
	return false
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, "") + `"`
}
