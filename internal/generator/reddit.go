package generator

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/anchorlab/anchorbench/internal/model"
	redditapi "github.com/anchorlab/anchorbench/pkg/reddit"
)

// redditExcludedSubs are huge catch-all subreddits whose posts are never
// obscure enough to anchor on.
var redditExcludedSubs = map[string]struct{}{
	"askreddit": {},
	"funny":     {},
}

// redditMaxPostScore keeps the sample to low-score posts. Highly upvoted
// threads are exactly the mainstream content a curated corpus keeps.
const redditMaxPostScore = 5

// RedditGenerator builds Yes/No questions about whether a low-traffic
// comment contains a given uncommon word. The topic is drawn from a niche
// search-term list so the posts themselves are unlikely training data.
type RedditGenerator struct {
	client redditapi.Client
	topics []string
}

// NewReddit creates the Reddit generator.
func NewReddit(client redditapi.Client, h Heuristics) *RedditGenerator {
	return &RedditGenerator{client: client, topics: h.Reddit.SearchTopics}
}

func (g *RedditGenerator) Domain() model.Domain { return model.DomainReddit }

// redditCandidate pairs a comment with the uncommon words found in it.
type redditCandidate struct {
	comment redditapi.Comment
	words   []string
}

func (g *RedditGenerator) Generate(ctx context.Context, count int, deps *Deps) ([]model.QuestionRecord, error) {
	if len(g.topics) == 0 {
		return nil, eris.New("reddit: no search topics configured")
	}
	topic := g.topics[deps.Rand.IntN(len(g.topics))]

	posts, err := g.client.SearchPosts(ctx, topic)
	if err != nil {
		return nil, eris.Wrapf(err, "reddit: search posts for %q", topic)
	}

	log := zap.L().With(
		zap.String("domain", string(g.Domain())),
		zap.String("topic", topic),
	)

	candidates, allWords := g.collectCandidates(ctx, posts, deps, log)
	if len(candidates) == 0 || len(allWords) == 0 {
		log.Warn("no usable comments found", zap.Int("posts", len(posts)))
		return nil, nil
	}
	log.Info("aggregated comment keywords",
		zap.Int("comments", len(candidates)),
		zap.Int("keywords", len(allWords)),
	)

	var records []model.QuestionRecord
	misses := 0
	for len(records) < count && misses < count*10 {
		cand := candidates[deps.Rand.IntN(len(candidates))]
		sourceURL := "https://www.reddit.com" + cand.comment.Permalink

		var word, answer string
		if deps.Rand.IntN(2) == 0 {
			word = cand.words[deps.Rand.IntN(len(cand.words))]
			answer = "Yes"
		} else {
			word = pickAbsentWord(allWords, cand.words, deps)
			if word == "" {
				misses++
				continue
			}
			answer = "No"
		}

		if !deps.Emitted.TryAdd(g.Domain(), cand.comment.ID+"\x00"+word) {
			misses++
			continue
		}

		// The web lookup is audit data only. A wrong Yes/No is
		// self-evident from the source comment, so the hit count goes
		// into the metadata and the record never carries a verified
		// rarity claim.
		est := deps.Verifier.Verify(ctx, word, topic)

		metadata := map[string]any{
			"topic":          topic,
			"subreddit":      cand.comment.Subreddit,
			"question_type":  answer,
			"keyword_tested": word,
			"created_utc":    time.Unix(int64(cand.comment.CreatedUTC), 0).UTC().Format(time.RFC3339),
		}
		if est.Verified {
			metadata["search_hits"] = est.Count
		}

		question := "Does the Reddit comment at the URL " + sourceURL + " contain the word '" + word + "'? Answer Yes or No."
		records = append(records, model.QuestionRecord{
			ID:             newID(g.Domain()),
			Domain:         g.Domain(),
			PromptText:     question,
			ExpectedAnswer: answer,
			AnswerKind:     model.AnswerBoolean,
			SourceRef:      sourceURL,
			Rarity: model.RarityEstimate{
				Verified: false,
				Query:    est.Query,
				Reason:   "boolean question, uniqueness not checked",
			},
			GeneratedAt: time.Now().UTC(),
			Metadata:    metadata,
		})
	}

	return records, nil
}

// collectCandidates walks the posts, fetches their comments, and extracts
// uncommon words from comment bodies of reasonable length.
func (g *RedditGenerator) collectCandidates(ctx context.Context, posts []redditapi.Post, deps *Deps, log *zap.Logger) ([]redditCandidate, []string) {
	var candidates []redditCandidate
	wordSet := make(map[string]struct{})

	probed := 0
	for _, post := range posts {
		if probed >= deps.ProbeLimit || ctx.Err() != nil {
			break
		}
		if post.NumComments == 0 || post.Permalink == "" {
			continue
		}
		if post.Score > redditMaxPostScore {
			continue
		}
		if _, excluded := redditExcludedSubs[strings.ToLower(post.Subreddit)]; excluded {
			continue
		}
		probed++

		comments, err := g.client.Comments(ctx, post.Permalink)
		if err != nil {
			log.Debug("comment fetch failed", zap.String("permalink", post.Permalink), zap.Error(err))
			continue
		}

		for _, c := range comments {
			body := strings.TrimSpace(c.Body)
			if len(body) <= 20 || len(body) >= 400 || body == "[deleted]" || body == "[removed]" {
				continue
			}
			words := deps.Stoplist.UncommonWords(body, "")
			if len(words) == 0 {
				continue
			}
			candidates = append(candidates, redditCandidate{comment: c, words: words})
			for _, w := range words {
				wordSet[w] = struct{}{}
			}
		}
	}

	all := make([]string, 0, len(wordSet))
	for w := range wordSet {
		all = append(all, w)
	}
	return candidates, all
}

// pickAbsentWord returns a word from the pool that is not among present.
func pickAbsentWord(pool, present []string, deps *Deps) string {
	for range 20 {
		w := pool[deps.Rand.IntN(len(pool))]
		found := false
		for _, p := range present {
			if p == w {
				found = true
				break
			}
		}
		if !found {
			return w
		}
	}
	return ""
}
