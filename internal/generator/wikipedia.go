package generator

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/anchorlab/anchorbench/internal/model"
	wikiapi "github.com/anchorlab/anchorbench/pkg/wikipedia"
)

// WikipediaGenerator builds Yes/No questions about whether the first
// sentence of a niche-category article contains a given uncommon word.
type WikipediaGenerator struct {
	client     wikiapi.Client
	categories []string
}

// NewWikipedia creates the Wikipedia generator.
func NewWikipedia(client wikiapi.Client, h Heuristics) *WikipediaGenerator {
	return &WikipediaGenerator{client: client, categories: h.Wikipedia.Categories}
}

func (g *WikipediaGenerator) Domain() model.Domain { return model.DomainWikipedia }

// wikiArticle is one probed article with a usable first sentence.
type wikiArticle struct {
	Title        string
	Sentence     string
	Words        []string
	LastModified string
}

func (g *WikipediaGenerator) Generate(ctx context.Context, count int, deps *Deps) ([]model.QuestionRecord, error) {
	if len(g.categories) == 0 {
		return nil, eris.New("wikipedia: no categories configured")
	}

	log := zap.L().With(zap.String("domain", string(g.Domain())))

	categories := append([]string(nil), g.categories...)
	deps.Rand.Shuffle(len(categories), func(i, j int) {
		categories[i], categories[j] = categories[j], categories[i]
	})

	// Categories occasionally come back empty; try the next one.
	var titles []string
	for _, category := range categories {
		pages, err := g.client.CategoryMembers(ctx, category)
		if err != nil {
			log.Warn("category fetch failed", zap.String("category", category), zap.Error(err))
			continue
		}
		if len(pages) > 0 {
			log.Info("fetched category pages",
				zap.String("category", category),
				zap.Int("pages", len(pages)),
			)
			titles = pages
			break
		}
	}
	if len(titles) == 0 {
		return nil, eris.New("wikipedia: no pages found in any configured category")
	}

	deps.Rand.Shuffle(len(titles), func(i, j int) {
		titles[i], titles[j] = titles[j], titles[i]
	})

	articles, allWords := g.probeArticles(ctx, titles, deps, log)
	if len(articles) == 0 || len(allWords) == 0 {
		log.Warn("no articles with usable first sentences", zap.Int("titles", len(titles)))
		return nil, nil
	}
	log.Info("built sentence map",
		zap.Int("articles", len(articles)),
		zap.Int("keywords", len(allWords)),
	)

	var records []model.QuestionRecord
	misses := 0
	for len(records) < count && misses < count*10 {
		art := articles[deps.Rand.IntN(len(articles))]

		var word, answer string
		if deps.Rand.IntN(2) == 0 {
			word = art.Words[deps.Rand.IntN(len(art.Words))]
			answer = "Yes"
		} else {
			word = g.absentWord(art, allWords, deps)
			if word == "" {
				misses++
				continue
			}
			answer = "No"
		}

		if !deps.Emitted.TryAdd(g.Domain(), art.Title+"\x00"+word) {
			misses++
			continue
		}

		sourceURL := "https://en.wikipedia.org/wiki/" + strings.ReplaceAll(art.Title, " ", "_")
		question := "Does the first sentence of the English Wikipedia article for '" + art.Title + "' contain the word '" + word + "'? Answer Yes or No."

		records = append(records, model.QuestionRecord{
			ID:             newID(g.Domain()),
			Domain:         g.Domain(),
			PromptText:     question,
			ExpectedAnswer: answer,
			AnswerKind:     model.AnswerBoolean,
			SourceRef:      sourceURL,
			Rarity:         model.RarityEstimate{Verified: false, Reason: "boolean question, uniqueness not checked"},
			GeneratedAt:    time.Now().UTC(),
			Metadata: map[string]any{
				"article_title":     art.Title,
				"question_type":     answer,
				"word_tested":       word,
				"last_modified_utc": art.LastModified,
			},
		})
	}

	return records, nil
}

// probeArticles fetches intros until the probe limit and keeps articles
// whose first sentence passes the length and disambiguation filters.
func (g *WikipediaGenerator) probeArticles(ctx context.Context, titles []string, deps *Deps, log *zap.Logger) ([]wikiArticle, []string) {
	var articles []wikiArticle
	wordSet := make(map[string]struct{})

	probed := 0
	for _, title := range titles {
		if probed >= deps.ProbeLimit || ctx.Err() != nil {
			break
		}
		probed++

		extract, lastModified, err := g.client.IntroExtract(ctx, title)
		if err != nil {
			log.Debug("intro fetch failed", zap.String("title", title), zap.Error(err))
			continue
		}
		sentence := firstSentence(extract)
		if sentence == "" {
			continue
		}

		// Words appearing in the title make the question answerable
		// without recalling the article, so exclude them.
		words := deps.Stoplist.UncommonWords(sentence, strings.ToLower(title))
		if len(words) == 0 {
			continue
		}

		articles = append(articles, wikiArticle{
			Title:        title,
			Sentence:     sentence,
			Words:        words,
			LastModified: lastModified,
		})
		for _, w := range words {
			wordSet[w] = struct{}{}
		}
	}

	all := make([]string, 0, len(wordSet))
	for w := range wordSet {
		all = append(all, w)
	}
	return articles, all
}

// absentWord picks a pool word not present in the article's sentence and
// not part of its title.
func (g *WikipediaGenerator) absentWord(art wikiArticle, pool []string, deps *Deps) string {
	title := strings.ToLower(art.Title)
	for range 20 {
		w := pool[deps.Rand.IntN(len(pool))]
		if strings.Contains(title, w) {
			continue
		}
		found := false
		for _, p := range art.Words {
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

// firstSentence returns the text up to the first period, or "" when the
// result is too short, too long, or a disambiguation stub.
func firstSentence(extract string) string {
	if extract == "" {
		return ""
	}
	sentence, _, _ := strings.Cut(extract, ".")
	sentence = strings.TrimSpace(sentence) + "."
	if len(sentence) <= 25 || len(sentence) >= 400 {
		return ""
	}
	if strings.Contains(strings.ToLower(sentence), "may refer to") {
		return ""
	}
	return sentence
}
