package generator

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/anchorlab/anchorbench/internal/model"
	"github.com/anchorlab/anchorbench/internal/verify"
	githubapi "github.com/anchorlab/anchorbench/pkg/github"
)

// assignRe matches simple literal assignments: a variable name followed by
// = or : and a single-line quoted value. RE2 has no backreferences, so each
// quote style gets its own alternative.
var assignRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]{3,})\s*[:=]\s*(?:"([^"\n]+)"|'([^'\n]+)'|` + "`([^`\n]+)`" + `)`)

// assignment is a candidate variable/value pair extracted from file content.
type assignment struct {
	Name  string
	Value string
}

// extractAssignments returns every literal assignment in content whose
// variable name has at least minNameLen characters.
func extractAssignments(content string, minNameLen int) []assignment {
	var out []assignment
	for _, line := range strings.Split(content, "\n") {
		m := assignRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[1]
		if len(name) < minNameLen {
			continue
		}
		value := m[2]
		if value == "" {
			value = m[3]
		}
		if value == "" {
			value = m[4]
		}
		if value == "" {
			continue
		}
		out = append(out, assignment{Name: name, Value: value})
	}
	return out
}

// GitHubGenerator sources exact-string questions from variable assignments
// in GitHub repositories. The obscure variant trawls 0-1 star repos whose
// content is unlikely to appear anywhere else; the popular variant asks
// about high-star repos, scoping the uniqueness query with the repo name.
type GitHubGenerator struct {
	client  githubapi.Client
	popular bool
	query   string
}

// NewGitHub creates the obscure-repo generator.
func NewGitHub(client githubapi.Client, h Heuristics) *GitHubGenerator {
	return &GitHubGenerator{client: client, query: h.GitHub.ObscureQuery}
}

// NewGitHubPopular creates the popular-repo generator.
func NewGitHubPopular(client githubapi.Client, h Heuristics) *GitHubGenerator {
	return &GitHubGenerator{client: client, popular: true, query: h.GitHub.PopularQuery}
}

func (g *GitHubGenerator) Domain() model.Domain {
	if g.popular {
		return model.DomainGitHubPopular
	}
	return model.DomainGitHub
}

func (g *GitHubGenerator) Generate(ctx context.Context, count int, deps *Deps) ([]model.QuestionRecord, error) {
	sort, order := "updated", "desc"
	if !g.popular {
		// Randomize the sort so re-runs sample different obscure repos.
		sorts := []string{"stars", "forks", "updated"}
		sort, order = sorts[deps.Rand.IntN(len(sorts))], "asc"
	}

	repos, err := g.client.SearchRepos(ctx, g.query, sort, order)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: search repos", g.Domain())
	}
	if len(repos) == 0 {
		return nil, nil
	}

	deps.Rand.Shuffle(len(repos), func(i, j int) {
		repos[i], repos[j] = repos[j], repos[i]
	})

	log := zap.L().With(zap.String("domain", string(g.Domain())))
	threshold := deps.Threshold(g.Domain())

	var records []model.QuestionRecord
	for i, repo := range repos {
		if len(records) >= count || i >= deps.ProbeLimit {
			break
		}
		if ctx.Err() != nil {
			break
		}

		rec, ok := g.probeRepo(ctx, repo, threshold, deps, log)
		if ok {
			records = append(records, rec)
		}
	}

	return records, nil
}

// branches to try in order; popular repos sometimes develop on "dev".
func (g *GitHubGenerator) branches() []string {
	if g.popular {
		return []string{"main", "master", "dev"}
	}
	return []string{"main", "master"}
}

func (g *GitHubGenerator) probeRepo(ctx context.Context, repo githubapi.Repo, threshold int, deps *Deps, log *zap.Logger) (model.QuestionRecord, bool) {
	var files []string
	var branch string
	for _, b := range g.branches() {
		tree, err := g.client.Tree(ctx, repo.FullName, b)
		if err != nil {
			continue
		}
		for _, entry := range tree {
			if entry.Type == "blob" && g.usablePath(entry.Path) {
				files = append(files, entry.Path)
			}
		}
		if len(files) > 0 {
			branch = b
			break
		}
	}
	if len(files) == 0 {
		return model.QuestionRecord{}, false
	}

	log.Debug("probing repo",
		zap.String("repo", repo.FullName),
		zap.Int("files", len(files)),
	)

	attempts := 3
	if g.popular {
		attempts = 5
	}
	if attempts > len(files) {
		attempts = len(files)
	}

	for range attempts {
		path := files[deps.Rand.IntN(len(files))]

		content, err := g.client.RawFile(ctx, repo.FullName, path, branch)
		if err != nil {
			continue
		}

		minNameLen := 4
		if g.popular {
			minNameLen = 5
		}
		candidates := extractAssignments(content, minNameLen)
		if len(candidates) == 0 {
			continue
		}

		cand := candidates[deps.Rand.IntN(len(candidates))]
		if !g.usableValue(cand.Value, deps.Stoplist) {
			continue
		}
		if !deps.Emitted.TryAdd(g.Domain(), cand.Value) {
			continue
		}

		sourceURL := repo.HTMLURL + "/blob/" + branch + "/" + path

		var est model.RarityEstimate
		if g.popular {
			est = deps.Verifier.VerifyAnchored(ctx, cand.Value, sourceURL, repo.FullName)
		} else {
			est = deps.Verifier.VerifyAnchored(ctx, cand.Value, sourceURL)
		}
		if !verify.Admit(est, threshold) {
			log.Debug("candidate rejected by rarity check",
				zap.String("value", cand.Value),
				zap.Int("count", est.Count),
				zap.Int("threshold", threshold),
				zap.Bool("source_miss", est.SourceMiss),
			)
			continue
		}

		return model.QuestionRecord{
			ID:             newID(g.Domain()),
			Domain:         g.Domain(),
			PromptText:     g.questionText(repo.FullName, cand.Name, sourceURL),
			ExpectedAnswer: cand.Value,
			AnswerKind:     model.AnswerExactString,
			SourceRef:      sourceURL,
			Rarity:         est,
			GeneratedAt:    time.Now().UTC(),
			Metadata: map[string]any{
				"repo_name":     repo.FullName,
				"file_path":     path,
				"variable_name": cand.Name,
				"stars":         repo.Stars,
				"pushed_at":     repo.PushedAt,
			},
		}, true
	}

	return model.QuestionRecord{}, false
}

func (g *GitHubGenerator) usablePath(path string) bool {
	lower := strings.ToLower(path)
	if g.popular {
		if strings.Contains(lower, "test") {
			return false
		}
		for _, suffix := range []string{".md", ".png", ".lock", ".json"} {
			if strings.HasSuffix(lower, suffix) {
				return false
			}
		}
		return true
	}
	for _, suffix := range []string{".png", ".jpg", ".gif", ".lock"} {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	return true
}

func (g *GitHubGenerator) usableValue(value string, stop *Stoplist) bool {
	if !saneValue(value, stop) {
		return false
	}
	if g.popular {
		if strings.HasPrefix(value, "http") {
			return false
		}
		if !strings.ContainsFunc(value, unicode.IsLetter) {
			return false
		}
	}
	return true
}

func (g *GitHubGenerator) questionText(repoName, varName, sourceURL string) string {
	if g.popular {
		return "In the popular GitHub repository '" + repoName + "', what is the value of the variable named `" + varName + "` found in the file at " + sourceURL + "?"
	}
	return "In the GitHub file at " + sourceURL + ", what is the value of the variable named `" + varName + "`?"
}
