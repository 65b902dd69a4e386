package generator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorlab/anchorbench/internal/model"
	"github.com/anchorlab/anchorbench/internal/verify"
	"github.com/anchorlab/anchorbench/pkg/brave"
	githubapi "github.com/anchorlab/anchorbench/pkg/github"
	pypiapi "github.com/anchorlab/anchorbench/pkg/pypi"
	redditapi "github.com/anchorlab/anchorbench/pkg/reddit"
)

// rareSearch is a brave.Client whose every query looks unique.
type rareSearch struct{}

func (rareSearch) WebSearch(ctx context.Context, query string, count int) (*brave.WebSearchResponse, error) {
	return &brave.WebSearchResponse{}, nil
}

// commonSearch is a brave.Client whose every query returns a full result
// page, as a widely indexed string would.
type commonSearch struct{}

func (commonSearch) WebSearch(ctx context.Context, query string, count int) (*brave.WebSearchResponse, error) {
	resp := &brave.WebSearchResponse{}
	for i := 0; i < count; i++ {
		resp.Web.Results = append(resp.Web.Results, brave.Result{URL: fmt.Sprintf("https://example.com/hit/%d", i)})
	}
	return resp, nil
}

func testDeps(t *testing.T) *Deps {
	t.Helper()
	stop := NewStoplist(DefaultHeuristics().FallbackStopwords)
	deps := NewDeps(verify.New(rareSearch{}, nil), stop, func(model.Domain) int { return 5 }, 50, 2)
	deps.Rand = rand.New(rand.NewPCG(7, 11))
	return deps
}

func TestExtractAssignments(t *testing.T) {
	content := strings.Join([]string{
		`API_TOKEN = "hV9x2kQ81pmz"`,
		`db_password: 'quiet-ocelot-42'`,
		"greeting = `hello from the basement`",
		`x = "too short a name"`,
		`no_value =`,
		`config_path = get_path()`,
	}, "\n")

	got := extractAssignments(content, 4)

	require.Len(t, got, 3)
	assert.Equal(t, assignment{Name: "API_TOKEN", Value: "hV9x2kQ81pmz"}, got[0])
	assert.Equal(t, assignment{Name: "db_password", Value: "quiet-ocelot-42"}, got[1])
	assert.Equal(t, assignment{Name: "greeting", Value: "hello from the basement"}, got[2])
}

func TestExtractAssignments_MinNameLen(t *testing.T) {
	content := `name = "valuable-string"`

	assert.Len(t, extractAssignments(content, 4), 1)
	assert.Empty(t, extractAssignments(content, 5))
}

func TestSaneValue(t *testing.T) {
	stop := NewStoplist([]string{"password"})

	cases := []struct {
		value string
		want  bool
	}{
		{"hV9x2kQ81pmz", true},
		{"tiny", false},
		{strings.Repeat("x", 100), false},
		{"true", false},
		{"application/json", false},
		{"password", false},
		{"  spaced-but-fine  ", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, saneValue(tc.value, stop), "value %q", tc.value)
	}
}

func TestEmittedSet_CaseInsensitiveDedupe(t *testing.T) {
	s := NewEmittedSet()

	assert.True(t, s.TryAdd(model.DomainGitHub, "Secret-Value"))
	assert.False(t, s.TryAdd(model.DomainGitHub, "secret-value"))
	assert.True(t, s.TryAdd(model.DomainReddit, "secret-value"))
	assert.Equal(t, 2, s.Len())
}

func TestRegistry_DomainsCanonicalOrder(t *testing.T) {
	h := DefaultHeuristics()
	r := NewRegistry(
		NewWikipedia(fakeWiki{}, h),
		NewGitHub(&fakeGitHub{}, h),
		NewPyPI(&fakePyPI{}),
	)

	assert.Equal(t, []model.Domain{model.DomainGitHub, model.DomainPyPI, model.DomainWikipedia}, r.Domains())

	_, err := r.Get(model.DomainReddit)
	assert.Error(t, err)
}

func TestFirstSentence(t *testing.T) {
	good := "The Acme Widget Works was a defunct machining company in Ohio. It closed in 1921."
	assert.Equal(t, "The Acme Widget Works was a defunct machining company in Ohio.", firstSentence(good))

	assert.Empty(t, firstSentence("Short."))
	assert.Empty(t, firstSentence("Acme may refer to several unrelated companies in this list of things."))
	assert.Empty(t, firstSentence(""))
}

func TestDirectRequirements(t *testing.T) {
	got := directRequirements([]string{
		"requests>=2.0",
		"click==8.1.7",
		`pytest; extra == "dev"`,
		"loose-name",
		"",
	})

	assert.Equal(t, []string{"requests>=2.0", "click==8.1.7"}, got)
}

func TestEarliestUpload(t *testing.T) {
	releases := map[string][]pypiapi.ReleaseUpload{
		"1.0": {{UploadTime: "2019-03-01T00:00:00Z"}},
		"2.0": {{UploadTime: "2021-06-15T00:00:00Z"}, {UploadTime: ""}},
	}

	assert.Equal(t, "2019-03-01T00:00:00Z", earliestUpload(releases))
	assert.Empty(t, earliestUpload(nil))
}

// --- github ---

type fakeGitHub struct {
	repos     []githubapi.Repo
	searchErr error
	tree      map[string][]githubapi.TreeEntry
	files     map[string]string
}

func (f *fakeGitHub) SearchRepos(ctx context.Context, query, sort, order string) ([]githubapi.Repo, error) {
	return f.repos, f.searchErr
}

func (f *fakeGitHub) Tree(ctx context.Context, repo, branch string) ([]githubapi.TreeEntry, error) {
	entries, ok := f.tree[repo+"@"+branch]
	if !ok {
		return nil, assert.AnError
	}
	return entries, nil
}

func (f *fakeGitHub) RawFile(ctx context.Context, repo, path, ref string) (string, error) {
	content, ok := f.files[repo+"/"+path]
	if !ok {
		return "", assert.AnError
	}
	return content, nil
}

func obscureRepoFixture() *fakeGitHub {
	return &fakeGitHub{
		repos: []githubapi.Repo{{
			FullName: "alice/dotfiles",
			HTMLURL:  "https://github.com/alice/dotfiles",
			Stars:    1,
			PushedAt: "2022-04-01T00:00:00Z",
		}},
		tree: map[string][]githubapi.TreeEntry{
			"alice/dotfiles@master": {
				{Path: "setup.py", Type: "blob"},
				{Path: "logo.png", Type: "blob"},
				{Path: "src", Type: "tree"},
			},
		},
		files: map[string]string{
			"alice/dotfiles/setup.py": `SECRET_SALT = "k9x-basement-4711"`,
		},
	}
}

func TestGitHubGenerate_EmitsExactStringQuestion(t *testing.T) {
	g := NewGitHub(obscureRepoFixture(), DefaultHeuristics())

	records, err := g.Generate(context.Background(), 1, testDeps(t))

	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, model.DomainGitHub, rec.Domain)
	assert.Equal(t, model.AnswerExactString, rec.AnswerKind)
	assert.Equal(t, "k9x-basement-4711", rec.ExpectedAnswer)
	assert.Equal(t, "https://github.com/alice/dotfiles/blob/master/setup.py", rec.SourceRef)
	assert.Contains(t, rec.PromptText, "`SECRET_SALT`")
	assert.Contains(t, rec.PromptText, rec.SourceRef)
	assert.True(t, strings.HasPrefix(rec.ID, "github-"))
	assert.True(t, rec.Rarity.Verified)
	assert.Zero(t, rec.Rarity.Count)
}

func TestGitHubGenerate_SearchErrorPropagates(t *testing.T) {
	g := NewGitHub(&fakeGitHub{searchErr: assert.AnError}, DefaultHeuristics())

	_, err := g.Generate(context.Background(), 1, testDeps(t))

	assert.Error(t, err)
}

func TestGitHubGenerate_ShortfallIsNotAnError(t *testing.T) {
	fake := obscureRepoFixture()
	g := NewGitHub(fake, DefaultHeuristics())

	// Only one extractable value exists, so asking for three yields one.
	records, err := g.Generate(context.Background(), 3, testDeps(t))

	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestGitHubPopular_PathAndValueFilters(t *testing.T) {
	g := NewGitHubPopular(&fakeGitHub{}, DefaultHeuristics())

	assert.False(t, g.usablePath("lib/parser_test.go"))
	assert.False(t, g.usablePath("README.md"))
	assert.False(t, g.usablePath("package-lock.json"))
	assert.True(t, g.usablePath("lib/parser.go"))

	stop := NewStoplist(nil)
	assert.False(t, g.usableValue("http://example.com/page", stop))
	assert.False(t, g.usableValue("1234567890", stop))
	assert.True(t, g.usableValue("v2-codename-ocelot", stop))
}

func TestGitHubPopular_ScopesVerificationWithRepoName(t *testing.T) {
	fake := obscureRepoFixture()
	fake.repos[0].Stars = 80000
	g := NewGitHubPopular(fake, DefaultHeuristics())

	records, err := g.Generate(context.Background(), 1, testDeps(t))

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Rarity.Query, `"alice/dotfiles"`)
	assert.Contains(t, records[0].PromptText, "'alice/dotfiles'")
}

// --- pypi ---

type fakePyPI struct {
	names []string
	meta  map[string]*pypiapi.PackageMetadata
}

func (f *fakePyPI) ListPackages(ctx context.Context) ([]string, error) {
	return f.names, nil
}

func (f *fakePyPI) Metadata(ctx context.Context, name string) (*pypiapi.PackageMetadata, error) {
	m, ok := f.meta[name]
	if !ok {
		return nil, assert.AnError
	}
	return m, nil
}

func pypiFixture() *fakePyPI {
	return &fakePyPI{
		names: []string{"obscurela", "quietkit", "plain"},
		meta: map[string]*pypiapi.PackageMetadata{
			"obscurela": {
				Info: pypiapi.PackageInfo{
					Name:         "obscurela",
					PackageURL:   "https://pypi.org/project/obscurela/",
					RequiresDist: []string{"requests>=2.0"},
				},
				Releases: map[string][]pypiapi.ReleaseUpload{
					"0.1": {{UploadTime: "2020-01-01T00:00:00Z"}},
				},
			},
			"quietkit": {
				Info: pypiapi.PackageInfo{
					Name:         "quietkit",
					PackageURL:   "https://pypi.org/project/quietkit/",
					RequiresDist: []string{"click==8.1.7"},
				},
			},
			"plain": {
				Info: pypiapi.PackageInfo{Name: "plain"},
			},
		},
	}
}

func TestPyPIGenerate_YesAndNoAnswersAreConsistent(t *testing.T) {
	g := NewPyPI(pypiFixture())

	records, err := g.Generate(context.Background(), 4, testDeps(t))

	require.NoError(t, err)
	require.NotEmpty(t, records)

	declared := map[string][]string{
		"obscurela": {"requests>=2.0"},
		"quietkit":  {"click==8.1.7"},
	}
	for _, rec := range records {
		assert.Equal(t, model.AnswerBoolean, rec.AnswerKind)
		pkg := rec.Metadata["package_name"].(string)
		req := rec.Metadata["requirement_tested"].(string)
		has := false
		for _, d := range declared[pkg] {
			if d == req {
				has = true
			}
		}
		if rec.ExpectedAnswer == "Yes" {
			assert.True(t, has, "Yes question must use a declared requirement")
		} else {
			assert.Equal(t, "No", rec.ExpectedAnswer)
			assert.False(t, has, "No question must use a fake requirement")
		}
	}
}

func TestPyPIGenerate_NoRequirementsYieldsNothing(t *testing.T) {
	g := NewPyPI(&fakePyPI{
		names: []string{"plain"},
		meta:  map[string]*pypiapi.PackageMetadata{"plain": {Info: pypiapi.PackageInfo{Name: "plain"}}},
	})

	records, err := g.Generate(context.Background(), 2, testDeps(t))

	assert.NoError(t, err)
	assert.Empty(t, records)
}

// --- reddit ---

type fakeReddit struct {
	posts    []redditapi.Post
	comments map[string][]redditapi.Comment
}

func (f *fakeReddit) SearchPosts(ctx context.Context, query string) ([]redditapi.Post, error) {
	return f.posts, nil
}

func (f *fakeReddit) Comments(ctx context.Context, permalink string) ([]redditapi.Comment, error) {
	return f.comments[permalink], nil
}

func redditFixture() *fakeReddit {
	return &fakeReddit{
		posts: []redditapi.Post{
			{ID: "p1", Permalink: "/r/mycology/comments/p1/find/", Subreddit: "mycology", NumComments: 2, Score: 3},
			{ID: "p2", Permalink: "/r/AskReddit/comments/p2/what/", Subreddit: "AskReddit", NumComments: 9},
		},
		comments: map[string][]redditapi.Comment{
			"/r/mycology/comments/p1/find/": {
				{ID: "c1", Body: "Found a cluster of laccaria amethystina near the reservoir spillway yesterday", Permalink: "/r/mycology/comments/p1/find/c1/", Subreddit: "mycology", CreatedUTC: 1700000000},
				{ID: "c2", Body: "That substrate looks waterlogged, sterilize it before inoculating again", Permalink: "/r/mycology/comments/p1/find/c2/", Subreddit: "mycology", CreatedUTC: 1700000500},
			},
		},
	}
}

func TestRedditGenerate_QuestionsUseCommentKeywords(t *testing.T) {
	fake := redditFixture()
	g := NewReddit(fake, DefaultHeuristics())

	records, err := g.Generate(context.Background(), 3, testDeps(t))

	require.NoError(t, err)
	require.NotEmpty(t, records)
	for _, rec := range records {
		assert.Equal(t, model.AnswerBoolean, rec.AnswerKind)
		assert.Contains(t, rec.PromptText, "https://www.reddit.com/r/mycology/")
		word := rec.Metadata["keyword_tested"].(string)
		assert.Greater(t, len(word), 6)
		if rec.ExpectedAnswer == "Yes" {
			assert.Contains(t, strings.ToLower(bodyFor(fake, rec)), word)
		} else {
			assert.NotContains(t, strings.ToLower(bodyFor(fake, rec)), word)
		}
	}
}

func bodyFor(f *fakeReddit, rec model.QuestionRecord) string {
	permalink := strings.TrimPrefix(rec.SourceRef, "https://www.reddit.com")
	for _, comments := range f.comments {
		for _, c := range comments {
			if c.Permalink == permalink {
				return c.Body
			}
		}
	}
	return ""
}

func TestRedditGenerate_SkipsExcludedSubreddits(t *testing.T) {
	fake := &fakeReddit{
		posts: []redditapi.Post{
			{ID: "p2", Permalink: "/r/AskReddit/comments/p2/what/", Subreddit: "AskReddit", NumComments: 9},
		},
		comments: map[string][]redditapi.Comment{
			"/r/AskReddit/comments/p2/what/": {
				{ID: "c9", Body: "Absolutely unforgettable happenstance narrative involving a carabiner and a lighthouse", Permalink: "/r/AskReddit/comments/p2/what/c9/"},
			},
		},
	}
	g := NewReddit(fake, DefaultHeuristics())

	records, err := g.Generate(context.Background(), 2, testDeps(t))

	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestRedditGenerate_SkipsHighScorePosts(t *testing.T) {
	fake := redditFixture()
	fake.posts = append(fake.posts, redditapi.Post{
		ID: "p3", Permalink: "/r/mycology/comments/p3/viral/", Subreddit: "mycology", NumComments: 4, Score: 4200,
	})
	fake.comments["/r/mycology/comments/p3/viral/"] = []redditapi.Comment{
		{ID: "c7", Body: "Incredible psilocybe zapotecorum flush spreading across the embankment culvert", Permalink: "/r/mycology/comments/p3/viral/c7/", Subreddit: "mycology"},
	}
	g := NewReddit(fake, DefaultHeuristics())

	records, err := g.Generate(context.Background(), 6, testDeps(t))

	require.NoError(t, err)
	require.NotEmpty(t, records)
	for _, rec := range records {
		assert.NotContains(t, rec.SourceRef, "/p3/")
	}
}

func TestRedditGenerate_RarityIsNeverAVerifiedClaim(t *testing.T) {
	g := NewReddit(redditFixture(), DefaultHeuristics())
	deps := testDeps(t)
	deps.Verifier = verify.New(commonSearch{}, nil)

	records, err := g.Generate(context.Background(), 4, deps)

	require.NoError(t, err)
	require.NotEmpty(t, records)
	for _, rec := range records {
		assert.False(t, rec.Rarity.Verified)
		assert.Equal(t, "boolean question, uniqueness not checked", rec.Rarity.Reason)
		assert.Zero(t, rec.Rarity.Count)
		// The lookup survives as audit metadata.
		assert.Equal(t, 10, rec.Metadata["search_hits"])
	}
}

// --- wikipedia ---

type fakeWiki struct {
	pages  map[string][]string
	intros map[string]string
}

func (f fakeWiki) CategoryMembers(ctx context.Context, category string) ([]string, error) {
	return f.pages[category], nil
}

func (f fakeWiki) IntroExtract(ctx context.Context, title string) (string, string, error) {
	intro, ok := f.intros[title]
	if !ok {
		return "", "", nil
	}
	return intro, "2024-02-02T00:00:00Z", nil
}

func TestWikipediaGenerate_WordsExcludeTitle(t *testing.T) {
	h := DefaultHeuristics()
	h.Wikipedia.Categories = []string{"Category:Units of time"}
	g := NewWikipedia(wikiFixture(), h)

	records, err := g.Generate(context.Background(), 3, testDeps(t))

	require.NoError(t, err)
	require.NotEmpty(t, records)
	for _, rec := range records {
		assert.Equal(t, model.AnswerBoolean, rec.AnswerKind)
		title := rec.Metadata["article_title"].(string)
		word := rec.Metadata["word_tested"].(string)
		assert.NotContains(t, strings.ToLower(title), word)
		assert.Contains(t, rec.SourceRef, "https://en.wikipedia.org/wiki/")
		assert.False(t, rec.Rarity.Verified)
	}
}

func wikiFixture() fakeWiki {
	return fakeWiki{
		pages: map[string][]string{
			"Category:Units of time": {"Scruple (unit)", "Ghurry"},
		},
		intros: map[string]string{
			"Scruple (unit)": "The scruple is an apothecary measurement equalling twenty grains of wheatstone reckoning. Later it fell out of use.",
			"Ghurry":         "A ghurry was a clepsydra-based interval used by watchkeepers throughout precolonial observatories.",
		},
	}
}

// Admission holds across every generator even when the search index says a
// candidate is common: records either stay under the domain threshold or
// carry verified=false.
func TestGenerate_AdmittedRecordsRespectThreshold(t *testing.T) {
	h := DefaultHeuristics()
	gens := []Generator{
		NewGitHub(obscureRepoFixture(), h),
		NewGitHubPopular(obscureRepoFixture(), h),
		NewPyPI(pypiFixture()),
		NewReddit(redditFixture(), h),
		NewWikipedia(wikiFixture(), h),
	}
	for _, g := range gens {
		deps := testDeps(t)
		deps.Verifier = verify.New(commonSearch{}, nil)

		records, err := g.Generate(context.Background(), 3, deps)

		require.NoError(t, err, g.Domain())
		for _, rec := range records {
			threshold := deps.Threshold(rec.Domain)
			ok := !rec.Rarity.Verified || rec.Rarity.Count <= threshold
			assert.True(t, ok, "%s: admitted verified count %d above threshold %d",
				rec.Domain, rec.Rarity.Count, threshold)
		}
	}
}

func TestWikipediaGenerate_EmptyCategoriesIsAnError(t *testing.T) {
	h := DefaultHeuristics()
	h.Wikipedia.Categories = []string{"Category:Empty"}
	g := NewWikipedia(fakeWiki{}, h)

	_, err := g.Generate(context.Background(), 1, testDeps(t))

	assert.Error(t, err)
}
