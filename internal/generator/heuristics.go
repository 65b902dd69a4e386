package generator

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Heuristics holds the tunable per-domain sourcing knobs: which corners of
// each source to sample. The defaults deliberately aim at niches; the whole
// design bet is that mainstream content is exactly what a curated training
// corpus keeps.
type Heuristics struct {
	GitHub struct {
		ObscureQuery string `yaml:"obscure_query"`
		PopularQuery string `yaml:"popular_query"`
	} `yaml:"github"`
	Reddit struct {
		SearchTopics []string `yaml:"search_topics"`
	} `yaml:"reddit"`
	Wikipedia struct {
		Categories []string `yaml:"categories"`
	} `yaml:"wikipedia"`
	FallbackStopwords []string `yaml:"fallback_stopwords"`
}

// DefaultHeuristics returns the built-in heuristics used when no
// domains.yaml is present.
func DefaultHeuristics() Heuristics {
	var h Heuristics
	h.GitHub.ObscureQuery = "stars:0..1 pushed:<2023-01-01 language:python language:javascript language:ruby language:go language:php"
	h.GitHub.PopularQuery = "stars:>5000 pushed:>2023-01-01 language:python language:javascript language:ruby language:go language:php"
	h.Reddit.SearchTopics = []string{
		"procedural generation", "vintage computing", "sffpc", "home server",
		"mechanical keyboards", "fountain pens", "geocaching", "lockpicking",
		"mycology", "solarpunk", "worldbuilding", "urban exploration", "roguelikedev",
	}
	h.Wikipedia.Categories = []string{
		"Category:Defunct software companies of the United States",
		"Category:Geological phenomena",
		"Category:Units of time",
		"Category:Astronomical catalogues",
		"Category:19th-century inventions",
	}
	h.FallbackStopwords = []string{
		"the", "a", "an", "is", "are", "was", "were", "in", "on", "at", "to", "for",
		"of", "and", "or", "but", "i", "you", "he", "she", "it", "we", "they", "what",
		"who", "when", "where", "why", "how", "that", "this", "from", "with", "have",
		"has", "had", "do", "does", "did", "not", "no", "be", "been", "about", "like",
		"just", "get", "out", "up", "down", "all", "com", "www", "https", "http",
		"thanks", "welcome",
	}
	return h
}

// LoadHeuristics reads domains.yaml from path, falling back to the defaults
// when the file does not exist. A present but malformed file is an error:
// silently ignoring a typo'd heuristics file would quietly change what gets
// sampled.
func LoadHeuristics(path string) (Heuristics, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultHeuristics(), nil
	}
	if err != nil {
		return Heuristics{}, eris.Wrap(err, "heuristics: read file")
	}

	h := DefaultHeuristics()
	if err := yaml.Unmarshal(data, &h); err != nil {
		return Heuristics{}, eris.Wrap(err, "heuristics: unmarshal")
	}
	return h, nil
}
