package generator

import (
	"bufio"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Stoplist is a set of common words. Candidate answers that are ordinary
// vocabulary are rejected before uniqueness verification: a common token is
// guessable no matter how rare the surrounding document is.
type Stoplist struct {
	words map[string]struct{}
}

// NewStoplist builds a stoplist from the given words.
func NewStoplist(words []string) *Stoplist {
	s := &Stoplist{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			s.words[w] = struct{}{}
		}
	}
	return s
}

// Contains reports whether the word is on the stoplist.
func (s *Stoplist) Contains(word string) bool {
	_, ok := s.words[strings.ToLower(word)]
	return ok
}

// Len returns the stoplist size.
func (s *Stoplist) Len() int {
	return len(s.words)
}

var wordRe = regexp.MustCompile(`\b\w+\b`)

// UncommonWords returns the distinct words in text longer than six
// characters that are neither on the stoplist nor a substring of exclude
// (typically the document title, whose words the model could guess).
func (s *Stoplist) UncommonWords(text, exclude string) []string {
	exclude = strings.ToLower(exclude)
	seen := make(map[string]struct{})
	var out []string
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if len(w) <= 6 {
			continue
		}
		if s.Contains(w) {
			continue
		}
		if exclude != "" && strings.Contains(exclude, w) {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// LoadStoplist loads the common-words list from the gzip cache at cachePath,
// downloading from url on a cache miss. When both fail it falls back to the
// built-in list so generation still works offline, just with a weaker filter.
func LoadStoplist(ctx context.Context, url, cachePath string, fallback []string) *Stoplist {
	if words, err := readGzipWords(cachePath); err == nil {
		return NewStoplist(words)
	}

	words, err := downloadWords(ctx, url)
	if err != nil {
		zap.L().Warn("common words download failed, using fallback stoplist",
			zap.String("url", url),
			zap.Error(err),
		)
		return NewStoplist(fallback)
	}

	if err := writeGzipWords(cachePath, words); err != nil {
		zap.L().Warn("failed to cache common words list", zap.Error(err))
	}
	zap.L().Info("cached common words list",
		zap.Int("words", len(words)),
		zap.String("path", cachePath),
	)
	return NewStoplist(words)
}

func downloadWords(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "stoplist: create request")
	}
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "stoplist: download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("stoplist: unexpected status %d", resp.StatusCode)
	}

	return scanWords(resp.Body)
}

func readGzipWords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, eris.Wrap(err, "stoplist: gzip reader")
	}
	defer gz.Close() //nolint:errcheck

	return scanWords(gz)
}

func writeGzipWords(path string, words []string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "stoplist: create cache")
	}
	defer f.Close() //nolint:errcheck

	gz := gzip.NewWriter(f)
	for _, w := range words {
		if _, err := gz.Write([]byte(w + "\n")); err != nil {
			return eris.Wrap(err, "stoplist: write cache")
		}
	}
	return eris.Wrap(gz.Close(), "stoplist: flush cache")
}

func scanWords(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		w := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if w != "" {
			words = append(words, w)
		}
	}
	return words, eris.Wrap(scanner.Err(), "stoplist: scan")
}
