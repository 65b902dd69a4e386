// Package benchmark assembles generated question records into per-domain
// benchmark files and loads them back for evaluation runs.
package benchmark

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/anchorlab/anchorbench/internal/model"
)

// FilePath returns the benchmark file path for a domain under dir.
func FilePath(dir string, domain model.Domain) string {
	return filepath.Join(dir, string(domain)+"_benchmark.json")
}

// Exists reports whether a benchmark file for the domain is already present.
func Exists(dir string, domain model.Domain) bool {
	_, err := os.Stat(FilePath(dir, domain))
	return err == nil
}

// Write dedupes, caps, and persists the records for one domain. Records
// whose expected answer repeats within the slice keep only the first
// occurrence; at most maxCount records are written. The written count is
// returned.
func Write(dir string, domain model.Domain, records []model.QuestionRecord, maxCount int) (int, error) {
	kept := Dedupe(records)
	if maxCount > 0 && len(kept) > maxCount {
		kept = kept[:maxCount]
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, eris.Wrapf(err, "benchmark: create directory %s", dir)
	}

	data, err := json.MarshalIndent(kept, "", "  ")
	if err != nil {
		return 0, eris.Wrapf(err, "benchmark: marshal %s records", domain)
	}
	data = append(data, '\n')

	path := FilePath(dir, domain)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, eris.Wrapf(err, "benchmark: write %s", path)
	}

	zap.L().Info("benchmark file written",
		zap.String("path", path),
		zap.Int("questions", len(kept)),
	)
	return len(kept), nil
}

// Dedupe drops records whose expected answer, compared case-insensitively,
// already appeared earlier in the slice. Order is otherwise preserved.
func Dedupe(records []model.QuestionRecord) []model.QuestionRecord {
	seen := make(map[string]struct{}, len(records))
	kept := make([]model.QuestionRecord, 0, len(records))
	for _, rec := range records {
		key := string(rec.Domain) + "\x00" + strings.ToLower(strings.TrimSpace(rec.ExpectedAnswer))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, rec)
	}
	return kept
}

// Load reads one benchmark file.
func Load(path string) ([]model.QuestionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "benchmark: read %s", path)
	}

	var records []model.QuestionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrapf(err, "benchmark: parse %s", path)
	}

	for i, rec := range records {
		if rec.ID == "" || rec.PromptText == "" || rec.ExpectedAnswer == "" {
			return nil, eris.Errorf("benchmark: %s record %d is missing required fields", path, i)
		}
	}
	return records, nil
}

// LoadAll reads several benchmark files and concatenates their records in
// argument order.
func LoadAll(paths []string) ([]model.QuestionRecord, error) {
	var all []model.QuestionRecord
	for _, path := range paths {
		records, err := Load(path)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}
