package runlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/anchorlab/anchorbench/internal/model"
)

// LoadMeta reads meta.json from a run directory.
func LoadMeta(dir string) (model.RunMeta, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return model.RunMeta{}, eris.Wrapf(err, "runlog: read meta in %s", dir)
	}
	var meta model.RunMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return model.RunMeta{}, eris.Wrapf(err, "runlog: parse meta in %s", dir)
	}
	return meta, nil
}

// LoadAnswers reads the answer log from a run directory. Both line-delimited
// records and a single JSON array are accepted.
func LoadAnswers(dir string) ([]model.AnswerRecord, error) {
	data, err := os.ReadFile(filepath.Join(dir, answersFile))
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: read answers in %s", dir)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var records []model.AnswerRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, eris.Wrapf(err, "runlog: parse answers in %s", dir)
		}
		return records, nil
	}

	var records []model.AnswerRecord
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec model.AnswerRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, eris.Wrapf(err, "runlog: parse answer line in %s", dir)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "runlog: scan answers in %s", dir)
	}
	return records, nil
}

// Summarize recomputes a run's aggregate numbers from its two files. The
// computation is pure; identical inputs always produce identical output.
// Errored items are excluded from the accuracy denominator but included in
// the average score at zero, so missing data drags neither number silently.
func Summarize(dir string) (model.RunSummary, error) {
	meta, err := LoadMeta(dir)
	if err != nil {
		return model.RunSummary{}, err
	}
	answers, err := LoadAnswers(dir)
	if err != nil {
		return model.RunSummary{}, err
	}

	s := model.RunSummary{
		Model:    meta.Model,
		ByDomain: make(map[model.Domain]model.Tally),
		Scoring: map[string]float64{
			"unknown_credit": meta.UnknownCredit,
			"wrong_penalty":  meta.WrongPenalty,
		},
	}
	if meta.RiskThreshold != nil {
		s.Scoring["risk_threshold"] = *meta.RiskThreshold
	}

	var scoreSum float64
	for _, a := range answers {
		s.Total++
		scoreSum += a.Score
		if a.Unverified {
			s.Unverified++
		}

		tally := s.ByDomain[a.Domain]
		tally.Total++
		switch a.Classification {
		case model.ClassCorrect:
			s.Correct++
			tally.Correct++
		case model.ClassUnknown:
			s.Unknown++
			tally.Unknown++
		case model.ClassIncorrect:
			s.Incorrect++
			tally.Incorrect++
		case model.ClassError:
			s.Errors++
			tally.Errors++
		default:
			return model.RunSummary{}, eris.Errorf("runlog: unknown classification %q for %s", a.Classification, a.QuestionRef)
		}
		s.ByDomain[a.Domain] = tally
	}

	if answered := s.Total - s.Errors; answered > 0 {
		s.Accuracy = float64(s.Correct) / float64(answered)
	}
	if s.Total > 0 {
		s.AvgScore = scoreSum / float64(s.Total)
	}
	return s, nil
}

// RunInfo identifies one recorded run.
type RunInfo struct {
	Dir  string
	Meta model.RunMeta
}

// ListRuns finds every run directory under baseDir, newest first. A run
// directory is any directory containing meta.json.
func ListRuns(baseDir string) ([]RunInfo, error) {
	var runs []RunInfo
	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == baseDir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || d.Name() != metaFile {
			return nil
		}
		dir := filepath.Dir(path)
		meta, err := LoadMeta(dir)
		if err != nil {
			return err
		}
		runs = append(runs, RunInfo{Dir: dir, Meta: meta})
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: list runs under %s", baseDir)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Meta.StartedAt.After(runs[j].Meta.StartedAt)
	})
	return runs, nil
}
