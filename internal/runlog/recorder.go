// Package runlog persists evaluation runs under a directory layout of
// runs/<model>/<timestamp>/ holding answers.json and meta.json. Those two
// files are the reproducibility contract: any recorded run can be
// re-summarized without touching a model or external API.
package runlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/anchorlab/anchorbench/internal/model"
)

const (
	answersFile = "answers.json"
	metaFile    = "meta.json"

	// timestampLayout keeps run directories sortable by name.
	timestampLayout = "20060102T150405Z"
)

// Recorder owns one run directory and appends answer records to it. Each
// record is one JSON object per line, flushed to disk immediately, so an
// aborted run keeps every completed item.
type Recorder struct {
	dir  string
	mu   sync.Mutex
	file *os.File
}

// NewRecorder creates the run directory, writes meta.json, and opens the
// answer log for appending.
func NewRecorder(baseDir string, meta model.RunMeta) (*Recorder, error) {
	dir := filepath.Join(baseDir, meta.Model, meta.StartedAt.UTC().Format(timestampLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "runlog: create run directory %s", dir)
	}

	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "runlog: marshal run meta")
	}
	metaData = append(metaData, '\n')
	if err := os.WriteFile(filepath.Join(dir, metaFile), metaData, 0o644); err != nil {
		return nil, eris.Wrapf(err, "runlog: write %s", metaFile)
	}

	f, err := os.OpenFile(filepath.Join(dir, answersFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: open %s", answersFile)
	}

	zap.L().Info("run directory created", zap.String("dir", dir))
	return &Recorder{dir: dir, file: f}, nil
}

// Dir returns the run directory path.
func (r *Recorder) Dir() string {
	return r.dir
}

// Record appends one answer and syncs it to disk.
func (r *Recorder) Record(rec model.AnswerRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrapf(err, "runlog: marshal answer for %s", rec.QuestionRef)
	}
	data = append(data, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.file.Write(data); err != nil {
		return eris.Wrapf(err, "runlog: append answer for %s", rec.QuestionRef)
	}
	if err := r.file.Sync(); err != nil {
		return eris.Wrap(err, "runlog: sync answer log")
	}
	return nil
}

// Close closes the answer log.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.file.Close(); err != nil {
		return eris.Wrap(err, "runlog: close answer log")
	}
	return nil
}

// NewRunMeta builds the metadata for a fresh run.
func NewRunMeta(modelName string, unknownCredit, wrongPenalty float64, riskThreshold *float64, benchmarks []string) model.RunMeta {
	return model.RunMeta{
		Model:         modelName,
		StartedAt:     time.Now().UTC(),
		UnknownCredit: unknownCredit,
		WrongPenalty:  wrongPenalty,
		RiskThreshold: riskThreshold,
		Benchmarks:    benchmarks,
	}
}
