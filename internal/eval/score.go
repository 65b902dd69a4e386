package eval

import (
	"github.com/rotisserie/eris"

	"github.com/anchorlab/anchorbench/internal/model"
)

// ErrConfig marks invalid or conflicting scoring parameters. It is the only
// error class that aborts a run before any model call.
var ErrConfig = eris.New("eval: invalid scoring configuration")

const (
	defaultUnknownCredit = 0.25
	defaultWrongPenalty  = 1.0
)

// Scoring holds the resolved per-run scoring parameters.
type Scoring struct {
	UnknownCredit float64
	WrongPenalty  float64
	// RiskThreshold is set when WrongPenalty was derived from a
	// confidence target, recorded in run metadata for reproducibility.
	RiskThreshold *float64
}

// NewScoring resolves the scoring parameters; nil means unset. A risk
// threshold t in [0,1) derives wrongPenalty = t/(1-t), the break-even
// penalty at which guessing with confidence below t has negative expected
// value. Supplying both a threshold and an explicit penalty is a
// configuration error.
func NewScoring(unknownCredit, wrongPenalty, riskThreshold *float64) (Scoring, error) {
	s := Scoring{
		UnknownCredit: defaultUnknownCredit,
		WrongPenalty:  defaultWrongPenalty,
	}
	if unknownCredit != nil {
		if *unknownCredit < 0 {
			return Scoring{}, eris.Wrapf(ErrConfig, "unknown credit %v is negative", *unknownCredit)
		}
		s.UnknownCredit = *unknownCredit
	}

	if riskThreshold != nil && wrongPenalty != nil {
		return Scoring{}, eris.Wrap(ErrConfig, "risk threshold and wrong penalty are mutually exclusive")
	}

	switch {
	case riskThreshold != nil:
		t := *riskThreshold
		if t < 0 || t >= 1 {
			return Scoring{}, eris.Wrapf(ErrConfig, "risk threshold %v outside [0,1)", t)
		}
		s.WrongPenalty = t / (1 - t)
		s.RiskThreshold = &t
	case wrongPenalty != nil:
		if *wrongPenalty < 0 {
			return Scoring{}, eris.Wrapf(ErrConfig, "wrong penalty %v is negative", *wrongPenalty)
		}
		s.WrongPenalty = *wrongPenalty
	}

	return s, nil
}

// Score maps a classification to its point value. Items that errored score
// zero and are excluded from accuracy, so missing data never masquerades as
// a wrong answer.
func (s Scoring) Score(c model.Classification) float64 {
	switch c {
	case model.ClassCorrect:
		return 1
	case model.ClassUnknown:
		return s.UnknownCredit
	case model.ClassIncorrect:
		return -s.WrongPenalty
	default:
		return 0
	}
}
