package model

import "time"

// RunMeta describes one evaluation run: a single model, a single timestamp,
// and the scoring parameters in effect. Together with the answer log it is
// the full reproducibility contract; a past run can be re-summarized from
// these two files without touching any model or external API.
type RunMeta struct {
	Model         string    `json:"model_name"`
	StartedAt     time.Time `json:"started_at"`
	UnknownCredit float64   `json:"unknown_credit"`
	WrongPenalty  float64   `json:"wrong_penalty"`
	RiskThreshold *float64  `json:"risk_threshold,omitempty"`
	Benchmarks    []string  `json:"benchmarks"`
}

// RunSummary aggregates a run's answer log. Accuracy and AvgScore are both
// reported; neither supersedes the other. Errors counts items whose model
// call failed and are excluded from Accuracy's denominator.
type RunSummary struct {
	Model      string             `json:"model_name"`
	Total      int                `json:"total"`
	Correct    int                `json:"correct"`
	Unknown    int                `json:"unknown"`
	Incorrect  int                `json:"incorrect"`
	Errors     int                `json:"errors"`
	Unverified int                `json:"unverified"`
	Accuracy   float64            `json:"accuracy"`
	AvgScore   float64            `json:"avg_score"`
	ByDomain   map[Domain]Tally   `json:"by_domain"`
	Scoring    map[string]float64 `json:"scoring"`
}

// Tally is a per-domain breakdown of classifications.
type Tally struct {
	Total     int `json:"total"`
	Correct   int `json:"correct"`
	Unknown   int `json:"unknown"`
	Incorrect int `json:"incorrect"`
	Errors    int `json:"errors"`
}
