package model

import "time"

// Domain identifies a fact source.
type Domain string

const (
	DomainGitHub        Domain = "github"
	DomainGitHubPopular Domain = "github_popular"
	DomainReddit        Domain = "reddit"
	DomainPyPI          Domain = "pypi"
	DomainWikipedia     Domain = "wikipedia"
)

// KnownDomains lists every domain with a registered generator, in the order
// they run when no --domains filter is given.
func KnownDomains() []Domain {
	return []Domain{DomainGitHub, DomainGitHubPopular, DomainReddit, DomainPyPI, DomainWikipedia}
}

// AnswerKind distinguishes how an expected answer is checked.
type AnswerKind string

const (
	// AnswerBoolean expects a canonical "Yes" or "No".
	AnswerBoolean AnswerKind = "boolean"
	// AnswerExactString expects the answer token to appear verbatim in the response.
	AnswerExactString AnswerKind = "exact_string"
)

// RarityEstimate reports how many independent documents contained a candidate
// fact string. Verified=false means the lookup was skipped (missing
// credentials) or failed after retries; the candidate is still usable but the
// flag is persisted so downstream tooling can tell unverified anchors apart.
// SourceMiss means the search found documents but none of them was the
// claimed source, so the candidate does not actually anchor there.
type RarityEstimate struct {
	Count      int    `json:"count"`
	Capped     bool   `json:"capped"`
	Verified   bool   `json:"verified"`
	SourceMiss bool   `json:"source_miss,omitempty"`
	Query      string `json:"query,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// QuestionRecord is a single benchmark item. Records are immutable once
// admitted to a benchmark file; regeneration produces new records rather
// than editing old ones.
type QuestionRecord struct {
	ID             string         `json:"id"`
	Domain         Domain         `json:"domain"`
	PromptText     string         `json:"prompt_text"`
	ExpectedAnswer string         `json:"expected_answer"`
	AnswerKind     AnswerKind     `json:"answer_kind"`
	SourceRef      string         `json:"source_ref"`
	Rarity         RarityEstimate `json:"rarity"`
	GeneratedAt    time.Time      `json:"generated_at"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}
