package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Field names are consumed by downstream tooling reading benchmark and run
// files; renaming one is a breaking protocol change.
func TestQuestionRecord_StableFieldNames(t *testing.T) {
	rec := QuestionRecord{
		ID:             "github-ab12cd34",
		Domain:         DomainGitHub,
		PromptText:     "question",
		ExpectedAnswer: "answer",
		AnswerKind:     AnswerExactString,
		SourceRef:      "https://example.test",
		Rarity:         RarityEstimate{Count: 1, Verified: true, Query: `"answer"`},
		GeneratedAt:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, name := range []string{
		"id", "domain", "prompt_text", "expected_answer", "answer_kind",
		"source_ref", "rarity", "generated_at",
	} {
		assert.Contains(t, fields, name)
	}

	rarity := fields["rarity"].(map[string]any)
	for _, name := range []string{"count", "capped", "verified", "query"} {
		assert.Contains(t, rarity, name)
	}
}

func TestAnswerRecord_StableFieldNames(t *testing.T) {
	rec := AnswerRecord{
		QuestionRef:    "github-ab12cd34",
		Domain:         DomainGitHub,
		Model:          "test-model",
		RawResponse:    "answer",
		Classification: ClassCorrect,
		IsCorrect:      true,
		Score:          1,
		ElapsedMS:      12,
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, name := range []string{
		"question_ref", "domain", "model_name", "raw_response",
		"classification", "is_correct", "score", "elapsed_ms",
	} {
		assert.Contains(t, fields, name)
	}
}

func TestKnownDomains_CanonicalOrder(t *testing.T) {
	assert.Equal(t, []Domain{
		DomainGitHub, DomainGitHubPopular, DomainReddit, DomainPyPI, DomainWikipedia,
	}, KnownDomains())
}
