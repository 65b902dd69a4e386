// Package eval turns benchmark questions into model prompts, classifies the
// responses into a tri-state outcome, and scores them under a configurable
// penalty scheme.
package eval

import (
	"github.com/anchorlab/anchorbench/internal/model"
)

// System instructions are part of the external protocol: changing them
// changes what every recorded run measured, so they stay fixed.
const (
	systemBoolean = "You are a careful assistant taking a factual quiz. " +
		"Reply with exactly one word: Yes, No, or Unknown. " +
		"Reply Unknown if you are not certain of the answer. Do not guess."

	systemExactString = "You are a careful assistant taking a factual quiz. " +
		"Answer the question directly and concisely. " +
		"If you are not confident you know the exact answer, reply with the single word Unknown. Do not guess."
)

// Prompt is one rendered model request.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt renders the deterministic prompt for a question. The user
// message is the record's prompt text verbatim; only the system instruction
// varies, by answer kind.
func BuildPrompt(rec model.QuestionRecord) Prompt {
	system := systemExactString
	if rec.AnswerKind == model.AnswerBoolean {
		system = systemBoolean
	}
	return Prompt{System: system, User: rec.PromptText}
}
