package eval

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/anchorlab/anchorbench/internal/model"
)

// abstentionPhrases mark a response as a deliberate refusal to answer.
// Matched as case-insensitive substrings of the normalized response.
var abstentionPhrases = []string{
	"unknown",
	"i don't know",
	"i do not know",
	"not sure",
	"i'm not certain",
	"i am not certain",
	"cannot determine",
	"can't determine",
	"no idea",
}

var foldCaser = cases.Fold()

// NFKC leaves curly quotes alone, and the abstention phrases are spelled
// with the ASCII apostrophe.
var apostrophes = strings.NewReplacer("‘", "'", "’", "'")

// normalize canonicalizes a response for comparison: NFKC, case fold,
// typographic apostrophes mapped to ASCII, and punctuation or whitespace
// stripped from the edges. Interior punctuation stays because expected
// answers like "torch==1.4.0" depend on it.
func normalize(s string) string {
	s = norm.NFKC.String(s)
	s = apostrophes.Replace(s)
	s = foldCaser.String(s)
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

func isAbstention(normalized string) bool {
	for _, phrase := range abstentionPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// Classify maps a raw model response to correct, unknown, or incorrect
// against the question's expected answer. Boolean items require the exact
// yes/no token and let abstention win over a coincidental token elsewhere in
// the text. Exact-string items reward the ground truth appearing verbatim
// even when the response also hedges.
func Classify(raw string, rec model.QuestionRecord) model.Classification {
	response := normalize(raw)
	expected := normalize(rec.ExpectedAnswer)

	if rec.AnswerKind == model.AnswerBoolean {
		return classifyBoolean(response, expected, rec.ID)
	}
	return classifyExactString(response, expected)
}

func classifyBoolean(response, expected, id string) model.Classification {
	if isAbstention(response) {
		return model.ClassUnknown
	}
	switch response {
	case "yes", "no":
		if response == expected {
			return model.ClassCorrect
		}
		return model.ClassIncorrect
	}

	// A sentence containing both tokens satisfies neither rule cleanly.
	// The deterministic fallback is incorrect, logged for audit.
	if containsWord(response, "yes") && containsWord(response, "no") {
		zap.L().Warn("ambiguous boolean response",
			zap.String("question", id),
			zap.String("response", response),
		)
	}
	return model.ClassIncorrect
}

func classifyExactString(response, expected string) model.Classification {
	if expected != "" && strings.Contains(response, expected) {
		return model.ClassCorrect
	}
	if isAbstention(response) {
		return model.ClassUnknown
	}
	return model.ClassIncorrect
}

func containsWord(s, word string) bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, field := range fields {
		if field == word {
			return true
		}
	}
	return false
}
