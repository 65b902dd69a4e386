package model

// Classification is the tri-state outcome of matching a model response
// against the expected answer. "error" is reserved for items whose model
// call failed after retries; it never counts as a wrong answer.
type Classification string

const (
	ClassCorrect   Classification = "correct"
	ClassUnknown   Classification = "unknown"
	ClassIncorrect Classification = "incorrect"
	ClassError     Classification = "error"
)

// AnswerRecord is the result of evaluating one question against one model.
// Records are append-only; Score is always derived from Classification and
// the run's scoring configuration, never set independently.
type AnswerRecord struct {
	QuestionRef    string         `json:"question_ref"`
	Domain         Domain         `json:"domain"`
	Model          string         `json:"model_name"`
	RawResponse    string         `json:"raw_response"`
	Classification Classification `json:"classification"`
	IsCorrect      bool           `json:"is_correct"`
	Unverified     bool           `json:"unverified,omitempty"`
	Score          float64        `json:"score"`
	ElapsedMS      int64          `json:"elapsed_ms"`
	Error          string         `json:"error,omitempty"`
}
