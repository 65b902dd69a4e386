package eval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anchorlab/anchorbench/internal/model"
	"github.com/anchorlab/anchorbench/internal/resilience"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultMaxTokens   = 150
	defaultConcurrency = 4
)

// Completer is the slice of the OpenAI chat API the evaluator calls.
// Satisfied by *openai.Client and by test fakes.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewOpenAIClient builds a chat client against any OpenAI-compatible
// endpoint. An empty baseURL targets api.openai.com.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// Evaluator runs a benchmark against one model with bounded concurrency.
// Each item is classified and scored independently; per-item failures are
// recorded as error classifications and never abort the run.
type Evaluator struct {
	client      Completer
	modelName   string
	scoring     Scoring
	concurrency int
	timeout     time.Duration
	maxTokens   int
	retry       resilience.RetryConfig
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithConcurrency bounds the number of in-flight model calls.
func WithConcurrency(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithRetry overrides the per-item retry policy.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(e *Evaluator) {
		e.retry = rc
	}
}

// NewEvaluator creates an evaluator for one model.
func NewEvaluator(client Completer, modelName string, scoring Scoring, opts ...Option) *Evaluator {
	e := &Evaluator{
		client:      client,
		modelName:   modelName,
		scoring:     scoring,
		concurrency: defaultConcurrency,
		timeout:     defaultTimeout,
		maxTokens:   defaultMaxTokens,
		retry:       resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate asks the model every question and hands each finished
// AnswerRecord to sink. Sink calls are serialized; completion order across
// questions is not guaranteed, records carry their question reference.
// Context cancellation stops scheduling new items; records already handed
// to sink remain valid.
func (e *Evaluator) Evaluate(ctx context.Context, questions []model.QuestionRecord, sink func(model.AnswerRecord) error) error {
	var mu sync.Mutex

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(e.concurrency)

	for _, q := range questions {
		if gctx.Err() != nil {
			break
		}
		grp.Go(func() error {
			rec := e.evaluateOne(gctx, q)

			mu.Lock()
			defer mu.Unlock()
			if err := sink(rec); err != nil {
				return eris.Wrapf(err, "eval: record answer for %s", q.ID)
			}
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (e *Evaluator) evaluateOne(ctx context.Context, q model.QuestionRecord) model.AnswerRecord {
	rec := model.AnswerRecord{
		QuestionRef: q.ID,
		Domain:      q.Domain,
		Model:       e.modelName,
		Unverified:  !q.Rarity.Verified,
	}

	start := time.Now()
	raw, err := e.complete(ctx, q)
	rec.ElapsedMS = time.Since(start).Milliseconds()

	if err != nil {
		// Cancellation is the caller aborting, not a model failure,
		// but the distinction does not matter for this record: the
		// item stays observable as an error either way.
		rec.Classification = model.ClassError
		rec.Error = err.Error()
		rec.Score = e.scoring.Score(model.ClassError)
		zap.L().Warn("model call failed",
			zap.String("question", q.ID),
			zap.String("model", e.modelName),
			zap.Error(err),
		)
		return rec
	}

	rec.RawResponse = raw
	rec.Classification = Classify(raw, q)
	rec.IsCorrect = rec.Classification == model.ClassCorrect
	rec.Score = e.scoring.Score(rec.Classification)
	return rec
}

func (e *Evaluator) complete(ctx context.Context, q model.QuestionRecord) (string, error) {
	prompt := BuildPrompt(q)
	req := openai.ChatCompletionRequest{
		Model: e.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt.User},
		},
		Temperature: 0,
		MaxTokens:   e.maxTokens,
	}

	rc := e.retry
	if rc.OnRetry == nil {
		rc.OnRetry = resilience.RetryLogger("openai", "chat completion")
	}

	return resilience.DoVal(ctx, rc, func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		resp, err := e.client.CreateChatCompletion(callCtx, req)
		if err != nil {
			return "", classifyAPIError(err)
		}
		if len(resp.Choices) == 0 {
			return "", eris.Errorf("eval: model %s returned no choices", e.modelName)
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
}

// classifyAPIError wraps retryable API failures as transient so the retry
// loop distinguishes them from permanent ones like invalid credentials.
func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if resilience.IsTransientHTTPStatus(apiErr.HTTPStatusCode) {
			return resilience.NewTransientError(err, apiErr.HTTPStatusCode)
		}
		return err
	}
	if resilience.IsTransient(err) {
		return resilience.NewTransientError(err, 0)
	}
	return err
}
