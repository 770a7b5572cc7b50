package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/nnennaai/nai/internal/config"
	"github.com/nnennaai/nai/internal/module"
)

// metricDescriptions tells the judge what each supported metric means.
var metricDescriptions = map[string]string{
	"faithfulness":      "is every claim in the answer supported by the provided contexts",
	"answer_relevancy":  "does the answer directly address the question",
	"context_precision": "how much of the retrieved context is actually relevant to the question",
	"context_recall":    "does the retrieved context cover the information needed to answer",
	"answer_similarity": "how close is the answer to the ground truth in meaning",
	"answer_correctness": "is the answer factually consistent with the ground truth",
}

// LLM scores answers by asking a judge model to rate each configured metric
// in [0,1], returned as a JSON object. Any backend failure, including an
// unparseable verdict, degrades to zero scores rather than an error.
type LLM struct {
	cfg    config.EvalSettings
	logger *zap.Logger

	client *openai.Client
	stats  module.Stats
	ready  bool
}

// NewLLM creates the judge-backed evaluator.
func NewLLM(cfg config.EvalSettings, logger *zap.Logger) *LLM {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLM{cfg: cfg, logger: logger}
}

// Setup initializes the judge client. Idempotent. Fails with a ConfigError
// when no API key is configured.
func (e *LLM) Setup(ctx context.Context) error {
	if e.ready {
		return nil
	}
	if !e.cfg.APIKey.IsSet() {
		return module.NewConfigError("evaluator",
			"OpenAI API key not found, set OPENAI_API_KEY", module.ErrMissingCredential)
	}
	client := openai.NewClient(option.WithAPIKey(e.cfg.APIKey.Value()))
	e.client = &client
	e.ready = true
	e.logger.Info("evaluator ready",
		zap.String("provider", "llm"),
		zap.Strings("metrics", e.cfg.Metrics),
	)
	return nil
}

// Evaluate scores the answer on every configured metric. Backend failures
// degrade to zero scores with the failure message in the result.
func (e *LLM) Evaluate(ctx context.Context, query, answer string, contexts []string, groundTruth string) (ev module.Evaluation, err error) {
	if !e.ready {
		if err := e.Setup(ctx); err != nil {
			return module.Evaluation{}, err
		}
	}
	defer func(start time.Time) {
		if ev.Error != "" {
			e.stats.Observe(start, fmt.Errorf("%s", ev.Error))
		} else {
			e.stats.Observe(start, err)
		}
	}(time.Now())

	scores, judgeErr := e.judge(ctx, query, answer, contexts, groundTruth)
	if judgeErr != nil {
		e.logger.Warn("evaluation backend failed, degrading to zero scores", zap.Error(judgeErr))
		return degraded(e.cfg.Metrics, judgeErr), nil
	}

	ev = finalize(scores, e.cfg.Threshold)
	e.logger.Debug("evaluation complete", zap.Float64("overall_score", ev.OverallScore), zap.Bool("passed", ev.Passed))
	return ev, nil
}

// judge makes one JSON-mode chat call and parses per-metric scores.
func (e *LLM) judge(ctx context.Context, query, answer string, contexts []string, groundTruth string) (map[string]float64, error) {
	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(e.judgePrompt(query, answer, contexts, groundTruth)),
		},
		Model: openai.ChatModel(e.cfg.Model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("judge completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("judge returned no choices")
	}

	var raw map[string]float64
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &raw); err != nil {
		return nil, fmt.Errorf("parse judge verdict: %w", err)
	}

	// Keep only configured metrics; missing ones score zero, out-of-range
	// values are clamped.
	scores := make(map[string]float64, len(e.cfg.Metrics))
	for _, name := range e.cfg.Metrics {
		scores[name] = clamp01(raw[name])
	}
	return scores, nil
}

func (e *LLM) judgePrompt(query, answer string, contexts []string, groundTruth string) string {
	var b strings.Builder
	b.WriteString("You are an impartial judge of a retrieval-augmented answer. Rate each metric from 0.0 to 1.0.\n\nMetrics:\n")
	for _, name := range e.cfg.Metrics {
		desc, ok := metricDescriptions[name]
		if !ok {
			desc = "rate this aspect of the answer"
		}
		fmt.Fprintf(&b, "- %s: %s\n", name, desc)
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n\nAnswer: %s\n\nContexts:\n", query, answer)
	for i, c := range contexts {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, c)
	}
	if groundTruth != "" {
		fmt.Fprintf(&b, "\nGround truth answer: %s\n", groundTruth)
	}
	b.WriteString("\nRespond with a JSON object mapping each metric name to its score, e.g. {\"faithfulness\": 0.9}.")
	return b.String()
}

// Teardown releases the client. Idempotent.
func (e *LLM) Teardown() error {
	e.client = nil
	e.ready = false
	return nil
}

// Stats returns call counters.
func (e *LLM) Stats() module.Stats { return e.stats }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
