// Package embedder provides embedding adapters behind the module.Embedder
// contract, resolved from a static provider registry.
package embedder

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/nnennaai/nai/internal/config"
	"github.com/nnennaai/nai/internal/module"
)

// Embedding cost per 1K tokens, current published pricing.
var embeddingRates = map[string]float64{
	"text-embedding-3-small": 0.00002,
	"text-embedding-3-large": 0.00013,
	"text-embedding-ada-002": 0.0001,
}

// Dimensions per model. Used for sanity checks by callers; the adapter
// itself returns whatever the API produces.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAI embeds text batches with the OpenAI embeddings API. Requests are
// batched and retried with exponential backoff on rate limit errors; other
// errors fail immediately.
type OpenAI struct {
	cfg    config.EmbeddingSettings
	logger *zap.Logger

	client      *openai.Client
	stats       module.Stats
	totalTokens int64
	ready       bool
}

// NewOpenAI creates the adapter. Setup is lazy: the first Embed call
// initializes the client if Setup was not called explicitly.
func NewOpenAI(cfg config.EmbeddingSettings, logger *zap.Logger) *OpenAI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAI{cfg: cfg, logger: logger}
}

// Setup initializes the OpenAI client. Idempotent. Fails with a ConfigError
// when no API key is configured.
func (e *OpenAI) Setup(ctx context.Context) error {
	if e.ready {
		return nil
	}
	if !e.cfg.APIKey.IsSet() {
		return module.NewConfigError("embedder",
			"OpenAI API key not found, set OPENAI_API_KEY", module.ErrMissingCredential)
	}
	client := openai.NewClient(option.WithAPIKey(e.cfg.APIKey.Value()))
	e.client = &client
	e.ready = true
	e.logger.Info("embedder ready", zap.String("provider", "openai"), zap.String("model", e.cfg.Model))
	return nil
}

// Embed returns one vector per input text, preserving input order. Empty
// input returns an empty slice without a network call.
func (e *OpenAI) Embed(ctx context.Context, texts []string) (out [][]float32, err error) {
	if !e.ready {
		if err := e.Setup(ctx); err != nil {
			return nil, err
		}
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	defer func(start time.Time) { e.stats.Observe(start, err) }(time.Now())

	out = make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.cfg.BatchSize {
		end := min(i+e.cfg.BatchSize, len(texts))
		batch, err := e.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

// embedBatchWithRetry embeds one batch, retrying rate limit errors with
// exponential backoff. Other API errors are permanent.
func (e *OpenAI) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	operation := func() error {
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(e.cfg.Model),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		e.totalTokens += resp.Usage.PromptTokens
		embeddings = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			embeddings[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// Teardown releases the client. Idempotent.
func (e *OpenAI) Teardown() error {
	e.client = nil
	e.ready = false
	return nil
}

// Stats returns call counters.
func (e *OpenAI) Stats() module.Stats { return e.stats }

// Dimension returns the vector size for the configured model, defaulting to
// 1536 for unknown models.
func (e *OpenAI) Dimension() int {
	if d, ok := modelDimensions[e.cfg.Model]; ok {
		return d
	}
	return 1536
}

// EstimatedCost implements module.CostEstimator from cumulative token usage.
func (e *OpenAI) EstimatedCost() float64 {
	rate, ok := embeddingRates[e.cfg.Model]
	if !ok {
		rate = embeddingRates["text-embedding-3-small"]
	}
	return float64(e.totalTokens) / 1000 * rate
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 narrows API float64 vectors to the float32 the stores keep.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
