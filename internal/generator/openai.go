// Package generator provides chat-completion adapters behind the
// module.Generator contract, resolved from a static provider registry.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/nnennaai/nai/internal/config"
	"github.com/nnennaai/nai/internal/module"
)

// ragTemplate is the default prompt used when generation is conditioned on
// retrieved context. {context} and {query} are substituted before the call.
const ragTemplate = `You are a helpful AI assistant. Answer the user's question based on the provided context.

Context:
{context}

Question: {query}

Instructions:
- Use only information from the context to answer
- If the context doesn't contain enough information, say so
- Be concise but complete
- Cite which part of the context supports your answer when relevant

Answer:`

// Chat completion cost per 1K tokens, current published pricing.
var chatRates = map[string]struct{ prompt, completion float64 }{
	"gpt-4o":        {0.005, 0.015},
	"gpt-4o-mini":   {0.00015, 0.0006},
	"gpt-4-turbo":   {0.01, 0.03},
	"gpt-3.5-turbo": {0.0005, 0.0015},
}

// OpenAI generates answers with the OpenAI chat completions API. Calls are
// retried with exponential backoff on rate limit errors; token usage is
// accumulated from each response for cost estimation.
type OpenAI struct {
	cfg    config.GeneratorSettings
	logger *zap.Logger

	client           *openai.Client
	stats            module.Stats
	promptTokens     int64
	completionTokens int64
	ready            bool
}

// NewOpenAI creates the adapter. Setup is lazy: the first Generate call
// initializes the client if Setup was not called explicitly.
func NewOpenAI(cfg config.GeneratorSettings, logger *zap.Logger) *OpenAI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAI{cfg: cfg, logger: logger}
}

// Setup initializes the OpenAI client. Idempotent. Fails with a ConfigError
// when no API key is configured.
func (g *OpenAI) Setup(ctx context.Context) error {
	if g.ready {
		return nil
	}
	if !g.cfg.APIKey.IsSet() {
		return module.NewConfigError("generator",
			"OpenAI API key not found, set OPENAI_API_KEY", module.ErrMissingCredential)
	}
	client := openai.NewClient(option.WithAPIKey(g.cfg.APIKey.Value()))
	g.client = &client
	g.ready = true
	g.logger.Info("generator ready", zap.String("provider", "openai"), zap.String("model", g.cfg.Model))
	return nil
}

// Generate produces text for the prompt. With UseRAGTemplate set and
// contexts present, the contexts are formatted as an enumerated block and
// substituted into the RAG template first.
func (g *OpenAI) Generate(ctx context.Context, prompt string, opts module.GenerateOptions) (answer string, err error) {
	if !g.ready {
		if err := g.Setup(ctx); err != nil {
			return "", err
		}
	}

	defer func(start time.Time) { g.stats.Observe(start, err) }(time.Now())

	userPrompt := prompt
	if opts.UseRAGTemplate && len(opts.Contexts) > 0 {
		userPrompt = renderRAGPrompt(prompt, opts.Contexts)
	}

	temperature := g.cfg.Temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	maxTokens := g.cfg.MaxTokens
	if opts.MaxTokens != nil {
		maxTokens = *opts.MaxTokens
	}

	answer, err = g.generateWithRetry(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(g.cfg.SystemPrompt),
		openai.UserMessage(userPrompt),
	}, temperature, maxTokens)
	if err != nil {
		return "", err
	}

	g.logger.Debug("generated answer",
		zap.String("run_id", opts.RunID),
		zap.Int("contexts", len(opts.Contexts)),
		zap.Int("answer_length", len(answer)),
	)
	return answer, nil
}

// renderRAGPrompt formats contexts as an enumerated block and substitutes
// them into the RAG template.
func renderRAGPrompt(query string, contexts []module.Context) string {
	parts := make([]string, len(contexts))
	for i, doc := range contexts {
		parts[i] = fmt.Sprintf("[%d] %s", i+1, doc.Text)
	}
	prompt := strings.ReplaceAll(ragTemplate, "{context}", strings.Join(parts, "\n\n"))
	return strings.ReplaceAll(prompt, "{query}", query)
}

// generateWithRetry performs one chat completion, retrying rate limit
// errors with exponential backoff. Other API errors are permanent.
func (g *OpenAI) generateWithRetry(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, temperature float64, maxTokens int) (string, error) {
	var answer string

	operation := func() error {
		resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages:    messages,
			Model:       openai.ChatModel(g.cfg.Model),
			Temperature: openai.Float(temperature),
			MaxTokens:   openai.Int(int64(maxTokens)),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("chat completion returned no choices"))
		}
		g.promptTokens += resp.Usage.PromptTokens
		g.completionTokens += resp.Usage.CompletionTokens
		answer = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return answer, nil
}

// Usage returns cumulative token/cost statistics.
func (g *OpenAI) Usage() module.GeneratorUsage {
	return module.GeneratorUsage{
		Model:            g.cfg.Model,
		PromptTokens:     g.promptTokens,
		CompletionTokens: g.completionTokens,
		TotalTokens:      g.promptTokens + g.completionTokens,
		EstimatedCost:    g.EstimatedCost(),
	}
}

// EstimatedCost implements module.CostEstimator from cumulative token usage.
func (g *OpenAI) EstimatedCost() float64 {
	rates, ok := chatRates[g.cfg.Model]
	if !ok {
		rates = chatRates["gpt-4o-mini"]
	}
	return float64(g.promptTokens)/1000*rates.prompt + float64(g.completionTokens)/1000*rates.completion
}

// Teardown releases the client. Idempotent.
func (g *OpenAI) Teardown() error {
	g.client = nil
	g.ready = false
	return nil
}

// Stats returns call counters.
func (g *OpenAI) Stats() module.Stats { return g.stats }

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
