// Package module defines the four capability contracts a RAG pipeline is
// assembled from: embedder, retriever, generator, and evaluator. Concrete
// provider adapters implement exactly one interface each; the engine owns the
// instances and drives them strictly sequentially.
package module

import "context"

// Document is a single ingestion input: raw text plus caller-supplied
// metadata. Metadata is carried through chunking into the retriever.
type Document struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Context is one retrieved chunk. Score is a similarity in [0,1]; backends
// that report distances convert with 1 - distance before returning.
type Context struct {
	ID       string         `json:"id,omitempty"`
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Embedder converts ordered text batches into equal-length, fixed-dimension
// vector batches. Input order must be preserved.
type Embedder interface {
	// Setup initializes the underlying client. Idempotent. Returns a
	// *ConfigError when no credential is available.
	Setup(ctx context.Context) error

	// Embed returns one vector per input text, in input order. An empty
	// input yields an empty output without touching the backend.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	Teardown() error
	Stats() Stats
}

// Retriever stores embedded documents and answers top-k similarity queries.
type Retriever interface {
	Setup(ctx context.Context) error

	// Add appends documents. metadata may be nil; entries without an ID get
	// a generated one. texts and embeddings must be the same length.
	Add(ctx context.Context, texts []string, embeddings [][]float32, metadata []map[string]any) error

	// Search returns up to min(k, Count()) documents ordered by descending
	// similarity score.
	Search(ctx context.Context, embedding []float32, k int) ([]Context, error)

	// Reset drops all stored documents.
	Reset(ctx context.Context) error

	Count() int
	Teardown() error
	Stats() Stats
}

// GenerateOptions carries the optional inputs to a generation call.
type GenerateOptions struct {
	// Contexts are retrieved chunks to condition the answer on.
	Contexts []Context

	// UseRAGTemplate formats Contexts as an enumerated block and substitutes
	// them into the RAG prompt template before the call.
	UseRAGTemplate bool

	// Temperature and MaxTokens override the configured defaults when set.
	Temperature *float64
	MaxTokens   *int

	// RunID correlates the call with a pipeline run in logs and traces.
	RunID string
}

// Generator produces text from a prompt, optionally conditioned on retrieved
// contexts.
type Generator interface {
	Setup(ctx context.Context) error
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Usage returns cumulative token/cost statistics across all calls.
	Usage() GeneratorUsage

	Teardown() error
	Stats() Stats
}

// GeneratorUsage is the cumulative token accounting of a generator.
type GeneratorUsage struct {
	Model            string  `json:"model"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	EstimatedCost    float64 `json:"estimated_cost"`
}

// Evaluation is the outcome of scoring one generated answer. Scores holds one
// entry per configured metric; OverallScore is their mean. When the scoring
// backend fails the evaluator degrades to all-zero scores and sets Error
// instead of returning an error, so a broken evaluation never aborts a run
// that already produced an answer.
type Evaluation struct {
	Scores       map[string]float64 `json:"scores"`
	OverallScore float64            `json:"overall_score"`
	Passed       bool               `json:"passed"`
	Error        string             `json:"error,omitempty"`
}

// Evaluator scores a generated answer against quality metrics.
type Evaluator interface {
	Setup(ctx context.Context) error

	// Evaluate scores answer for query given the retrieved context texts.
	// groundTruth may be empty.
	Evaluate(ctx context.Context, query, answer string, contexts []string, groundTruth string) (Evaluation, error)

	Teardown() error
	Stats() Stats
}

// CostEstimator is implemented by adapters that can estimate the cumulative
// dollar cost of their calls. The engine sums these for the run record when
// no external cost-tracking integration is active.
type CostEstimator interface {
	EstimatedCost() float64
}
