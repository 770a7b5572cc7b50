// Package retriever provides vector store adapters behind the
// module.Retriever contract: an in-process memory store, the embedded
// chromem-go database, and a remote qdrant collection.
package retriever

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nnennaai/nai/internal/module"
)

type memoryDoc struct {
	id        string
	text      string
	embedding []float32
	metadata  map[string]any
}

// Memory is a process-local vector store with exhaustive cosine-similarity
// search. It needs no external service, which makes it the default for tests
// and throwaway experiments; contents are lost on exit.
type Memory struct {
	logger *zap.Logger
	docs   []memoryDoc
	stats  module.Stats
}

// NewMemory creates an empty in-memory store.
func NewMemory(logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{logger: logger}
}

// Setup is a no-op; the store has no resources to initialize.
func (m *Memory) Setup(ctx context.Context) error { return nil }

// Add appends documents, generating a UUID for each.
func (m *Memory) Add(ctx context.Context, texts []string, embeddings [][]float32, metadata []map[string]any) error {
	if len(texts) != len(embeddings) {
		return module.ErrLengthMismatch
	}
	for i, text := range texts {
		var meta map[string]any
		if i < len(metadata) {
			meta = metadata[i]
		}
		m.docs = append(m.docs, memoryDoc{
			id:        uuid.New().String(),
			text:      text,
			embedding: embeddings[i],
			metadata:  meta,
		})
	}
	m.logger.Debug("added documents", zap.Int("count", len(texts)), zap.Int("total", len(m.docs)))
	return nil
}

// Search returns up to min(k, count) documents by descending cosine
// similarity.
func (m *Memory) Search(ctx context.Context, embedding []float32, k int) (out []module.Context, err error) {
	defer func(start time.Time) { m.stats.Observe(start, err) }(time.Now())

	if k > len(m.docs) {
		k = len(m.docs)
	}
	if k <= 0 {
		return []module.Context{}, nil
	}

	scored := make([]module.Context, len(m.docs))
	for i, doc := range m.docs {
		scored[i] = module.Context{
			ID:       doc.id,
			Text:     doc.text,
			Score:    cosineSimilarity(embedding, doc.embedding),
			Metadata: doc.metadata,
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored[:k], nil
}

// Reset drops all documents.
func (m *Memory) Reset(ctx context.Context) error {
	m.docs = nil
	return nil
}

// Count returns the number of stored documents.
func (m *Memory) Count() int { return len(m.docs) }

// Teardown drops the stored documents. Idempotent.
func (m *Memory) Teardown() error {
	m.docs = nil
	return nil
}

// Stats returns call counters.
func (m *Memory) Stats() module.Stats { return m.stats }

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
