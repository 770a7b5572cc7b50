package retriever

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/nnennaai/nai/internal/config"
	"github.com/nnennaai/nai/internal/module"
)

// Chromem stores vectors in chromem-go, an embedded pure-Go vector database
// with gob persistence. No external service required.
//
// The pipeline always supplies precomputed embeddings, both on Add and on
// Search, so the collection's embedding function is a guard that fails if it
// is ever invoked.
type Chromem struct {
	cfg    config.RetrieverSettings
	logger *zap.Logger

	db         *chromem.DB
	collection *chromem.Collection
	stats      module.Stats
	ready      bool
}

// NewChromem creates the adapter; Setup opens or creates the database.
func NewChromem(cfg config.RetrieverSettings, logger *zap.Logger) *Chromem {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chromem{cfg: cfg, logger: logger}
}

// Setup opens the persistent database and the configured collection.
// Idempotent.
func (c *Chromem) Setup(ctx context.Context) error {
	if c.ready {
		return nil
	}
	if c.cfg.PersistDir != "" {
		if err := os.MkdirAll(c.cfg.PersistDir, 0o755); err != nil {
			return fmt.Errorf("create persist dir %s: %w", c.cfg.PersistDir, err)
		}
		db, err := chromem.NewPersistentDB(c.cfg.PersistDir, false)
		if err != nil {
			return fmt.Errorf("open chromem db: %w", err)
		}
		c.db = db
	} else {
		c.db = chromem.NewDB()
	}

	collection, err := c.db.GetOrCreateCollection(c.cfg.Collection, nil, rejectEmbeddingFunc)
	if err != nil {
		return fmt.Errorf("open collection %s: %w", c.cfg.Collection, err)
	}
	c.collection = collection
	c.ready = true
	c.logger.Info("retriever ready",
		zap.String("provider", "chromem"),
		zap.String("collection", c.cfg.Collection),
		zap.Int("count", collection.Count()),
	)
	return nil
}

// rejectEmbeddingFunc is installed as the collection's embedding function;
// all embeddings are precomputed by the pipeline, so reaching it is a bug.
func rejectEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("chromem retriever only accepts precomputed embeddings")
}

// Add appends documents, generating a UUID per document.
func (c *Chromem) Add(ctx context.Context, texts []string, embeddings [][]float32, metadata []map[string]any) error {
	if err := c.Setup(ctx); err != nil {
		return err
	}
	if len(texts) != len(embeddings) {
		return module.ErrLengthMismatch
	}
	if len(texts) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(texts))
	for i, text := range texts {
		var meta map[string]any
		if i < len(metadata) {
			meta = metadata[i]
		}
		docs[i] = chromem.Document{
			ID:        uuid.New().String(),
			Content:   text,
			Embedding: embeddings[i],
			Metadata:  metadataToStrings(meta),
		}
	}
	// Concurrency 1: embeddings are already computed, nothing to parallelize.
	if err := c.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	c.logger.Debug("added documents", zap.Int("count", len(docs)), zap.Int("total", c.collection.Count()))
	return nil
}

// Search returns up to min(k, count) documents by descending similarity.
func (c *Chromem) Search(ctx context.Context, embedding []float32, k int) (out []module.Context, err error) {
	if err := c.Setup(ctx); err != nil {
		return nil, err
	}
	defer func(start time.Time) { c.stats.Observe(start, err) }(time.Now())

	// chromem rejects nResults above the document count.
	if count := c.collection.Count(); k > count {
		k = count
	}
	if k <= 0 {
		return []module.Context{}, nil
	}

	results, err := c.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	out = make([]module.Context, len(results))
	for i, r := range results {
		out[i] = module.Context{
			ID:       r.ID,
			Text:     r.Content,
			Score:    float64(r.Similarity),
			Metadata: metadataFromStrings(r.Metadata),
		}
	}
	return out, nil
}

// Reset drops and recreates the collection.
func (c *Chromem) Reset(ctx context.Context) error {
	if err := c.Setup(ctx); err != nil {
		return err
	}
	if err := c.db.DeleteCollection(c.cfg.Collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	collection, err := c.db.GetOrCreateCollection(c.cfg.Collection, nil, rejectEmbeddingFunc)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	c.collection = collection
	return nil
}

// Count returns the number of stored documents, 0 before Setup.
func (c *Chromem) Count() int {
	if !c.ready {
		return 0
	}
	return c.collection.Count()
}

// Teardown drops the handles; persisted data stays on disk. Idempotent.
func (c *Chromem) Teardown() error {
	c.collection = nil
	c.db = nil
	c.ready = false
	return nil
}

// Stats returns call counters.
func (c *Chromem) Stats() module.Stats { return c.stats }

// metadataToStrings flattens metadata for chromem, which stores string maps.
func metadataToStrings(meta map[string]any) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func metadataFromStrings(meta map[string]string) map[string]any {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
