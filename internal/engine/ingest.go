package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nnennaai/nai/internal/module"
)

const defaultIngestBatchSize = 10

// IngestStats summarizes one ingestion pass.
type IngestStats struct {
	DocumentsProcessed int     `json:"documents_processed"`
	ChunksCreated      int     `json:"chunks_created"`
	DurationSeconds    float64 `json:"duration_seconds"`
	ChunksPerSecond    float64 `json:"chunks_per_second"`
	RetrieverCount     int     `json:"retriever_count"`
}

// Ingest processes documents in batches of batchSize documents: each batch's
// chunks are embedded together in one call and appended to the retriever in
// one call. Each chunk inherits its document's metadata plus chunk_index and
// total_chunks; documents without metadata get {"source": "manual"}.
func (e *Engine) Ingest(ctx context.Context, docs []module.Document, batchSize int) (*IngestStats, error) {
	if err := e.Setup(ctx); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = defaultIngestBatchSize
	}

	start := time.Now()
	e.logger.Info("ingesting documents",
		zap.Int("documents", len(docs)),
		zap.Int("batch_size", batchSize),
	)

	totalChunks := 0
	for offset := 0; offset < len(docs); offset += batchSize {
		end := offset + batchSize
		if end > len(docs) {
			end = len(docs)
		}

		// One batch is batchSize documents; all of their chunks are
		// embedded together in a single call.
		var texts []string
		var metadatas []map[string]any
		for _, doc := range docs[offset:end] {
			chunks := chunkText(doc.Text, e.cfg.Pipeline.ChunkSize, e.cfg.Pipeline.ChunkOverlap)
			for i, chunk := range chunks {
				md := make(map[string]any, len(doc.Metadata)+2)
				if len(doc.Metadata) == 0 {
					md["source"] = "manual"
				}
				for k, v := range doc.Metadata {
					md[k] = v
				}
				md["chunk_index"] = i
				md["total_chunks"] = len(chunks)
				texts = append(texts, chunk)
				metadatas = append(metadatas, md)
			}
		}

		embeddings, err := e.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch at document %d: %w", offset, err)
		}
		if err := e.retriever.Add(ctx, texts, embeddings, metadatas); err != nil {
			return nil, fmt.Errorf("add batch at document %d: %w", offset, err)
		}
		totalChunks += len(texts)
	}

	elapsed := time.Since(start).Seconds()
	chunksPerSecond := 0.0
	if elapsed > 0 {
		chunksPerSecond = float64(totalChunks) / elapsed
	}
	stats := &IngestStats{
		DocumentsProcessed: len(docs),
		ChunksCreated:      totalChunks,
		DurationSeconds:    round2(elapsed),
		ChunksPerSecond:    round2(chunksPerSecond),
		RetrieverCount:     e.retriever.Count(),
	}
	e.logger.Info("ingestion complete",
		zap.Int("chunks_created", stats.ChunksCreated),
		zap.Float64("duration_seconds", stats.DurationSeconds),
		zap.Int("retriever_count", stats.RetrieverCount),
	)
	return stats, nil
}
