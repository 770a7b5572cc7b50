package retriever

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/nnennaai/nai/internal/config"
	"github.com/nnennaai/nai/internal/module"
)

// Qdrant stores vectors in a remote Qdrant collection over gRPC. Setup
// performs a health check with retry and fails fast when the server is
// unreachable; upserts retry transient failures with exponential backoff.
type Qdrant struct {
	cfg    config.RetrieverSettings
	logger *zap.Logger

	client   *qdrant.Client
	stats    module.Stats
	docCount int
	ready    bool
}

// NewQdrant creates the adapter; Setup connects and ensures the collection.
func NewQdrant(cfg config.RetrieverSettings, logger *zap.Logger) *Qdrant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Qdrant{cfg: cfg, logger: logger}
}

// Setup connects, verifies health, and ensures the collection exists.
// Idempotent.
func (q *Qdrant) Setup(ctx context.Context) error {
	if q.ready {
		return nil
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: q.cfg.Host,
		Port: q.cfg.Port,
	})
	if err != nil {
		return fmt.Errorf("create qdrant client: %w", err)
	}
	q.client = client

	if err := q.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		q.client = nil
		return fmt.Errorf("qdrant unreachable at %s:%d: %w", q.cfg.Host, q.cfg.Port, err)
	}
	if err := q.ensureCollection(ctx); err != nil {
		client.Close()
		q.client = nil
		return err
	}

	info, err := q.client.GetCollectionInfo(ctx, q.cfg.Collection)
	if err != nil {
		return fmt.Errorf("get collection %s: %w", q.cfg.Collection, err)
	}
	q.docCount = int(info.GetPointsCount())
	q.ready = true
	q.logger.Info("retriever ready",
		zap.String("provider", "qdrant"),
		zap.String("collection", q.cfg.Collection),
		zap.Int("count", q.docCount),
	)
	return nil
}

func (q *Qdrant) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		result, err := q.client.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if result == nil || result.Title == "" {
			return fmt.Errorf("health check returned invalid response")
		}
		return nil
	}
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// ensureCollection creates the collection when absent. Idempotent.
func (q *Qdrant) ensureCollection(ctx context.Context) error {
	collections, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range collections {
		if name == q.cfg.Collection {
			return nil
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.cfg.VectorSize),
			Distance: distanceFromMetric(q.cfg.DistanceMetric),
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.cfg.Collection, err)
	}
	return nil
}

func distanceFromMetric(metric string) qdrant.Distance {
	switch metric {
	case "l2":
		return qdrant.Distance_Euclid
	case "ip":
		return qdrant.Distance_Dot
	default:
		return qdrant.Distance_Cosine
	}
}

// Add upserts documents, generating a UUID point ID per document. Metadata
// travels JSON-encoded in the payload so arbitrary nesting survives the
// round trip.
func (q *Qdrant) Add(ctx context.Context, texts []string, embeddings [][]float32, metadata []map[string]any) error {
	if err := q.Setup(ctx); err != nil {
		return err
	}
	if len(texts) != len(embeddings) {
		return module.ErrLengthMismatch
	}
	if len(texts) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(texts))
	for i, text := range texts {
		payload := map[string]any{"text": text}
		if i < len(metadata) && metadata[i] != nil {
			raw, err := json.Marshal(metadata[i])
			if err != nil {
				return fmt.Errorf("encode metadata for document %d: %w", i, err)
			}
			payload["metadata"] = string(raw)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.New().String()),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	if err := q.upsertWithRetry(ctx, points); err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	q.docCount += len(points)
	q.logger.Debug("added documents", zap.Int("count", len(points)), zap.Int("total", q.docCount))
	return nil
}

func (q *Qdrant) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.cfg.Collection,
			Points:         points,
		})
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// Search returns up to min(k, count) documents by descending similarity.
func (q *Qdrant) Search(ctx context.Context, embedding []float32, k int) (out []module.Context, err error) {
	if err := q.Setup(ctx); err != nil {
		return nil, err
	}
	defer func(start time.Time) { q.stats.Observe(start, err) }(time.Now())

	if k > q.docCount {
		k = q.docCount
	}
	if k <= 0 {
		return []module.Context{}, nil
	}

	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.Collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	out = make([]module.Context, 0, len(results))
	for _, result := range results {
		doc := module.Context{
			ID:    result.Id.GetUuid(),
			Text:  result.Payload["text"].GetStringValue(),
			Score: float64(result.Score),
		}
		if raw := result.Payload["metadata"].GetStringValue(); raw != "" {
			var meta map[string]any
			if err := json.Unmarshal([]byte(raw), &meta); err == nil {
				doc.Metadata = meta
			}
		}
		out = append(out, doc)
	}
	return out, nil
}

// Reset drops and recreates the collection.
func (q *Qdrant) Reset(ctx context.Context) error {
	if err := q.Setup(ctx); err != nil {
		return err
	}
	if err := q.client.DeleteCollection(ctx, q.cfg.Collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if err := q.ensureCollection(ctx); err != nil {
		return err
	}
	q.docCount = 0
	return nil
}

// Count returns the locally tracked document count.
func (q *Qdrant) Count() int { return q.docCount }

// Teardown closes the gRPC connection. Idempotent.
func (q *Qdrant) Teardown() error {
	if q.client != nil {
		err := q.client.Close()
		q.client = nil
		q.ready = false
		return err
	}
	q.ready = false
	return nil
}

// Stats returns call counters.
func (q *Qdrant) Stats() module.Stats { return q.stats }
