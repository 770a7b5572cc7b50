package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/nnennaai/nai/internal/module"
	"github.com/nnennaai/nai/internal/runstore"
)

// RunOptions carries per-run overrides. Zero values fall back to the
// configured defaults.
type RunOptions struct {
	// K overrides pipeline.top_k when positive.
	K int

	// Trace overrides pipeline.trace when non-nil.
	Trace *bool
}

// Run executes the pipeline for one query: EMBED → RETRIEVE → GENERATE →
// FINALIZE, strictly sequential. Any failure in the first three states
// aborts the run; no partial record is constructed or persisted and the
// step's error propagates. Transient provider failures are retried inside
// the adapters, never here.
func (e *Engine) Run(ctx context.Context, query string, opts RunOptions) (*RunResult, error) {
	if err := e.Setup(ctx); err != nil {
		return nil, err
	}

	traceEnabled := e.cfg.Pipeline.Trace
	if opts.Trace != nil {
		traceEnabled = *opts.Trace
	}
	now := time.Now()
	rc := RunContext{
		RunID:        newRunID(query, now),
		Query:        query,
		Timestamp:    now,
		Config:       e.configSnapshot(),
		TraceEnabled: traceEnabled,
	}

	e.logger.Info("starting run", zap.String("run_id", rc.RunID), zap.String("query", query))

	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.Start(ctx, "rag.pipeline", trace.WithAttributes(
			attribute.String("run_id", rc.RunID),
			attribute.String("query", query),
		))
		defer span.End()
	}

	start := time.Now()
	traceLog := []TraceStep{
		e.traceStep(rc, "run_start", map[string]any{
			"run_id":        rc.RunID,
			"config":        rc.Config,
			"trace_enabled": rc.TraceEnabled,
		}, nil),
	}

	// EMBED
	stepStart := time.Now()
	vectors, err := e.embedStep(ctx, query)
	if err != nil {
		return nil, e.abortRun(span, rc, "embed query", err)
	}
	queryEmbedding := vectors[0]
	embedSeconds := time.Since(stepStart).Seconds()
	traceLog = append(traceLog, e.traceStep(rc, "embed_query", map[string]any{
		"query":         query,
		"embedding_dim": len(queryEmbedding),
	}, ptr(round3(embedSeconds))))

	// RETRIEVE
	stepStart = time.Now()
	k := opts.K
	if k <= 0 {
		k = e.cfg.Pipeline.TopK
	}
	contexts, err := e.retrieveStep(ctx, queryEmbedding, k)
	if err != nil {
		return nil, e.abortRun(span, rc, "retrieve contexts", err)
	}
	retrieveSeconds := time.Since(stepStart).Seconds()

	avgScore := 0.0
	if len(contexts) > 0 {
		for _, doc := range contexts {
			avgScore += doc.Score
		}
		avgScore /= float64(len(contexts))
	}
	traceLog = append(traceLog, e.traceStep(rc, "retrieve", map[string]any{
		"k":             k,
		"num_retrieved": len(contexts),
	}, ptr(round3(retrieveSeconds))))

	// GENERATE
	stepStart = time.Now()
	answer, err := e.generateStep(ctx, rc, query, contexts)
	if err != nil {
		return nil, e.abortRun(span, rc, "generate answer", err)
	}
	generateSeconds := time.Since(stepStart).Seconds()
	usage := e.generator.Usage()
	traceLog = append(traceLog, e.traceStep(rc, "generate", map[string]any{
		"answer_length": len(answer),
		"model":         usage.Model,
	}, ptr(round3(generateSeconds))))

	// FINALIZE
	totalSeconds := time.Since(start).Seconds()
	result := &RunResult{
		RunID:    rc.RunID,
		Query:    query,
		Answer:   answer,
		Contexts: contexts,
		Metrics: runstore.RunMetrics{
			Latency: runstore.LatencyMetrics{
				TotalSeconds:    round3(totalSeconds),
				EmbedSeconds:    round3(embedSeconds),
				RetrieveSeconds: round3(retrieveSeconds),
				GenerateSeconds: round3(generateSeconds),
			},
			Retrieval: runstore.RetrievalMetrics{
				NumContexts: len(contexts),
				AvgScore:    avgScore,
			},
			Generator:        usage,
			EstimatedCost:    e.estimatedCost(),
			TelemetryEnabled: e.cfg.Pipeline.Telemetry.Enabled,
		},
		Trace:           traceLog,
		DurationSeconds: totalSeconds,
		Timestamp:       rc.Timestamp,
	}

	if e.store != nil {
		if err := e.store.Save(result); err != nil {
			return nil, e.abortRun(span, rc, "persist run", err)
		}
	}
	e.history = append(e.history, result)

	if span != nil {
		span.SetAttributes(attribute.Float64("duration_seconds", totalSeconds))
		span.SetStatus(codes.Ok, "")
	}
	e.logger.Info("run complete",
		zap.String("run_id", rc.RunID),
		zap.Float64("duration_seconds", round3(totalSeconds)),
	)
	return result, nil
}

func (e *Engine) embedStep(ctx context.Context, query string) (vectors [][]float32, err error) {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "rag.embed_query")
		defer func() { endSpan(span, err) }()
	}
	vectors, err = e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}
	return vectors, nil
}

func (e *Engine) retrieveStep(ctx context.Context, embedding []float32, k int) (contexts []module.Context, err error) {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "rag.retrieve", trace.WithAttributes(attribute.Int("k", k)))
		defer func() { endSpan(span, err) }()
	}
	return e.retriever.Search(ctx, embedding, k)
}

func (e *Engine) generateStep(ctx context.Context, rc RunContext, query string, contexts []module.Context) (answer string, err error) {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "rag.generate", trace.WithAttributes(
			attribute.String("run_id", rc.RunID),
			attribute.Int("num_contexts", len(contexts)),
		))
		defer func() { endSpan(span, err) }()
	}
	return e.generator.Generate(ctx, query, module.GenerateOptions{
		Contexts:       contexts,
		UseRAGTemplate: true,
		RunID:          rc.RunID,
	})
}

// abortRun records the failure on the pipeline span and wraps the step
// error. The underlying cause stays intact for errors.Is/As.
func (e *Engine) abortRun(span trace.Span, rc RunContext, step string, err error) error {
	e.logger.Error("pipeline run failed",
		zap.String("run_id", rc.RunID),
		zap.String("step", step),
		zap.Error(err),
	)
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return fmt.Errorf("%s: %w", step, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func ptr[T any](v T) *T { return &v }
