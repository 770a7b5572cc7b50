// Package engine orchestrates the RAG pipeline: embed a query, retrieve
// contexts, generate an answer, and finalize a run record, strictly in that
// order, with per-step timing and an optional trace. Ingestion and scoring
// compose the same adapters.
//
// An Engine owns its four adapters and its run history and is not safe to
// drive from multiple goroutines.
package engine

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/nnennaai/nai/internal/config"
	"github.com/nnennaai/nai/internal/embedder"
	"github.com/nnennaai/nai/internal/evaluator"
	"github.com/nnennaai/nai/internal/generator"
	"github.com/nnennaai/nai/internal/module"
	"github.com/nnennaai/nai/internal/retriever"
	"github.com/nnennaai/nai/internal/runstore"
)

// RunResult is the record produced by a successful run.
type RunResult = runstore.RunResult

// TraceStep is one entry of a run's step log.
type TraceStep = runstore.TraceStep

// RunContext identifies one pipeline invocation. Created at the start of a
// run, immutable thereafter, and embedded into the run's trace rather than
// persisted on its own.
type RunContext struct {
	RunID        string         `json:"run_id"`
	Query        string         `json:"query"`
	Timestamp    time.Time      `json:"timestamp"`
	Config       map[string]any `json:"config"`
	TraceEnabled bool           `json:"trace_enabled"`
}

// Engine wires the four capability roles into the embed → retrieve →
// generate → evaluate pipeline.
type Engine struct {
	cfg    *config.Settings
	logger *zap.Logger
	tracer trace.Tracer

	embedder  module.Embedder
	retriever module.Retriever
	generator module.Generator
	evaluator module.Evaluator

	store   *runstore.Store
	history []*RunResult
	ready   bool
}

// Option customizes engine construction.
type Option func(*Engine)

// WithLogger sets the engine logger. Default is a no-op logger; the engine
// never prints, presentation belongs to the caller.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithModules injects pre-built adapters, bypassing registry resolution for
// the non-nil ones. Used by tests and by embedders of the engine that build
// their own providers.
func WithModules(emb module.Embedder, ret module.Retriever, gen module.Generator, ev module.Evaluator) Option {
	return func(e *Engine) {
		if emb != nil {
			e.embedder = emb
		}
		if ret != nil {
			e.retriever = ret
		}
		if gen != nil {
			e.generator = gen
		}
		if ev != nil {
			e.evaluator = ev
		}
	}
}

// New creates an engine for the given settings. The run directory is created
// eagerly when run persistence is enabled; adapters are resolved lazily at
// Setup.
func New(cfg *config.Settings, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}

	if cfg.Pipeline.SaveRuns {
		store, err := runstore.New(cfg.Pipeline.RunDir, e.logger)
		if err != nil {
			return nil, err
		}
		e.store = store
	}
	if cfg.Pipeline.Telemetry.Enabled {
		e.tracer = otel.Tracer("nai.engine")
	}
	return e, nil
}

// Setup resolves each role's adapter from its provider registry and
// initializes it. Idempotent. An unknown provider name fails here with a
// ConfigError, never later at call time.
func (e *Engine) Setup(ctx context.Context) error {
	if e.ready {
		return nil
	}
	e.logger.Info("setting up pipeline modules")

	if e.embedder == nil {
		emb, err := embedder.New(e.cfg.Embeddings, e.logger)
		if err != nil {
			return err
		}
		e.embedder = emb
	}
	if err := e.embedder.Setup(ctx); err != nil {
		return err
	}

	if e.retriever == nil {
		ret, err := retriever.New(e.cfg.Retriever, e.logger)
		if err != nil {
			return err
		}
		e.retriever = ret
	}
	if err := e.retriever.Setup(ctx); err != nil {
		return err
	}

	if e.generator == nil {
		gen, err := generator.New(e.cfg.Generator, e.logger)
		if err != nil {
			return err
		}
		e.generator = gen
	}
	if err := e.generator.Setup(ctx); err != nil {
		return err
	}

	if e.evaluator == nil {
		ev, err := evaluator.New(e.cfg.Eval, e.logger)
		if err != nil {
			return err
		}
		e.evaluator = ev
	}
	if err := e.evaluator.Setup(ctx); err != nil {
		return err
	}

	e.ready = true
	e.logger.Info("pipeline setup complete")
	return nil
}

// Teardown releases all adapter resources. Idempotent.
func (e *Engine) Teardown() error {
	var firstErr error
	for _, td := range []func() error{
		func() error {
			if e.embedder != nil {
				return e.embedder.Teardown()
			}
			return nil
		},
		func() error {
			if e.retriever != nil {
				return e.retriever.Teardown()
			}
			return nil
		},
		func() error {
			if e.generator != nil {
				return e.generator.Teardown()
			}
			return nil
		},
		func() error {
			if e.evaluator != nil {
				return e.evaluator.Teardown()
			}
			return nil
		},
	} {
		if err := td(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.ready = false
	e.logger.Info("pipeline teardown complete")
	return firstErr
}

// History returns the runs completed by this engine instance, oldest first.
// The list grows unboundedly for the life of the process.
func (e *Engine) History() []*RunResult { return e.history }

// Retriever exposes the retriever for callers that manage store contents
// directly (reset, count display).
func (e *Engine) Retriever() module.Retriever { return e.retriever }

// newRunID derives a run identifier from the query text and the current
// time: the first 12 hex chars of md5(query + timestamp).
func newRunID(query string, ts time.Time) string {
	sum := md5.Sum([]byte(query + ts.Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])[:12]
}

// traceStep builds one trace entry and logs it when tracing is on.
func (e *Engine) traceStep(rc RunContext, step string, data map[string]any, duration *float64) TraceStep {
	entry := TraceStep{
		Step:            step,
		Timestamp:       time.Now(),
		Data:            data,
		DurationSeconds: duration,
	}
	if rc.TraceEnabled {
		fields := []zap.Field{zap.String("run_id", rc.RunID), zap.Any("data", data)}
		if duration != nil {
			fields = append(fields, zap.Float64("duration_seconds", *duration))
		}
		e.logger.Info("trace: "+step, fields...)
	}
	return entry
}

// configSnapshot captures the active settings with secrets redacted.
func (e *Engine) configSnapshot() map[string]any {
	m, err := e.cfg.Get("")
	if err != nil {
		return nil
	}
	snapshot, _ := m.(map[string]any)
	return snapshot
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round5(v float64) float64 { return math.Round(v*100000) / 100000 }

// estimatedCost sums per-adapter cost estimates, nil when cost display is
// deferred to the external telemetry backend.
func (e *Engine) estimatedCost() *float64 {
	if e.cfg.Pipeline.Telemetry.Enabled {
		return nil
	}
	var total float64
	if ce, ok := e.embedder.(module.CostEstimator); ok {
		total += ce.EstimatedCost()
	}
	if ce, ok := e.generator.(module.CostEstimator); ok {
		total += ce.EstimatedCost()
	}
	cost := round5(total)
	return &cost
}
