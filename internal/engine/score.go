package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nnennaai/nai/internal/module"
	"github.com/nnennaai/nai/internal/runstore"
)

// ScoreResult pairs a run with its evaluation.
type ScoreResult struct {
	RunID      string              `json:"run_id"`
	Query      string              `json:"query"`
	Answer     string              `json:"answer"`
	Evaluation module.Evaluation   `json:"evaluation"`
	Metrics    runstore.RunMetrics `json:"metrics"`
	Timestamp  time.Time           `json:"timestamp"`
}

// Score runs the pipeline for the query and evaluates the answer against the
// retrieved contexts. A pipeline failure aborts scoring; an evaluator backend
// failure does not, it surfaces as zeroed scores with the error recorded on
// the evaluation.
func (e *Engine) Score(ctx context.Context, query, groundTruth string, k int) (*ScoreResult, error) {
	result, err := e.Run(ctx, query, RunOptions{K: k})
	if err != nil {
		return nil, err
	}

	contextTexts := make([]string, len(result.Contexts))
	for i, doc := range result.Contexts {
		contextTexts[i] = doc.Text
	}
	eval, err := e.evaluator.Evaluate(ctx, query, result.Answer, contextTexts, groundTruth)
	if err != nil {
		return nil, err
	}

	e.logger.Info("scored run",
		zap.String("run_id", result.RunID),
		zap.Float64("overall_score", eval.OverallScore),
		zap.Bool("passed", eval.Passed),
	)
	return &ScoreResult{
		RunID:      result.RunID,
		Query:      query,
		Answer:     result.Answer,
		Evaluation: eval,
		Metrics:    result.Metrics,
		Timestamp:  result.Timestamp,
	}, nil
}
