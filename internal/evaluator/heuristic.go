package evaluator

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nnennaai/nai/internal/config"
	"github.com/nnennaai/nai/internal/module"
)

// Heuristic scores answers with plain string matching, no network. Metrics:
// has_answer (non-blank output), uses_context (answer-word overlap with the
// retrieved contexts), and exact_match against the ground truth when one is
// given.
type Heuristic struct {
	cfg    config.EvalSettings
	logger *zap.Logger
	stats  module.Stats
}

// NewHeuristic creates the string-matching evaluator.
func NewHeuristic(cfg config.EvalSettings, logger *zap.Logger) *Heuristic {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Heuristic{cfg: cfg, logger: logger}
}

// Setup is a no-op; there is no backend.
func (e *Heuristic) Setup(ctx context.Context) error { return nil }

// Evaluate scores the answer. Never degrades: there is no backend to fail.
func (e *Heuristic) Evaluate(ctx context.Context, query, answer string, contexts []string, groundTruth string) (ev module.Evaluation, err error) {
	defer func(start time.Time) { e.stats.Observe(start, err) }(time.Now())

	scores := map[string]float64{}

	if strings.TrimSpace(answer) != "" {
		scores["has_answer"] = 1.0
	} else {
		scores["has_answer"] = 0.0
	}

	scores["uses_context"] = contextOverlap(answer, contexts)

	if groundTruth != "" {
		if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(groundTruth)) {
			scores["exact_match"] = 1.0
		} else {
			scores["exact_match"] = 0.0
		}
	}

	return finalize(scores, e.cfg.Threshold), nil
}

// contextOverlap is the fraction of answer words that also appear in the
// joined context text, capped at 1.
func contextOverlap(answer string, contexts []string) float64 {
	if answer == "" || len(contexts) == 0 {
		return 0.0
	}
	contextWords := map[string]bool{}
	for _, word := range strings.Fields(strings.ToLower(strings.Join(contexts, " "))) {
		contextWords[word] = true
	}
	answerWords := strings.Fields(strings.ToLower(answer))
	if len(answerWords) == 0 {
		return 0.0
	}
	seen := map[string]bool{}
	matched := 0
	for _, word := range answerWords {
		if seen[word] {
			continue
		}
		seen[word] = true
		if contextWords[word] {
			matched++
		}
	}
	overlap := float64(matched) / float64(len(seen))
	if overlap > 1 {
		overlap = 1
	}
	return overlap
}

// Teardown is a no-op.
func (e *Heuristic) Teardown() error { return nil }

// Stats returns call counters.
func (e *Heuristic) Stats() module.Stats { return e.stats }
