// Package evaluator scores generated answers against quality metrics. Two
// providers: an LLM judge and a heuristic string-matching fallback. Both
// degrade to all-zero scores with an error field when their backend fails,
// so evaluation never aborts a run that already produced an answer.
package evaluator

import (
	"math"

	"github.com/nnennaai/nai/internal/module"
)

// finalize derives overall_score (mean of metric values, 3 decimals) and
// passed (overall >= threshold) from raw metric scores.
func finalize(scores map[string]float64, threshold float64) module.Evaluation {
	var sum float64
	for _, v := range scores {
		sum += v
	}
	overall := 0.0
	if len(scores) > 0 {
		overall = round3(sum / float64(len(scores)))
	}
	return module.Evaluation{
		Scores:       scores,
		OverallScore: overall,
		Passed:       overall >= threshold,
	}
}

// degraded builds the all-zero result returned when a scoring backend
// fails: every configured metric at 0.0, passed false, and the failure
// message in Error.
func degraded(metrics []string, err error) module.Evaluation {
	scores := make(map[string]float64, len(metrics))
	for _, name := range metrics {
		scores[name] = 0.0
	}
	return module.Evaluation{
		Scores:       scores,
		OverallScore: 0.0,
		Passed:       false,
		Error:        err.Error(),
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
