package evaluator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnennaai/nai/internal/config"
	"github.com/nnennaai/nai/internal/module"
)

func TestFinalize_MeanAndThreshold(t *testing.T) {
	scores := map[string]float64{
		"faithfulness":      0.9,
		"answer_relevancy":  0.8,
		"context_precision": 0.7,
	}
	ev := finalize(scores, 0.7)
	assert.InDelta(t, 0.8, ev.OverallScore, 1e-9)
	assert.True(t, ev.Passed)
	assert.Empty(t, ev.Error)
}

func TestFinalize_RoundsToThreeDecimals(t *testing.T) {
	ev := finalize(map[string]float64{"a": 1, "b": 1, "c": 0}, 0.5)
	assert.Equal(t, 0.667, ev.OverallScore)
}

func TestFinalize_ExactThresholdPasses(t *testing.T) {
	ev := finalize(map[string]float64{"a": 0.7}, 0.7)
	assert.True(t, ev.Passed)
}

func TestFinalize_BelowThresholdFails(t *testing.T) {
	ev := finalize(map[string]float64{"a": 0.69}, 0.7)
	assert.False(t, ev.Passed)
}

func TestFinalize_NoScores(t *testing.T) {
	ev := finalize(map[string]float64{}, 0.7)
	assert.Equal(t, 0.0, ev.OverallScore)
	assert.False(t, ev.Passed)
}

func TestDegraded_ZeroScoresWithError(t *testing.T) {
	metrics := []string{"faithfulness", "answer_relevancy"}
	ev := degraded(metrics, errors.New("judge unavailable"))

	require.Len(t, ev.Scores, 2)
	for name, score := range ev.Scores {
		assert.Equal(t, 0.0, score, "metric %s", name)
	}
	assert.Equal(t, 0.0, ev.OverallScore)
	assert.False(t, ev.Passed)
	assert.Equal(t, "judge unavailable", ev.Error)
}

func TestHeuristic_ScoresAnswer(t *testing.T) {
	h := NewHeuristic(config.EvalSettings{Threshold: 0.5}, nil)
	ctx := context.Background()

	ev, err := h.Evaluate(ctx, "capital of France?",
		"Paris is the capital of France",
		[]string{"Paris is the capital of France and its largest city."}, "")
	require.NoError(t, err)

	assert.Equal(t, 1.0, ev.Scores["has_answer"])
	assert.Equal(t, 1.0, ev.Scores["uses_context"])
	_, hasExact := ev.Scores["exact_match"]
	assert.False(t, hasExact, "exact_match only scored when ground truth given")
	assert.True(t, ev.Passed)
}

func TestHeuristic_EmptyAnswer(t *testing.T) {
	h := NewHeuristic(config.EvalSettings{Threshold: 0.5}, nil)
	ev, err := h.Evaluate(context.Background(), "q", "   ", []string{"context"}, "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, ev.Scores["has_answer"])
}

func TestHeuristic_ExactMatch(t *testing.T) {
	h := NewHeuristic(config.EvalSettings{Threshold: 0.5}, nil)
	ctx := context.Background()

	ev, err := h.Evaluate(ctx, "q", "Paris", []string{"Paris"}, "  paris ")
	require.NoError(t, err)
	assert.Equal(t, 1.0, ev.Scores["exact_match"], "comparison is case-insensitive and trimmed")

	ev, err = h.Evaluate(ctx, "q", "Paris", []string{"Paris"}, "London")
	require.NoError(t, err)
	assert.Equal(t, 0.0, ev.Scores["exact_match"])
}

func TestContextOverlap(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		contexts []string
		want     float64
	}{
		{"full overlap", "alpha beta", []string{"alpha beta gamma"}, 1.0},
		{"half overlap", "alpha delta", []string{"alpha beta"}, 0.5},
		{"no overlap", "delta epsilon", []string{"alpha beta"}, 0.0},
		{"empty answer", "", []string{"alpha"}, 0.0},
		{"no contexts", "alpha", nil, 0.0},
		{"repeated words counted once", "alpha alpha delta", []string{"alpha"}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, contextOverlap(tt.answer, tt.contexts), 1e-9)
		})
	}
}

func TestNew_Providers(t *testing.T) {
	for _, name := range []string{"llm", "ragas", "heuristic", "simple", "exact_match"} {
		_, err := New(config.EvalSettings{Provider: name}, nil)
		assert.NoError(t, err, "provider %s", name)
	}

	_, err := New(config.EvalSettings{Provider: "nope"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, module.ErrUnknownProvider)
}
