package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnennaai/nai/internal/config"
	"github.com/nnennaai/nai/internal/module"
)

func TestSetup_MissingAPIKey(t *testing.T) {
	e := NewOpenAI(config.EmbeddingSettings{Model: "text-embedding-3-small", BatchSize: 100}, nil)
	err := e.Setup(context.Background())
	require.Error(t, err)
	assert.True(t, module.IsConfigError(err))
	assert.ErrorIs(t, err, module.ErrMissingCredential)
}

func TestEmbed_EmptyInputNoAPICall(t *testing.T) {
	e := NewOpenAI(config.EmbeddingSettings{
		Model:     "text-embedding-3-small",
		APIKey:    config.Secret("sk-test"),
		BatchSize: 100,
	}, nil)

	out, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestDimension(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
		{"unknown-model", 1536},
	}
	for _, tt := range tests {
		e := NewOpenAI(config.EmbeddingSettings{Model: tt.model}, nil)
		assert.Equal(t, tt.want, e.Dimension(), "model %s", tt.model)
	}
}

func TestEstimatedCost(t *testing.T) {
	e := NewOpenAI(config.EmbeddingSettings{Model: "text-embedding-3-small"}, nil)
	e.totalTokens = 10000
	assert.InDelta(t, 0.0002, e.EstimatedCost(), 1e-9)
}

func TestToFloat32(t *testing.T) {
	out := toFloat32([]float64{0.1, -0.5, 2})
	require.Len(t, out, 3)
	assert.InDelta(t, 0.1, float64(out[0]), 1e-6)
	assert.InDelta(t, -0.5, float64(out[1]), 1e-6)
	assert.InDelta(t, 2.0, float64(out[2]), 1e-6)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(config.EmbeddingSettings{Provider: "cohere"}, nil)
	require.Error(t, err)
	assert.True(t, module.IsConfigError(err))
	assert.ErrorIs(t, err, module.ErrUnknownProvider)
}

func TestNew_KnownProvider(t *testing.T) {
	e, err := New(config.EmbeddingSettings{Provider: "openai"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, e)
}
