package generator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnennaai/nai/internal/config"
	"github.com/nnennaai/nai/internal/module"
)

func TestRenderRAGPrompt(t *testing.T) {
	contexts := []module.Context{
		{Text: "Paris is the capital of France."},
		{Text: "France is in Europe."},
	}
	prompt := renderRAGPrompt("What is the capital of France?", contexts)

	assert.Contains(t, prompt, "[1] Paris is the capital of France.")
	assert.Contains(t, prompt, "[2] France is in Europe.")
	assert.Contains(t, prompt, "Question: What is the capital of France?")
	assert.NotContains(t, prompt, "{context}")
	assert.NotContains(t, prompt, "{query}")
}

func TestRenderRAGPrompt_ContextsSeparated(t *testing.T) {
	contexts := []module.Context{{Text: "one"}, {Text: "two"}}
	prompt := renderRAGPrompt("q", contexts)
	assert.True(t, strings.Contains(prompt, "[1] one\n\n[2] two"),
		"contexts should be separated by a blank line")
}

func TestSetup_MissingAPIKey(t *testing.T) {
	g := NewOpenAI(config.GeneratorSettings{Model: "gpt-4o-mini"}, nil)
	err := g.Setup(context.Background())
	require.Error(t, err)
	assert.True(t, module.IsConfigError(err))
	assert.ErrorIs(t, err, module.ErrMissingCredential)
}

func TestEstimatedCost(t *testing.T) {
	g := NewOpenAI(config.GeneratorSettings{Model: "gpt-4o-mini"}, nil)
	g.promptTokens = 1000
	g.completionTokens = 1000
	assert.InDelta(t, 0.00015+0.0006, g.EstimatedCost(), 1e-9)

	usage := g.Usage()
	assert.Equal(t, int64(2000), usage.TotalTokens)
	assert.Equal(t, "gpt-4o-mini", usage.Model)
}

func TestEstimatedCost_UnknownModelUsesFallbackRates(t *testing.T) {
	g := NewOpenAI(config.GeneratorSettings{Model: "some-future-model"}, nil)
	g.promptTokens = 1000
	assert.InDelta(t, 0.00015, g.EstimatedCost(), 1e-9)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(config.GeneratorSettings{Provider: "nope"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, module.ErrUnknownProvider)
}
