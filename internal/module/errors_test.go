package module

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigError_WrapsSentinel(t *testing.T) {
	err := NewConfigError("embedder", "provider cohere", ErrUnknownProvider)

	assert.True(t, IsConfigError(err))
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.Contains(t, err.Error(), "embedder")
	assert.Contains(t, err.Error(), "provider cohere")
}

func TestConfigError_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("setup: %w", NewConfigError("generator", "no key", ErrMissingCredential))
	assert.True(t, IsConfigError(err))
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestIsConfigError_PlainError(t *testing.T) {
	assert.False(t, IsConfigError(errors.New("boom")))
	assert.False(t, IsConfigError(nil))
}

func TestStats_Observe(t *testing.T) {
	var s Stats
	start := time.Now().Add(-10 * time.Millisecond)
	s.Observe(start, nil)
	s.Observe(start, errors.New("fail"))

	assert.EqualValues(t, 2, s.Calls)
	assert.EqualValues(t, 1, s.Errors)
	assert.Greater(t, s.TotalTime, time.Duration(0))
	require.Greater(t, s.AvgTime(), time.Duration(0))
}

func TestStats_AvgTimeNoCalls(t *testing.T) {
	var s Stats
	assert.Equal(t, time.Duration(0), s.AvgTime())
}
