package triage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricedb-harness/internal/logger"
	"pricedb-harness/internal/types"
)

func TestSummarizeNothingToReview(t *testing.T) {
	l, err := logger.NewLogger(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	c := NewClient(Config{APIKey: "sk-test", Model: "gpt-4"}, l)
	notes, err := c.Summarize(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestSummarizeFailureIsAdvisory(t *testing.T) {
	l, err := logger.NewLogger(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	// An unreachable backend must surface as an error the caller can ignore,
	// never as a panic or a fabricated summary.
	c := NewClient(Config{APIKey: "sk-invalid", Model: "gpt-4"}, l)
	probes := []types.ProbeResult{
		{Endpoint: "items", Method: "GET", Status: 500, Classification: types.Inconclusive},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	notes, err := c.Summarize(ctx, probes)
	require.Error(t, err)
	assert.Empty(t, notes)
	assert.Contains(t, err.Error(), "triage request failed")
}
