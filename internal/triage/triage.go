// Package triage optionally summarizes reviewable probe outcomes with an
// LLM. Inconclusive probes are surfaced for manual review, never dropped;
// triage only annotates the report to make that review faster. Without an
// API key the suite runs unchanged.
package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"pricedb-harness/internal/logger"
	"pricedb-harness/internal/types"
)

// Config represents the triage configuration
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Client summarizes probe outcomes
type Client struct {
	config Config
	client *openai.Client
	logger *logger.Logger
}

// NewClient creates a new triage client
func NewClient(config Config, logger *logger.Logger) *Client {
	return &Client{
		config: config,
		client: openai.NewClient(config.APIKey),
		logger: logger,
	}
}

// Summarize asks the model to group and prioritize the reviewable probes.
// The result is advisory text for the report; errors leave the report
// without triage notes rather than failing the run.
func (c *Client) Summarize(ctx context.Context, probes []types.ProbeResult) (string, error) {
	if len(probes) == 0 {
		return "", nil
	}

	lines := make([]string, 0, len(probes))
	for _, p := range probes {
		entry, _ := json.Marshal(p)
		lines = append(lines, string(entry))
	}

	prompt := fmt.Sprintf(`The following probe outcomes from an API security and conformance run need manual review. Each line is one JSON-encoded probe result; the classification field is either "leak-detected" (hard security failure) or "inconclusive" (unexplained outcome).

%s

Group the probes by likely root cause, order the groups by severity, and for each group give a one-sentence explanation and a suggested next investigation step. Be concise.`,
		strings.Join(lines, "\n"))

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       c.config.Model,
			Temperature: float32(c.config.Temperature),
			MaxTokens:   c.config.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are a security test triage assistant. You summarize probe outcomes for a human reviewer. Respond in plain text.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		c.logger.LogTriage(len(probes), "", err)
		return "", fmt.Errorf("triage request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no response from model")
		c.logger.LogTriage(len(probes), "", err)
		return "", err
	}

	notes := resp.Choices[0].Message.Content
	c.logger.LogTriage(len(probes), notes, nil)
	return notes, nil
}
