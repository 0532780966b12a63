package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/arbsim/internal/domain"
)

// ResultPublisher implements domain.ResultPublisher by publishing the run
// summary as JSON on a Redis Pub/Sub channel for the reporting dashboard.
type ResultPublisher struct {
	client  *Client
	channel string
}

// NewResultPublisher creates a publisher on the given channel.
func NewResultPublisher(c *Client, channel string) *ResultPublisher {
	return &ResultPublisher{client: c, channel: channel}
}

// summaryEnvelope is the published message shape.
type summaryEnvelope struct {
	Event   string         `json:"event"`
	RunID   string         `json:"run_id"`
	Summary domain.Summary `json:"summary"`
}

// PublishSummary publishes the run summary.
func (p *ResultPublisher) PublishSummary(ctx context.Context, runID string, summary domain.Summary) error {
	payload, err := json.Marshal(summaryEnvelope{
		Event:   "backtest_complete",
		RunID:   runID,
		Summary: summary,
	})
	if err != nil {
		return fmt.Errorf("redis: marshal summary %s: %w", runID, err)
	}
	if err := p.client.Underlying().Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", p.channel, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ResultPublisher = (*ResultPublisher)(nil)
