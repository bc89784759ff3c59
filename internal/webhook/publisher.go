package webhook

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/sparkify/datalake-etl/internal/adapter"
	"github.com/sparkify/datalake-etl/internal/domain"
	"github.com/sparkify/datalake-etl/internal/logger"
	"github.com/sparkify/datalake-etl/internal/messaging"
)

// Config holds the webhook endpoint settings
type Config struct {
	URL    string
	Secret string
}

type publisher struct {
	url    string
	secret string
	client adapter.HTTPClient
	json   adapter.JSON
	clock  adapter.Clock
}

// NewPublisher creates a publisher that delivers run summaries as signed HTTP POSTs.
// Each summary is delivered once; a non-2xx response is an error.
func NewPublisher(cfg Config, client adapter.HTTPClient, jsonAdapter adapter.JSON, clock adapter.Clock) messaging.Publisher {
	return &publisher{
		url:    cfg.URL,
		secret: cfg.Secret,
		client: client,
		json:   jsonAdapter,
		clock:  clock,
	}
}

// PublishRun delivers the summary of a finished run
func (p *publisher) PublishRun(ctx context.Context, summary *domain.RunSummary) error {
	now := p.clock.Now()
	event := Event{
		EventID:   summary.RunID,
		EventType: EventTypeFor(summary),
		Timestamp: now.UTC(),
		Data:      summary,
	}

	payload, err := p.json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	timestamp := now.Unix()
	headers := map[string]string{
		"Content-Type":  "application/json",
		HeaderTimestamp: strconv.FormatInt(timestamp, 10),
		HeaderEventID:   event.EventID,
		HeaderEventType: event.EventType,
	}
	if p.secret != "" {
		headers[HeaderSignature] = Sign(p.secret, timestamp, event.EventID, payload)
	}

	status, body, err := p.client.Post(ctx, p.url, headers, payload)
	if err != nil {
		return fmt.Errorf("failed to deliver webhook: %w", err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d: %s", status, string(body))
	}

	logger.Debug("Delivered run webhook",
		zap.String("eventID", event.EventID),
		zap.String("eventType", event.EventType),
		zap.Int("status", status))
	return nil
}

// Close does nothing, deliveries hold no connection
func (p *publisher) Close() {}
