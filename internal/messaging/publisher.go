package messaging

import (
	"context"

	"github.com/sparkify/datalake-etl/internal/domain"
)

// Publisher defines the interface for publishing run notifications to a message broker
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishRun publishes the summary of a finished run
	PublishRun(ctx context.Context, summary *domain.RunSummary) error
	// Close closes the connection
	Close()
}

// NopPublisher discards every notification. It is used when no broker is configured.
type NopPublisher struct{}

// PublishRun does nothing
func (NopPublisher) PublishRun(context.Context, *domain.RunSummary) error {
	return nil
}

// Close does nothing
func (NopPublisher) Close() {}
