package messaging

import (
	"context"
	"errors"

	"github.com/sparkify/datalake-etl/internal/domain"
)

// fanout publishes to several publishers
type fanout []Publisher

// Fanout returns a publisher delivering every notification to all of publishers.
// A failure of one publisher does not stop delivery to the others.
func Fanout(publishers ...Publisher) Publisher {
	switch len(publishers) {
	case 0:
		return NopPublisher{}
	case 1:
		return publishers[0]
	}
	return fanout(publishers)
}

// PublishRun publishes to every publisher and joins their errors
func (f fanout) PublishRun(ctx context.Context, summary *domain.RunSummary) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishRun(ctx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher
func (f fanout) Close() {
	for _, p := range f {
		p.Close()
	}
}
