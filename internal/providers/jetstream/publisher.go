package jetstream

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/sparkify/datalake-etl/internal/adapter"
	"github.com/sparkify/datalake-etl/internal/domain"
	"github.com/sparkify/datalake-etl/internal/logger"
	"github.com/sparkify/datalake-etl/internal/messaging"
)

// DefaultSubjectPrefix is the subject prefix used when none is configured
const DefaultSubjectPrefix = "datalake.runs"

// Config holds the configuration for NATS JetStream connection
type Config struct {
	URL            string
	SubjectPrefix  string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
}

type publisher struct {
	nc            adapter.NatsConn
	js            adapter.JetStream
	subjectPrefix string
	json          adapter.JSON
}

// NewPublisher creates a new NATS JetStream publisher
func NewPublisher(cfg Config, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON) (messaging.Publisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}
	logger.Info("Connected to NATS", zap.String("url", nc.ConnectedUrl()))

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	return &publisher{
		nc:            nc,
		js:            js,
		subjectPrefix: prefix,
		json:          jsonAdapter,
	}, nil
}

// PublishRun publishes a run summary to NATS JetStream.
// The run ID doubles as the message ID so a retried publish is deduplicated by the stream.
func (p *publisher) PublishRun(ctx context.Context, summary *domain.RunSummary) error {
	data, err := p.json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	subject := p.buildSubject(summary)
	logger.Debug("Publishing run summary", zap.String("subject", subject), zap.String("runID", summary.RunID))

	_, err = p.js.Publish(ctx, subject, data, jetstream.WithMsgID(summary.RunID))
	if err != nil {
		return fmt.Errorf("failed to publish run summary: %w", err)
	}

	return nil
}

// buildSubject constructs the NATS subject based on the run status
func (p *publisher) buildSubject(summary *domain.RunSummary) string {
	// Format: {prefix}.{outcome}
	// e.g., datalake.runs.completed, datalake.runs.failed
	outcome := "completed"
	if summary.Status == domain.RunStatusFailed {
		outcome = "failed"
	}

	return fmt.Sprintf("%s.%s", p.subjectPrefix, outcome)
}

// Close closes the NATS connection
func (p *publisher) Close() {
	if p.nc == nil {
		return
	}

	p.nc.Close()
}
