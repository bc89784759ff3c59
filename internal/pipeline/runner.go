package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/sparkify/datalake-etl/internal/adapter"
	"github.com/sparkify/datalake-etl/internal/domain"
	"github.com/sparkify/datalake-etl/internal/logger"
	"github.com/sparkify/datalake-etl/internal/messaging"
	"github.com/sparkify/datalake-etl/internal/metrics"
	"github.com/sparkify/datalake-etl/internal/session"
	"github.com/sparkify/datalake-etl/internal/store"
)

// NewRunID returns a lexically sortable run identifier for a run starting at t
func NewRunID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

// ErrNoLedger is returned by ledger queries when no run ledger is configured
var ErrNoLedger = errors.New("run ledger is not configured")

// RunnerConfig holds the roots and transformation settings of a run
type RunnerConfig struct {
	InputRoot  string
	OutputRoot string
	Pipeline   Config
}

// Runner drives one full run: catalog stage, then event stage
type Runner struct {
	cfg       RunnerConfig
	provider  *session.Provider
	ledger    store.RunStore
	publisher messaging.Publisher
	clock     adapter.Clock
}

// NewRunner creates a runner. The ledger may be nil and the publisher defaults to a no-op.
func NewRunner(cfg RunnerConfig, provider *session.Provider, ledger store.RunStore, publisher messaging.Publisher, clock adapter.Clock) *Runner {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	if clock == nil {
		clock = adapter.NewClock()
	}
	return &Runner{
		cfg:       cfg,
		provider:  provider,
		ledger:    ledger,
		publisher: publisher,
		clock:     clock,
	}
}

// Run acquires the execution context and runs both stages. Any stage error aborts
// the run; the returned summary is populated either way once the context exists.
// Ledger and notification failures are logged and never fail the run.
func (r *Runner) Run(ctx context.Context) (*domain.RunSummary, error) {
	s, err := r.provider.Session(ctx)
	if err != nil {
		return nil, err
	}

	summary := domain.NewRunSummary(s.RunID(), r.cfg.InputRoot, r.cfg.OutputRoot, r.clock.Now())
	log := logger.With(zap.String("runID", summary.RunID))
	log.Info("Starting run",
		zap.String("inputRoot", r.cfg.InputRoot),
		zap.String("outputRoot", r.cfg.OutputRoot))

	if r.ledger != nil {
		r.logPreviousRun(ctx, log)
		if err := r.ledger.CreateRun(ctx, summary); err != nil {
			log.Warn("Failed to record run start", zap.Error(err))
		}
	}

	runErr := r.execute(ctx, s, summary)

	summary.FinishedAt = r.clock.Now()
	summary.Status = domain.RunStatusSucceeded
	if runErr != nil {
		summary.Status = domain.RunStatusFailed
		summary.Error = runErr.Error()
	}
	metrics.RecordRun(summary)

	if r.ledger != nil {
		// the run context may be canceled by now
		if err := r.ledger.FinishRun(context.WithoutCancel(ctx), summary); err != nil {
			log.Warn("Failed to record run result", zap.Error(err))
		}
	}
	if err := r.publisher.PublishRun(context.WithoutCancel(ctx), summary); err != nil {
		log.Warn("Failed to publish run result", zap.Error(err))
	}

	if runErr != nil {
		log.Error("Run failed", zap.Error(runErr), zap.Duration("duration", summary.Duration()))
		return summary, runErr
	}
	log.Info("Run finished", zap.Duration("duration", summary.Duration()))
	return summary, nil
}

// History returns the most recent runs recorded in the ledger, newest first
func (r *Runner) History(ctx context.Context, limit int) ([]*domain.RunSummary, error) {
	if r.ledger == nil {
		return nil, ErrNoLedger
	}
	runs, err := r.ledger.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

func (r *Runner) logPreviousRun(ctx context.Context, log *zap.Logger) {
	previous, err := r.ledger.GetLatestRun(ctx, domain.RunStatusSucceeded)
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		log.Info("No previous successful run")
	case err != nil:
		log.Warn("Failed to look up previous run", zap.Error(err))
	default:
		log.Info("Previous successful run",
			zap.String("previousRunID", previous.RunID),
			zap.Time("finishedAt", previous.FinishedAt),
			zap.Int("songPlays", previous.Tables[domain.TableSongPlays].Rows))
	}
}

func (r *Runner) execute(ctx context.Context, s *session.Session, summary *domain.RunSummary) error {
	p := New(s, r.cfg.Pipeline)

	catalog, err := p.ProcessSongData(ctx, r.cfg.InputRoot, r.cfg.OutputRoot)
	if err != nil {
		return err
	}
	summary.Inputs[domain.DatasetSongData] = catalog.Read
	summary.Tables[domain.TableSongs] = catalog.Songs
	summary.Tables[domain.TableArtists] = catalog.Artists
	metrics.RecordRead(domain.DatasetSongData, catalog.Read)
	metrics.RecordWrite(domain.TableSongs, catalog.Songs)
	metrics.RecordWrite(domain.TableArtists, catalog.Artists)

	events, err := p.ProcessLogData(ctx, r.cfg.InputRoot, r.cfg.OutputRoot)
	if err != nil {
		return err
	}
	summary.Inputs[domain.DatasetLogData] = events.Read
	summary.Tables[domain.TableUsers] = events.Users
	summary.Tables[domain.TableTime] = events.Time
	summary.Tables[domain.TableSongPlays] = events.SongPlays
	summary.SongPlayJoin = events.Join
	metrics.RecordRead(domain.DatasetLogData, events.Read)
	metrics.RecordWrite(domain.TableUsers, events.Users)
	metrics.RecordWrite(domain.TableTime, events.Time)
	metrics.RecordWrite(domain.TableSongPlays, events.SongPlays)
	metrics.RecordJoin(events.Join)

	return nil
}
