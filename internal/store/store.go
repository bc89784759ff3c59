package store

import (
	"context"

	"github.com/sparkify/datalake-etl/internal/domain"
)

// RunStore defines the interface for the run ledger
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=RunStore=MockRunStore
type RunStore interface {
	// CreateRun records a run that has started
	CreateRun(ctx context.Context, summary *domain.RunSummary) error
	// FinishRun records the final status and statistics of a run
	FinishRun(ctx context.Context, summary *domain.RunSummary) error
	// GetRun retrieves a run by its ID, returning domain.ErrRunNotFound when absent
	GetRun(ctx context.Context, runID string) (*domain.RunSummary, error)
	// GetLatestRun retrieves the most recently started run with the given status
	GetLatestRun(ctx context.Context, status domain.RunStatus) (*domain.RunSummary, error)
	// ListRuns retrieves the most recently started runs, newest first
	ListRuns(ctx context.Context, limit int) ([]*domain.RunSummary, error)
}
