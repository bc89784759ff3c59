package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sparkify/datalake-etl/internal/domain"
	"github.com/sparkify/datalake-etl/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL run ledger
func NewPGStore(db *gorm.DB) RunStore {
	return &pgStore{db: db}
}

// Migrate creates or updates the ledger tables
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&schema.EtlRun{}); err != nil {
		return fmt.Errorf("failed to migrate run ledger: %w", err)
	}
	return nil
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// If any of the pool settings are 0, reasonable defaults are used:
//   - MaxOpenConns: 4 (if 0)
//   - MaxIdleConns: 2 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
// A batch run touches the ledger twice, so the defaults are small.
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns <= 0 {
		maxOpenConns = 4
	}
	if maxIdleConns <= 0 {
		maxIdleConns = 2
	}
	if connMaxLifetime <= 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime <= 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// runStats is the JSON document kept in etl_runs.stats
type runStats struct {
	Inputs       map[string]domain.ReadStats  `json:"inputs"`
	Tables       map[string]domain.WriteStats `json:"tables"`
	SongPlayJoin domain.JoinStats             `json:"songplay_join"`
}

// CreateRun records a run that has started
func (s *pgStore) CreateRun(ctx context.Context, summary *domain.RunSummary) error {
	row, err := toSchema(summary)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun records the final status and statistics of a run
func (s *pgStore) FinishRun(ctx context.Context, summary *domain.RunSummary) error {
	row, err := toSchema(summary)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Model(&schema.EtlRun{}).
		Where("run_id = ?", summary.RunID).
		Updates(map[string]interface{}{
			"status":      row.Status,
			"finished_at": row.FinishedAt,
			"stats":       row.Stats,
			"error":       row.Error,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to finish run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrRunNotFound, summary.RunID)
	}
	return nil
}

// GetRun retrieves a run by its ID
func (s *pgStore) GetRun(ctx context.Context, runID string) (*domain.RunSummary, error) {
	var row schema.EtlRun
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return fromSchema(&row)
}

// GetLatestRun retrieves the most recently started run with the given status
func (s *pgStore) GetLatestRun(ctx context.Context, status domain.RunStatus) (*domain.RunSummary, error) {
	var row schema.EtlRun
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("started_at DESC").
		Order("run_id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no %s run", domain.ErrRunNotFound, status)
		}
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return fromSchema(&row)
}

// ListRuns retrieves the most recently started runs, newest first
func (s *pgStore) ListRuns(ctx context.Context, limit int) ([]*domain.RunSummary, error) {
	var rows []schema.EtlRun
	query := s.db.WithContext(ctx).Order("started_at DESC").Order("run_id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	summaries := make([]*domain.RunSummary, 0, len(rows))
	for i := range rows {
		summary, err := fromSchema(&rows[i])
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func toSchema(summary *domain.RunSummary) (*schema.EtlRun, error) {
	stats, err := json.Marshal(runStats{
		Inputs:       summary.Inputs,
		Tables:       summary.Tables,
		SongPlayJoin: summary.SongPlayJoin,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run stats: %w", err)
	}

	row := &schema.EtlRun{
		RunID:      summary.RunID,
		Status:     summary.Status,
		InputRoot:  summary.InputRoot,
		OutputRoot: summary.OutputRoot,
		StartedAt:  summary.StartedAt.UTC(),
		Stats:      datatypes.JSON(stats),
	}
	if !summary.FinishedAt.IsZero() {
		finishedAt := summary.FinishedAt.UTC()
		row.FinishedAt = &finishedAt
	}
	if summary.Error != "" {
		row.Error = &summary.Error
	}
	return row, nil
}

func fromSchema(row *schema.EtlRun) (*domain.RunSummary, error) {
	summary := domain.NewRunSummary(row.RunID, row.InputRoot, row.OutputRoot, row.StartedAt.UTC())
	summary.Status = row.Status
	if row.FinishedAt != nil {
		summary.FinishedAt = row.FinishedAt.UTC()
	}
	if row.Error != nil {
		summary.Error = *row.Error
	}

	if len(row.Stats) > 0 {
		var stats runStats
		if err := json.Unmarshal(row.Stats, &stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run stats: %w", err)
		}
		if stats.Inputs != nil {
			summary.Inputs = stats.Inputs
		}
		if stats.Tables != nil {
			summary.Tables = stats.Tables
		}
		summary.SongPlayJoin = stats.SongPlayJoin
	}
	return summary, nil
}
