package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sparkify/datalake-etl/internal/domain"
)

// setupTestDB opens a fresh migrated ledger database for a test
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "ledger.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newSummary(runID string, startedAt time.Time) *domain.RunSummary {
	return domain.NewRunSummary(runID, "s3a://udacity-dend/", "s3a://sparkify-data-lake-dend/", startedAt)
}

func TestPGStore_CreateAndFinishRun(t *testing.T) {
	ctx := context.Background()
	runStore := NewPGStore(setupTestDB(t))

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	summary := newSummary("01JRUN0000000000000000000A", started)
	require.NoError(t, runStore.CreateRun(ctx, summary))

	got, err := runStore.GetRun(ctx, summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, got.Status)
	assert.True(t, got.FinishedAt.IsZero())
	assert.Empty(t, got.Tables)

	summary.Status = domain.RunStatusSucceeded
	summary.FinishedAt = started.Add(2 * time.Minute)
	summary.Inputs[domain.DatasetSongData] = domain.ReadStats{Pattern: "s3a://udacity-dend/song_data/*/*/*", Files: 3, Records: 3}
	summary.Tables[domain.TableSongs] = domain.WriteStats{Location: "s3a://sparkify-data-lake-dend/songs", Rows: 3, Files: 1, Bytes: 2048}
	summary.SongPlayJoin = domain.JoinStats{LeftRows: 5, Matched: 1, Unmatched: 4, OutputRows: 1}
	require.NoError(t, runStore.FinishRun(ctx, summary))

	got, err = runStore.GetRun(ctx, summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, got.Status)
	assert.True(t, summary.FinishedAt.Equal(got.FinishedAt))
	assert.Equal(t, 2*time.Minute, got.Duration())
	assert.Equal(t, summary.Inputs, got.Inputs)
	assert.Equal(t, summary.Tables, got.Tables)
	assert.Equal(t, summary.SongPlayJoin, got.SongPlayJoin)
	assert.Empty(t, got.Error)
}

func TestPGStore_FailedRun(t *testing.T) {
	ctx := context.Background()
	runStore := NewPGStore(setupTestDB(t))

	summary := newSummary("01JRUN0000000000000000000B", time.Now().UTC())
	require.NoError(t, runStore.CreateRun(ctx, summary))

	summary.Status = domain.RunStatusFailed
	summary.FinishedAt = summary.StartedAt.Add(time.Second)
	summary.Error = "failed to load song data: path does not exist"
	require.NoError(t, runStore.FinishRun(ctx, summary))

	got, err := runStore.GetRun(ctx, summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, got.Status)
	assert.Equal(t, summary.Error, got.Error)
}

func TestPGStore_NotFound(t *testing.T) {
	ctx := context.Background()
	runStore := NewPGStore(setupTestDB(t))

	_, err := runStore.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	_, err = runStore.GetLatestRun(ctx, domain.RunStatusSucceeded)
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	err = runStore.FinishRun(ctx, newSummary("missing", time.Now()))
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestPGStore_LatestAndList(t *testing.T) {
	ctx := context.Background()
	runStore := NewPGStore(setupTestDB(t))

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	statuses := []domain.RunStatus{domain.RunStatusSucceeded, domain.RunStatusSucceeded, domain.RunStatusFailed}
	ids := []string{"01JRUN00000000000000000001", "01JRUN00000000000000000002", "01JRUN00000000000000000003"}
	for i, status := range statuses {
		summary := newSummary(ids[i], base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, runStore.CreateRun(ctx, summary))
		summary.Status = status
		summary.FinishedAt = summary.StartedAt.Add(time.Minute)
		require.NoError(t, runStore.FinishRun(ctx, summary))
	}

	latest, err := runStore.GetLatestRun(ctx, domain.RunStatusSucceeded)
	require.NoError(t, err)
	assert.Equal(t, ids[1], latest.RunID)

	runs, err := runStore.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].RunID)
	assert.Equal(t, ids[1], runs[1].RunID)

	all, err := runStore.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestNormalizeConnectionPoolSettings(t *testing.T) {
	tests := []struct {
		name                       string
		maxOpen, maxIdle           int
		lifetime, idleTime         time.Duration
		wantOpen, wantIdle         int
		wantLifetime, wantIdleTime time.Duration
	}{
		{
			name:         "defaults",
			wantOpen:     4,
			wantIdle:     2,
			wantLifetime: 5 * time.Minute,
			wantIdleTime: 10 * time.Minute,
		},
		{
			name:         "idle clamped to open",
			maxOpen:      1,
			maxIdle:      5,
			lifetime:     time.Minute,
			idleTime:     time.Second,
			wantOpen:     1,
			wantIdle:     1,
			wantLifetime: time.Minute,
			wantIdleTime: time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, idle, lifetime, idleTime := NormalizeConnectionPoolSettings(tt.maxOpen, tt.maxIdle, tt.lifetime, tt.idleTime)
			assert.Equal(t, tt.wantOpen, open)
			assert.Equal(t, tt.wantIdle, idle)
			assert.Equal(t, tt.wantLifetime, lifetime)
			assert.Equal(t, tt.wantIdleTime, idleTime)
		})
	}
}

func TestConfigureConnectionPool(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, ConfigureConnectionPool(db, 3, 1, time.Minute, time.Minute))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 3, sqlDB.Stats().MaxOpenConnections)
}
