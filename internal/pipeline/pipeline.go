package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sparkify/datalake-etl/internal/domain"
	"github.com/sparkify/datalake-etl/internal/logger"
	"github.com/sparkify/datalake-etl/internal/objectstore"
	"github.com/sparkify/datalake-etl/internal/session"
)

// Default dataset patterns relative to the input root
const (
	DefaultSongDataPattern = domain.DatasetSongData + "/*/*/*"
	DefaultLogDataPattern  = domain.DatasetLogData + "/*/*"
)

// Config holds the transformation settings shared by both stages
type Config struct {
	SongDataPattern string
	LogDataPattern  string
	SongPlayPage    string
	Location        *time.Location
	IDStrategy      string
	Partitioned     bool
}

// Pipeline runs the catalog and event stages against one execution context
type Pipeline struct {
	session *session.Session
	cfg     Config
}

// New creates a pipeline, filling unset settings with defaults
func New(s *session.Session, cfg Config) *Pipeline {
	if cfg.SongDataPattern == "" {
		cfg.SongDataPattern = DefaultSongDataPattern
	}
	if cfg.LogDataPattern == "" {
		cfg.LogDataPattern = DefaultLogDataPattern
	}
	if cfg.SongPlayPage == "" {
		cfg.SongPlayPage = domain.SongPlayPage
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.IDStrategy == "" {
		cfg.IDStrategy = IDStrategySequence
	}
	return &Pipeline{session: s, cfg: cfg}
}

// CatalogResult is the outcome of ProcessSongData
type CatalogResult struct {
	Read    domain.ReadStats
	Songs   domain.WriteStats
	Artists domain.WriteStats
}

// EventResult is the outcome of ProcessLogData
type EventResult struct {
	Read      domain.ReadStats
	Users     domain.WriteStats
	Time      domain.WriteStats
	SongPlays domain.WriteStats
	Join      domain.JoinStats
}

func resolve(root, rel string) (string, error) {
	loc, err := objectstore.Parse(root)
	if err != nil {
		return "", err
	}
	return loc.Join(rel).String(), nil
}

func yearPartition(year int) session.Partition {
	return session.Partition{Column: "year", Value: strconv.Itoa(year)}
}

func monthPartition(month int) session.Partition {
	return session.Partition{Column: "month", Value: strconv.Itoa(month)}
}

// writeTable persists one table under the output root, replacing previous output.
// Partitioning applies only when the pipeline is configured for it.
func writeTable[T any](ctx context.Context, p *Pipeline, outputRoot, table string, rows []T, opts session.WriteOptions[T]) (domain.WriteStats, error) {
	dest, err := resolve(outputRoot, table)
	if err != nil {
		return domain.WriteStats{}, err
	}
	if !p.cfg.Partitioned {
		opts.PartitionBy = nil
	}

	stats, err := session.WriteParquet(ctx, p.session, rows, dest, opts)
	if err != nil {
		return stats, fmt.Errorf("failed to write %s table: %w", table, err)
	}

	logger.Info("Wrote table",
		zap.String("table", table),
		zap.String("location", dest),
		zap.Int("rows", stats.Rows),
		zap.Int("files", stats.Files))
	return stats, nil
}
