package session

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"go.uber.org/zap"

	"github.com/sparkify/datalake-etl/internal/domain"
	"github.com/sparkify/datalake-etl/internal/logger"
	"github.com/sparkify/datalake-etl/internal/objectstore"
)

// SuccessMarker is written after every file of a table has been written
const SuccessMarker = "_SUCCESS"

// Compression codecs
const (
	CompressionSnappy = "snappy"
	CompressionZstd   = "zstd"
	CompressionGzip   = "gzip"
	CompressionNone   = "none"
)

// Partition is one column=value directory level of a partitioned table
type Partition struct {
	Column string
	Value  string
}

// WriteOptions controls the layout of a written table
type WriteOptions[T any] struct {
	// PartitionBy returns the partition directories of a row. Nil writes an unpartitioned table.
	PartitionBy func(row T) []Partition
}

type partitionGroup[T any] struct {
	dir  string
	rows []T
}

// WriteParquet persists rows as a parquet table at dest, replacing whatever was there.
// A failed write leaves partial output behind.
func WriteParquet[T any](ctx context.Context, s *Session, rows []T, dest string, opts WriteOptions[T]) (domain.WriteStats, error) {
	stats := domain.WriteStats{Location: dest}

	loc, err := objectstore.Parse(dest)
	if err != nil {
		return stats, err
	}
	prefix := loc.DirPrefix()
	if strings.Trim(prefix, "/") == "" {
		return stats, fmt.Errorf("%w: %s", ErrUnsafeDestination, dest)
	}
	store, err := s.Store(ctx, loc)
	if err != nil {
		return stats, err
	}

	codec, ext, err := compressionCodec(s.cfg.Compression)
	if err != nil {
		return stats, err
	}

	if err := store.DeletePrefix(ctx, loc.Bucket, prefix); err != nil {
		return stats, fmt.Errorf("failed to clear %s: %w", dest, err)
	}

	part := 0
	for _, group := range partitionRows(rows, opts.PartitionBy) {
		for _, chunk := range chunkRows(group.rows, s.cfg.MaxRowsPerFile) {
			var buf bytes.Buffer
			if err := parquet.Write(&buf, chunk, parquet.Compression(codec)); err != nil {
				return stats, fmt.Errorf("failed to encode %s: %w", dest, err)
			}

			name := fmt.Sprintf("part-%05d-%s%s.parquet", part, s.cfg.RunID, ext)
			key := path.Join(prefix, group.dir, name)
			if err := store.Put(ctx, loc.Bucket, key, buf.Bytes(), objectstore.ContentTypeParquet); err != nil {
				return stats, fmt.Errorf("failed to write %s: %w", loc.Key(key), err)
			}

			part++
			stats.Files++
			stats.Bytes += int64(buf.Len())
		}
	}

	if err := store.Put(ctx, loc.Bucket, prefix+SuccessMarker, nil, objectstore.ContentTypeText); err != nil {
		return stats, fmt.Errorf("failed to write %s marker for %s: %w", SuccessMarker, dest, err)
	}

	stats.Rows = len(rows)
	logger.Debug("Wrote table",
		zap.String("location", dest),
		zap.Int("rows", stats.Rows),
		zap.Int("files", stats.Files),
		zap.Int64("bytes", stats.Bytes))
	return stats, nil
}

// ReadParquet loads every parquet file of a table written by WriteParquet
func ReadParquet[T any](ctx context.Context, s *Session, src string) ([]T, error) {
	loc, err := objectstore.Parse(src)
	if err != nil {
		return nil, err
	}
	store, err := s.Store(ctx, loc)
	if err != nil {
		return nil, err
	}

	dir := loc.DirPrefix()
	listed, err := store.List(ctx, loc.Bucket, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", src, err)
	}

	var (
		rows  []T
		files int
	)
	for _, obj := range listed {
		if objectstore.IsHidden(obj.Key, dir) || !strings.HasSuffix(obj.Key, ".parquet") {
			continue
		}
		data, err := store.Get(ctx, loc.Bucket, obj.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", loc.Key(obj.Key), err)
		}
		fileRows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", loc.Key(obj.Key), err)
		}
		rows = append(rows, fileRows...)
		files++
	}
	if files == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoInputFiles, src)
	}
	return rows, nil
}

// partitionRows groups rows by partition directory, keeping first-seen directory order.
// An empty input still yields one group so the table gets a schema-only file.
func partitionRows[T any](rows []T, partitionBy func(T) []Partition) []partitionGroup[T] {
	if partitionBy == nil || len(rows) == 0 {
		return []partitionGroup[T]{{rows: rows}}
	}

	index := make(map[string]int)
	var groups []partitionGroup[T]
	for _, row := range rows {
		dir := partitionDir(partitionBy(row))
		i, ok := index[dir]
		if !ok {
			i = len(groups)
			index[dir] = i
			groups = append(groups, partitionGroup[T]{dir: dir})
		}
		groups[i].rows = append(groups[i].rows, row)
	}
	return groups
}

func partitionDir(partitions []Partition) string {
	parts := make([]string, 0, len(partitions))
	for _, p := range partitions {
		parts = append(parts, p.Column+"="+url.PathEscape(p.Value))
	}
	return path.Join(parts...)
}

func chunkRows[T any](rows []T, size int) [][]T {
	if len(rows) <= size {
		return [][]T{rows}
	}
	chunks := make([][]T, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

func compressionCodec(name string) (compress.Codec, string, error) {
	switch strings.ToLower(name) {
	case "", CompressionSnappy:
		return &parquet.Snappy, ".snappy", nil
	case CompressionZstd:
		return &parquet.Zstd, ".zstd", nil
	case CompressionGzip:
		return &parquet.Gzip, ".gz", nil
	case CompressionNone:
		return &parquet.Uncompressed, "", nil
	default:
		return nil, "", fmt.Errorf("unsupported compression codec %q", name)
	}
}
