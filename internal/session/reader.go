package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alitto/pond/v2"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/sparkify/datalake-etl/internal/adapter"
	"github.com/sparkify/datalake-etl/internal/domain"
	"github.com/sparkify/datalake-etl/internal/logger"
	"github.com/sparkify/datalake-etl/internal/objectstore"
)

type fileResult[T any] struct {
	rows      []T
	malformed int
	skipped   bool
}

// ReadJSON loads every line-delimited JSON object under the objects matched by pattern.
// The reader is permissive: lines that are not JSON objects of the expected shape are
// counted as malformed and skipped, non-text objects are skipped whole. Rows keep the
// order of the sorted object keys and of the lines within each object.
func ReadJSON[T any](ctx context.Context, s *Session, pattern string) ([]T, domain.ReadStats, error) {
	stats := domain.ReadStats{Pattern: pattern}

	loc, err := objectstore.Parse(pattern)
	if err != nil {
		return nil, stats, err
	}
	store, err := s.Store(ctx, loc)
	if err != nil {
		return nil, stats, err
	}
	pat, err := objectstore.CompilePattern(loc.Path)
	if err != nil {
		return nil, stats, err
	}

	prefix := pat.StaticPrefix()
	listed, err := store.List(ctx, loc.Bucket, prefix)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to list %s: %w", pattern, err)
	}

	// hidden segments are judged below the last complete directory of the prefix
	base := prefix[:strings.LastIndex(prefix, "/")+1]

	var objects []objectstore.Object
	for _, obj := range listed {
		if objectstore.IsHidden(obj.Key, base) || !pat.Match(obj.Key) {
			continue
		}
		objects = append(objects, obj)
	}
	if len(objects) == 0 {
		return nil, stats, fmt.Errorf("%w: %s", ErrNoInputFiles, pattern)
	}

	logger.Debug("Reading input objects", zap.String("pattern", pattern), zap.Int("objects", len(objects)))

	pool := pond.NewResultPool[*fileResult[T]](s.cfg.ReaderConcurrency, pond.WithContext(ctx))
	defer pool.StopAndWait()

	tasks := make([]pond.Result[*fileResult[T]], 0, len(objects))
	for _, obj := range objects {
		key := obj.Key
		tasks = append(tasks, pool.SubmitErr(func() (*fileResult[T], error) {
			data, err := store.Get(ctx, loc.Bucket, key)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", loc.Key(key), err)
			}
			if !isText(data) {
				logger.Warn("Skipping non-text input object", zap.String("key", key))
				return &fileResult[T]{skipped: true}, nil
			}
			rows, malformed := decodeLines[T](data, s.factories.JSON, s.cfg.ReaderMaxLineBytes)
			return &fileResult[T]{rows: rows, malformed: malformed}, nil
		}))
	}

	var rows []T
	for _, task := range tasks {
		result, err := task.Wait()
		if err != nil {
			return nil, stats, err
		}
		if result.skipped {
			stats.SkippedFiles++
			continue
		}
		stats.Files++
		stats.Malformed += result.malformed
		rows = append(rows, result.rows...)
	}
	stats.Records = len(rows)

	if stats.Malformed > 0 {
		logger.Warn("Skipped malformed input lines",
			zap.String("pattern", pattern),
			zap.Int("malformed", stats.Malformed))
	}
	return rows, stats, nil
}

// decodeLines decodes one JSON object per line. Blank lines are ignored, anything
// else that does not decode into T counts as malformed.
func decodeLines[T any](data []byte, codec adapter.JSON, maxLineBytes int) ([]T, int) {
	var (
		rows      []T
		malformed int
	)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, min(64*1024, maxLineBytes)), maxLineBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if line[0] != '{' {
			malformed++
			continue
		}
		var row T
		if err := codec.Unmarshal(line, &row); err != nil {
			malformed++
			continue
		}
		rows = append(rows, row)
	}
	// an oversized line ends the object
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			malformed++
		}
	}
	return rows, malformed
}

func isText(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
