package dataset

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Filter returns the rows for which keep returns true, in input order
func Filter[T any](rows []T, keep func(T) bool) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if keep(row) {
			out = append(out, row)
		}
	}
	return out
}

// Map projects every row, in input order
func Map[T, R any](rows []T, fn func(T) R) []R {
	out := make([]R, len(rows))
	for i, row := range rows {
		out[i] = fn(row)
	}
	return out
}

// CanonicalKey returns the RFC 8785 canonical JSON form of a row.
// Two rows share a key exactly when every field holds the same value, nulls included.
func CanonicalKey(row any) (string, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("failed to marshal row: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize row: %w", err)
	}
	return string(canonical), nil
}

// Distinct drops exact duplicate rows, keeping the first occurrence of each
func Distinct[T any](rows []T) ([]T, error) {
	seen := make(map[string]struct{}, len(rows))
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		key, err := CanonicalKey(row)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out, nil
}

// DistinctBy keeps the first row for every key
func DistinctBy[T any, K comparable](rows []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(rows))
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		k := key(row)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}
	return out
}
