package dataset

import "github.com/sparkify/datalake-etl/internal/domain"

// Pair is one output row of a join
type Pair[L, R any] struct {
	Left  L
	Right R
}

// InnerJoin pairs every left row with every right row sharing its key.
// Rows whose key function reports no key never match, like SQL nulls.
// Output follows left order, then right order within a key.
func InnerJoin[L, R any, K comparable](left []L, right []R, leftKey func(L) (K, bool), rightKey func(R) (K, bool)) ([]Pair[L, R], domain.JoinStats) {
	index := make(map[K][]R)
	for _, r := range right {
		k, ok := rightKey(r)
		if !ok {
			continue
		}
		index[k] = append(index[k], r)
	}

	stats := domain.JoinStats{LeftRows: len(left)}
	ambiguous := make(map[K]struct{})

	var out []Pair[L, R]
	for _, l := range left {
		k, ok := leftKey(l)
		if !ok {
			stats.MissingKey++
			continue
		}
		matches := index[k]
		if len(matches) == 0 {
			stats.Unmatched++
			continue
		}
		stats.Matched++
		if len(matches) > 1 {
			ambiguous[k] = struct{}{}
		}
		for _, r := range matches {
			out = append(out, Pair[L, R]{Left: l, Right: r})
		}
	}

	stats.AmbiguousKeys = len(ambiguous)
	stats.OutputRows = len(out)
	return out, stats
}
