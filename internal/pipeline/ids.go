package pipeline

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/sparkify/datalake-etl/internal/dataset"
	"github.com/sparkify/datalake-etl/internal/domain"
)

// Songplay identifier strategies
const (
	IDStrategySequence    = "sequence"
	IDStrategyContentHash = "content_hash"
)

var (
	// ErrUnknownIDStrategy is returned for an unrecognised songplay identifier strategy
	ErrUnknownIDStrategy = errors.New("unknown songplay id strategy")
	// ErrDuplicateSongplayID is returned when two events would share an identifier
	ErrDuplicateSongplayID = errors.New("duplicate songplay id")
)

var songplayNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("sparkify.datalake.songplays"))

// IDGenerator assigns songplay identifiers to joined rows. Rows are passed in
// output order together with the ordinal of their event among the filtered events,
// so an event that matched nothing leaves a gap and an event that matched several
// songs receives one identifier per row.
type IDGenerator interface {
	Next(ordinal int, event domain.LogEvent, song domain.Song) (int64, error)
}

// NewIDGenerator creates a generator for the named strategy. An empty name selects sequence.
func NewIDGenerator(strategy string) (IDGenerator, error) {
	switch strategy {
	case "", IDStrategySequence:
		return &sequenceGenerator{last: -1}, nil
	case IDStrategyContentHash:
		return &contentHashGenerator{seen: make(map[int64]struct{})}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIDStrategy, strategy)
	}
}

// sequenceGenerator hands out increasing identifiers in row order, skipping one
// value for every event between two rows that produced no row
type sequenceGenerator struct {
	next int64
	last int
}

func (g *sequenceGenerator) Next(ordinal int, _ domain.LogEvent, _ domain.Song) (int64, error) {
	if ordinal < g.last {
		return 0, fmt.Errorf("event ordinal %d after %d", ordinal, g.last)
	}
	if ordinal > g.last {
		g.next += int64(ordinal - g.last - 1)
		g.last = ordinal
	}
	id := g.next
	g.next++
	return id, nil
}

// contentHashGenerator derives a non-negative identifier from the event and song
// content, so a rerun over the same input produces the same identifiers
type contentHashGenerator struct {
	seen map[int64]struct{}
}

type songPlayContent struct {
	Event domain.LogEvent `json:"event"`
	Song  domain.Song     `json:"song"`
}

func (g *contentHashGenerator) Next(_ int, event domain.LogEvent, song domain.Song) (int64, error) {
	key, err := dataset.CanonicalKey(songPlayContent{Event: event, Song: song})
	if err != nil {
		return 0, err
	}
	u := uuid.NewSHA1(songplayNamespace, []byte(key))
	id := int64(binary.BigEndian.Uint64(u[:8]) & math.MaxInt64)

	if _, ok := g.seen[id]; ok {
		return 0, fmt.Errorf("%w: %d", ErrDuplicateSongplayID, id)
	}
	g.seen[id] = struct{}{}
	return id, nil
}
