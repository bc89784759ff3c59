package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sparkify/datalake-etl/internal/dataset"
	"github.com/sparkify/datalake-etl/internal/domain"
	"github.com/sparkify/datalake-etl/internal/logger"
	"github.com/sparkify/datalake-etl/internal/session"
)

// orderedEvent is a song play event with its position among the filtered events
type orderedEvent struct {
	Ordinal int
	Event   domain.LogEvent
}

// ProcessLogData builds the users, time and songplays tables from the activity log
// under inputRoot. The songs table is read back from outputRoot, so ProcessSongData
// must have completed first.
func (p *Pipeline) ProcessLogData(ctx context.Context, inputRoot, outputRoot string) (*EventResult, error) {
	result := &EventResult{}

	ids, err := NewIDGenerator(p.cfg.IDStrategy)
	if err != nil {
		return nil, err
	}

	source, err := resolve(inputRoot, p.cfg.LogDataPattern)
	if err != nil {
		return nil, err
	}

	logger.Info("Loading log data", zap.String("source", source))
	events, readStats, err := session.ReadJSON[domain.LogEvent](ctx, p.session, source)
	if err != nil {
		return nil, fmt.Errorf("failed to load log data: %w", err)
	}
	result.Read = readStats

	plays, err := dataset.Distinct(dataset.Filter(events, func(e domain.LogEvent) bool {
		return e.Page == p.cfg.SongPlayPage
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to deduplicate song plays: %w", err)
	}
	logger.Info("Loaded log data",
		zap.Int("files", readStats.Files),
		zap.Int("records", readStats.Records),
		zap.Int("malformed", readStats.Malformed),
		zap.String("page", p.cfg.SongPlayPage),
		zap.Int("songPlays", len(plays)))

	users, err := dataset.Distinct(dataset.Map(plays, userFromEvent))
	if err != nil {
		return nil, fmt.Errorf("failed to build users table: %w", err)
	}
	result.Users, err = writeTable(ctx, p, outputRoot, domain.TableUsers, users, session.WriteOptions[domain.User]{})
	if err != nil {
		return nil, err
	}

	buckets := p.timeBuckets(plays)
	result.Time, err = writeTable(ctx, p, outputRoot, domain.TableTime, buckets, session.WriteOptions[domain.TimeBucket]{
		PartitionBy: partitionTime,
	})
	if err != nil {
		return nil, err
	}

	songsSource, err := resolve(outputRoot, domain.TableSongs)
	if err != nil {
		return nil, err
	}
	songs, err := session.ReadParquet[domain.Song](ctx, p.session, songsSource)
	if err != nil {
		return nil, fmt.Errorf("failed to read back songs table: %w", err)
	}

	ordered := make([]orderedEvent, len(plays))
	for i, e := range plays {
		ordered[i] = orderedEvent{Ordinal: i, Event: e}
	}

	joined, joinStats := dataset.InnerJoin(ordered, songs, eventSongKey, songTitleKey)
	result.Join = joinStats
	logger.Info("Joined song plays to songs",
		zap.Int("events", joinStats.LeftRows),
		zap.Int("matched", joinStats.Matched),
		zap.Int("unmatched", joinStats.Unmatched),
		zap.Int("missingSong", joinStats.MissingKey),
		zap.Int("rows", joinStats.OutputRows))
	if joinStats.AmbiguousKeys > 0 {
		logger.Warn("Song titles matched more than one song",
			zap.Int("titles", joinStats.AmbiguousKeys),
			zap.Int("rows", joinStats.OutputRows))
	}

	songPlays := make([]domain.SongPlay, 0, len(joined))
	for _, pair := range joined {
		id, err := ids.Next(pair.Left.Ordinal, pair.Left.Event, pair.Right)
		if err != nil {
			return nil, fmt.Errorf("failed to assign songplay id: %w", err)
		}
		songPlays = append(songPlays, songPlayFromPair(id, pair))
	}

	result.SongPlays, err = writeTable(ctx, p, outputRoot, domain.TableSongPlays, songPlays, session.WriteOptions[domain.SongPlay]{
		PartitionBy: p.partitionSongPlay,
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// timeBuckets derives one calendar row per distinct start time, in first-seen order
func (p *Pipeline) timeBuckets(plays []domain.LogEvent) []domain.TimeBucket {
	distinct := dataset.DistinctBy(plays, func(e domain.LogEvent) int64 {
		return e.StartTime().Unix()
	})
	return dataset.Map(distinct, func(e domain.LogEvent) domain.TimeBucket {
		return domain.NewTimeBucket(e.StartTime(), p.cfg.Location)
	})
}

func userFromEvent(e domain.LogEvent) domain.User {
	return domain.User{
		UserID:    e.UserID,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Gender:    e.Gender,
		Level:     e.Level,
	}
}

func eventSongKey(e orderedEvent) (string, bool) {
	if e.Event.Song == nil {
		return "", false
	}
	return *e.Event.Song, true
}

func songTitleKey(s domain.Song) (string, bool) {
	return s.Title, true
}

func songPlayFromPair(id int64, pair dataset.Pair[orderedEvent, domain.Song]) domain.SongPlay {
	e := pair.Left.Event
	return domain.SongPlay{
		SongplayID: id,
		StartTime:  e.StartTime(),
		UserID:     e.UserID,
		Level:      e.Level,
		SongID:     pair.Right.SongID,
		ArtistID:   pair.Right.ArtistID,
		SessionID:  e.SessionID,
		Location:   e.Location,
		UserAgent:  e.UserAgent,
	}
}

func partitionTime(t domain.TimeBucket) []session.Partition {
	return []session.Partition{yearPartition(t.Year), monthPartition(t.Month)}
}

// partitionSongPlay uses the same calendar location as the time table
func (p *Pipeline) partitionSongPlay(s domain.SongPlay) []session.Partition {
	t := s.StartTime.In(p.cfg.Location)
	return []session.Partition{yearPartition(t.Year()), monthPartition(int(t.Month()))}
}
