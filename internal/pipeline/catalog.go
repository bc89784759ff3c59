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

// ProcessSongData builds the songs and artists tables from the song catalog under
// inputRoot and writes them under outputRoot, replacing previous output.
func (p *Pipeline) ProcessSongData(ctx context.Context, inputRoot, outputRoot string) (*CatalogResult, error) {
	result := &CatalogResult{}

	source, err := resolve(inputRoot, p.cfg.SongDataPattern)
	if err != nil {
		return nil, err
	}

	logger.Info("Loading song data", zap.String("source", source))
	records, readStats, err := session.ReadJSON[domain.SongRecord](ctx, p.session, source)
	if err != nil {
		return nil, fmt.Errorf("failed to load song data: %w", err)
	}
	result.Read = readStats
	logger.Info("Loaded song data",
		zap.Int("files", readStats.Files),
		zap.Int("records", readStats.Records),
		zap.Int("malformed", readStats.Malformed))

	songs, err := dataset.Distinct(dataset.Map(records, songFromRecord))
	if err != nil {
		return nil, fmt.Errorf("failed to build songs table: %w", err)
	}
	result.Songs, err = writeTable(ctx, p, outputRoot, domain.TableSongs, songs, session.WriteOptions[domain.Song]{
		PartitionBy: partitionSong,
	})
	if err != nil {
		return nil, err
	}

	artists, err := dataset.Distinct(dataset.Map(records, artistFromRecord))
	if err != nil {
		return nil, fmt.Errorf("failed to build artists table: %w", err)
	}
	result.Artists, err = writeTable(ctx, p, outputRoot, domain.TableArtists, artists, session.WriteOptions[domain.Artist]{})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func songFromRecord(r domain.SongRecord) domain.Song {
	return domain.Song{
		SongID:   r.SongID,
		Title:    r.Title,
		ArtistID: r.ArtistID,
		Year:     r.Year,
		Duration: r.Duration,
	}
}

func artistFromRecord(r domain.SongRecord) domain.Artist {
	return domain.Artist{
		ArtistID:  r.ArtistID,
		Name:      r.ArtistName,
		Location:  r.ArtistLocation,
		Latitude:  r.ArtistLatitude,
		Longitude: r.ArtistLongitude,
	}
}

func partitionSong(s domain.Song) []session.Partition {
	return []session.Partition{yearPartition(s.Year), {Column: "artist_id", Value: s.ArtistID}}
}
