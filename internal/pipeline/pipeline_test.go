package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkify/datalake-etl/internal/domain"
	"github.com/sparkify/datalake-etl/internal/session"
)

func strPtr(s string) *string {
	return &s
}

func writeFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
}

// writeFixtures lays out a small copy of the song and log datasets under root
func writeFixtures(t *testing.T, root string) {
	t.Helper()

	writeFile(t, root+"/song_data/A/A/A/TRS1.json",
		`{"num_songs": 1, "artist_id": "A1", "artist_latitude": 40.7, "artist_longitude": -74.0, "artist_location": "New York", "artist_name": "Artist One", "song_id": "S1", "title": "Song One", "duration": 200.5, "year": 2000}`)
	// the same song listed twice in the catalog
	writeFile(t, root+"/song_data/A/A/B/TRS1-copy.json",
		`{"num_songs": 1, "artist_id": "A1", "artist_latitude": 40.7, "artist_longitude": -74.0, "artist_location": "New York", "artist_name": "Artist One", "song_id": "S1", "title": "Song One", "duration": 200.5, "year": 2000}`)
	writeFile(t, root+"/song_data/B/A/A/TRS2.json",
		`{"num_songs": 1, "artist_id": "A2", "artist_latitude": null, "artist_longitude": null, "artist_location": "", "artist_name": "Artist Two", "song_id": "S2", "title": "Song Two", "duration": 99.0, "year": 0}`,
		`this line is not json`)

	writeFile(t, root+"/log_data/2018/11/2018-11-15-events.json",
		`{"artist": "Artist One", "auth": "Logged In", "firstName": "Una", "gender": "F", "itemInSession": 0, "lastName": "One", "length": 200.5, "level": "free", "location": "NYC", "method": "PUT", "page": "NextSong", "registration": 1540919166796.0, "sessionId": 10, "song": "Song One", "status": 200, "ts": 1542242222796, "userAgent": "Mozilla/5.0", "userId": "U1"}`,
		`{"artist": "Artist One", "auth": "Logged In", "firstName": "Una", "gender": "F", "itemInSession": 0, "lastName": "One", "length": 200.5, "level": "free", "location": "NYC", "method": "PUT", "page": "NextSong", "registration": 1540919166796.0, "sessionId": 10, "song": "Song One", "status": 200, "ts": 1542242222796, "userAgent": "Mozilla/5.0", "userId": "U1"}`,
		`{"artist": null, "auth": "Logged In", "firstName": "Una", "gender": "F", "itemInSession": 1, "lastName": "One", "length": null, "level": "free", "location": "NYC", "method": "GET", "page": "Home", "registration": 1540919166796.0, "sessionId": 10, "song": null, "status": 200, "ts": 1542242223000, "userAgent": "Mozilla/5.0", "userId": "U1"}`,
		`{"artist": "Nobody", "auth": "Logged In", "firstName": "Dos", "gender": "M", "itemInSession": 0, "lastName": "Two", "length": 180.0, "level": "paid", "location": "Boston", "method": "PUT", "page": "NextSong", "registration": 1540919166796.0, "sessionId": 20, "song": "Unknown Song", "status": 200, "ts": 1542242220000, "userAgent": "curl", "userId": "U2"}`,
	)
	writeFile(t, root+"/log_data/2018/11/2018-11-16-events.json",
		`{"artist": null, "auth": "Logged In", "firstName": "Dos", "gender": "M", "itemInSession": 1, "lastName": "Two", "length": null, "level": "paid", "location": "Boston", "method": "PUT", "page": "NextSong", "registration": 1540919166796.0, "sessionId": 20, "song": null, "status": 200, "ts": 1542326400000, "userAgent": "curl", "userId": "U2"}`,
		`{"artist": "Artist Two", "auth": "Logged In", "firstName": "Una", "gender": "F", "itemInSession": 2, "lastName": "One", "length": 99.0, "level": "free", "location": "NYC", "method": "PUT", "page": "NextSong", "registration": 1540919166796.0, "sessionId": 11, "song": "Song Two", "status": 200, "ts": 1542326401999, "userAgent": "Mozilla/5.0", "userId": "U1"}`,
	)
}

func setupPipeline(t *testing.T, cfg Config) (*Pipeline, *session.Session, string, string) {
	t.Helper()
	input := filepath.ToSlash(t.TempDir())
	output := filepath.ToSlash(t.TempDir())
	writeFixtures(t, input)

	s, err := session.NewProvider(session.Config{RunID: "test"}, session.DefaultFactories()).Session(context.Background())
	require.NoError(t, err)
	return New(s, cfg), s, input, output
}

func TestProcessSongData(t *testing.T) {
	ctx := context.Background()
	p, s, input, output := setupPipeline(t, Config{})

	result, err := p.ProcessSongData(ctx, input, output)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Read.Files)
	assert.Equal(t, 3, result.Read.Records)
	assert.Equal(t, 1, result.Read.Malformed)
	assert.Equal(t, 2, result.Songs.Rows)
	assert.Equal(t, 2, result.Artists.Rows)

	songs, err := session.ReadParquet[domain.Song](ctx, s, output+"/songs")
	require.NoError(t, err)
	assert.Equal(t, []domain.Song{
		{SongID: "S1", Title: "Song One", ArtistID: "A1", Year: 2000, Duration: 200.5},
		{SongID: "S2", Title: "Song Two", ArtistID: "A2", Year: 0, Duration: 99},
	}, songs)

	artists, err := session.ReadParquet[domain.Artist](ctx, s, output+"/artists")
	require.NoError(t, err)
	require.Len(t, artists, 2)
	assert.Equal(t, "A1", artists[0].ArtistID)
	assert.Equal(t, "Artist One", artists[0].Name)
	assert.Equal(t, "New York", *artists[0].Location)
	assert.InDelta(t, 40.7, *artists[0].Latitude, 1e-9)
	assert.Nil(t, artists[1].Latitude)
	assert.Equal(t, "", *artists[1].Location)
}

func TestProcessSongData_MissingInput(t *testing.T) {
	p, _, _, output := setupPipeline(t, Config{})

	_, err := p.ProcessSongData(context.Background(), filepath.ToSlash(t.TempDir()), output)
	assert.ErrorIs(t, err, session.ErrNoInputFiles)
}

func TestProcessLogData(t *testing.T) {
	ctx := context.Background()
	p, s, input, output := setupPipeline(t, Config{})

	_, err := p.ProcessSongData(ctx, input, output)
	require.NoError(t, err)

	result, err := p.ProcessLogData(ctx, input, output)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Read.Files)
	assert.Equal(t, 6, result.Read.Records)
	assert.Equal(t, domain.JoinStats{
		LeftRows:   4,
		MissingKey: 1,
		Matched:    2,
		Unmatched:  1,
		OutputRows: 2,
	}, result.Join)

	users, err := session.ReadParquet[domain.User](ctx, s, output+"/users")
	require.NoError(t, err)
	assert.Equal(t, []domain.User{
		{UserID: "U1", FirstName: strPtr("Una"), LastName: strPtr("One"), Gender: strPtr("F"), Level: "free"},
		{UserID: "U2", FirstName: strPtr("Dos"), LastName: strPtr("Two"), Gender: strPtr("M"), Level: "paid"},
	}, users)

	buckets, err := session.ReadParquet[domain.TimeBucket](ctx, s, output+"/time")
	require.NoError(t, err)
	// the Home event is filtered out before time buckets are derived
	require.Len(t, buckets, 4)
	first := buckets[0]
	assert.True(t, time.Date(2018, 11, 15, 0, 37, 2, 0, time.UTC).Equal(first.StartTime))
	assert.Equal(t, 0, first.Hour)
	assert.Equal(t, 15, first.Day)
	assert.Equal(t, 46, first.Week)
	assert.Equal(t, 11, first.Month)
	assert.Equal(t, 2018, first.Year)
	assert.Equal(t, "Thu", first.Weekday)
	for _, b := range buckets {
		assert.Zero(t, b.StartTime.Nanosecond())
	}

	plays, err := session.ReadParquet[domain.SongPlay](ctx, s, output+"/songplays")
	require.NoError(t, err)
	require.Len(t, plays, 2)

	assert.Equal(t, int64(0), plays[0].SongplayID)
	assert.True(t, time.Date(2018, 11, 15, 0, 37, 2, 0, time.UTC).Equal(plays[0].StartTime))
	assert.Equal(t, "U1", plays[0].UserID)
	assert.Equal(t, "free", plays[0].Level)
	assert.Equal(t, "S1", plays[0].SongID)
	assert.Equal(t, "A1", plays[0].ArtistID)
	assert.Equal(t, int64(10), plays[0].SessionID)
	assert.Equal(t, "NYC", *plays[0].Location)
	assert.Equal(t, "Mozilla/5.0", *plays[0].UserAgent)

	// unmatched events still consume an identifier, so ids have gaps
	assert.Equal(t, int64(3), plays[1].SongplayID)
	assert.Equal(t, "S2", plays[1].SongID)
	assert.True(t, time.Date(2018, 11, 16, 0, 0, 1, 0, time.UTC).Equal(plays[1].StartTime))
}

func TestProcessLogData_SingleMatch(t *testing.T) {
	ctx := context.Background()
	input := filepath.ToSlash(t.TempDir())
	output := filepath.ToSlash(t.TempDir())

	writeFile(t, input+"/song_data/A/B/C/S1.json",
		`{"song_id": "S1", "title": "Song A", "artist_id": "C1", "artist_name": "Artist C", "year": 2000, "duration": 210}`)
	writeFile(t, input+"/log_data/1970/01/events.json",
		`{"userId": "U1", "firstName": "F", "lastName": "L", "gender": "F", "level": "free", "sessionId": 5, "page": "NextSong", "song": "Song A", "ts": 1000000, "location": "NYC", "userAgent": "UA"}`)

	s, err := session.NewProvider(session.Config{RunID: "single"}, session.DefaultFactories()).Session(ctx)
	require.NoError(t, err)
	p := New(s, Config{})

	_, err = p.ProcessSongData(ctx, input, output)
	require.NoError(t, err)
	_, err = p.ProcessLogData(ctx, input, output)
	require.NoError(t, err)

	plays, err := session.ReadParquet[domain.SongPlay](ctx, s, output+"/songplays")
	require.NoError(t, err)
	require.Len(t, plays, 1)
	assert.Equal(t, int64(0), plays[0].SongplayID)
	assert.Equal(t, "S1", plays[0].SongID)
	assert.Equal(t, "C1", plays[0].ArtistID)
	assert.Equal(t, "U1", plays[0].UserID)
	assert.Equal(t, "free", plays[0].Level)
	assert.Equal(t, int64(5), plays[0].SessionID)
	assert.Equal(t, "NYC", *plays[0].Location)
	assert.Equal(t, "UA", *plays[0].UserAgent)
	assert.Equal(t, "1970-01-01T00:16:40Z", plays[0].StartTime.UTC().Format(time.RFC3339))

	buckets, err := session.ReadParquet[domain.TimeBucket](ctx, s, output+"/time")
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, 0, buckets[0].Hour)
	assert.Equal(t, 1, buckets[0].Day)
	assert.Equal(t, 1970, buckets[0].Year)
	assert.Equal(t, 1, buckets[0].Month)
	assert.Equal(t, "Thu", buckets[0].Weekday)
}

func TestProcessLogData_SharedTitle(t *testing.T) {
	ctx := context.Background()
	input := filepath.ToSlash(t.TempDir())
	output := filepath.ToSlash(t.TempDir())

	writeFile(t, input+"/song_data/A/A/A/S1.json",
		`{"song_id": "S1", "title": "Home", "artist_id": "A1", "artist_name": "Artist One", "year": 2001, "duration": 180}`)
	writeFile(t, input+"/song_data/A/A/B/S2.json",
		`{"song_id": "S2", "title": "Home", "artist_id": "A2", "artist_name": "Artist Two", "year": 2005, "duration": 240}`)
	writeFile(t, input+"/log_data/2018/11/events.json",
		`{"userId": "U1", "level": "paid", "sessionId": 3, "page": "NextSong", "song": "Unknown", "ts": 1542242221000}`,
		`{"userId": "U1", "level": "paid", "sessionId": 3, "page": "NextSong", "song": "Home", "ts": 1542242222796}`,
		`{"userId": "U2", "level": "free", "sessionId": 4, "page": "NextSong", "song": "Home", "ts": 1542242225000}`)

	for _, strategy := range []string{IDStrategySequence, IDStrategyContentHash} {
		t.Run(strategy, func(t *testing.T) {
			s, err := session.NewProvider(session.Config{RunID: "shared"}, session.DefaultFactories()).Session(ctx)
			require.NoError(t, err)
			p := New(s, Config{IDStrategy: strategy})

			_, err = p.ProcessSongData(ctx, input, output)
			require.NoError(t, err)
			result, err := p.ProcessLogData(ctx, input, output)
			require.NoError(t, err)
			assert.Equal(t, 2, result.Join.Matched)
			assert.Equal(t, 1, result.Join.AmbiguousKeys)
			assert.Equal(t, 4, result.Join.OutputRows)

			plays, err := session.ReadParquet[domain.SongPlay](ctx, s, output+"/songplays")
			require.NoError(t, err)
			require.Len(t, plays, 4)

			seen := make(map[int64]struct{})
			var songs []string
			for _, play := range plays {
				seen[play.SongplayID] = struct{}{}
				songs = append(songs, play.UserID+"/"+play.SongID)
			}
			assert.Len(t, seen, 4)
			assert.ElementsMatch(t, []string{"U1/S1", "U1/S2", "U2/S1", "U2/S2"}, songs)

			if strategy == IDStrategySequence {
				// the unmatched first event keeps its slot
				var ids []int64
				for _, play := range plays {
					ids = append(ids, play.SongplayID)
				}
				assert.Equal(t, []int64{1, 2, 3, 4}, ids)
			}
		})
	}
}

func TestPipeline_RerunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p, s, input, output := setupPipeline(t, Config{})

	type snapshot struct {
		songs     []domain.Song
		artists   []domain.Artist
		users     []domain.User
		buckets   []domain.TimeBucket
		songPlays []domain.SongPlay
	}
	run := func() snapshot {
		_, err := p.ProcessSongData(ctx, input, output)
		require.NoError(t, err)
		_, err = p.ProcessLogData(ctx, input, output)
		require.NoError(t, err)

		var snap snapshot
		snap.songs, err = session.ReadParquet[domain.Song](ctx, s, output+"/songs")
		require.NoError(t, err)
		snap.artists, err = session.ReadParquet[domain.Artist](ctx, s, output+"/artists")
		require.NoError(t, err)
		snap.users, err = session.ReadParquet[domain.User](ctx, s, output+"/users")
		require.NoError(t, err)
		snap.buckets, err = session.ReadParquet[domain.TimeBucket](ctx, s, output+"/time")
		require.NoError(t, err)
		snap.songPlays, err = session.ReadParquet[domain.SongPlay](ctx, s, output+"/songplays")
		require.NoError(t, err)
		return snap
	}

	first := run()
	second := run()

	assert.Equal(t, first.songs, second.songs)
	assert.Equal(t, first.artists, second.artists)
	assert.Equal(t, first.users, second.users)
	assert.Equal(t, first.buckets, second.buckets)

	// songplay_id is only unique within a run, every other column must match
	withoutIDs := func(plays []domain.SongPlay) []domain.SongPlay {
		out := make([]domain.SongPlay, len(plays))
		for i, play := range plays {
			play.SongplayID = 0
			out[i] = play
		}
		return out
	}
	require.Len(t, second.songPlays, 2)
	assert.Equal(t, withoutIDs(first.songPlays), withoutIDs(second.songPlays))
}

func TestProcessLogData_RequiresSongsTable(t *testing.T) {
	p, _, input, output := setupPipeline(t, Config{})

	_, err := p.ProcessLogData(context.Background(), input, output)
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrNoInputFiles)
	assert.Contains(t, err.Error(), "failed to read back songs table")
}

func TestProcessLogData_ContentHashIsStableAcrossRuns(t *testing.T) {
	ctx := context.Background()
	p, s, input, output := setupPipeline(t, Config{IDStrategy: IDStrategyContentHash})

	_, err := p.ProcessSongData(ctx, input, output)
	require.NoError(t, err)

	_, err = p.ProcessLogData(ctx, input, output)
	require.NoError(t, err)
	first, err := session.ReadParquet[domain.SongPlay](ctx, s, output+"/songplays")
	require.NoError(t, err)

	_, err = p.ProcessLogData(ctx, input, output)
	require.NoError(t, err)
	second, err := session.ReadParquet[domain.SongPlay](ctx, s, output+"/songplays")
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.NotEqual(t, first[0].SongplayID, first[1].SongplayID)
}

func TestProcessLogData_CustomPageAndTimezone(t *testing.T) {
	ctx := context.Background()
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	p, s, input, output := setupPipeline(t, Config{SongPlayPage: "Home", Location: ny})

	_, err = p.ProcessSongData(ctx, input, output)
	require.NoError(t, err)
	result, err := p.ProcessLogData(ctx, input, output)
	require.NoError(t, err)

	// only the Home event is kept and it carries no song
	assert.Equal(t, 1, result.Users.Rows)
	assert.Equal(t, 1, result.Join.MissingKey)
	assert.Equal(t, 0, result.SongPlays.Rows)

	buckets, err := session.ReadParquet[domain.TimeBucket](ctx, s, output+"/time")
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, 19, buckets[0].Hour)
	assert.Equal(t, 14, buckets[0].Day)
	assert.Equal(t, "Wed", buckets[0].Weekday)
}

func TestPipeline_Partitioned(t *testing.T) {
	ctx := context.Background()
	p, s, input, output := setupPipeline(t, Config{Partitioned: true})

	_, err := p.ProcessSongData(ctx, input, output)
	require.NoError(t, err)
	_, err = p.ProcessLogData(ctx, input, output)
	require.NoError(t, err)

	for _, dir := range []string{
		"songs/year=2000/artist_id=A1",
		"songs/year=0/artist_id=A2",
		"time/year=2018/month=11",
		"songplays/year=2018/month=11",
	} {
		info, err := os.Stat(filepath.Join(output, dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}
	// artists and users are never partitioned
	_, err = os.Stat(filepath.Join(output, "artists", "part-00000-test.snappy.parquet"))
	assert.NoError(t, err)

	// the songs table reads back whole for the join
	plays, err := session.ReadParquet[domain.SongPlay](ctx, s, output+"/songplays")
	require.NoError(t, err)
	assert.Len(t, plays, 2)
}
