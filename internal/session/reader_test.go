package session

import (
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkify/datalake-etl/internal/domain"
	"github.com/sparkify/datalake-etl/internal/mocks"
	"github.com/sparkify/datalake-etl/internal/objectstore"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newLocalSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s, err := NewProvider(cfg, DefaultFactories()).Session(context.Background())
	require.NoError(t, err)
	return s
}

func gzipped(t *testing.T, content string) string {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.String()
}

func TestReadJSON(t *testing.T) {
	root := filepath.ToSlash(t.TempDir())

	writeFile(t, root+"/song_data/A/A/A/TRAAAAW128F429D538.json",
		`{"num_songs": 1, "artist_id": "AR1", "artist_latitude": null, "artist_longitude": null, "artist_location": "", "artist_name": "Casual", "song_id": "SO1", "title": "I Didn't Mean To", "duration": 218.93179, "year": 0}`)
	writeFile(t, root+"/song_data/A/A/B/two.json",
		`{"song_id": "SO2", "title": "Two", "artist_id": "AR2", "year": 1999, "duration": 100, "artist_latitude": 35.1, "artist_longitude": -90.0}
not json at all
[1, 2, 3]

{"song_id": "SO3", "title": "Three", "artist_id": "AR2", "year": "not a number"}
{"song_id": "SO4", "title": "Four", "artist_id": "AR3", "year": 2001, "duration": 1.5}
`)
	// hidden objects and objects outside the pattern depth are ignored
	writeFile(t, root+"/song_data/A/A/A/_SUCCESS", "")
	writeFile(t, root+"/song_data/A/A/.hidden.json", `{"song_id": "HIDDEN"}`)
	writeFile(t, root+"/song_data/A/shallow.json", `{"song_id": "SHALLOW"}`)
	// binary objects are skipped whole
	writeFile(t, root+"/song_data/B/B/B/archive.json.gz", gzipped(t, `{"song_id": "GZ"}`))

	s := newLocalSession(t, Config{ReaderConcurrency: 3})

	rows, stats, err := ReadJSON[domain.SongRecord](context.Background(), s, root+"/song_data/*/*/*")
	require.NoError(t, err)

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.SongID)
	}
	assert.Equal(t, []string{"SO1", "SO2", "SO4"}, ids)

	assert.Equal(t, root+"/song_data/*/*/*", stats.Pattern)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 1, stats.SkippedFiles)
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 3, stats.Malformed)

	require.NotNil(t, rows[0].ArtistLocation)
	assert.Equal(t, "", *rows[0].ArtistLocation)
	assert.Nil(t, rows[0].ArtistLatitude)
	require.NotNil(t, rows[1].ArtistLatitude)
	assert.InDelta(t, 35.1, *rows[1].ArtistLatitude, 1e-9)
}

func TestReadJSON_DirectoryMatchIncludesDescendants(t *testing.T) {
	root := filepath.ToSlash(t.TempDir())
	writeFile(t, root+"/log_data/2018/11/2018-11-01-events.json", `{"page": "NextSong", "ts": 1541105830796}`)
	writeFile(t, root+"/log_data/2018/11/nested/2018-11-02-events.json", `{"page": "Home", "ts": 1541105830797}`)

	s := newLocalSession(t, Config{})

	rows, stats, err := ReadJSON[domain.LogEvent](context.Background(), s, root+"/log_data/*/*")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 2, stats.Files)
}

func TestReadJSON_SkipsHiddenDirectories(t *testing.T) {
	root := filepath.ToSlash(t.TempDir()) + "/_lake"
	writeFile(t, root+"/song_data/A/a.json", `{"song_id": "SO1"}`)
	writeFile(t, root+"/song_data/_temporary/x.json", `{"song_id": "STAGED"}`)
	writeFile(t, root+"/song_data/B/.staging/y.json", `{"song_id": "STAGED"}`)

	s := newLocalSession(t, Config{})

	for _, pattern := range []string{root + "/song_data/*/*", root + "/song_data/*"} {
		rows, stats, err := ReadJSON[domain.SongRecord](context.Background(), s, pattern)
		require.NoError(t, err, pattern)
		require.Len(t, rows, 1, pattern)
		assert.Equal(t, "SO1", rows[0].SongID)
		assert.Equal(t, 1, stats.Files)
	}
}

func TestReadJSON_NoInputFiles(t *testing.T) {
	root := filepath.ToSlash(t.TempDir())
	writeFile(t, root+"/song_data/_SUCCESS", "")

	s := newLocalSession(t, Config{})

	_, _, err := ReadJSON[domain.SongRecord](context.Background(), s, root+"/song_data/*/*/*")
	assert.ErrorIs(t, err, ErrNoInputFiles)

	_, _, err = ReadJSON[domain.SongRecord](context.Background(), s, root+"/missing/*")
	assert.ErrorIs(t, err, ErrNoInputFiles)
}

func TestReadJSON_OversizedLine(t *testing.T) {
	root := filepath.ToSlash(t.TempDir())
	long := `{"song_id": "` + strings.Repeat("x", 200) + `"}`
	writeFile(t, root+"/song_data/a/b/c.json", `{"song_id": "SO1"}`+"\n"+long+"\n"+`{"song_id": "SO2"}`)

	s := newLocalSession(t, Config{ReaderMaxLineBytes: 64})

	rows, stats, err := ReadJSON[domain.SongRecord](context.Background(), s, root+"/song_data/*/*/*")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "SO1", rows[0].SongID)
	assert.Equal(t, 1, stats.Malformed)
}

func TestReadJSON_StoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockObjectStore(ctrl)

	s := newLocalSession(t, Config{})
	s.Register(objectstore.BackendS3, store)

	store.EXPECT().List(gomock.Any(), "udacity-dend", "log_data/").Return([]objectstore.Object{
		{Key: "log_data/2018/11/a.json"},
	}, nil)
	store.EXPECT().Get(gomock.Any(), "udacity-dend", "log_data/2018/11/a.json").Return(nil, domain.ErrObjectNotFound)

	_, _, err := ReadJSON[domain.LogEvent](context.Background(), s, "s3a://udacity-dend/log_data/*/*")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
	assert.Contains(t, err.Error(), "s3a://udacity-dend/log_data/2018/11/a.json")
}

func TestReadJSON_InvalidPattern(t *testing.T) {
	s := newLocalSession(t, Config{})

	_, _, err := ReadJSON[domain.SongRecord](context.Background(), s, "/data/[a-")
	assert.Error(t, err)

	_, _, err = ReadJSON[domain.SongRecord](context.Background(), s, "hdfs://nn/data")
	assert.ErrorIs(t, err, domain.ErrUnsupportedScheme)
}

func TestIsText(t *testing.T) {
	assert.True(t, isText([]byte(`{"a": 1}`)))
	assert.True(t, isText([]byte("{\"a\": 1}\n{\"a\": 2}\n")))
	assert.True(t, isText([]byte("")))
	assert.True(t, isText([]byte("plain words")))
	assert.False(t, isText([]byte{0x1f, 0x8b, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00}))
}
