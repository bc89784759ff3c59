package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkify/datalake-etl/internal/domain"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		uri         string
		expected    Location
		backend     string
		expectError error
	}{
		{
			name:     "s3a bucket root",
			uri:      "s3a://udacity-dend/",
			expected: Location{Scheme: "s3a", Bucket: "udacity-dend", Path: ""},
			backend:  BackendS3,
		},
		{
			name:     "s3 with wildcards",
			uri:      "s3://bucket/song_data/*/*/*",
			expected: Location{Scheme: "s3", Bucket: "bucket", Path: "song_data/*/*/*"},
			backend:  BackendS3,
		},
		{
			name:     "upper case scheme",
			uri:      "S3N://bucket/key",
			expected: Location{Scheme: "s3n", Bucket: "bucket", Path: "key"},
			backend:  BackendS3,
		},
		{
			name:     "gcs",
			uri:      "gs://lake/songs",
			expected: Location{Scheme: "gs", Bucket: "lake", Path: "songs"},
			backend:  BackendGCS,
		},
		{
			name:     "file uri keeps question mark",
			uri:      "file:///data/log_data/2018/1?",
			expected: Location{Scheme: "file", Path: "/data/log_data/2018/1?"},
			backend:  BackendLocal,
		},
		{
			name:     "bare path",
			uri:      "  /tmp/lake ",
			expected: Location{Scheme: "file", Path: "/tmp/lake"},
			backend:  BackendLocal,
		},
		{
			name:        "empty",
			uri:         "",
			expectError: domain.ErrInvalidLocation,
		},
		{
			name:        "missing bucket",
			uri:         "s3a:///key",
			expectError: domain.ErrInvalidLocation,
		},
		{
			name:        "unsupported scheme",
			uri:         "hdfs://namenode/data",
			expectError: domain.ErrUnsupportedScheme,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := Parse(tt.uri)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, loc)
			assert.Equal(t, tt.backend, loc.Backend())
		})
	}
}

func mustParse(t *testing.T, uri string) Location {
	t.Helper()
	loc, err := Parse(uri)
	require.NoError(t, err)
	return loc
}

func TestLocation_JoinAndString(t *testing.T) {
	root := mustParse(t, "s3a://sparkify-data-lake-dend/")
	songs := root.Join("songs")
	assert.Equal(t, "songs", songs.Path)
	assert.Equal(t, "s3a://sparkify-data-lake-dend/songs", songs.String())
	assert.Equal(t, "songs/", songs.DirPrefix())
	assert.Equal(t, "", root.DirPrefix())

	pattern := mustParse(t, "s3a://udacity-dend").Join("song_data/*/*/*")
	assert.Equal(t, "s3a://udacity-dend/song_data/*/*/*", pattern.String())

	local := mustParse(t, "/tmp/lake/").Join("time")
	assert.Equal(t, "/tmp/lake/time", local.Path)
	assert.Equal(t, "file:///tmp/lake/time", local.String())
	assert.Equal(t, "/tmp/lake/time/", local.DirPrefix())

	relative := mustParse(t, "data").Join("log_data/*/*")
	assert.Equal(t, "data/log_data/*/*", relative.String())

	gcs := mustParse(t, "gs://lake/out").Key("out/songs/part-00000.parquet")
	assert.Equal(t, "gs://lake/out/songs/part-00000.parquet", gcs.String())
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		key    string
		base   string
		hidden bool
	}{
		{key: "songs/_SUCCESS", base: "songs/", hidden: true},
		{key: "/tmp/songs/.part-00000.parquet.crc", base: "/tmp/songs/", hidden: true},
		{key: "_temporary", base: "", hidden: true},
		{key: "song_data/A/A/A/TRAAAAW128F429D538.json", base: "song_data/", hidden: false},
		{key: "song_data/_temporary/x.json", base: "song_data/", hidden: true},
		{key: "songs/_temporary/0/part-00000.parquet", base: "songs/", hidden: true},
		{key: "songs/year=2018/.staging/part-00000.parquet", base: "songs/", hidden: true},
		{key: "_dir/file.json", base: "", hidden: true},
		{key: "/home/_lake/songs/part-00000.parquet", base: "/home/_lake/songs/", hidden: false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.hidden, IsHidden(tt.key, tt.base))
		})
	}
}
