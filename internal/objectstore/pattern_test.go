package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePattern_Invalid(t *testing.T) {
	_, err := CompilePattern("song_data/[a-")
	assert.Error(t, err)
}

func TestPattern_StaticPrefix(t *testing.T) {
	tests := []struct {
		pattern  string
		expected string
	}{
		{"song_data/*/*/*", "song_data/"},
		{"log_data/2018/11/*", "log_data/2018/11/"},
		{"/data/song_data/*/*/*", "/data/song_data/"},
		{"*/x", ""},
		{"songs", "songs"},
		{"log_data/2018-11-0?", "log_data/"},
		{"songs/", "songs"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			p, err := CompilePattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.StaticPrefix())
			assert.Equal(t, tt.pattern, p.String())
		})
	}
}

func TestPattern_Match(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		key      string
		expected bool
	}{
		{"exact depth file", "song_data/*/*/*", "song_data/A/B/C", true},
		{"directory match includes descendants", "song_data/*/*/*", "song_data/A/B/C/TRABCEI128F424C983.json", true},
		{"too shallow", "song_data/*/*/*", "song_data/A/B", false},
		{"wrong dataset", "song_data/*/*/*", "log_data/A/B/C/x.json", false},
		{"log files", "log_data/*/*", "log_data/2018/11/2018-11-12-events.json", true},
		{"directory wildcard includes nested files", "log_data/*", "log_data/2018/11/x.json", true},
		{"character class", "log_data/2018/1[01]/*", "log_data/2018/12/x.json", false},
		{"question mark", "log_data/2018/1?/*", "log_data/2018/11/x.json", true},
		{"absolute local path", "/data/log_data/*/*", "/data/log_data/2018/11/x.json", true},
		{"literal name", "songs", "songs/part-00000.parquet", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := CompilePattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Match(tt.key))
		})
	}
}
