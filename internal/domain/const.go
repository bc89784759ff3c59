package domain

const (
	// SongPlayPage is the page value of an event that records a song being played
	SongPlayPage = "NextSong"

	// Artifact names under the output root
	TableSongs     = "songs"
	TableArtists   = "artists"
	TableUsers     = "users"
	TableTime      = "time"
	TableSongPlays = "songplays"

	// Input datasets under the input root
	DatasetSongData = "song_data"
	DatasetLogData  = "log_data"
)

// Tables lists every artifact a complete run writes, in write order
var Tables = []string{TableSongs, TableArtists, TableUsers, TableTime, TableSongPlays}
