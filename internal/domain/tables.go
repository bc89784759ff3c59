package domain

import "time"

// Song is a row of the songs dimension
type Song struct {
	SongID   string  `parquet:"song_id" json:"song_id"`
	Title    string  `parquet:"title" json:"title"`
	ArtistID string  `parquet:"artist_id" json:"artist_id"`
	Year     int     `parquet:"year" json:"year"`
	Duration float64 `parquet:"duration" json:"duration"`
}

// Artist is a row of the artists dimension
type Artist struct {
	ArtistID  string   `parquet:"artist_id" json:"artist_id"`
	Name      string   `parquet:"name" json:"name"`
	Location  *string  `parquet:"location" json:"location"`
	Latitude  *float64 `parquet:"latitude" json:"latitude"`
	Longitude *float64 `parquet:"longitude" json:"longitude"`
}

// User is a row of the users dimension
type User struct {
	UserID    string  `parquet:"user_id" json:"user_id"`
	FirstName *string `parquet:"first_name" json:"first_name"`
	LastName  *string `parquet:"last_name" json:"last_name"`
	Gender    *string `parquet:"gender" json:"gender"`
	Level     string  `parquet:"level" json:"level"`
}

// TimeBucket is a row of the time dimension, one per distinct start time
type TimeBucket struct {
	StartTime time.Time `parquet:"start_time,timestamp(millisecond)" json:"start_time"`
	Hour      int       `parquet:"hour" json:"hour"`
	Day       int       `parquet:"day" json:"day"`
	Week      int       `parquet:"week" json:"week"`
	Month     int       `parquet:"month" json:"month"`
	Year      int       `parquet:"year" json:"year"`
	Weekday   string    `parquet:"weekday" json:"weekday"`
}

// NewTimeBucket decomposes an instant into calendar fields in the given location.
// A nil location means UTC.
func NewTimeBucket(instant time.Time, loc *time.Location) TimeBucket {
	if loc == nil {
		loc = time.UTC
	}
	t := instant.In(loc)
	_, week := t.ISOWeek()

	return TimeBucket{
		StartTime: instant.UTC(),
		Hour:      t.Hour(),
		Day:       t.Day(),
		Week:      week,
		Month:     int(t.Month()),
		Year:      t.Year(),
		Weekday:   t.Weekday().String()[:3],
	}
}

// SongPlay is a row of the songplays fact table
type SongPlay struct {
	SongplayID int64     `parquet:"songplay_id" json:"songplay_id"`
	StartTime  time.Time `parquet:"start_time,timestamp(millisecond)" json:"start_time"`
	UserID     string    `parquet:"user_id" json:"user_id"`
	Level      string    `parquet:"level" json:"level"`
	SongID     string    `parquet:"song_id" json:"song_id"`
	ArtistID   string    `parquet:"artist_id" json:"artist_id"`
	SessionID  int64     `parquet:"session_id" json:"session_id"`
	Location   *string   `parquet:"location" json:"location"`
	UserAgent  *string   `parquet:"user_agent" json:"user_agent"`
}
