package domain

import "time"

// RunStatus is the lifecycle status of an ETL run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// ReadStats describes one dataset read
type ReadStats struct {
	Pattern      string `json:"pattern"`
	Files        int    `json:"files"`
	SkippedFiles int    `json:"skipped_files"`
	Records      int    `json:"records"`
	Malformed    int    `json:"malformed"`
}

// WriteStats describes one artifact write
type WriteStats struct {
	Location string `json:"location"`
	Rows     int    `json:"rows"`
	Files    int    `json:"files"`
	Bytes    int64  `json:"bytes"`
}

// JoinStats describes the events-to-songs join
type JoinStats struct {
	LeftRows      int `json:"left_rows"`
	MissingKey    int `json:"missing_key"`
	Matched       int `json:"matched"`
	Unmatched     int `json:"unmatched"`
	AmbiguousKeys int `json:"ambiguous_keys"`
	OutputRows    int `json:"output_rows"`
}

// RunSummary is the outcome of one full ETL run
type RunSummary struct {
	RunID        string                `json:"run_id"`
	Status       RunStatus             `json:"status"`
	InputRoot    string                `json:"input_root"`
	OutputRoot   string                `json:"output_root"`
	StartedAt    time.Time             `json:"started_at"`
	FinishedAt   time.Time             `json:"finished_at"`
	Inputs       map[string]ReadStats  `json:"inputs"`
	Tables       map[string]WriteStats `json:"tables"`
	SongPlayJoin JoinStats             `json:"songplay_join"`
	Error        string                `json:"error,omitempty"`
}

// NewRunSummary creates an empty summary for a run in progress
func NewRunSummary(runID, inputRoot, outputRoot string, startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:      runID,
		Status:     RunStatusRunning,
		InputRoot:  inputRoot,
		OutputRoot: outputRoot,
		StartedAt:  startedAt,
		Inputs:     make(map[string]ReadStats),
		Tables:     make(map[string]WriteStats),
	}
}

// Duration returns the wall time of a finished run
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
