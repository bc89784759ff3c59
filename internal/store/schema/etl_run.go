package schema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/sparkify/datalake-etl/internal/domain"
)

// EtlRun represents the etl_runs table
type EtlRun struct {
	// RunID is the ULID of the run, also stamped into written file names
	RunID string `gorm:"column:run_id;primaryKey;type:text"`
	// Status is the lifecycle status of the run
	Status domain.RunStatus `gorm:"column:status;not null;type:text;index"`
	// InputRoot is the location the raw datasets were read from
	InputRoot string `gorm:"column:input_root;not null"`
	// OutputRoot is the location the tables were written to
	OutputRoot string `gorm:"column:output_root;not null"`
	// StartedAt is the timestamp when the run started
	StartedAt time.Time `gorm:"column:started_at;not null;index"`
	// FinishedAt is the timestamp when the run succeeded or failed
	FinishedAt *time.Time `gorm:"column:finished_at"`
	// Stats holds read, write and join statistics as JSON
	Stats datatypes.JSON `gorm:"column:stats"`
	// Error is the failure message of a failed run
	Error *string `gorm:"column:error"`
	// CreatedAt is the timestamp when the row was created
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	// UpdatedAt is the timestamp when the row was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for the EtlRun model
func (EtlRun) TableName() string {
	return "etl_runs"
}
