package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mobilsoft/connectors/internal/domain/runlog"
)

// RunLogModel is the persistence model for a run log
type RunLogModel struct {
	ID              uuid.UUID         `gorm:"type:uuid;primary_key"`
	SourceKind      runlog.SourceKind `gorm:"type:varchar(30);not null;index:idx_run_logs_source,priority:1"`
	SourceID        uuid.UUID         `gorm:"type:uuid;not null;index:idx_run_logs_source,priority:2"`
	SourceName      string            `gorm:"type:varchar(200)"`
	Operation       runlog.Operation  `gorm:"type:varchar(30);not null"`
	StartTime       time.Time         `gorm:"not null;index:idx_run_logs_source,priority:3"`
	EndTime         *time.Time
	State           runlog.State      `gorm:"type:varchar(20);not null;index"`
	Total           int               `gorm:"not null"`
	Created         int               `gorm:"not null"`
	Updated         int               `gorm:"not null"`
	Skipped         int               `gorm:"not null"`
	Failed          int               `gorm:"not null"`
	ErrorDetails    string            `gorm:"type:text"`
	DurationSeconds float64           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RunLogModel) TableName() string {
	return "run_logs"
}

// ToDomain converts the model to a domain run log
func (m *RunLogModel) ToDomain() *runlog.RunLog {
	return &runlog.RunLog{
		ID:              m.ID,
		SourceKind:      m.SourceKind,
		SourceID:        m.SourceID,
		SourceName:      m.SourceName,
		Operation:       m.Operation,
		StartTime:       m.StartTime,
		EndTime:         m.EndTime,
		State:           m.State,
		Total:           m.Total,
		Created:         m.Created,
		Updated:         m.Updated,
		Skipped:         m.Skipped,
		Failed:          m.Failed,
		ErrorDetails:    m.ErrorDetails,
		DurationSeconds: m.DurationSeconds,
	}
}

// RunLogModelFromDomain creates a model from a domain run log
func RunLogModelFromDomain(r *runlog.RunLog) *RunLogModel {
	return &RunLogModel{
		ID:              r.ID,
		SourceKind:      r.SourceKind,
		SourceID:        r.SourceID,
		SourceName:      r.SourceName,
		Operation:       r.Operation,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		State:           r.State,
		Total:           r.Total,
		Created:         r.Created,
		Updated:         r.Updated,
		Skipped:         r.Skipped,
		Failed:          r.Failed,
		ErrorDetails:    r.ErrorDetails,
		DurationSeconds: r.DurationSeconds,
	}
}
