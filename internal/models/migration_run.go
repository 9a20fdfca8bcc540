package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Migration run states.
const (
	MigrationRunning   = "running"
	MigrationCompleted = "completed"
	MigrationFailed    = "failed"
)

// MigrationRun records one execution of a permission matrix migration.
type MigrationRun struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"`
	Name       string         `gorm:"size:64;not null;index" json:"name"`
	Status     string         `gorm:"size:16;not null;index" json:"status"`
	Inspected  int            `json:"inspected"`
	Updated    int            `json:"updated"`
	Skipped    int            `json:"skipped"`
	Conflicts  datatypes.JSON `json:"conflicts"`
	Error      string         `gorm:"type:text" json:"error,omitempty"`
	StartedAt  time.Time      `gorm:"index" json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// BeforeCreate ensures UUID identifiers are generated automatically.
func (r *MigrationRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// MigrationLock is the claim row that keeps concurrent runs of the same migration apart.
// A claim past ExpiresAt may be taken over by another run.
type MigrationLock struct {
	Name      string    `gorm:"primaryKey;size:64"`
	RunID     string    `gorm:"size:36;not null"`
	ClaimedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}
