// Package store keeps the run registry: one record per staged or
// executed simulation, so the server can list past runs and point back
// at their staging directories and logs. A mutex-guarded memory store is
// the default; a postgres-backed store is used when a DSN is configured.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a run ID is not in the registry.
var ErrNotFound = errors.New("run not found")

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStaged    Status = "staged"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one registry record.
type Run struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	Name         string     `json:"name"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Cycles       int        `json:"cycles"`
	MaxCycles    int        `json:"max_cycles"`
	WorkDir      string     `json:"work_dir"`
	Error        string     `json:"error,omitempty"`
	FinalBiomass string     `json:"final_biomass,omitempty"`
	Config       string     `json:"-" gorm:"type:text"`
}

// Store is the run registry port.
type Store interface {
	Create(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context) ([]*Run, error)
	Update(ctx context.Context, run *Run) error
}
