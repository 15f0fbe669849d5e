package models

import "time"

// VerifyTask is one unit of verification work on the task queue. Tasks are
// claimed by workers once they are due and deleted when the work completes
// or the retry ceiling is exhausted.
type VerifyTask struct {
	// ID is the unique identifier for the task.
	ID uint `gorm:"primaryKey"`
	// CycleID is the verification cycle this task belongs to.
	CycleID string `gorm:"size:32;not null;index"`
	// MappingID is the mapping to verify.
	MappingID uint `gorm:"not null"`
	// Fix selects whether reconciliation applies fixes or only reports.
	Fix bool
	// Attempts counts how often the task has been tried.
	Attempts uint `gorm:"not null;default:0"`
	// RunAt is the earliest moment a worker may claim the task.
	RunAt time.Time `gorm:"not null;index"`
	// ClaimedAt marks a task as taken by a worker, nil while queued.
	ClaimedAt *time.Time
	// CreatedAt is the timestamp when the task was enqueued (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the VerifyTask model.
func (VerifyTask) TableName() string {
	return "verify_tasks"
}

// Cycle is the coordination record of one verification cycle. Pending counts
// enqueued-but-unfinished tasks; the deferred deactivation sweep runs when
// it reaches zero. Rows past ExpiresAt are garbage collected.
type Cycle struct {
	// ID is the random cycle id shared by all tasks in the cycle.
	ID string `gorm:"primaryKey;size:32"`
	// Pending is the number of outstanding tasks in the cycle.
	// Modified only through atomic SQL increments.
	Pending int64 `gorm:"not null;default:0"`
	// Fix selects whether the cycle's reconciliations apply fixes.
	Fix bool
	// ExpiresAt bounds a cycle whose worker crashed without decrementing.
	ExpiresAt time.Time `gorm:"not null;index"`
	// CreatedAt is the timestamp when the cycle started (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the Cycle model.
func (Cycle) TableName() string {
	return "cycles"
}

// CycleVisit marks a mapping as processed within a cycle. The unique index
// on (CycleID, MappingID) is the dedup set preventing infinite fan-out over
// cyclic membership graphs.
type CycleVisit struct {
	// ID is the unique identifier for the visit record.
	ID uint `gorm:"primaryKey"`
	// CycleID is the cycle the visit belongs to.
	CycleID string `gorm:"size:32;not null;uniqueIndex:idx_cycle_visits"`
	// MappingID is the visited mapping.
	MappingID uint `gorm:"not null;uniqueIndex:idx_cycle_visits"`
	// CreatedAt is the timestamp when the mapping was first enqueued (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the CycleVisit model.
func (CycleVisit) TableName() string {
	return "cycle_visits"
}
