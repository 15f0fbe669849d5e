// Package queue implements the verify-task queue: idempotent enqueue with
// cycle dedup, claim with due-time ordering, and retry with exponential
// backoff for transient backend failures.
package queue

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/engine/cycle"
)

var (
	// ErrNoTask is returned when no due task is available.
	ErrNoTask = errors.New("no due task")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

const (
	retryInitialInterval = time.Minute
	retryMaxInterval     = 10 * time.Minute
)

// Queue persists verification tasks and keeps the owning cycle's pending
// counter in step with them.
type Queue struct {
	db           *gorm.DB
	cycles       *cycle.Store
	retryCeiling uint
}

// New creates a queue over the given database and cycle store.
func New(db *gorm.DB, cycles *cycle.Store, retryCeiling uint) *Queue {
	return &Queue{db: db, cycles: cycles, retryCeiling: retryCeiling}
}

// Cycles exposes the cycle store the queue coordinates through.
func (q *Queue) Cycles() *cycle.Store { return q.cycles }

// Enqueue adds a verification task for a mapping to a cycle, unless the
// mapping was already enqueued in this cycle. The pending counter is
// incremented only for tasks actually inserted. Reports whether a task was
// enqueued.
func (q *Queue) Enqueue(cycleID string, mappingID uint, fix bool) (bool, error) {
	if q.db == nil {
		return false, ErrDBNil
	}

	first, err := q.cycles.MarkVisited(cycleID, mappingID)
	if err != nil {
		return false, err
	}
	if !first {
		return false, nil
	}

	if err := q.cycles.IncrementPending(cycleID); err != nil {
		return false, err
	}

	task := &models.VerifyTask{
		CycleID:   cycleID,
		MappingID: mappingID,
		Fix:       fix,
		RunAt:     time.Now(),
	}

	if err := q.db.Create(task).Error; err != nil {
		return false, err
	}

	return true, nil
}

// Claim takes the next due unclaimed task. Concurrent workers race on the
// claim update; the loser moves on to the next candidate.
func (q *Queue) Claim(now time.Time) (*models.VerifyTask, error) {
	if q.db == nil {
		return nil, ErrDBNil
	}

	for {
		var task models.VerifyTask
		result := q.db.Where("claimed_at IS NULL AND run_at <= ?", now).
			Order("run_at").First(&task)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return nil, ErrNoTask
			}
			return nil, result.Error
		}

		claim := q.db.Model(&models.VerifyTask{}).
			Where("id = ? AND claimed_at IS NULL", task.ID).
			UpdateColumn("claimed_at", now)
		if claim.Error != nil {
			return nil, claim.Error
		}
		if claim.RowsAffected == 1 {
			task.ClaimedAt = &now
			return &task, nil
		}
	}
}

// Done removes a finished task and reports the cycle's remaining pending
// count.
func (q *Queue) Done(task *models.VerifyTask) (int64, error) {
	if q.db == nil {
		return 0, ErrDBNil
	}

	if err := q.db.Delete(&models.VerifyTask{}, task.ID).Error; err != nil {
		return 0, err
	}

	return q.cycles.DecrementPending(task.CycleID)
}

// Retry re-schedules a task that hit a transient backend failure, with
// exponential backoff and without touching the pending counter. Once the
// retry ceiling is reached, the task is given up like Done. Reports whether
// the task was requeued and, if not, the remaining pending count.
func (q *Queue) Retry(task *models.VerifyTask) (bool, int64, error) {
	if q.db == nil {
		return false, 0, ErrDBNil
	}

	attempts := task.Attempts + 1
	if attempts >= q.retryCeiling {
		remaining, err := q.Done(task)
		return false, remaining, err
	}

	result := q.db.Model(&models.VerifyTask{}).Where("id = ?", task.ID).
		Updates(map[string]any{
			"attempts":   attempts,
			"run_at":     time.Now().Add(retryDelay(attempts)),
			"claimed_at": nil,
		})
	if result.Error != nil {
		return false, 0, result.Error
	}

	return true, 0, nil
}

// retryDelay computes the backoff before a task's next attempt: 1 minute
// doubling to a 10 minute cap, with jitter.
func retryDelay(attempts uint) time.Duration {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = retryInitialInterval
	eb.MaxInterval = retryMaxInterval
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0

	delay := eb.NextBackOff()
	for i := uint(1); i < attempts; i++ {
		delay = eb.NextBackOff()
	}

	return delay
}

// PendingTasks counts tasks still queued or running for a cycle.
func (q *Queue) PendingTasks(cycleID string) (int64, error) {
	if q.db == nil {
		return 0, ErrDBNil
	}

	var count int64
	err := q.db.Model(&models.VerifyTask{}).Where("cycle_id = ?", cycleID).Count(&count).Error

	return count, err
}
