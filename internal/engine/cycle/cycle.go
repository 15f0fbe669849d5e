// Package cycle implements the verification-cycle store: per cycle a dedup
// set of visited mappings and an atomically maintained pending counter,
// bounded by a TTL so a crashed worker cannot leak a cycle forever.
package cycle

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/uniuri"
)

const idLength = 32

var (
	// ErrCycleNotFound is returned when a cycle does not exist or expired.
	ErrCycleNotFound = errors.New("cycle not found")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Store persists cycle coordination state. All counter updates are atomic
// SQL expressions so concurrent workers never lose an increment.
type Store struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewStore creates a cycle store with the given TTL.
func NewStore(db *gorm.DB, ttl time.Duration) *Store {
	return &Store{db: db, ttl: ttl}
}

// Begin starts a new cycle and returns its id.
func (s *Store) Begin(fix bool) (string, error) {
	if s.db == nil {
		return "", ErrDBNil
	}

	c := &models.Cycle{
		ID:        uniuri.NewLen(idLength),
		Fix:       fix,
		ExpiresAt: time.Now().Add(s.ttl),
	}

	if err := s.db.Create(c).Error; err != nil {
		return "", err
	}

	return c.ID, nil
}

// Get retrieves a cycle. Expired cycles are reported as missing.
func (s *Store) Get(id string) (*models.Cycle, error) {
	if s.db == nil {
		return nil, ErrDBNil
	}

	var c models.Cycle
	result := s.db.Where("id = ? AND expires_at > ?", id, time.Now()).First(&c)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCycleNotFound
		}
		return nil, result.Error
	}

	return &c, nil
}

// MarkVisited adds a mapping to the cycle's dedup set. Returns true on the
// first visit, false when the mapping was already enqueued in this cycle.
func (s *Store) MarkVisited(cycleID string, mappingID uint) (bool, error) {
	if s.db == nil {
		return false, ErrDBNil
	}

	visit := &models.CycleVisit{CycleID: cycleID, MappingID: mappingID}
	result := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(visit)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// Visited lists the mappings enqueued in the cycle so far.
func (s *Store) Visited(cycleID string) ([]uint, error) {
	if s.db == nil {
		return nil, ErrDBNil
	}

	var visits []models.CycleVisit
	if err := s.db.Where("cycle_id = ?", cycleID).Find(&visits).Error; err != nil {
		return nil, err
	}

	out := make([]uint, 0, len(visits))
	for _, v := range visits {
		out = append(out, v.MappingID)
	}

	return out, nil
}

// IncrementPending counts one more outstanding task in the cycle.
func (s *Store) IncrementPending(cycleID string) error {
	if s.db == nil {
		return ErrDBNil
	}

	result := s.db.Model(&models.Cycle{}).Where("id = ?", cycleID).
		UpdateColumn("pending", gorm.Expr("pending + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCycleNotFound
	}

	return nil
}

// DecrementPending finishes one task and returns the remaining count. Two
// workers finishing simultaneously may both observe zero; the completion
// sweep is idempotent, so that is harmless.
func (s *Store) DecrementPending(cycleID string) (int64, error) {
	if s.db == nil {
		return 0, ErrDBNil
	}

	result := s.db.Model(&models.Cycle{}).Where("id = ?", cycleID).
		UpdateColumn("pending", gorm.Expr("pending - 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrCycleNotFound
	}

	var c models.Cycle
	if err := s.db.First(&c, "id = ?", cycleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrCycleNotFound
		}
		return 0, err
	}

	return c.Pending, nil
}

// Teardown deletes the cycle and its dedup set.
func (s *Store) Teardown(cycleID string) error {
	if s.db == nil {
		return ErrDBNil
	}

	if err := s.db.Where("cycle_id = ?", cycleID).Delete(&models.CycleVisit{}).Error; err != nil {
		return err
	}

	return s.db.Delete(&models.Cycle{}, "id = ?", cycleID).Error
}

// Expire garbage collects cycles past their TTL, with their visits and any
// stale tasks still pointing at them. Returns the number of cycles removed.
func (s *Store) Expire(now time.Time) (int64, error) {
	if s.db == nil {
		return 0, ErrDBNil
	}

	var expired []models.Cycle
	if err := s.db.Where("expires_at <= ?", now).Find(&expired).Error; err != nil {
		return 0, err
	}

	for _, c := range expired {
		if err := s.db.Where("cycle_id = ?", c.ID).Delete(&models.CycleVisit{}).Error; err != nil {
			return 0, err
		}
		if err := s.db.Where("cycle_id = ?", c.ID).Delete(&models.VerifyTask{}).Error; err != nil {
			return 0, err
		}
		if err := s.db.Delete(&models.Cycle{}, "id = ?", c.ID).Error; err != nil {
			return 0, err
		}
	}

	return int64(len(expired)), nil
}
