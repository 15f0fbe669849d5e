// Package timeline provides append and prune operations for the audit trail.
package timeline

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/db/models"
)

var (
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
	// ErrWhatEmpty is returned when appending an entry without a category.
	ErrWhatEmpty = errors.New("timeline category cannot be empty")
)

// Append writes a new audit entry. The mapping id may be nil for entries
// that outlive their mapping. Entries are never updated.
func Append(db *gorm.DB, what string, mappingID *uint, description string) (*models.Timeline, error) {
	if db == nil {
		return nil, ErrDBNil
	}
	if what == "" {
		return nil, ErrWhatEmpty
	}

	entry := &models.Timeline{
		When:        time.Now(),
		What:        what,
		MappingID:   mappingID,
		Description: description,
	}

	result := db.Create(entry)
	if result.Error != nil {
		return nil, result.Error
	}

	return entry, nil
}

// ForMapping retrieves the audit entries of a mapping, newest first.
func ForMapping(db *gorm.DB, mappingID uint) ([]models.Timeline, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var entries []models.Timeline
	result := db.Where("mapping_id = ?", mappingID).Order("at DESC").Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}

	return entries, nil
}

// LastForMapping retrieves the most recent audit entry of a mapping.
func LastForMapping(db *gorm.DB, mappingID uint) (*models.Timeline, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var entry models.Timeline
	result := db.Where("mapping_id = ?", mappingID).Order("at DESC").First(&entry)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return &entry, nil
}

// PruneUnowned deletes entries older than before that no longer reference a
// mapping. Owned entries are kept regardless of age.
func PruneUnowned(db *gorm.DB, before time.Time) (int64, error) {
	if db == nil {
		return 0, ErrDBNil
	}

	result := db.Where("mapping_id IS NULL AND at < ?", before).Delete(&models.Timeline{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}
