// Package event provides CRUD operations for scheduled mapping events.
package event

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/db/models"
)

const (
	typeMappingQueryPattern = "type = ? AND mapping_id = ?"
)

var (
	// ErrEventNotFound is returned when an event is not found.
	ErrEventNotFound = errors.New("event not found")
	// ErrEventAlreadyScheduled is returned when an event of the same type is already scheduled for the mapping.
	ErrEventAlreadyScheduled = errors.New("event already scheduled for mapping")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Get retrieves the scheduled event of a given type for a mapping.
func Get(db *gorm.DB, eventType models.EventType, mappingID uint) (*models.Event, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var ev models.Event
	result := db.Where(typeMappingQueryPattern, eventType, mappingID).First(&ev)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, result.Error
	}

	return &ev, nil
}

// Schedule creates an event of the given type for a mapping, due at executeAt.
func Schedule(db *gorm.DB, eventType models.EventType, mappingID uint, executeAt time.Time) (*models.Event, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var existing models.Event
	result := db.Where(typeMappingQueryPattern, eventType, mappingID).First(&existing)
	if result.Error == nil {
		return nil, ErrEventAlreadyScheduled
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, result.Error
	}

	ev := &models.Event{
		Type:      eventType,
		MappingID: mappingID,
		ExecuteAt: executeAt,
	}

	result = db.Create(ev)
	if result.Error != nil {
		return nil, result.Error
	}

	return ev, nil
}

// Unschedule cancels a scheduled event of the given type for a mapping.
func Unschedule(db *gorm.DB, eventType models.EventType, mappingID uint) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Where(typeMappingQueryPattern, eventType, mappingID).Delete(&models.Event{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}

	return nil
}

// Due retrieves all events whose execution time has passed.
func Due(db *gorm.DB, now time.Time) ([]models.Event, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var events []models.Event
	result := db.Where("execute_at <= ?", now).Order("execute_at").Find(&events)
	if result.Error != nil {
		return nil, result.Error
	}

	return events, nil
}

// ForMapping retrieves all scheduled events for a mapping.
func ForMapping(db *gorm.DB, mappingID uint) ([]models.Event, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var events []models.Event
	result := db.Where("mapping_id = ?", mappingID).Find(&events)
	if result.Error != nil {
		return nil, result.Error
	}

	return events, nil
}

// Delete deletes an event by ID, typically after it has been executed.
func Delete(db *gorm.DB, id uint) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Delete(&models.Event{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}

	return nil
}
