package models

import "time"

// EventType identifies the scheduled action an Event performs.
type EventType string

const (
	// EventTypeDeleteDirectoryAccount deletes the mapping's directory account.
	EventTypeDeleteDirectoryAccount EventType = "delete_directory_account"
	// EventTypeDeleteGroupwareAccount deletes the mapping's groupware account.
	EventTypeDeleteGroupwareAccount EventType = "delete_groupware_account"
)

// Event is a scheduled future action tied to a Mapping, used to give person
// accounts a grace period before backend deletion. An event is cancelled by
// deleting the row when the mapping becomes needed again before ExecuteAt.
type Event struct {
	// ID is the unique identifier for the event.
	ID uint `gorm:"primaryKey"`
	// Type is the action to perform when the event fires.
	Type EventType `gorm:"type:varchar(40);not null;uniqueIndex:idx_events_type_mapping"`
	// MappingID is the mapping the action applies to.
	MappingID uint `gorm:"not null;uniqueIndex:idx_events_type_mapping"`
	// Mapping is the owning mapping (removed with the mapping, CASCADE).
	Mapping Mapping `gorm:"foreignKey:MappingID;constraint:OnDelete:CASCADE"`
	// ExecuteAt is when the action becomes due.
	ExecuteAt time.Time `gorm:"not null;index"`
	// CreatedAt is the timestamp when the event was scheduled (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the Event model.
func (Event) TableName() string {
	return "events"
}
