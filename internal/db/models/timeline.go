package models

import "time"

// Timeline is an immutable append-only audit record written as a side effect
// of lifecycle notifications. Entries are never updated; they are pruned only
// by the retention job. The mapping reference is nullable because a mapping
// may be deleted long after its history was written.
type Timeline struct {
	// ID is the unique identifier for the timeline entry.
	ID uint `gorm:"primaryKey"`
	// When is the moment the recorded change happened.
	When time.Time `gorm:"column:at;not null;index"`
	// What is the category of the recorded change.
	What string `gorm:"size:100;not null"`
	// MappingID is the owning mapping, if it still exists.
	MappingID *uint `gorm:"index"`
	// Mapping is the owning mapping (reference cleared on delete, SET NULL).
	Mapping *Mapping `gorm:"foreignKey:MappingID;constraint:OnDelete:SET NULL"`
	// Description is the free-text detail of the change.
	Description string `gorm:"type:text"`
	// CreatedAt is the timestamp when the entry was written (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the Timeline model.
func (Timeline) TableName() string {
	return "timeline"
}
