package models

import "time"

// AliasGroup is a mail-alias distribution group. Its resolved member
// addresses become the alias targets in the groupware backend.
type AliasGroup struct {
	// ID is the unique identifier for the alias group.
	ID uint `gorm:"primaryKey"`
	// Name is the group's display name.
	Name string `gorm:"size:255;not null"`
	// Email is the alias address itself.
	Email string `gorm:"size:255;not null"`
	// Active indicates whether the alias should exist in the backends.
	Active bool
	// Description is a free-text note about the alias.
	Description string `gorm:"type:text"`
	// CreatedAt is the timestamp when the record was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the record was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the AliasGroup model.
func (AliasGroup) TableName() string {
	return "alias_groups"
}

// Contact is an external contact reachable only by e-mail. Contacts carry no
// backend accounts of their own; they participate in groups by address.
type Contact struct {
	// ID is the unique identifier for the contact.
	ID uint `gorm:"primaryKey"`
	// Name is the contact's display name.
	Name string `gorm:"size:255;not null"`
	// Email is the contact's e-mail address.
	Email string `gorm:"size:255;not null"`
	// Active indicates whether the contact should be propagated to groups.
	Active bool
	// CreatedAt is the timestamp when the record was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the record was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Contact model.
func (Contact) TableName() string {
	return "contacts"
}

// SharedDrive is a groupware shared drive administered through the ledger.
// Access is granted through Membership edges flagged SharedDrive.
type SharedDrive struct {
	// ID is the unique identifier for the shared drive.
	ID uint `gorm:"primaryKey"`
	// Name is the drive's display name.
	Name string `gorm:"size:255;not null"`
	// Active indicates whether the drive should exist in the backend.
	Active bool
	// CreatedAt is the timestamp when the record was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the record was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the SharedDrive model.
func (SharedDrive) TableName() string {
	return "shared_drives"
}

// ExtraPersonalAlias is an additional personal e-mail alias attached to a
// person mapping, beyond the aliases derived from the person's name.
type ExtraPersonalAlias struct {
	// ID is the unique identifier for the alias.
	ID uint `gorm:"primaryKey"`
	// MappingID is the person mapping the alias belongs to.
	MappingID uint `gorm:"not null;uniqueIndex:idx_extra_personal_aliases"`
	// Mapping is the owning mapping (removed with the mapping, CASCADE).
	Mapping Mapping `gorm:"foreignKey:MappingID;constraint:OnDelete:CASCADE"`
	// Alias is the full alias address.
	Alias string `gorm:"size:255;not null;uniqueIndex:idx_extra_personal_aliases"`
	// CreatedAt is the timestamp when the alias was added (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the ExtraPersonalAlias model.
func (ExtraPersonalAlias) TableName() string {
	return "extra_personal_aliases"
}
