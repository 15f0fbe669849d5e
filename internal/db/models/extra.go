package models

import "time"

// ExtraPerson is a manually administered person without a record in the
// member administration, such as an external system account holder.
type ExtraPerson struct {
	// ID is the unique identifier for the extra person.
	ID uint `gorm:"primaryKey"`
	// Name is the person's display name.
	Name string `gorm:"size:255;not null"`
	// Email is the person's e-mail address.
	Email string `gorm:"size:255"`
	// ShortName is the directory-style short account name.
	ShortName string `gorm:"size:100"`
	// Active indicates whether the person should have backend accounts.
	Active bool
	// Shell is the preferred login shell name, if any.
	Shell string `gorm:"size:50"`
	// Description is a free-text note about why this person exists.
	Description string `gorm:"type:text"`
	// CreatedAt is the timestamp when the record was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the record was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the ExtraPerson model.
func (ExtraPerson) TableName() string {
	return "extra_persons"
}

// ExtraGroup is a manually administered ad-hoc group outside the committee
// structure of the member administration. Its membership consists solely of
// manual Membership edges.
type ExtraGroup struct {
	// ID is the unique identifier for the extra group.
	ID uint `gorm:"primaryKey"`
	// Name is the group's display name.
	Name string `gorm:"size:255;not null"`
	// Email is the group's e-mail address.
	Email string `gorm:"size:255"`
	// ShortName is the directory-style short group name.
	ShortName string `gorm:"size:100"`
	// Active indicates whether the group should exist in the backends.
	Active bool
	// Sourcehost propagates the group to the source-code host.
	Sourcehost bool
	// Vault propagates the group to the secrets vault as an organization.
	Vault bool
	// Description is a free-text note about the group's purpose.
	Description string `gorm:"type:text"`
	// CreatedAt is the timestamp when the record was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the record was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the ExtraGroup model.
func (ExtraGroup) TableName() string {
	return "extra_groups"
}
