package models

import "time"

// MappingType identifies which kind of internal entity a Mapping binds.
type MappingType string

const (
	// MappingTypePerson is a natural person from the member administration.
	MappingTypePerson MappingType = "person"
	// MappingTypeCommittee is a committee from the member administration.
	MappingTypeCommittee MappingType = "committee"
	// MappingTypeDoGroup is a do-group generation from the member administration.
	MappingTypeDoGroup MappingType = "dogroup"
	// MappingTypeExtraPerson is a manually administered person without a member record.
	MappingTypeExtraPerson MappingType = "extra_person"
	// MappingTypeExtraGroup is a manually administered ad-hoc group.
	MappingTypeExtraGroup MappingType = "extra_group"
	// MappingTypeSharedDrive is a groupware shared drive.
	MappingTypeSharedDrive MappingType = "shared_drive"
	// MappingTypeAliasGroup is a mail-alias distribution group.
	MappingTypeAliasGroup MappingType = "alias_group"
	// MappingTypeContact is an external contact reachable only by e-mail.
	MappingTypeContact MappingType = "contact"
)

// Mapping is the ledger row binding one internal entity to its external
// backend identities. At most one Mapping exists per internal entity,
// enforced by the unique index on (Type, ExternalRef).
//
// The reconciliation engine exclusively owns the Active flag; backend
// plugins own only their own external-identity slot and backend flags.
type Mapping struct {
	// ID is the unique identifier for the mapping.
	ID uint `gorm:"primaryKey"`
	// Type tags which internal entity kind this mapping binds.
	Type MappingType `gorm:"type:varchar(20);not null;uniqueIndex:idx_mappings_type_ref"`
	// ExternalRef is the internal entity's own id within its kind.
	ExternalRef uint `gorm:"not null;uniqueIndex:idx_mappings_type_ref"`
	// Name is the display name, seeded from the entity at creation and
	// kept in sync during reconciliation.
	Name string `gorm:"size:255;not null"`
	// Active indicates whether the underlying entity currently needs
	// representation in the backends. Deactivated mappings are kept,
	// never deleted, outside the retention job.
	Active bool
	// Email is the entity's primary e-mail address, if any.
	Email string `gorm:"size:255"`
	// ShortName is the directory-style short account name.
	ShortName string `gorm:"size:100"`
	// DirectoryGUID is the stable directory object GUID. It is the join
	// key for directory objects; the mutable ShortName never is.
	DirectoryGUID string `gorm:"size:64;index"`
	// IDPID is the identity provider's UUID for this entity.
	IDPID string `gorm:"size:64"`
	// GroupwareID is the groupware suite's id for this entity.
	GroupwareID string `gorm:"size:64"`
	// GroupwareForwarding indicates whether groupware mail forwarding is
	// enabled for this entity.
	GroupwareForwarding bool
	// ChatSpaceID is the chat federation space id for group mappings.
	ChatSpaceID string `gorm:"size:255"`
	// CreatedAt is the timestamp when the mapping was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the mapping was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Mapping model.
func (Mapping) TableName() string {
	return "mappings"
}

// IsGroupType reports whether the mapping's type represents a group-like
// entity (one that carries members).
func (m *Mapping) IsGroupType() bool {
	switch m.Type {
	case MappingTypeCommittee, MappingTypeDoGroup, MappingTypeExtraGroup,
		MappingTypeAliasGroup, MappingTypeSharedDrive:
		return true
	default:
		return false
	}
}

// IsPersonType reports whether the mapping's type represents a natural person.
func (m *Mapping) IsPersonType() bool {
	return m.Type == MappingTypePerson || m.Type == MappingTypeExtraPerson
}
