package models

import "time"

// Membership is a manual override edge between two Mappings, independent of
// the group structure derived from the member administration. The flags
// select which backends the edge propagates to.
// Each (group, member) pair occurs at most once.
type Membership struct {
	// ID is the unique identifier for the membership edge.
	ID uint `gorm:"primaryKey"`
	// GroupID is the mapping id of the group side of the edge.
	GroupID uint `gorm:"not null;uniqueIndex:idx_memberships_edge"`
	// MemberID is the mapping id of the member side of the edge.
	MemberID uint `gorm:"not null;uniqueIndex:idx_memberships_edge"`
	// Group is the group mapping (removed with the mapping, CASCADE).
	Group Mapping `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	// Member is the member mapping (removed with the mapping, CASCADE).
	Member Mapping `gorm:"foreignKey:MemberID;constraint:OnDelete:CASCADE"`
	// Directory propagates the edge to directory group membership.
	Directory bool
	// Mail propagates the edge to groupware mail group membership.
	Mail bool
	// SharedDrive propagates the edge to shared-drive permissions.
	SharedDrive bool
	// CreatedAt is the timestamp when the edge was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the edge was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Membership model.
func (Membership) TableName() string {
	return "memberships"
}
