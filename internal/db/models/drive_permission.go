package models

import "time"

// DrivePermission records a shared-drive permission granted in the groupware
// backend. The backend assigns the permission id at grant time; it is stored
// here so the permission can be revoked later without a backend search.
type DrivePermission struct {
	// ID is the unique identifier for the permission record.
	ID uint `gorm:"primaryKey"`
	// DriveID is the mapping id of the shared drive.
	DriveID uint `gorm:"not null;uniqueIndex:idx_drive_permissions_edge"`
	// MemberID is the mapping id of the person holding the permission.
	MemberID uint `gorm:"not null;uniqueIndex:idx_drive_permissions_edge"`
	// Drive is the shared-drive mapping (removed with the mapping, CASCADE).
	Drive Mapping `gorm:"foreignKey:DriveID;constraint:OnDelete:CASCADE"`
	// Member is the member mapping (removed with the mapping, CASCADE).
	Member Mapping `gorm:"foreignKey:MemberID;constraint:OnDelete:CASCADE"`
	// PermissionID is the backend-assigned permission id.
	PermissionID string `gorm:"size:100;not null"`
	// CreatedAt is the timestamp when the permission was granted (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the DrivePermission model.
func (DrivePermission) TableName() string {
	return "drive_permissions"
}
