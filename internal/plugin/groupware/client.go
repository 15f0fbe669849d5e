// Package groupware reconciles mappings against the hosted groupware suite:
// person accounts with their alias sets and forwarding flag, mail groups
// with email-keyed members, and shared drives with per-member permission
// records.
package groupware

import "errors"

// ErrNotFound is returned when no groupware object matches the lookup.
var ErrNotFound = errors.New("groupware object not found")

// User is a person account in the suite.
type User struct {
	ID           string
	PrimaryEmail string
	GivenName    string
	Surname      string
	// Forwarding reports whether incoming mail is forwarded to the
	// account's private address.
	Forwarding bool
}

// GroupObj is a mail group.
type GroupObj struct {
	ID    string
	Email string
	Name  string
}

// GroupMember is a member of a mail group. The backend id is required for
// removal of some member kinds, so it is always carried next to the email.
type GroupMember struct {
	ID    string
	Email string
}

// Drive is a shared drive.
type Drive struct {
	ID   string
	Name string
}

// Permission is a shared-drive access grant.
type Permission struct {
	ID    string
	Email string
	Role  string
}

// Client is the groupware operation surface the plugin reconciles through.
type Client interface {
	UserByID(id string) (*User, error)
	// CreateUser creates an account and returns its backend id.
	CreateUser(u User, initialPassword string) (string, error)
	UpdateUser(id string, u User) error
	DeleteUser(id string) error
	// UserAliases lists the account's full alias addresses.
	UserAliases(id string) ([]string, error)
	AddUserAlias(id, alias string) error
	RemoveUserAlias(id, alias string) error

	GroupByID(id string) (*GroupObj, error)
	CreateGroup(g GroupObj) (string, error)
	UpdateGroup(id string, g GroupObj) error
	DeleteGroup(id string) error
	GroupMembers(id string) ([]GroupMember, error)
	// AddGroupMember adds a member by email and returns the id the
	// backend assigned to the membership.
	AddGroupMember(id, email string) (string, error)
	// RemoveGroupMember removes a member by its backend membership id.
	RemoveGroupMember(id, memberID string) error
	GroupAliases(id string) ([]string, error)
	AddGroupAlias(id, alias string) error
	RemoveGroupAlias(id, alias string) error

	DriveByID(id string) (*Drive, error)
	CreateDrive(name string) (string, error)
	RenameDrive(id, name string) error
	DeleteDrive(id string) error
	DrivePermissions(id string) ([]Permission, error)
	// GrantDrivePermission grants access and returns the backend
	// permission id, stored locally for later revocation.
	GrantDrivePermission(driveID, email string) (string, error)
	RevokeDrivePermission(driveID, permissionID string) error
}
