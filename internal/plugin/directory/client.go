// Package directory reconciles mappings against the LDAP directory: person
// accounts under the people OU, group objects under the groups OU, and the
// membership edges between them. The immutable entryUUID is the join key so
// accounts survive renames.
package directory

import "errors"

// ErrNotFound is returned when no directory object matches the lookup.
var ErrNotFound = errors.New("directory object not found")

// Account is a person object in the directory.
type Account struct {
	// GUID is the server-assigned immutable identifier.
	GUID string
	// UID is the account's login name.
	UID string
	// CommonName is the display name.
	CommonName string
	GivenName  string
	Surname    string
	Mail       string
	// Shell is the login shell path.
	Shell string
}

// Group is a group object in the directory.
type Group struct {
	GUID string
	// CN is the group's short name.
	CN          string
	Description string
	Mail        string
}

// Client is the directory operation surface the plugin reconciles through.
// The production implementation speaks LDAP; tests substitute a fake.
type Client interface {
	// AccountByGUID resolves an account by its immutable id, ErrNotFound
	// when no entry matches.
	AccountByGUID(guid string) (*Account, error)
	// CreateAccount creates the account with an initial password and
	// returns the server-assigned GUID.
	CreateAccount(a Account, password string) (string, error)
	// UpdateAccount rewrites the mutable attributes of the account,
	// including a rename when UID changed.
	UpdateAccount(guid string, a Account) error
	// DeleteAccount removes the account entry.
	DeleteAccount(guid string) error

	// GroupByGUID resolves a group by its immutable id.
	GroupByGUID(guid string) (*Group, error)
	// GroupByCN resolves a group by its short name.
	GroupByCN(cn string) (*Group, error)
	// CreateGroup creates the group and returns the server-assigned GUID.
	CreateGroup(g Group) (string, error)
	// UpdateGroup rewrites the mutable attributes of the group.
	UpdateGroup(guid string, g Group) error
	// DeleteGroup removes the group entry.
	DeleteGroup(guid string) error

	// MemberOf lists the short names of the groups an account belongs to.
	MemberOf(accountGUID string) ([]string, error)
	// AddMember adds an account to a group, both by GUID.
	AddMember(groupGUID, accountGUID string) error
	// RemoveMember removes an account from a group, both by GUID.
	RemoveMember(groupGUID, accountGUID string) error
}
