// Package mappable defines the capability contract an internal entity must
// satisfy to participate in reconciliation, and the registry of entity
// sources the engine resolves entities through.
package mappable

import (
	"github.com/claudia-sync/claudia/internal/db/models"
)

// Entity is the capability surface of an internal entity that can have a
// mapping. The engine and the backend plugins only ever see this interface;
// concrete entity kinds live behind it.
type Entity interface {
	// MappableID is the entity's own id within its kind.
	MappableID() uint
	// MappableType tags the entity kind for the mapping ledger.
	MappableType() models.MappingType
	// Name is the entity's display name.
	Name() string
	// Email is the entity's primary e-mail address, empty if none.
	Email() string
	// ShortName is the directory-style short account name, empty if none.
	ShortName() string
	// Active reports whether the entity itself is currently active.
	Active() bool
	// Needed reports whether the entity needs backend representation.
	// The default rule is Active, or any group membership, or any members.
	Needed() (bool, error)
	// Groups lists the groups the entity belongs to by its own structure,
	// excluding manual membership edges on the ledger.
	Groups() ([]Entity, error)
	// Members lists the entity's members, optionally including former ones.
	Members(includeFormer bool) ([]Entity, error)
	// ExtraAttrs carries free-form attributes such as shell preference or
	// backend feature flags. May be nil.
	ExtraAttrs() map[string]string

	// IsGroup reports whether the entity carries members.
	IsGroup() bool
	// IsPerson reports whether the entity is a natural person.
	IsPerson() bool
	// IsSharedDrive reports whether the entity is a shared drive.
	IsSharedDrive() bool
	// IsContact reports whether the entity is an external contact.
	IsContact() bool
}

// Person is the extended surface of person entities. Plugins that need name
// parts or personal aliases assert this interface on an Entity.
type Person interface {
	Entity
	// GivenName is the person's first name.
	GivenName() string
	// Surname is the person's family name including any particles.
	Surname() string
	// PersonalAliases lists alias local parts derived from the person's
	// name, without a domain.
	PersonalAliases() []string
}

// Base provides no-op defaults for the optional parts of Entity. Embed it
// and override what the entity kind actually supports.
type Base struct{}

// Email returns an empty address.
func (Base) Email() string { return "" }

// ShortName returns an empty short name.
func (Base) ShortName() string { return "" }

// Groups returns no groups.
func (Base) Groups() ([]Entity, error) { return nil, nil }

// Members returns no members.
func (Base) Members(_ bool) ([]Entity, error) { return nil, nil }

// ExtraAttrs returns no attributes.
func (Base) ExtraAttrs() map[string]string { return nil }

// IsGroup reports false.
func (Base) IsGroup() bool { return false }

// IsPerson reports false.
func (Base) IsPerson() bool { return false }

// IsSharedDrive reports false.
func (Base) IsSharedDrive() bool { return false }

// IsContact reports false.
func (Base) IsContact() bool { return false }

// DefaultNeeded implements the default needed rule for an entity: it is
// needed when it is active, belongs to any group, or has any members.
// Entity kinds without their own rule call this from their Needed method.
func DefaultNeeded(e Entity) (bool, error) {
	if e.Active() {
		return true, nil
	}

	groups, err := e.Groups()
	if err != nil {
		return false, err
	}
	if len(groups) > 0 {
		return true, nil
	}

	members, err := e.Members(false)
	if err != nil {
		return false, err
	}

	return len(members) > 0, nil
}
