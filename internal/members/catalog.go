package members

import (
	"errors"

	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/mappable"
)

// AliasGroupEntity adapts a mail-alias group to the mappable surface.
type AliasGroupEntity struct {
	mappable.Base
	record models.AliasGroup
}

// MappableID returns the alias group's id.
func (g *AliasGroupEntity) MappableID() uint { return g.record.ID }

// MappableType tags the entity as an alias group.
func (g *AliasGroupEntity) MappableType() models.MappingType { return models.MappingTypeAliasGroup }

// Name returns the display name.
func (g *AliasGroupEntity) Name() string { return g.record.Name }

// Email returns the alias address.
func (g *AliasGroupEntity) Email() string { return g.record.Email }

// Active reports the administered active flag.
func (g *AliasGroupEntity) Active() bool { return g.record.Active }

// Needed applies the default rule.
func (g *AliasGroupEntity) Needed() (bool, error) { return mappable.DefaultNeeded(g) }

// IsGroup reports true.
func (g *AliasGroupEntity) IsGroup() bool { return true }

// AliasGroupSource resolves alias groups from the ledger database.
type AliasGroupSource struct {
	db *gorm.DB
}

// NewAliasGroupSource creates a source over the ledger database.
func NewAliasGroupSource(db *gorm.DB) *AliasGroupSource {
	return &AliasGroupSource{db: db}
}

// Type returns the alias-group mapping type.
func (s *AliasGroupSource) Type() models.MappingType { return models.MappingTypeAliasGroup }

// ByID resolves one alias group.
func (s *AliasGroupSource) ByID(id uint) (mappable.Entity, error) {
	var g models.AliasGroup
	if err := s.db.First(&g, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mappable.ErrEntityNotFound
		}
		return nil, err
	}

	return &AliasGroupEntity{record: g}, nil
}

// All lists every alias group.
func (s *AliasGroupSource) All() ([]mappable.Entity, error) {
	var groups []models.AliasGroup
	if err := s.db.Find(&groups).Error; err != nil {
		return nil, err
	}

	out := make([]mappable.Entity, 0, len(groups))
	for _, g := range groups {
		out = append(out, &AliasGroupEntity{record: g})
	}

	return out, nil
}

// ContactEntity adapts an external contact to the mappable surface.
// Contacts never get backend accounts; they join groups by address.
type ContactEntity struct {
	mappable.Base
	record models.Contact
}

// MappableID returns the contact's id.
func (c *ContactEntity) MappableID() uint { return c.record.ID }

// MappableType tags the entity as a contact.
func (c *ContactEntity) MappableType() models.MappingType { return models.MappingTypeContact }

// Name returns the display name.
func (c *ContactEntity) Name() string { return c.record.Name }

// Email returns the contact's address.
func (c *ContactEntity) Email() string { return c.record.Email }

// Active reports the administered active flag.
func (c *ContactEntity) Active() bool { return c.record.Active }

// Needed applies the default rule.
func (c *ContactEntity) Needed() (bool, error) { return mappable.DefaultNeeded(c) }

// IsContact reports true.
func (c *ContactEntity) IsContact() bool { return true }

// ContactSource resolves contacts from the ledger database.
type ContactSource struct {
	db *gorm.DB
}

// NewContactSource creates a source over the ledger database.
func NewContactSource(db *gorm.DB) *ContactSource {
	return &ContactSource{db: db}
}

// Type returns the contact mapping type.
func (s *ContactSource) Type() models.MappingType { return models.MappingTypeContact }

// ByID resolves one contact.
func (s *ContactSource) ByID(id uint) (mappable.Entity, error) {
	var c models.Contact
	if err := s.db.First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mappable.ErrEntityNotFound
		}
		return nil, err
	}

	return &ContactEntity{record: c}, nil
}

// All lists every contact.
func (s *ContactSource) All() ([]mappable.Entity, error) {
	var contacts []models.Contact
	if err := s.db.Find(&contacts).Error; err != nil {
		return nil, err
	}

	out := make([]mappable.Entity, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, &ContactEntity{record: c})
	}

	return out, nil
}

// SharedDriveEntity adapts a shared drive to the mappable surface. Access
// is granted through manual edges flagged SharedDrive, resolved by the
// ledger.
type SharedDriveEntity struct {
	mappable.Base
	record models.SharedDrive
}

// MappableID returns the drive's id.
func (d *SharedDriveEntity) MappableID() uint { return d.record.ID }

// MappableType tags the entity as a shared drive.
func (d *SharedDriveEntity) MappableType() models.MappingType { return models.MappingTypeSharedDrive }

// Name returns the display name.
func (d *SharedDriveEntity) Name() string { return d.record.Name }

// Active reports the administered active flag.
func (d *SharedDriveEntity) Active() bool { return d.record.Active }

// Needed applies the default rule.
func (d *SharedDriveEntity) Needed() (bool, error) { return mappable.DefaultNeeded(d) }

// IsGroup reports true, drives carry members through manual edges.
func (d *SharedDriveEntity) IsGroup() bool { return true }

// IsSharedDrive reports true.
func (d *SharedDriveEntity) IsSharedDrive() bool { return true }

// SharedDriveSource resolves shared drives from the ledger database.
type SharedDriveSource struct {
	db *gorm.DB
}

// NewSharedDriveSource creates a source over the ledger database.
func NewSharedDriveSource(db *gorm.DB) *SharedDriveSource {
	return &SharedDriveSource{db: db}
}

// Type returns the shared-drive mapping type.
func (s *SharedDriveSource) Type() models.MappingType { return models.MappingTypeSharedDrive }

// ByID resolves one shared drive.
func (s *SharedDriveSource) ByID(id uint) (mappable.Entity, error) {
	var d models.SharedDrive
	if err := s.db.First(&d, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mappable.ErrEntityNotFound
		}
		return nil, err
	}

	return &SharedDriveEntity{record: d}, nil
}

// All lists every shared drive.
func (s *SharedDriveSource) All() ([]mappable.Entity, error) {
	var drives []models.SharedDrive
	if err := s.db.Find(&drives).Error; err != nil {
		return nil, err
	}

	out := make([]mappable.Entity, 0, len(drives))
	for _, d := range drives {
		out = append(out, &SharedDriveEntity{record: d})
	}

	return out, nil
}

// RegisterAll registers every entity source this package provides, in the
// order the engine's integrity sweep walks them.
func RegisterAll(registry *mappable.Registry, adminDB, ledgerDB *gorm.DB) error {
	sources := []mappable.Source{
		NewPersonSource(adminDB),
		NewCommitteeSource(adminDB),
		NewDoGroupSource(adminDB),
		NewExtraPersonSource(ledgerDB),
		NewExtraGroupSource(ledgerDB),
		NewAliasGroupSource(ledgerDB),
		NewContactSource(ledgerDB),
		NewSharedDriveSource(ledgerDB),
	}

	for _, s := range sources {
		if err := registry.Register(s); err != nil {
			return err
		}
	}

	return nil
}
