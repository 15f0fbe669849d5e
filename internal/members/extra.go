package members

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/mappable"
)

// ExtraPersonEntity adapts a manually administered person to the mappable
// surface. Extra persons have no derived groups; their membership consists
// solely of manual edges on the ledger.
type ExtraPersonEntity struct {
	mappable.Base
	record models.ExtraPerson
}

// MappableID returns the extra person's id.
func (p *ExtraPersonEntity) MappableID() uint { return p.record.ID }

// MappableType tags the entity as an extra person.
func (p *ExtraPersonEntity) MappableType() models.MappingType { return models.MappingTypeExtraPerson }

// Name returns the display name.
func (p *ExtraPersonEntity) Name() string { return p.record.Name }

// Email returns the e-mail address.
func (p *ExtraPersonEntity) Email() string { return p.record.Email }

// ShortName returns the account name.
func (p *ExtraPersonEntity) ShortName() string { return p.record.ShortName }

// Active reports the administered active flag.
func (p *ExtraPersonEntity) Active() bool { return p.record.Active }

// Needed applies the default rule.
func (p *ExtraPersonEntity) Needed() (bool, error) { return mappable.DefaultNeeded(p) }

// ExtraAttrs carries the shell preference.
func (p *ExtraPersonEntity) ExtraAttrs() map[string]string {
	if p.record.Shell == "" {
		return nil
	}

	return map[string]string{"shell": p.record.Shell}
}

// IsPerson reports true.
func (p *ExtraPersonEntity) IsPerson() bool { return true }

// GivenName returns the first word of the name.
func (p *ExtraPersonEntity) GivenName() string {
	first, _, _ := strings.Cut(p.record.Name, " ")
	return first
}

// Surname returns the name after the first word.
func (p *ExtraPersonEntity) Surname() string {
	_, rest, _ := strings.Cut(p.record.Name, " ")
	return rest
}

// PersonalAliases derives alias local parts from the name.
func (p *ExtraPersonEntity) PersonalAliases() []string {
	first := aliasPart(p.GivenName())
	last := aliasPart(p.Surname())
	if first == "" || last == "" {
		return nil
	}

	return []string{first + "." + last}
}

// ExtraPersonSource resolves extra persons from the ledger database.
type ExtraPersonSource struct {
	db *gorm.DB
}

// NewExtraPersonSource creates a source over the ledger database.
func NewExtraPersonSource(db *gorm.DB) *ExtraPersonSource {
	return &ExtraPersonSource{db: db}
}

// Type returns the extra-person mapping type.
func (s *ExtraPersonSource) Type() models.MappingType { return models.MappingTypeExtraPerson }

// ByID resolves one extra person.
func (s *ExtraPersonSource) ByID(id uint) (mappable.Entity, error) {
	var p models.ExtraPerson
	if err := s.db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mappable.ErrEntityNotFound
		}
		return nil, err
	}

	return &ExtraPersonEntity{record: p}, nil
}

// All lists every extra person.
func (s *ExtraPersonSource) All() ([]mappable.Entity, error) {
	var persons []models.ExtraPerson
	if err := s.db.Find(&persons).Error; err != nil {
		return nil, err
	}

	out := make([]mappable.Entity, 0, len(persons))
	for _, p := range persons {
		out = append(out, &ExtraPersonEntity{record: p})
	}

	return out, nil
}

// ExtraGroupEntity adapts a manually administered ad-hoc group to the
// mappable surface. Its members come exclusively from manual edges, which
// the ledger resolves.
type ExtraGroupEntity struct {
	mappable.Base
	record models.ExtraGroup
}

// MappableID returns the extra group's id.
func (g *ExtraGroupEntity) MappableID() uint { return g.record.ID }

// MappableType tags the entity as an extra group.
func (g *ExtraGroupEntity) MappableType() models.MappingType { return models.MappingTypeExtraGroup }

// Name returns the display name.
func (g *ExtraGroupEntity) Name() string { return g.record.Name }

// Email returns the group's e-mail address.
func (g *ExtraGroupEntity) Email() string { return g.record.Email }

// ShortName returns the short group name.
func (g *ExtraGroupEntity) ShortName() string { return g.record.ShortName }

// Active reports the administered active flag.
func (g *ExtraGroupEntity) Active() bool { return g.record.Active }

// Needed applies the default rule.
func (g *ExtraGroupEntity) Needed() (bool, error) { return mappable.DefaultNeeded(g) }

// ExtraAttrs carries the backend propagation flags.
func (g *ExtraGroupEntity) ExtraAttrs() map[string]string {
	attrs := map[string]string{}
	if g.record.Sourcehost {
		attrs["sourcehost"] = "true"
	}
	if g.record.Vault {
		attrs["vault"] = "true"
	}

	return attrs
}

// IsGroup reports true.
func (g *ExtraGroupEntity) IsGroup() bool { return true }

// ExtraGroupSource resolves extra groups from the ledger database.
type ExtraGroupSource struct {
	db *gorm.DB
}

// NewExtraGroupSource creates a source over the ledger database.
func NewExtraGroupSource(db *gorm.DB) *ExtraGroupSource {
	return &ExtraGroupSource{db: db}
}

// Type returns the extra-group mapping type.
func (s *ExtraGroupSource) Type() models.MappingType { return models.MappingTypeExtraGroup }

// ByID resolves one extra group.
func (s *ExtraGroupSource) ByID(id uint) (mappable.Entity, error) {
	var g models.ExtraGroup
	if err := s.db.First(&g, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mappable.ErrEntityNotFound
		}
		return nil, err
	}

	return &ExtraGroupEntity{record: g}, nil
}

// All lists every extra group.
func (s *ExtraGroupSource) All() ([]mappable.Entity, error) {
	var groups []models.ExtraGroup
	if err := s.db.Find(&groups).Error; err != nil {
		return nil, err
	}

	out := make([]mappable.Entity, 0, len(groups))
	for _, g := range groups {
		out = append(out, &ExtraGroupEntity{record: g})
	}

	return out, nil
}
