package members

import (
	"errors"

	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/mappable"
)

// DoGroupEntity adapts a DoGroupGeneration record to the mappable surface.
type DoGroupEntity struct {
	mappable.Base
	db     *gorm.DB
	record DoGroupGeneration
}

// MappableID returns the generation's id in the member administration.
func (g *DoGroupEntity) MappableID() uint { return g.record.ID }

// MappableType tags the entity as a do-group generation.
func (g *DoGroupEntity) MappableType() models.MappingType { return models.MappingTypeDoGroup }

// Name returns the generation's display name.
func (g *DoGroupEntity) Name() string { return g.record.Name }

// Email returns the generation's e-mail address.
func (g *DoGroupEntity) Email() string { return g.record.Email }

// Active reports whether the generation still needs representation.
func (g *DoGroupEntity) Active() bool { return g.record.Active }

// Needed applies the default rule.
func (g *DoGroupEntity) Needed() (bool, error) { return mappable.DefaultNeeded(g) }

// Members lists the generation's participants. Participation has no end
// date, so former and current members are the same set.
func (g *DoGroupEntity) Members(_ bool) ([]mappable.Entity, error) {
	var participations []DoGroupParticipant
	if err := g.db.Where("generation_id = ?", g.record.ID).Find(&participations).Error; err != nil {
		return nil, err
	}

	var out []mappable.Entity
	for _, part := range participations {
		var p Person
		if err := g.db.First(&p, part.PersonID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, &PersonEntity{db: g.db, record: p})
	}

	return out, nil
}

// IsGroup reports true.
func (g *DoGroupEntity) IsGroup() bool { return true }

// DoGroupSource resolves do-group generations from the member administration.
type DoGroupSource struct {
	db *gorm.DB
}

// NewDoGroupSource creates a source over the given administration database.
func NewDoGroupSource(db *gorm.DB) *DoGroupSource {
	return &DoGroupSource{db: db}
}

// Type returns the do-group mapping type.
func (s *DoGroupSource) Type() models.MappingType { return models.MappingTypeDoGroup }

// ByID resolves one generation.
func (s *DoGroupSource) ByID(id uint) (mappable.Entity, error) {
	var g DoGroupGeneration
	if err := s.db.First(&g, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mappable.ErrEntityNotFound
		}
		return nil, err
	}

	return &DoGroupEntity{db: s.db, record: g}, nil
}

// All lists every generation.
func (s *DoGroupSource) All() ([]mappable.Entity, error) {
	var generations []DoGroupGeneration
	if err := s.db.Find(&generations).Error; err != nil {
		return nil, err
	}

	out := make([]mappable.Entity, 0, len(generations))
	for _, g := range generations {
		out = append(out, &DoGroupEntity{db: s.db, record: g})
	}

	return out, nil
}
