package members

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/mappable"
)

// CommitteeEntity adapts a Committee record to the mappable surface.
type CommitteeEntity struct {
	mappable.Base
	db     *gorm.DB
	record Committee
}

// MappableID returns the committee's id in the member administration.
func (c *CommitteeEntity) MappableID() uint { return c.record.ID }

// MappableType tags the entity as a committee.
func (c *CommitteeEntity) MappableType() models.MappingType { return models.MappingTypeCommittee }

// Name returns the committee's display name.
func (c *CommitteeEntity) Name() string { return c.record.Name }

// Email returns the committee's e-mail address.
func (c *CommitteeEntity) Email() string { return c.record.Email }

// ShortName returns the committee's abbreviation.
func (c *CommitteeEntity) ShortName() string { return c.record.Abbreviation }

// Active reports whether the committee still exists.
func (c *CommitteeEntity) Active() bool { return c.record.Abolished == nil }

// Needed applies the default rule.
func (c *CommitteeEntity) Needed() (bool, error) { return mappable.DefaultNeeded(c) }

// Members lists the persons holding a seat, optionally including persons
// whose seat has ended.
func (c *CommitteeEntity) Members(includeFormer bool) ([]mappable.Entity, error) {
	now := time.Now()

	query := c.db.Where("committee_id = ? AND begin_date <= ?", c.record.ID, now)
	if !includeFormer {
		query = query.Where("end_date IS NULL OR end_date > ?", now)
	}

	var seats []CommitteeMember
	if err := query.Find(&seats).Error; err != nil {
		return nil, err
	}

	var out []mappable.Entity
	seen := map[uint]bool{}
	for _, seat := range seats {
		if seen[seat.PersonID] {
			continue
		}
		seen[seat.PersonID] = true

		var p Person
		if err := c.db.First(&p, seat.PersonID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, &PersonEntity{db: c.db, record: p})
	}

	return out, nil
}

// IsGroup reports true.
func (c *CommitteeEntity) IsGroup() bool { return true }

// CommitteeSource resolves committees from the member administration.
type CommitteeSource struct {
	db *gorm.DB
}

// NewCommitteeSource creates a source over the given administration database.
func NewCommitteeSource(db *gorm.DB) *CommitteeSource {
	return &CommitteeSource{db: db}
}

// Type returns the committee mapping type.
func (s *CommitteeSource) Type() models.MappingType { return models.MappingTypeCommittee }

// ByID resolves one committee.
func (s *CommitteeSource) ByID(id uint) (mappable.Entity, error) {
	var c Committee
	if err := s.db.First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mappable.ErrEntityNotFound
		}
		return nil, err
	}

	return &CommitteeEntity{db: s.db, record: c}, nil
}

// All lists every committee, abolished ones included.
func (s *CommitteeSource) All() ([]mappable.Entity, error) {
	var committees []Committee
	if err := s.db.Find(&committees).Error; err != nil {
		return nil, err
	}

	out := make([]mappable.Entity, 0, len(committees))
	for _, c := range committees {
		out = append(out, &CommitteeEntity{db: s.db, record: c})
	}

	return out, nil
}
