package members

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/mappable"
)

// PersonEntity adapts a Person record to the mappable surface.
type PersonEntity struct {
	mappable.Base
	db     *gorm.DB
	record Person
}

// MappableID returns the person's id in the member administration.
func (p *PersonEntity) MappableID() uint { return p.record.ID }

// MappableType tags the entity as a person.
func (p *PersonEntity) MappableType() models.MappingType { return models.MappingTypePerson }

// Name returns the person's full display name.
func (p *PersonEntity) Name() string {
	return strings.TrimSpace(p.record.FirstName + " " + p.record.LastName)
}

// Email returns the person's e-mail address.
func (p *PersonEntity) Email() string { return p.record.Email }

// ShortName returns the person's account name.
func (p *PersonEntity) ShortName() string { return p.record.Username }

// Active reports whether the person is an active member.
func (p *PersonEntity) Active() bool { return p.record.Member }

// Needed applies the default rule plus the consumption-mandate case: a
// person with an active mandate and at least one registered card keeps their
// accounts even without an active membership.
func (p *PersonEntity) Needed() (bool, error) {
	needed, err := mappable.DefaultNeeded(p)
	if err != nil || needed {
		return needed, err
	}

	if !p.record.ConsumptionMandate {
		return false, nil
	}

	cards, err := p.RFIDCards()
	if err != nil {
		return false, err
	}

	return len(cards) > 0, nil
}

// Groups lists the committees and do-group generations the person currently
// belongs to.
func (p *PersonEntity) Groups() ([]mappable.Entity, error) {
	now := time.Now()

	var seats []CommitteeMember
	err := p.db.Where("person_id = ? AND begin_date <= ? AND (end_date IS NULL OR end_date > ?)",
		p.record.ID, now, now).Find(&seats).Error
	if err != nil {
		return nil, err
	}

	var out []mappable.Entity
	for _, seat := range seats {
		var c Committee
		if err := p.db.First(&c, seat.CommitteeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, &CommitteeEntity{db: p.db, record: c})
	}

	var participations []DoGroupParticipant
	if err := p.db.Where("person_id = ?", p.record.ID).Find(&participations).Error; err != nil {
		return nil, err
	}

	for _, part := range participations {
		var g DoGroupGeneration
		if err := p.db.First(&g, part.GenerationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, &DoGroupEntity{db: p.db, record: g})
	}

	return out, nil
}

// ExtraAttrs carries the person's shell preference and webmaster flag.
func (p *PersonEntity) ExtraAttrs() map[string]string {
	attrs := map[string]string{}
	if p.record.Shell != "" {
		attrs["shell"] = p.record.Shell
	}
	if p.record.Webmaster {
		attrs["webmaster"] = "true"
	}

	return attrs
}

// IsPerson reports true.
func (p *PersonEntity) IsPerson() bool { return true }

// GivenName returns the person's first name.
func (p *PersonEntity) GivenName() string { return p.record.FirstName }

// Surname returns the person's family name.
func (p *PersonEntity) Surname() string { return p.record.LastName }

// PersonalAliases derives the person's alias local parts from their name.
func (p *PersonEntity) PersonalAliases() []string {
	first := aliasPart(p.record.FirstName)
	last := aliasPart(p.record.LastName)
	if first == "" || last == "" {
		return nil
	}

	return []string{first + "." + last}
}

// aliasPart lowercases a name part and strips characters that cannot appear
// in an address local part.
func aliasPart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			// collapsed
		}
	}

	return b.String()
}

// RFIDCards lists the UIDs of the person's registered cards.
func (p *PersonEntity) RFIDCards() ([]string, error) {
	var cards []RFIDCard
	if err := p.db.Where("person_id = ?", p.record.ID).Find(&cards).Error; err != nil {
		return nil, err
	}

	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.UID)
	}

	return out, nil
}

// HasConsumptionMandate reports whether the person has an active mandate.
func (p *PersonEntity) HasConsumptionMandate() bool { return p.record.ConsumptionMandate }

// AccountNumber returns the person's student or employee number for
// backends keyed by it, preferring the student number.
func (p *PersonEntity) AccountNumber() string {
	if p.record.StudentNumber != "" {
		return p.record.StudentNumber
	}

	return p.record.EmployeeNumber
}

// PersonSource resolves persons from the member administration.
type PersonSource struct {
	db *gorm.DB
}

// NewPersonSource creates a source over the given administration database.
func NewPersonSource(db *gorm.DB) *PersonSource {
	return &PersonSource{db: db}
}

// Type returns the person mapping type.
func (s *PersonSource) Type() models.MappingType { return models.MappingTypePerson }

// ByID resolves one person.
func (s *PersonSource) ByID(id uint) (mappable.Entity, error) {
	var p Person
	if err := s.db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mappable.ErrEntityNotFound
		}
		return nil, err
	}

	return &PersonEntity{db: s.db, record: p}, nil
}

// All lists every person known to the administration.
func (s *PersonSource) All() ([]mappable.Entity, error) {
	var persons []Person
	if err := s.db.Find(&persons).Error; err != nil {
		return nil, err
	}

	out := make([]mappable.Entity, 0, len(persons))
	for _, p := range persons {
		out = append(out, &PersonEntity{db: s.db, record: p})
	}

	return out, nil
}
