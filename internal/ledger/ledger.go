// Package ledger implements resolution and graph queries over the mapping
// ledger: get-or-create of mappings, needed-state evaluation, group and
// member resolution including manual edges, and alias computation.
package ledger

import (
	"errors"

	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/db/controller/membership"
	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/mappable"
)

const (
	typeRefQueryPattern = "type = ? AND external_ref = ?"
)

var (
	// ErrMappingNotFound is returned when no mapping exists for an entity.
	ErrMappingNotFound = errors.New("mapping not found")
	// ErrMappingExists is returned when creating a mapping that already exists.
	ErrMappingExists = errors.New("mapping already exists")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Ledger binds the mapping tables to the registry of entity sources.
type Ledger struct {
	db       *gorm.DB
	registry *mappable.Registry
	cfg      config.Engine
}

// New creates a ledger over the given database and entity registry.
func New(db *gorm.DB, registry *mappable.Registry, cfg config.Engine) *Ledger {
	return &Ledger{db: db, registry: registry, cfg: cfg}
}

// DB exposes the underlying database handle for controller calls.
func (l *Ledger) DB() *gorm.DB { return l.db }

// Registry exposes the entity source registry.
func (l *Ledger) Registry() *mappable.Registry { return l.registry }

// Find retrieves the existing mapping for an entity, without side effects.
func (l *Ledger) Find(e mappable.Entity) (*models.Mapping, error) {
	if l.db == nil {
		return nil, ErrDBNil
	}

	var mp models.Mapping
	result := l.db.Where(typeRefQueryPattern, e.MappableType(), e.MappableID()).First(&mp)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMappingNotFound
		}
		return nil, result.Error
	}

	return &mp, nil
}

// Get retrieves a mapping by its id.
func (l *Ledger) Get(id uint) (*models.Mapping, error) {
	if l.db == nil {
		return nil, ErrDBNil
	}

	var mp models.Mapping
	result := l.db.First(&mp, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMappingNotFound
		}
		return nil, result.Error
	}

	return &mp, nil
}

// Create inserts a new, initially inactive mapping seeded from the entity.
// Fails if the entity already has one.
func (l *Ledger) Create(e mappable.Entity) (*models.Mapping, error) {
	if l.db == nil {
		return nil, ErrDBNil
	}

	if _, err := l.Find(e); err == nil {
		return nil, ErrMappingExists
	} else if !errors.Is(err, ErrMappingNotFound) {
		return nil, err
	}

	mp := &models.Mapping{
		Type:        e.MappableType(),
		ExternalRef: e.MappableID(),
		Name:        e.Name(),
		Email:       e.Email(),
		ShortName:   e.ShortName(),
		Active:      false,
	}

	result := l.db.Create(mp)
	if result.Error != nil {
		return nil, result.Error
	}

	return mp, nil
}

// Wrap returns the entity's mapping, creating one if absent.
func (l *Ledger) Wrap(e mappable.Entity) (*models.Mapping, error) {
	mp, err := l.Find(e)
	if err == nil {
		return mp, nil
	}
	if !errors.Is(err, ErrMappingNotFound) {
		return nil, err
	}

	return l.Create(e)
}

// Entity resolves the internal entity behind a mapping.
func (l *Ledger) Entity(mp *models.Mapping) (mappable.Entity, error) {
	return l.registry.Resolve(mp.Type, mp.ExternalRef)
}

// SetActive persists the mapping's active flag. Only the reconciliation
// engine calls this.
func (l *Ledger) SetActive(mp *models.Mapping, active bool) error {
	if l.db == nil {
		return ErrDBNil
	}

	mp.Active = active

	return l.db.Model(&models.Mapping{}).Where("id = ?", mp.ID).Update("active", active).Error
}

// Save persists mapping fields owned by the caller, such as a plugin's
// external-identity slot.
func (l *Ledger) Save(mp *models.Mapping) error {
	if l.db == nil {
		return ErrDBNil
	}

	return l.db.Save(mp).Error
}

// IsNeeded reports whether a mapping needs backend representation: the
// entity's own rule, or any manual edge touching the mapping. A mapping
// whose entity no longer exists is never needed.
func (l *Ledger) IsNeeded(mp *models.Mapping) (bool, error) {
	e, err := l.Entity(mp)
	if err != nil {
		if errors.Is(err, mappable.ErrEntityNotFound) {
			return false, nil
		}
		return false, err
	}

	needed, err := e.Needed()
	if err != nil || needed {
		return needed, err
	}

	asMember, err := membership.ForMember(l.db, mp.ID)
	if err != nil {
		return false, err
	}
	if len(asMember) > 0 {
		return true, nil
	}

	asGroup, err := membership.ForGroup(l.db, mp.ID)
	if err != nil {
		return false, err
	}

	return len(asGroup) > 0, nil
}

// ActiveMappings lists every mapping currently flagged active.
func (l *Ledger) ActiveMappings() ([]models.Mapping, error) {
	if l.db == nil {
		return nil, ErrDBNil
	}

	var mappings []models.Mapping
	result := l.db.Where("active = ?", true).Find(&mappings)
	if result.Error != nil {
		return nil, result.Error
	}

	return mappings, nil
}
