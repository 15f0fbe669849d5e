package mappable

import (
	"errors"

	"github.com/claudia-sync/claudia/internal/db/models"
)

var (
	// ErrUnknownType is returned when no source is registered for a type.
	ErrUnknownType = errors.New("no source registered for mapping type")
	// ErrEntityNotFound is returned when a source has no entity for an id.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrSourceAlreadyRegistered is returned when a type is registered twice.
	ErrSourceAlreadyRegistered = errors.New("source already registered for mapping type")
)

// Source provides lookup over one internal entity kind.
type Source interface {
	// Type is the mapping type the source serves.
	Type() models.MappingType
	// ByID resolves one entity, ErrEntityNotFound if absent.
	ByID(id uint) (Entity, error)
	// All lists every instance of the kind, active or not.
	All() ([]Entity, error)
}

// Registry holds the entity sources the engine can resolve through.
// Sources are iterated in registration order.
type Registry struct {
	sources map[models.MappingType]Source
	order   []models.MappingType
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[models.MappingType]Source),
	}
}

// Register adds a source for its entity kind.
func (r *Registry) Register(s Source) error {
	if _, ok := r.sources[s.Type()]; ok {
		return ErrSourceAlreadyRegistered
	}

	r.sources[s.Type()] = s
	r.order = append(r.order, s.Type())

	return nil
}

// Source returns the source registered for a type.
func (r *Registry) Source(t models.MappingType) (Source, error) {
	s, ok := r.sources[t]
	if !ok {
		return nil, ErrUnknownType
	}

	return s, nil
}

// Resolve looks up one entity by type and id.
func (r *Registry) Resolve(t models.MappingType, id uint) (Entity, error) {
	s, err := r.Source(t)
	if err != nil {
		return nil, err
	}

	return s.ByID(id)
}

// Types lists the registered types in registration order.
func (r *Registry) Types() []models.MappingType {
	out := make([]models.MappingType, len(r.order))
	copy(out, r.order)

	return out
}
