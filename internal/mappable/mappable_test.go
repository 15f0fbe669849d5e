package mappable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudia-sync/claudia/internal/db/models"
)

// fakeEntity is a minimal Entity for registry and needed-rule tests.
type fakeEntity struct {
	Base
	id      uint
	typ     models.MappingType
	name    string
	active  bool
	groups  []Entity
	members []Entity
}

func (f *fakeEntity) MappableID() uint                 { return f.id }
func (f *fakeEntity) MappableType() models.MappingType { return f.typ }
func (f *fakeEntity) Name() string                     { return f.name }
func (f *fakeEntity) Active() bool                     { return f.active }
func (f *fakeEntity) Needed() (bool, error)            { return DefaultNeeded(f) }
func (f *fakeEntity) Groups() ([]Entity, error)        { return f.groups, nil }
func (f *fakeEntity) Members(_ bool) ([]Entity, error) { return f.members, nil }

// fakeSource serves fakeEntity values for one type.
type fakeSource struct {
	typ      models.MappingType
	entities map[uint]*fakeEntity
}

func (s *fakeSource) Type() models.MappingType { return s.typ }

func (s *fakeSource) ByID(id uint) (Entity, error) {
	e, ok := s.entities[id]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return e, nil
}

func (s *fakeSource) All() ([]Entity, error) {
	out := make([]Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	return out, nil
}

func TestDefaultNeeded(t *testing.T) {
	other := &fakeEntity{id: 2, typ: models.MappingTypeExtraGroup, active: true}

	testCases := []struct {
		name   string
		entity *fakeEntity
		want   bool
	}{
		{
			name:   "inactive and unconnected",
			entity: &fakeEntity{id: 1},
			want:   false,
		},
		{
			name:   "active",
			entity: &fakeEntity{id: 1, active: true},
			want:   true,
		},
		{
			name:   "inactive with group",
			entity: &fakeEntity{id: 1, groups: []Entity{other}},
			want:   true,
		},
		{
			name:   "inactive with members",
			entity: &fakeEntity{id: 1, members: []Entity{other}},
			want:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			needed, err := tc.entity.Needed()
			require.NoError(t, err)
			assert.Equal(t, tc.want, needed)
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	persons := &fakeSource{
		typ: models.MappingTypePerson,
		entities: map[uint]*fakeEntity{
			1: {id: 1, typ: models.MappingTypePerson, name: "Test Person"},
		},
	}
	groups := &fakeSource{typ: models.MappingTypeExtraGroup, entities: map[uint]*fakeEntity{}}

	require.NoError(t, r.Register(persons))
	require.NoError(t, r.Register(groups))
	require.ErrorIs(t, r.Register(persons), ErrSourceAlreadyRegistered)

	assert.Equal(t, []models.MappingType{models.MappingTypePerson, models.MappingTypeExtraGroup}, r.Types())

	e, err := r.Resolve(models.MappingTypePerson, 1)
	require.NoError(t, err)
	assert.Equal(t, "Test Person", e.Name())

	_, err = r.Resolve(models.MappingTypePerson, 2)
	require.ErrorIs(t, err, ErrEntityNotFound)

	_, err = r.Resolve(models.MappingTypeContact, 1)
	require.ErrorIs(t, err, ErrUnknownType)
}
