package ledger

import (
	"errors"

	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/mappable"
)

// FieldChange records one mapping field brought in line with its entity.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// CheckBasics diffs the mapping's own fields against the entity and, under
// fix, persists the entity's current values. A mapping whose entity no
// longer exists yields no changes.
func (l *Ledger) CheckBasics(mp *models.Mapping, fix bool) ([]FieldChange, error) {
	e, err := l.Entity(mp)
	if err != nil {
		if errors.Is(err, mappable.ErrEntityNotFound) || errors.Is(err, mappable.ErrUnknownType) {
			return nil, nil
		}
		return nil, err
	}

	var changes []FieldChange

	diff := func(field, old, now string, set func(string)) {
		if old == now {
			return
		}
		changes = append(changes, FieldChange{Field: field, Old: old, New: now})
		if fix {
			set(now)
		}
	}

	diff("name", mp.Name, e.Name(), func(v string) { mp.Name = v })
	diff("email", mp.Email, e.Email(), func(v string) { mp.Email = v })
	diff("short_name", mp.ShortName, e.ShortName(), func(v string) { mp.ShortName = v })

	if fix && len(changes) > 0 {
		if err := l.Save(mp); err != nil {
			return nil, err
		}
	}

	return changes, nil
}
