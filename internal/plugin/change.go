package plugin

import (
	"fmt"
	"strings"
)

// Change is one reported unit of reconciliation work: a category such as
// "account" or "groups" and the affected items.
type Change struct {
	// Category names what kind of thing changed.
	Category string
	// Items are the individual changes, already human readable.
	Items []string
}

// NewChange builds a change for one category.
func NewChange(category string, items ...string) Change {
	return Change{Category: category, Items: items}
}

// FieldChange formats a per-field diff item as "field: old -> new".
func FieldChange(field, old, now string) string {
	return fmt.Sprintf("%s: %q -> %q", field, old, now)
}

// FormatChanges renders a change list for logs and the audit trail.
func FormatChanges(changes []Change) string {
	if len(changes) == 0 {
		return ""
	}

	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		if len(c.Items) == 0 {
			parts = append(parts, c.Category)
			continue
		}
		parts = append(parts, c.Category+": "+strings.Join(c.Items, ", "))
	}

	return strings.Join(parts, "; ")
}
