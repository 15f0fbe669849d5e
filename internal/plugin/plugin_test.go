package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatChanges(t *testing.T) {
	testCases := []struct {
		name    string
		changes []Change
		want    string
	}{
		{
			name:    "empty",
			changes: nil,
			want:    "",
		},
		{
			name:    "single category",
			changes: []Change{NewChange("account", "jdoe created")},
			want:    "account: jdoe created",
		},
		{
			name: "multiple categories",
			changes: []Change{
				NewChange("account", "jdoe created"),
				NewChange("groups", "+board", "-alumni"),
			},
			want: "account: jdoe created; groups: +board, -alumni",
		},
		{
			name:    "category without items",
			changes: []Change{NewChange("forwarding enabled")},
			want:    "forwarding enabled",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatChanges(tc.changes))
		})
	}
}

func TestFieldChange(t *testing.T) {
	assert.Equal(t, `name: "Jane Doe" -> "Jane Doe-Smith"`, FieldChange("name", "Jane Doe", "Jane Doe-Smith"))
}

func TestIsTransient(t *testing.T) {
	base := errors.New("connection refused")

	assert.True(t, IsTransient(NewTransientError("directory", "bind", base)))
	assert.False(t, IsTransient(NewBackendError("directory", "add", base)))
	assert.False(t, IsTransient(base))
	assert.False(t, IsTransient(nil))

	// Wrapped transient errors are still recognized.
	wrapped := NewTransientError("groupware", "get user", base)
	assert.True(t, IsTransient(errors.Join(errors.New("context"), wrapped)))
	assert.ErrorIs(t, wrapped, base)
}
