package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/db/controller/alias"
	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/members"
)

func TestBuildPlugins(t *testing.T) {
	cfg := &config.Config{
		Engine: config.Engine{Plugins: []string{"lognotice", "timeline", "pos"}},
		POS:    config.POS{Enabled: true, BaseURL: "https://pos.example.net"},
	}

	plugins, err := buildPlugins(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, plugins, 3)

	// Registration order is preserved; later plugins may depend on it.
	assert.Equal(t, "lognotice", plugins[0].Name())
	assert.Equal(t, "timeline", plugins[1].Name())
	assert.Equal(t, "pos", plugins[2].Name())
}

func TestBuildPluginsRejectsDisabledBackend(t *testing.T) {
	cfg := &config.Config{
		Engine: config.Engine{Plugins: []string{"directory"}},
	}

	_, err := buildPlugins(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPluginDisabled))
}

func TestBuildPluginsRejectsUnknownName(t *testing.T) {
	cfg := &config.Config{
		Engine: config.Engine{Plugins: []string{"telegraph"}},
	}

	_, err := buildPlugins(context.Background(), cfg)
	require.Error(t, err)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	require.Error(t, err)
}

func setupTestDaemon(t *testing.T) *Daemon {
	t.Helper()

	cfg := &config.Config{
		DB: config.DB{GormEngine: "sqlite", Name: ":memory:"},
		Engine: config.Engine{
			Plugins:      []string{"lognotice"},
			MailDomains:  []string{"example.net"},
			GracePeriod:  30 * 24 * time.Hour,
			RetryCeiling: 3,
			CycleTTL:     time.Hour,
			Workers:      1,
		},
		Groupware: config.Groupware{AllowedAliasDomains: []string{"example.net"}},
	}

	d, err := New(context.Background(), cfg)
	require.NoError(t, err)

	// The administration normally owns these tables.
	require.NoError(t, d.DB().AutoMigrate(members.AdminModels()...))

	return d
}

// Adding or removing an extra personal alias is validated against the
// allow-list and re-verifies the owning mapping.
func TestPersonalAliasLifecycle(t *testing.T) {
	d := setupTestDaemon(t)

	p := members.Person{Username: "jdoe", FirstName: "Jane", LastName: "Doe", Member: true}
	require.NoError(t, d.DB().Create(&p).Error)

	ent, err := d.Engine().Ledger().Registry().Resolve(models.MappingTypePerson, p.ID)
	require.NoError(t, err)
	mp, err := d.Engine().Ledger().Wrap(ent)
	require.NoError(t, err)

	// A domain outside the allow-list is refused and stores nothing.
	_, err = d.AddPersonalAlias(mp.ID, "jane@elsewhere.com")
	assert.ErrorIs(t, err, alias.ErrAliasDomainNotAllowed)

	cycleID, err := d.AddPersonalAlias(mp.ID, "jane.d@example.net")
	require.NoError(t, err)
	require.NotEmpty(t, cycleID, "adding an alias must start a verification cycle")
	require.NoError(t, d.Engine().RunCycle(cycleID))

	aliases, err := d.Engine().Ledger().PersonalAliases(mp)
	require.NoError(t, err)
	assert.Contains(t, aliases, "jane.d@example.net")

	cycleID, err = d.RemovePersonalAlias(mp.ID, "jane.d@example.net")
	require.NoError(t, err)
	require.NotEmpty(t, cycleID, "removing an alias must start a verification cycle")
	require.NoError(t, d.Engine().RunCycle(cycleID))

	aliases, err = d.Engine().Ledger().PersonalAliases(mp)
	require.NoError(t, err)
	assert.NotContains(t, aliases, "jane.d@example.net")
}
