// Package idp reconciles mappings against the single-sign-on identity
// provider: person accounts and posix groups whose gid is derived from the
// mapping id.
package idp

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/ledger"
	"github.com/claudia-sync/claudia/internal/plugin"
)

const backendName = "idp"

// ErrNotFound is returned when no IdP object matches the lookup.
var ErrNotFound = errors.New("idp object not found")

// Account is a person account at the identity provider.
type Account struct {
	ID       string
	Username string
	Name     string
	Email    string
}

// PosixGroup is a group at the identity provider.
type PosixGroup struct {
	ID   string
	Name string
	GID  int
	// MemberUsernames lists the member accounts by username.
	MemberUsernames []string
}

// Client is the IdP operation surface the plugin reconciles through.
type Client interface {
	AccountByID(id string) (*Account, error)
	CreateAccount(a Account) (string, error)
	UpdateAccount(id string, a Account) error
	DeleteAccount(id string) error

	GroupByName(name string) (*PosixGroup, error)
	CreateGroup(g PosixGroup) (string, error)
	DeleteGroup(id string) error
	SetGroupMembers(id string, usernames []string) error
}

// Plugin reconciles IdP accounts and posix groups. The IdP mirrors the
// directory closely; accounts are removed with the mapping's deactivation
// rather than a separate grace period, because the directory account's
// grace period already gates the person's overall lifetime.
type Plugin struct {
	plugin.Base
	client Client
	cfg    config.IDP
}

// New creates the IdP plugin over the given client.
func New(client Client, cfg config.IDP) *Plugin {
	return &Plugin{client: client, cfg: cfg}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return backendName }

// Reconcile implements plugin.Plugin.
func (p *Plugin) Reconcile(orch plugin.Orchestrator, mp *models.Mapping, fix bool) ([]plugin.Change, error) {
	l := orch.Ledger()

	needed, err := l.NeedsDirectoryAccount(mp)
	if err != nil {
		return nil, err
	}

	switch {
	case mp.IsPersonType():
		return p.reconcileAccount(orch, mp, needed, fix)
	case mp.IsGroupType() && mp.Type != models.MappingTypeSharedDrive:
		return p.reconcileGroup(l, mp, needed, fix)
	default:
		return nil, nil
	}
}

func (p *Plugin) reconcileAccount(orch plugin.Orchestrator, mp *models.Mapping, needed, fix bool) ([]plugin.Change, error) {
	l := orch.Ledger()

	var account *Account
	if mp.IDPID != "" {
		var err error
		account, err = p.client.AccountByID(mp.IDPID)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			log.Warn().Uint("mapping", mp.ID).Str("id", mp.IDPID).Msg("stale idp id")
			if fix {
				mp.IDPID = ""
				if err := l.Save(mp); err != nil {
					return nil, err
				}
			}
			account = nil
		}
	}

	desired := Account{Username: mp.ShortName, Name: mp.Name, Email: mp.Email}

	if account == nil {
		if !needed {
			return nil, nil
		}

		if fix {
			id, err := p.client.CreateAccount(desired)
			if err != nil {
				return nil, err
			}
			mp.IDPID = id
			if err := l.Save(mp); err != nil {
				return nil, err
			}
			log.Info().Uint("mapping", mp.ID).Str("username", desired.Username).
				Msg("idp account created")
			orch.NotifyAccountCreated(backendName, mp, "")
		}

		return []plugin.Change{plugin.NewChange("account", mp.ShortName + " created")}, nil
	}

	if !needed {
		if fix {
			if err := p.client.DeleteAccount(mp.IDPID); err != nil {
				return nil, err
			}
			mp.IDPID = ""
			if err := l.Save(mp); err != nil {
				return nil, err
			}
			log.Info().Uint("mapping", mp.ID).Str("username", account.Username).
				Msg("idp account deleted")
		}

		return []plugin.Change{plugin.NewChange("account", mp.ShortName + " deleted")}, nil
	}

	var items []string
	diff := func(field, cur, want string) {
		if cur != want {
			items = append(items, plugin.FieldChange(field, cur, want))
		}
	}
	diff("username", account.Username, desired.Username)
	diff("name", account.Name, desired.Name)
	diff("email", account.Email, desired.Email)

	if len(items) == 0 {
		return nil, nil
	}

	if fix {
		if err := p.client.UpdateAccount(mp.IDPID, desired); err != nil {
			return nil, err
		}
	}

	return []plugin.Change{plugin.NewChange("account", items...)}, nil
}

// reconcileGroup keeps a posix group per directory-bearing group mapping.
// The gid is the mapping id offset by the configured base, which keeps it
// stable across renames.
func (p *Plugin) reconcileGroup(l *ledger.Ledger, mp *models.Mapping, needed, fix bool) ([]plugin.Change, error) {
	group, err := p.client.GroupByName(mp.ShortName)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if group == nil {
		if !needed {
			return nil, nil
		}

		desired := PosixGroup{Name: mp.ShortName, GID: p.cfg.PosixGIDBase + int(mp.ID)}
		if fix {
			id, err := p.client.CreateGroup(desired)
			if err != nil {
				return nil, err
			}
			usernames, err := p.memberUsernames(l, mp)
			if err != nil {
				return nil, err
			}
			if err := p.client.SetGroupMembers(id, usernames); err != nil {
				return nil, err
			}
			log.Info().Uint("mapping", mp.ID).Str("group", desired.Name).Int("gid", desired.GID).
				Msg("idp group created")
		}

		return []plugin.Change{plugin.NewChange("group", mp.ShortName + " created")}, nil
	}

	if !needed {
		if fix {
			if err := p.client.DeleteGroup(group.ID); err != nil {
				return nil, err
			}
			log.Info().Uint("mapping", mp.ID).Str("group", group.Name).Msg("idp group deleted")
		}

		return []plugin.Change{plugin.NewChange("group", mp.ShortName + " deleted")}, nil
	}

	usernames, err := p.memberUsernames(l, mp)
	if err != nil {
		return nil, err
	}

	if sameMembers(group.MemberUsernames, usernames) {
		return nil, nil
	}

	if fix {
		if err := p.client.SetGroupMembers(group.ID, usernames); err != nil {
			return nil, err
		}
	}

	return []plugin.Change{plugin.NewChange("members", diffItems(group.MemberUsernames, usernames)...)}, nil
}

// memberUsernames lists the short names of the group's directory-selected
// members that hold an account.
func (p *Plugin) memberUsernames(l *ledger.Ledger, mp *models.Mapping) ([]string, error) {
	memberMappings, err := l.Members(mp, ledger.SelectDirectory, false)
	if err != nil {
		return nil, err
	}

	var out []string
	for i := range memberMappings {
		m := &memberMappings[i]
		if !m.IsPersonType() || m.ShortName == "" {
			continue
		}
		needsDir, err := l.NeedsDirectoryAccount(m)
		if err != nil {
			return nil, err
		}
		if needsDir {
			out = append(out, m.ShortName)
		}
	}

	return out, nil
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := map[string]bool{}
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}

func diffItems(actual, desired []string) []string {
	actualSet := map[string]bool{}
	for _, v := range actual {
		actualSet[v] = true
	}
	desiredSet := map[string]bool{}
	for _, v := range desired {
		desiredSet[v] = true
	}

	var items []string
	for _, v := range actual {
		if !desiredSet[v] {
			items = append(items, "-"+v)
		}
	}
	for _, v := range desired {
		if !actualSet[v] {
			items = append(items, "+"+v)
		}
	}

	return items
}
