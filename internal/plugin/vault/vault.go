// Package vault reconciles groups flagged for the secrets vault: an
// organization per flagged mapping, with members invited by email.
package vault

import (
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/ledger"
	"github.com/claudia-sync/claudia/internal/plugin"
)

const backendName = "vault"

// ErrNotFound is returned when no vault object matches the lookup.
var ErrNotFound = errors.New("vault object not found")

// Member status values reported by the vault.
const (
	StatusInvited  = "invited"
	StatusAccepted = "accepted"
)

// Org is an organization in the vault.
type Org struct {
	ID   string
	Name string
}

// OrgMember is a member of a vault organization. Invited members have not
// accepted yet; both states count as present.
type OrgMember struct {
	ID     string
	Email  string
	Status string
}

// Client is the vault operation surface the plugin reconciles through.
type Client interface {
	OrgByName(name string) (*Org, error)
	CreateOrg(name string) (string, error)
	DeleteOrg(id string) error

	OrgMembers(orgID string) ([]OrgMember, error)
	// Invite invites an address into the organization.
	Invite(orgID, email string) error
	RemoveMember(orgID, memberID string) error
}

// Plugin reconciles vault organizations for flagged groups. The vault has
// no account provisioning; people join by accepting an emailed invite.
type Plugin struct {
	plugin.Base
	client Client
}

// New creates the vault plugin over the given client.
func New(client Client) *Plugin {
	return &Plugin{client: client}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return backendName }

// Reconcile implements plugin.Plugin.
func (p *Plugin) Reconcile(orch plugin.Orchestrator, mp *models.Mapping, fix bool) ([]plugin.Change, error) {
	if !mp.IsGroupType() || mp.ShortName == "" {
		return nil, nil
	}

	l := orch.Ledger()

	ent, err := l.Entity(mp)
	if err != nil || ent.ExtraAttrs()["vault"] != "true" {
		return p.removeUnflagged(mp, fix)
	}

	needed, err := l.IsNeeded(mp)
	if err != nil {
		return nil, err
	}

	org, err := p.client.OrgByName(mp.ShortName)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if org == nil {
		if !needed {
			return nil, nil
		}

		if fix {
			id, err := p.client.CreateOrg(mp.ShortName)
			if err != nil {
				return nil, err
			}
			log.Info().Uint("mapping", mp.ID).Str("org", mp.ShortName).Msg("vault organization created")
			org = &Org{ID: id, Name: mp.ShortName}

			if _, err := p.diffMembers(l, mp, org, fix); err != nil {
				return nil, err
			}
		}

		return []plugin.Change{plugin.NewChange("organization", mp.ShortName + " created")}, nil
	}

	if !needed {
		if fix {
			if err := p.client.DeleteOrg(org.ID); err != nil {
				return nil, err
			}
			log.Info().Uint("mapping", mp.ID).Str("org", org.Name).Msg("vault organization deleted")
		}

		return []plugin.Change{plugin.NewChange("organization", mp.ShortName + " deleted")}, nil
	}

	return p.diffMembers(l, mp, org, fix)
}

// removeUnflagged deletes a leftover organization for a group whose vault
// flag was cleared.
func (p *Plugin) removeUnflagged(mp *models.Mapping, fix bool) ([]plugin.Change, error) {
	org, err := p.client.OrgByName(mp.ShortName)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if fix {
		if err := p.client.DeleteOrg(org.ID); err != nil {
			return nil, err
		}
		log.Info().Uint("mapping", mp.ID).Str("org", org.Name).Msg("vault organization deleted")
	}

	return []plugin.Change{plugin.NewChange("organization", mp.ShortName + " deleted")}, nil
}

func (p *Plugin) diffMembers(l *ledger.Ledger, mp *models.Mapping, org *Org, fix bool) ([]plugin.Change, error) {
	memberMappings, err := l.Members(mp, ledger.SelectAll, false)
	if err != nil {
		return nil, err
	}

	desired := map[string]bool{}
	for i := range memberMappings {
		m := &memberMappings[i]
		if m.IsPersonType() && m.Active && m.Email != "" {
			desired[strings.ToLower(m.Email)] = true
		}
	}

	actual, err := p.client.OrgMembers(org.ID)
	if err != nil {
		return nil, err
	}
	actualSet := map[string]bool{}
	for _, m := range actual {
		actualSet[strings.ToLower(m.Email)] = true
	}

	var items []string

	for _, m := range actual {
		if desired[strings.ToLower(m.Email)] {
			continue
		}
		items = append(items, "-"+m.Email)
		if fix {
			if err := p.client.RemoveMember(org.ID, m.ID); err != nil {
				return nil, err
			}
		}
	}

	for email := range desired {
		if actualSet[email] {
			continue
		}
		items = append(items, "+"+email)
		if fix {
			if err := p.client.Invite(org.ID, email); err != nil {
				return nil, err
			}
		}
	}

	if len(items) == 0 {
		return nil, nil
	}

	return []plugin.Change{plugin.NewChange("members", items...)}, nil
}
