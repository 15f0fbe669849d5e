// Package sourcehost reconciles groups flagged for the source-code host:
// a host group per flagged mapping, with the group's directory members as
// developer-level members.
package sourcehost

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/ledger"
	"github.com/claudia-sync/claudia/internal/plugin"
)

const backendName = "sourcehost"

// AccessDeveloper is the access level granted to group members.
const AccessDeveloper = 30

// ErrNotFound is returned when no host object matches the lookup.
var ErrNotFound = errors.New("source host object not found")

// HostGroup is a group on the source host.
type HostGroup struct {
	ID   int
	Path string
	Name string
}

// HostMember is a group member on the source host.
type HostMember struct {
	UserID      int
	Username    string
	AccessLevel int
}

// Client is the source-host operation surface the plugin reconciles
// through.
type Client interface {
	// GroupByPath resolves a group by its path slug.
	GroupByPath(path string) (*HostGroup, error)
	CreateGroup(g HostGroup) (int, error)
	DeleteGroup(id int) error

	// UserIDByUsername resolves a host user, ErrNotFound when the person
	// has never signed in.
	UserIDByUsername(username string) (int, error)
	GroupMembers(groupID int) ([]HostMember, error)
	AddGroupMember(groupID, userID, accessLevel int) error
	RemoveGroupMember(groupID, userID int) error
}

// Plugin reconciles source-host groups. Host user accounts are not managed
// here; they appear when a person first signs in through the IdP, so a
// member without an account yet is simply picked up on a later run.
type Plugin struct {
	plugin.Base
	client Client
}

// New creates the source-host plugin over the given client.
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

	flagged, err := p.flaggedForHost(l, mp)
	if err != nil {
		return nil, err
	}

	needed := false
	if flagged {
		needed, err = l.IsNeeded(mp)
		if err != nil {
			return nil, err
		}
	}

	group, err := p.client.GroupByPath(mp.ShortName)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if group == nil {
		if !needed {
			return nil, nil
		}

		if fix {
			id, err := p.client.CreateGroup(HostGroup{Path: mp.ShortName, Name: mp.Name})
			if err != nil {
				return nil, err
			}
			log.Info().Uint("mapping", mp.ID).Str("path", mp.ShortName).
				Msg("source host group created")
			group = &HostGroup{ID: id, Path: mp.ShortName, Name: mp.Name}

			if _, err := p.diffMembers(l, mp, group, fix); err != nil {
				return nil, err
			}
		}

		return []plugin.Change{plugin.NewChange("group", mp.ShortName + " created")}, nil
	}

	if !needed {
		if fix {
			if err := p.client.DeleteGroup(group.ID); err != nil {
				return nil, err
			}
			log.Info().Uint("mapping", mp.ID).Str("path", group.Path).
				Msg("source host group deleted")
		}

		return []plugin.Change{plugin.NewChange("group", mp.ShortName + " deleted")}, nil
	}

	return p.diffMembers(l, mp, group, fix)
}

// flaggedForHost reports whether the mapping's entity opts into source-host
// propagation.
func (p *Plugin) flaggedForHost(l *ledger.Ledger, mp *models.Mapping) (bool, error) {
	ent, err := l.Entity(mp)
	if err != nil {
		return false, nil //nolint:nilerr // entity gone means not flagged
	}

	return ent.ExtraAttrs()["sourcehost"] == "true", nil
}

func (p *Plugin) diffMembers(l *ledger.Ledger, mp *models.Mapping, group *HostGroup, fix bool) ([]plugin.Change, error) {
	memberMappings, err := l.Members(mp, ledger.SelectDirectory, false)
	if err != nil {
		return nil, err
	}

	desired := map[string]bool{}
	for i := range memberMappings {
		m := &memberMappings[i]
		if m.IsPersonType() && m.ShortName != "" && m.Active {
			desired[m.ShortName] = true
		}
	}

	actual, err := p.client.GroupMembers(group.ID)
	if err != nil {
		return nil, err
	}
	actualSet := map[string]bool{}
	for _, m := range actual {
		actualSet[m.Username] = true
	}

	var items []string

	for _, m := range actual {
		if desired[m.Username] {
			continue
		}
		items = append(items, "-"+m.Username)
		if fix {
			if err := p.client.RemoveGroupMember(group.ID, m.UserID); err != nil {
				return nil, err
			}
		}
	}

	for username := range desired {
		if actualSet[username] {
			continue
		}

		userID, err := p.client.UserIDByUsername(username)
		if errors.Is(err, ErrNotFound) {
			// Never signed in; picked up on a later run.
			continue
		}
		if err != nil {
			return nil, err
		}

		items = append(items, "+"+username)
		if fix {
			if err := p.client.AddGroupMember(group.ID, userID, AccessDeveloper); err != nil {
				return nil, err
			}
		}
	}

	if len(items) == 0 {
		return nil, nil
	}

	return []plugin.Change{plugin.NewChange("members", items...)}, nil
}
