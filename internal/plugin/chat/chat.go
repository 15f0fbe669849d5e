// Package chat reconciles group mappings against the chat federation: one
// space per group, attached under a configured parent space. The mapping
// carries the space id; a lost slot is rediscovered through the tag the
// space was created with.
package chat

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/plugin"
)

const backendName = "chat"

// ErrNotFound is returned when no space matches the lookup.
var ErrNotFound = errors.New("chat space not found")

// Space is a group space in the federation.
type Space struct {
	ID   string
	Name string
	// Tag is the stable marker the space was created with, used to find
	// it again when the local id slot is lost.
	Tag string
}

// Client is the chat operation surface the plugin reconciles through.
type Client interface {
	SpaceByID(id string) (*Space, error)
	// SpaceByTag finds the space carrying the tag under the parent space.
	SpaceByTag(tag string) (*Space, error)
	// CreateSpace creates a tagged space under the parent space.
	CreateSpace(name, tag string) (string, error)
	RenameSpace(id, name string) error
	// ArchiveSpace retires the space; chat history is kept.
	ArchiveSpace(id string) error
}

// Plugin reconciles chat spaces for group mappings. Membership is not
// synchronized here; people join spaces through the federation's own
// directory-backed invites.
type Plugin struct {
	plugin.Base
	client Client
	cfg    config.Chat
}

// New creates the chat plugin over the given client.
func New(client Client, cfg config.Chat) *Plugin {
	return &Plugin{client: client, cfg: cfg}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return backendName }

func spaceTag(mp *models.Mapping) string {
	return "claudia/" + string(mp.Type) + "/" + mp.ShortName
}

// Reconcile implements plugin.Plugin.
func (p *Plugin) Reconcile(orch plugin.Orchestrator, mp *models.Mapping, fix bool) ([]plugin.Change, error) {
	if !mp.IsGroupType() || mp.Type == models.MappingTypeAliasGroup ||
		mp.Type == models.MappingTypeSharedDrive || mp.ShortName == "" {
		return nil, nil
	}

	l := orch.Ledger()

	needed, err := l.IsNeeded(mp)
	if err != nil {
		return nil, err
	}

	space, err := p.resolveSpace(orch, mp, fix)
	if err != nil {
		return nil, err
	}

	if space == nil {
		if !needed {
			return nil, nil
		}

		if fix {
			id, err := p.client.CreateSpace(mp.Name, spaceTag(mp))
			if err != nil {
				return nil, err
			}
			mp.ChatSpaceID = id
			if err := l.Save(mp); err != nil {
				return nil, err
			}
			log.Info().Uint("mapping", mp.ID).Str("space", id).Msg("chat space created")
			orch.NotifyAccountCreated(backendName, mp, "")
		}

		return []plugin.Change{plugin.NewChange("space", mp.Name + " created")}, nil
	}

	if !needed {
		if fix {
			if err := p.client.ArchiveSpace(space.ID); err != nil {
				return nil, err
			}
			mp.ChatSpaceID = ""
			if err := l.Save(mp); err != nil {
				return nil, err
			}
			log.Info().Uint("mapping", mp.ID).Str("space", space.ID).Msg("chat space archived")
		}

		return []plugin.Change{plugin.NewChange("space", mp.Name + " archived")}, nil
	}

	if space.Name != mp.Name {
		if fix {
			if err := p.client.RenameSpace(space.ID, mp.Name); err != nil {
				return nil, err
			}
		}

		return []plugin.Change{plugin.NewChange("space",
			plugin.FieldChange("name", space.Name, mp.Name))}, nil
	}

	return nil, nil
}

// resolveSpace resolves the mapping's space: by the id slot first, then by
// tag rediscovery for mappings that predate the slot or lost it. A
// rediscovered id is written back under fix.
func (p *Plugin) resolveSpace(orch plugin.Orchestrator, mp *models.Mapping, fix bool) (*Space, error) {
	l := orch.Ledger()

	if mp.ChatSpaceID != "" {
		space, err := p.client.SpaceByID(mp.ChatSpaceID)
		if err == nil {
			return space, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		log.Warn().Uint("mapping", mp.ID).Str("space", mp.ChatSpaceID).Msg("stale chat space id")
		if fix {
			mp.ChatSpaceID = ""
			if err := l.Save(mp); err != nil {
				return nil, err
			}
		}
	}

	space, err := p.client.SpaceByTag(spaceTag(mp))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if fix {
		mp.ChatSpaceID = space.ID
		if err := l.Save(mp); err != nil {
			return nil, err
		}
		log.Info().Uint("mapping", mp.ID).Str("space", space.ID).Msg("chat space rediscovered by tag")
	}

	return space, nil
}
