package daemon

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/plugin"
	"github.com/claudia-sync/claudia/internal/plugin/chat"
	"github.com/claudia-sync/claudia/internal/plugin/directory"
	"github.com/claudia-sync/claudia/internal/plugin/groupware"
	"github.com/claudia-sync/claudia/internal/plugin/idp"
	"github.com/claudia-sync/claudia/internal/plugin/lognotice"
	"github.com/claudia-sync/claudia/internal/plugin/pos"
	"github.com/claudia-sync/claudia/internal/plugin/sourcehost"
	"github.com/claudia-sync/claudia/internal/plugin/timeline"
	"github.com/claudia-sync/claudia/internal/plugin/vault"
)

// ErrPluginDisabled is returned when a configured plugin's backend is not
// enabled.
var ErrPluginDisabled = errors.New("plugin listed but backend not enabled")

// buildPlugins instantiates the configured plugins in their registration
// order. Listing a plugin whose backend is disabled is a configuration
// error; ordering matters because later plugins may rely on accounts
// earlier ones materialized.
func buildPlugins(ctx context.Context, cfg *config.Config) ([]plugin.Plugin, error) {
	plugins := make([]plugin.Plugin, 0, len(cfg.Engine.Plugins))

	for _, name := range cfg.Engine.Plugins {
		p, err := buildPlugin(ctx, cfg, name)
		if err != nil {
			return nil, errors.Wrap(err, name)
		}
		plugins = append(plugins, p)
	}

	return plugins, nil
}

func buildPlugin(ctx context.Context, cfg *config.Config, name string) (plugin.Plugin, error) {
	switch name {
	case "lognotice":
		return lognotice.New(), nil
	case "timeline":
		return timeline.New(), nil
	case "directory":
		if !cfg.Directory.Enabled {
			return nil, ErrPluginDisabled
		}
		return directory.New(directory.NewLDAPClient(cfg.Directory), cfg.Engine), nil
	case "idp":
		if !cfg.IDP.Enabled {
			return nil, ErrPluginDisabled
		}
		client, err := idp.NewRESTClient(ctx, cfg.IDP)
		if err != nil {
			return nil, err
		}
		return idp.New(client, cfg.IDP), nil
	case "groupware":
		if !cfg.Groupware.Enabled {
			return nil, ErrPluginDisabled
		}
		return groupware.New(groupware.NewRESTClient(ctx, cfg.Groupware), cfg.Groupware, cfg.Engine), nil
	case "sourcehost":
		if !cfg.SourceHost.Enabled {
			return nil, ErrPluginDisabled
		}
		return sourcehost.New(sourcehost.NewRESTClient(cfg.SourceHost)), nil
	case "vault":
		if !cfg.Vault.Enabled {
			return nil, ErrPluginDisabled
		}
		return vault.New(vault.NewRESTClient(cfg.Vault)), nil
	case "chat":
		if !cfg.Chat.Enabled {
			return nil, ErrPluginDisabled
		}
		return chat.New(chat.NewRESTClient(cfg.Chat), cfg.Chat), nil
	case "pos":
		if !cfg.POS.Enabled {
			return nil, ErrPluginDisabled
		}
		return pos.New(pos.NewRESTClient(cfg.POS)), nil
	default:
		return nil, fmt.Errorf("unknown plugin %q", name)
	}
}
