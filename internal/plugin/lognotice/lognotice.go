// Package lognotice is the fallback notification plugin: it writes every
// lifecycle notification to the structured log. Deployments without a mail
// or chat notifier run this so account events are at least visible to
// operators.
package lognotice

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/plugin"
)

// Plugin logs lifecycle notifications.
type Plugin struct {
	plugin.Base
}

// New creates the logging notification plugin.
func New() *Plugin { return &Plugin{} }

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return "lognotice" }

// MappingCreated implements plugin.Plugin.
func (p *Plugin) MappingCreated(_ plugin.Orchestrator, mp *models.Mapping) error {
	log.Info().Uint("mapping", mp.ID).Str("type", string(mp.Type)).Str("name", mp.Name).
		Msg("notice: mapping activated")
	return nil
}

// MappingChanged implements plugin.Plugin.
func (p *Plugin) MappingChanged(_ plugin.Orchestrator, mp *models.Mapping, changes []plugin.Change) error {
	log.Info().Uint("mapping", mp.ID).Str("changes", plugin.FormatChanges(changes)).
		Msg("notice: mapping changed")
	return nil
}

// MappingDeleted implements plugin.Plugin.
func (p *Plugin) MappingDeleted(_ plugin.Orchestrator, mp *models.Mapping) error {
	log.Info().Uint("mapping", mp.ID).Str("type", string(mp.Type)).Str("name", mp.Name).
		Msg("notice: mapping deactivated")
	return nil
}

// AccountCreated implements plugin.Plugin. The initial password is not
// logged; it reaches the person through a real notifier only.
func (p *Plugin) AccountCreated(_ plugin.Orchestrator, backend string, mp *models.Mapping, initialPassword string) error {
	log.Info().Uint("mapping", mp.ID).Str("backend", backend).
		Bool("initial_password", initialPassword != "").
		Msg("notice: account created")
	return nil
}

// AccountChanged implements plugin.Plugin.
func (p *Plugin) AccountChanged(_ plugin.Orchestrator, backend string, mp *models.Mapping, changes []plugin.Change) error {
	log.Info().Uint("mapping", mp.ID).Str("backend", backend).
		Str("changes", plugin.FormatChanges(changes)).
		Msg("notice: account changed")
	return nil
}

// AccountScheduledDelete implements plugin.Plugin.
func (p *Plugin) AccountScheduledDelete(_ plugin.Orchestrator, backend string, mp *models.Mapping, at time.Time) error {
	log.Warn().Uint("mapping", mp.ID).Str("backend", backend).Time("at", at).
		Msg("notice: account deletion scheduled")
	return nil
}

// AccountUnscheduledDelete implements plugin.Plugin.
func (p *Plugin) AccountUnscheduledDelete(_ plugin.Orchestrator, backend string, mp *models.Mapping) error {
	log.Info().Uint("mapping", mp.ID).Str("backend", backend).
		Msg("notice: account deletion cancelled")
	return nil
}
