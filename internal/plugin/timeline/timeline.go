// Package timeline is the audit plugin: it records every lifecycle
// notification as an append-only timeline entry on the owning mapping. It
// never talks to a backend and never fails a verification; append errors
// are logged and swallowed.
package timeline

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/claudia-sync/claudia/internal/db/controller/timeline"
	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/plugin"
)

// Entry categories, one per recorded lifecycle notification.
const (
	WhatMappingCreated  = "mapping_created"
	WhatMappingChanged  = "mapping_changed"
	WhatMappingDeleted  = "mapping_deleted"
	WhatAccountCreated  = "account_created"
	WhatAccountChanged  = "account_changed"
	WhatDeleteScheduled = "delete_scheduled"
	WhatDeleteCancelled = "delete_cancelled"
)

// Plugin writes the audit trail.
type Plugin struct {
	plugin.Base
}

// New creates the audit plugin.
func New() *Plugin { return &Plugin{} }

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return "timeline" }

func (p *Plugin) append(orch plugin.Orchestrator, mp *models.Mapping, what, description string) error {
	id := mp.ID
	if _, err := timeline.Append(orch.Ledger().DB(), what, &id, description); err != nil {
		log.Error().Err(err).Uint("mapping", mp.ID).Str("what", what).
			Msg("failed to append timeline entry")
	}
	return nil
}

// MappingCreated implements plugin.Plugin.
func (p *Plugin) MappingCreated(orch plugin.Orchestrator, mp *models.Mapping) error {
	return p.append(orch, mp, WhatMappingCreated,
		fmt.Sprintf("%s %q activated", mp.Type, mp.Name))
}

// MappingChanged implements plugin.Plugin.
func (p *Plugin) MappingChanged(orch plugin.Orchestrator, mp *models.Mapping, changes []plugin.Change) error {
	return p.append(orch, mp, WhatMappingChanged, plugin.FormatChanges(changes))
}

// MappingDeleted implements plugin.Plugin.
func (p *Plugin) MappingDeleted(orch plugin.Orchestrator, mp *models.Mapping) error {
	return p.append(orch, mp, WhatMappingDeleted,
		fmt.Sprintf("%s %q deactivated", mp.Type, mp.Name))
}

// AccountCreated implements plugin.Plugin. The initial password is never
// written to the trail.
func (p *Plugin) AccountCreated(orch plugin.Orchestrator, backend string, mp *models.Mapping, _ string) error {
	return p.append(orch, mp, WhatAccountCreated, backend+" account created")
}

// AccountChanged implements plugin.Plugin.
func (p *Plugin) AccountChanged(orch plugin.Orchestrator, backend string, mp *models.Mapping, changes []plugin.Change) error {
	return p.append(orch, mp, WhatAccountChanged,
		backend+": "+plugin.FormatChanges(changes))
}

// AccountScheduledDelete implements plugin.Plugin.
func (p *Plugin) AccountScheduledDelete(orch plugin.Orchestrator, backend string, mp *models.Mapping, at time.Time) error {
	return p.append(orch, mp, WhatDeleteScheduled,
		fmt.Sprintf("%s account deletion scheduled for %s", backend, at.Format(time.RFC3339)))
}

// AccountUnscheduledDelete implements plugin.Plugin.
func (p *Plugin) AccountUnscheduledDelete(orch plugin.Orchestrator, backend string, mp *models.Mapping) error {
	return p.append(orch, mp, WhatDeleteCancelled, backend+" account deletion cancelled")
}
