// Package plugin defines the backend plugin contract: the reconcile hook,
// the lifecycle notification hooks with no-op defaults, and the change-list
// type plugins report their work through.
package plugin

import (
	"time"

	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/ledger"
)

// Orchestrator is the engine surface plugins may call back into, mainly for
// the recursive bootstrap of a group that does not exist in a backend yet.
type Orchestrator interface {
	// Ledger gives access to mapping resolution and graph queries.
	Ledger() *ledger.Ledger
	// VerifyNow runs one mapping's reconciliation synchronously, used when
	// a plugin needs a group materialized before it can add members.
	VerifyNow(mappingID uint, fix bool) error
	// NotifyAccountCreated fans the account-created hook to every plugin.
	NotifyAccountCreated(backend string, mp *models.Mapping, initialPassword string)
	// NotifyAccountScheduledDelete fans the scheduled-delete hook.
	NotifyAccountScheduledDelete(backend string, mp *models.Mapping, at time.Time)
	// NotifyAccountUnscheduledDelete fans the unscheduled-delete hook.
	NotifyAccountUnscheduledDelete(backend string, mp *models.Mapping)
}

// Plugin reconciles mappings against one backend and observes lifecycle
// notifications. Reconcile must be idempotent: with fix false it never
// mutates anything and reports the same diff on every call; with fix true
// it converges backend state and is safe to re-run.
type Plugin interface {
	// Name identifies the plugin in configuration, logs and metrics.
	Name() string

	// Reconcile diffs the mapping against the backend and, under fix,
	// applies the changes. An empty change list means nothing to notify.
	Reconcile(orch Orchestrator, mp *models.Mapping, fix bool) ([]Change, error)

	// MappingCreated fires when a mapping is created or reactivated.
	MappingCreated(orch Orchestrator, mp *models.Mapping) error
	// MappingChanged fires when a mapping's own fields changed.
	MappingChanged(orch Orchestrator, mp *models.Mapping, changes []Change) error
	// MappingDeleted fires when a mapping is deactivated.
	MappingDeleted(orch Orchestrator, mp *models.Mapping) error

	// AccountCreated fires when a backend object was created for the
	// mapping. The initial password is empty for backends without one.
	AccountCreated(orch Orchestrator, backend string, mp *models.Mapping, initialPassword string) error
	// AccountChanged fires when a backend reported a non-empty change list.
	AccountChanged(orch Orchestrator, backend string, mp *models.Mapping, changes []Change) error
	// AccountScheduledDelete fires when a backend account deletion was
	// scheduled after the grace period.
	AccountScheduledDelete(orch Orchestrator, backend string, mp *models.Mapping, at time.Time) error
	// AccountUnscheduledDelete fires when a scheduled deletion was
	// cancelled because the mapping became needed again.
	AccountUnscheduledDelete(orch Orchestrator, backend string, mp *models.Mapping) error

	// VerifyStarted fires before a mapping's plugin chain runs.
	VerifyStarted(orch Orchestrator, mp *models.Mapping) error
	// VerifyFinished fires after a mapping's plugin chain completed.
	VerifyFinished(orch Orchestrator, mp *models.Mapping) error
}

// Base provides no-op defaults for every hook except Reconcile's real work.
// Embed it and override what the plugin cares about.
type Base struct{}

// Reconcile reports no changes.
func (Base) Reconcile(_ Orchestrator, _ *models.Mapping, _ bool) ([]Change, error) {
	return nil, nil
}

// MappingCreated does nothing.
func (Base) MappingCreated(_ Orchestrator, _ *models.Mapping) error { return nil }

// MappingChanged does nothing.
func (Base) MappingChanged(_ Orchestrator, _ *models.Mapping, _ []Change) error { return nil }

// MappingDeleted does nothing.
func (Base) MappingDeleted(_ Orchestrator, _ *models.Mapping) error { return nil }

// AccountCreated does nothing.
func (Base) AccountCreated(_ Orchestrator, _ string, _ *models.Mapping, _ string) error { return nil }

// AccountChanged does nothing.
func (Base) AccountChanged(_ Orchestrator, _ string, _ *models.Mapping, _ []Change) error {
	return nil
}

// AccountScheduledDelete does nothing.
func (Base) AccountScheduledDelete(_ Orchestrator, _ string, _ *models.Mapping, _ time.Time) error {
	return nil
}

// AccountUnscheduledDelete does nothing.
func (Base) AccountUnscheduledDelete(_ Orchestrator, _ string, _ *models.Mapping) error { return nil }

// VerifyStarted does nothing.
func (Base) VerifyStarted(_ Orchestrator, _ *models.Mapping) error { return nil }

// VerifyFinished does nothing.
func (Base) VerifyFinished(_ Orchestrator, _ *models.Mapping) error { return nil }
