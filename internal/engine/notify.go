package engine

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/plugin"
)

// The notification fan. Hook failures never fail the verification; the
// reconcile already happened and a noisy notifier must not undo it.

func (e *Engine) notifyVerifyStarted(mp *models.Mapping) {
	for _, p := range e.plugins {
		if err := p.VerifyStarted(e, mp); err != nil {
			logHookError(p, "VerifyStarted", mp, err)
		}
	}
}

func (e *Engine) notifyVerifyFinished(mp *models.Mapping) {
	for _, p := range e.plugins {
		if err := p.VerifyFinished(e, mp); err != nil {
			logHookError(p, "VerifyFinished", mp, err)
		}
	}
}

func (e *Engine) notifyMappingCreated(mp *models.Mapping) {
	for _, p := range e.plugins {
		if err := p.MappingCreated(e, mp); err != nil {
			logHookError(p, "MappingCreated", mp, err)
		}
	}
}

func (e *Engine) notifyMappingChanged(mp *models.Mapping, changes []plugin.Change) {
	for _, p := range e.plugins {
		if err := p.MappingChanged(e, mp, changes); err != nil {
			logHookError(p, "MappingChanged", mp, err)
		}
	}
}

func (e *Engine) notifyMappingDeleted(mp *models.Mapping) {
	for _, p := range e.plugins {
		if err := p.MappingDeleted(e, mp); err != nil {
			logHookError(p, "MappingDeleted", mp, err)
		}
	}
}

func (e *Engine) notifyAccountChanged(backend string, mp *models.Mapping, changes []plugin.Change) {
	for _, p := range e.plugins {
		if err := p.AccountChanged(e, backend, mp, changes); err != nil {
			logHookError(p, "AccountChanged", mp, err)
		}
	}
}

// NotifyAccountCreated tells all plugins a backend account came into being.
// Called by the creating plugin itself, mid-reconcile.
func (e *Engine) NotifyAccountCreated(backend string, mp *models.Mapping, initialPassword string) {
	for _, p := range e.plugins {
		if err := p.AccountCreated(e, backend, mp, initialPassword); err != nil {
			logHookError(p, "AccountCreated", mp, err)
		}
	}
}

// NotifyAccountScheduledDelete announces a pending account removal at the
// end of the grace period.
func (e *Engine) NotifyAccountScheduledDelete(backend string, mp *models.Mapping, at time.Time) {
	for _, p := range e.plugins {
		if err := p.AccountScheduledDelete(e, backend, mp, at); err != nil {
			logHookError(p, "AccountScheduledDelete", mp, err)
		}
	}
}

// NotifyAccountUnscheduledDelete announces a cancelled account removal,
// typically because the mapping became needed again within the grace period.
func (e *Engine) NotifyAccountUnscheduledDelete(backend string, mp *models.Mapping) {
	for _, p := range e.plugins {
		if err := p.AccountUnscheduledDelete(e, backend, mp); err != nil {
			logHookError(p, "AccountUnscheduledDelete", mp, err)
		}
	}
}

func logHookError(p plugin.Plugin, hook string, mp *models.Mapping, err error) {
	log.Error().Err(err).Str("plugin", p.Name()).Str("hook", hook).
		Uint("mapping", mp.ID).Str("mapping_name", mp.Name).
		Msg("plugin hook failed")
}
