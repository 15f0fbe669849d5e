package engine

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/ledger"
	"github.com/claudia-sync/claudia/internal/plugin"
)

// processTask runs one claimed verification task through the state machine
// and settles it: done on success or permanent failure, requeued with
// backoff on a transient backend failure.
func (e *Engine) processTask(task *models.VerifyTask) {
	mp, err := e.ledger.Get(task.MappingID)
	if err != nil {
		if !errors.Is(err, ledger.ErrMappingNotFound) {
			log.Error().Err(err).Uint("mapping", task.MappingID).Msg("failed to load mapping for task")
		}
		e.settleTask(task, resultError)
		return
	}

	err = e.verifyMapping(mp, task.CycleID, task.Fix)
	switch {
	case err == nil:
		e.settleTask(task, resultOK)
	case plugin.IsTransient(err):
		verificationsTotal.WithLabelValues(resultRetry).Inc()

		requeued, remaining, rerr := e.queue.Retry(task)
		if rerr != nil {
			log.Error().Err(rerr).Uint("mapping", task.MappingID).Msg("failed to requeue task")
			return
		}
		if requeued {
			log.Warn().Err(err).Uint("mapping", task.MappingID).Str("mapping_name", mp.Name).
				Msg("backend unavailable, verification requeued")
			return
		}

		log.Error().Err(err).Uint("mapping", task.MappingID).Str("mapping_name", mp.Name).
			Msg("verification retries exhausted")
		verificationsTotal.WithLabelValues(resultError).Inc()
		if remaining <= 0 {
			e.completeCycle(task.CycleID)
		}
	default:
		log.Error().Err(err).Uint("mapping", task.MappingID).Str("mapping_name", mp.Name).
			Msg("verification failed")
		e.settleTask(task, resultError)
	}
}

// settleTask finishes a task and runs the completion sweep when it was the
// cycle's last outstanding item.
func (e *Engine) settleTask(task *models.VerifyTask, result string) {
	verificationsTotal.WithLabelValues(result).Inc()

	remaining, err := e.queue.Done(task)
	if err != nil {
		log.Error().Err(err).Str("cycle", task.CycleID).Msg("failed to finish task")
		return
	}

	if remaining <= 0 {
		e.completeCycle(task.CycleID)
	}
}

// verifyMapping runs the per-mapping state machine: sync the mapping's own
// fields, activate if needed, run the plugin chain in registration order,
// deactivate if no longer needed, then fan members out into the cycle.
// An empty cycle id skips fan-out (the synchronous bootstrap path).
func (e *Engine) verifyMapping(mp *models.Mapping, cycleID string, fix bool) error {
	e.notifyVerifyStarted(mp)

	basics, err := e.ledger.CheckBasics(mp, fix)
	if err != nil {
		return err
	}
	if len(basics) > 0 && fix {
		items := make([]string, 0, len(basics))
		for _, c := range basics {
			items = append(items, plugin.FieldChange(c.Field, c.Old, c.New))
		}
		e.notifyMappingChanged(mp, []plugin.Change{plugin.NewChange("mapping", items...)})
	}

	needed, err := e.ledger.IsNeeded(mp)
	if err != nil {
		return err
	}
	if needed && !mp.Active && fix {
		if err := e.ledger.SetActive(mp, true); err != nil {
			return err
		}
		log.Info().Uint("mapping", mp.ID).Str("mapping_name", mp.Name).Msg("mapping activated")
		e.notifyMappingCreated(mp)
	}

	if err := e.runPlugins(mp, fix); err != nil {
		return err
	}

	// Plugins may have changed state; re-evaluate before deactivation.
	needed, err = e.ledger.IsNeeded(mp)
	if err != nil {
		return err
	}
	if !needed && mp.Active && fix {
		if err := e.ledger.SetActive(mp, false); err != nil {
			return err
		}
		log.Info().Uint("mapping", mp.ID).Str("mapping_name", mp.Name).Msg("mapping deactivated")
		e.notifyMappingDeleted(mp)
	}

	e.notifyVerifyFinished(mp)

	if cycleID != "" && mp.IsGroupType() {
		if err := e.fanOut(mp, cycleID, fix); err != nil {
			return err
		}
	}

	return nil
}

// runPlugins invokes every plugin's reconcile in registration order.
// Transient and invariant failures abort the chain; rejections are logged
// and skipped unless the stop-on-error policy is set.
func (e *Engine) runPlugins(mp *models.Mapping, fix bool) error {
	for _, p := range e.plugins {
		changes, err := p.Reconcile(e, mp, fix)
		if err != nil {
			pluginFailuresTotal.WithLabelValues(p.Name()).Inc()

			if plugin.IsTransient(err) || errors.Is(err, plugin.ErrInconsistent) {
				return err
			}

			log.Error().Err(err).Str("plugin", p.Name()).
				Uint("mapping", mp.ID).Str("mapping_name", mp.Name).
				Msg("plugin reconcile failed")

			if e.cfg.StopOnError {
				return err
			}
			continue
		}

		if len(changes) > 0 && fix {
			e.notifyAccountChanged(p.Name(), mp, changes)
		}
	}

	return nil
}

// fanOut enqueues every current and former member of a group mapping into
// the cycle. Former members still get one reconciliation so stale backend
// memberships are removed.
func (e *Engine) fanOut(mp *models.Mapping, cycleID string, fix bool) error {
	members, err := e.ledger.Members(mp, ledger.SelectAll, true)
	if err != nil {
		return err
	}

	for _, m := range members {
		enqueued, err := e.queue.Enqueue(cycleID, m.ID, fix)
		if err != nil {
			return err
		}
		if enqueued {
			cycleFanoutTotal.Inc()
		}
	}

	return nil
}

// completeCycle runs the deferred deactivation sweep over every mapping
// touched in the cycle and tears the cycle down. The second pass catches
// cascading effects, such as a group emptied during the cycle.
func (e *Engine) completeCycle(cycleID string) {
	c, err := e.queue.Cycles().Get(cycleID)
	if err != nil {
		// Already torn down by a racing worker, or expired.
		return
	}

	visited, err := e.queue.Cycles().Visited(cycleID)
	if err != nil {
		log.Error().Err(err).Str("cycle", cycleID).Msg("failed to load cycle visits")
		return
	}

	for _, id := range visited {
		mp, err := e.ledger.Get(id)
		if err != nil {
			continue
		}
		if !mp.Active {
			continue
		}

		needed, err := e.ledger.IsNeeded(mp)
		if err != nil {
			log.Error().Err(err).Uint("mapping", id).Msg("completion sweep needed check failed")
			continue
		}
		if !needed && c.Fix {
			if err := e.ledger.SetActive(mp, false); err != nil {
				log.Error().Err(err).Uint("mapping", id).Msg("completion sweep deactivation failed")
				continue
			}
			log.Info().Uint("mapping", mp.ID).Str("mapping_name", mp.Name).
				Msg("mapping deactivated in completion sweep")
			e.notifyMappingDeleted(mp)
		}
	}

	if err := e.queue.Cycles().Teardown(cycleID); err != nil {
		log.Error().Err(err).Str("cycle", cycleID).Msg("failed to tear down cycle")
	}
}
