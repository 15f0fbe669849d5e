package engine

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/claudia-sync/claudia/internal/db/controller/event"
	"github.com/claudia-sync/claudia/internal/plugin"
)

// CheckIntegrity walks every entity of every registered source through one
// shared cycle, then sweeps active mappings the walk never reached. The
// sweep catches orphans whose entity disappeared from its source entirely.
func (e *Engine) CheckIntegrity(fix bool) (string, error) {
	cycleID, err := e.queue.Cycles().Begin(fix)
	if err != nil {
		return "", err
	}

	registry := e.ledger.Registry()
	for _, t := range registry.Types() {
		src, err := registry.Source(t)
		if err != nil {
			return "", err
		}

		entities, err := src.All()
		if err != nil {
			return "", err
		}

		for _, ent := range entities {
			mp, err := e.resolveEntity(ent)
			if err != nil {
				return "", err
			}
			if mp == nil {
				continue
			}
			if _, err := e.queue.Enqueue(cycleID, mp.ID, fix); err != nil {
				return "", err
			}
		}
	}

	// Orphan sweep: active mappings no source claims any more.
	active, err := e.ledger.ActiveMappings()
	if err != nil {
		return "", err
	}
	for i := range active {
		if _, err := e.queue.Enqueue(cycleID, active[i].ID, fix); err != nil {
			return "", err
		}
	}

	log.Info().Str("cycle", cycleID).Bool("fix", fix).Msg("integrity check started")

	return cycleID, nil
}

// ExecuteDueEvents offers every due scheduled event to the plugins that can
// execute it. The first plugin that handles an event consumes it.
func (e *Engine) ExecuteDueEvents(now time.Time) error {
	due, err := event.Due(e.ledger.DB(), now)
	if err != nil {
		return err
	}

	for _, ev := range due {
		mp, err := e.ledger.Get(ev.MappingID)
		if err != nil {
			// Mapping gone, nothing left to execute against.
			if derr := event.Delete(e.ledger.DB(), ev.ID); derr != nil {
				return derr
			}
			continue
		}

		handled := false
		for _, p := range e.plugins {
			ex, ok := p.(plugin.EventExecutor)
			if !ok {
				continue
			}

			done, err := ex.ExecuteEvent(e, ev, mp)
			if err != nil {
				if plugin.IsTransient(err) {
					// Leave the event in place for the next run.
					log.Warn().Err(err).Str("plugin", p.Name()).
						Uint("mapping", mp.ID).Msg("event execution deferred")
					handled = true
					break
				}
				return err
			}
			if done {
				handled = true
				if err := event.Delete(e.ledger.DB(), ev.ID); err != nil {
					return err
				}
				log.Info().Str("event", string(ev.Type)).
					Uint("mapping", mp.ID).Str("mapping_name", mp.Name).
					Str("plugin", p.Name()).Msg("scheduled event executed")
				break
			}
		}

		if !handled {
			return errors.New("no plugin could execute event " + string(ev.Type))
		}
	}

	return nil
}
