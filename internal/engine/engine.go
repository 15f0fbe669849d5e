// Package engine implements the reconciliation orchestrator: the per-mapping
// verification state machine, the plugin chain, recursive member fan-out
// under a shared cycle, and the full-system integrity sweep.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/engine/cycle"
	"github.com/claudia-sync/claudia/internal/engine/queue"
	"github.com/claudia-sync/claudia/internal/ledger"
	"github.com/claudia-sync/claudia/internal/mappable"
	"github.com/claudia-sync/claudia/internal/plugin"
)

const workerPollInterval = time.Second

// Engine drives reconciliation. It owns mapping activation, the plugin
// chain, the notification fan, and cycle coordination.
type Engine struct {
	ledger  *ledger.Ledger
	queue   *queue.Queue
	plugins []plugin.Plugin
	cfg     config.Engine

	// inflight guards the synchronous bootstrap path against membership
	// cycles re-entering the same mapping.
	mu       sync.Mutex
	inflight map[uint]bool
}

// New creates an engine over the ledger and task queue with the given
// plugin chain, invoked in slice order.
func New(l *ledger.Ledger, q *queue.Queue, plugins []plugin.Plugin, cfg config.Engine) *Engine {
	return &Engine{
		ledger:   l,
		queue:    q,
		plugins:  plugins,
		cfg:      cfg,
		inflight: make(map[uint]bool),
	}
}

// Ledger implements plugin.Orchestrator.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Queue exposes the task queue.
func (e *Engine) Queue() *queue.Queue { return e.queue }

// VerifyNow reconciles one mapping synchronously without fan-out, used by
// plugins to bootstrap a group that does not exist in a backend yet.
// Re-entering a mapping already being verified is a no-op so membership
// cycles cannot recurse forever.
func (e *Engine) VerifyNow(mappingID uint, fix bool) error {
	e.mu.Lock()
	if e.inflight[mappingID] {
		e.mu.Unlock()
		return nil
	}
	e.inflight[mappingID] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inflight, mappingID)
		e.mu.Unlock()
	}()

	mp, err := e.ledger.Get(mappingID)
	if err != nil {
		return err
	}

	return e.verifyMapping(mp, "", fix)
}

// TriggerEntity starts a new verification cycle rooted at an internal
// entity. If the entity has no mapping and does not need one, nothing
// happens and an empty cycle id is returned.
func (e *Engine) TriggerEntity(ent mappable.Entity, fix bool) (string, error) {
	mp, err := e.resolveEntity(ent)
	if err != nil {
		return "", err
	}
	if mp == nil {
		return "", nil
	}

	return e.TriggerMapping(mp.ID, fix)
}

// TriggerMapping starts a new verification cycle rooted at a mapping and
// returns the cycle id. The cycle is drained by the workers, or inline via
// RunCycle.
func (e *Engine) TriggerMapping(mappingID uint, fix bool) (string, error) {
	cycleID, err := e.queue.Cycles().Begin(fix)
	if err != nil {
		return "", err
	}

	if _, err := e.queue.Enqueue(cycleID, mappingID, fix); err != nil {
		return "", err
	}

	return cycleID, nil
}

// resolveEntity maps an entity to its mapping, creating one when the entity
// needs representation. Returns nil when no mapping exists or is needed.
func (e *Engine) resolveEntity(ent mappable.Entity) (*models.Mapping, error) {
	mp, err := e.ledger.Find(ent)
	if err == nil {
		return mp, nil
	}
	if !errors.Is(err, ledger.ErrMappingNotFound) {
		return nil, err
	}

	needed, err := ent.Needed()
	if err != nil {
		return nil, err
	}
	if !needed {
		return nil, nil
	}

	return e.ledger.Create(ent)
}

// RunCycle drains a cycle inline in the calling goroutine until its pending
// count reaches zero, running retries immediately. Used by admin tooling
// and tests; production drains through the workers.
func (e *Engine) RunCycle(cycleID string) error {
	// Claims far ahead so backed-off retries run without waiting.
	horizon := 365 * 24 * time.Hour

	for {
		if _, err := e.queue.Cycles().Get(cycleID); err != nil {
			if errors.Is(err, cycle.ErrCycleNotFound) {
				return nil
			}
			return err
		}

		task, err := e.queue.Claim(time.Now().Add(horizon))
		if err != nil {
			if errors.Is(err, queue.ErrNoTask) {
				return nil
			}
			return err
		}

		e.processTask(task)
	}
}

// Run claims and processes tasks until the context is cancelled. Multiple
// workers may run concurrently, in this process or another.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := e.queue.Claim(time.Now())
		if err != nil {
			if !errors.Is(err, queue.ErrNoTask) {
				log.Error().Err(err).Msg("failed to claim verification task")
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(workerPollInterval):
			}
			continue
		}

		e.processTask(task)
	}
}

// RunWorkers starts n worker goroutines and blocks until all have stopped.
func (e *Engine) RunWorkers(ctx context.Context, n int) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Run(ctx)
		}()
	}
	wg.Wait()
}
