package plugin

import "github.com/claudia-sync/claudia/internal/db/models"

// EventExecutor is implemented by plugins that execute scheduled events,
// such as the grace-period account deletions. The engine offers each due
// event to the plugin chain; the first plugin that handles it wins.
type EventExecutor interface {
	// ExecuteEvent performs the event's action if this plugin owns the
	// event type. Reports whether the event was handled.
	ExecuteEvent(orch Orchestrator, ev models.Event, mp *models.Mapping) (bool, error)
}
