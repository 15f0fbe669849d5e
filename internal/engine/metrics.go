package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK    = "ok"
	resultRetry = "retry"
	resultError = "error"
)

// Collectors are registered once at package init; workers increment them
// concurrently.
var (
	verificationsTotal = promauto.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Name: "claudia_verifications_total",
			Help: "Number of mapping verifications, differentiated by result.",
		},
		[]string{"result"},
	)

	pluginFailuresTotal = promauto.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Name: "claudia_plugin_failures_total",
			Help: "Number of failed plugin reconciliations, differentiated by plugin.",
		},
		[]string{"plugin"},
	)

	cycleFanoutTotal = promauto.NewCounter( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Name: "claudia_cycle_fanout_total",
			Help: "Number of mappings enqueued through cycle fan-out.",
		},
	)
)
