package engine

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// Workers increment the counters concurrently, so registration must happen
// once at init and the collectors must take concurrent writes.
func TestMetricsTakeConcurrentIncrements(t *testing.T) {
	const (
		workers    = 8
		increments = 100
	)

	before := testutil.ToFloat64(verificationsTotal.WithLabelValues(resultOK))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < increments; j++ {
				verificationsTotal.WithLabelValues(resultOK).Inc()
				pluginFailuresTotal.WithLabelValues("fake").Inc()
				cycleFanoutTotal.Inc()
			}
		}()
	}
	wg.Wait()

	after := testutil.ToFloat64(verificationsTotal.WithLabelValues(resultOK))
	assert.InDelta(t, float64(workers*increments), after-before, 0.001)
}
