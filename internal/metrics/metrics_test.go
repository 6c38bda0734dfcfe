package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/venue-locator/internal/resilience"
)

func TestObserveResolve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveResolve("gps-local", true, 2*time.Millisecond)
	m.ObserveResolve("gps-local", false, time.Millisecond)
	m.ObserveResolve("network", false, 40*time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(m.resolutions.WithLabelValues("gps-local")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.resolutions.WithLabelValues("network")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.changes), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveResolve("manual", true, time.Second)
		m.TrackCatalog(func() int { return 1 })
		m.TrackBreakers(nil)
	})
}

func TestTrackCatalog(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	size := 4
	m.TrackCatalog(func() int { return size })

	expected := `
# HELP venue_locator_catalog_venues Venues in the local catalog.
# TYPE venue_locator_catalog_venues gauge
venue_locator_catalog_venues 4
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "venue_locator_catalog_venues"))

	size = 9
	expected = strings.Replace(expected, "venues 4", "venues 9", 1)
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "venue_locator_catalog_venues"))
}

func TestTrackBreakers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	sb := resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig())
	m.TrackBreakers(sb)

	search := sb.Get("directory.search")
	sb.Get("directory.sync")
	_ = search.Execute(context.Background(), func(context.Context) error {
		return errors.New("connection refused")
	})

	expected := `
# HELP venue_locator_circuit_breaker_state Circuit breaker state: 0 closed, 1 open, 2 half-open.
# TYPE venue_locator_circuit_breaker_state gauge
venue_locator_circuit_breaker_state{breaker="directory.search"} 1
venue_locator_circuit_breaker_state{breaker="directory.sync"} 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "venue_locator_circuit_breaker_state"))
}
