package store

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Store Metrics
// --------------------------------------------------------------------------

// Metrics groups the counters every store implementation reports.
// They are registered in the default VictoriaMetrics set and exposed by the
// http transport on GET /metrics.
type Metrics struct {
	Push          *metrics.Counter
	Remove        *metrics.Counter
	Trim          *metrics.Counter
	Query         *metrics.Counter
	QueryStale    *metrics.Counter
	Evicted       *metrics.Counter
	Errors        *metrics.Counter
	QueryDuration *metrics.Histogram
}

// NewMetrics returns the metrics of the store labeled with kind (e.g. "lstore").
// Calling it twice with the same kind returns the same counters.
func NewMetrics(kind string) *Metrics {
	name := func(metric string) string {
		return fmt.Sprintf(`%s{store=%q}`, metric, kind)
	}
	return &Metrics{
		Push:          metrics.GetOrCreateCounter(name("dfeed_push_total")),
		Remove:        metrics.GetOrCreateCounter(name("dfeed_remove_total")),
		Trim:          metrics.GetOrCreateCounter(name("dfeed_trim_total")),
		Query:         metrics.GetOrCreateCounter(name("dfeed_query_total")),
		QueryStale:    metrics.GetOrCreateCounter(name("dfeed_query_stale_total")),
		Evicted:       metrics.GetOrCreateCounter(name("dfeed_evicted_total")),
		Errors:        metrics.GetOrCreateCounter(name("dfeed_store_errors_total")),
		QueryDuration: metrics.GetOrCreateHistogram(name("dfeed_query_duration_seconds")),
	}
}

// ObserveQuery records one finished query that started at start.
func (m *Metrics) ObserveQuery(start time.Time, stale bool) {
	m.Query.Inc()
	if stale {
		m.QueryStale.Inc()
	}
	m.QueryDuration.UpdateDuration(start)
}
