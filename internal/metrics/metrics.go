package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the reservation engine counters exposed on /metrics.
type Metrics struct {
	Bookings       *prometheus.CounterVec
	Cancellations  *prometheus.CounterVec
	ClaimConflicts prometheus.Counter
	EngineDuration *prometheus.HistogramVec
	SlotsReaped    prometheus.Counter
}

// New creates and registers all engine metrics. A nil registerer falls back
// to the default registry.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		Cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancellations_total",
			Help:      "Cancellation attempts by outcome",
		}, []string{"outcome"}),
		ClaimConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_claim_conflicts_total",
			Help:      "Bookings rejected because the slot was already held",
		}),
		EngineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_operation_duration_seconds",
			Help:      "Duration of engine operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
		SlotsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_slots_deleted_total",
			Help:      "Stale slots removed by the retention worker",
		}),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.Bookings, m.Cancellations, m.ClaimConflicts, m.EngineDuration, m.SlotsReaped)
	return m
}
