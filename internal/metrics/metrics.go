package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewSweepAttemptedTotal returns a Prometheus counter for the number of assignment attempts made by the sweep
func NewSweepAttemptedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_deliveries_attempted_total",
		Help: "Total number of pending deliveries the assignment sweep attempted to match",
	})
}

// NewSweepAssignedTotal returns a Prometheus counter for the number of deliveries assigned by the sweep
func NewSweepAssignedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweep_deliveries_assigned_total",
		Help: "Total number of deliveries successfully assigned by the sweep",
	})
}
