package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(pollTicksTotal, pollTickSeconds, statusFetchErrorsTotal, pollerActive) }

var (
	pollTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vidnag_poll_ticks_total",
			Help: "Completed reconciliation ticks.",
		},
	)

	pollTickSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vidnag_poll_tick_seconds",
			Help:    "Wall time of one tick, fan-out through commit.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	statusFetchErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vidnag_status_fetch_errors_total",
			Help: "Status fetches that failed and left the job unchanged.",
		},
	)

	pollerActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidnag_poller_active",
			Help: "1 while the poll loop is running, 0 otherwise.",
		},
	)
)

func ObserveTick(d time.Duration, fetchErrors int) {
	pollTicksTotal.Inc()
	pollTickSeconds.Observe(d.Seconds())
	if fetchErrors > 0 {
		statusFetchErrorsTotal.Add(float64(fetchErrors))
	}
}

func SetPollerActive(active bool) {
	if active {
		pollerActive.Set(1)
		return
	}
	pollerActive.Set(0)
}
