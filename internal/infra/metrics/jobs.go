package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(submissionsTotal, cancelsTotal, evictionsTotal, registryJobs, recoveredJobsTotal)
}

var (
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidnag_submissions_total",
			Help: "Source references submitted, labeled by result.",
		},
		[]string{"result"}, // 'accepted', 'failed', 'rate_limited'
	)

	cancelsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidnag_cancels_total",
			Help: "Cancel requests, labeled by result.",
		},
		[]string{"result"}, // 'cancelled', 'dismissed', 'failed'
	)

	evictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidnag_jobs_evicted_total",
			Help: "Tracked jobs evicted after a terminal server status.",
		},
		[]string{"status"},
	)

	registryJobs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vidnag_registry_jobs",
			Help: "Jobs currently in the registry, labeled by kind.",
		},
		[]string{"kind"},
	)

	recoveredJobsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vidnag_recovered_jobs_total",
			Help: "Jobs seeded into the registry by startup recovery.",
		},
	)
)

func IncSubmission(result string) {
	submissionsTotal.WithLabelValues(norm(result)).Inc()
}

func IncCancel(result string) {
	cancelsTotal.WithLabelValues(norm(result)).Inc()
}

func IncEviction(status string) {
	evictionsTotal.WithLabelValues(norm(status)).Inc()
}

func AddRecovered(n int) {
	recoveredJobsTotal.Add(float64(n))
}

// SetRegistryJobs replaces the per-kind gauge values; kinds absent from counts are zeroed.
func SetRegistryJobs(counts map[string]int, kinds ...string) {
	for _, k := range kinds {
		registryJobs.WithLabelValues(norm(k)).Set(float64(counts[k]))
	}
}
