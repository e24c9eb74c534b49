package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tixsync_reservations_total",
			Help: "Reservation requests by outcome",
		},
		[]string{"outcome"},
	)

	versionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tixsync_version_conflicts_total",
			Help: "Optimistic write conflicts by operation",
		},
		[]string{"operation"},
	)

	lockAcquisitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tixsync_lock_acquisitions_total",
			Help: "Distributed lock attempts by result",
		},
		[]string{"result"},
	)

	settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tixsync_settlements_total",
			Help: "Settlement confirmations by outcome",
		},
		[]string{"outcome"},
	)

	sweepRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tixsync_sweep_records_total",
			Help: "Records handled by expiration sweeps",
		},
		[]string{"sweep", "result"},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tixsync_cache_lookups_total",
			Help: "Read cache lookups by result",
		},
		[]string{"result"},
	)

	sweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tixsync_sweep_duration_seconds",
			Help:    "Duration of one expiration sweep",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"sweep"},
	)
)

func Reservation(outcome string) { reservations.WithLabelValues(outcome).Inc() }

func VersionConflict(operation string) { versionConflicts.WithLabelValues(operation).Inc() }

func LockAcquire(acquired bool) {
	if acquired {
		lockAcquisitions.WithLabelValues("acquired").Inc()
		return
	}
	lockAcquisitions.WithLabelValues("busy").Inc()
}

func Settlement(outcome string) { settlements.WithLabelValues(outcome).Inc() }

func SweepRecord(sweep, result string) { sweepRecords.WithLabelValues(sweep, result).Inc() }

// CacheLookup records "hit", "miss" or "error".
func CacheLookup(result string) { cacheLookups.WithLabelValues(result).Inc() }

func ObserveSweep(sweep string, start time.Time) {
	sweepDuration.WithLabelValues(sweep).Observe(time.Since(start).Seconds())
}
