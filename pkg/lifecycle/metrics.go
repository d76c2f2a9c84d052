package lifecycle

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	cnserrors "github.com/snapshotalyzer/shotty/pkg/errors"
)

const (
	resultSuccess = "success"
	resultError   = "error"
	resultSkipped = "skipped"
)

var (
	sweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shotty_sweep_duration_seconds",
			Help:    "Time taken to run an operation over a selected instance set",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 900},
		},
		[]string{"operation"}, // snapshot, start, stop, reboot
	)

	instanceOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shotty_instance_outcomes_total",
			Help: "Total number of instances processed per operation",
		},
		[]string{"operation", "result"}, // success or error
	)

	volumeSnapshots = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shotty_volume_snapshots_total",
			Help: "Total number of volume snapshot requests",
		},
		[]string{"result"}, // success, error or skipped
	)

	instanceRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shotty_instance_restarts_total",
			Help: "Instances stopped for a snapshot and whether they were started again",
		},
		[]string{"result"}, // success, error or skipped
	)
)

func observeSweep(operation string, start time.Time) {
	sweepDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func recordInstance(operation string, failed bool) {
	result := resultSuccess
	if failed {
		result = resultError
	}
	instanceOutcomes.WithLabelValues(operation, result).Inc()
}

// WriteMetrics writes the default registry to path in the Prometheus text
// format, as read by the node_exporter textfile collector. The file is
// replaced atomically. An empty path is a no-op.
func WriteMetrics(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return cnserrors.WrapWithContext(cnserrors.ErrCodeInternal, "failed to write metrics", err,
			map[string]any{"path": path})
	}
	return nil
}
