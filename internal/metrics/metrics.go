package metrics

import (
	"time"

	"github.com/bluecrab/gis-backend/internal/survey"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts store operations by outcome and tracks their latency.
type Recorder struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRecorder registers the store collectors on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crabgis",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Survey store operations by result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crabgis",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Survey store operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"op"}),
	}
	for _, c := range []prometheus.Collector{r.ops, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) Observe(op string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = survey.KindOf(err)
		if result == "" {
			result = "error"
		}
	}
	r.ops.WithLabelValues(op, result).Inc()
	r.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}
