package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	namespace  = "scholarship_hunter"
	DefaultJob = "scholarship_hunter"
)

// Recorder holds the collectors of a single run. Every run starts from zero,
// so values are pushed as a whole group to the Pushgateway.
type Recorder struct {
	registry *prometheus.Registry

	hits         prometheus.Gauge
	outcomes     *prometheus.CounterVec
	duration     prometheus.Gauge
	lastFinished prometheus.Gauge

	pushURL string
	job     string
}

func NewRecorder(pushURL, job string) *Recorder {
	if job = strings.TrimSpace(job); job == "" {
		job = DefaultJob
	}

	r := &Recorder{
		registry: prometheus.NewRegistry(),
		hits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "search_hits",
			Help:      "Number of search hits collected in the last run.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "candidates_total",
			Help:      "Number of processed hits by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastFinished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "last_finished_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		pushURL: strings.TrimSpace(pushURL),
		job:     job,
	}

	r.registry.MustRegister(r.hits, r.outcomes, r.duration, r.lastFinished)

	return r
}

// Observe records the totals of a finished run.
func (r *Recorder) Observe(hits int, outcomes map[string]int, duration time.Duration) {
	r.hits.Set(float64(hits))
	for outcome, n := range outcomes {
		if n <= 0 {
			continue
		}
		r.outcomes.WithLabelValues(outcome).Add(float64(n))
	}
	r.duration.Set(duration.Seconds())
	r.lastFinished.SetToCurrentTime()
}

// Enabled reports whether a Pushgateway is configured.
func (r *Recorder) Enabled() bool {
	return r.pushURL != ""
}

// Push sends the collected metrics to the Pushgateway. It is a no-op when none is configured.
func (r *Recorder) Push(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}

	if err := push.New(r.pushURL, r.job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", r.pushURL, err)
	}

	return nil
}
