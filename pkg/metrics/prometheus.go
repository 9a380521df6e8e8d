package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	postsFetched   *prometheus.CounterVec
	postsProcessed *prometheus.CounterVec
	alertsSent     *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lexicalScore   *prometheus.GaugeVec
	cycleDelay     prometheus.Gauge
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		postsFetched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_posts_fetched_total",
				Help: "Total number of posts fetched per platform",
			},
			[]string{"platform"},
		),
		postsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_posts_processed_total",
				Help: "Total number of new posts run through the pipeline",
			},
			[]string{"platform"},
		),
		alertsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_alerts_sent_total",
				Help: "Total number of alerts dispatched",
			},
			[]string{"platform"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lexicalScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpulse_last_lexical_score",
				Help: "Lexical score of the most recent post per platform",
			},
			[]string{"platform"},
		),
		cycleDelay: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketpulse_cycle_delay_seconds",
				Help: "Current scheduler delay between cycles",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPostsFetched records posts returned by a source fetch.
func (r *Recorder) RecordPostsFetched(platform string, n int) {
	r.postsFetched.WithLabelValues(platform).Add(float64(n))
}

// RecordPostProcessed records a new post entering the pipeline.
func (r *Recorder) RecordPostProcessed(platform string) {
	r.postsProcessed.WithLabelValues(platform).Inc()
}

// RecordAlertSent records a dispatched alert.
func (r *Recorder) RecordAlertSent(platform string) {
	r.alertsSent.WithLabelValues(platform).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLexicalScore records the lexical score of the latest post.
func (r *Recorder) RecordLexicalScore(platform string, score float64) {
	r.lexicalScore.WithLabelValues(platform).Set(score)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordCycleDelay records the scheduler's current inter-cycle delay.
func (r *Recorder) RecordCycleDelay(d time.Duration) {
	r.cycleDelay.Set(d.Seconds())
}
