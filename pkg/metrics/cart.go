package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mylagoscommunity/cart-service/pkg/enums"
)

// CartMetrics records cart load, fallback, and migration telemetry.
type CartMetrics struct {
	loads          *prometheus.CounterVec
	loadDuration   *prometheus.HistogramVec
	loadFallbacks  prometheus.Counter
	linesSkipped   *prometheus.CounterVec
	remoteFailures *prometheus.CounterVec
	migrations     *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer. A nil
// registerer yields a no-op recorder.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	loads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_load_total",
		Help: "Cart loads by the store that served them.",
	}, []string{"source"})
	loadDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_load_duration_seconds",
		Help:    "Duration of cart loads in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	loadFallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_load_fallback_total",
		Help: "Authenticated loads that fell back to the guest cart.",
	})
	linesSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_lines_skipped_total",
		Help: "Cart lines excluded from the view.",
	}, []string{"reason"})
	remoteFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_remote_failures_total",
		Help: "Failed remote cart store calls.",
	}, []string{"op"})
	migrations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_migrations_total",
		Help: "Guest to remote cart migrations by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(loads, loadDuration, loadFallbacks, linesSkipped, remoteFailures, migrations)
	return &CartMetrics{
		loads:          loads,
		loadDuration:   loadDuration,
		loadFallbacks:  loadFallbacks,
		linesSkipped:   linesSkipped,
		remoteFailures: remoteFailures,
		migrations:     migrations,
	}
}

// ObserveLoad counts a load and records its duration.
func (c *CartMetrics) ObserveLoad(source enums.LineSource, seconds float64) {
	if c == nil || c.loads == nil {
		return
	}
	label := normalizeLabel(source.String())
	c.loads.WithLabelValues(label).Inc()
	c.loadDuration.WithLabelValues(label).Observe(seconds)
}

// IncLoadFallback counts a remote load that fell back to guest storage.
func (c *CartMetrics) IncLoadFallback() {
	if c == nil || c.loadFallbacks == nil {
		return
	}
	c.loadFallbacks.Inc()
}

func (c *CartMetrics) IncLineSkipped(reason string) {
	if c == nil || c.linesSkipped == nil {
		return
	}
	c.linesSkipped.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (c *CartMetrics) IncRemoteFailure(op string) {
	if c == nil || c.remoteFailures == nil {
		return
	}
	c.remoteFailures.WithLabelValues(normalizeLabel(op)).Inc()
}

func (c *CartMetrics) IncMigration(outcome string) {
	if c == nil || c.migrations == nil {
		return
	}
	c.migrations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
