// Package metrics exposes Prometheus counters for cache sessions, frame
// hand-off and event delivery. A nil *Collector is valid and records nothing,
// so callers never need to guard their instrumentation.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session modes used as label values.
const (
	ModeRecord   = "record"
	ModePlayback = "playback"
)

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Namespace string            `yaml:"namespace"`
	Subsystem string            `yaml:"subsystem"`
	Labels    map[string]string `yaml:"labels"`
}

// DefaultConfig returns an enabled configuration in the "chaoscache" namespace.
func DefaultConfig() *Config {
	return &Config{Enabled: true, Namespace: "chaoscache"}
}

// Collector owns a private registry so several managers can coexist in one
// process (and in tests) without duplicate registration panics.
type Collector struct {
	registry *prometheus.Registry

	framesEnqueued   *prometheus.CounterVec
	framesFlushed    *prometheus.CounterVec
	eventsRecorded   *prometheus.CounterVec
	eventsDelivered  *prometheus.CounterVec
	sessionsOpened   *prometheus.CounterVec
	sessionsRejected *prometheus.CounterVec
	openSessions     *prometheus.GaugeVec
	flushDuration    prometheus.Histogram
}

// NewCollector creates a collector. A disabled config yields a nil collector.
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if !config.Enabled {
		return nil, nil
	}

	c := &Collector{registry: prometheus.NewRegistry()}
	opts := func(name, help string) (string, string, string, string, prometheus.Labels) {
		return config.Namespace, config.Subsystem, name, help, config.Labels
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		ns, sub, n, h, constLabels := opts(name, help)
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: n, Help: h, ConstLabels: constLabels,
		}, labels)
	}

	c.framesEnqueued = counter("frames_enqueued_total", "Pending frames handed to a cache queue.", "cache")
	c.framesFlushed = counter("frames_flushed_total", "Pending frames merged into persistent tracks.", "cache")
	c.eventsRecorded = counter("events_recorded_total", "Discrete events appended to event tracks.", "cache", "track")
	c.eventsDelivered = counter("events_delivered_total", "Discrete events delivered by Evaluate.", "cache", "track")
	c.sessionsOpened = counter("sessions_opened_total", "Record or playback sessions opened.", "cache", "mode")
	c.sessionsRejected = counter("sessions_rejected_total", "Record or playback sessions refused.", "cache", "mode")

	ns, sub, _, _, constLabels := opts("", "")
	c.openSessions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: sub, Name: "open_sessions", ConstLabels: constLabels,
		Help: "Currently open sessions.",
	}, []string{"mode"})
	c.flushDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: sub, Name: "flush_duration_seconds", ConstLabels: constLabels,
		Help:    "Time spent draining pending frames for one cache.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
	})

	for _, col := range []prometheus.Collector{
		c.framesEnqueued, c.framesFlushed, c.eventsRecorded, c.eventsDelivered,
		c.sessionsOpened, c.sessionsRejected, c.openSessions, c.flushDuration,
	} {
		if err := c.registry.Register(col); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	return c, nil
}

// Registry returns the private registry, or nil for a nil collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (c *Collector) FrameEnqueued(cache string) {
	if c == nil {
		return
	}
	c.framesEnqueued.WithLabelValues(cache).Inc()
}

func (c *Collector) FramesFlushed(cache string, n int, took time.Duration) {
	if c == nil {
		return
	}
	c.framesFlushed.WithLabelValues(cache).Add(float64(n))
	c.flushDuration.Observe(took.Seconds())
}

func (c *Collector) EventsRecorded(cache, track string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.eventsRecorded.WithLabelValues(cache, track).Add(float64(n))
}

func (c *Collector) EventsDelivered(cache, track string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.eventsDelivered.WithLabelValues(cache, track).Add(float64(n))
}

func (c *Collector) SessionOpened(cache, mode string) {
	if c == nil {
		return
	}
	c.sessionsOpened.WithLabelValues(cache, mode).Inc()
	c.openSessions.WithLabelValues(mode).Inc()
}

func (c *Collector) SessionClosed(mode string) {
	if c == nil {
		return
	}
	c.openSessions.WithLabelValues(mode).Dec()
}

func (c *Collector) SessionRejected(cache, mode string) {
	if c == nil {
		return
	}
	c.sessionsRejected.WithLabelValues(cache, mode).Inc()
}
