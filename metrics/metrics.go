// Package metrics exposes Prometheus collectors for the gateway client.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "gateway").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Collector holds the client's metrics. A nil *Collector is valid and
// records nothing, so components never need to check.
type Collector struct {
	framesDispatched   *prometheus.CounterVec
	malformedFrames    prometheus.Counter
	sequenceRegression prometheus.Counter
	redirects          prometheus.Counter
	reconnects         prometheus.Counter
	resumesSent        prometheus.Counter
	handshakeDuration  prometheus.Histogram
	handshakeFailures  *prometheus.CounterVec
}

// New registers the collectors.
func New(opts ...Option) *Collector {
	cfg := Config{
		Namespace: "gateway",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	factory := promauto.With(cfg.Registry)

	return &Collector{
		framesDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "frames_dispatched_total",
			Help:        "Inbound frames dispatched, by operation code",
			ConstLabels: cfg.ConstLabels,
		}, []string{"op"}),

		malformedFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "malformed_frames_total",
			Help:        "Inbound frames dropped because they could not be decoded",
			ConstLabels: cfg.ConstLabels,
		}),

		sequenceRegression: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "sequence_regressions_total",
			Help:        "Inbound sequence numbers lower than the previous one",
			ConstLabels: cfg.ConstLabels,
		}),

		redirects: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "redirects_total",
			Help:        "Server redirect instructions received",
			ConstLabels: cfg.ConstLabels,
		}),

		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "reconnects_total",
			Help:        "Transport reconnections after redirect or drop",
			ConstLabels: cfg.ConstLabels,
		}),

		resumesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "resumes_sent_total",
			Help:        "Resume commands sent on a reopened connection",
			ConstLabels: cfg.ConstLabels,
		}),

		handshakeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "handshake_duration_seconds",
			Help:        "Time from login sent to READY handled",
			ConstLabels: cfg.ConstLabels,
			Buckets:     prometheus.DefBuckets,
		}),

		handshakeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "handshake_failures_total",
			Help:        "Failed logins, by reason",
			ConstLabels: cfg.ConstLabels,
		}, []string{"reason"}),
	}
}

func (c *Collector) FrameDispatched(op string) {
	if c == nil {
		return
	}
	c.framesDispatched.WithLabelValues(op).Inc()
}

func (c *Collector) MalformedFrame() {
	if c == nil {
		return
	}
	c.malformedFrames.Inc()
}

func (c *Collector) SequenceRegression() {
	if c == nil {
		return
	}
	c.sequenceRegression.Inc()
}

func (c *Collector) Redirect() {
	if c == nil {
		return
	}
	c.redirects.Inc()
}

func (c *Collector) Reconnect() {
	if c == nil {
		return
	}
	c.reconnects.Inc()
}

func (c *Collector) ResumeSent() {
	if c == nil {
		return
	}
	c.resumesSent.Inc()
}

func (c *Collector) HandshakeCompleted(d time.Duration) {
	if c == nil {
		return
	}
	c.handshakeDuration.Observe(d.Seconds())
}

func (c *Collector) HandshakeFailed(reason string) {
	if c == nil {
		return
	}
	c.handshakeFailures.WithLabelValues(reason).Inc()
}
