package gateway

import (
	"github.com/risa-org/gateway/metrics"
	"github.com/risa-org/gateway/session"
	"github.com/risa-org/gateway/transport"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Client.
type Option func(*Client)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(c *Client) {
		c.cfg = cfg
	}
}

// WithDialer sets how connections are opened. Defaults to the WebSocket dialer.
func WithDialer(d transport.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithLogger sets the logger. Defaults to zerolog.Nop().
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithMetrics records client activity into m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracerProvider sets where login spans go. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// WithDebug installs the diagnostic sink. It is only called when
// Config.Debug is set.
func WithDebug(fn DebugFunc) Option {
	return func(c *Client) {
		c.debugFn = fn
	}
}

// WithCheckpoints saves resumable state under key whenever a connection
// ends, and enables Restore.
func WithCheckpoints(store session.CheckpointStore, key string) Option {
	return func(c *Client) {
		c.store = store
		c.storeKey = key
	}
}
