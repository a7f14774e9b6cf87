package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/risa-org/gateway/config"
	"github.com/risa-org/gateway/gateway"
	"github.com/risa-org/gateway/logging"
	"github.com/risa-org/gateway/metrics"
	"github.com/risa-org/gateway/session"
	"github.com/risa-org/gateway/transport"
	"github.com/risa-org/gateway/transport/tcp"
	"github.com/risa-org/gateway/transport/websocket"
	"github.com/rs/zerolog"
)

// globals are the persistent flags shared by every command.
type globals struct {
	configPath  string
	envFile     string
	metricsAddr string
	debug       bool
}

// env is everything a command needs to run a client.
type env struct {
	cfg      config.File
	log      zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector
	store    session.CheckpointStore

	closers []func() error
}

func (g *globals) load(ctx context.Context, override func(*config.File)) (*env, error) {
	cfg, err := config.Load(g.configPath, g.envFile)
	if err != nil {
		return nil, err
	}
	if g.metricsAddr != "" {
		cfg.MetricsAddr = g.metricsAddr
	}
	if g.debug {
		cfg.Debug = true
	}
	if override != nil {
		override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := &env{
		cfg:      cfg,
		log:      logging.New(cfg.Logging("gatewayctl")),
		registry: prometheus.NewRegistry(),
	}
	e.metrics = metrics.New(metrics.WithRegistry(e.registry))

	store, closeStore, err := cfg.Checkpoint.OpenStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	e.store = store
	e.closers = append(e.closers, closeStore)

	if cfg.MetricsAddr != "" {
		e.serveMetrics(cfg.MetricsAddr)
	}
	return e, nil
}

func (e *env) serveMetrics(addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsRouter(e.registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	e.log.Info().Str("addr", addr).Msg("serving metrics")

	e.closers = append(e.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.log.Warn().Err(err).Msg("shutdown")
		}
	}
}

func (e *env) client() *gateway.Client {
	opts := []gateway.Option{
		gateway.WithConfig(e.cfg.Gateway()),
		gateway.WithDialer(schemeDialer{}),
		gateway.WithLogger(e.log),
		gateway.WithMetrics(e.metrics),
		gateway.WithDebug(func(kind gateway.DebugKind, msg string) {
			e.log.Info().Str("kind", kind.String()).Msg(msg)
		}),
	}
	if e.store != nil {
		opts = append(opts, gateway.WithCheckpoints(e.store, e.cfg.Checkpoint.Key))
	}

	c := gateway.New(opts...)
	c.OnEvent(func(eventType string, payload json.RawMessage) {
		e.log.Info().Str("event", eventType).RawJSON("payload", payload).Msg("dispatch")
	})
	return c
}

// run waits until the session ends or the process is interrupted.
func (e *env) run(c *gateway.Client) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		e.log.Info().Msg("shutting down")
	case <-c.Done():
		e.log.Info().Msg("session ended")
	}
	return c.Close()
}

// schemeDialer picks the transport from the URL scheme.
type schemeDialer struct{}

func (schemeDialer) Dial(ctx context.Context, rawURL string) (transport.Adapter, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "ws", "wss":
		return websocket.Dialer{}.Dial(ctx, rawURL)
	case "tcp":
		return tcp.Dialer{Timeout: 10 * time.Second}.Dial(ctx, rawURL)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}
