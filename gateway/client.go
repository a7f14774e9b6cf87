// Package gateway is a client for a persistent real-time gateway.
//
// A Client owns one logical session across many physical connections.
// It logs in, tracks the last sequence number and session id the server
// handed out, follows server redirects and resumes the session on the new
// host without a fresh login.
//
//	c := gateway.New(gateway.WithLogger(log))
//	if err := c.Open(ctx, "wss://gateway.example.com", token); err != nil {
//		return err
//	}
//	defer c.Close()
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/risa-org/gateway/handshake"
	"github.com/risa-org/gateway/metrics"
	"github.com/risa-org/gateway/session"
	"github.com/risa-org/gateway/transport"
	"github.com/risa-org/gateway/transport/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/risa-org/gateway"

// EventFunc receives every dispatched event in arrival order.
// It runs on the read loop; slow handlers delay later frames.
type EventFunc func(eventType string, payload json.RawMessage)

type subscriber struct {
	fn EventFunc
}

// Client is a gateway client. Safe for concurrent use.
type Client struct {
	cfg      Config
	dialer   transport.Dialer
	log      zerolog.Logger
	metrics  *metrics.Collector
	tracer   trace.Tracer
	debugFn  DebugFunc
	store    session.CheckpointStore
	storeKey string
	rng      *rand.Rand

	state *session.State
	gate  *handshake.Gate

	subMu sync.RWMutex
	subs  []*subscriber

	mu          sync.Mutex
	lifecycle   session.Lifecycle
	url         string
	conn        *connection
	connChanged chan struct{}
	running     bool
	starting    bool
	closing     bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// New creates a Client. Nothing is dialed until Connect, Open or Restore.
func New(opts ...Option) *Client {
	c := &Client{
		cfg:    DefaultConfig(),
		dialer: websocket.Dialer{},
		log:    zerolog.Nop(),
		tracer: otel.Tracer(tracerName),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		state:  session.NewState(),
		gate:   handshake.NewGate(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open connects to url and logs in with token.
//
// A redirect during login is followed: the client reconnects to the new
// host and logs in there. On any other failure the connection is closed
// again.
func (c *Client) Open(ctx context.Context, url, token string) error {
	if err := c.Connect(ctx, url); err != nil {
		return err
	}

	conn := c.currentConn()
	for {
		err := c.Login(ctx, token)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrServerRedirecting) {
			c.Close()
			return err
		}

		next, werr := c.awaitConn(ctx, conn)
		if werr != nil {
			c.Close()
			return fmt.Errorf("%w: %w", err, werr)
		}
		// authenticated just before the redirect, the new host resumes
		if _, _, ok := c.state.Resumable(); ok {
			return nil
		}
		c.log.Debug().Str("url", next.url).Msg("login redirected, retrying on new host")
		conn = next
	}
}

// Connect opens a fresh connection to url with empty session state.
// Login must follow before the server sends events.
func (c *Client) Connect(ctx context.Context, url string) error {
	if err := ValidateURL(url); err != nil {
		return err
	}
	if err := c.claim(); err != nil {
		return err
	}

	c.state.Reset()
	c.gate.Reset()

	conn, err := c.open(ctx, url)
	if err != nil {
		c.release()
		return err
	}

	c.mu.Lock()
	c.lifecycle.Transition(session.StateConnecting)
	c.mu.Unlock()

	if err := c.start(conn); err != nil {
		return err
	}
	c.debugf(DebugConnection, "connected to %s", url)
	return nil
}

// Restore reopens the session saved by WithCheckpoints and resumes it.
// Returns ErrNoCheckpoint when nothing resumable was stored.
func (c *Client) Restore(ctx context.Context) error {
	if c.store == nil {
		return ErrNoCheckpoint
	}
	cp, ok, err := c.store.Load(ctx, c.storeKey)
	if err != nil {
		return err
	}
	if !ok || !cp.Valid() {
		return ErrNoCheckpoint
	}
	if err := ValidateURL(cp.URL); err != nil {
		return err
	}
	if err := c.claim(); err != nil {
		return err
	}

	c.state.Reset()
	c.state.Restore(cp)
	c.gate.Reset()

	conn, err := c.open(ctx, cp.URL)
	if err != nil {
		c.release()
		return err
	}
	if err := c.resume(ctx, conn); err != nil {
		conn.adapter.Close()
		c.mu.Lock()
		c.lifecycle.Transition(session.StateDisconnected)
		c.mu.Unlock()
		c.release()
		return err
	}

	return c.start(conn)
}

// Close ends the session and waits for the connection to wind down.
// The checkpoint, if configured, is saved before Close returns.
// A Connect or Restore still dialing fails with ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.starting {
		c.closing = true
		c.mu.Unlock()
		return nil
	}
	conn, cancel, done := c.conn, c.cancel, c.done
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if conn != nil {
		conn.disconnect(nil, false)
	}
	<-done
	return nil
}

// Done is closed when the current session ends for good: after Close,
// a clean close by the server, or a failed reconnect.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return c.done
}

// OnEvent registers fn for dispatched events. Call the returned func to
// stop receiving them.
func (c *Client) OnEvent(fn EventFunc) (unsubscribe func()) {
	sub := &subscriber{fn: fn}

	c.subMu.Lock()
	c.subs = append(c.subs, sub)
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			for i, s := range c.subs {
				if s == sub {
					c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (c *Client) emit(eventType string, payload json.RawMessage) {
	c.subMu.RLock()
	subs := make([]*subscriber, len(c.subs))
	copy(subs, c.subs)
	c.subMu.RUnlock()

	for _, s := range subs {
		s.fn(eventType, payload)
	}
}

// State returns the lifecycle state of the current connection.
func (c *Client) State() session.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lifecycle.State()
}

// SessionID returns the id from the last READY, or "" before one arrived.
func (c *Client) SessionID() string {
	return c.state.SessionID()
}

// Sequence returns the last sequence number seen.
func (c *Client) Sequence() int64 {
	return c.state.Sequence()
}

// URL returns the URL of the current or last connection.
func (c *Client) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

func (c *Client) setState(next session.ConnState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	from := c.lifecycle.State()
	if !c.lifecycle.Transition(next) {
		c.log.Warn().Str("from", from.String()).Str("to", next.String()).Msg("invalid state transition")
	}
}

// claim marks the client as running so concurrent Connects fail fast.
func (c *Client) claim() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrAlreadyConnected
	}
	c.running = true
	c.starting = true
	c.closing = false
	return nil
}

func (c *Client) release() {
	c.mu.Lock()
	c.running = false
	c.starting = false
	c.closing = false
	c.mu.Unlock()
}

// setConnLocked installs conn and wakes awaitConn. c.mu must be held.
func (c *Client) setConnLocked(conn *connection) {
	c.conn = conn
	if c.connChanged != nil {
		close(c.connChanged)
	}
	c.connChanged = make(chan struct{})
}

// awaitConn waits until the supervisor has replaced prev with a new,
// ready connection.
func (c *Client) awaitConn(ctx context.Context, prev *connection) (*connection, error) {
	for {
		c.mu.Lock()
		conn, changed, running := c.conn, c.connChanged, c.running
		c.mu.Unlock()

		if conn != nil && conn != prev {
			return conn, nil
		}
		if !running {
			return nil, ErrNotConnected
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Client) currentConn() *connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// start hands conn to a supervisor that owns it and every connection
// that replaces it. It refuses when Close ran while conn was dialed.
func (c *Client) start(conn *connection) error {
	c.mu.Lock()
	if c.closing {
		c.running = false
		c.starting = false
		c.closing = false
		c.lifecycle.Transition(session.StateDisconnected)
		c.mu.Unlock()
		conn.adapter.Close()
		return ErrClientClosed
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.url = conn.url
	c.setConnLocked(conn)
	c.starting = false
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go c.supervise(ctx, conn, done)
	return nil
}

// supervise serves connections until the session ends, reconnecting
// after redirects and, when configured, after transport failures.
func (c *Client) supervise(ctx context.Context, conn *connection, done chan struct{}) {
	defer close(done)
	defer func() {
		c.mu.Lock()
		c.running = false
		c.setConnLocked(nil)
		c.mu.Unlock()
	}()

	for {
		c.serve(ctx, conn)
		reason, reconnect := conn.outcome()
		c.setState(session.StateDisconnected)
		if errors.Is(reason, ErrConnectionClosed) && ctx.Err() == nil {
			// the server ended the session, nothing left to resume
			c.dropCheckpoint()
		} else {
			c.saveCheckpoint(conn.url)
		}

		event := c.log.Info().Str("conn", conn.id).Str("url", conn.url)
		if reason != nil {
			event = event.AnErr("reason", reason)
		}
		event.Bool("reconnect", reconnect).Msg("connection ended")

		if ctx.Err() != nil || !reconnect {
			return
		}

		c.metrics.Reconnect()
		next, err := c.reconnect(ctx, conn.url)
		if err != nil {
			c.log.Error().Err(err).Msg("reconnect failed")
			c.debugf(DebugConnection, "reconnect failed: %v", err)
			return
		}
		conn = next
	}
}

// reconnect dials the redirect target if one is pending, otherwise the
// previous URL, retrying with backoff.
func (c *Client) reconnect(ctx context.Context, previous string) (*connection, error) {
	target := previous
	if host, ok := c.state.TakeRedirect(); ok {
		target = resolveRedirect(previous, host)
	}

	for attempt := 1; ; attempt++ {
		conn, err := c.open(ctx, target)
		if err == nil {
			if err = c.resume(ctx, conn); err == nil {
				c.mu.Lock()
				c.url = target
				c.setConnLocked(conn)
				c.mu.Unlock()
				return conn, nil
			}
			conn.adapter.Close()
			c.setState(session.StateDisconnected)
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warn().Err(err).Int("attempt", attempt).Str("url", target).Msg("reconnect attempt failed")
		if c.cfg.MaxReconnectAttempts > 0 && attempt >= c.cfg.MaxReconnectAttempts {
			return nil, err
		}

		delay := NextBackoffDelay(c.cfg.Backoff, attempt, c.rng)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
