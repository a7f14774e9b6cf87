package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/risa-org/gateway/protocol"
	"github.com/risa-org/gateway/session"
	"github.com/risa-org/gateway/transport"
	"github.com/risa-org/gateway/transport/sender"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// connection is one physical transport plus the goroutines serving it.
// Its context is cancelled with the disconnect reason as the cause.
type connection struct {
	id        string
	url       string
	adapter   transport.Adapter
	sender    *sender.Sender
	heartbeat chan time.Duration

	ctx    context.Context
	cancel context.CancelCauseFunc

	mu        sync.Mutex
	closed    bool
	reason    error
	reconnect bool
}

func newConnection(url string, adapter transport.Adapter, s *sender.Sender) *connection {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &connection{
		id:        uuid.NewString(),
		url:       url,
		adapter:   adapter,
		sender:    s,
		heartbeat: make(chan time.Duration, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// disconnect records why the connection ends and whether the client
// should reconnect. The first call wins.
func (c *connection) disconnect(reason error, reconnect bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.reason = reason
	c.reconnect = reconnect
	c.mu.Unlock()

	c.cancel(reason)
}

func (c *connection) outcome() (reason error, reconnect bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason, c.reconnect
}

// armHeartbeat (re)starts the keepalive ticker at interval d.
func (c *connection) armHeartbeat(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-c.heartbeat:
	default:
	}
	select {
	case c.heartbeat <- d:
	default:
	}
}

func (c *Client) open(ctx context.Context, url string) (*connection, error) {
	adapter, err := c.dialer.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	s := sender.New(adapter, sender.Options{
		Rate:      rate.Limit(c.cfg.SendRate),
		Burst:     c.cfg.SendBurst,
		QueueSize: c.cfg.QueueSize,
		Logger:    c.log,
	})
	conn := newConnection(url, adapter, s)
	c.log.Debug().Str("conn", conn.id).Str("url", url).Msg("transport open")
	return conn, nil
}

// resume prepares a freshly dialed connection. With a resumable session
// the resume command is written before anything else can be sent on it.
// Without one the connection waits for Login.
func (c *Client) resume(ctx context.Context, conn *connection) error {
	id, seq, ok := c.state.Resumable()
	if !ok {
		c.gate.Reset()
		c.setState(session.StateConnecting)
		c.debugf(DebugConnection, "connected to %s, login required", conn.url)
		return nil
	}

	c.setState(session.StateResuming)

	sendCtx := ctx
	if c.cfg.ResumeTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, c.cfg.ResumeTimeout)
		defer cancel()
	}
	if err := conn.sender.Send(sendCtx, protocol.Resume(id, seq)); err != nil {
		return err
	}

	c.metrics.ResumeSent()
	conn.armHeartbeat(c.state.HeartbeatInterval())
	c.debugf(DebugConnection, "resuming session %s at sequence %d on %s", id, seq, conn.url)
	return nil
}

// serve runs the read loop, the writer and the heartbeat for conn until
// it ends. The outcome is recorded on conn.
func (c *Client) serve(ctx context.Context, conn *connection) {
	stop := context.AfterFunc(ctx, func() {
		conn.disconnect(nil, false)
	})
	defer stop()

	g, gctx := errgroup.WithContext(conn.ctx)
	g.Go(func() error {
		return c.readLoop(gctx, conn)
	})
	g.Go(func() error {
		return conn.sender.Run(gctx)
	})
	g.Go(func() error {
		return c.heartbeatLoop(gctx, conn)
	})

	if err := g.Wait(); err != nil {
		conn.disconnect(fmt.Errorf("%w: %w", ErrConnectionLost, err), c.cfg.Reconnect)
	}
	conn.adapter.Close()
}

func (c *Client) readLoop(ctx context.Context, conn *connection) error {
	frames := conn.adapter.Receive()
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				c.transportDropped(conn)
				return nil
			}
			if err := c.dispatch(conn, frame); err != nil {
				c.log.Warn().Err(err).Str("conn", conn.id).Msg("dropping frame")
				if errors.Is(err, protocol.ErrMalformedFrame) {
					c.metrics.MalformedFrame()
					c.debugf(DebugMalformed, "malformed frame: %v", err)
				}
			}
		}
	}
}

// transportDropped records the adapter's disconnect event. Adapters
// signal it before closing Receive, so it is already buffered here.
func (c *Client) transportDropped(conn *connection) {
	event := transport.DisconnectEvent{Reason: transport.ReasonUnknown, Err: transport.ErrTransportClosed}
	select {
	case event = <-conn.adapter.Disconnected():
	default:
	}

	c.debugf(DebugConnection, "transport closed: %s", event.Reason)
	if event.Reason == transport.ReasonClosedClean {
		conn.disconnect(ErrConnectionClosed, false)
		return
	}
	cause := event.Err
	if cause == nil {
		cause = transport.ErrTransportClosed
	}
	conn.disconnect(fmt.Errorf("%w: %s: %w", ErrConnectionLost, event.Reason, cause), c.cfg.Reconnect)
}

func (c *Client) heartbeatLoop(ctx context.Context, conn *connection) error {
	var ticker *time.Ticker
	var tick <-chan time.Time
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-conn.heartbeat:
			if ticker == nil {
				ticker = time.NewTicker(d)
			} else {
				ticker.Reset(d)
			}
			tick = ticker.C
		case now := <-tick:
			if err := conn.sender.Queue(protocol.KeepAlive(now)); err != nil {
				c.log.Warn().Err(err).Str("conn", conn.id).Msg("heartbeat skipped")
			}
		}
	}
}
