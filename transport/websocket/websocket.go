package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/risa-org/gateway/transport"
	"nhooyr.io/websocket"
)

// DefaultReadLimit is the largest inbound message accepted.
// READY carries the whole initial state and easily exceeds the library's
// 32 KiB default.
const DefaultReadLimit int64 = 16 << 20

// Adapter implements transport.Adapter over a WebSocket connection.
// Each gateway message travels as one text message; WebSocket already has
// message boundaries built in, so there is no extra framing.
type Adapter struct {
	conn       *websocket.Conn
	incoming   chan []byte
	disconnect chan transport.DisconnectEvent
	closeOnce  sync.Once
	ctx        context.Context
	cancel     context.CancelFunc
}

// New wraps an existing *websocket.Conn in a transport Adapter.
func New(conn *websocket.Conn) *Adapter {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Adapter{
		conn:       conn,
		incoming:   make(chan []byte, 64),
		disconnect: make(chan transport.DisconnectEvent, 1),
		ctx:        ctx,
		cancel:     cancel,
	}
	go a.readLoop()
	return a
}

func (a *Adapter) Send(ctx context.Context, frame []byte) error {
	if err := a.conn.Write(ctx, websocket.MessageText, frame); err != nil {
		if ctx.Err() != nil && a.ctx.Err() == nil {
			return ctx.Err()
		}
		return transport.ErrTransportClosed
	}
	return nil
}

func (a *Adapter) Receive() <-chan []byte {
	return a.incoming
}

func (a *Adapter) Disconnected() <-chan transport.DisconnectEvent {
	return a.disconnect
}

func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.cancel()
		err = a.conn.Close(websocket.StatusNormalClosure, "closed")
	})
	return err
}

func (a *Adapter) readLoop() {
	defer func() {
		close(a.incoming)
		a.Close()
	}()

	for {
		typ, data, err := a.conn.Read(a.ctx)
		if err != nil {
			a.signalDisconnect(err)
			return
		}
		if typ != websocket.MessageText {
			// the gateway only speaks text, binary frames are ignored
			continue
		}
		select {
		case a.incoming <- data:
		case <-a.ctx.Done():
			a.signalDisconnect(a.ctx.Err())
			return
		}
	}
}

// signalDisconnect sends exactly one disconnect event.
// StatusNormalClosure (1000) and StatusGoingAway (1001) are both clean closes:
// different WebSocket implementations and shutdown timing produce either code.
// Context cancellation means we closed it ourselves, also clean.
func (a *Adapter) signalDisconnect(err error) {
	event := transport.DisconnectEvent{}

	status := websocket.CloseStatus(err)
	switch {
	case status == websocket.StatusNormalClosure,
		status == websocket.StatusGoingAway,
		a.ctx.Err() != nil:
		event.Reason = transport.ReasonClosedClean
	case errors.Is(err, context.DeadlineExceeded):
		event.Reason = transport.ReasonTimeout
		event.Err = err
	default:
		event.Reason = transport.ReasonNetworkError
		event.Err = err
	}

	select {
	case a.disconnect <- event:
	default:
	}
}

// Dialer opens WebSocket adapters for ws:// and wss:// URLs.
type Dialer struct {
	// HTTPClient is used for the opening handshake, nil means the default.
	HTTPClient *http.Client
	// Header is sent with the opening handshake.
	Header http.Header
	// ReadLimit overrides DefaultReadLimit when positive.
	ReadLimit int64
}

// Dial performs the opening handshake and wraps the connection.
func (d Dialer) Dial(ctx context.Context, url string) (transport.Adapter, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: d.Header,
	})
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}

	limit := d.ReadLimit
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	conn.SetReadLimit(limit)

	return New(conn), nil
}
