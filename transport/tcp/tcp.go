package tcp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/risa-org/gateway/transport"
)

// MaxFrameSize bounds a single inbound frame. READY payloads can be large,
// anything beyond this is treated as a broken stream.
const MaxFrameSize = 16 << 20

// Adapter implements transport.Adapter over a raw TCP connection.
//
// Wire format for each frame:
//
//	[4 bytes: payload length uint32 big-endian][N bytes: UTF-8 JSON text]
//
// We define our own simple framing because TCP is a stream protocol:
// it has no concept of message boundaries. Without framing, a Read()
// call might return half a message or two messages joined together.
type Adapter struct {
	conn       net.Conn                       // the underlying TCP connection
	incoming   chan []byte                    // delivers received frames to caller
	disconnect chan transport.DisconnectEvent // signals when connection closes
	done       chan struct{}                  // closed by Close, unblocks the read loop
	closeOnce  sync.Once                      // guarantees cleanup runs exactly once
	writeMu    sync.Mutex                     // one writer at a time, frames must not interleave
}

// New wraps an existing net.Conn in a transport Adapter.
// The conn must already be established, dialing happens in Dialer.
// Immediately starts a read loop goroutine in the background.
func New(conn net.Conn) *Adapter {
	a := &Adapter{
		conn:       conn,
		incoming:   make(chan []byte, 64),                   // buffered so reader doesn't block on slow consumers
		disconnect: make(chan transport.DisconnectEvent, 1), // buffered so writer never blocks
		done:       make(chan struct{}),
	}

	go a.readLoop()

	return a
}

// Send writes one length-prefixed frame.
// A ctx deadline becomes the write deadline.
func (a *Adapter) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		a.conn.SetWriteDeadline(deadline)
		defer a.conn.SetWriteDeadline(time.Time{})
	}

	// header and payload in one write so a concurrent close can't split them
	buf := make([]byte, 4+len(frame))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(frame)))
	copy(buf[4:], frame)

	if _, err := a.conn.Write(buf); err != nil {
		return transport.ErrTransportClosed
	}
	return nil
}

// Receive returns the channel of incoming frames.
// The channel is closed when the connection closes.
func (a *Adapter) Receive() <-chan []byte {
	return a.incoming
}

// Disconnected returns a channel that emits exactly one event when
// the connection closes, for any reason.
func (a *Adapter) Disconnected() <-chan transport.DisconnectEvent {
	return a.disconnect
}

// Close shuts down the TCP connection cleanly.
// Safe to call multiple times, cleanup runs exactly once.
func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.done)
		err = a.conn.Close()
	})
	return err
}

// readLoop runs in a goroutine and continuously reads frames from the
// TCP connection. When the connection closes it signals disconnect and exits.
func (a *Adapter) readLoop() {
	defer func() {
		close(a.incoming) // signal to Receive() callers that we're done
		a.Close()
	}()

	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(a.conn, lenBuf[:]); err != nil {
			a.signalDisconnect(err)
			return
		}
		size := binary.BigEndian.Uint32(lenBuf[:])
		if size > MaxFrameSize {
			a.signalDisconnect(fmt.Errorf("frame of %d bytes exceeds limit %d", size, MaxFrameSize))
			return
		}

		frame := make([]byte, size)
		if _, err := io.ReadFull(a.conn, frame); err != nil {
			a.signalDisconnect(err)
			return
		}

		select {
		case a.incoming <- frame:
		case <-a.done:
			a.signalDisconnect(nil)
			return
		}
	}
}

// signalDisconnect figures out the reason for disconnection and
// sends exactly one event on the disconnect channel.
func (a *Adapter) signalDisconnect(err error) {
	event := transport.DisconnectEvent{}

	closedLocally := false
	select {
	case <-a.done:
		closedLocally = true
	default:
	}

	switch {
	case err == nil, errors.Is(err, io.EOF), closedLocally:
		// EOF means the remote side closed cleanly, done means we did
		event.Reason = transport.ReasonClosedClean
	case isTimeout(err):
		event.Reason = transport.ReasonTimeout
		event.Err = err
	default:
		event.Reason = transport.ReasonNetworkError
		event.Err = err
	}

	// non-blocking, channel is buffered(1)
	select {
	case a.disconnect <- event:
	default:
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Dialer opens TCP adapters for tcp://host:port URLs.
type Dialer struct {
	// Timeout bounds the connect, zero means only ctx applies.
	Timeout time.Duration
}

// Dial connects to rawURL and wraps the connection.
func (d Dialer) Dial(ctx context.Context, rawURL string) (transport.Adapter, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("tcp dial %s: %w", rawURL, err)
	}
	if u.Scheme != "tcp" || u.Host == "" {
		return nil, fmt.Errorf("tcp dial %s: expected tcp://host:port", rawURL)
	}

	nd := net.Dialer{Timeout: d.Timeout}
	conn, err := nd.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("tcp dial %s: %w", u.Host, err)
	}
	return New(conn), nil
}
