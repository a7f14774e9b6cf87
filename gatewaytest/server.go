// Package gatewaytest runs an in-process gateway for tests.
//
// The server answers a login with READY and a resume with RESUMED, and lets
// the test push events, redirects and abrupt drops to connected clients.
// Every frame a client sends is recorded and can be read back with Next.
package gatewaytest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/risa-org/gateway/protocol"
	"github.com/rs/zerolog"
)

// EventResumed is the dispatch sent after a successful resume.
const EventResumed = "RESUMED"

// ErrNoClients is returned when there is nobody to push a frame to.
var ErrNoClients = errors.New("no connected clients")

// Frame is one message as seen by the server.
type Frame struct {
	Op   protocol.Opcode `json:"op"`
	Type string          `json:"t,omitempty"`
	Seq  *int64          `json:"s,omitempty"`
	Data json.RawMessage `json:"d"`
}

// Server is a gateway served over WebSocket from an httptest.Server.
type Server struct {
	log       zerolog.Logger
	heartbeat time.Duration
	upgrader  websocket.Upgrader
	http      *httptest.Server
	seq       atomic.Int64

	received chan Frame
	done     chan struct{}
	once     sync.Once

	mu       sync.Mutex
	conns    map[*serverConn]struct{}
	sessions map[string]bool
}

type serverConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *serverConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger logs server activity.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithHeartbeat sets the interval announced in READY.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		s.heartbeat = d
	}
}

// New starts a server on a loopback port. Close it when done.
func New(opts ...Option) *Server {
	s := &Server{
		log:       zerolog.Nop(),
		heartbeat: time.Minute,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		received: make(chan Frame, 256),
		done:     make(chan struct{}),
		conns:    make(map[*serverConn]struct{}),
		sessions: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.http = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the ws:// URL clients dial.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.http.URL, "http")
}

// Host returns host:port, the form a redirect usually carries.
func (s *Server) Host() string {
	return strings.TrimPrefix(s.http.URL, "http://")
}

// Close drops every client and stops the server.
func (s *Server) Close() {
	s.once.Do(func() {
		close(s.done)
		s.DropConnections()
		s.http.Close()
	})
}

// Next returns the next frame a client sent.
func (s *Server) Next(ctx context.Context) (Frame, error) {
	select {
	case f := <-s.received:
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Connections returns the number of connected clients.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// HasSession reports whether the server issued id.
func (s *Server) HasSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// Dispatch sends an op 0 event with the next sequence number to every client.
func (s *Server) Dispatch(eventType string, data any) error {
	return s.push(protocol.OpDispatch, eventType, true, data)
}

// Redirect tells every client to move to url.
func (s *Server) Redirect(url string) error {
	return s.push(protocol.OpRedirect, "", false, protocol.Redirect{URL: url})
}

// SendRaw writes frame as-is to every client.
func (s *Server) SendRaw(frame []byte) error {
	conns := s.snapshot()
	if len(conns) == 0 {
		return ErrNoClients
	}
	return broadcast(conns, frame)
}

func broadcast(conns []*serverConn, frame []byte) error {
	var errs []error
	for _, c := range conns {
		errs = append(errs, c.write(frame))
	}
	return errors.Join(errs...)
}

// DropConnections closes every client socket without a close handshake.
func (s *Server) DropConnections() {
	for _, c := range s.snapshot() {
		c.ws.Close()
	}
}

func (s *Server) snapshot() []*serverConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns := make([]*serverConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	return conns
}

func (s *Server) push(op protocol.Opcode, eventType string, sequenced bool, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	// a push nobody receives must not use up a sequence number
	conns := s.snapshot()
	if len(conns) == 0 {
		return ErrNoClients
	}
	f := Frame{Op: op, Type: eventType, Data: raw}
	if sequenced {
		seq := s.seq.Add(1)
		f.Seq = &seq
	}
	frame, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return broadcast(conns, frame)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("upgrade failed")
		return
	}

	c := &serverConn{ws: ws}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("client connected")

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("client read ended")
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.log.Warn().Err(err).Msg("client sent invalid frame")
			continue
		}

		select {
		case s.received <- f:
		case <-s.done:
			return
		}

		if err := s.reply(c, f); err != nil {
			s.log.Warn().Err(err).Msg("reply failed")
			return
		}
	}
}

// reply answers login and resume, everything else is only recorded.
func (s *Server) reply(c *serverConn, f Frame) error {
	switch f.Op {
	case protocol.OpIdentify:
		id := uuid.NewString()
		s.mu.Lock()
		s.sessions[id] = true
		s.mu.Unlock()
		return s.sendEvent(c, protocol.EventReady, map[string]any{
			"session_id":         id,
			"heartbeat_interval": s.heartbeat.Milliseconds(),
		})

	case protocol.OpResume:
		var p protocol.ResumePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return err
		}
		s.advance(p.Sequence)
		return s.sendEvent(c, EventResumed, map[string]any{})
	}
	return nil
}

func (s *Server) sendEvent(c *serverConn, eventType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	seq := s.seq.Add(1)
	frame, err := json.Marshal(Frame{Op: protocol.OpDispatch, Type: eventType, Seq: &seq, Data: raw})
	if err != nil {
		return err
	}
	return c.write(frame)
}

// advance moves the sequence counter to at least seq.
func (s *Server) advance(seq int64) {
	for {
		cur := s.seq.Load()
		if cur >= seq || s.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
