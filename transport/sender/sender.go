package sender

import (
	"context"
	"errors"
	"fmt"

	"github.com/risa-org/gateway/protocol"
	"github.com/risa-org/gateway/transport"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrQueueFull is returned by Queue when the outbound queue has no room.
var ErrQueueFull = errors.New("outbound queue full")

// DefaultQueueSize bounds commands waiting for the writer.
const DefaultQueueSize = 64

// Sender is the single place where commands for one connection are encoded,
// paced and written to the transport.
//
// Two paths:
//
//	sender.Send(ctx, cmd)  // synchronous, used for login and resume
//	sender.Queue(cmd)      // non-blocking, drained by Run
//
// Queue never blocks, so it is safe to call from the dispatch path.
// Both paths share the same limiter so the gateway's rate limit holds
// regardless of which one a command took.
type Sender struct {
	adapter transport.Adapter
	limiter *rate.Limiter
	queue   chan protocol.Command
	log     zerolog.Logger
}

// Options tunes a Sender. Zero values pick defaults.
type Options struct {
	// Rate is the sustained number of frames per second, zero disables pacing.
	Rate rate.Limit
	// Burst is the number of frames allowed at once, minimum 1.
	Burst int
	// QueueSize bounds queued commands.
	QueueSize int
	Logger    zerolog.Logger
}

// New creates a Sender for adapter.
func New(adapter transport.Adapter, opts Options) *Sender {
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}

	var limiter *rate.Limiter
	if opts.Rate > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(opts.Rate, burst)
	}

	return &Sender{
		adapter: adapter,
		limiter: limiter,
		queue:   make(chan protocol.Command, size),
		log:     opts.Logger,
	}
}

// Send encodes cmd and writes it before returning.
// Waits for the limiter, which honors ctx.
func (s *Sender) Send(ctx context.Context, cmd protocol.Command) error {
	frame, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("send %s: %w", cmd.Op, err)
		}
	}

	if err := s.adapter.Send(ctx, frame); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Op, err)
	}

	s.log.Trace().Str("op", cmd.Op.String()).Int("bytes", len(frame)).Msg("frame sent")
	return nil
}

// Queue hands cmd to the writer without blocking.
func (s *Sender) Queue(cmd protocol.Command) error {
	select {
	case s.queue <- cmd:
		return nil
	default:
		return fmt.Errorf("queue %s: %w", cmd.Op, ErrQueueFull)
	}
}

// Run drains the queue until ctx is done or a write fails.
// A failed write ends Run, the connection is considered broken.
func (s *Sender) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-s.queue:
			if err := s.Send(ctx, cmd); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}
