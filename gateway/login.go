package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/risa-org/gateway/handshake"
	"github.com/risa-org/gateway/protocol"
	"github.com/risa-org/gateway/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Login authenticates the current connection with token.
//
// It returns once READY has been recorded and delivered to every event
// subscriber. Errors:
//
//	ErrNoServerResponse   no READY within Config.HandshakeTimeout
//	ErrServerRedirecting  the server moved the client mid-login, the
//	                      client reconnects and resumes on its own
//	ErrConnectionClosed, ErrConnectionLost  the transport went away
//	ErrUnknownConnection  cancelled without a recorded reason
//
// A connection dropped after authentication but before subscribers saw
// READY is not a login failure and returns nil.
func (c *Client) Login(ctx context.Context, token string) error {
	conn := c.currentConn()
	if conn == nil {
		return ErrNotConnected
	}

	ctx, span := c.tracer.Start(ctx, "gateway.Login",
		trace.WithAttributes(
			attribute.String("gateway.url", conn.url),
			attribute.String("gateway.conn", conn.id),
		))
	defer span.End()

	c.gate.Reset()
	start := time.Now()

	// the wait ends with the caller or with the connection, whichever goes first
	waitCtx, stopWait := context.WithCancel(ctx)
	defer stopWait()
	stopLink := context.AfterFunc(conn.ctx, stopWait)
	defer stopLink()

	if err := conn.sender.Send(waitCtx, protocol.Login(token)); err != nil {
		err = c.loginFailure(ctx, conn, err)
		c.failLogin(span, err)
		return err
	}

	if err := c.gate.AwaitAuthenticated(waitCtx, c.cfg.HandshakeTimeout); err != nil {
		err = c.loginFailure(ctx, conn, err)
		c.failLogin(span, err)
		return err
	}

	if !c.gate.AwaitReady(waitCtx) {
		c.log.Debug().Str("conn", conn.id).Msg("connection ended before ready was delivered")
		return nil
	}

	c.setState(session.StateActive)
	elapsed := time.Since(start)
	c.metrics.HandshakeCompleted(elapsed)
	span.SetAttributes(attribute.String("gateway.session", c.state.SessionID()))

	c.log.Info().
		Str("conn", conn.id).
		Str("session", c.state.SessionID()).
		Dur("took", elapsed).
		Msg("logged in")
	c.debugf(DebugConnection, "connected as session %s", c.state.SessionID())
	return nil
}

// loginFailure maps a failed wait to the error Login reports.
// A recorded disconnect reason wins over a generic cancellation.
func (c *Client) loginFailure(ctx context.Context, conn *connection, err error) error {
	if errors.Is(err, handshake.ErrNoServerResponse) {
		return err
	}
	if conn.ctx.Err() != nil {
		if reason, _ := conn.outcome(); reason != nil {
			return reason
		}
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", handshake.ErrUnknownConnection, ctx.Err())
	}
	if conn.ctx.Err() != nil {
		return handshake.ErrUnknownConnection
	}
	return err
}

func (c *Client) failLogin(span trace.Span, err error) {
	c.metrics.HandshakeFailed(failureLabel(err))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.log.Warn().Err(err).Msg("login failed")
}

func failureLabel(err error) string {
	switch {
	case errors.Is(err, handshake.ErrNoServerResponse):
		return "no_server_response"
	case errors.Is(err, ErrServerRedirecting):
		return "redirecting"
	case errors.Is(err, ErrConnectionClosed):
		return "closed"
	case errors.Is(err, ErrConnectionLost):
		return "lost"
	case errors.Is(err, handshake.ErrUnknownConnection):
		return "unknown"
	default:
		return "send"
	}
}
