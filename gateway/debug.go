package gateway

import "fmt"

// DebugKind categorizes diagnostic messages.
type DebugKind int

const (
	DebugConnection DebugKind = iota
	DebugUnknownOpcode
	DebugRedirect
	DebugMalformed
	DebugSequence
)

func (k DebugKind) String() string {
	switch k {
	case DebugConnection:
		return "connection"
	case DebugUnknownOpcode:
		return "unknown_opcode"
	case DebugRedirect:
		return "redirect"
	case DebugMalformed:
		return "malformed"
	case DebugSequence:
		return "sequence"
	default:
		return fmt.Sprintf("DebugKind(%d)", int(k))
	}
}

// DebugFunc receives diagnostic messages.
type DebugFunc func(kind DebugKind, message string)

// debugf logs at debug level and forwards to the sink when diagnostics
// are enabled.
func (c *Client) debugf(kind DebugKind, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.log.Debug().Str("kind", kind.String()).Msg(msg)
	if c.cfg.Debug && c.debugFn != nil {
		c.debugFn(kind, msg)
	}
}
