package gateway

import (
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"strings"
	"time"
)

// BackoffConfig defines retry backoff behavior for reconnects.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines client behavior. Use DefaultConfig and override.
type Config struct {
	// HandshakeTimeout bounds the wait for READY after login.
	HandshakeTimeout time.Duration
	// ResumeTimeout bounds sending the resume command on a reopened connection.
	ResumeTimeout time.Duration
	// Reconnect resumes after an unexpected transport drop. Redirects always
	// reconnect regardless.
	Reconnect bool
	// MaxReconnectAttempts caps dial attempts per reconnect, 0 is unlimited.
	MaxReconnectAttempts int
	Backoff              BackoffConfig
	// SendRate is the sustained outbound frames per second, 0 disables pacing.
	SendRate float64
	// SendBurst is the number of frames allowed back to back.
	SendBurst int
	// QueueSize bounds commands waiting for the writer.
	QueueSize int
	// Debug enables the diagnostic sink.
	Debug bool
}

// DefaultConfig returns the defaults.
// The send rate stays under the gateway's 120 frames per minute.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:     10 * time.Second,
		ResumeTimeout:        5 * time.Second,
		Reconnect:            true,
		MaxReconnectAttempts: 0,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     30 * time.Second,
			Jitter:       true,
		},
		SendRate:  2,
		SendBurst: 10,
		QueueSize: 64,
	}
}

// Validate rejects values the client cannot run with.
func (c Config) Validate() error {
	if c.HandshakeTimeout < 0 {
		return fmt.Errorf("handshake timeout must not be negative")
	}
	if c.ResumeTimeout < 0 {
		return fmt.Errorf("resume timeout must not be negative")
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max reconnect attempts must not be negative")
	}
	if c.Backoff.InitialDelay < 0 || c.Backoff.MaxDelay < 0 {
		return fmt.Errorf("backoff delays must not be negative")
	}
	if c.SendRate < 0 {
		return fmt.Errorf("send rate must not be negative")
	}
	return nil
}

// NextBackoffDelay returns the retry delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}

// ValidateURL checks a gateway URL has a scheme and host.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("gateway url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("gateway url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("gateway url %q must include scheme and host", raw)
	}
	return nil
}

// resolveRedirect turns a redirect target into a dialable URL.
// Full URLs are used as given; a bare host inherits the scheme of the
// connection being replaced.
func resolveRedirect(current, target string) string {
	if u, err := url.Parse(target); err == nil && u.Scheme != "" && u.Host != "" {
		return target
	}
	scheme := "wss"
	if u, err := url.Parse(current); err == nil && u.Scheme != "" {
		scheme = u.Scheme
	}
	return scheme + "://" + strings.TrimPrefix(target, "//")
}
