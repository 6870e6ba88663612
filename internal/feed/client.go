package feed

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dickeyy/trackpaper/internal/config"
	"github.com/dickeyy/trackpaper/internal/domain"
)

// Client maintains a persistent websocket connection to the now-playing feed.
// It owns the full connection lifecycle: connect, receive, detect staleness,
// reconnect with jittered exponential backoff. Network failures are never
// fatal; the only fatal condition is a malformed endpoint at construction.
type Client struct {
	logger          *zap.Logger
	url             string
	idleTimeout     time.Duration
	backoffBase     time.Duration
	backoffMax      time.Duration
	stabilityWindow time.Duration

	dialer *websocket.Dialer

	mu              sync.RWMutex
	state           domain.ConnectionState
	running         bool
	cancel          context.CancelFunc
	lastDropWarning time.Time

	messages chan domain.RawMessage
	wg       sync.WaitGroup
}

// NewClient builds a feed client from configuration. The endpoint must be a
// valid ws:// or wss:// URL and the user identifier must be non-empty;
// anything else is a startup error.
func NewClient(logger *zap.Logger, cfg config.FeedConfig) (*Client, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("endpoint scheme must be ws or wss, got %q", u.Scheme)
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("user identifier is required")
	}

	q := u.Query()
	q.Set("user", cfg.User)
	u.RawQuery = q.Encode()

	return &Client{
		logger:          logger,
		url:             u.String(),
		idleTimeout:     time.Duration(cfg.IdleTimeoutMs) * time.Millisecond,
		backoffBase:     time.Duration(cfg.BackoffBaseMs) * time.Millisecond,
		backoffMax:      time.Duration(cfg.BackoffMaxMs) * time.Millisecond,
		stabilityWindow: time.Duration(cfg.StabilityWindowMs) * time.Millisecond,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		state:    domain.ConnectionState{Phase: domain.PhaseDisconnected, Since: time.Now()},
		messages: make(chan domain.RawMessage, 16),
	}, nil
}

// Start runs the connect/receive/reconnect loop until the context is
// cancelled. It blocks for the lifetime of the client.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	clientCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Info("Feed client started", zap.String("url", c.url))

	c.wg.Add(1)
	defer c.wg.Done()

	attempt := 0
	for {
		if clientCtx.Err() != nil {
			c.setState(domain.ConnectionState{Phase: domain.PhaseDisconnected, Since: time.Now()})
			return clientCtx.Err()
		}

		c.setState(domain.ConnectionState{Phase: domain.PhaseConnecting, Since: time.Now()})

		conn, _, err := c.dialer.DialContext(clientCtx, c.url, nil)
		if err != nil {
			if clientCtx.Err() != nil {
				c.setState(domain.ConnectionState{Phase: domain.PhaseDisconnected, Since: time.Now()})
				return clientCtx.Err()
			}
			attempt++
			if !c.waitBackoff(clientCtx, attempt, err) {
				c.setState(domain.ConnectionState{Phase: domain.PhaseDisconnected, Since: time.Now()})
				return clientCtx.Err()
			}
			continue
		}

		connectedAt := time.Now()
		c.setState(domain.ConnectionState{Phase: domain.PhaseConnected, Since: connectedAt})
		c.logger.Info("Feed connected", zap.Int("attempt", attempt))

		// Close the socket on cancellation so a blocked read returns
		// promptly during teardown.
		readDone := make(chan struct{})
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			select {
			case <-clientCtx.Done():
				_ = conn.Close()
			case <-readDone:
			}
		}()

		readErr := c.readLoop(clientCtx, conn)
		close(readDone)
		_ = conn.Close()

		if clientCtx.Err() != nil {
			c.setState(domain.ConnectionState{Phase: domain.PhaseDisconnected, Since: time.Now()})
			return clientCtx.Err()
		}

		// A connection that held for the stability window earns a fresh
		// backoff schedule; a quick flap keeps escalating.
		if time.Since(connectedAt) >= c.stabilityWindow {
			attempt = 0
		}
		attempt++

		if !c.waitBackoff(clientCtx, attempt, readErr) {
			c.setState(domain.ConnectionState{Phase: domain.PhaseDisconnected, Since: time.Now()})
			return clientCtx.Err()
		}
	}
}

// Stop gracefully stops the client and closes the message channel
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.running = false
	c.mu.Unlock()

	// Wait for the connection loop to terminate before closing the channel,
	// otherwise a late emit would panic.
	c.wg.Wait()
	close(c.messages)

	c.logger.Info("Feed client shutdown complete")
	return nil
}

// Messages returns a read-only channel of raw feed payloads
func (c *Client) Messages() <-chan domain.RawMessage {
	return c.messages
}

// State returns a snapshot of the current connection state
func (c *Client) State() domain.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// readLoop receives messages until the connection dies or goes idle.
// A connection with no traffic (data or pong) for the idle timeout is
// considered stale and torn down.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	})

	// Ping at half the idle timeout so a healthy but quiet feed keeps the
	// read deadline moving.
	pingDone := make(chan struct{})
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.idleTimeout / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-pingDone:
				return
			case <-ticker.C:
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					c.logger.Debug("Ping write failed", zap.Error(err))
					return
				}
			}
		}
	}()
	defer close(pingDone)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn("Feed read failed", zap.Error(err))
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.idleTimeout))

		c.emit(domain.RawMessage{Payload: payload, ReceivedAt: time.Now()})
	}
}

// emit delivers a message without blocking. The consumer coalesces to the
// latest state anyway, so dropping under pressure is harmless.
func (c *Client) emit(msg domain.RawMessage) {
	select {
	case c.messages <- msg:
	default:
		c.logChannelFullWarning()
	}
}

// waitBackoff publishes the Backoff state and sleeps out the delay.
// Returns false if the context was cancelled while waiting.
func (c *Client) waitBackoff(ctx context.Context, attempt int, cause error) bool {
	delay := c.nextBackoff(attempt)
	c.setState(domain.ConnectionState{
		Phase:       domain.PhaseBackoff,
		Attempt:     attempt,
		NextRetryAt: time.Now().Add(delay),
		Since:       time.Now(),
	})
	c.logger.Info("Feed reconnect scheduled",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		zap.Error(cause))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// nextBackoff computes the delay before the given attempt: exponential from
// the base, capped, with +/-50% jitter so a fleet of displays does not
// reconnect in lockstep.
func (c *Client) nextBackoff(attempt int) time.Duration {
	d := c.backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.backoffMax {
			d = c.backoffMax
			break
		}
	}
	if d > c.backoffMax {
		d = c.backoffMax
	}
	// Jitter in [d/2, 3d/2)
	jittered := d/2 + time.Duration(rand.Int63n(int64(d)+1))
	if jittered > c.backoffMax {
		jittered = c.backoffMax
	}
	return jittered
}

func (c *Client) setState(s domain.ConnectionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// logChannelFullWarning logs a dropped-message warning, rate limited to one
// per 5 seconds to avoid spam during bursts
func (c *Client) logChannelFullWarning() {
	c.mu.Lock()
	defer c.mu.Unlock()

	const warningInterval = 5 * time.Second
	now := time.Now()
	if now.Sub(c.lastDropWarning) >= warningInterval {
		c.logger.Warn("Message channel full, dropping feed payload (consumer may be slow)")
		c.lastDropWarning = now
	}
}
