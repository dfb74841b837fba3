package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Copycord/console/internal/metrics"
	"github.com/Copycord/console/internal/status"
)

// DefaultReconnectDelay is the fixed delay between reconnect attempts.
// Reconnection continues indefinitely; the only cancellation is an explicit
// Close (page teardown).
const DefaultReconnectDelay = 1500 * time.Millisecond

// Conn is the minimal connection surface the channel needs. The production
// implementation wraps *websocket.Conn; tests substitute fakes.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// DialFunc establishes one connection attempt.
type DialFunc func(ctx context.Context) (Conn, error)

// Handlers receive channel lifecycle and payload events. OnStatus gets every
// successfully decoded status message; malformed payloads are dropped
// silently and never reach it.
type Handlers struct {
	OnStatus func(st status.ProcessStatus)
	OnOpen   func()
	OnClose  func(err error)
}

// Channel maintains one live push connection. While the socket is up it is
// the primary update source; every drop reports through OnClose (so polling
// can revert to steady cadence) and a reconnect follows after a fixed delay.
type Channel struct {
	dial     DialFunc
	handlers Handlers
	delay    time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	conn   Conn
	done   chan struct{}
}

// New creates a push channel for the given websocket URL.
func New(url string, handlers Handlers, delay time.Duration, logger *slog.Logger) *Channel {
	return NewWithDialer(webSocketDialer(url), handlers, delay, logger)
}

// NewWithDialer creates a push channel with a custom dialer.
func NewWithDialer(dial DialFunc, handlers Handlers, delay time.Duration, logger *slog.Logger) *Channel {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{dial: dial, handlers: handlers, delay: delay, logger: logger}
}

// Open starts the connect/read/reconnect loop. Calling Open on an already
// open channel is a no-op; reopening after Close starts a fresh cycle.
func (c *Channel) Open() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, c.done)
}

// Close stops the loop. It synchronously cancels any pending reconnect timer
// and closes the live connection; no callback tied to this cycle fires after
// Close returns.
func (c *Channel) Close() {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	done := c.done
	c.cancel = nil
	c.conn = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("push connect failed", "error", err)
			c.notifyClose(ctx, err)
			if !sleepCtx(ctx, c.delay) {
				return
			}
			metrics.IncReconnect("push")
			continue
		}

		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		if c.handlers.OnOpen != nil {
			c.handlers.OnOpen()
		}

		err = c.readLoop(ctx, conn)

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		c.notifyClose(ctx, err)
		if !sleepCtx(ctx, c.delay) {
			return
		}
		metrics.IncReconnect("push")
	}
}

func (c *Channel) readLoop(ctx context.Context, conn Conn) error {
	for {
		raw, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		st, err := status.DecodePush(raw)
		if err != nil {
			// Malformed or non-status payloads never throw past the
			// message handler; the channel stays open.
			if !errors.Is(err, status.ErrNotStatus) {
				c.logger.Debug("dropping malformed push message", "error", err)
			}
			continue
		}
		if c.handlers.OnStatus != nil {
			c.handlers.OnStatus(st)
		}
	}
}

func (c *Channel) notifyClose(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	if c.handlers.OnClose != nil {
		c.handlers.OnClose(err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// webSocketDialer adapts coder/websocket to DialFunc.
func webSocketDialer(url string) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		ws, _, err := websocket.Dial(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return &wsConn{ws: ws}, nil
	}
}

type wsConn struct{ ws *websocket.Conn }

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.ws.Read(ctx)
	return data, err
}

func (w *wsConn) Close() error {
	return w.ws.Close(websocket.StatusNormalClosure, "")
}
