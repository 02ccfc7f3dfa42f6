// Package signal implements the websocket signaling channel. One channel is
// scoped to one session token; messages are delivered FIFO per direction and
// closure is reported exactly once.
package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"droidview/client/internal/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Channel implements domain.Signaler over a gorilla websocket connection.
type Channel struct {
	wsURL        string
	handler      domain.SignalHandler
	pingInterval time.Duration
	writeTimeout time.Duration
	logger       *zap.SugaredLogger

	mu   sync.Mutex
	conn *websocket.Conn
	open bool

	closed    chan struct{}
	closeOnce sync.Once
}

// WSURL derives the session-scoped signaling address from the REST base URL.
func WSURL(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/sessions/ws/" + token
	return u.String(), nil
}

// NewChannel creates a signaling channel for one session token. handler
// receives every inbound message plus the single terminal close callback.
func NewChannel(wsURL string, pingInterval, writeTimeout time.Duration, handler domain.SignalHandler, logger *zap.Logger) *Channel {
	return &Channel{
		wsURL:        wsURL,
		handler:      handler,
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		logger:       logger.Sugar().Named("signal"),
		closed:       make(chan struct{}),
	}
}

// Connect dials the signaling endpoint and starts the read and keepalive
// loops.
func (c *Channel) Connect(ctx context.Context) error {
	c.logger.Infow("connecting", "url", c.wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.open = true
	c.mu.Unlock()

	go c.readLoop()
	go c.pingLoop()
	return nil
}

// Send writes one message. On a channel that is not open the message is
// dropped: during teardown stale output is preferable to a hard fault.
func (c *Channel) Send(msg domain.SignalMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		c.logger.Warnw("dropping message, channel not open", "type", msg.Type)
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Errorw("marshal failed", "type", msg.Type, "error", err)
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Warnw("write failed", "type", msg.Type, "error", err)
	}
}

// Close shuts the channel down intentionally. The terminal callback fires
// with a nil error.
func (c *Channel) Close() {
	c.terminate(nil)
}

// terminate flips the channel to closed and fires the terminal callback
// exactly once.
func (c *Channel) terminate(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.open = false
		conn := c.conn
		c.mu.Unlock()

		close(c.closed)
		if conn != nil {
			conn.Close()
		}
		if cause != nil {
			c.logger.Warnw("channel closed", "error", cause)
		} else {
			c.logger.Infow("channel closed")
		}
		c.handler.OnSignalClosed(cause)
	})
}

func (c *Channel) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				// Local close already reported.
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.terminate(nil)
				} else {
					c.terminate(fmt.Errorf("signaling read: %w", err))
				}
			}
			return
		}

		var msg domain.SignalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Malformed inbound traffic must never take the channel down.
			c.logger.Warnw("ignoring malformed message", "error", err)
			continue
		}
		if msg.Type == "" {
			c.logger.Warnw("ignoring message without type")
			continue
		}
		c.handler.OnSignalMessage(msg)
	}
}

func (c *Channel) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.mu.Lock()
			var err error
			if c.open {
				err = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
			}
			c.mu.Unlock()
			if err != nil {
				c.logger.Warnw("ping failed", "error", err)
				return
			}
		}
	}
}
