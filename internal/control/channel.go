// Package control is the preferred input transport: a data channel opened
// during session setup, before the offer, so its existence is reflected in
// the negotiation.
package control

import (
	"fmt"
	"sync"

	"droidview/client/internal/domain"
	"droidview/client/internal/input"

	pion "github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// Channel implements domain.ControlSender over a pion data channel. Its
// lifecycle is independent from the signaling channel; when it is not open
// the session manager falls back to the signaling input path.
type Channel struct {
	dc     *pion.DataChannel
	logger *zap.SugaredLogger

	mu    sync.Mutex
	state domain.ControlState
}

// NewChannel wraps dc and tracks its open/closed transitions. onState is
// invoked on every transition and may be nil.
func NewChannel(dc *pion.DataChannel, onState func(domain.ControlState), logger *zap.Logger) *Channel {
	c := &Channel{
		dc:     dc,
		logger: logger.Sugar().Named("control"),
		state:  domain.ControlConnecting,
	}

	notify := func(s domain.ControlState) {
		if onState != nil {
			onState(s)
		}
	}

	dc.OnOpen(func() {
		c.logger.Infow("control channel open", "label", dc.Label())
		c.setState(domain.ControlOpen)
		notify(domain.ControlOpen)
	})
	dc.OnClose(func() {
		c.logger.Infow("control channel closed", "label", dc.Label())
		c.setState(domain.ControlClosed)
		notify(domain.ControlClosed)
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		// The remote peer does not speak back on this channel today.
		c.logger.Debugw("control channel message", "data", string(msg.Data))
	})

	return c
}

func (c *Channel) setState(s domain.ControlState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the current channel state.
func (c *Channel) State() domain.ControlState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SendEvent encodes one control event and sends it. Returns an error when
// the channel is not open so the caller can fall back.
func (c *Channel) SendEvent(ev domain.ControlEvent) error {
	if c.State() != domain.ControlOpen {
		return fmt.Errorf("control channel not open")
	}
	data, err := input.EncodeControl(ev)
	if err != nil {
		return err
	}
	if err := c.dc.SendText(string(data)); err != nil {
		return fmt.Errorf("control channel send: %w", err)
	}
	return nil
}

// Close shuts the data channel down. Safe to call more than once.
func (c *Channel) Close() error {
	c.setState(domain.ControlClosed)
	return c.dc.Close()
}
