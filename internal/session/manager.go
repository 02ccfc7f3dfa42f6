// Package session orchestrates the negotiation state machine: REST session
// bootstrap, signaling, peer transport, control channel, and the two-path
// input routing.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"droidview/client/internal/domain"
	"droidview/client/internal/input"
	"droidview/client/internal/sdpopt"

	"go.uber.org/zap"
)

// ErrNoSession is returned by SendInput when no session is active.
var ErrNoSession = errors.New("no active session")

// Deps are the manager's collaborators. Factories keep the manager testable
// and let the caller bind loggers and sinks.
type Deps struct {
	API        domain.SessionAPI
	Signaler   domain.SignalerFactory
	Transport  domain.TransportFactory
	Projector  domain.StatusProjector
	ICEServers []domain.ICEServer

	// Optimize rewrites the offer before it is installed and sent. Defaults
	// to sdpopt.Optimize.
	Optimize func(string) string

	// GracePeriod bounds how long after remote video arrival the manager
	// waits for transport confirmation before assuming the connection
	// succeeded. A UX compromise, not a connectivity proof.
	GracePeriod time.Duration

	Logger *zap.Logger
}

type eventKind int

const (
	evSignalMessage eventKind = iota
	evSignalClosed
	evTransportState
	evControlState
	evRemoteVideo
	evGraceElapsed
)

// event is one item on the manager's single dispatch stream. The epoch pins
// it to the session it was produced for; stale events are discarded.
type event struct {
	epoch  uint64
	kind   eventKind
	msg    domain.SignalMessage
	err    error
	tstate domain.TransportState
	cstate domain.ControlState
}

// Manager owns exactly one session at a time: one token, one signaling
// channel, one transport, one control channel. All asynchronous callbacks
// funnel into one event loop; public methods serialize on the mutex.
type Manager struct {
	deps Deps
	log  *zap.SugaredLogger

	mu            sync.Mutex
	state         domain.ConnectionState
	epoch         uint64
	token         string
	deviceID      int
	sig           domain.Signaler
	transport     domain.Transport
	ctrl          domain.ControlSender
	remoteDescSet bool
	graceTimer    *time.Timer

	events      chan event
	quit        chan struct{}
	disposeOnce sync.Once
}

// New creates a Manager and starts its dispatch loop. Call Dispose when the
// manager is no longer needed.
func New(deps Deps) *Manager {
	if deps.Optimize == nil {
		deps.Optimize = sdpopt.Optimize
	}
	if deps.GracePeriod <= 0 {
		deps.GracePeriod = 3 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	m := &Manager{
		deps:   deps,
		log:    deps.Logger.Sugar().Named("session"),
		state:  domain.StateIdle,
		events: make(chan event, 64),
		quit:   make(chan struct{}),
	}
	go m.loop()
	return m
}

// State returns the current caller-visible session state.
func (m *Manager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect establishes a session to a device. An active session is torn down
// first; it is never leaked. On failure the manager lands in the error state
// and the error is returned.
func (m *Manager) Connect(ctx context.Context, userID, deviceID int) error {
	m.mu.Lock()
	if m.state == domain.StateConnecting || m.state == domain.StateConnected {
		m.log.Infow("tearing down previous session before reconnect", "device_id", m.deviceID)
		oldDevice := m.deviceID
		m.teardownLocked()
		m.setStateLocked(domain.StateDisconnected, "superseded by new session")
		go m.endSessionBestEffort(oldDevice)
	}
	m.epoch++
	epoch := m.epoch
	m.deviceID = deviceID
	m.remoteDescSet = false
	m.setStateLocked(domain.StateConnecting, "")
	m.mu.Unlock()

	token, err := m.deps.API.CreateSession(ctx, userID, deviceID)
	if err != nil {
		serr := domain.NewSessionError(domain.ErrCodeSessionCreateFailed, "session request rejected", err)
		m.fail(epoch, serr)
		return serr
	}

	sig := m.deps.Signaler(token, &signalHandler{m: m, epoch: epoch})
	if !m.adopt(epoch, func() { m.token = token; m.sig = sig }) {
		sig.Close()
		return ErrNoSession
	}
	if err := sig.Connect(ctx); err != nil {
		serr := domain.NewSessionError(domain.ErrCodeSignalingUnavailable, "signaling connect failed", err)
		m.fail(epoch, serr)
		return serr
	}

	hooks := domain.TransportHooks{
		OnLocalCandidate: func(c *domain.CandidatePayload) { m.sendLocalCandidate(epoch, c) },
		OnStateChange:    func(s domain.TransportState) { m.post(event{epoch: epoch, kind: evTransportState, tstate: s}) },
		OnRemoteVideo:    func() { m.post(event{epoch: epoch, kind: evRemoteVideo}) },
		OnControlState:   func(s domain.ControlState) { m.post(event{epoch: epoch, kind: evControlState, cstate: s}) },
	}
	transport, ctrl, err := m.deps.Transport(m.deps.ICEServers, hooks)
	if err != nil {
		serr := domain.NewSessionError(domain.ErrCodeNegotiationFailed, "transport setup failed", err)
		m.fail(epoch, serr)
		return serr
	}
	if !m.adopt(epoch, func() { m.transport = transport; m.ctrl = ctrl }) {
		ctrl.Close()
		transport.Close()
		return ErrNoSession
	}

	offer, err := transport.CreateOffer()
	if err != nil {
		serr := domain.NewSessionError(domain.ErrCodeNegotiationFailed, "offer generation failed", err)
		m.fail(epoch, serr)
		return serr
	}
	optimized := m.deps.Optimize(offer)
	if err := transport.SetLocalDescription(optimized); err != nil {
		serr := domain.NewSessionError(domain.ErrCodeNegotiationFailed, "local description rejected", err)
		m.fail(epoch, serr)
		return serr
	}

	sig.Send(domain.SignalMessage{Type: domain.MsgOffer, SDP: optimized})
	m.log.Infow("offer sent", "device_id", deviceID)
	return nil
}

// SendInput delivers one control event over the control channel, falling
// back to the signaling input path when the control channel is not open.
// Callers never pick the transport.
func (m *Manager) SendInput(ev domain.ControlEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != domain.StateConnecting && m.state != domain.StateConnected {
		return ErrNoSession
	}

	if m.ctrl != nil && m.ctrl.State() == domain.ControlOpen {
		if err := m.ctrl.SendEvent(ev); err == nil {
			return nil
		} else if domain.CodeOf(err) == domain.ErrCodeUnknownAction {
			return err
		}
		// The channel closed underneath us; take the fallback path.
	}

	msg, err := input.EncodeFallback(ev)
	if err != nil {
		return err
	}
	if m.sig == nil {
		return ErrNoSession
	}
	m.sig.Send(msg)
	return nil
}

// Disconnect tears the session down: control channel, transport and
// signaling are closed, the backend is notified best-effort, and the state
// becomes disconnected. Idempotent; safe to call at any point.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != domain.StateConnecting && m.state != domain.StateConnected {
		m.mu.Unlock()
		return nil
	}
	deviceID := m.deviceID
	m.teardownLocked()
	m.setStateLocked(domain.StateDisconnected, "")
	m.mu.Unlock()

	// Failure to notify never blocks local teardown.
	if err := m.deps.API.EndSession(ctx, deviceID); err != nil {
		m.log.Warnw("end-session notification failed", "device_id", deviceID, "error", err)
	}
	return nil
}

// Dispose disconnects and stops the dispatch loop. The manager must not be
// used afterwards.
func (m *Manager) Dispose(ctx context.Context) {
	m.Disconnect(ctx)
	m.disposeOnce.Do(func() { close(m.quit) })
}

// adopt stores session resources if the session is still current. Returns
// false when the connect attempt has been superseded.
func (m *Manager) adopt(epoch uint64, store func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return false
	}
	store()
	return true
}

func (m *Manager) endSessionBestEffort(deviceID int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.deps.API.EndSession(ctx, deviceID); err != nil {
		m.log.Warnw("end-session notification failed", "device_id", deviceID, "error", err)
	}
}

// fail moves the session to the terminal error state, releasing resources.
// Stale or repeated failures are ignored so the projector sees exactly one
// terminal notification per attempt.
func (m *Manager) fail(epoch uint64, serr *domain.SessionError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLocked(epoch, serr)
}

func (m *Manager) failLocked(epoch uint64, serr *domain.SessionError) {
	if m.epoch != epoch || m.state.Terminal() || m.state == domain.StateIdle {
		m.log.Debugw("ignoring failure for inactive session", "error", serr)
		return
	}
	m.log.Errorw("session failed", "code", string(serr.Code), "error", serr)
	m.teardownLocked()
	m.setStateLocked(domain.StateError, serr.Error())
}

// teardownLocked releases all session-scoped resources exactly once and
// invalidates in-flight callbacks by bumping the epoch. Idempotent.
func (m *Manager) teardownLocked() {
	m.epoch++
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
	if m.ctrl != nil {
		m.ctrl.Close()
		m.ctrl = nil
	}
	if m.transport != nil {
		m.transport.Close()
		m.transport = nil
	}
	if m.sig != nil {
		m.sig.Close()
		m.sig = nil
	}
	m.token = ""
	m.remoteDescSet = false
}

// setStateLocked records a transition and notifies the projector. The
// projector must not call back into the manager.
func (m *Manager) setStateLocked(s domain.ConnectionState, reason string) {
	if m.state == s {
		return
	}
	m.log.Infow("state change", "from", m.state.String(), "to", s.String(), "reason", reason)
	m.state = s
	if m.deps.Projector != nil {
		m.deps.Projector.OnStateChange(s, reason)
	}
}

func (m *Manager) sendLocalCandidate(epoch uint64, c *domain.CandidatePayload) {
	m.mu.Lock()
	sig := m.sig
	current := m.epoch == epoch
	m.mu.Unlock()
	if !current || sig == nil {
		return
	}
	// Trickled as produced; the nil payload tells the peer gathering is done.
	sig.Send(domain.SignalMessage{Type: domain.MsgICECandidate, Candidate: c})
}

func (m *Manager) post(ev event) {
	// Never blocks: a full queue means the loop is wedged behind the lock
	// of whoever is posting, and dropping beats deadlocking.
	select {
	case m.events <- ev:
	default:
		m.log.Warnw("event queue full, dropping event", "kind", ev.kind)
	}
}

func (m *Manager) loop() {
	for {
		select {
		case <-m.quit:
			return
		case ev := <-m.events:
			m.handle(ev)
		}
	}
}

func (m *Manager) handle(ev event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.epoch != m.epoch {
		m.log.Debugw("discarding stale event", "kind", ev.kind, "epoch", ev.epoch)
		return
	}

	switch ev.kind {
	case evSignalMessage:
		m.handleSignalMessageLocked(ev.epoch, ev.msg)

	case evSignalClosed:
		if ev.err == nil && m.state == domain.StateConnected {
			// Normal remote closure of an established session.
			m.teardownLocked()
			m.setStateLocked(domain.StateDisconnected, "")
			go m.endSessionBestEffort(m.deviceID)
			return
		}
		cause := ev.err
		if cause == nil {
			cause = errors.New("signaling closed during negotiation")
		}
		m.failLocked(ev.epoch, domain.NewSessionError(domain.ErrCodeSignalingUnavailable, "signaling channel closed", cause))

	case evTransportState:
		m.handleTransportStateLocked(ev.epoch, ev.tstate)

	case evControlState:
		// Connectivity readiness alone gates the connected state; an open
		// control channel only switches the preferred input path.
		m.log.Infow("control channel state", "state", ev.cstate.String())

	case evRemoteVideo:
		m.log.Infow("remote video available")
		if m.deps.Projector != nil {
			m.deps.Projector.OnRemoteVideo()
		}
		if m.state == domain.StateConnecting && m.graceTimer == nil {
			epoch := ev.epoch
			m.graceTimer = time.AfterFunc(m.deps.GracePeriod, func() {
				m.post(event{epoch: epoch, kind: evGraceElapsed})
			})
		}

	case evGraceElapsed:
		if m.state == domain.StateConnecting {
			m.log.Infow("assuming connected after grace period", "grace", m.deps.GracePeriod)
			m.setStateLocked(domain.StateConnected, "")
		}
	}
}

func (m *Manager) handleSignalMessageLocked(epoch uint64, msg domain.SignalMessage) {
	switch msg.Type {
	case domain.MsgAnswer:
		if m.remoteDescSet {
			// Non-fatal protocol violation.
			m.log.Warnw("duplicate answer ignored", "code", string(domain.ErrCodeProtocolViolation))
			return
		}
		if m.transport == nil {
			m.log.Warnw("answer before transport setup ignored")
			return
		}
		if err := m.transport.SetRemoteDescription(msg.SDP); err != nil {
			m.failLocked(epoch, domain.NewSessionError(domain.ErrCodeNegotiationFailed, "remote description rejected", err))
			return
		}
		m.remoteDescSet = true
		m.log.Infow("remote description applied")

	case domain.MsgICECandidate:
		if m.transport == nil {
			m.log.Warnw("candidate before transport setup ignored")
			return
		}
		if err := m.transport.AddRemoteCandidate(msg.Candidate); err != nil {
			m.log.Warnw("remote candidate rejected", "error", err)
		}

	case domain.MsgError:
		m.failLocked(epoch, domain.PeerError(msg.Message))

	default:
		m.log.Warnw("unexpected signaling message", "type", msg.Type,
			"code", string(domain.ErrCodeProtocolViolation))
	}
}

func (m *Manager) handleTransportStateLocked(epoch uint64, s domain.TransportState) {
	switch s {
	case domain.TransportConnected:
		if m.graceTimer != nil {
			m.graceTimer.Stop()
			m.graceTimer = nil
		}
		if m.state == domain.StateConnecting {
			m.setStateLocked(domain.StateConnected, "")
		}
	case domain.TransportFailed:
		m.failLocked(epoch, domain.NewSessionError(domain.ErrCodeConnectivityFailed, "transport reported failed", nil))
	case domain.TransportDisconnected:
		m.failLocked(epoch, domain.NewSessionError(domain.ErrCodeConnectivityFailed, "transport reported disconnected", nil))
	}
}

// signalHandler pins signaling callbacks to the session they were created
// for; the event loop drops anything from an older epoch.
type signalHandler struct {
	m     *Manager
	epoch uint64
}

func (h *signalHandler) OnSignalMessage(msg domain.SignalMessage) {
	h.m.post(event{epoch: h.epoch, kind: evSignalMessage, msg: msg})
}

func (h *signalHandler) OnSignalClosed(err error) {
	h.m.post(event{epoch: h.epoch, kind: evSignalClosed, err: err})
}
