package domain

import "context"

// SessionAPI is the REST collaborator managing devices and sessions.
type SessionAPI interface {
	ListDevices(ctx context.Context, userID int) ([]Device, error)
	CreateSession(ctx context.Context, userID, deviceID int) (token string, err error)
	EndSession(ctx context.Context, deviceID int) error
}

// SignalHandler receives inbound signaling traffic. OnSignalClosed fires
// exactly once per channel; err is nil for a clean closure.
type SignalHandler interface {
	OnSignalMessage(msg SignalMessage)
	OnSignalClosed(err error)
}

// Signaler is the duplex signaling channel scoped to one session token.
// Send on a channel that is not open drops the message; callers must treat
// that as "message lost" rather than a fault.
type Signaler interface {
	Connect(ctx context.Context) error
	Send(msg SignalMessage)
	Close()
}

// SignalerFactory builds a Signaler for a session token.
type SignalerFactory func(token string, handler SignalHandler) Signaler

// TransportHooks are the callbacks a Transport fires as negotiation and
// connectivity progress. All of them may be invoked from transport-owned
// goroutines.
type TransportHooks struct {
	// OnLocalCandidate delivers trickled local candidates; nil signals
	// gathering completion.
	OnLocalCandidate func(c *CandidatePayload)
	OnStateChange    func(s TransportState)
	OnRemoteVideo    func()
	OnControlState   func(s ControlState)
}

// Transport is the local peer connection. Remote candidates arriving before
// the remote description must be buffered and flushed once it is set.
type Transport interface {
	CreateOffer() (string, error)
	SetLocalDescription(sdp string) error
	SetRemoteDescription(sdp string) error
	AddRemoteCandidate(c *CandidatePayload) error
	Close() error
}

// ControlSender is the preferred input path, backed by the transport's
// control channel.
type ControlSender interface {
	SendEvent(ev ControlEvent) error
	State() ControlState
	Close() error
}

// TransportFactory builds the peer transport and its control channel.
type TransportFactory func(servers []ICEServer, hooks TransportHooks) (Transport, ControlSender, error)

// StatusProjector observes session state for the UI. The core never renders;
// it only notifies.
type StatusProjector interface {
	// OnStateChange fires once per transition; reason is non-empty for
	// terminal error states.
	OnStateChange(state ConnectionState, reason string)
	// OnRemoteVideo fires when the remote video track becomes available.
	OnRemoteVideo()
}
