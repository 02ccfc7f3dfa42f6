package domain

// ConnectionState is the caller-visible status of a device session.
// Transitions are driven only by the session manager and reported to the
// StatusProjector in order.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends the session instance. A new
// session always starts over from idle.
func (s ConnectionState) Terminal() bool {
	return s == StateDisconnected || s == StateError
}

// TransportState is the condensed connectivity status reported by the peer
// transport.
type TransportState int

const (
	TransportNew TransportState = iota
	TransportConnecting
	TransportConnected
	TransportDisconnected
	TransportFailed
	TransportClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportNew:
		return "new"
	case TransportConnecting:
		return "connecting"
	case TransportConnected:
		return "connected"
	case TransportDisconnected:
		return "disconnected"
	case TransportFailed:
		return "failed"
	case TransportClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ControlState is the lifecycle state of the control channel.
type ControlState int

const (
	ControlConnecting ControlState = iota
	ControlOpen
	ControlClosed
)

func (s ControlState) String() string {
	switch s {
	case ControlConnecting:
		return "connecting"
	case ControlOpen:
		return "open"
	case ControlClosed:
		return "closed"
	default:
		return "unknown"
	}
}
