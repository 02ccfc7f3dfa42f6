package domain

// ControlEventKind discriminates the ControlEvent variants.
type ControlEventKind int

const (
	KindKey ControlEventKind = iota
	KindTap
	KindSwipe
)

func (k ControlEventKind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindTap:
		return "tap"
	case KindSwipe:
		return "swipe"
	default:
		return "unknown"
	}
}

// ControlEvent is one user input intent. Coordinates are normalized to [0,1]
// relative to the remote video surface; translating them to device pixels is
// the remote peer's job. Swipe durations are milliseconds and never exceed
// MaxSwipeDurationMs.
type ControlEvent struct {
	Kind ControlEventKind

	// KindKey
	KeyCode int

	// KindTap and KindSwipe start point.
	X float64
	Y float64

	// KindSwipe end point and duration.
	X2         float64
	Y2         float64
	DurationMs int
}

// MaxSwipeDurationMs bounds remote swipe playback time regardless of how
// long the physical gesture took.
const MaxSwipeDurationMs = 500

// Key builds a key press event.
func Key(code int) ControlEvent {
	return ControlEvent{Kind: KindKey, KeyCode: code}
}

// Tap builds a tap event at a normalized position.
func Tap(x, y float64) ControlEvent {
	return ControlEvent{Kind: KindTap, X: x, Y: y}
}

// Swipe builds a swipe event between two normalized positions.
func Swipe(x1, y1, x2, y2 float64, durationMs int) ControlEvent {
	if durationMs > MaxSwipeDurationMs {
		durationMs = MaxSwipeDurationMs
	}
	return ControlEvent{Kind: KindSwipe, X: x1, Y: y1, X2: x2, Y2: y2, DurationMs: durationMs}
}
