// Package gesture classifies raw pointer samples into control events.
package gesture

import (
	"math"

	"droidview/client/internal/domain"
)

// Classification policy: anything short and close to its origin is a tap,
// everything else replays as a swipe. Both checks are strict less-than, so
// the boundary values classify as swipe.
const (
	// TapMaxDistance is the normalized euclidean distance below which a
	// gesture counts as a tap.
	TapMaxDistance = 0.05
	// TapMaxDurationMs is the elapsed time below which a gesture counts as
	// a tap.
	TapMaxDurationMs = 300
)

// Sample is one pointer sample: normalized [0,1] coordinates and a
// millisecond timestamp.
type Sample struct {
	X, Y   float64
	TimeMs int64
}

// Classify turns a start/end sample pair into a tap or swipe event. Swipe
// duration is capped at domain.MaxSwipeDurationMs. Pure and deterministic.
func Classify(start, end Sample) domain.ControlEvent {
	dx := end.X - start.X
	dy := end.Y - start.Y
	distance := math.Hypot(dx, dy)
	elapsed := end.TimeMs - start.TimeMs

	if distance < TapMaxDistance && elapsed < TapMaxDurationMs {
		return domain.Tap(start.X, start.Y)
	}
	return domain.Swipe(start.X, start.Y, end.X, end.Y, int(elapsed))
}
