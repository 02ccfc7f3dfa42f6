// Package input serializes control events for the wire.
package input

import (
	"encoding/json"
	"fmt"

	"droidview/client/internal/domain"
)

// Named system actions and their Android keycodes. Fixed table; names not
// listed here are rejected, never silently dropped.
var actionKeycodes = map[string]int{
	"HOME":        3,
	"BACK":        4,
	"MENU":        82,
	"POWER":       26,
	"VOLUME_UP":   24,
	"VOLUME_DOWN": 25,
	"ENTER":       66,
	"DELETE":      67,
	"APP_SWITCH":  187,
}

// KeyFor resolves a named system action to its keycode.
func KeyFor(action string) (int, error) {
	code, ok := actionKeycodes[action]
	if !ok {
		return 0, domain.NewSessionError(domain.ErrCodeUnknownAction,
			fmt.Sprintf("no keycode for action %q", action), nil)
	}
	return code, nil
}

// controlMessage is the control-channel wire schema.
type controlMessage struct {
	Type     string   `json:"type"`
	Keycode  *int     `json:"keycode,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	X1       *float64 `json:"x1,omitempty"`
	Y1       *float64 `json:"y1,omitempty"`
	X2       *float64 `json:"x2,omitempty"`
	Y2       *float64 `json:"y2,omitempty"`
	Duration *int     `json:"duration,omitempty"`
}

// EncodeControl serializes a ControlEvent into the control-channel schema.
func EncodeControl(ev domain.ControlEvent) ([]byte, error) {
	var msg controlMessage
	switch ev.Kind {
	case domain.KindKey:
		msg.Type = "keyevent"
		msg.Keycode = intp(ev.KeyCode)
	case domain.KindTap:
		msg.Type = "tap"
		msg.X = floatp(ev.X)
		msg.Y = floatp(ev.Y)
	case domain.KindSwipe:
		msg.Type = "swipe"
		msg.X1 = floatp(ev.X)
		msg.Y1 = floatp(ev.Y)
		msg.X2 = floatp(ev.X2)
		msg.Y2 = floatp(ev.Y2)
		msg.Duration = intp(ev.DurationMs)
	default:
		return nil, domain.NewSessionError(domain.ErrCodeUnknownAction,
			fmt.Sprintf("unencodable control event kind %d", ev.Kind), nil)
	}
	return json.Marshal(msg)
}

// EncodeFallback maps a ControlEvent onto the signaling channel's input
// message kind, used when the control channel is unavailable.
func EncodeFallback(ev domain.ControlEvent) (domain.SignalMessage, error) {
	msg := domain.SignalMessage{Type: domain.MsgInput}
	switch ev.Kind {
	case domain.KindKey:
		msg.InputType = "key"
		msg.KeyCode = intp(ev.KeyCode)
	case domain.KindTap:
		msg.InputType = "touch"
		msg.Action = "tap"
		msg.X = floatp(ev.X)
		msg.Y = floatp(ev.Y)
	case domain.KindSwipe:
		msg.InputType = "touch"
		msg.Action = "swipe"
		msg.X = floatp(ev.X)
		msg.Y = floatp(ev.Y)
		msg.X2 = floatp(ev.X2)
		msg.Y2 = floatp(ev.Y2)
		msg.Duration = intp(ev.DurationMs)
	default:
		return domain.SignalMessage{}, domain.NewSessionError(domain.ErrCodeUnknownAction,
			fmt.Sprintf("unencodable control event kind %d", ev.Kind), nil)
	}
	return msg, nil
}

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }
