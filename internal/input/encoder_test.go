package input

import (
	"encoding/json"
	"testing"

	"droidview/client/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFor_KnownActions(t *testing.T) {
	code, err := KeyFor("HOME")
	require.NoError(t, err)
	assert.Equal(t, 3, code)

	code, err = KeyFor("BACK")
	require.NoError(t, err)
	assert.Equal(t, 4, code)

	code, err = KeyFor("POWER")
	require.NoError(t, err)
	assert.Equal(t, 26, code)
}

func TestKeyFor_UnknownActionIsError(t *testing.T) {
	_, err := KeyFor("TELEPORT")
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeUnknownAction, domain.CodeOf(err))
}

func TestEncodeControl_KeyEvent(t *testing.T) {
	data, err := EncodeControl(domain.Key(4))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "keyevent", got["type"])
	assert.Equal(t, float64(4), got["keycode"])
}

func TestEncodeControl_Tap(t *testing.T) {
	data, err := EncodeControl(domain.Tap(0.5, 0.25))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "tap", got["type"])
	assert.Equal(t, 0.5, got["x"])
	assert.Equal(t, 0.25, got["y"])
}

func TestEncodeControl_Swipe(t *testing.T) {
	data, err := EncodeControl(domain.Swipe(0.1, 0.2, 0.8, 0.2, 240))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "swipe", got["type"])
	assert.Equal(t, 0.1, got["x1"])
	assert.Equal(t, 0.2, got["y1"])
	assert.Equal(t, 0.8, got["x2"])
	assert.Equal(t, 0.2, got["y2"])
	assert.Equal(t, float64(240), got["duration"])
}

func TestEncodeControl_SwipeDurationNeverExceedsCap(t *testing.T) {
	data, err := EncodeControl(domain.Swipe(0, 0, 1, 1, 5000))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, float64(domain.MaxSwipeDurationMs), got["duration"])
}

func TestEncodeFallback_Key(t *testing.T) {
	msg, err := EncodeFallback(domain.Key(3))
	require.NoError(t, err)

	assert.Equal(t, domain.MsgInput, msg.Type)
	assert.Equal(t, "key", msg.InputType)
	require.NotNil(t, msg.KeyCode)
	assert.Equal(t, 3, *msg.KeyCode)
}

func TestEncodeFallback_Tap(t *testing.T) {
	msg, err := EncodeFallback(domain.Tap(0.5, 0.5))
	require.NoError(t, err)

	assert.Equal(t, domain.MsgInput, msg.Type)
	assert.Equal(t, "touch", msg.InputType)
	assert.Equal(t, "tap", msg.Action)
	require.NotNil(t, msg.X)
	require.NotNil(t, msg.Y)
	assert.Equal(t, 0.5, *msg.X)
	assert.Equal(t, 0.5, *msg.Y)
}

func TestEncodeFallback_Swipe(t *testing.T) {
	msg, err := EncodeFallback(domain.Swipe(0.1, 0.9, 0.1, 0.1, 333))
	require.NoError(t, err)

	assert.Equal(t, "touch", msg.InputType)
	assert.Equal(t, "swipe", msg.Action)
	require.NotNil(t, msg.X2)
	require.NotNil(t, msg.Duration)
	assert.Equal(t, 0.1, *msg.X2)
	assert.Equal(t, 333, *msg.Duration)
}

func TestEncodeControl_UnknownKindIsError(t *testing.T) {
	_, err := EncodeControl(domain.ControlEvent{Kind: domain.ControlEventKind(99)})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeUnknownAction, domain.CodeOf(err))
}
