package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second, zap.NewNop())
}

func TestListDevices(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/devices/", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("user_id"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":2,"device_name":"Pixel_5","status":"running"},
			{"id":3,"device_name":"Pixel_7","status":"stopped"}]`))
	}))

	devices, err := client.ListDevices(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "Pixel_5", devices[0].DeviceName)
	assert.True(t, devices[0].Running())
	assert.False(t, devices[1].Running())
}

func TestCreateSession(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/sessions/", r.URL.Path)

		var body map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 1, body["user_id"])
		assert.Equal(t, 2, body["device_id"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"session_token":"abc"}`))
	}))

	token, err := client.CreateSession(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestCreateSession_ErrorDetailSurfaced(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Device is not running. Please start the device first."}`))
	}))

	_, err := client.CreateSession(context.Background(), 1, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Device is not running")
}

func TestCreateSession_EmptyTokenRejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))

	_, err := client.CreateSession(context.Background(), 1, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty session token")
}

func TestEndSession(t *testing.T) {
	var called bool
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/sessions/2/end", r.URL.Path)
		w.Write([]byte(`{"status":"ended"}`))
	}))

	require.NoError(t, client.EndSession(context.Background(), 2))
	assert.True(t, called)
}

func TestEndSession_FailureReturnsError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := client.EndSession(context.Background(), 2)
	require.Error(t, err)
}
