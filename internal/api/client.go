// Package api talks to the droidview REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"droidview/client/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type sessionRequest struct {
	UserID   int `json:"user_id"`
	DeviceID int `json:"device_id"`
}

type sessionResponse struct {
	SessionToken string `json:"session_token"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Client implements domain.SessionAPI against the backend REST surface.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.SugaredLogger
}

// NewClient creates a REST client. baseURL is the backend root, without the
// /api prefix.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Sugar().Named("api"),
	}
}

// ListDevices returns the devices owned by a user.
func (c *Client) ListDevices(ctx context.Context, userID int) ([]domain.Device, error) {
	endpoint := c.baseURL + "/api/devices/?user_id=" + url.QueryEscape(strconv.Itoa(userID))

	var devices []domain.Device
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &devices); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// CreateSession requests a streaming session and returns its token.
func (c *Client) CreateSession(ctx context.Context, userID, deviceID int) (string, error) {
	endpoint := c.baseURL + "/api/sessions/"
	body := sessionRequest{UserID: userID, DeviceID: deviceID}

	var resp sessionResponse
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return "", err
	}
	if resp.SessionToken == "" {
		return "", fmt.Errorf("backend returned an empty session token")
	}
	c.logger.Infow("session created", "device_id", deviceID)
	return resp.SessionToken, nil
}

// EndSession tells the backend the session ended. Best-effort: callers do
// not block teardown on its failure.
func (c *Client) EndSession(ctx context.Context, deviceID int) error {
	endpoint := fmt.Sprintf("%s/api/sessions/%d/end", c.baseURL, deviceID)
	if err := c.doJSON(ctx, http.MethodPost, endpoint, nil, nil); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Detail != "" {
			return fmt.Errorf("backend rejected request (http %d): %s", resp.StatusCode, apiErr.Detail)
		}
		return fmt.Errorf("backend returned http %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
