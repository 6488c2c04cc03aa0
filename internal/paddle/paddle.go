// Package paddle talks to the Arduino paddle controller over HTTP.
package paddle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Override values accepted by the controller.
const (
	OverrideOn   = "1"
	OverrideOff  = "0"
	OverrideNone = "off"
)

// Controller modes.
const (
	ModeAuto   = "AUTO"
	ModeManual = "MANUAL"
)

// ParseMode normalizes a controller mode; case and surrounding space are ignored.
func ParseMode(mode string) (string, error) {
	switch m := strings.ToUpper(strings.TrimSpace(mode)); m {
	case ModeAuto, ModeManual:
		return m, nil
	}
	return "", fmt.Errorf("invalid mode %q", mode)
}

// Status mirrors the controller's /status response.
type Status struct {
	Mode              string `json:"mode"`
	Paddle            int    `json:"paddle"`
	RelayMain         int    `json:"relay_main"`
	Override          string `json:"override"`
	FlushActive       bool   `json:"flush_active"`
	GestureEnabled    bool   `json:"gesture_enabled"`
	GestureFlushMs    int    `json:"gesture_flush_ms"`
	GesturePulseMinMs int    `json:"gesture_pulse_min_ms"`
	GesturePulseMaxMs int    `json:"gesture_pulse_max_ms"`

	// LastError is set when the status could not be fetched or decoded.
	LastError string `json:"-"`
}

// Closed reports whether the paddle lever is down.
func (s Status) Closed() bool {
	return s.Paddle == 1
}

// unknownStatus is what the controller is assumed to report when unreachable.
func unknownStatus() Status {
	return Status{Mode: "UNKNOWN", Override: OverrideNone, GestureEnabled: true}
}

// Client is an HTTP client for one paddle controller.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the controller at baseURL (e.g. "http://192.168.0.177").
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchStatus polls /status. Failures are reported in Status.LastError and
// as the returned error, so callers can display the status either way.
func (c *Client) FetchStatus(ctx context.Context) (Status, error) {
	status := unknownStatus()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		status.LastError = fmt.Sprintf("HTTP error: %v", err)
		return status, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		status.LastError = fmt.Sprintf("HTTP error: %v", err)
		return status, fmt.Errorf("fetch status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status.LastError = fmt.Sprintf("HTTP error: %s", resp.Status)
		return status, fmt.Errorf("fetch status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		status.LastError = fmt.Sprintf("HTTP error: %v", err)
		return status, fmt.Errorf("read status: %w", err)
	}

	decoded := unknownStatus()
	if err := json.Unmarshal(body, &decoded); err != nil {
		status.LastError = fmt.Sprintf("Decode error: %v", err)
		return status, fmt.Errorf("decode status: %w", err)
	}
	return decoded, nil
}

// SendOverride sets the relay override: "1" forces the pump on, "0" forces
// it off and "off" hands control back to the paddle.
func (c *Client) SendOverride(ctx context.Context, value string) error {
	switch value {
	case OverrideOn, OverrideOff, OverrideNone:
	default:
		return fmt.Errorf("invalid override %q", value)
	}

	u := c.baseURL + "/override?set=" + url.QueryEscape(value)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build override request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send override: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send override: %s", resp.Status)
	}
	return nil
}

// StatusReader adapts a Client to the paddle reader used by the monitor loop.
// It remembers the last fetched status for display.
type StatusReader struct {
	client *Client
	last   Status
}

// NewStatusReader wraps client.
func NewStatusReader(client *Client) *StatusReader {
	return &StatusReader{client: client, last: unknownStatus()}
}

// Read fetches /status and returns true while the paddle is closed.
func (r *StatusReader) Read() (bool, error) {
	st, err := r.client.FetchStatus(context.Background())
	r.last = st
	if err != nil {
		return false, err
	}
	return st.Closed(), nil
}

// Last returns the most recently fetched status.
func (r *StatusReader) Last() Status {
	return r.last
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (r *StatusReader) Close() error {
	return nil
}
