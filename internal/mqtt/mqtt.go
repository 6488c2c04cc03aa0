// Package mqtt provides MQTT publishing and subscription with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/brew-monitor/internal/logic"
	"github.com/sweeney/brew-monitor/internal/paddle"
	"github.com/sweeney/brew-monitor/internal/status"
)

// Topics published by the daemon.
const (
	// TopicState carries every evaluated brew state while a shot runs.
	TopicState = "lm/brew/state"

	// TopicEvents carries shot lifecycle events.
	TopicEvents = "lm/brew/events"

	// TopicSystem carries system lifecycle events and the LWT.
	TopicSystem = "lm/brew/system"
)

// Topics shared with the paddle controller and the scale.
const (
	TopicPaddleState   = "lm/paddle/state"
	TopicPaddleMode    = "lm/paddle/mode"
	TopicPaddleModeSet = "lm/paddle/mode/set"
	TopicPaddleRelay   = "lm/paddle/relay_main"
	TopicPaddleCmd     = "lm/paddle/cmd"
	TopicScale         = "lm/scale/telemetry"
)

// Publisher publishes brew data to MQTT.
type Publisher interface {
	// PublishState sends the latest evaluated state. States are not
	// buffered while disconnected; only the newest one matters.
	PublishState(state logic.State) error

	// Publish sends a shot event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// PublishCommand sends a paddle override command ("1", "0" or "off").
	PublishCommand(value string) error

	// SetMode sends a paddle controller mode (AUTO or MANUAL).
	SetMode(mode string) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for a shot event.
type Payload struct {
	Brew BrewPayload `json:"brew"`
}

// BrewPayload contains the shot event details.
type BrewPayload struct {
	Timestamp string          `json:"timestamp"`
	Event     string          `json:"event"`
	Shot      int             `json:"shot"`
	From      string          `json:"from,omitempty"`
	State     status.BrewJSON `json:"state"`
}

// FormatPayload creates the JSON payload for a shot event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Brew: BrewPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Shot:      event.Shot,
			From:      string(event.From),
			State:     status.NewBrewJSON(event.State),
		},
	}
	return json.Marshal(payload)
}

// FormatStatePayload creates the JSON payload for a live state update.
func FormatStatePayload(state logic.State) ([]byte, error) {
	return json.Marshal(status.NewBrewJSON(state))
}

// FormatCommand returns the paddle controller command for an override value.
func FormatCommand(value string) (string, error) {
	switch value {
	case "1", "0", "off":
		return "override:" + value, nil
	}
	return "", fmt.Errorf("invalid override value %q", value)
}

// FormatMode returns the lm/paddle/mode/set payload for a controller mode.
func FormatMode(mode string) (string, error) {
	return paddle.ParseMode(mode)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
