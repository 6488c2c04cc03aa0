package mqtt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/sweeney/brew-monitor/internal/telemetry"
)

// Subscriber registers message handlers. RealPublisher implements it.
type Subscriber interface {
	Subscribe(topic string, h Handler)
}

// ParsePaddleState decodes an lm/paddle/state payload.
// Accepts "1"/"0", ON/OFF, CLOSED/OPEN, TRUE/FALSE and {"paddle":1}.
func ParsePaddleState(payload []byte) (bool, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var msg struct {
			Paddle *int `json:"paddle"`
		}
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return false, fmt.Errorf("decode paddle state: %w", err)
		}
		if msg.Paddle == nil {
			return false, fmt.Errorf("decode paddle state: missing paddle field")
		}
		return *msg.Paddle != 0, nil
	}

	on, ok := parseSwitch(trimmed)
	if !ok {
		return false, fmt.Errorf("unknown paddle state %q", trimmed)
	}
	return on, nil
}

// ParseRelayState decodes an lm/paddle/relay_main payload into 1 or 0.
func ParseRelayState(payload []byte) (int, error) {
	trimmed := bytes.TrimSpace(payload)
	on, ok := parseSwitch(trimmed)
	if !ok {
		return 0, fmt.Errorf("unknown relay state %q", trimmed)
	}
	if on {
		return 1, nil
	}
	return 0, nil
}

func parseSwitch(b []byte) (on, ok bool) {
	switch strings.ToUpper(string(b)) {
	case "1", "ON", "CLOSED", "TRUE":
		return true, true
	case "0", "OFF", "OPEN", "FALSE":
		return false, true
	}
	return false, false
}

// PaddleFeed tracks the paddle controller from lm/paddle/state,
// lm/paddle/mode and lm/paddle/relay_main.
// It satisfies the gpio.Reader interface; until the first message the
// paddle reads as open and the mode as UNKNOWN.
type PaddleFeed struct {
	mu        sync.Mutex
	closed    bool
	mode      string
	relayMain int
}

// NewPaddleFeed subscribes a PaddleFeed to the paddle controller topics.
func NewPaddleFeed(sub Subscriber) *PaddleFeed {
	f := &PaddleFeed{mode: "UNKNOWN"}
	sub.Subscribe(TopicPaddleState, f.Handle)
	sub.Subscribe(TopicPaddleMode, f.HandleMode)
	sub.Subscribe(TopicPaddleRelay, f.HandleRelay)
	return f
}

// Handle applies one paddle state message.
func (f *PaddleFeed) Handle(payload []byte) {
	closed, err := ParsePaddleState(payload)
	if err != nil {
		log.Printf("mqtt: %v", err)
		return
	}
	f.mu.Lock()
	f.closed = closed
	f.mu.Unlock()
}

// HandleMode applies one controller mode message.
func (f *PaddleFeed) HandleMode(payload []byte) {
	mode := strings.ToUpper(string(bytes.TrimSpace(payload)))
	if mode == "" {
		log.Printf("mqtt: empty paddle mode")
		return
	}
	f.mu.Lock()
	f.mode = mode
	f.mu.Unlock()
}

// HandleRelay applies one main relay message.
func (f *PaddleFeed) HandleRelay(payload []byte) {
	relay, err := ParseRelayState(payload)
	if err != nil {
		log.Printf("mqtt: %v", err)
		return
	}
	f.mu.Lock()
	f.relayMain = relay
	f.mu.Unlock()
}

// Read returns true if the paddle is closed.
func (f *PaddleFeed) Read() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, nil
}

// Info returns the last reported controller mode and main relay state.
func (f *PaddleFeed) Info() (mode string, relayMain int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode, f.relayMain
}

// Close is a no-op; the subscription lives as long as the client.
func (f *PaddleFeed) Close() error {
	return nil
}

// ScaleMessage is the lm/scale/telemetry payload. Only weight and flow are
// required; machine sensors are passed through when the bridge sends them.
type ScaleMessage struct {
	Weight     float64 `json:"weight_g"`
	Flow       float64 `json:"flow_g_s"`
	Pressure   float64 `json:"pressure_bar,omitempty"`
	BoilerTemp float64 `json:"boiler_temp_c,omitempty"`
	GroupTemp  float64 `json:"group_temp_c,omitempty"`
}

// ScaleFeed is a telemetry.Source backed by lm/scale/telemetry.
// Reset tares to the current raw weight.
type ScaleFeed struct {
	maxAge time.Duration
	now    func() time.Time

	mu       sync.Mutex
	latest   telemetry.Reading
	received time.Time
	seen     bool
	tare     float64
}

// NewScaleFeed subscribes a ScaleFeed to the scale telemetry topic.
// Readings older than maxAge are reported as stale (0 disables the check).
// now stamps incoming messages; nil means time.Now.
func NewScaleFeed(sub Subscriber, maxAge time.Duration, now func() time.Time) *ScaleFeed {
	if now == nil {
		now = time.Now
	}
	f := &ScaleFeed{maxAge: maxAge, now: now}
	sub.Subscribe(TopicScale, f.Handle)
	return f
}

// Handle applies one scale message.
func (f *ScaleFeed) Handle(payload []byte) {
	var msg ScaleMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("mqtt: decode scale telemetry: %v", err)
		return
	}
	received := f.now()
	f.mu.Lock()
	f.latest = telemetry.Reading{
		Weight:     msg.Weight,
		Flow:       msg.Flow,
		Pressure:   msg.Pressure,
		BoilerTemp: msg.BoilerTemp,
		GroupTemp:  msg.GroupTemp,
	}
	f.received = received
	f.seen = true
	f.mu.Unlock()
}

// Reset tares the feed at shot start.
func (f *ScaleFeed) Reset(time.Time) {
	f.mu.Lock()
	f.tare = f.latest.Weight
	f.mu.Unlock()
}

// Read returns the latest reading relative to the tare weight.
// A reading older than maxAge returns telemetry.ErrStale.
func (f *ScaleFeed) Read(now time.Time) (telemetry.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.seen {
		return telemetry.Reading{}, telemetry.ErrNoData
	}
	if age := now.Sub(f.received); f.maxAge > 0 && age > f.maxAge {
		return telemetry.Reading{}, fmt.Errorf("%w: last scale message %v ago", telemetry.ErrStale, age.Round(time.Millisecond))
	}
	r := f.latest
	r.Weight -= f.tare
	return r, nil
}
