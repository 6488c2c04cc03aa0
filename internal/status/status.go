// Package status provides a thread-safe status tracker for the brew-monitor daemon.
// It is read by HTTP handlers, the websocket feed and MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/brew-monitor/internal/logic"
)

// NetworkInfo contains network state as written by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// PaddleInfo is the last known state of the paddle and its controller.
// Controller fields are filled when the paddle is read over HTTP or MQTT;
// MQTT only reports mode and the main relay.
type PaddleInfo struct {
	Source      string
	Closed      bool
	Mode        string
	Override    string
	RelayMain   int
	FlushActive bool
	LastError   string
}

// MachineInfo holds the machine sensors reported alongside the scale.
// Zero means the source does not report that value.
type MachineInfo struct {
	PressureBar float64
	BoilerTempC float64
	GroupTempC  float64
}

// Config contains daemon configuration for display.
type Config struct {
	RefreshMs       int64
	HeartbeatMs     int64
	Broker          string
	HTTPAddr        string
	PaddleSource    string
	AutoStopActuate bool
	SmoothingWindow int
	Brew            logic.Configuration
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	Brew          *logic.State // latest state of the current or last shot
	ShotActive    bool
	Shot          int
	Counts        logic.ShotCounts
	Paddle        PaddleInfo
	Machine       MachineInfo
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config

	// Version increases on every brew update; readers compare it to
	// detect new states without diffing.
	Version uint64
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the latest brew state, shot number and counters.
// Called from runLoop on every tick. state may be nil before the first shot.
func (t *Tracker) Update(state *logic.State, active bool, shot int, counts logic.ShotCounts) {
	var brew *logic.State
	if state != nil {
		s := *state
		brew = &s
	}
	t.mu.Lock()
	t.snap.Brew = brew
	t.snap.ShotActive = active
	t.snap.Shot = shot
	t.snap.Counts = counts
	t.snap.Version++
	t.mu.Unlock()
}

// SetPaddle sets the paddle info.
func (t *Tracker) SetPaddle(info PaddleInfo) {
	t.mu.Lock()
	t.snap.Paddle = info
	t.mu.Unlock()
}

// SetMachine sets the machine sensor readings.
func (t *Tracker) SetMachine(info MachineInfo) {
	t.mu.Lock()
	t.snap.Machine = info
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
