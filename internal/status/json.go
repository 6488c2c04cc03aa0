package status

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/brew-monitor/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	ShotActive    bool         `json:"shot_active"`
	Shot          int          `json:"shot"`
	Brew          *BrewJSON    `json:"brew,omitempty"`
	Paddle        PaddleJSON   `json:"paddle"`
	Machine       MachineJSON  `json:"machine"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"shot_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// BrewJSON is the JSON representation of a brew state.
type BrewJSON struct {
	Phase       string        `json:"phase"`
	ElapsedS    float64       `json:"elapsed_s"`
	WeightG     float64       `json:"weight_g"`
	FlowGS      float64       `json:"flow_g_s"`
	AvgFlowGS   float64       `json:"avg_flow_g_s"`
	Ratio       float64       `json:"ratio"`
	TargetRatio float64       `json:"target_ratio"`
	Progress    float64       `json:"progress"`
	AutoStop    bool          `json:"auto_stop"`
	Warnings    []WarningJSON `json:"warnings"`
}

// WarningJSON is the JSON representation of a brew warning.
type WarningJSON struct {
	Kind    string  `json:"kind"`
	Value   float64 `json:"value,omitempty"`
	Message string  `json:"message"`
}

// PaddleJSON reports the paddle and controller state.
type PaddleJSON struct {
	Source      string `json:"source"`
	Closed      bool   `json:"closed"`
	Mode        string `json:"mode,omitempty"`
	Override    string `json:"override,omitempty"`
	RelayMain   int    `json:"relay_main"`
	FlushActive bool   `json:"flush_active"`
	Error       string `json:"error,omitempty"`
}

// MachineJSON reports pressure and temperatures.
type MachineJSON struct {
	PressureBar float64 `json:"pressure_bar"`
	BoilerTempC float64 `json:"boiler_temp_c"`
	GroupTempC  float64 `json:"group_temp_c"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of shot counts.
type CountsJSON struct {
	Shots     int            `json:"shots"`
	AutoStops int            `json:"auto_stops"`
	Completed int            `json:"completed"`
	Warnings  map[string]int `json:"warnings"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	RefreshMs       int64   `json:"refresh_ms"`
	HeartbeatMs     int64   `json:"heartbeat_ms"`
	Broker          string  `json:"broker"`
	HTTPAddr        string  `json:"http_addr"`
	PaddleSource    string  `json:"paddle_source"`
	AutoStopActuate bool    `json:"auto_stop_actuate"`
	SmoothingWindow int     `json:"smoothing_window"`
	TargetWeightG   float64 `json:"target_weight_g"`
	DoseG           float64 `json:"dose_g"`
	PreinfusionS    float64 `json:"preinfusion_s"`
	TargetFlowGS    float64 `json:"target_flow_g_s"`
	AutoStopMarginG float64 `json:"auto_stop_margin_g"`
	MinimumShotS    float64 `json:"minimum_shot_s"`
	TargetRatio     float64 `json:"target_ratio"`
}

// round2 keeps payloads readable; the scale resolution is 0.1g anyway.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NewBrewJSON converts a brew state for display and MQTT.
func NewBrewJSON(s logic.State) BrewJSON {
	warnings := make([]WarningJSON, 0, len(s.Warnings))
	for _, w := range s.Warnings {
		warnings = append(warnings, WarningJSON{
			Kind:    string(w.Kind),
			Value:   round2(w.Value),
			Message: w.String(),
		})
	}
	return BrewJSON{
		Phase:       string(s.Phase),
		ElapsedS:    round2(s.Sample.Elapsed),
		WeightG:     round2(s.Sample.Weight),
		FlowGS:      round2(s.Sample.Flow),
		AvgFlowGS:   round2(s.AverageFlow),
		Ratio:       round2(s.Ratio),
		TargetRatio: round2(s.Config.BrewRatio()),
		Progress:    round2(s.Progress),
		AutoStop:    s.AutoStop,
		Warnings:    warnings,
	}
}

// NewCountsJSON converts shot counters.
func NewCountsJSON(c logic.ShotCounts) CountsJSON {
	warnings := make(map[string]int, len(logic.WarningKinds))
	for _, k := range logic.WarningKinds {
		warnings[string(k)] = c.Warnings[k]
	}
	return CountsJSON{
		Shots:     c.Shots,
		AutoStops: c.AutoStops,
		Completed: c.Completed,
		Warnings:  warnings,
	}
}

func buildInner(snap Snapshot) StatusInner {
	cfg := snap.Config
	inner := StatusInner{
		ShotActive: snap.ShotActive,
		Shot:       snap.Shot,
		Paddle: PaddleJSON{
			Source:      snap.Paddle.Source,
			Closed:      snap.Paddle.Closed,
			Mode:        snap.Paddle.Mode,
			Override:    snap.Paddle.Override,
			RelayMain:   snap.Paddle.RelayMain,
			FlushActive: snap.Paddle.FlushActive,
			Error:       snap.Paddle.LastError,
		},
		Machine: MachineJSON{
			PressureBar: round2(snap.Machine.PressureBar),
			BoilerTempC: round2(snap.Machine.BoilerTempC),
			GroupTempC:  round2(snap.Machine.GroupTempC),
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: cfg.Broker},
		Counts:        NewCountsJSON(snap.Counts),
		Config: ConfigJSON{
			RefreshMs:       cfg.RefreshMs,
			HeartbeatMs:     cfg.HeartbeatMs,
			Broker:          cfg.Broker,
			HTTPAddr:        cfg.HTTPAddr,
			PaddleSource:    cfg.PaddleSource,
			AutoStopActuate: cfg.AutoStopActuate,
			SmoothingWindow: cfg.SmoothingWindow,
			TargetWeightG:   cfg.Brew.TargetWeight,
			DoseG:           cfg.Brew.Dose,
			PreinfusionS:    cfg.Brew.PreinfusionTime,
			TargetFlowGS:    cfg.Brew.TargetFlowRate,
			AutoStopMarginG: cfg.Brew.AutoStopMargin,
			MinimumShotS:    cfg.Brew.MinimumShotTime,
			TargetRatio:     round2(cfg.Brew.BrewRatio()),
		},
	}
	if snap.Brew != nil {
		brew := NewBrewJSON(*snap.Brew)
		inner.Brew = &brew
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
