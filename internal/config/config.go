// Package config loads the brew-monitor settings file.
//
// The file is TOML. Keys missing from the file keep their built-in defaults,
// so a file that only sets [shot] target_weight_g is a complete config.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sweeney/brew-monitor/internal/logic"
)

// DefaultPath is where the daemon looks for its settings file.
const DefaultPath = "config/dashboard.toml"

// Paddle sources.
const (
	PaddleGPIO = "gpio"
	PaddleHTTP = "http"
	PaddleMQTT = "mqtt"
)

// Config is the full daemon configuration.
type Config struct {
	RefreshRateMs int64   `toml:"refresh_rate_ms"`
	HeartbeatS    int64   `toml:"heartbeat_s"`
	Shot          Shot    `toml:"shot"`
	Arduino       Arduino `toml:"arduino"`
	Paddle        Paddle  `toml:"paddle"`
	MQTT          MQTT    `toml:"mqtt"`
	HTTP          HTTP    `toml:"http"`
}

// Shot holds the brew targets applied to every shot.
type Shot struct {
	TargetWeightG   float64 `toml:"target_weight_g"`
	DoseG           float64 `toml:"dose_g"`
	PreinfusionS    float64 `toml:"preinfusion_s"`
	TargetFlowGS    float64 `toml:"target_flow_g_s"`
	AutoStopMarginG float64 `toml:"auto_stop_margin_g"`
	MinimumShotS    float64 `toml:"minimum_shot_s"`
	SmoothingWindow int     `toml:"smoothing_window"`
	Simulate        bool    `toml:"simulate"`
	AutoStopActuate bool    `toml:"auto_stop_actuate"`
	ScaleTimeoutS   float64 `toml:"scale_timeout_s"`
}

// Arduino addresses the paddle controller's HTTP interface.
type Arduino struct {
	Host     string  `toml:"host"`
	TimeoutS float64 `toml:"timeout"`
}

// Paddle selects where the paddle lever state comes from.
type Paddle struct {
	Source string `toml:"source"`
	Pin    int    `toml:"pin"`
}

// MQTT configures the broker connection.
type MQTT struct {
	Broker     string `toml:"broker"`
	ClientID   string `toml:"client_id"`
	BufferSize int    `toml:"buffer_size"`
}

// HTTP configures the status server.
type HTTP struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		RefreshRateMs: 200,
		HeartbeatS:    15 * 60,
		Shot: Shot{
			TargetWeightG:   36,
			DoseG:           18,
			PreinfusionS:    7,
			TargetFlowGS:    2.4,
			AutoStopMarginG: 1.5,
			MinimumShotS:    20,
			SmoothingWindow: logic.DefaultSmoothingWindow,
			Simulate:        true,
			ScaleTimeoutS:   2,
		},
		Arduino: Arduino{
			Host:     "192.168.0.177",
			TimeoutS: 0.6,
		},
		Paddle: Paddle{
			Source: PaddleHTTP,
			Pin:    17,
		},
		MQTT: MQTT{
			Broker:     "tcp://127.0.0.1:1883",
			ClientID:   "brew-monitor",
			BufferSize: 256,
		},
		HTTP: HTTP{
			Addr: ":80",
		},
	}
}

// Load reads the TOML file at path on top of the defaults.
// A missing file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("decode %s: unknown keys %v", path, undecoded)
	}
	return cfg, nil
}

// Parse decodes TOML text on top of the defaults.
func Parse(data string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("decode config: unknown keys %v", undecoded)
	}
	return cfg, nil
}

// Validate checks the settings before any component is built from them.
func (c Config) Validate() error {
	if err := c.Brew().Validate(); err != nil {
		return fmt.Errorf("shot: %w", err)
	}
	if c.Shot.SmoothingWindow <= 0 {
		return fmt.Errorf("shot: smoothing window must be > 0, got %d", c.Shot.SmoothingWindow)
	}
	if c.Shot.ScaleTimeoutS < 0 {
		return fmt.Errorf("shot: scale_timeout_s must be >= 0, got %g", c.Shot.ScaleTimeoutS)
	}
	if c.RefreshRateMs <= 0 {
		return fmt.Errorf("refresh_rate_ms must be > 0, got %d", c.RefreshRateMs)
	}
	if c.HeartbeatS < 0 {
		return fmt.Errorf("heartbeat_s must be >= 0, got %d", c.HeartbeatS)
	}
	switch c.Paddle.Source {
	case PaddleGPIO, PaddleMQTT:
	case PaddleHTTP:
		if c.Arduino.Host == "" {
			return errors.New("paddle: source http needs arduino.host")
		}
	default:
		return fmt.Errorf("paddle: unknown source %q", c.Paddle.Source)
	}
	if c.Arduino.TimeoutS <= 0 {
		return fmt.Errorf("arduino: timeout must be > 0, got %g", c.Arduino.TimeoutS)
	}
	if c.MQTT.BufferSize <= 0 {
		return fmt.Errorf("mqtt: buffer_size must be > 0, got %d", c.MQTT.BufferSize)
	}
	return nil
}

// Brew converts the [shot] section into a state machine configuration.
func (c Config) Brew() logic.Configuration {
	return logic.Configuration{
		TargetWeight:    c.Shot.TargetWeightG,
		Dose:            c.Shot.DoseG,
		PreinfusionTime: c.Shot.PreinfusionS,
		TargetFlowRate:  c.Shot.TargetFlowGS,
		AutoStopMargin:  c.Shot.AutoStopMarginG,
		MinimumShotTime: c.Shot.MinimumShotS,
	}
}

// RefreshInterval is the monitor loop period. It never drops below 100ms.
func (c Config) RefreshInterval() time.Duration {
	d := time.Duration(c.RefreshRateMs) * time.Millisecond
	if d < 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	return d
}

// Heartbeat is the interval between heartbeat system events (0 = disabled).
func (c Config) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatS) * time.Second
}

// ScaleTimeout is how old the last MQTT scale message may be before
// readings are treated as stale (0 = never).
func (c Config) ScaleTimeout() time.Duration {
	return time.Duration(c.Shot.ScaleTimeoutS * float64(time.Second))
}

// ArduinoTimeout is the HTTP timeout for paddle controller requests.
func (c Config) ArduinoTimeout() time.Duration {
	return time.Duration(c.Arduino.TimeoutS * float64(time.Second))
}

// ArduinoURL is the base URL of the paddle controller, or "" if unset.
func (c Config) ArduinoURL() string {
	if c.Arduino.Host == "" {
		return ""
	}
	return "http://" + c.Arduino.Host
}
