// Command brew-monitor watches the espresso paddle and scale, tracks each shot
// through its phases and publishes state, events and warnings to MQTT and HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sweeney/brew-monitor/internal/config"
	"github.com/sweeney/brew-monitor/internal/gpio"
	"github.com/sweeney/brew-monitor/internal/logic"
	"github.com/sweeney/brew-monitor/internal/metrics"
	"github.com/sweeney/brew-monitor/internal/mqtt"
	"github.com/sweeney/brew-monitor/internal/paddle"
	"github.com/sweeney/brew-monitor/internal/status"
	"github.com/sweeney/brew-monitor/internal/telemetry"
	"github.com/sweeney/brew-monitor/internal/web"
)

// piHelperEnv is where pi-helper writes the network state.
const piHelperEnv = "/run/pi-helper.env"

func main() {
	configPath := flag.String("config", config.DefaultPath, "TOML settings file")
	envFile := flag.String("env-file", piHelperEnv, "pi-helper env file (empty to skip)")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	httpAddr := flag.String("http", "", `HTTP status address (overrides config, "off" disables)`)
	printState := flag.Bool("print-state", false, "Print paddle state and exit")

	flag.Parse()

	loadEnv(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	applyFlags(&cfg, *broker, *httpAddr)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: invalid config: %v", err)
	}

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadEnv loads pi-helper's env file. Variables already set win.
func loadEnv(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("env file %s: %v", path, err)
	}
}

func applyFlags(cfg *config.Config, broker, httpAddr string) {
	if broker != "" {
		cfg.MQTT.Broker = broker
	}
	switch httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = httpAddr
	}
}

func run(cfg config.Config, printState bool) error {
	var controller *paddle.Client
	if u := cfg.ArduinoURL(); u != "" {
		controller = paddle.NewClient(u, cfg.ArduinoTimeout())
	}

	if printState {
		return printPaddle(cfg, controller)
	}

	// Initialize MQTT first: the mqtt paddle and scale sources subscribe through it.
	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:             cfg.MQTT.Broker,
		ClientID:           cfg.MQTT.ClientID,
		BufferSize:         cfg.MQTT.BufferSize,
		OnConnectionChange: metrics.SetMQTTConnected,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	reader, err := newPaddleReader(cfg, controller, publisher)
	if err != nil {
		return err
	}
	defer reader.Close()

	var source telemetry.Source
	if cfg.Shot.Simulate {
		source = telemetry.NewSimulator(cfg.Shot.TargetWeightG, nil)
		log.Printf("telemetry: simulated shots")
	} else {
		source = mqtt.NewScaleFeed(publisher, cfg.ScaleTimeout(), nil)
		log.Printf("telemetry: scale on %s (stale after %v)", mqtt.TopicScale, cfg.ScaleTimeout())
	}

	commands := commandOverrider{pub: publisher}
	var overrider web.Overrider = commands
	if controller != nil {
		overrider = controller
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		RefreshMs:       cfg.RefreshInterval().Milliseconds(),
		HeartbeatMs:     cfg.Heartbeat().Milliseconds(),
		Broker:          cfg.MQTT.Broker,
		HTTPAddr:        cfg.HTTP.Addr,
		PaddleSource:    cfg.Paddle.Source,
		AutoStopActuate: cfg.Shot.AutoStopActuate,
		SmoothingWindow: cfg.Shot.SmoothingWindow,
		Brew:            cfg.Brew(),
	})
	tracker.SetMQTTConnected(publisher.IsConnected())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, overrider, commands, cfg.RefreshInterval())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	brew := cfg.Brew()
	log.Printf("started: refresh=%v broker=%s paddle=%s heartbeat=%v target=%.1fg dose=%.1fg ratio=1:%.2f actuate=%v",
		cfg.RefreshInterval(), cfg.MQTT.Broker, cfg.Paddle.Source, cfg.Heartbeat(),
		brew.TargetWeight, brew.Dose, brew.BrewRatio(), cfg.Shot.AutoStopActuate)

	ticker := time.NewTicker(cfg.RefreshInterval())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := loop{
		reader:       reader,
		source:       source,
		publisher:    publisher,
		mqttStatus:   publisher,
		tracker:      tracker,
		brew:         brew,
		window:       cfg.Shot.SmoothingWindow,
		heartbeat:    cfg.Heartbeat(),
		actuate:      cfg.Shot.AutoStopActuate,
		paddleSource: cfg.Paddle.Source,
	}
	if controller != nil {
		l.controller = controller
	}
	return runLoop(l, time.Now, ticker.C, sigCh)
}

func newPaddleReader(cfg config.Config, controller *paddle.Client, sub mqtt.Subscriber) (gpio.Reader, error) {
	switch cfg.Paddle.Source {
	case config.PaddleGPIO:
		r, err := gpio.NewRealReader(cfg.Paddle.Pin)
		if err != nil {
			return nil, fmt.Errorf("init gpio: %w", err)
		}
		return r, nil
	case config.PaddleHTTP:
		return paddle.NewStatusReader(controller), nil
	case config.PaddleMQTT:
		return mqtt.NewPaddleFeed(sub), nil
	}
	return nil, fmt.Errorf("unknown paddle source %q", cfg.Paddle.Source)
}

func printPaddle(cfg config.Config, controller *paddle.Client) error {
	if cfg.Paddle.Source == config.PaddleMQTT {
		return fmt.Errorf("print-state needs a gpio or http paddle source")
	}
	reader, err := newPaddleReader(cfg, controller, nil)
	if err != nil {
		return err
	}
	defer reader.Close()

	closed, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read paddle: %w", err)
	}
	fmt.Printf("paddle: %s\n", paddleString(closed))
	if sr, ok := reader.(*paddle.StatusReader); ok {
		last := sr.Last()
		fmt.Printf("mode: %s, override: %s, relay_main: %d\n", last.Mode, last.Override, last.RelayMain)
	}
	return nil
}

// commandOverrider drives the paddle controller over MQTT. It handles
// overrides when no controller URL is configured, and mode changes always.
type commandOverrider struct {
	pub mqtt.Publisher
}

func (o commandOverrider) SendOverride(_ context.Context, value string) error {
	return o.pub.PublishCommand(value)
}

func (o commandOverrider) SetMode(_ context.Context, mode string) error {
	return o.pub.SetMode(mode)
}

// loop holds everything runLoop reads from and writes to.
type loop struct {
	reader       gpio.Reader
	source       telemetry.Source
	publisher    mqtt.Publisher
	mqttStatus   mqtt.ConnectionStatus
	tracker      *status.Tracker
	brew         logic.Configuration
	window       int
	heartbeat    time.Duration
	actuate      bool
	controller   web.Overrider // nil when no Arduino host is configured
	paddleSource string
}

func runLoop(l loop, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	session := logic.NewSession(l.brew, l.window, now())

	// overridden is set while an auto-stop override holds the pump off.
	overridden := false

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if overridden {
				l.sendOverride(paddle.OverrideNone)
			}
			if l.tracker != nil {
				l.refreshConnection()
				event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := l.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			closed, err := l.reader.Read()
			l.updatePaddle(closed, err)
			if err != nil {
				log.Printf("paddle read error: %v", err)
				metrics.RecordReadError("paddle")
				continue
			}

			if closed && !session.Active() {
				l.source.Reset(t)
			}

			var reading telemetry.Reading
			noReading := false
			if closed {
				reading, err = l.source.Read(t)
				switch {
				case err == nil:
					l.observeMachine(reading)
				case errors.Is(err, telemetry.ErrNoData):
					noReading = true
				case errors.Is(err, telemetry.ErrStale):
					log.Printf("telemetry: %v", err)
					metrics.RecordReadError("telemetry")
					noReading = true
				default:
					log.Printf("telemetry read error: %v", err)
					metrics.RecordReadError("telemetry")
					continue
				}
			}

			events := session.Process(logic.Input{
				PaddleClosed: closed,
				Weight:       reading.Weight,
				Flow:         reading.Flow,
				Time:         t,
				NoReading:    noReading,
			})

			if closed && !noReading {
				if st, ok := session.Latest(); ok {
					metrics.ObserveState(st)
					if err := l.publisher.PublishState(st); err != nil {
						log.Printf("state publish error: %v", err)
					}
				}
			}

			for _, event := range events {
				logEvent(event)
				metrics.RecordEvent(event)
				if err := l.publisher.Publish(event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
				switch {
				case event.Type == logic.EventAutoStop && l.actuate:
					l.sendOverride(paddle.OverrideOff)
					overridden = true
				case event.Type == logic.EventShotEnd && overridden:
					// Hand the pump back so the next paddle pull brews.
					l.sendOverride(paddle.OverrideNone)
					overridden = false
				}
			}

			// Update status tracker for HTTP/websocket consumers
			if closed || len(events) > 0 {
				counts := session.CountsSnapshot()
				metrics.SetCounts(counts)
				if l.tracker != nil {
					var latest *logic.State
					if st, ok := session.Latest(); ok {
						latest = &st
					}
					l.tracker.Update(latest, session.Active(), session.Shot(), counts)
				}
			}
			l.refreshConnection()

			// Check for heartbeat
			if hb := session.CheckHeartbeat(t, l.heartbeat); hb != nil {
				log.Printf("heartbeat: uptime=%v shots=%d auto_stops=%d completed=%d",
					hb.Uptime, hb.Counts.Shots, hb.Counts.AutoStops, hb.Counts.Completed)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hb.Timestamp,
					Event:     "HEARTBEAT",
				}
				if l.tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						l.tracker.SetNetwork(net)
					}
					hbEvent.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := l.publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

func logEvent(e logic.Event) {
	st := e.State
	switch e.Type {
	case logic.EventPhase:
		log.Printf("shot %d: %s -> %s at %.1fs (%.1fg)", e.Shot, e.From, st.Phase, st.Sample.Elapsed, st.Sample.Weight)
	case logic.EventShotEnd:
		log.Printf("shot %d: end in %s after %.1fs, %.1fg (1:%.2f)", e.Shot, st.Phase, st.Sample.Elapsed, st.Sample.Weight, st.Ratio)
	default:
		log.Printf("shot %d: %s at %.1fs (%.1fg)", e.Shot, e.Type, st.Sample.Elapsed, st.Sample.Weight)
	}
}

// sendOverride sets the pump override over MQTT and, when an Arduino host
// is configured, over HTTP. "0" cuts the pump at auto-stop; "off" releases it.
func (l loop) sendOverride(value string) {
	if err := l.publisher.PublishCommand(value); err != nil {
		log.Printf("override %s command error: %v", value, err)
	}
	if l.controller == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.controller.SendOverride(ctx, value); err != nil {
		log.Printf("override %s error: %v", value, err)
	}
}

func (l loop) observeMachine(r telemetry.Reading) {
	metrics.ObserveMachine(r.Pressure, r.BoilerTemp, r.GroupTemp)
	if l.tracker != nil {
		l.tracker.SetMachine(status.MachineInfo{
			PressureBar: r.Pressure,
			BoilerTempC: r.BoilerTemp,
			GroupTempC:  r.GroupTemp,
		})
	}
}

func (l loop) updatePaddle(closed bool, err error) {
	if l.tracker == nil {
		return
	}
	info := status.PaddleInfo{Source: l.paddleSource, Closed: closed}
	if sr, ok := l.reader.(*paddle.StatusReader); ok {
		last := sr.Last()
		info.Mode = last.Mode
		info.Override = last.Override
		info.RelayMain = last.RelayMain
		info.FlushActive = last.FlushActive
		info.LastError = last.LastError
	} else if feed, ok := l.reader.(*mqtt.PaddleFeed); ok {
		info.Mode, info.RelayMain = feed.Info()
	}
	if err != nil && info.LastError == "" {
		info.LastError = err.Error()
	}
	l.tracker.SetPaddle(info)
}

func (l loop) refreshConnection() {
	if l.tracker != nil && l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func paddleString(closed bool) string {
	if closed {
		return "CLOSED"
	}
	return "OPEN"
}
