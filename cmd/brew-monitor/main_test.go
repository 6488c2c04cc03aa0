package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/brew-monitor/internal/config"
	"github.com/sweeney/brew-monitor/internal/gpio"
	"github.com/sweeney/brew-monitor/internal/logic"
	"github.com/sweeney/brew-monitor/internal/mqtt"
	"github.com/sweeney/brew-monitor/internal/paddle"
	"github.com/sweeney/brew-monitor/internal/status"
	"github.com/sweeney/brew-monitor/internal/telemetry"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfo(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "Kitchen")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "Kitchen",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestLoadEnv(t *testing.T) {
	const key = "BREW_MONITOR_TEST_ENV"
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), "pi-helper.env")
	if err := os.WriteFile(path, []byte(key+"=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	loadEnv(path)
	if got := os.Getenv(key); got != "from-file" {
		t.Errorf("expected env loaded from file, got %q", got)
	}

	// Missing files and empty paths are silently skipped.
	loadEnv(filepath.Join(t.TempDir(), "missing.env"))
	loadEnv("")
}

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	applyFlags(&cfg, "", "")
	if cfg != config.Default() {
		t.Error("empty flags should not change config")
	}

	applyFlags(&cfg, "tcp://10.0.0.1:1883", ":8080")
	if cfg.MQTT.Broker != "tcp://10.0.0.1:1883" {
		t.Errorf("Broker: got %q", cfg.MQTT.Broker)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr: got %q", cfg.HTTP.Addr)
	}

	applyFlags(&cfg, "", "off")
	if cfg.HTTP.Addr != "" {
		t.Errorf("expected http disabled, got %q", cfg.HTTP.Addr)
	}
}

func TestNewPaddleReader(t *testing.T) {
	cfg := config.Default()
	pub := mqtt.NewFakePublisher()

	cfg.Paddle.Source = config.PaddleMQTT
	r, err := newPaddleReader(cfg, nil, pub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := r.(*mqtt.PaddleFeed); !ok {
		t.Errorf("expected *mqtt.PaddleFeed, got %T", r)
	}
	if !pub.Deliver(mqtt.TopicPaddleState, []byte("1")) {
		t.Error("expected paddle feed to subscribe")
	}

	cfg.Paddle.Source = config.PaddleHTTP
	r, err = newPaddleReader(cfg, paddle.NewClient("http://127.0.0.1:1", time.Second), pub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := r.(*paddle.StatusReader); !ok {
		t.Errorf("expected *paddle.StatusReader, got %T", r)
	}

	cfg.Paddle.Source = "serial"
	if _, err := newPaddleReader(cfg, nil, pub); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestCommandOverrider(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	o := commandOverrider{pub: pub}

	if err := o.SendOverride(context.Background(), "off"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.Commands) != 1 || pub.Commands[0] != "override:off" {
		t.Errorf("unexpected commands %v", pub.Commands)
	}

	if err := o.SetMode(context.Background(), "manual"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.Modes) != 1 || pub.Modes[0] != "MANUAL" {
		t.Errorf("unexpected modes %v", pub.Modes)
	}
}

// --- runLoop tests ---

var loopStart = time.Date(2026, 1, 1, 7, 0, 0, 0, time.UTC)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// repeat returns n copies of closed.
func repeat(closed bool, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = closed
	}
	return out
}

type fakeController struct {
	values []string
	err    error
}

func (f *fakeController) SendOverride(_ context.Context, value string) error {
	f.values = append(f.values, value)
	return f.err
}

func testBrew() logic.Configuration {
	return logic.Configuration{
		TargetWeight:    36,
		Dose:            18,
		PreinfusionTime: 7,
		TargetFlowRate:  2.4,
		AutoStopMargin:  1.5,
		MinimumShotTime: 20,
	}
}

func newTestLoop(paddleSamples []bool, readings []telemetry.Reading) (loop, *mqtt.FakePublisher, *telemetry.Script) {
	pub := mqtt.NewFakePublisher()
	script := telemetry.NewScript(readings)
	return loop{
		reader:       gpio.NewFakeReader(paddleSamples),
		source:       script,
		publisher:    pub,
		mqttStatus:   pub,
		tracker:      status.NewTracker(loopStart, status.Config{Brew: testBrew()}),
		brew:         testBrew(),
		window:       logic.DefaultSmoothingWindow,
		paddleSource: config.PaddleGPIO,
	}, pub, script
}

// runRunLoop drives runLoop for nTicks and then sends signal.
func runRunLoop(t *testing.T, l loop, clock func() time.Time, nTicks int, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(l, clock, tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func eventTypes(events []logic.Event) []logic.EventType {
	out := make([]logic.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// With a 3s clock step, closed tick k (k >= 1) is at elapsed 3(k-1) seconds.
func fullShot() ([]bool, []telemetry.Reading) {
	samples := append([]bool{false}, repeat(true, 9)...)
	samples = append(samples, false)
	readings := []telemetry.Reading{
		{Weight: 0, Flow: 0},      // 0s   SHOT_START (IDLE)
		{Weight: 0.5, Flow: 0.3},  // 3s   PREINFUSION
		{Weight: 2, Flow: 1.0},    // 6s
		{Weight: 6, Flow: 2.2},    // 9s   EXTRACTION
		{Weight: 13, Flow: 2.4},   // 12s
		{Weight: 20, Flow: 2.4},   // 15s
		{Weight: 27, Flow: 2.4},   // 18s
		{Weight: 34.6, Flow: 2.4}, // 21s  FINISHING + AUTO_STOP
		{Weight: 36.3, Flow: 0.8}, // 24s  COMPLETED
	}
	return samples, readings
}

func TestRunLoopIdle(t *testing.T) {
	l, pub, script := newTestLoop(repeat(false, 5), nil)
	clock := fakeClock(loopStart, time.Second)

	if err := runRunLoop(t, l, clock, 5, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 0 || len(pub.States) != 0 {
		t.Errorf("expected no brew output, got %d events %d states", len(pub.Events), len(pub.States))
	}
	if len(script.Resets) != 0 {
		t.Errorf("expected no telemetry reset, got %d", len(script.Resets))
	}
	if len(pub.SystemEvents) != 1 || pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Fatalf("expected only SHUTDOWN, got %+v", pub.SystemEvents)
	}
	if l.tracker.Snapshot().Brew != nil {
		t.Error("expected no brew state in tracker")
	}
}

func TestRunLoopFullShot(t *testing.T) {
	paddleSamples, readings := fullShot()
	l, pub, script := newTestLoop(paddleSamples, readings)
	clock := fakeClock(loopStart, 3*time.Second)

	if err := runRunLoop(t, l, clock, len(paddleSamples), syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	want := []logic.EventType{
		logic.EventShotStart,
		logic.EventPhase,
		logic.EventPhase,
		logic.EventPhase,
		logic.EventAutoStop,
		logic.EventPhase,
		logic.EventShotEnd,
	}
	got := eventTypes(pub.Events)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	phases := []logic.Phase{}
	for _, e := range pub.Events {
		if e.Type == logic.EventPhase {
			phases = append(phases, e.State.Phase)
		}
	}
	wantPhases := []logic.Phase{logic.PhasePreinfusion, logic.PhaseExtraction, logic.PhaseFinishing, logic.PhaseCompleted}
	for i := range wantPhases {
		if phases[i] != wantPhases[i] {
			t.Errorf("phase %d: expected %s, got %s", i, wantPhases[i], phases[i])
		}
	}

	if len(pub.States) != 9 {
		t.Errorf("expected a state per closed tick (9), got %d", len(pub.States))
	}
	if len(script.Resets) != 1 || !script.Resets[0].Equal(loopStart.Add(6*time.Second)) {
		t.Errorf("expected one reset at shot start, got %v", script.Resets)
	}
	if len(pub.Commands) != 0 {
		t.Errorf("expected no commands with actuation off, got %v", pub.Commands)
	}

	snap := l.tracker.Snapshot()
	if snap.ShotActive {
		t.Error("expected shot finished")
	}
	if snap.Brew == nil || snap.Brew.Phase != logic.PhaseCompleted {
		t.Errorf("expected last state COMPLETED, got %+v", snap.Brew)
	}
	if snap.Counts.Shots != 1 || snap.Counts.AutoStops != 1 || snap.Counts.Completed != 1 {
		t.Errorf("unexpected counts %+v", snap.Counts)
	}
	if snap.Paddle.Closed || snap.Paddle.Source != config.PaddleGPIO {
		t.Errorf("unexpected paddle info %+v", snap.Paddle)
	}
}

func TestRunLoopAutoStopActuation(t *testing.T) {
	paddleSamples, readings := fullShot()
	l, pub, _ := newTestLoop(paddleSamples, readings)
	ctrl := &fakeController{}
	l.actuate = true
	l.controller = ctrl
	clock := fakeClock(loopStart, 3*time.Second)

	if err := runRunLoop(t, l, clock, len(paddleSamples), syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if fmt.Sprint(pub.Commands) != "[override:0 override:off]" {
		t.Errorf("expected override:0 then override:off, got %v", pub.Commands)
	}
	if fmt.Sprint(ctrl.values) != fmt.Sprint([]string{paddle.OverrideOff, paddle.OverrideNone}) {
		t.Errorf("expected HTTP overrides 0 then off, got %v", ctrl.values)
	}
}

func TestRunLoopReleasesOverrideBetweenShots(t *testing.T) {
	samples, readings := fullShot()
	paddleSamples := append(append([]bool{}, samples...), samples...)
	l, pub, _ := newTestLoop(paddleSamples, append(append([]telemetry.Reading{}, readings...), readings...))
	ctrl := &fakeController{}
	l.actuate = true
	l.controller = ctrl
	clock := fakeClock(loopStart, 3*time.Second)

	if err := runRunLoop(t, l, clock, len(paddleSamples), syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	want := []string{"override:0", "override:off", "override:0", "override:off"}
	if fmt.Sprint(pub.Commands) != fmt.Sprint(want) {
		t.Errorf("mqtt commands: expected %v, got %v", want, pub.Commands)
	}
	wantHTTP := []string{"0", "off", "0", "off"}
	if fmt.Sprint(ctrl.values) != fmt.Sprint(wantHTTP) {
		t.Errorf("http overrides: expected %v, got %v", wantHTTP, ctrl.values)
	}
	if got := l.tracker.Snapshot().Counts.AutoStops; got != 2 {
		t.Errorf("expected both shots to auto-stop, got %d", got)
	}
}

func TestRunLoopReleasesOverrideOnShutdown(t *testing.T) {
	samples, readings := fullShot()
	// Shut down mid-shot, after auto-stop but before the paddle opens.
	samples = samples[:len(samples)-1]
	l, pub, _ := newTestLoop(samples, readings)
	l.actuate = true
	clock := fakeClock(loopStart, 3*time.Second)

	if err := runRunLoop(t, l, clock, len(samples), syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if fmt.Sprint(pub.Commands) != "[override:0 override:off]" {
		t.Errorf("expected override released on shutdown, got %v", pub.Commands)
	}
}

func TestRunLoopNoReleaseWithoutActuation(t *testing.T) {
	samples, readings := fullShot()
	l, pub, _ := newTestLoop(samples, readings)
	clock := fakeClock(loopStart, 3*time.Second)

	if err := runRunLoop(t, l, clock, len(samples), syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(pub.Commands) != 0 {
		t.Errorf("expected no commands, got %v", pub.Commands)
	}
}

func TestRunLoopActuationErrorsDoNotStopLoop(t *testing.T) {
	paddleSamples, readings := fullShot()
	l, pub, _ := newTestLoop(paddleSamples, readings)
	l.actuate = true
	l.controller = &fakeController{err: errors.New("HTTP error: refused")}
	pub.CommandError = errors.New("not connected")
	clock := fakeClock(loopStart, 3*time.Second)

	if err := runRunLoop(t, l, clock, len(paddleSamples), syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if n := len(pub.Events); n != 7 {
		t.Errorf("expected all 7 events despite actuation errors, got %d", n)
	}
}

func TestRunLoopPaddleReadError(t *testing.T) {
	l, pub, _ := newTestLoop(nil, nil)
	reader := gpio.NewFakeReader([]bool{true})
	reader.ReadError = errors.New("gpio fault")
	l.reader = reader
	clock := fakeClock(loopStart, time.Second)

	if err := runRunLoop(t, l, clock, 3, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 0 {
		t.Errorf("expected no events on read errors, got %d", len(pub.Events))
	}
	if got := l.tracker.Snapshot().Paddle.LastError; !strings.Contains(got, "gpio fault") {
		t.Errorf("expected paddle error in tracker, got %q", got)
	}
}

func TestRunLoopTelemetryReadError(t *testing.T) {
	l, pub, script := newTestLoop(repeat(true, 3), nil)
	script.ReadError = errors.New("scale offline")
	clock := fakeClock(loopStart, time.Second)

	if err := runRunLoop(t, l, clock, 3, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 0 || len(pub.States) != 0 {
		t.Errorf("expected ticks skipped, got %d events %d states", len(pub.Events), len(pub.States))
	}
}

func TestRunLoopNoTelemetryYetStartsShot(t *testing.T) {
	l, pub, _ := newTestLoop(repeat(true, 2), nil)
	clock := fakeClock(loopStart, time.Second)

	if err := runRunLoop(t, l, clock, 2, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 1 || pub.Events[0].Type != logic.EventShotStart {
		t.Fatalf("expected only SHOT_START with no telemetry, got %v", eventTypes(pub.Events))
	}
	// Nothing is evaluated until the scale reports, so no zero samples
	// end up in the smoothing window.
	if len(pub.States) != 0 {
		t.Errorf("expected no states without telemetry, got %d", len(pub.States))
	}
	snap := l.tracker.Snapshot()
	if !snap.ShotActive {
		t.Error("expected active shot in tracker")
	}
	if snap.Brew != nil {
		t.Errorf("expected no brew state yet, got %+v", snap.Brew)
	}
}

// lateScale reports no data for the first n reads, then replays readings.
type lateScale struct {
	*telemetry.Script
	missing int
}

func (s *lateScale) Read(now time.Time) (telemetry.Reading, error) {
	if s.missing > 0 {
		s.missing--
		return telemetry.Reading{}, telemetry.ErrNoData
	}
	return s.Script.Read(now)
}

func TestRunLoopFirstReadingStartsWindow(t *testing.T) {
	l, pub, script := newTestLoop(repeat(true, 4), []telemetry.Reading{{Weight: 0.4, Flow: 1.2}})
	l.source = &lateScale{Script: script, missing: 2}
	clock := fakeClock(loopStart, time.Second)

	if err := runRunLoop(t, l, clock, 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.States) != 2 {
		t.Fatalf("expected states only for the 2 ticks with data, got %d", len(pub.States))
	}
	first := pub.States[0]
	if first.AverageFlow != 1.2 {
		t.Errorf("expected average from real samples only (1.2), got %g", first.AverageFlow)
	}
	if first.Sample.Elapsed != 2 {
		t.Errorf("expected elapsed measured from shot start (2s), got %g", first.Sample.Elapsed)
	}
}

func TestRunLoopStaleTelemetry(t *testing.T) {
	l, pub, script := newTestLoop(repeat(true, 3), nil)
	script.ReadError = fmt.Errorf("%w: last scale message 5s ago", telemetry.ErrStale)
	clock := fakeClock(loopStart, time.Second)

	if err := runRunLoop(t, l, clock, 3, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 1 || pub.Events[0].Type != logic.EventShotStart {
		t.Errorf("expected the shot to start on a stale scale, got %v", eventTypes(pub.Events))
	}
	if len(pub.States) != 0 {
		t.Errorf("expected no states from stale readings, got %d", len(pub.States))
	}
}

func TestRunLoopMachineSensors(t *testing.T) {
	readings := []telemetry.Reading{{Weight: 0, Flow: 0, Pressure: 9.1, BoilerTemp: 94, GroupTemp: 93.1}}
	l, _, _ := newTestLoop(repeat(true, 1), readings)
	clock := fakeClock(loopStart, time.Second)

	if err := runRunLoop(t, l, clock, 1, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	m := l.tracker.Snapshot().Machine
	if m.PressureBar != 9.1 || m.BoilerTempC != 94 || m.GroupTempC != 93.1 {
		t.Errorf("unexpected machine info %+v", m)
	}
}

func TestRunLoopMQTTPaddleInfo(t *testing.T) {
	l, _, _ := newTestLoop(nil, nil)
	sub := mqtt.NewFakePublisher()
	feed := mqtt.NewPaddleFeed(sub)
	sub.Deliver(mqtt.TopicPaddleMode, []byte("AUTO"))
	sub.Deliver(mqtt.TopicPaddleRelay, []byte("1"))
	l.reader = feed
	l.paddleSource = config.PaddleMQTT
	clock := fakeClock(loopStart, time.Second)

	if err := runRunLoop(t, l, clock, 1, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	p := l.tracker.Snapshot().Paddle
	if p.Source != config.PaddleMQTT || p.Mode != "AUTO" || p.RelayMain != 1 {
		t.Errorf("unexpected paddle info %+v", p)
	}
}

func TestRunLoopPublishErrorDoesNotStopLoop(t *testing.T) {
	paddleSamples, readings := fullShot()
	l, pub, _ := newTestLoop(paddleSamples, readings)
	pub.PublishError = errors.New("broker down")
	clock := fakeClock(loopStart, 3*time.Second)

	if err := runRunLoop(t, l, clock, len(paddleSamples), syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.SystemEvents) != 1 || pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN after publish errors, got %+v", pub.SystemEvents)
	}
	if l.tracker.Snapshot().Counts.Shots != 1 {
		t.Error("tracker should still see the shot")
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	l, pub, _ := newTestLoop(repeat(false, 5), nil)
	l.heartbeat = 10 * time.Second
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "10.0.0.9")
	clock := fakeClock(loopStart, 3*time.Second)

	if err := runRunLoop(t, l, clock, 5, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.SystemEvents) != 2 {
		t.Fatalf("expected HEARTBEAT and SHUTDOWN, got %d system events", len(pub.SystemEvents))
	}
	hb := pub.SystemEvents[0]
	if hb.Event != "HEARTBEAT" {
		t.Fatalf("expected HEARTBEAT, got %q", hb.Event)
	}
	if !hb.Timestamp.Equal(loopStart.Add(12 * time.Second)) {
		t.Errorf("unexpected heartbeat time %v", hb.Timestamp)
	}
	if !strings.Contains(string(hb.RawPayload), `"event":"HEARTBEAT"`) {
		t.Errorf("expected status snapshot payload, got %s", hb.RawPayload)
	}
	if !strings.Contains(string(hb.RawPayload), "10.0.0.9") {
		t.Error("expected refreshed network info in heartbeat")
	}
}

func TestRunLoopShutdownSignals(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			l, pub, _ := newTestLoop(repeat(false, 1), nil)
			pub.Connected = true
			clock := fakeClock(loopStart, time.Second)

			if err := runRunLoop(t, l, clock, 1, tt.sig); err != nil {
				t.Fatalf("runLoop returned error: %v", err)
			}

			if len(pub.SystemEvents) != 1 {
				t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
			}
			ev := pub.SystemEvents[0]
			if ev.Event != "SHUTDOWN" || ev.Reason != tt.want || !ev.Retained {
				t.Errorf("unexpected shutdown event %+v", ev)
			}
			if !strings.Contains(string(ev.RawPayload), `"reason":"`+tt.want+`"`) {
				t.Errorf("expected reason in payload, got %s", ev.RawPayload)
			}
			if !strings.Contains(string(ev.RawPayload), `"connected":true`) {
				t.Errorf("expected MQTT connection in payload, got %s", ev.RawPayload)
			}
		})
	}
}
