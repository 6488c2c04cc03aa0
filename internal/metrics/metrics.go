// Package metrics exports brew-monitor state to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sweeney/brew-monitor/internal/logic"
)

var (
	shotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brew_shots_total",
		Help: "Total number of shots started",
	})

	autoStopsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brew_auto_stops_total",
		Help: "Total number of auto-stop recommendations",
	})

	phaseTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brew_phase_transitions_total",
		Help: "Phase transitions by from and to phase",
	}, []string{"from", "to"})

	shotsEndedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brew_shots_ended_total",
		Help: "Finished shots by the phase they ended in",
	}, []string{"phase"})

	readErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brew_read_errors_total",
		Help: "Failed reads by input (paddle or telemetry)",
	}, []string{"input"})

	shotDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "brew_shot_duration_seconds",
		Help:    "Elapsed time of finished shots",
		Buckets: []float64{5, 10, 15, 20, 25, 30, 35, 40, 50, 60},
	})

	shotYield = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "brew_shot_yield_grams",
		Help:    "Beverage weight of finished shots",
		Buckets: []float64{10, 20, 25, 30, 35, 40, 45, 50, 60},
	})

	shotActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brew_shot_active",
		Help: "1 while a shot is running",
	})

	phaseIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brew_phase",
		Help: "Current phase index (0 IDLE .. 4 COMPLETED)",
	})

	weightGrams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brew_weight_grams",
		Help: "Current beverage weight",
	})

	flowRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "brew_flow_grams_per_second",
		Help: "Current flow rate, raw and smoothed",
	}, []string{"kind"})

	brewRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brew_ratio",
		Help: "Current beverage weight over dose",
	})

	progress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brew_progress_ratio",
		Help: "Current weight over target weight, capped at 1",
	})

	activeWarnings = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "brew_warning_active",
		Help: "1 while the warning is raised on the current state",
	}, []string{"kind"})

	warningShots = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "brew_warning_shots",
		Help: "Shots that raised each warning kind since start",
	}, []string{"kind"})

	pressure = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brew_pressure_bar",
		Help: "Last reported pump pressure",
	})

	temperature = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "brew_temperature_celsius",
		Help: "Last reported machine temperatures by sensor (boiler, group)",
	}, []string{"sensor"})

	mqttConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "brew_mqtt_connected",
		Help: "1 while the MQTT broker connection is up",
	})
)

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ObserveState updates the live gauges from one evaluated state.
func ObserveState(s logic.State) {
	phaseIndex.Set(float64(s.Phase.Index()))
	weightGrams.Set(s.Sample.Weight)
	flowRate.WithLabelValues("raw").Set(s.Sample.Flow)
	flowRate.WithLabelValues("average").Set(s.AverageFlow)
	brewRatio.Set(s.Ratio)
	progress.Set(s.Progress)
	for _, k := range logic.WarningKinds {
		activeWarnings.WithLabelValues(string(k)).Set(boolValue(s.HasWarning(k)))
	}
}

// RecordEvent counts a shot event.
func RecordEvent(e logic.Event) {
	switch e.Type {
	case logic.EventShotStart:
		shotsTotal.Inc()
		shotActive.Set(1)
	case logic.EventPhase:
		phaseTransitionsTotal.WithLabelValues(string(e.From), string(e.State.Phase)).Inc()
	case logic.EventAutoStop:
		autoStopsTotal.Inc()
	case logic.EventShotEnd:
		shotActive.Set(0)
		shotsEndedTotal.WithLabelValues(string(e.State.Phase)).Inc()
		shotDuration.Observe(e.State.Sample.Elapsed)
		shotYield.Observe(e.State.Sample.Weight)
	}
}

// SetCounts publishes the per-kind warning shot counters.
func SetCounts(c logic.ShotCounts) {
	for _, k := range logic.WarningKinds {
		warningShots.WithLabelValues(string(k)).Set(float64(c.Warnings[k]))
	}
}

// RecordReadError counts a failed paddle or telemetry read.
func RecordReadError(input string) {
	readErrorsTotal.WithLabelValues(input).Inc()
}

// ObserveMachine records pressure and temperatures. Zero values are
// unreported and leave the gauges alone.
func ObserveMachine(pressureBar, boilerC, groupC float64) {
	if pressureBar > 0 {
		pressure.Set(pressureBar)
	}
	if boilerC > 0 {
		temperature.WithLabelValues("boiler").Set(boilerC)
	}
	if groupC > 0 {
		temperature.WithLabelValues("group").Set(groupC)
	}
}

// SetMQTTConnected tracks the broker connection.
func SetMQTTConnected(connected bool) {
	mqttConnected.Set(boolValue(connected))
}
