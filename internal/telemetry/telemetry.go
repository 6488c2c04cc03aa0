// Package telemetry provides scale readings (weight and flow) for the monitor loop.
package telemetry

import (
	"errors"
	"time"
)

// Reading is one scale measurement, plus whatever machine sensors the
// source knows about. Zero means not reported.
type Reading struct {
	Weight     float64 // grams
	Flow       float64 // grams per second
	Pressure   float64 // bar
	BoilerTemp float64 // coffee boiler, °C
	GroupTemp  float64 // °C
}

// Source produces scale readings for the shot in progress.
type Source interface {
	// Reset is called when a shot starts. Sources tare here.
	Reset(start time.Time)

	// Read returns the current reading.
	Read(now time.Time) (Reading, error)
}

var (
	// ErrNoData is returned by sources that have not received a reading yet.
	ErrNoData = errors.New("telemetry: no data")

	// ErrStale is returned when the last reading is too old to trust.
	ErrStale = errors.New("telemetry: stale reading")
)
