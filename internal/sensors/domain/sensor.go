// Package sensors holds the simulated sensor model: value generation and overrides,
// threshold classification, panel consolidation and force-command reconciliation.
//
// Types in this package are not safe for concurrent use; callers serialize access.
package sensors

import (
	"math"
	"math/rand"
	"time"
)

// Mode is the value source of a sensor.
type Mode string

const (
	ModeAutomatic Mode = "AUTO"
	ModeManual    Mode = "MANUAL"
)

// Reading is one classified value.
type Reading struct {
	Value  float64
	Status Status
	At     time.Time
	Unit   string
}

// SensorOption customizes a sensor.
type SensorOption func(*Sensor)

// WithRandom sets the source of uniform values in [0, 1).
func WithRandom(random func() float64) SensorOption {
	return func(s *Sensor) {
		if random != nil {
			s.random = random
		}
	}
}

// WithClock sets the time source used to stamp readings.
func WithClock(now func() time.Time) SensorOption {
	return func(s *Sensor) {
		if now != nil {
			s.now = now
		}
	}
}

// Sensor produces readings for one metric, either generated or operator-supplied.
type Sensor struct {
	name        string
	config      Config
	mode        Mode
	manualValue float64
	random      func() float64
	now         func() time.Time
}

// NewSensor constructs a sensor in automatic mode with its manual value at the midpoint
// of the generation bounds.
func NewSensor(name string, config Config, opts ...SensorOption) *Sensor {
	s := &Sensor{
		name:        name,
		config:      config,
		mode:        ModeAutomatic,
		manualValue: config.Midpoint(),
		random:      rand.Float64,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the metric name.
func (s *Sensor) Name() string { return s.name }

// Config returns the sensor configuration.
func (s *Sensor) Config() Config { return s.config }

// Mode returns the current value source.
func (s *Sensor) Mode() Mode { return s.mode }

// IsManual reports whether an override is active.
func (s *Sensor) IsManual() bool { return s.mode == ModeManual }

// ManualValue returns the last operator-supplied value.
func (s *Sensor) ManualValue() float64 { return s.manualValue }

// SetManualValue fixes the sensor at value. Out-of-range values are accepted.
func (s *Sensor) SetManualValue(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return ErrInvalidOverrideValue
	}
	s.mode = ModeManual
	s.manualValue = value
	return nil
}

// SetAutomaticMode resumes generation; the stored manual value is kept.
func (s *Sensor) SetAutomaticMode() {
	s.mode = ModeAutomatic
}

// Read returns the current value with its status. Manual values are returned as set;
// generated values are rounded to the unit precision.
func (s *Sensor) Read() Reading {
	value := s.manualValue
	if s.mode != ModeManual {
		value = s.generate()
	}
	return Reading{
		Value:  value,
		Status: s.config.Classify(value),
		At:     s.now(),
		Unit:   s.config.Unit,
	}
}

func (s *Sensor) generate() float64 {
	span := s.config.Max - s.config.Min
	value := s.config.Min + s.random()*span
	return roundTo(value, s.config.Precision())
}
