package sensors

import (
	"fmt"
	"math"
)

// UnitPressure is the unit whose generated values are published without decimals.
const UnitPressure = "hPa"

// Config describes one metric: generation bounds, optional healthy and warning bands
// and the display unit. A nil band edge means the band is not configured.
type Config struct {
	Min       float64
	Max       float64
	OkMin     *float64
	OkMax     *float64
	AlertaMin *float64
	AlertaMax *float64
	Unit      string
}

// Float returns a pointer to v, for building optional band edges.
func Float(v float64) *float64 {
	return &v
}

// Validate checks min <= max and alertaMin <= okMin <= okMax <= alertaMax for the
// edges that are present.
func (c Config) Validate() error {
	if math.IsNaN(c.Min) || math.IsNaN(c.Max) || math.IsInf(c.Min, 0) || math.IsInf(c.Max, 0) {
		return fmt.Errorf("%w: non-finite bounds", ErrInvalidConfig)
	}
	if c.Min > c.Max {
		return fmt.Errorf("%w: min %.2f > max %.2f", ErrInvalidConfig, c.Min, c.Max)
	}
	if (c.OkMin == nil) != (c.OkMax == nil) {
		return fmt.Errorf("%w: ok band needs both edges", ErrInvalidConfig)
	}
	if (c.AlertaMin == nil) != (c.AlertaMax == nil) {
		return fmt.Errorf("%w: alerta band needs both edges", ErrInvalidConfig)
	}
	if c.OkMin != nil && *c.OkMin > *c.OkMax {
		return fmt.Errorf("%w: okMin %.2f > okMax %.2f", ErrInvalidConfig, *c.OkMin, *c.OkMax)
	}
	if c.AlertaMin != nil && c.OkMin != nil {
		if *c.AlertaMin > *c.OkMin || *c.OkMax > *c.AlertaMax {
			return fmt.Errorf("%w: ok band must lie inside alerta band", ErrInvalidConfig)
		}
	}
	return nil
}

// HasHealthyBand reports whether both okMin and okMax are configured.
func (c Config) HasHealthyBand() bool {
	return c.OkMin != nil && c.OkMax != nil
}

// HasWarningBand reports whether both alertaMin and alertaMax are configured.
func (c Config) HasWarningBand() bool {
	return c.AlertaMin != nil && c.AlertaMax != nil
}

// Classify maps a value to its status. Band edges are inclusive: a value on okMin/okMax
// is OK and a value on alertaMin/alertaMax is ALERTA.
func (c Config) Classify(value float64) Status {
	if !c.HasHealthyBand() {
		return StatusOK
	}
	if value >= *c.OkMin && value <= *c.OkMax {
		return StatusOK
	}
	if c.HasWarningBand() && (value < *c.AlertaMin || value > *c.AlertaMax) {
		return StatusCritico
	}
	return StatusAlerta
}

// Precision returns the number of decimals kept for generated values.
func (c Config) Precision() int {
	if c.Unit == UnitPressure {
		return 0
	}
	return 1
}

// Midpoint returns the center of the generation bounds.
func (c Config) Midpoint() float64 {
	return (c.Min + c.Max) / 2
}

func roundTo(value float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(value*scale) / scale
}
