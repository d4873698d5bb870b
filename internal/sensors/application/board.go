package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	sensors "agro-simulator/internal/sensors/domain"
)

// Board is the source of sensor readings.
type Board interface {
	Initialize(ctx context.Context) error
	Ready() bool
	ReadAll() ([]sensors.NamedReading, error)
	SetSensorValue(name string, value float64) (sensors.Reading, error)
	SetAutomatic()
	HasManual() bool
	ManualSensors() []string
	SensorNames() []string
	Mode(name string) (sensors.Mode, bool)
}

// VirtualBoard is a Board backed by simulated sensors.
type VirtualBoard struct {
	registry *sensors.Registry
	ready    bool
	logger   *log.Logger
}

// NewVirtualBoard constructs a virtual board over a populated registry.
func NewVirtualBoard(registry *sensors.Registry, logger *log.Logger) (*VirtualBoard, error) {
	if registry == nil {
		return nil, errors.New("application: nil registry")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &VirtualBoard{registry: registry, logger: logger}, nil
}

// Initialize marks the board ready.
func (b *VirtualBoard) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.ready = true
	b.logger.Printf("board: virtual board ready sensors=%s", strings.Join(b.registry.Names(), ","))
	return nil
}

// Ready reports whether Initialize has completed.
func (b *VirtualBoard) Ready() bool { return b.ready }

// ReadAll reads every sensor in registration order.
func (b *VirtualBoard) ReadAll() ([]sensors.NamedReading, error) {
	if !b.ready {
		return nil, sensors.ErrBoardNotReady
	}
	return b.registry.ReadAll(), nil
}

// SetSensorValue overrides one sensor and returns the reading taken right after.
func (b *VirtualBoard) SetSensorValue(name string, value float64) (sensors.Reading, error) {
	if !b.ready {
		return sensors.Reading{}, sensors.ErrBoardNotReady
	}
	sensor, ok := b.registry.Get(name)
	if !ok {
		return sensors.Reading{}, fmt.Errorf("%w: %s", sensors.ErrUnknownSensor, name)
	}
	if err := sensor.SetManualValue(value); err != nil {
		return sensors.Reading{}, err
	}
	return sensor.Read(), nil
}

// SetAutomatic clears every override.
func (b *VirtualBoard) SetAutomatic() { b.registry.SetAllAutomatic() }

// HasManual reports whether any sensor is overridden.
func (b *VirtualBoard) HasManual() bool { return b.registry.HasAnyManual() }

// ManualSensors lists overridden sensors.
func (b *VirtualBoard) ManualSensors() []string { return b.registry.ManualNames() }

// SensorNames lists sensors in registration order.
func (b *VirtualBoard) SensorNames() []string { return b.registry.Names() }

// Mode returns the value source of a sensor.
func (b *VirtualBoard) Mode(name string) (sensors.Mode, bool) {
	sensor, ok := b.registry.Get(name)
	if !ok {
		return "", false
	}
	return sensor.Mode(), true
}
