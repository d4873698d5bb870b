package application

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sensors "agro-simulator/internal/sensors/domain"
)

// DefaultInterval is the tick interval when none is configured.
const DefaultInterval = 5 * time.Second

// SensorSpec is one sensor entry of the YAML configuration.
type SensorSpec struct {
	Name      string   `yaml:"name"`
	Min       float64  `yaml:"min"`
	Max       float64  `yaml:"max"`
	OkMin     *float64 `yaml:"ok_min"`
	OkMax     *float64 `yaml:"ok_max"`
	AlertaMin *float64 `yaml:"alerta_min"`
	AlertaMax *float64 `yaml:"alerta_max"`
	Unit      string   `yaml:"unidade"`
}

// Config defines the simulated sensor set.
type Config struct {
	UpdateInterval string       `yaml:"update_interval"`
	Sensors        []SensorSpec `yaml:"sensors"`
}

// DefaultConfig returns the cotton-field sensor set.
func DefaultConfig() Config {
	return Config{
		UpdateInterval: DefaultInterval.String(),
		Sensors: []SensorSpec{
			sensorSpec("temperatura", 15, 42, 20, 30, 18, 35, "°C"),
			sensorSpec("luminosidade", 100, 1000, 400, 800, 300, 900, "lux"),
			sensorSpec("umidade", 30, 95, 50, 70, 40, 85, "%"),
			sensorSpec("umidade_solo", 20, 100, 60, 80, 40, 90, "%"),
			sensorSpec("ph", 4.0, 9.0, 5.8, 8.0, 5.0, 8.5, ""),
			sensorSpec("pressao", 950, 1050, 1000, 1025, 980, 1040, sensors.UnitPressure),
		},
	}
}

func sensorSpec(name string, lo, hi, okMin, okMax, alertaMin, alertaMax float64, unit string) SensorSpec {
	return SensorSpec{
		Name:      name,
		Min:       lo,
		Max:       hi,
		OkMin:     sensors.Float(okMin),
		OkMax:     sensors.Float(okMax),
		AlertaMin: sensors.Float(alertaMin),
		AlertaMax: sensors.Float(alertaMax),
		Unit:      unit,
	}
}

// LoadConfig reads the sensor set from path, or returns the defaults when path is empty.
// A file without sensors keeps the default set.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("sensors config %s: %w", path, err)
	}
	if file.UpdateInterval != "" {
		cfg.UpdateInterval = file.UpdateInterval
	}
	if len(file.Sensors) > 0 {
		cfg.Sensors = file.Sensors
	}
	if _, err := cfg.Interval(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Interval parses the configured tick interval.
func (c Config) Interval() (time.Duration, error) {
	if c.UpdateInterval == "" {
		return DefaultInterval, nil
	}
	return ParseInterval(c.UpdateInterval)
}

// ParseInterval accepts a Go duration ("5s") or an integer number of milliseconds.
func ParseInterval(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		if ms <= 0 {
			return 0, errors.New("update interval must be positive")
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid update interval %q: %w", value, err)
	}
	if d <= 0 {
		return 0, errors.New("update interval must be positive")
	}
	return d, nil
}

// Registry builds a registry holding every configured sensor.
func (c Config) Registry(opts ...sensors.SensorOption) (*sensors.Registry, error) {
	registry := sensors.NewRegistry(opts...)
	for _, s := range c.Sensors {
		cfg := sensors.Config{
			Min:       s.Min,
			Max:       s.Max,
			OkMin:     s.OkMin,
			OkMax:     s.OkMax,
			AlertaMin: s.AlertaMin,
			AlertaMax: s.AlertaMax,
			Unit:      s.Unit,
		}
		if err := registry.Add(strings.TrimSpace(s.Name), cfg); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
