package sensors

import "fmt"

// NamedReading pairs a reading with its metric name.
type NamedReading struct {
	Name    string
	Reading Reading
}

// Registry owns the sensors and keeps registration order for display.
type Registry struct {
	order   []string
	sensors map[string]*Sensor
	opts    []SensorOption
}

// NewRegistry constructs an empty registry; opts apply to every sensor added.
func NewRegistry(opts ...SensorOption) *Registry {
	return &Registry{sensors: make(map[string]*Sensor), opts: opts}
}

// Add registers a sensor. A name already present is replaced and keeps its position.
func (r *Registry) Add(name string, config Config) error {
	if name == "" {
		return fmt.Errorf("%w: empty sensor name", ErrInvalidConfig)
	}
	if IsReservedName(name) {
		return fmt.Errorf("%w: sensor name %q is a reserved record key", ErrInvalidConfig, name)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("sensor %s: %w", name, err)
	}
	if _, exists := r.sensors[name]; !exists {
		r.order = append(r.order, name)
	}
	r.sensors[name] = NewSensor(name, config, r.opts...)
	return nil
}

// Get returns a sensor by name.
func (r *Registry) Get(name string) (*Sensor, bool) {
	sensor, ok := r.sensors[name]
	return sensor, ok
}

// Len returns the number of sensors.
func (r *Registry) Len() int { return len(r.order) }

// Names returns sensor names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// ReadAll reads every sensor in registration order.
func (r *Registry) ReadAll() []NamedReading {
	readings := make([]NamedReading, 0, len(r.order))
	for _, name := range r.order {
		readings = append(readings, NamedReading{Name: name, Reading: r.sensors[name].Read()})
	}
	return readings
}

// SetAllAutomatic clears every override.
func (r *Registry) SetAllAutomatic() {
	for _, sensor := range r.sensors {
		sensor.SetAutomaticMode()
	}
}

// HasAnyManual reports whether at least one sensor is overridden.
func (r *Registry) HasAnyManual() bool {
	for _, sensor := range r.sensors {
		if sensor.IsManual() {
			return true
		}
	}
	return false
}

// ManualNames returns the overridden sensors in registration order.
func (r *Registry) ManualNames() []string {
	var names []string
	for _, name := range r.order {
		if r.sensors[name].IsManual() {
			names = append(names, name)
		}
	}
	return names
}
