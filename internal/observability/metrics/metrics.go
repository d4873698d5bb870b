package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "agro_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ticksTotal *prometheus.CounterVec

	publishTotal   *prometheus.CounterVec
	publishLatency *prometheus.HistogramVec

	commandsTotal  *prometheus.CounterVec
	overridesTotal *prometheus.CounterVec

	manualSensors prometheus.Gauge
	panelState    *prometheus.GaugeVec
	sensorValue   *prometheus.GaugeVec
)

// Init registers simulator metrics. When db is non-nil, connection pool gauges are
// registered as well.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ticksTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ticks_total",
				Help: "Total simulation ticks by result",
			},
			[]string{"result"},
		)

		publishTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "publish_total",
				Help: "Total snapshot publishes by result",
			},
			[]string{"result"},
		)
		publishLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "publish_latency_seconds",
				Help:    "Snapshot publish latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		commandsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_total",
				Help: "Total force commands by effect",
			},
			[]string{"effect"},
		)
		overridesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "overrides_total",
				Help: "Total manual overrides by source",
			},
			[]string{"source"},
		)

		manualSensors = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "manual_sensors",
				Help: "Number of sensors in manual mode",
			},
		)
		panelState = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "panel_state",
				Help: "Computed panel color, 1 for the active color",
			},
			[]string{"panel"},
		)
		sensorValue = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "sensor_value",
				Help: "Last reading per sensor",
			},
			[]string{"sensor", "unit"},
		)

		prometheus.MustRegister(
			ticksTotal,
			publishTotal,
			publishLatency,
			commandsTotal,
			overridesTotal,
			manualSensors,
			panelState,
			sensorValue,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	openConns := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "db_open_connections",
			Help: "Open database connections",
		},
		func() float64 { return float64(db.Stats().OpenConnections) },
	)
	inUse := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "db_in_use_connections",
			Help: "Database connections in use",
		},
		func() float64 { return float64(db.Stats().InUse) },
	)
	for _, c := range []prometheus.Collector{openConns, inUse} {
		if err := prometheus.Register(c); err != nil && logger != nil {
			logger.Printf("metrics: register db gauge: %v", err)
		}
	}
}

// IncTick increments the tick counter.
func IncTick(result string) {
	if result == "" {
		result = resultSuccess
	}
	if ticksTotal != nil {
		ticksTotal.WithLabelValues(result).Inc()
	}
}

// ObservePublish records publish duration and result.
func ObservePublish(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if publishTotal != nil {
		publishTotal.WithLabelValues(result).Inc()
	}
	if publishLatency != nil {
		publishLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncCommand increments the command counter for an effect.
func IncCommand(effect string) {
	if effect == "" {
		effect = "unknown"
	}
	if commandsTotal != nil {
		commandsTotal.WithLabelValues(effect).Inc()
	}
}

// IncOverride increments the override counter for a source.
func IncOverride(source string) {
	if source == "" {
		source = "unknown"
	}
	if overridesTotal != nil {
		overridesTotal.WithLabelValues(source).Inc()
	}
}

// SetManualSensors sets the manual sensor gauge.
func SetManualSensors(count int) {
	if manualSensors != nil {
		manualSensors.Set(float64(count))
	}
}

// SetPanel marks panel as the active color.
func SetPanel(panel string, all []string) {
	if panelState == nil {
		return
	}
	for _, p := range all {
		value := 0.0
		if p == panel {
			value = 1
		}
		panelState.WithLabelValues(p).Set(value)
	}
}

// SetSensorValue records the last reading of a sensor.
func SetSensorValue(sensor, unit string, value float64) {
	if sensorValue != nil {
		sensorValue.WithLabelValues(sensor, unit).Set(value)
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
