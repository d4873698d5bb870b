// Package http serves the simulator status and override API.
package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agro-simulator/internal/auth"
	"agro-simulator/internal/observability/metrics"
	"agro-simulator/internal/sensors/application"
	sensors "agro-simulator/internal/sensors/domain"
)

// Service is the part of the simulator exposed over HTTP.
type Service interface {
	Ready() bool
	LastSnapshot() (sensors.Snapshot, bool)
	Statuses() ([]application.SensorStatus, error)
	SetOverride(name string, value float64) (sensors.Reading, error)
	ClearOverrides()
	ManualSensors() []string
}

// Config wires the HTTP routes.
type Config struct {
	Service Service
	Broker  *SSEBroker
	// JWTSecret enables the override endpoints and protects /api/ when set.
	JWTSecret []byte
	Logger    *log.Logger
}

// Handler provides the simulator HTTP endpoints.
type Handler struct {
	service Service
	logger  *log.Logger
	mutable bool
}

type overrideRequest struct {
	Sensor string   `json:"sensor"`
	Valor  *float64 `json:"valor"`
}

type overridesResponse struct {
	Manual []string `json:"manual"`
}

// NewRouter builds the full route tree.
func NewRouter(cfg Config) (http.Handler, error) {
	if cfg.Service == nil {
		return nil, errors.New("sensors handler: nil service")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	h := &Handler{service: cfg.Service, logger: logger, mutable: len(cfg.JWTSecret) > 0}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/api/v1/snapshots/stream", NewStreamHandler(cfg.Broker))
	mux.Handle("/api/v1/", h)

	if !h.mutable {
		logger.Printf("http: AUTH_JWT_SECRET not set, override endpoints disabled")
		return mux, nil
	}
	mw := auth.NewMiddleware(cfg.JWTSecret, auth.NewPolicy("/api/", "/healthz", "/metrics"), logger)
	return mw.Wrap(mux), nil
}

// ServeHTTP handles /api/v1 routes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/snapshot":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSnapshot(w)
	case "/api/v1/sensors":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSensors(w)
	case "/api/v1/overrides":
		if !h.mutable {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodPost:
			h.handleSetOverride(w, r)
		case http.MethodDelete:
			h.handleClearOverrides(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !h.service.Ready() {
		http.Error(w, "board not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleSnapshot(w http.ResponseWriter) {
	snapshot, ok := h.service.LastSnapshot()
	if !ok {
		http.Error(w, "no snapshot yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleSensors(w http.ResponseWriter) {
	statuses, err := h.service.Statuses()
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (h *Handler) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Sensor == "" || req.Valor == nil {
		http.Error(w, "sensor and valor are required", http.StatusBadRequest)
		return
	}
	reading, err := h.service.SetOverride(req.Sensor, *req.Valor)
	if err != nil {
		respondError(w, err)
		return
	}
	metrics.IncOverride("http")
	h.logger.Printf("http: override sensor=%s valor=%v subject=%s", req.Sensor, *req.Valor, auth.SubjectFromContext(r.Context()))
	writeJSON(w, http.StatusOK, application.SensorStatus{Name: req.Sensor, Reading: reading, Mode: sensors.ModeManual})
}

func (h *Handler) handleClearOverrides(w http.ResponseWriter, r *http.Request) {
	h.service.ClearOverrides()
	h.logger.Printf("http: overrides cleared subject=%s", auth.SubjectFromContext(r.Context()))
	writeJSON(w, http.StatusOK, overridesResponse{Manual: []string{}})
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sensors.ErrUnknownSensor):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, sensors.ErrInvalidOverrideValue):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, sensors.ErrBoardNotReady):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
