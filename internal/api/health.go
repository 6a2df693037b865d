package api

import (
	"encoding/json"
	"net/http"
	"time"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	InFlight      int               `json:"in_flight"`
	Checks        map[string]string `json:"checks"`
}

// HealthSources are the optional dependencies the health check reports on.
// Nil fields are reported as not_configured.
type HealthSources struct {
	// Codec returns nil when the audio tools are usable.
	Codec func() error
	// MQTT reports whether the event publisher is connected.
	MQTT interface{ IsConnected() bool }
	// Watcher returns the inbox watcher status ("watching", "stopped").
	Watcher func() string
	// InFlight returns the number of pipeline runs executing.
	InFlight func() int
}

type HealthHandler struct {
	src       HealthSources
	version   string
	startTime time.Time
}

func NewHealthHandler(src HealthSources, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		src:       src,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Audio tools check
	if h.src.Codec != nil {
		if err := h.src.Codec(); err != nil {
			checks["ffmpeg"] = "error"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["ffmpeg"] = "ok"
		}
	} else {
		checks["ffmpeg"] = "not_configured"
	}

	// MQTT check
	if h.src.MQTT != nil {
		if h.src.MQTT.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	// Inbox watcher check
	if h.src.Watcher != nil {
		checks["inbox_watcher"] = h.src.Watcher()
	} else {
		checks["inbox_watcher"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}
	if h.src.InFlight != nil {
		resp.InFlight = h.src.InFlight()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(resp)
}
