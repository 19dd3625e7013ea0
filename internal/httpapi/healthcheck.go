package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"app-clima/internal/utils"
)

// Pinger is a session store that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BrokerStatus reports the acquisition event publisher state.
type BrokerStatus interface {
	State() string
}

// Health describes what /healthz inspects. Store is nil for the memory store.
type Health struct {
	SessionStore string
	Store        Pinger
	Broker       BrokerStatus
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	health Health
}

func NewHealthchecker(health Health) healthchecker {
	return &healthcheckerImpl{health: health}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.health.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Store.Ping(ctx); err != nil {
			slog.Error("failed to check session store connectivity", "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to check session store connectivity")
			return
		}
	}

	mqttState := "disabled"
	if h.health.Broker != nil {
		mqttState = h.health.Broker.State()
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"status":        "ok",
		"session_store": h.health.SessionStore,
		"mqtt":          mqttState,
	})
}

func registerHealthcheck(mux *http.ServeMux, health Health) {
	healthchecker := NewHealthchecker(health)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
