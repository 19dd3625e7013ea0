package controller

import (
	"context"
	"net/http"
	"time"

	"app-clima/internal/modules/climate/power"
	"app-clima/internal/modules/climate/session"
	"app-clima/internal/modules/climate/types"
)

type ClimateController interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Acquirer runs one acquisition. Implemented by service.Service.
type Acquirer interface {
	Acquire(ctx context.Context, q power.Query) (types.Table, error)
}

type climateControllerImpl struct {
	service  Acquirer
	sessions *session.Manager
	now      func() time.Time
}

func NewClimateController(service Acquirer, sessions *session.Manager) ClimateController {
	return &climateControllerImpl{service: service, sessions: sessions, now: time.Now}
}

func (c *climateControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", c.handleIndex)
	mux.HandleFunc("POST /fetch", c.handleFetch)
	mux.HandleFunc("GET /download", c.handleDownload)
	mux.HandleFunc("POST /location", c.handleLocation)
	mux.HandleFunc("GET /api/v1/climate", c.handleClimate)
}
