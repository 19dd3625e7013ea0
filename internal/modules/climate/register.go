package climate

import (
	"log/slog"
	"net/http"

	"app-clima/internal/modules/climate/controller"
	"app-clima/internal/modules/climate/service"
	"app-clima/internal/modules/climate/session"
)

// RegisterFeature mounts the climate form, download and API routes.
func RegisterFeature(mux *http.ServeMux, fetcher service.Fetcher, publisher service.Publisher, sessions *session.Manager, logger *slog.Logger) {
	climateService := service.NewService(fetcher, publisher, logger)
	climateController := controller.NewClimateController(climateService, sessions)
	climateController.RegisterRoutes(mux)
}
