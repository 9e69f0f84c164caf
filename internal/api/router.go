package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter builds and returns the chi router with all routes configured.
// The health endpoint is unauthenticated; all data routes require bearer
// auth. Rate limiting is applied globally: 60 requests per minute per IP.
func NewRouter(handlers *Handlers, token string, db dbPinger, redisClient redisPinger, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/api/v1/health", HealthHandlerFunc(db, redisClient, log))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(token))

		r.Post("/locations/", handlers.CreateLocation)
		r.Get("/locations/", handlers.ListLocations)
		r.Delete("/locations/{location_id}", handlers.DeleteLocation)

		r.Post("/weather_infos/", handlers.IngestInfos)
		r.Get("/weather_infos/", handlers.ListInfos)
		r.Get("/weather_infos/by_loc_date/{location_id}", handlers.InfoByLocDate)
		r.Get("/weather_infos/by_loc_date_range/{location_id}", handlers.InfosByLocDateRange)
		r.Get("/weather_infos/{info_id}", handlers.GetInfo)
		r.Put("/weather_infos/{info_id}", handlers.UpdateInfo)
		r.Delete("/weather_infos/{info_id}", handlers.DeleteInfo)

		r.Get("/export/json", handlers.ExportJSON)
		r.Get("/videos/{location_id}", handlers.LocationVideos)
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
