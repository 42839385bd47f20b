// Package api exposes the bot's operational HTTP endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itamhq/teambot/api/middleware"
	"github.com/itamhq/teambot/pkg/logger"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHandler returns the ops handler: GET /healthz and GET /metrics.
func NewHandler(logg *logger.Logger, redisClient Pinger, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Get("/healthz", healthzHandler(logg, redisClient))
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func healthzHandler(logg *logger.Logger, redisClient Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		status := http.StatusOK
		payload := map[string]string{"status": "ok"}
		if redisClient != nil {
			if err := redisClient.Ping(ctx); err != nil {
				logg.Error(ctx, "redis ping failed", err)
				status = http.StatusServiceUnavailable
				payload = map[string]string{"status": "degraded", "redis": "unreachable"}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logg.Error(ctx, "writing health response failed", err)
		}
	}
}
