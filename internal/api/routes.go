package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures the read-only ops surface
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check and Prometheus metrics
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Engine state routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/positions", handler.GetOpenPositions).Methods("GET")
	api.HandleFunc("/performance", handler.GetPerformance).Methods("GET")
	api.HandleFunc("/cycles/last", handler.GetLastCycles).Methods("GET")

	return r
}
