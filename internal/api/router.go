package api

import (
	"net/http"

	"admission-control/internal/logging"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all REST API routes. Every route, the admin surface
// included, passes through the admission middleware; admin endpoints are
// themselves rate limited by the admin-endpoints rule.
func (h *RESTHandler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Apply middleware
	router.Use(logging.CorrelationIDMiddleware(h.logger))
	router.Use(logging.LoggingMiddleware(h.logger))
	router.Use(h.engine.Middleware)
	router.Use(h.CORSMiddleware)

	// API version 1
	v1 := router.PathPrefix("/api/v1").Subrouter()

	// Administrative surface
	admin := v1.PathPrefix("/admin").Subrouter()

	admin.HandleFunc("/blacklist", h.AddToBlacklist).Methods(http.MethodPost)
	admin.HandleFunc("/blacklist/{ip}", h.RemoveFromBlacklist).Methods(http.MethodDelete)
	admin.HandleFunc("/whitelist", h.AddToWhitelist).Methods(http.MethodPost)
	admin.HandleFunc("/whitelist/{ip}", h.RemoveFromWhitelist).Methods(http.MethodDelete)

	admin.HandleFunc("/access-logs", h.GetAccessLogs).Methods(http.MethodGet)
	admin.HandleFunc("/suspicious-ips", h.GetSuspiciousIPs).Methods(http.MethodGet)
	admin.HandleFunc("/suspicious-ips/cleanup", h.CleanupSuspiciousIPs).Methods(http.MethodPost)

	admin.HandleFunc("/ratelimit/status", h.GetRateLimitStatus).Methods(http.MethodGet)
	admin.HandleFunc("/ratelimit/stats", h.GetRateLimitStats).Methods(http.MethodGet)
	admin.HandleFunc("/ratelimit/records/{key}", h.ResetLimit).Methods(http.MethodDelete)

	// Health and stats
	v1.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	v1.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)

	// Handle OPTIONS for all routes (CORS preflight)
	v1.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Root endpoints
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/", h.RootHandler).Methods(http.MethodGet)

	return router
}

// RootHandler handles requests to the root path
func (h *RESTHandler) RootHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"service":     "Admission Control",
		"version":     "1.0.0",
		"api_version": "v1",
		"endpoints": map[string]interface{}{
			"health": "/health or /api/v1/health",
			"stats":  "/api/v1/stats",
			"admin": map[string]string{
				"blacklist_add":       "POST /api/v1/admin/blacklist",
				"blacklist_remove":    "DELETE /api/v1/admin/blacklist/{ip}",
				"whitelist_add":       "POST /api/v1/admin/whitelist",
				"whitelist_remove":    "DELETE /api/v1/admin/whitelist/{ip}",
				"access_logs":         "GET /api/v1/admin/access-logs?limit={limit}",
				"suspicious_ips":      "GET /api/v1/admin/suspicious-ips",
				"suspicious_cleanup":  "POST /api/v1/admin/suspicious-ips/cleanup",
				"ratelimit_status":    "GET /api/v1/admin/ratelimit/status",
				"ratelimit_stats":     "GET /api/v1/admin/ratelimit/stats",
				"ratelimit_reset":     "DELETE /api/v1/admin/ratelimit/records/{key}",
			},
		},
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}
