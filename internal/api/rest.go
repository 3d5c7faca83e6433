package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"admission-control/internal/access"
	"admission-control/internal/admission"
	"admission-control/internal/logging"
	"admission-control/internal/ratelimit"
	"admission-control/internal/reputation"

	"github.com/gorilla/mux"
)

// RESTHandler handles the administrative HTTP API
type RESTHandler struct {
	engine *admission.Engine
	logger *logging.Logger
}

// NewRESTHandler creates a new admin API handler
func NewRESTHandler(engine *admission.Engine, logger *logging.Logger) *RESTHandler {
	return &RESTHandler{
		engine: engine,
		logger: logger,
	}
}

// Request/Response types for JSON handling

// ListEntryRequest adds an IP to the blacklist or whitelist
type ListEntryRequest struct {
	IP string `json:"ip"`
}

// ListEntryResponse reports the outcome of a list mutation
type ListEntryResponse struct {
	Success bool   `json:"success"`
	IP      string `json:"ip"`
	Existed bool   `json:"existed,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AccessLogsResponse returns recent access decisions
type AccessLogsResponse struct {
	Entries []access.LogEntry `json:"entries"`
	Count   int               `json:"count"`
}

// SuspiciousIPsResponse returns tracked suspicious IPs
type SuspiciousIPsResponse struct {
	Records []reputation.SuspiciousRecord `json:"records"`
	Count   int                           `json:"count"`
}

// CleanupResponse reports how many records a cleanup removed
type CleanupResponse struct {
	Removed int `json:"removed"`
}

// RateLimitStatusResponse projects the caller's current counters
type RateLimitStatusResponse struct {
	Statuses []ratelimit.Status `json:"statuses"`
}

// ResetLimitResponse reports whether a rate-limit record existed
type ResetLimitResponse struct {
	Success bool   `json:"success"`
	Existed bool   `json:"existed"`
	Key     string `json:"key"`
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Healthy   bool   `json:"healthy"`
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorResponse represents a generic error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// POST /api/v1/admin/blacklist
func (h *RESTHandler) AddToBlacklist(w http.ResponseWriter, r *http.Request) {
	var req ListEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IP == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "Request must include an ip")
		return
	}

	h.engine.AddToBlacklist(req.IP)
	h.logger.SecurityEvent(r.Context(), "blacklist_add", req.IP, "medium", nil)

	h.writeJSONResponse(w, http.StatusOK, ListEntryResponse{Success: true, IP: req.IP})
}

// DELETE /api/v1/admin/blacklist/{ip}
func (h *RESTHandler) RemoveFromBlacklist(w http.ResponseWriter, r *http.Request) {
	ip := mux.Vars(r)["ip"]
	if ip == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "IP cannot be empty")
		return
	}

	existed := h.engine.RemoveFromBlacklist(ip)
	h.writeJSONResponse(w, http.StatusOK, ListEntryResponse{Success: true, IP: ip, Existed: existed})
}

// POST /api/v1/admin/whitelist
func (h *RESTHandler) AddToWhitelist(w http.ResponseWriter, r *http.Request) {
	var req ListEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IP == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "Request must include an ip")
		return
	}

	h.engine.AddToWhitelist(req.IP)
	h.logger.SecurityEvent(r.Context(), "whitelist_add", req.IP, "low", nil)

	h.writeJSONResponse(w, http.StatusOK, ListEntryResponse{Success: true, IP: req.IP})
}

// DELETE /api/v1/admin/whitelist/{ip}
func (h *RESTHandler) RemoveFromWhitelist(w http.ResponseWriter, r *http.Request) {
	ip := mux.Vars(r)["ip"]
	if ip == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "IP cannot be empty")
		return
	}

	existed := h.engine.RemoveFromWhitelist(ip)
	h.writeJSONResponse(w, http.StatusOK, ListEntryResponse{Success: true, IP: ip, Existed: existed})
}

// GET /api/v1/admin/access-logs?limit={limit}
func (h *RESTHandler) GetAccessLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100 // default limit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	entries := h.engine.GetAccessLogs(limit)
	h.writeJSONResponse(w, http.StatusOK, AccessLogsResponse{
		Entries: entries,
		Count:   len(entries),
	})
}

// GET /api/v1/admin/suspicious-ips
func (h *RESTHandler) GetSuspiciousIPs(w http.ResponseWriter, r *http.Request) {
	records := h.engine.GetSuspiciousIPs()
	h.writeJSONResponse(w, http.StatusOK, SuspiciousIPsResponse{
		Records: records,
		Count:   len(records),
	})
}

// POST /api/v1/admin/suspicious-ips/cleanup
func (h *RESTHandler) CleanupSuspiciousIPs(w http.ResponseWriter, r *http.Request) {
	removed := h.engine.CleanupSuspiciousIPs()
	h.writeJSONResponse(w, http.StatusOK, CleanupResponse{Removed: removed})
}

// GET /api/v1/admin/ratelimit/status
func (h *RESTHandler) GetRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	_, rateCtx := admission.BuildContexts(r)
	statuses := h.engine.GetCurrentStatus(rateCtx)
	h.writeJSONResponse(w, http.StatusOK, RateLimitStatusResponse{Statuses: statuses})
}

// GET /api/v1/admin/ratelimit/stats
func (h *RESTHandler) GetRateLimitStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, h.engine.Limiter().Statistics())
}

// DELETE /api/v1/admin/ratelimit/records/{key}
func (h *RESTHandler) ResetLimit(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "Record key cannot be empty")
		return
	}

	existed := h.engine.ResetLimit(key)
	h.writeJSONResponse(w, http.StatusOK, ResetLimitResponse{Success: true, Existed: existed, Key: key})
}

// GET /api/v1/stats
func (h *RESTHandler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, h.engine.GetStatistics())
}

// GET /health
func (h *RESTHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, HealthResponse{
		Healthy:   true,
		Status:    "healthy",
		Version:   "1.0.0",
		Timestamp: time.Now().Unix(),
	})
}

// Helper methods

func (h *RESTHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

func (h *RESTHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	h.writeJSONResponse(w, statusCode, ErrorResponse{
		Error:   message,
		Code:    statusCode,
		Message: http.StatusText(statusCode),
	})
}

// CORS middleware
func (h *RESTHandler) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
