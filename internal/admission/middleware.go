package admission

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"admission-control/internal/access"
	"admission-control/internal/ratelimit"
)

const unknownClient = "unknown"

// ErrorBody is the JSON envelope for denied and rate-limited responses
type ErrorBody struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Details   *RateLimitDetail `json:"details,omitempty"`
}

type RateLimitDetail struct {
	RuleID    string    `json:"ruleId"`
	WindowMs  int64     `json:"windowMs"`
	ResetTime time.Time `json:"resetTime"`
	Key       string    `json:"key"`
}

// ClientIP resolves the true client address, preferring proxy headers over
// the socket peer: X-Forwarded-For (first entry), then X-Real-IP, then
// CF-Connecting-IP, then the remote address.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	if cfIP := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}

	return unknownClient
}

// OperationForMethod maps an HTTP method to an access-control operation
func OperationForMethod(method string) access.Operation {
	switch method {
	case http.MethodGet:
		return access.OpRead
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return access.OpWrite
	case http.MethodDelete:
		return access.OpDelete
	default:
		return access.OpRead
	}
}

// BuildContexts constructs the access and rate-limit contexts for a request.
// Identity headers are set by the upstream authentication layer.
func BuildContexts(r *http.Request) (*access.Context, *ratelimit.Context) {
	now := time.Now()
	ip := ClientIP(r)
	userID := r.Header.Get("X-User-ID")

	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}

	accessCtx := &access.Context{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
		UserID:    userID,
		UserRole:  r.Header.Get("X-User-Role"),
		Operation: OperationForMethod(r.Method),
		Timestamp: now,
		Headers:   headers,
	}

	rateCtx := &ratelimit.Context{
		IPAddress: ip,
		UserID:    userID,
		UserAgent: r.UserAgent(),
		Endpoint:  r.URL.Path,
		Method:    r.Method,
		Timestamp: now,
	}

	return accessCtx, rateCtx
}

// AdmitRequest builds the contexts for an HTTP request and runs the engine
func (e *Engine) AdmitRequest(r *http.Request) Verdict {
	accessCtx, rateCtx := BuildContexts(r)
	return e.Admit(accessCtx, rateCtx)
}

// Middleware gates every request through the engine. Denials become 403,
// rate-limit rejections become 429, and allowed responses carry the
// X-RateLimit-* headers of the strictest applicable rule.
func (e *Engine) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verdict := e.AdmitRequest(r)

		switch verdict.Code {
		case CodeAccessDenied:
			writeErrorBody(w, http.StatusForbidden, ErrorDetail{
				Code:      string(CodeAccessDenied),
				Message:   "Access denied",
				Timestamp: time.Now(),
			})
			return

		case CodeRateLimitExceeded:
			detail := verdict.Detail
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(detail), 10))
			writeErrorBody(w, http.StatusTooManyRequests, ErrorDetail{
				Code:      string(CodeRateLimitExceeded),
				Message:   "Too many requests, please try again later",
				Timestamp: time.Now(),
				Details: &RateLimitDetail{
					RuleID:    detail.RuleID,
					WindowMs:  detail.Window.Milliseconds(),
					ResetTime: detail.ResetTime,
					Key:       detail.Key,
				},
			})
			return
		}

		if info := verdict.RateLimit; info != nil {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
			w.Header().Set("X-RateLimit-Window", strconv.FormatInt(info.Window.Milliseconds(), 10))
		}

		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(detail *ratelimit.ExceededError) int64 {
	seconds := int64(time.Until(detail.ResetTime).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func writeErrorBody(w http.ResponseWriter, statusCode int, detail ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorBody{Success: false, Error: detail})
}
