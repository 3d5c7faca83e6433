package ratelimit

import (
	"fmt"
	"time"
)

// Context is the per-request input to the limiter, built by the middleware
// adapter from the resolved client IP and route information.
type Context struct {
	IPAddress string
	UserID    string
	UserAgent string
	Endpoint  string
	Method    string
	Timestamp time.Time
}

// Rule is one independent rate-limit rule. All non-skipped rules are checked
// on every request; this is not first-match.
type Rule struct {
	ID          string
	Name        string
	Window      time.Duration
	MaxRequests int

	// KeyFunc derives the counting bucket for a request, e.g. "upload:<ip>"
	KeyFunc func(*Context) string

	// SkipFunc, when non-nil and true, exempts the request from this rule
	SkipFunc func(*Context) bool
}

// Rate returns the rule's requests-per-second budget, used to pick the
// strictest applicable rule for informational headers.
func (r *Rule) Rate() float64 {
	seconds := r.Window.Seconds()
	if seconds <= 0 {
		return float64(r.MaxRequests)
	}
	return float64(r.MaxRequests) / seconds
}

// Info is the informational payload for an allowed request, taken from the
// strictest applicable rule.
type Info struct {
	RuleID    string        `json:"rule_id"`
	Limit     int           `json:"limit"`
	Remaining int           `json:"remaining"`
	ResetTime time.Time     `json:"reset_time"`
	Window    time.Duration `json:"window"`
}

// Status is a read-only projection of one rule's counter for a request
type Status struct {
	RuleID    string        `json:"rule_id"`
	Key       string        `json:"key"`
	Current   int           `json:"current"`
	Limit     int           `json:"limit"`
	Remaining int           `json:"remaining"`
	ResetTime time.Time     `json:"reset_time"`
	Window    time.Duration `json:"window"`
}

// RuleCounters tracks how often a rule was checked and how often it limited
type RuleCounters struct {
	Checked int64 `json:"checked"`
	Limited int64 `json:"limited"`
}

// IPCount pairs an IP with its rejection count for the statistics surface
type IPCount struct {
	IPAddress string `json:"ip_address"`
	Count     int64  `json:"count"`
}

// Statistics summarizes limiter state for the admin surface
type Statistics struct {
	TotalRules    int                     `json:"total_rules"`
	ActiveRecords int                     `json:"active_records"`
	TopLimitedIPs []IPCount               `json:"top_limited_ips"`
	RuleStats     map[string]RuleCounters `json:"rule_stats"`
}

// ExceededError reports which rule rejected the request and when its window
// resets, so a well-behaved client can back off and retry.
type ExceededError struct {
	RuleID       string        `json:"rule_id"`
	RuleName     string        `json:"rule_name"`
	MaxRequests  int           `json:"max_requests"`
	CurrentCount int           `json:"current_count"`
	Window       time.Duration `json:"window"`
	ResetTime    time.Time     `json:"reset_time"`
	Key          string        `json:"key"`
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for rule %s: %d/%d requests in %s",
		e.RuleName, e.CurrentCount, e.MaxRequests, e.Window)
}

// EvaluationError is returned when a key generator or skip predicate panics.
// Callers must treat it as a denial, never as an allow.
type EvaluationError struct {
	RuleID string
	Cause  interface{}
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("rate limit rule %s failed to evaluate: %v", e.RuleID, e.Cause)
}
