package admission

import (
	"errors"
	"fmt"
	"time"

	"admission-control/internal/access"
	"admission-control/internal/audit"
	"admission-control/internal/config"
	"admission-control/internal/logging"
	"admission-control/internal/ratelimit"
	"admission-control/internal/reputation"
)

// Code classifies an admission verdict
type Code string

const (
	CodeOK                Code = "OK"
	CodeAccessDenied      Code = "ACCESS_DENIED"
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"
)

// Verdict is the engine's decision for one inbound operation
type Verdict struct {
	Allowed   bool
	Code      Code
	RateLimit *ratelimit.Info          // Informational payload, set on allow
	Detail    *ratelimit.ExceededError // Set when rate limited
}

// Statistics aggregates engine state for the admin surface
type Statistics struct {
	UptimeSeconds int64                       `json:"uptime_seconds"`
	AccessRules   int                         `json:"access_rules"`
	AccessStats   map[string]access.RuleStats `json:"access_stats"`
	LogEntries    int                         `json:"log_entries"`
	Whitelisted   int                         `json:"whitelisted"`
	Blacklisted   int                         `json:"blacklisted"`
	Suspicious    int                         `json:"suspicious"`
	RateLimit     ratelimit.Statistics        `json:"rate_limit"`
}

// Engine owns all admission-control state: the reputation store, the access
// rule registry and evaluator, the rate limiter and the decision log. One
// engine is constructed at process start and shared by all requests; Close
// releases its background work.
type Engine struct {
	config     *config.Config
	logger     *logging.Logger
	reputation *reputation.Store
	registry   *access.Registry
	evaluator  *access.Evaluator
	limiter    *ratelimit.Limiter
	archive    *audit.Archive
	startTime  time.Time
}

// New builds an engine with the default access and rate-limit rule sets
func New(cfg *config.Config, logger *logging.Logger) (*Engine, error) {
	rep := reputation.NewStore(cfg.Access.SuspiciousMaxAge)

	registry := access.NewRegistry()
	for _, rule := range access.DefaultRules(rep, cfg.Access.SuspiciousThreshold) {
		registry.Register(rule)
	}

	decisionLog := access.NewLog(cfg.Access.LogCapacity, cfg.Access.LogDropBatch)

	var archive *audit.Archive
	if cfg.Audit.Enabled {
		var err error
		archive, err = audit.NewArchive(audit.Config{
			DataPath: cfg.Audit.DataPath,
			InMemory: cfg.Audit.InMemory,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open audit archive: %w", err)
		}
		decisionLog.SetSink(archive)
	}

	evaluator := access.NewEvaluator(registry, rep, decisionLog, logger)
	limiter := ratelimit.NewLimiter(ratelimit.DefaultRules(), cfg.RateLimit.CleanupInterval, logger)

	return &Engine{
		config:     cfg,
		logger:     logger,
		reputation: rep,
		registry:   registry,
		evaluator:  evaluator,
		limiter:    limiter,
		archive:    archive,
		startTime:  time.Now(),
	}, nil
}

// Admit runs the access check and then the rate-limit check. The two checks
// are independent: an allow from the access rules (including the whitelist)
// never bypasses the limiter.
func (e *Engine) Admit(accessCtx *access.Context, rateCtx *ratelimit.Context) Verdict {
	if !e.evaluator.Check(accessCtx) {
		return Verdict{Allowed: false, Code: CodeAccessDenied}
	}

	if !e.config.RateLimit.Enabled {
		return Verdict{Allowed: true, Code: CodeOK}
	}

	info, err := e.limiter.CheckLimit(rateCtx)
	if err != nil {
		var exceeded *ratelimit.ExceededError
		if errors.As(err, &exceeded) {
			return Verdict{Allowed: false, Code: CodeRateLimitExceeded, Detail: exceeded}
		}

		// A broken key generator fails closed as a plain denial
		return Verdict{Allowed: false, Code: CodeAccessDenied}
	}

	return Verdict{Allowed: true, Code: CodeOK, RateLimit: info}
}

// ValidateFileAccess checks a file operation on behalf of the file service
func (e *Engine) ValidateFileAccess(fileID, fileName, accessLevel, category string, op access.Operation, partial access.Context) error {
	return e.evaluator.ValidateFileAccess(fileID, fileName, accessLevel, category, op, partial)
}

// Administrative surface

func (e *Engine) AddToBlacklist(ip string)           { e.reputation.AddToBlacklist(ip) }
func (e *Engine) RemoveFromBlacklist(ip string) bool { return e.reputation.RemoveFromBlacklist(ip) }
func (e *Engine) AddToWhitelist(ip string)           { e.reputation.AddToWhitelist(ip) }
func (e *Engine) RemoveFromWhitelist(ip string) bool { return e.reputation.RemoveFromWhitelist(ip) }

// GetAccessLogs returns up to limit decisions, most recent first
func (e *Engine) GetAccessLogs(limit int) []access.LogEntry {
	return e.evaluator.Log().Recent(limit)
}

// GetSuspiciousIPs returns suspicious records sorted by count descending
func (e *Engine) GetSuspiciousIPs() []reputation.SuspiciousRecord {
	return e.reputation.SuspiciousRecords()
}

// CleanupSuspiciousIPs drops suspicious records past the configured age
func (e *Engine) CleanupSuspiciousIPs() int {
	return e.reputation.CleanupSuspicious(time.Now())
}

// GetCurrentStatus projects the limiter's counters for a context
func (e *Engine) GetCurrentStatus(ctx *ratelimit.Context) []ratelimit.Status {
	return e.limiter.GetCurrentStatus(ctx)
}

// ResetLimit deletes one (rule, key) rate-limit record
func (e *Engine) ResetLimit(recordKey string) bool {
	return e.limiter.ResetLimit(recordKey)
}

// GetStatistics aggregates engine state
func (e *Engine) GetStatistics() Statistics {
	whitelisted, blacklisted, suspicious := e.reputation.Counts()

	return Statistics{
		UptimeSeconds: int64(time.Since(e.startTime).Seconds()),
		AccessRules:   e.registry.Len(),
		AccessStats:   e.evaluator.Stats(),
		LogEntries:    e.evaluator.Log().Len(),
		Whitelisted:   whitelisted,
		Blacklisted:   blacklisted,
		Suspicious:    suspicious,
		RateLimit:     e.limiter.Statistics(),
	}
}

// Registry exposes the access rule registry for custom rules
func (e *Engine) Registry() *access.Registry {
	return e.registry
}

// Limiter exposes the rate limiter for custom rules
func (e *Engine) Limiter() *ratelimit.Limiter {
	return e.limiter
}

// Close stops background work and releases the audit archive
func (e *Engine) Close() error {
	if err := e.limiter.Close(); err != nil {
		return err
	}

	if e.archive != nil {
		if err := e.archive.Close(); err != nil {
			return fmt.Errorf("failed to close audit archive: %w", err)
		}
	}

	return nil
}
