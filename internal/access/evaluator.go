package access

import (
	"context"
	"sync"
	"time"

	"admission-control/internal/logging"
	"admission-control/internal/reputation"
)

const (
	resultAllowed = "allowed"
	resultDenied  = "denied"

	// Reason recorded when a rule condition panics and the check fails closed
	reasonEvaluationError = "evaluation-error"
)

// Evaluator applies the rule registry to a request context. Every Check
// appends one log entry; every denial increments the suspicious counter for
// the caller's IP.
type Evaluator struct {
	registry   *Registry
	reputation *reputation.Store
	log        *Log
	logger     *logging.Logger

	mu        sync.Mutex
	ruleStats map[string]*RuleStats
}

// NewEvaluator creates an evaluator over the given registry and stores
func NewEvaluator(registry *Registry, rep *reputation.Store, decisionLog *Log, logger *logging.Logger) *Evaluator {
	return &Evaluator{
		registry:   registry,
		reputation: rep,
		log:        decisionLog,
		logger:     logger,
		ruleStats:  make(map[string]*RuleStats),
	}
}

// Check evaluates the rules against ctx and returns whether the operation may
// proceed. Rules are evaluated in descending priority order and the first
// matching rule decides; with no match the default verdict is allow. A panic
// inside any condition fails the whole check closed.
func (e *Evaluator) Check(ctx *Context) bool {
	if ctx.Timestamp.IsZero() {
		ctx.Timestamp = time.Now()
	}

	allowed, reason := e.evaluate(ctx)

	result := resultAllowed
	if !allowed {
		result = resultDenied
		e.reputation.MarkSuspicious(ctx.IPAddress, ctx.Timestamp)
	}

	resource := e.resourceFor(ctx)
	e.log.Append(LogEntry{
		UserID:    ctx.UserID,
		IPAddress: ctx.IPAddress,
		Operation: ctx.Operation,
		Resource:  resource,
		Result:    result,
		Reason:    reason,
		Timestamp: ctx.Timestamp,
		UserAgent: ctx.UserAgent,
	})

	e.logger.AccessDecision(context.Background(), ctx.IPAddress, string(ctx.Operation), resource, result, reason)

	return allowed
}

// evaluate walks the registry and returns the verdict plus the matched rule
// name. The deferred recover enforces the fail-closed invariant: a broken
// rule must never produce an allow.
func (e *Evaluator) evaluate(ctx *Context) (allowed bool, reason string) {
	defer func() {
		if r := recover(); r != nil {
			allowed = false
			reason = reasonEvaluationError
			e.logger.SecurityEvent(context.Background(), "rule_evaluation_panic", ctx.IPAddress, "high",
				map[string]interface{}{
					"panic":     r,
					"operation": string(ctx.Operation),
				})
		}
	}()

	for _, rule := range e.registry.Rules() {
		if rule.Condition == nil || !rule.Condition(ctx) {
			continue
		}

		e.recordMatch(rule)
		return rule.Action == ActionAllow, rule.Name
	}

	return true, ""
}

func (e *Evaluator) recordMatch(rule *Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats, exists := e.ruleStats[rule.ID]
	if !exists {
		stats = &RuleStats{}
		e.ruleStats[rule.ID] = stats
	}

	stats.Matched++
	if rule.Action == ActionDeny {
		stats.Denied++
	}
}

// Stats returns a copy of the per-rule match counters
func (e *Evaluator) Stats() map[string]RuleStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]RuleStats, len(e.ruleStats))
	for id, stats := range e.ruleStats {
		out[id] = *stats
	}
	return out
}

// Log exposes the decision log for the admin surface
func (e *Evaluator) Log() *Log {
	return e.log
}

func (e *Evaluator) resourceFor(ctx *Context) string {
	switch {
	case ctx.FileName != "":
		return ctx.FileName
	case ctx.FileID != "":
		return ctx.FileID
	default:
		return "unknown"
	}
}

// ValidateFileAccess builds a context for a file operation and checks it.
// The partial context supplies the caller's identity and network details.
func (e *Evaluator) ValidateFileAccess(fileID, fileName, accessLevel, category string, op Operation, partial Context) error {
	ctx := partial
	ctx.FileID = fileID
	ctx.FileName = fileName
	ctx.FileAccessLevel = accessLevel
	ctx.FileCategory = category
	ctx.Operation = op

	if e.Check(&ctx) {
		return nil
	}

	resource := fileName
	if category != "" {
		resource = category + "/" + fileName
	}

	return &InsufficientPermissionError{
		Operation: op,
		Resource:  resource,
	}
}
