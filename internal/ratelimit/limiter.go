package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"

	"admission-control/internal/logging"
)

// requestRecord tracks one (rule, key) counting window. Each record carries
// its own lock so the check-then-increment sequence is atomic per key without
// serializing unrelated keys.
type requestRecord struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
	timestamps  []time.Time
}

// Limiter enforces every registered rule independently per request. The
// window is a tumbling window: it resets wholesale once the window duration
// has elapsed, so a burst of up to twice the limit can straddle a boundary.
type Limiter struct {
	logger *logging.Logger

	rulesMu sync.RWMutex
	rules   []*Rule

	recordsMu sync.RWMutex
	records   map[string]*requestRecord

	statsMu     sync.Mutex
	ruleStats   map[string]*RuleCounters
	limitedByIP map[string]int64

	cleanupInterval time.Duration
	cleanupStop     chan struct{}
	closeOnce       sync.Once
}

// NewLimiter creates a limiter with the given rules and starts its periodic
// record cleanup. Close must be called to stop the cleanup goroutine.
func NewLimiter(rules []*Rule, cleanupInterval time.Duration, logger *logging.Logger) *Limiter {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	l := &Limiter{
		logger:          logger,
		rules:           append([]*Rule(nil), rules...),
		records:         make(map[string]*requestRecord),
		ruleStats:       make(map[string]*RuleCounters),
		limitedByIP:     make(map[string]int64),
		cleanupInterval: cleanupInterval,
		cleanupStop:     make(chan struct{}),
	}

	go l.cleanupRoutine()

	return l
}

// Register appends a rule; it is evaluated after all previously registered
// rules.
func (l *Limiter) Register(rule *Rule) {
	l.rulesMu.Lock()
	defer l.rulesMu.Unlock()
	l.rules = append(l.rules, rule)
}

// Rules returns the rules in registration order
func (l *Limiter) Rules() []*Rule {
	l.rulesMu.RLock()
	defer l.rulesMu.RUnlock()

	out := make([]*Rule, len(l.rules))
	copy(out, l.rules)
	return out
}

// appliedRule captures one rule's counter state after it admitted a request
type appliedRule struct {
	rule      *Rule
	count     int
	resetTime time.Time
}

// CheckLimit evaluates all applicable rules in registration order. The first
// rule over its threshold rejects the request and stops evaluation; rules
// that already passed keep their incremented counters (conservative
// accounting, preserved from the original behavior). When every rule passes,
// the returned Info reflects the strictest applicable rule. A nil Info means
// no rule applied to this request.
func (l *Limiter) CheckLimit(ctx *Context) (info *Info, err error) {
	now := ctx.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	defer func() {
		if r := recover(); r != nil {
			info = nil
			err = &EvaluationError{Cause: r}
			l.logger.SecurityEvent(context.Background(), "rate_rule_panic", ctx.IPAddress, "high",
				map[string]interface{}{"panic": r})
		}
	}()

	var applied []appliedRule

	for _, rule := range l.Rules() {
		if rule.SkipFunc != nil && rule.SkipFunc(ctx) {
			continue
		}

		key := rule.KeyFunc(ctx)
		record := l.record(rule.ID, key)

		record.mu.Lock()

		if now.Sub(record.windowStart) >= rule.Window {
			// Tumbling window: reset wholesale
			record.windowStart = now
			record.timestamps = record.timestamps[:0]
			record.count = 0
		} else {
			record.count = l.pruneLocked(record)
		}

		l.countCheck(rule.ID)

		if record.count >= rule.MaxRequests {
			exceeded := &ExceededError{
				RuleID:       rule.ID,
				RuleName:     rule.Name,
				MaxRequests:  rule.MaxRequests,
				CurrentCount: record.count,
				Window:       rule.Window,
				ResetTime:    record.windowStart.Add(rule.Window),
				Key:          key,
			}
			record.mu.Unlock()

			l.countLimited(rule.ID, ctx.IPAddress)
			l.logger.RateLimitEvent(context.Background(), rule.Name, key, exceeded.CurrentCount, rule.MaxRequests)

			return nil, exceeded
		}

		record.count++
		record.timestamps = append(record.timestamps, now)
		applied = append(applied, appliedRule{
			rule:      rule,
			count:     record.count,
			resetTime: record.windowStart.Add(rule.Window),
		})
		record.mu.Unlock()
	}

	if len(applied) == 0 {
		return nil, nil
	}

	strictest := applied[0]
	for _, candidate := range applied[1:] {
		if candidate.rule.Rate() < strictest.rule.Rate() {
			strictest = candidate
		}
	}

	remaining := strictest.rule.MaxRequests - strictest.count
	if remaining < 0 {
		remaining = 0
	}

	return &Info{
		RuleID:    strictest.rule.ID,
		Limit:     strictest.rule.MaxRequests,
		Remaining: remaining,
		ResetTime: strictest.resetTime,
		Window:    strictest.rule.Window,
	}, nil
}

// GetCurrentStatus projects every applicable rule's counter without mutating
// any record. Remaining is never negative.
func (l *Limiter) GetCurrentStatus(ctx *Context) []Status {
	now := ctx.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	var statuses []Status

	for _, rule := range l.Rules() {
		if rule.SkipFunc != nil && rule.SkipFunc(ctx) {
			continue
		}

		key := rule.KeyFunc(ctx)

		current := 0
		resetTime := now.Add(rule.Window)

		if record := l.lookup(rule.ID, key); record != nil {
			record.mu.Lock()
			if now.Sub(record.windowStart) < rule.Window {
				current = 0
				for _, ts := range record.timestamps {
					if !ts.Before(record.windowStart) {
						current++
					}
				}
				resetTime = record.windowStart.Add(rule.Window)
			}
			record.mu.Unlock()
		}

		remaining := rule.MaxRequests - current
		if remaining < 0 {
			remaining = 0
		}

		statuses = append(statuses, Status{
			RuleID:    rule.ID,
			Key:       key,
			Current:   current,
			Limit:     rule.MaxRequests,
			Remaining: remaining,
			ResetTime: resetTime,
			Window:    rule.Window,
		})
	}

	return statuses
}

// ResetLimit deletes the record for a composed "ruleID:key" record key,
// returning whether a record existed.
func (l *Limiter) ResetLimit(recordKey string) bool {
	l.recordsMu.Lock()
	defer l.recordsMu.Unlock()

	_, exists := l.records[recordKey]
	delete(l.records, recordKey)
	return exists
}

// Statistics summarizes limiter state for the admin surface
func (l *Limiter) Statistics() Statistics {
	l.recordsMu.RLock()
	activeRecords := len(l.records)
	l.recordsMu.RUnlock()

	l.statsMu.Lock()
	ruleStats := make(map[string]RuleCounters, len(l.ruleStats))
	for id, counters := range l.ruleStats {
		ruleStats[id] = *counters
	}

	top := make([]IPCount, 0, len(l.limitedByIP))
	for ip, count := range l.limitedByIP {
		top = append(top, IPCount{IPAddress: ip, Count: count})
	}
	l.statsMu.Unlock()

	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].IPAddress < top[j].IPAddress
	})
	if len(top) > 10 {
		top = top[:10]
	}

	return Statistics{
		TotalRules:    len(l.Rules()),
		ActiveRecords: activeRecords,
		TopLimitedIPs: top,
		RuleStats:     ruleStats,
	}
}

// Close stops the periodic cleanup goroutine
func (l *Limiter) Close() error {
	l.closeOnce.Do(func() {
		close(l.cleanupStop)
	})
	return nil
}

// record fetches or lazily creates the record for a (rule, key) pair
func (l *Limiter) record(ruleID, key string) *requestRecord {
	recordKey := RecordKey(ruleID, key)

	l.recordsMu.RLock()
	record, exists := l.records[recordKey]
	l.recordsMu.RUnlock()
	if exists {
		return record
	}

	l.recordsMu.Lock()
	defer l.recordsMu.Unlock()

	if record, exists = l.records[recordKey]; exists {
		return record
	}

	record = &requestRecord{}
	l.records[recordKey] = record
	return record
}

func (l *Limiter) lookup(ruleID, key string) *requestRecord {
	l.recordsMu.RLock()
	defer l.recordsMu.RUnlock()
	return l.records[RecordKey(ruleID, key)]
}

// pruneLocked drops timestamps before the window start and returns the count
// of those remaining. Caller must hold record.mu.
func (l *Limiter) pruneLocked(record *requestRecord) int {
	kept := record.timestamps[:0]
	for _, ts := range record.timestamps {
		if !ts.Before(record.windowStart) {
			kept = append(kept, ts)
		}
	}
	record.timestamps = kept
	return len(kept)
}

func (l *Limiter) countCheck(ruleID string) {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()

	counters, exists := l.ruleStats[ruleID]
	if !exists {
		counters = &RuleCounters{}
		l.ruleStats[ruleID] = counters
	}
	counters.Checked++
}

func (l *Limiter) countLimited(ruleID, ip string) {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()

	counters, exists := l.ruleStats[ruleID]
	if !exists {
		counters = &RuleCounters{}
		l.ruleStats[ruleID] = counters
	}
	counters.Limited++
	l.limitedByIP[ip]++
}

func (l *Limiter) cleanupRoutine() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now())
		case <-l.cleanupStop:
			return
		}
	}
}

// cleanup drops records idle for more than twice the longest rule window
func (l *Limiter) cleanup(now time.Time) int {
	maxWindow := time.Duration(0)
	for _, rule := range l.Rules() {
		if rule.Window > maxWindow {
			maxWindow = rule.Window
		}
	}
	if maxWindow == 0 {
		return 0
	}

	cutoff := 2 * maxWindow

	l.recordsMu.Lock()
	defer l.recordsMu.Unlock()

	removed := 0
	for key, record := range l.records {
		record.mu.Lock()
		stale := now.Sub(record.windowStart) > cutoff
		record.mu.Unlock()

		if stale {
			delete(l.records, key)
			removed++
		}
	}

	return removed
}

// RecordKey composes the map key for one (rule, key) record
func RecordKey(ruleID, key string) string {
	return ruleID + ":" + key
}
