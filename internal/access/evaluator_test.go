package access

import (
	"errors"
	"testing"
	"time"

	"admission-control/internal/logging"
	"admission-control/internal/reputation"
)

func setupTestEvaluator(t *testing.T) (*Evaluator, *reputation.Store) {
	t.Helper()

	testLogConfig := logging.TestLoggingConfig()
	logger := logging.NewLogger(&testLogConfig)

	rep := reputation.NewStore(24 * time.Hour)

	registry := NewRegistry()
	for _, rule := range DefaultRules(rep, 10) {
		registry.Register(rule)
	}

	return NewEvaluator(registry, rep, NewLog(100, 50), logger), rep
}

func TestEvaluator_DefaultAllow(t *testing.T) {
	evaluator, _ := setupTestEvaluator(t)

	allowed := evaluator.Check(&Context{
		IPAddress: "192.168.1.1",
		UserAgent: "Mozilla/5.0",
		UserID:    "user-1",
		Operation: OpRead,
	})

	if !allowed {
		t.Error("Expected a benign request to be allowed")
	}

	recent := evaluator.Log().Recent(1)
	if len(recent) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(recent))
	}
	if recent[0].Result != "allowed" {
		t.Errorf("Expected result allowed, got %s", recent[0].Result)
	}
	if recent[0].Reason != "" {
		t.Errorf("Expected empty reason for default allow, got %s", recent[0].Reason)
	}
}

func TestEvaluator_BlacklistDenies(t *testing.T) {
	evaluator, rep := setupTestEvaluator(t)
	rep.AddToBlacklist("192.168.1.1")

	allowed := evaluator.Check(&Context{
		IPAddress: "192.168.1.1",
		UserID:    "user-1",
		Operation: OpRead,
	})

	if allowed {
		t.Error("Expected blacklisted IP to be denied")
	}

	recent := evaluator.Log().Recent(1)
	if recent[0].Reason != "block-blacklisted-ips" {
		t.Errorf("Expected reason block-blacklisted-ips, got %s", recent[0].Reason)
	}
}

func TestEvaluator_BlacklistOutranksWhitelist(t *testing.T) {
	evaluator, rep := setupTestEvaluator(t)
	rep.AddToBlacklist("192.168.1.1")
	rep.AddToWhitelist("192.168.1.1")

	if evaluator.Check(&Context{IPAddress: "192.168.1.1", Operation: OpRead, UserID: "user-1"}) {
		t.Error("Expected IP on both lists to be denied")
	}
}

func TestEvaluator_WhitelistAllowsDespiteLaterDenyRules(t *testing.T) {
	evaluator, rep := setupTestEvaluator(t)
	rep.AddToWhitelist("192.168.1.1")

	// A bot user agent would normally be denied by user-agent-check
	allowed := evaluator.Check(&Context{
		IPAddress: "192.168.1.1",
		UserAgent: "googlebot/2.1",
		UserID:    "user-1",
		Operation: OpRead,
	})

	if !allowed {
		t.Error("Expected whitelisted IP to be allowed before lower-priority deny rules")
	}
}

func TestEvaluator_DenialMarksSuspicious(t *testing.T) {
	evaluator, rep := setupTestEvaluator(t)
	rep.AddToBlacklist("192.168.1.1")

	evaluator.Check(&Context{IPAddress: "192.168.1.1", Operation: OpRead})

	if count := rep.SuspiciousCount("192.168.1.1"); count != 1 {
		t.Errorf("Expected suspicious count 1 after denial, got %d", count)
	}
}

func TestEvaluator_SuspiciousThresholdBlocks(t *testing.T) {
	evaluator, rep := setupTestEvaluator(t)
	now := time.Now()

	// Nine prior denials: still below the threshold of 10
	for i := 0; i < 9; i++ {
		rep.MarkSuspicious("192.168.1.1", now)
	}

	ctx := &Context{IPAddress: "192.168.1.1", UserID: "user-1", Operation: OpRead}
	if !evaluator.Check(ctx) {
		t.Fatal("Expected IP below the threshold to be allowed")
	}

	// Tenth denial crosses the threshold
	rep.MarkSuspicious("192.168.1.1", now)

	if evaluator.Check(ctx) {
		t.Error("Expected IP at the threshold to be denied")
	}

	recent := evaluator.Log().Recent(1)
	if recent[0].Reason != "block-suspicious-ips" {
		t.Errorf("Expected reason block-suspicious-ips, got %s", recent[0].Reason)
	}
}

func TestEvaluator_PrivateFileAnonymousRead(t *testing.T) {
	evaluator, _ := setupTestEvaluator(t)

	tests := []struct {
		name    string
		userID  string
		level   string
		op      Operation
		allowed bool
	}{
		{"anonymous read of private file", "", LevelPrivate, OpRead, false},
		{"authenticated read of private file", "user-1", LevelPrivate, OpRead, true},
		{"anonymous read of public file", "", LevelPublic, OpRead, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed := evaluator.Check(&Context{
				IPAddress:       "10.0.0.1",
				UserID:          tt.userID,
				FileName:        "report.pdf",
				FileAccessLevel: tt.level,
				Operation:       tt.op,
			})
			if allowed != tt.allowed {
				t.Errorf("Expected allowed=%v, got %v", tt.allowed, allowed)
			}
		})
	}
}

func TestEvaluator_AdminOperations(t *testing.T) {
	evaluator, _ := setupTestEvaluator(t)

	if evaluator.Check(&Context{IPAddress: "10.0.0.1", UserID: "user-1", UserRole: "user", Operation: OpDelete}) {
		t.Error("Expected delete by non-admin to be denied")
	}

	if !evaluator.Check(&Context{IPAddress: "10.0.0.2", UserID: "user-2", UserRole: "admin", Operation: OpDelete}) {
		t.Error("Expected delete by admin to be allowed")
	}
}

func TestEvaluator_BlockedUserAgents(t *testing.T) {
	evaluator, _ := setupTestEvaluator(t)

	tests := []struct {
		agent   string
		allowed bool
	}{
		{"Mozilla/5.0 (X11; Linux x86_64)", true},
		{"googlebot/2.1", false},
		{"My-Crawler/1.0", false},
		{"spider", false},
		{"data-scraper", false},
		{"", true},
	}

	for _, tt := range tests {
		allowed := evaluator.Check(&Context{
			IPAddress: "10.0.0.1",
			UserAgent: tt.agent,
			UserID:    "user-1",
			Operation: OpRead,
		})
		if allowed != tt.allowed {
			t.Errorf("Agent %q: expected allowed=%v, got %v", tt.agent, tt.allowed, allowed)
		}
	}
}

func TestEvaluator_PanickingRuleFailsClosed(t *testing.T) {
	evaluator, _ := setupTestEvaluator(t)

	evaluator.registry.Register(&Rule{
		ID:       "broken",
		Name:     "broken",
		Priority: 2000,
		Action:   ActionAllow,
		Condition: func(ctx *Context) bool {
			panic("boom")
		},
	})

	if evaluator.Check(&Context{IPAddress: "10.0.0.1", UserID: "user-1", Operation: OpRead}) {
		t.Error("Expected a panicking rule to fail the check closed")
	}

	recent := evaluator.Log().Recent(1)
	if recent[0].Reason != "evaluation-error" {
		t.Errorf("Expected reason evaluation-error, got %s", recent[0].Reason)
	}
}

func TestEvaluator_Stats(t *testing.T) {
	evaluator, rep := setupTestEvaluator(t)
	rep.AddToBlacklist("192.168.1.1")

	evaluator.Check(&Context{IPAddress: "192.168.1.1", Operation: OpRead})
	evaluator.Check(&Context{IPAddress: "192.168.1.1", Operation: OpRead})

	stats := evaluator.Stats()
	if stats["block-blacklisted-ips"].Matched != 2 {
		t.Errorf("Expected 2 matches, got %d", stats["block-blacklisted-ips"].Matched)
	}
	if stats["block-blacklisted-ips"].Denied != 2 {
		t.Errorf("Expected 2 denials, got %d", stats["block-blacklisted-ips"].Denied)
	}
}

func TestEvaluator_ValidateFileAccess(t *testing.T) {
	evaluator, _ := setupTestEvaluator(t)

	err := evaluator.ValidateFileAccess("file-1", "report.pdf", LevelPrivate, "documents", OpRead, Context{
		IPAddress: "10.0.0.1",
	})

	var permErr *InsufficientPermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("Expected InsufficientPermissionError, got %v", err)
	}
	if permErr.Resource != "documents/report.pdf" {
		t.Errorf("Expected resource documents/report.pdf, got %s", permErr.Resource)
	}
	if permErr.Operation != OpRead {
		t.Errorf("Expected operation read, got %s", permErr.Operation)
	}

	if err := evaluator.ValidateFileAccess("file-1", "report.pdf", LevelPublic, "documents", OpRead, Context{
		IPAddress: "10.0.0.1",
	}); err != nil {
		t.Errorf("Expected public read to be allowed, got %v", err)
	}
}
