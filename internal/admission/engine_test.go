package admission

import (
	"testing"
	"time"

	"admission-control/internal/access"
	"admission-control/internal/config"
	"admission-control/internal/logging"
	"admission-control/internal/ratelimit"
)

func setupTestEngine(t *testing.T) *Engine {
	t.Helper()

	cfg := config.DefaultConfig()

	testLogConfig := logging.TestLoggingConfig()
	logger := logging.NewLogger(&testLogConfig)

	engine, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
	})

	return engine
}

func testContexts(ip, endpoint string) (*access.Context, *ratelimit.Context) {
	now := time.Now()

	return &access.Context{
			IPAddress: ip,
			UserAgent: "Mozilla/5.0",
			UserID:    "user-1",
			Operation: access.OpRead,
			Timestamp: now,
		}, &ratelimit.Context{
			IPAddress: ip,
			UserID:    "user-1",
			Endpoint:  endpoint,
			Method:    "GET",
			Timestamp: now,
		}
}

func TestEngine_AdmitAllows(t *testing.T) {
	engine := setupTestEngine(t)

	accessCtx, rateCtx := testContexts("10.0.0.1", "/api/v1/files")
	verdict := engine.Admit(accessCtx, rateCtx)

	if !verdict.Allowed {
		t.Error("Expected benign request to be allowed")
	}
	if verdict.Code != CodeOK {
		t.Errorf("Expected code OK, got %s", verdict.Code)
	}
	if verdict.RateLimit == nil {
		t.Fatal("Expected rate limit info on allow")
	}
	if verdict.RateLimit.RuleID != "global-ip" {
		t.Errorf("Expected strictest rule global-ip, got %s", verdict.RateLimit.RuleID)
	}
}

func TestEngine_AdmitDeniesBlacklisted(t *testing.T) {
	engine := setupTestEngine(t)
	engine.AddToBlacklist("10.0.0.1")

	accessCtx, rateCtx := testContexts("10.0.0.1", "/api/v1/files")
	verdict := engine.Admit(accessCtx, rateCtx)

	if verdict.Allowed {
		t.Error("Expected blacklisted IP to be denied")
	}
	if verdict.Code != CodeAccessDenied {
		t.Errorf("Expected code ACCESS_DENIED, got %s", verdict.Code)
	}
}

func TestEngine_AdmitRateLimits(t *testing.T) {
	engine := setupTestEngine(t)

	engine.Limiter().Register(&ratelimit.Rule{
		ID:          "tight",
		Name:        "tight",
		Window:      time.Minute,
		MaxRequests: 1,
		KeyFunc: func(ctx *ratelimit.Context) string {
			return "tight:" + ctx.IPAddress
		},
	})

	accessCtx, rateCtx := testContexts("10.0.0.1", "/api/v1/files")
	if verdict := engine.Admit(accessCtx, rateCtx); !verdict.Allowed {
		t.Fatalf("Expected first request to be allowed, got %s", verdict.Code)
	}

	verdict := engine.Admit(accessCtx, rateCtx)
	if verdict.Allowed {
		t.Error("Expected second request to be rejected")
	}
	if verdict.Code != CodeRateLimitExceeded {
		t.Errorf("Expected code RATE_LIMIT_EXCEEDED, got %s", verdict.Code)
	}
	if verdict.Detail == nil || verdict.Detail.RuleID != "tight" {
		t.Errorf("Expected detail for rule tight, got %+v", verdict.Detail)
	}
}

func TestEngine_RateLimitingDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimit.Enabled = false

	testLogConfig := logging.TestLoggingConfig()
	logger := logging.NewLogger(&testLogConfig)

	engine, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
	})

	accessCtx, rateCtx := testContexts("10.0.0.1", "/api/v1/files")
	for i := 0; i < 200; i++ {
		verdict := engine.Admit(accessCtx, rateCtx)
		if !verdict.Allowed {
			t.Fatalf("Request %d: expected allow with limiting disabled, got %s", i+1, verdict.Code)
		}
		if verdict.RateLimit != nil {
			t.Fatal("Expected no rate limit info with limiting disabled")
		}
	}
}

func TestEngine_BrokenRateRuleFailsClosed(t *testing.T) {
	engine := setupTestEngine(t)

	engine.Limiter().Register(&ratelimit.Rule{
		ID:          "broken",
		Name:        "broken",
		Window:      time.Minute,
		MaxRequests: 10,
		KeyFunc: func(ctx *ratelimit.Context) string {
			panic("boom")
		},
	})

	accessCtx, rateCtx := testContexts("10.0.0.1", "/api/v1/files")
	verdict := engine.Admit(accessCtx, rateCtx)

	if verdict.Allowed {
		t.Error("Expected broken rule to fail the request closed")
	}
	if verdict.Code != CodeAccessDenied {
		t.Errorf("Expected code ACCESS_DENIED, got %s", verdict.Code)
	}
}

func TestEngine_AccessLogsRecorded(t *testing.T) {
	engine := setupTestEngine(t)
	engine.AddToBlacklist("10.0.0.9")

	accessCtx, rateCtx := testContexts("10.0.0.1", "/api/v1/files")
	engine.Admit(accessCtx, rateCtx)

	deniedCtx, deniedRate := testContexts("10.0.0.9", "/api/v1/files")
	engine.Admit(deniedCtx, deniedRate)

	logs := engine.GetAccessLogs(10)
	if len(logs) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(logs))
	}

	// Most recent first
	if logs[0].IPAddress != "10.0.0.9" || logs[0].Result != "denied" {
		t.Errorf("Expected denied entry for 10.0.0.9 first, got %+v", logs[0])
	}
	if logs[1].Result != "allowed" {
		t.Errorf("Expected allowed entry second, got %+v", logs[1])
	}
}

func TestEngine_SuspiciousTracking(t *testing.T) {
	engine := setupTestEngine(t)
	engine.AddToBlacklist("10.0.0.9")

	accessCtx, rateCtx := testContexts("10.0.0.9", "/api/v1/files")
	for i := 0; i < 3; i++ {
		engine.Admit(accessCtx, rateCtx)
	}

	records := engine.GetSuspiciousIPs()
	if len(records) != 1 {
		t.Fatalf("Expected 1 suspicious record, got %d", len(records))
	}
	if records[0].IPAddress != "10.0.0.9" || records[0].Count != 3 {
		t.Errorf("Expected 10.0.0.9 with count 3, got %+v", records[0])
	}
}

func TestEngine_GetStatistics(t *testing.T) {
	engine := setupTestEngine(t)
	engine.AddToBlacklist("10.0.0.9")
	engine.AddToWhitelist("10.0.0.8")

	accessCtx, rateCtx := testContexts("10.0.0.1", "/api/v1/files")
	engine.Admit(accessCtx, rateCtx)

	stats := engine.GetStatistics()
	if stats.AccessRules != 6 {
		t.Errorf("Expected 6 default access rules, got %d", stats.AccessRules)
	}
	if stats.Blacklisted != 1 || stats.Whitelisted != 1 {
		t.Errorf("Expected 1 blacklisted and 1 whitelisted, got %d/%d",
			stats.Blacklisted, stats.Whitelisted)
	}
	if stats.LogEntries != 1 {
		t.Errorf("Expected 1 log entry, got %d", stats.LogEntries)
	}
	if stats.RateLimit.TotalRules != 8 {
		t.Errorf("Expected 8 default rate rules, got %d", stats.RateLimit.TotalRules)
	}
}

func TestEngine_ValidateFileAccess(t *testing.T) {
	engine := setupTestEngine(t)

	err := engine.ValidateFileAccess("file-1", "secret.txt", access.LevelPrivate, "documents",
		access.OpRead, access.Context{IPAddress: "10.0.0.1"})
	if err == nil {
		t.Error("Expected anonymous private read to be denied")
	}

	err = engine.ValidateFileAccess("file-1", "public.txt", access.LevelPublic, "documents",
		access.OpRead, access.Context{IPAddress: "10.0.0.1"})
	if err != nil {
		t.Errorf("Expected public read to be allowed, got %v", err)
	}
}
