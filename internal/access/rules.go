package access

import (
	"strings"

	"admission-control/internal/reputation"
)

var blockedAgentMarkers = []string{"bot", "crawler", "spider", "scraper"}

// DefaultRules builds the stock rule set. Priorities are part of the external
// contract: the blacklist rule outranks the whitelist rule, so an IP present
// on both lists is denied.
func DefaultRules(rep *reputation.Store, suspiciousThreshold int) []*Rule {
	return []*Rule{
		{
			ID:          "block-blacklisted-ips",
			Name:        "block-blacklisted-ips",
			Description: "Deny requests from blacklisted IP addresses",
			Priority:    1000,
			Action:      ActionDeny,
			Condition: func(ctx *Context) bool {
				return rep.IsBlacklisted(ctx.IPAddress)
			},
		},
		{
			ID:          "allow-whitelisted-ips",
			Name:        "allow-whitelisted-ips",
			Description: "Allow requests from whitelisted IP addresses",
			Priority:    900,
			Action:      ActionAllow,
			Condition: func(ctx *Context) bool {
				return rep.IsWhitelisted(ctx.IPAddress)
			},
		},
		{
			ID:          "block-suspicious-ips",
			Name:        "block-suspicious-ips",
			Description: "Deny IPs with repeated denied access attempts",
			Priority:    800,
			Action:      ActionDeny,
			Condition: func(ctx *Context) bool {
				return rep.SuspiciousCount(ctx.IPAddress) >= suspiciousThreshold
			},
		},
		{
			ID:          "private-file-access",
			Name:        "private-file-access",
			Description: "Deny anonymous reads of private files",
			Priority:    700,
			Action:      ActionDeny,
			Condition: func(ctx *Context) bool {
				return ctx.FileAccessLevel == LevelPrivate &&
					ctx.Operation == OpRead &&
					ctx.UserID == ""
			},
		},
		{
			ID:          "admin-operations",
			Name:        "admin-operations",
			Description: "Deny delete operations to non-admin users",
			Priority:    600,
			Action:      ActionDeny,
			Condition: func(ctx *Context) bool {
				return ctx.Operation == OpDelete && ctx.UserRole != "admin"
			},
		},
		{
			ID:          "user-agent-check",
			Name:        "user-agent-check",
			Description: "Deny requests from automated clients",
			Priority:    300,
			Action:      ActionDeny,
			Condition: func(ctx *Context) bool {
				agent := strings.ToLower(ctx.UserAgent)
				for _, marker := range blockedAgentMarkers {
					if strings.Contains(agent, marker) {
						return true
					}
				}
				return false
			},
		},
	}
}
