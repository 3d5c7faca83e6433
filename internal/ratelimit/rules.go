package ratelimit

import (
	"strings"
	"time"
)

var intensiveEndpoints = []string{"/batch", "/search", "/stats", "/process", "/convert", "/compress"}

var adminEndpoints = []string{"/admin", "/config", "/system", "/monitor", "/logs"}

func endpointMatches(endpoint string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(endpoint, pattern) {
			return true
		}
	}
	return false
}

// DefaultRules builds the stock rule set. Registration order is part of the
// contract: rules are evaluated in this order and a rejection by a later rule
// does not refund counters already incremented by earlier ones.
func DefaultRules() []*Rule {
	return []*Rule{
		{
			ID:          "global-ip",
			Name:        "global-ip",
			Window:      time.Minute,
			MaxRequests: 100,
			KeyFunc: func(ctx *Context) string {
				return "global:" + ctx.IPAddress
			},
		},
		{
			ID:          "upload-ip",
			Name:        "upload-ip",
			Window:      time.Minute,
			MaxRequests: 10,
			KeyFunc: func(ctx *Context) string {
				return "upload:" + ctx.IPAddress
			},
			SkipFunc: func(ctx *Context) bool {
				return !strings.Contains(ctx.Endpoint, "/upload")
			},
		},
		{
			ID:          "download-ip",
			Name:        "download-ip",
			Window:      time.Minute,
			MaxRequests: 50,
			KeyFunc: func(ctx *Context) string {
				return "download:" + ctx.IPAddress
			},
			SkipFunc: func(ctx *Context) bool {
				return !strings.Contains(ctx.Endpoint, "/download")
			},
		},
		{
			ID:          "per-user",
			Name:        "per-user",
			Window:      time.Minute,
			MaxRequests: 200,
			KeyFunc: func(ctx *Context) string {
				if ctx.UserID != "" {
					return "user:" + ctx.UserID
				}
				return "user:" + ctx.IPAddress
			},
		},
		{
			ID:          "intensive-endpoints",
			Name:        "intensive-endpoints",
			Window:      5 * time.Minute,
			MaxRequests: 100,
			KeyFunc: func(ctx *Context) string {
				return "intensive:" + ctx.IPAddress
			},
			SkipFunc: func(ctx *Context) bool {
				return !endpointMatches(ctx.Endpoint, intensiveEndpoints)
			},
		},
		{
			ID:          "search",
			Name:        "search",
			Window:      time.Minute,
			MaxRequests: 30,
			KeyFunc: func(ctx *Context) string {
				return "search:" + ctx.IPAddress
			},
			SkipFunc: func(ctx *Context) bool {
				return !strings.Contains(ctx.Endpoint, "/search")
			},
		},
		{
			ID:          "batch",
			Name:        "batch",
			Window:      5 * time.Minute,
			MaxRequests: 5,
			KeyFunc: func(ctx *Context) string {
				return "batch:" + ctx.IPAddress
			},
			SkipFunc: func(ctx *Context) bool {
				return !strings.Contains(ctx.Endpoint, "/batch")
			},
		},
		{
			ID:          "admin-endpoints",
			Name:        "admin-endpoints",
			Window:      time.Minute,
			MaxRequests: 20,
			KeyFunc: func(ctx *Context) string {
				return "admin:" + ctx.IPAddress
			},
			SkipFunc: func(ctx *Context) bool {
				return !endpointMatches(ctx.Endpoint, adminEndpoints)
			},
		},
	}
}
