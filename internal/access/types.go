package access

import (
	"fmt"
	"time"
)

// Operation classifies what a request is trying to do to a resource
type Operation string

const (
	OpRead     Operation = "read"
	OpWrite    Operation = "write"
	OpDelete   Operation = "delete"
	OpUpload   Operation = "upload"
	OpDownload Operation = "download"
)

// Action is the verdict a rule produces when its condition matches
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
)

// Access levels consumed from the file service
const (
	LevelPublic  = "public"
	LevelPrivate = "private"
)

// Context carries everything a rule condition may inspect. It is built fresh
// per request and never persisted.
type Context struct {
	IPAddress       string
	UserAgent       string
	UserID          string
	UserRole        string
	FileID          string
	FileName        string
	FileCategory    string
	FileAccessLevel string
	Operation       Operation
	Timestamp       time.Time
	Headers         map[string]string
}

// Rule is a single access-control rule. Higher priority rules are evaluated
// first; evaluation stops at the first rule whose condition is true.
type Rule struct {
	ID          string
	Name        string
	Description string
	Condition   func(*Context) bool
	Action      Action
	Priority    int
}

// RuleStats tracks per-rule match counters
type RuleStats struct {
	Matched int64 `json:"matched"`
	Denied  int64 `json:"denied"`
}

// InsufficientPermissionError reports a denied file operation
type InsufficientPermissionError struct {
	Operation Operation
	Resource  string
}

func (e *InsufficientPermissionError) Error() string {
	return fmt.Sprintf("insufficient permission for %s on %s", e.Operation, e.Resource)
}
