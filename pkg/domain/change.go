package domain

import "strings"

// Action indicates the kind of modification recorded in a Change.
type Action string

const (
	// ActionRelate records a completed relation change on one end point.
	ActionRelate Action = "relate"
	// ActionDelete records a deleted object.
	ActionDelete Action = "delete"
)

// Change describes a mutation applied during a transaction.
type Change struct {
	Entity   string     `json:"entity"`
	Action   Action     `json:"action"`
	Owner    ObjectID   `json:"owner"`
	Property PropertyID `json:"property,omitempty"`
	Before   ObjectID   `json:"before"`
	After    ObjectID   `json:"after"`
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   string
	EntityID ObjectID
	Cause    error
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	var msgs []string
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock && v.Message != "" {
			msgs = append(msgs, v.Message)
		}
	}
	if len(msgs) == 0 {
		return "transaction blocked by rules"
	}
	return "transaction blocked by rules: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the causes of blocking violations.
func (e RuleViolationError) Unwrap() []error {
	var out []error
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock && v.Cause != nil {
			out = append(out, v.Cause)
		}
	}
	return out
}
