package domain

import (
	"time"
)

type RuleMatch struct {
	RuleID string        `json:"rule_id"`
	Action ActionOutcome `json:"action"`
}

type RuleFailure struct {
	RuleID string `json:"rule_id"`
	Error  string `json:"error"`
}

// Decision is the audit record of one signal evaluation.
type Decision struct {
	ID          string          `json:"id"`
	SignalID    string          `json:"signal_id"`
	SignalType  SignalType      `json:"signal_type"`
	ListingID   string          `json:"listing_id,omitempty"`
	Actions     []ActionOutcome `json:"actions"`
	Matches     []RuleMatch     `json:"matches,omitempty"`
	Failures    []RuleFailure   `json:"failures,omitempty"`
	EvaluatedAt time.Time       `json:"evaluated_at"`
	Duration    time.Duration   `json:"duration_ns"`
}

func (d *Decision) HasAction(action ActionOutcome) bool {
	for _, a := range d.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Directive is a single action handed to downstream workflow systems.
type Directive struct {
	SignalID  string        `json:"signal_id"`
	ListingID string        `json:"listing_id,omitempty"`
	Source    string        `json:"source,omitempty"`
	Action    ActionOutcome `json:"action"`
	RuleID    string        `json:"rule_id"`
	IssuedAt  time.Time     `json:"issued_at"`
}
