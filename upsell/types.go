// Package upsell implements the account engagement process that drives a
// usage-based upsell opportunity from a triggering alert to a recorded
// outcome.
package upsell

import "time"

// AutomationLevel controls how much of the engagement is performed without a
// human in the loop.
type AutomationLevel string

const (
	// FullAutomation sends the communication and never waits for a reply.
	FullAutomation AutomationLevel = "full_automation"

	// HumanIntervention never sends the communication; a human works from
	// the posted summary, and the process waits for the reply.
	HumanIntervention AutomationLevel = "human_intervention"

	// Hybrid sends the communication and waits for the reply.
	Hybrid AutomationLevel = "hybrid"
)

// ReplyOutcome is the classification of the account's reply to the
// engagement communication.
type ReplyOutcome string

const (
	// ReplyPending indicates that no reply was received, either because the
	// deadline elapsed or because the process never waited for one.
	ReplyPending ReplyOutcome = "pending"

	// ReplyYes indicates an affirmative reply.
	ReplyYes ReplyOutcome = "yes"

	// ReplyNo indicates a negative reply.
	ReplyNo ReplyOutcome = "no"

	// ReplyMaybe indicates a reply that could not be classified either way.
	ReplyMaybe ReplyOutcome = "maybe"
)

// UsageSnapshot is a point-in-time view of an account's usage of a single
// metric.
type UsageSnapshot struct {
	AccountID    string
	MetricType   string
	CurrentUsage float64

	// Trend is one of "increasing", "decreasing" or "stable".
	Trend string

	// Period is the reporting period, one of "daily", "weekly" or "monthly".
	Period string

	// Threshold is the usage level above which the account's current plan is
	// considered exceeded.
	Threshold float64

	// Source describes where the snapshot came from, so that fallback
	// snapshots are distinguishable in the audit trail.
	Source string
}

// ContractSnapshot is a point-in-time view of an account's commercial
// contract.
type ContractSnapshot struct {
	AccountID    string
	CurrentPlan  string
	EndDate      time.Time
	RenewalDate  time.Time
	CurrentSpend float64
	TermLength   string
	AutoRenewal  bool

	PrimaryContact   string
	SecondaryContact string
}

// Recommendation is a plan-upgrade recommendation for an account.
type Recommendation struct {
	Plan           string
	EstimatedValue float64
	Justification  string
	Features       []string
	ROIAnalysis    string
	RiskAssessment string
}

// Draft is an outbound communication to the account's primary contact.
type Draft struct {
	Subject   string
	Body      string
	Recipient string
	CC        []string
}

// Summary is an internal notification about the opportunity.
type Summary struct {
	Channel     string
	Message     string
	Attachments []SummaryAttachment
}

// SummaryAttachment is a titled block of supporting detail on a summary.
type SummaryAttachment struct {
	Title string
	Text  string
}

// Meeting is a follow-up meeting with the account.
type Meeting struct {
	Topic     string
	StartTime time.Time
	Duration  time.Duration
	Attendees []string
}

// Outcome is the audit-of-record entry for a completed engagement.
type Outcome struct {
	AccountID       string
	EventID         string
	OpportunityType string
	EstimatedValue  float64
	Status          ReplyOutcome
	CreatedAt       time.Time
	Notes           string
}
