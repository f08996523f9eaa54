package upsell

import "fmt"

// Input is the triggering event that starts an engagement.
type Input struct {
	// AccountID is the account that triggered the usage alert.
	AccountID string

	// EventID is the identifier of the triggering alert event.
	EventID string

	// AutomationLevel controls communication sending and reply waiting.
	AutomationLevel AutomationLevel

	// MetricType is the metric that triggered the alert.
	MetricType string
}

// BusinessKey returns the identity of the logical process run for this
// input.
//
// Re-delivery of the same alert event maps to the same key, so a duplicate
// trigger resolves to the existing instance.
func (in Input) BusinessKey() string {
	return in.AccountID + "-" + in.EventID
}

// Root is the state of one engagement process instance.
type Root struct {
	Input Input

	Usage          UsageSnapshot
	Contract       ContractSnapshot
	Recommendation Recommendation
	Draft          Draft
	Sent           bool
	SummaryRef     string
	Reply          ReplyOutcome
	MeetingRef     string
	OutcomeRef     string
}

// Result summarizes the run's outcome.
func (r *Root) Result() string {
	return fmt.Sprintf(
		"recommended %s plan ($%.2f), reply %s",
		r.Recommendation.Plan,
		r.Recommendation.EstimatedValue,
		r.Reply,
	)
}
