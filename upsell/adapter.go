package upsell

import "context"

// UsageSource fetches usage snapshots from the usage system.
type UsageSource interface {
	// FetchUsage returns the account's current usage of the given metric.
	FetchUsage(ctx context.Context, accountID, metricType string) (UsageSnapshot, error)
}

// ContractStore fetches contract snapshots from the contract system.
type ContractStore interface {
	// FetchContract returns the account's current contract.
	FetchContract(ctx context.Context, accountID string) (ContractSnapshot, error)
}

// Recommender produces a plan recommendation for an account.
type Recommender interface {
	// Recommend analyses the usage and contract snapshots and returns a
	// recommendation.
	Recommend(
		ctx context.Context,
		u UsageSnapshot,
		c ContractSnapshot,
		l AutomationLevel,
	) (Recommendation, error)
}

// CommunicationSender delivers a draft to the account's contact.
type CommunicationSender interface {
	// Send delivers the draft.
	Send(ctx context.Context, d Draft) error
}

// SummaryPoster publishes internal summaries.
type SummaryPoster interface {
	// Post publishes the summary, returning a reference to the posted
	// message.
	Post(ctx context.Context, s Summary) (string, error)
}

// MeetingScheduler schedules follow-up meetings.
type MeetingScheduler interface {
	// Schedule books the meeting, returning a reference to it.
	Schedule(ctx context.Context, m Meeting) (string, error)
}

// OutcomeLedger records engagement outcomes.
//
// The ledger is the audit-of-record; a write failure is fatal to the
// process.
type OutcomeLedger interface {
	// Record appends the outcome to the ledger, returning a reference to the
	// entry.
	Record(ctx context.Context, o Outcome) (string, error)
}
