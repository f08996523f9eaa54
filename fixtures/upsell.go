package fixtures

import (
	"context"

	"github.com/outreachkit/engage/upsell"
)

// UsageSourceStub is a test implementation of the upsell.UsageSource
// interface.
type UsageSourceStub struct {
	upsell.UsageSource

	FetchUsageFunc func(context.Context, string, string) (upsell.UsageSnapshot, error)
}

// FetchUsage returns the account's current usage of the given metric.
func (s *UsageSourceStub) FetchUsage(
	ctx context.Context,
	accountID, metricType string,
) (upsell.UsageSnapshot, error) {
	if s.FetchUsageFunc != nil {
		return s.FetchUsageFunc(ctx, accountID, metricType)
	}

	if s.UsageSource != nil {
		return s.UsageSource.FetchUsage(ctx, accountID, metricType)
	}

	return upsell.DefaultUsageSnapshot(accountID, metricType), nil
}

// ContractStoreStub is a test implementation of the upsell.ContractStore
// interface.
type ContractStoreStub struct {
	upsell.ContractStore

	FetchContractFunc func(context.Context, string) (upsell.ContractSnapshot, error)
}

// FetchContract returns the account's current contract.
func (s *ContractStoreStub) FetchContract(
	ctx context.Context,
	accountID string,
) (upsell.ContractSnapshot, error) {
	if s.FetchContractFunc != nil {
		return s.FetchContractFunc(ctx, accountID)
	}

	if s.ContractStore != nil {
		return s.ContractStore.FetchContract(ctx, accountID)
	}

	return upsell.ContractSnapshot{
		AccountID:        accountID,
		CurrentPlan:      "Basic",
		CurrentSpend:     99.0,
		PrimaryContact:   "contact@company.com",
		SecondaryContact: "billing@company.com",
	}, nil
}

// RecommenderStub is a test implementation of the upsell.Recommender
// interface.
type RecommenderStub struct {
	upsell.Recommender

	RecommendFunc func(
		context.Context,
		upsell.UsageSnapshot,
		upsell.ContractSnapshot,
		upsell.AutomationLevel,
	) (upsell.Recommendation, error)
}

// Recommend analyses the usage and contract snapshots and returns a
// recommendation.
func (s *RecommenderStub) Recommend(
	ctx context.Context,
	u upsell.UsageSnapshot,
	c upsell.ContractSnapshot,
	l upsell.AutomationLevel,
) (upsell.Recommendation, error) {
	if s.RecommendFunc != nil {
		return s.RecommendFunc(ctx, u, c, l)
	}

	if s.Recommender != nil {
		return s.Recommender.Recommend(ctx, u, c, l)
	}

	return upsell.Recommendation{
		Plan:           "Professional",
		EstimatedValue: 15000.0,
		Justification:  "<justification>",
	}, nil
}

// CommunicationSenderStub is a test implementation of the
// upsell.CommunicationSender interface.
type CommunicationSenderStub struct {
	upsell.CommunicationSender

	SendFunc func(context.Context, upsell.Draft) error
}

// Send delivers the draft.
func (s *CommunicationSenderStub) Send(ctx context.Context, d upsell.Draft) error {
	if s.SendFunc != nil {
		return s.SendFunc(ctx, d)
	}

	if s.CommunicationSender != nil {
		return s.CommunicationSender.Send(ctx, d)
	}

	return nil
}

// SummaryPosterStub is a test implementation of the upsell.SummaryPoster
// interface.
type SummaryPosterStub struct {
	upsell.SummaryPoster

	PostFunc func(context.Context, upsell.Summary) (string, error)
}

// Post publishes the summary.
func (s *SummaryPosterStub) Post(ctx context.Context, sum upsell.Summary) (string, error) {
	if s.PostFunc != nil {
		return s.PostFunc(ctx, sum)
	}

	if s.SummaryPoster != nil {
		return s.SummaryPoster.Post(ctx, sum)
	}

	return "<summary-ref>", nil
}

// MeetingSchedulerStub is a test implementation of the
// upsell.MeetingScheduler interface.
type MeetingSchedulerStub struct {
	upsell.MeetingScheduler

	ScheduleFunc func(context.Context, upsell.Meeting) (string, error)
}

// Schedule books the meeting.
func (s *MeetingSchedulerStub) Schedule(ctx context.Context, m upsell.Meeting) (string, error) {
	if s.ScheduleFunc != nil {
		return s.ScheduleFunc(ctx, m)
	}

	if s.MeetingScheduler != nil {
		return s.MeetingScheduler.Schedule(ctx, m)
	}

	return "<meeting-ref>", nil
}

// OutcomeLedgerStub is a test implementation of the upsell.OutcomeLedger
// interface.
type OutcomeLedgerStub struct {
	upsell.OutcomeLedger

	RecordFunc func(context.Context, upsell.Outcome) (string, error)
}

// Record appends the outcome to the ledger.
func (s *OutcomeLedgerStub) Record(ctx context.Context, o upsell.Outcome) (string, error) {
	if s.RecordFunc != nil {
		return s.RecordFunc(ctx, o)
	}

	if s.OutcomeLedger != nil {
		return s.OutcomeLedger.Record(ctx, o)
	}

	return "<outcome-ref>", nil
}

// NewDefinition returns an engagement process definition backed entirely by
// stub adapters.
func NewDefinition() *upsell.Definition {
	return &upsell.Definition{
		Usage:       &UsageSourceStub{},
		Contracts:   &ContractStoreStub{},
		Recommender: &RecommenderStub{},
		Sender:      &CommunicationSenderStub{},
		Summaries:   &SummaryPosterStub{},
		Meetings:    &MeetingSchedulerStub{},
		Ledger:      &OutcomeLedgerStub{},
	}
}
