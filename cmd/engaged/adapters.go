package main

import (
	"context"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/google/uuid"
	"github.com/outreachkit/engage/upsell"
)

// The adapters below log each outbound action and synthesize the data a real
// integration would return. Each is a seam for wiring a production system:
// the usage source to a metering store, the sender to an email gateway, the
// summary poster to Slack, the scheduler to a calendar, and the ledger to a
// CRM.

type usageSource struct {
	logger logging.Logger
}

func newUsageSource(logger logging.Logger) upsell.UsageSource {
	return &usageSource{logger}
}

func (a *usageSource) FetchUsage(
	_ context.Context,
	accountID, metricType string,
) (upsell.UsageSnapshot, error) {
	logging.Debug(a.logger, "fetching %s usage for account %s", metricType, accountID)

	u := upsell.DefaultUsageSnapshot(accountID, metricType)
	u.Source = "metering"

	return u, nil
}

type contractStore struct {
	logger logging.Logger
}

func newContractStore(logger logging.Logger) upsell.ContractStore {
	return &contractStore{logger}
}

func (a *contractStore) FetchContract(
	_ context.Context,
	accountID string,
) (upsell.ContractSnapshot, error) {
	logging.Debug(a.logger, "fetching contract for account %s", accountID)

	return upsell.DefaultContractSnapshot(accountID, time.Now()), nil
}

type recommender struct {
	logger logging.Logger
	tiers  []upsell.Tier
}

func newRecommender(logger logging.Logger, tiers []upsell.Tier) upsell.Recommender {
	if len(tiers) == 0 {
		tiers = upsell.DefaultTiers
	}

	return &recommender{logger, tiers}
}

func (a *recommender) Recommend(
	_ context.Context,
	u upsell.UsageSnapshot,
	c upsell.ContractSnapshot,
	_ upsell.AutomationLevel,
) (upsell.Recommendation, error) {
	logging.Debug(a.logger, "producing recommendation for account %s", u.AccountID)

	return upsell.FallbackRecommendation(u, c, a.tiers), nil
}

type communicationSender struct {
	logger logging.Logger
}

func newCommunicationSender(logger logging.Logger) upsell.CommunicationSender {
	return &communicationSender{logger}
}

func (a *communicationSender) Send(_ context.Context, d upsell.Draft) error {
	logging.Log(a.logger, "sending %q to %s", d.Subject, d.Recipient)
	return nil
}

type summaryPoster struct {
	logger logging.Logger
}

func newSummaryPoster(logger logging.Logger) upsell.SummaryPoster {
	return &summaryPoster{logger}
}

func (a *summaryPoster) Post(_ context.Context, s upsell.Summary) (string, error) {
	ref := "slack-" + uuid.NewString()
	logging.Log(a.logger, "posting summary to %s (%s)", s.Channel, ref)

	return ref, nil
}

type meetingScheduler struct {
	logger logging.Logger
}

func newMeetingScheduler(logger logging.Logger) upsell.MeetingScheduler {
	return &meetingScheduler{logger}
}

func (a *meetingScheduler) Schedule(_ context.Context, m upsell.Meeting) (string, error) {
	ref := "meeting-" + uuid.NewString()
	logging.Log(
		a.logger,
		"scheduling %q at %s (%s)",
		m.Topic,
		m.StartTime.Format("2006-01-02 15:04"),
		ref,
	)

	return ref, nil
}

type outcomeLedger struct {
	logger logging.Logger
}

func newOutcomeLedger(logger logging.Logger) upsell.OutcomeLedger {
	return &outcomeLedger{logger}
}

func (a *outcomeLedger) Record(_ context.Context, o upsell.Outcome) (string, error) {
	ref := "opportunity-" + uuid.NewString()
	logging.Log(
		a.logger,
		"recording %s opportunity for account %s, status %s (%s)",
		o.OpportunityType,
		o.AccountID,
		o.Status,
		ref,
	)

	return ref, nil
}
