package upsell

import (
	"context"
	"fmt"
	"time"

	"github.com/outreachkit/engage/process"
	"github.com/outreachkit/engage/retry"
)

// ProcessType is the name of the engagement process.
const ProcessType = "upsell"

// DefaultReplyTimeout is the default deadline for the account's reply.
const DefaultReplyTimeout = 24 * time.Hour

// SignalReply is the name of the signal that delivers the account's reply.
const SignalReply = "reply"

// Definition is the engagement process definition.
//
// All adapter fields are required. Tiers and ReplyTimeout are optional
// overrides of the defaults.
type Definition struct {
	Usage       UsageSource
	Contracts   ContractStore
	Recommender Recommender
	Sender      CommunicationSender
	Summaries   SummaryPoster
	Meetings    MeetingScheduler
	Ledger      OutcomeLedger

	// Tiers is the plan tier ladder used by the rule-based recommendation
	// fallback. If it is empty, DefaultTiers is used.
	Tiers []Tier

	// ReplyTimeout is the deadline for the account's reply. If it is zero,
	// DefaultReplyTimeout is used.
	ReplyTimeout time.Duration

	// Retry is the retry policy applied to the adapter-backed steps. A zero
	// policy uses the engine's default.
	Retry retry.Policy
}

// NewRoot returns the initial state for an engagement triggered by in.
func NewRoot(in Input) *Root {
	return &Root{
		Input: in,
		Reply: ReplyPending,
	}
}

// ProcessType returns a unique name identifying the process.
func (d *Definition) ProcessType() string {
	return ProcessType
}

// NewRoot returns a new, zero-valued root state for an instance.
func (d *Definition) NewRoot() process.Root {
	return NewRoot(Input{})
}

// Steps returns the step table, in execution order.
func (d *Definition) Steps() []process.Step {
	return []process.Step{
		{
			Name:    "fetch-usage",
			Execute: d.fetchUsage,
			Recover: d.defaultUsage,
			Retry:   d.Retry,
		},
		{
			Name:    "fetch-contract",
			Execute: d.fetchContract,
			Recover: d.defaultContract,
			Retry:   d.Retry,
		},
		{
			Name:    "recommend",
			Execute: d.recommend,
			Recover: d.fallbackRecommend,
			Retry:   d.Retry,
		},
		{
			Name:    "compose-draft",
			Execute: d.composeDraft,
		},
		{
			Name:    "send-communication",
			Applies: sendApplies,
			Execute: d.sendCommunication,
			Recover: d.sendFailed,
			Retry:   d.Retry,
		},
		{
			Name:    "post-summary",
			Execute: d.postSummary,
			Recover: d.summaryFailed,
			Retry:   d.Retry,
		},
		{
			Name: "await-reply",
			Wait: &process.WaitSpec{
				SignalName: SignalReply,
				Timeout:    d.replyTimeout(),
				Applies:    waitApplies,
				OnResume:   resumeReply,
			},
		},
		{
			Name:    "schedule-follow-up",
			Applies: scheduleApplies,
			Execute: d.scheduleFollowUp,
			Recover: d.scheduleFailed,
			Retry:   d.Retry,
		},
		{
			Name:    "record-outcome",
			Execute: d.recordOutcome,
			Retry:   d.Retry,
			// No recovery; the ledger is the audit-of-record and a write
			// failure terminates the instance as failed.
		},
	}
}

func (d *Definition) replyTimeout() time.Duration {
	if d.ReplyTimeout > 0 {
		return d.ReplyTimeout
	}

	return DefaultReplyTimeout
}

func (d *Definition) tiers() []Tier {
	if len(d.Tiers) > 0 {
		return d.Tiers
	}

	return DefaultTiers
}

// root returns s's root state with its concrete type.
func root(s *process.Scope) *Root {
	return s.Root.(*Root)
}

func (d *Definition) fetchUsage(ctx context.Context, s *process.Scope) (string, error) {
	r := root(s)

	u, err := d.Usage.FetchUsage(ctx, r.Input.AccountID, r.Input.MetricType)
	if err != nil {
		return "", err
	}

	r.Usage = u

	return fmt.Sprintf(
		"usage %.1f %s (%s)",
		u.CurrentUsage,
		u.MetricType,
		u.Trend,
	), nil
}

func (d *Definition) defaultUsage(s *process.Scope, _ error) (string, error) {
	r := root(s)
	r.Usage = DefaultUsageSnapshot(r.Input.AccountID, r.Input.MetricType)

	return "usage source unavailable, substituted default snapshot", nil
}

func (d *Definition) fetchContract(ctx context.Context, s *process.Scope) (string, error) {
	r := root(s)

	c, err := d.Contracts.FetchContract(ctx, r.Input.AccountID)
	if err != nil {
		return "", err
	}

	r.Contract = c

	return fmt.Sprintf(
		"current plan %s ($%.2f)",
		c.CurrentPlan,
		c.CurrentSpend,
	), nil
}

func (d *Definition) defaultContract(s *process.Scope, _ error) (string, error) {
	r := root(s)
	r.Contract = DefaultContractSnapshot(r.Input.AccountID, s.Instance.CreatedAt)

	return "contract store unavailable, substituted default snapshot", nil
}

func (d *Definition) recommend(ctx context.Context, s *process.Scope) (string, error) {
	r := root(s)

	rec, err := d.Recommender.Recommend(ctx, r.Usage, r.Contract, r.Input.AutomationLevel)
	if err != nil {
		return "", err
	}

	r.Recommendation = rec

	return fmt.Sprintf(
		"recommending %s plan ($%.2f)",
		rec.Plan,
		rec.EstimatedValue,
	), nil
}

func (d *Definition) fallbackRecommend(s *process.Scope, _ error) (string, error) {
	r := root(s)
	r.Recommendation = FallbackRecommendation(r.Usage, r.Contract, d.tiers())

	return fmt.Sprintf(
		"recommending %s plan ($%.2f) via rule-based fallback",
		r.Recommendation.Plan,
		r.Recommendation.EstimatedValue,
	), nil
}

func (d *Definition) composeDraft(_ context.Context, s *process.Scope) (string, error) {
	r := root(s)
	r.Draft = NewDraft(r.Usage, r.Contract, r.Recommendation)

	return fmt.Sprintf("draft composed for %s", r.Draft.Recipient), nil
}

func sendApplies(s *process.Scope) bool {
	switch root(s).Input.AutomationLevel {
	case FullAutomation, Hybrid:
		return true
	default:
		return false
	}
}

func (d *Definition) sendCommunication(ctx context.Context, s *process.Scope) (string, error) {
	r := root(s)

	if err := d.Sender.Send(ctx, r.Draft); err != nil {
		return "", err
	}

	r.Sent = true

	return fmt.Sprintf("communication sent to %s", r.Draft.Recipient), nil
}

func (d *Definition) sendFailed(s *process.Scope, _ error) (string, error) {
	root(s).Sent = false

	return "communication not sent, sender unavailable", nil
}

func (d *Definition) postSummary(ctx context.Context, s *process.Scope) (string, error) {
	r := root(s)

	ref, err := d.Summaries.Post(ctx, NewSummary(r.Usage, r.Contract, r.Recommendation, r.Sent))
	if err != nil {
		return "", err
	}

	r.SummaryRef = ref

	return fmt.Sprintf("summary posted to %s", SummaryChannel), nil
}

func (d *Definition) summaryFailed(s *process.Scope, _ error) (string, error) {
	root(s).SummaryRef = ""

	return "summary not posted, continuing without a reference", nil
}

func waitApplies(s *process.Scope) bool {
	return root(s).Input.AutomationLevel != FullAutomation
}

func resumeReply(s *process.Scope, payload string, timedOut bool) (string, error) {
	r := root(s)

	if timedOut {
		r.Reply = ReplyPending

		if r.Input.AutomationLevel == FullAutomation {
			return "reply not awaited under full automation", nil
		}

		return "no reply before the deadline", nil
	}

	r.Reply = ClassifyReply(payload)

	return fmt.Sprintf("reply classified as %s", r.Reply), nil
}

func scheduleApplies(s *process.Scope) bool {
	return root(s).Reply == ReplyYes
}

func (d *Definition) scheduleFollowUp(ctx context.Context, s *process.Scope) (string, error) {
	r := root(s)

	m := NewMeeting(
		r.Input.AccountID,
		r.Contract,
		r.Recommendation,
		time.Now().Add(24*time.Hour),
	)

	ref, err := d.Meetings.Schedule(ctx, m)
	if err != nil {
		return "", err
	}

	r.MeetingRef = ref

	return fmt.Sprintf("follow-up meeting scheduled: %s", ref), nil
}

func (d *Definition) scheduleFailed(s *process.Scope, _ error) (string, error) {
	root(s).MeetingRef = ""

	return "follow-up not scheduled, scheduler unavailable", nil
}

func (d *Definition) recordOutcome(ctx context.Context, s *process.Scope) (string, error) {
	r := root(s)

	o := NewOutcome(
		r.Input,
		r.Recommendation,
		r.Reply,
		r.MeetingRef != "",
		time.Now(),
	)

	ref, err := d.Ledger.Record(ctx, o)
	if err != nil {
		return "", err
	}

	r.OutcomeRef = ref

	return fmt.Sprintf("outcome recorded: %s", ref), nil
}
