package upsell_test

import (
	"context"
	"errors"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/outreachkit/engage/fixtures"
	"github.com/outreachkit/engage/process"
	. "github.com/outreachkit/engage/upsell"
)

var _ = Describe("type Definition", func() {
	var (
		ctx   context.Context
		def   *Definition
		root  *Root
		scope *process.Scope
	)

	// step returns the definition's step with the given name.
	step := func(name string) process.Step {
		for _, s := range def.Steps() {
			if s.Name == name {
				return s
			}
		}

		Fail("no step named " + name)
		return process.Step{}
	}

	BeforeEach(func() {
		ctx = context.Background()
		def = fixtures.NewDefinition()

		root = NewRoot(Input{
			AccountID:       "<account>",
			EventID:         "<event>",
			AutomationLevel: Hybrid,
			MetricType:      "trade_volume",
		})

		scope = &process.Scope{
			Instance: &process.Instance{
				InstanceID:  "<instance>",
				ProcessType: ProcessType,
				BusinessKey: root.Input.BusinessKey(),
				CreatedAt:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			},
			Root:   root,
			Logger: logging.DiscardLogger{},
		}
	})

	Describe("func Steps()", func() {
		It("returns the fixed step table in order", func() {
			var names []string
			for _, s := range def.Steps() {
				names = append(names, s.Name)
			}

			Expect(names).To(Equal([]string{
				"fetch-usage",
				"fetch-contract",
				"recommend",
				"compose-draft",
				"send-communication",
				"post-summary",
				"await-reply",
				"schedule-follow-up",
				"record-outcome",
			}))
		})

		It("marks only the reply step as a wait point", func() {
			for _, s := range def.Steps() {
				if s.Name == "await-reply" {
					Expect(s.IsWait()).To(BeTrue())
					continue
				}

				Expect(s.IsWait()).To(BeFalse(), s.Name)
			}
		})
	})

	Describe("step fetch-usage", func() {
		It("stores the fetched snapshot on the root", func() {
			def.Usage = &fixtures.UsageSourceStub{
				FetchUsageFunc: func(
					_ context.Context,
					accountID, metricType string,
				) (UsageSnapshot, error) {
					Expect(accountID).To(Equal("<account>"))
					Expect(metricType).To(Equal("trade_volume"))

					return UsageSnapshot{
						AccountID:    accountID,
						MetricType:   metricType,
						CurrentUsage: 220.5,
						Threshold:    100.0,
						Trend:        "increasing",
					}, nil
				},
			}

			_, err := step("fetch-usage").Execute(ctx, scope)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(root.Usage.CurrentUsage).To(Equal(220.5))
		})

		It("substitutes the default snapshot on recovery", func() {
			out, err := step("fetch-usage").Recover(scope, errors.New("<error>"))
			Expect(err).ShouldNot(HaveOccurred())
			Expect(out).To(ContainSubstring("default"))
			Expect(root.Usage).To(Equal(
				DefaultUsageSnapshot("<account>", "trade_volume"),
			))
		})
	})

	Describe("step fetch-contract", func() {
		It("substitutes the default snapshot on recovery, anchored to the instance's creation time", func() {
			_, err := step("fetch-contract").Recover(scope, errors.New("<error>"))
			Expect(err).ShouldNot(HaveOccurred())
			Expect(root.Contract).To(Equal(
				DefaultContractSnapshot("<account>", scope.Instance.CreatedAt),
			))
		})
	})

	Describe("step recommend", func() {
		It("falls back to the rule-based recommendation on recovery", func() {
			root.Usage = DefaultUsageSnapshot("<account>", "trade_volume")
			root.Contract = DefaultContractSnapshot("<account>", scope.Instance.CreatedAt)

			out, err := step("recommend").Recover(scope, errors.New("<error>"))
			Expect(err).ShouldNot(HaveOccurred())
			Expect(out).To(ContainSubstring("fallback"))
			Expect(root.Recommendation.Plan).To(Equal("Professional"))
		})
	})

	Describe("step compose-draft", func() {
		It("composes the draft from the root state", func() {
			root.Contract.PrimaryContact = "owner@account.example"
			root.Recommendation.Plan = "Professional"

			_, err := step("compose-draft").Execute(ctx, scope)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(root.Draft.Recipient).To(Equal("owner@account.example"))
			Expect(root.Draft.Subject).To(Equal(
				"Growth Opportunity: Upgrade to Professional Plan",
			))
		})
	})

	Describe("step send-communication", func() {
		It("applies under full automation", func() {
			root.Input.AutomationLevel = FullAutomation
			Expect(step("send-communication").Applies(scope)).To(BeTrue())
		})

		It("applies under hybrid automation", func() {
			Expect(step("send-communication").Applies(scope)).To(BeTrue())
		})

		It("does not apply under human intervention", func() {
			root.Input.AutomationLevel = HumanIntervention
			Expect(step("send-communication").Applies(scope)).To(BeFalse())
		})

		It("marks the root as sent on success", func() {
			_, err := step("send-communication").Execute(ctx, scope)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(root.Sent).To(BeTrue())
		})

		It("records sent=false on recovery", func() {
			root.Sent = true

			_, err := step("send-communication").Recover(scope, errors.New("<error>"))
			Expect(err).ShouldNot(HaveOccurred())
			Expect(root.Sent).To(BeFalse())
		})
	})

	Describe("step post-summary", func() {
		It("stores the posted reference", func() {
			def.Summaries = &fixtures.SummaryPosterStub{
				PostFunc: func(_ context.Context, s Summary) (string, error) {
					Expect(s.Channel).To(Equal(SummaryChannel))
					return "<ref>", nil
				},
			}

			_, err := step("post-summary").Execute(ctx, scope)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(root.SummaryRef).To(Equal("<ref>"))
		})

		It("continues with an empty reference on recovery", func() {
			root.SummaryRef = "<stale>"

			_, err := step("post-summary").Recover(scope, errors.New("<error>"))
			Expect(err).ShouldNot(HaveOccurred())
			Expect(root.SummaryRef).To(BeEmpty())
		})
	})

	Describe("step await-reply", func() {
		var wait *process.WaitSpec

		BeforeEach(func() {
			wait = step("await-reply").Wait
		})

		It("waits on the reply signal with the default deadline", func() {
			Expect(wait.SignalName).To(Equal(SignalReply))
			Expect(wait.Timeout).To(Equal(DefaultReplyTimeout))
		})

		It("honors the reply timeout override", func() {
			def.ReplyTimeout = time.Hour
			Expect(step("await-reply").Wait.Timeout).To(Equal(time.Hour))
		})

		It("applies under hybrid automation", func() {
			Expect(wait.Applies(scope)).To(BeTrue())
		})

		It("applies under human intervention", func() {
			root.Input.AutomationLevel = HumanIntervention
			Expect(wait.Applies(scope)).To(BeTrue())
		})

		It("does not apply under full automation", func() {
			root.Input.AutomationLevel = FullAutomation
			Expect(wait.Applies(scope)).To(BeFalse())
		})

		It("classifies the signal payload on resume", func() {
			out, err := wait.OnResume(scope, "Interested", false)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(out).To(ContainSubstring("yes"))
			Expect(root.Reply).To(Equal(ReplyYes))
		})

		It("resolves to a pending outcome on timeout", func() {
			root.Reply = ReplyMaybe

			_, err := wait.OnResume(scope, "", true)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(root.Reply).To(Equal(ReplyPending))
		})
	})

	Describe("step schedule-follow-up", func() {
		It("applies only to an affirmative reply", func() {
			root.Reply = ReplyYes
			Expect(step("schedule-follow-up").Applies(scope)).To(BeTrue())

			root.Reply = ReplyNo
			Expect(step("schedule-follow-up").Applies(scope)).To(BeFalse())

			root.Reply = ReplyPending
			Expect(step("schedule-follow-up").Applies(scope)).To(BeFalse())
		})

		It("stores the meeting reference", func() {
			root.Recommendation.Plan = "Professional"

			def.Meetings = &fixtures.MeetingSchedulerStub{
				ScheduleFunc: func(_ context.Context, m Meeting) (string, error) {
					Expect(m.Topic).To(Equal(
						"Upsell Discussion - <account> - Professional Plan",
					))
					Expect(m.Duration).To(Equal(30 * time.Minute))
					return "<meeting-ref>", nil
				},
			}

			_, err := step("schedule-follow-up").Execute(ctx, scope)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(root.MeetingRef).To(Equal("<meeting-ref>"))
		})

		It("continues without a reference on recovery", func() {
			_, err := step("schedule-follow-up").Recover(scope, errors.New("<error>"))
			Expect(err).ShouldNot(HaveOccurred())
			Expect(root.MeetingRef).To(BeEmpty())
		})
	})

	Describe("step record-outcome", func() {
		It("has no recovery, making a ledger failure fatal", func() {
			Expect(step("record-outcome").Recover).To(BeNil())
		})

		It("records the outcome with the reply status", func() {
			root.Reply = ReplyYes
			root.MeetingRef = "<meeting-ref>"
			root.Recommendation.EstimatedValue = 15000.0

			def.Ledger = &fixtures.OutcomeLedgerStub{
				RecordFunc: func(_ context.Context, o Outcome) (string, error) {
					Expect(o.AccountID).To(Equal("<account>"))
					Expect(o.EventID).To(Equal("<event>"))
					Expect(o.OpportunityType).To(Equal(OpportunityType))
					Expect(o.Status).To(Equal(ReplyYes))
					Expect(o.EstimatedValue).To(Equal(15000.0))
					Expect(o.Notes).To(ContainSubstring("scheduled"))
					return "<outcome-ref>", nil
				},
			}

			_, err := step("record-outcome").Execute(ctx, scope)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(root.OutcomeRef).To(Equal("<outcome-ref>"))
		})

		It("propagates the ledger error", func() {
			def.Ledger = &fixtures.OutcomeLedgerStub{
				RecordFunc: func(context.Context, Outcome) (string, error) {
					return "", errors.New("<ledger-error>")
				},
			}

			_, err := step("record-outcome").Execute(ctx, scope)
			Expect(err).To(MatchError("<ledger-error>"))
		})
	})

	Describe("func BusinessKey()", func() {
		It("derives the key from the account and event", func() {
			Expect(root.Input.BusinessKey()).To(Equal("<account>-<event>"))
		})
	})
})
