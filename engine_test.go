package engage_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	. "github.com/outreachkit/engage"
	"github.com/outreachkit/engage/fixtures"
	"github.com/outreachkit/engage/internal/x/gomegax"
	"github.com/outreachkit/engage/persistence/memorypersistence"
	"github.com/outreachkit/engage/process"
	"github.com/outreachkit/engage/retry"
	"github.com/outreachkit/engage/upsell"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Engine", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc

		provider *memorypersistence.Provider
		def      *upsell.Definition
		input    upsell.Input
	)

	fastRetry := retry.Policy{
		InitialInterval: 1 * time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
		MaxAttempts:     3,
	}

	// boot constructs an engine hosting def and runs it until runCtx is
	// canceled. The returned channel is closed when Run() returns.
	boot := func(runCtx context.Context) (*Engine, chan struct{}) {
		e := New(
			WithDefinition(def),
			WithPersistence(provider),
			WithRetryPolicy(fastRetry),
			WithLogger(logging.DiscardLogger{}),
		)

		done := make(chan struct{})

		go func() {
			defer close(done)
			e.Run(runCtx)
		}()

		return e, done
	}

	start := func(e *Engine) string {
		id, err := e.Start(
			ctx,
			upsell.ProcessType,
			input.BusinessKey(),
			upsell.NewRoot(input),
		)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(id).NotTo(BeEmpty())

		return id
	}

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)

		provider = &memorypersistence.Provider{}
		def = fixtures.NewDefinition()
		def.ReplyTimeout = 50 * time.Millisecond

		input = upsell.Input{
			AccountID:       "<account>",
			EventID:         "<event>",
			AutomationLevel: upsell.FullAutomation,
			MetricType:      "api_calls",
		}
	})

	AfterEach(func() {
		cancel()
	})

	Describe("func Start()", func() {
		It("runs a fully-automated engagement to completion", func() {
			e, _ := boot(ctx)
			id := start(e)

			inst, err := e.GetResult(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(inst.Status).To(Equal(process.StatusCompleted))
			Expect(stepNames(inst.History)).To(Equal([]string{
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

			r := inst.Root.(*upsell.Root)
			Expect(r.Sent).To(BeTrue())
			Expect(r.Reply).To(Equal(upsell.ReplyPending))
			Expect(r.OutcomeRef).To(Equal("<outcome-ref>"))

			Expect(inst.Result).To(Equal(
				"recommended Professional plan ($15000.00), reply pending",
			))
		})

		It("does not suspend under full automation", func() {
			e, _ := boot(ctx)
			id := start(e)

			inst, err := e.GetResult(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())

			rec := record(inst.History, "await-reply")
			Expect(rec.Output).To(Equal("reply not awaited under full automation"))

			rec = record(inst.History, "schedule-follow-up")
			Expect(rec.Skipped).To(BeTrue())
		})

		It("returns the existing instance ID when started again", func() {
			var sends int32
			def.Sender = &fixtures.CommunicationSenderStub{
				SendFunc: func(context.Context, upsell.Draft) error {
					atomic.AddInt32(&sends, 1)
					return nil
				},
			}

			e, _ := boot(ctx)
			id := start(e)

			again, err := e.Start(
				ctx,
				upsell.ProcessType,
				input.BusinessKey(),
				upsell.NewRoot(input),
			)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(again).To(Equal(id))

			_, err = e.GetResult(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(atomic.LoadInt32(&sends)).To(
				BeEquivalentTo(1),
				"communication must be sent once despite the duplicate start",
			)
		})

		It("returns the existing instance ID after the instance completes", func() {
			e, _ := boot(ctx)
			id := start(e)

			_, err := e.GetResult(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())

			again := start(e)
			Expect(again).To(Equal(id))
		})

		It("returns an error for an unhosted process type", func() {
			e, _ := boot(ctx)

			_, err := e.Start(ctx, "<unknown>", "<key>", nil)
			Expect(err).Should(HaveOccurred())
		})

		It("returns an error for an empty business key", func() {
			e, _ := boot(ctx)

			_, err := e.Start(ctx, upsell.ProcessType, "", nil)
			Expect(err).Should(HaveOccurred())
		})
	})

	Describe("func SendSignal()", func() {
		BeforeEach(func() {
			input.AutomationLevel = upsell.Hybrid
			def.ReplyTimeout = 1 * time.Minute
		})

		It("resumes a suspended instance with a positive reply", func() {
			var schedules int32
			def.Meetings = &fixtures.MeetingSchedulerStub{
				ScheduleFunc: func(context.Context, upsell.Meeting) (string, error) {
					atomic.AddInt32(&schedules, 1)
					return "<meeting-ref>", nil
				},
			}

			e, _ := boot(ctx)
			id := start(e)

			Eventually(func() bool {
				ok, err := e.SendSignal(
					ctx,
					input.BusinessKey(),
					upsell.SignalReply,
					"yes",
				)
				Expect(err).ShouldNot(HaveOccurred())
				return ok
			}).Should(BeTrue())

			inst, err := e.GetResult(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(inst.Status).To(Equal(process.StatusCompleted))

			r := inst.Root.(*upsell.Root)
			Expect(r.Reply).To(Equal(upsell.ReplyYes))
			Expect(r.MeetingRef).To(Equal("<meeting-ref>"))

			rec := record(inst.History, "await-reply")
			Expect(rec.Output).To(Equal("reply classified as yes"))

			rec = record(inst.History, "schedule-follow-up")
			Expect(rec.Skipped).To(BeFalse())

			Expect(atomic.LoadInt32(&schedules)).To(
				BeEquivalentTo(1),
				"the meeting must be scheduled exactly once",
			)
		})

		It("does not schedule a follow-up for a negative reply", func() {
			e, _ := boot(ctx)
			id := start(e)

			Eventually(func() bool {
				ok, err := e.SendSignal(
					ctx,
					input.BusinessKey(),
					upsell.SignalReply,
					"not interested",
				)
				Expect(err).ShouldNot(HaveOccurred())
				return ok
			}).Should(BeTrue())

			inst, err := e.GetResult(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())

			r := inst.Root.(*upsell.Root)
			Expect(r.Reply).To(Equal(upsell.ReplyNo))
			Expect(r.MeetingRef).To(BeEmpty())

			rec := record(inst.History, "schedule-follow-up")
			Expect(rec.Skipped).To(BeTrue())
		})

		It("rejects a signal before any instance is waiting for it", func() {
			e, _ := boot(ctx)

			ok, err := e.SendSignal(
				ctx,
				input.BusinessKey(),
				upsell.SignalReply,
				"yes",
			)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("rejects a duplicate signal", func() {
			e, _ := boot(ctx)
			id := start(e)

			Eventually(func() bool {
				ok, err := e.SendSignal(
					ctx,
					input.BusinessKey(),
					upsell.SignalReply,
					"yes",
				)
				Expect(err).ShouldNot(HaveOccurred())
				return ok
			}).Should(BeTrue())

			ok, err := e.SendSignal(
				ctx,
				input.BusinessKey(),
				upsell.SignalReply,
				"yes",
			)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeFalse())

			_, err = e.GetResult(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())
		})
	})

	Context("when the reply deadline elapses", func() {
		BeforeEach(func() {
			input.AutomationLevel = upsell.HumanIntervention
			def.ReplyTimeout = 20 * time.Millisecond
		})

		It("resumes with the reply still pending", func() {
			e, _ := boot(ctx)
			id := start(e)

			inst, err := e.GetResult(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(inst.Status).To(Equal(process.StatusCompleted))

			r := inst.Root.(*upsell.Root)
			Expect(r.Reply).To(Equal(upsell.ReplyPending))
			Expect(r.Sent).To(BeFalse(), "communication is not sent under human intervention")

			rec := record(inst.History, "await-reply")
			Expect(rec.Output).To(Equal("no reply before the deadline"))

			rec = record(inst.History, "send-communication")
			Expect(rec.Skipped).To(BeTrue())

			rec = record(inst.History, "schedule-follow-up")
			Expect(rec.Skipped).To(BeTrue())
		})
	})

	Context("when an adapter fails transiently", func() {
		BeforeEach(func() {
			def.Usage = &fixtures.UsageSourceStub{
				FetchUsageFunc: func(
					context.Context,
					string, string,
				) (upsell.UsageSnapshot, error) {
					return upsell.UsageSnapshot{}, errors.New("<error>")
				},
			}
		})

		It("substitutes the fallback after exhausting the retry policy", func() {
			e, _ := boot(ctx)
			id := start(e)

			inst, err := e.GetResult(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(inst.Status).To(Equal(process.StatusCompleted))

			rec := record(inst.History, "fetch-usage")
			Expect(rec.Fallback).To(BeTrue())
			Expect(rec.Output).To(Equal("usage source unavailable, substituted default snapshot"))
			Expect(rec.Attempts).To(HaveLen(3))
			Expect(rec.Attempts[0].Error).To(Equal("<error>"))
			Expect(rec.Attempts[0].NextRetryAt.IsZero()).To(BeFalse())
			Expect(rec.Attempts[2].NextRetryAt.IsZero()).To(BeTrue())

			r := inst.Root.(*upsell.Root)
			Expect(r.Usage).To(gomegax.EqualX(
				upsell.DefaultUsageSnapshot(input.AccountID, input.MetricType),
			))
		})
	})

	Context("when an adapter fails permanently", func() {
		BeforeEach(func() {
			def.Summaries = &fixtures.SummaryPosterStub{
				PostFunc: func(
					context.Context,
					upsell.Summary,
				) (string, error) {
					return "", retry.Permanent(errors.New("<error>"))
				},
			}
		})

		It("does not retry before substituting the fallback", func() {
			e, _ := boot(ctx)
			id := start(e)

			inst, err := e.GetResult(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())

			rec := record(inst.History, "post-summary")
			Expect(rec.Fallback).To(BeTrue())
			Expect(rec.Attempts).To(HaveLen(1))

			r := inst.Root.(*upsell.Root)
			Expect(r.SummaryRef).To(BeEmpty())
		})
	})

	Context("when a step without a fallback exhausts its retries", func() {
		BeforeEach(func() {
			def.Ledger = &fixtures.OutcomeLedgerStub{
				RecordFunc: func(
					context.Context,
					upsell.Outcome,
				) (string, error) {
					return "", errors.New("<error>")
				},
			}
		})

		It("terminates the instance as failed", func() {
			e, _ := boot(ctx)
			id := start(e)

			inst, err := e.GetResult(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(inst.Status).To(Equal(process.StatusFailed))
			Expect(inst.FailureReason).To(Equal("step record-outcome: <error>"))

			rec := record(inst.History, "record-outcome")
			Expect(rec.Attempts).To(HaveLen(3))
			Expect(rec.Output).To(BeEmpty())
		})
	})

	Describe("func Cancel()", func() {
		It("cancels a suspended instance", func() {
			input.AutomationLevel = upsell.Hybrid
			def.ReplyTimeout = 1 * time.Minute

			e, _ := boot(ctx)
			id := start(e)

			// Allow the instance to reach its wait point. Cancelation at an
			// earlier step boundary produces the same terminal status.
			time.Sleep(100 * time.Millisecond)

			err := e.Cancel(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())

			inst, err := e.GetResult(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(inst.Status).To(Equal(process.StatusCancelled))
			Expect(record(inst.History, "await-reply")).To(BeNil())
		})

		It("has no effect on a completed instance", func() {
			e, _ := boot(ctx)
			id := start(e)

			inst, err := e.GetResult(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.Status).To(Equal(process.StatusCompleted))

			Expect(e.Cancel(ctx, id)).ShouldNot(HaveOccurred())

			inst, err = e.GetResult(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.Status).To(Equal(process.StatusCompleted))
		})

		It("returns an error for an unknown instance", func() {
			e, _ := boot(ctx)

			err := e.Cancel(ctx, "<unknown>")
			Expect(err).To(Equal(ErrInstanceNotFound))
		})
	})

	Describe("func GetResult()", func() {
		It("returns an error for an unknown instance", func() {
			e, _ := boot(ctx)

			_, err := e.GetResult(ctx, "<unknown>")
			Expect(err).To(Equal(ErrInstanceNotFound))
		})

		It("returns an error if ctx is canceled while waiting", func() {
			input.AutomationLevel = upsell.Hybrid
			def.ReplyTimeout = 1 * time.Minute

			e, _ := boot(ctx)
			id := start(e)

			waitCtx, cancelWait := context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancelWait()

			_, err := e.GetResult(waitCtx, id)
			Expect(err).To(Equal(context.DeadlineExceeded))
		})
	})

	Context("when the engine is restarted", func() {
		It("recovers a suspended instance and honors its signal", func() {
			input.AutomationLevel = upsell.Hybrid
			def.ReplyTimeout = 1 * time.Minute

			runCtx, stop := context.WithCancel(ctx)
			e1, done := boot(runCtx)
			id := start(e1)

			time.Sleep(100 * time.Millisecond)
			stop()
			Eventually(done).Should(BeClosed())

			e2, _ := boot(ctx)

			Eventually(func() bool {
				ok, err := e2.SendSignal(
					ctx,
					input.BusinessKey(),
					upsell.SignalReply,
					"yes",
				)
				Expect(err).ShouldNot(HaveOccurred())
				return ok
			}).Should(BeTrue())

			inst, err := e2.GetResult(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(inst.Status).To(Equal(process.StatusCompleted))
			Expect(inst.InstanceID).To(Equal(id))
			Expect(inst.Root.(*upsell.Root).Reply).To(Equal(upsell.ReplyYes))
		})

		It("resolves a deadline that elapsed while the engine was stopped", func() {
			input.AutomationLevel = upsell.Hybrid
			def.ReplyTimeout = 150 * time.Millisecond

			runCtx, stop := context.WithCancel(ctx)
			e1, done := boot(runCtx)
			id := start(e1)

			time.Sleep(50 * time.Millisecond)
			stop()
			Eventually(done).Should(BeClosed())

			time.Sleep(200 * time.Millisecond)

			e2, _ := boot(ctx)

			inst, err := e2.GetResult(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(inst.Status).To(Equal(process.StatusCompleted))
			Expect(inst.Root.(*upsell.Root).Reply).To(Equal(upsell.ReplyPending))
		})

		It("recovers an instance that never reached its wait point", func() {
			runCtx, stop := context.WithCancel(ctx)
			e1, done := boot(runCtx)
			id := start(e1)

			stop()
			Eventually(done).Should(BeClosed())

			e2, _ := boot(ctx)

			inst, err := e2.GetResult(ctx, id)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(inst.Status).To(Equal(process.StatusCompleted))
		})
	})
})

// stepNames returns the names of the given history records, in order.
func stepNames(history []process.StepRecord) []string {
	names := make([]string, len(history))
	for i, rec := range history {
		names[i] = rec.Name
	}

	return names
}

// record returns the history record with the given step name, or nil if the
// step has not produced a record.
func record(history []process.StepRecord, name string) *process.StepRecord {
	for i := range history {
		if history[i].Name == name {
			return &history[i]
		}
	}

	return nil
}
