package process_test

import (
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
	. "github.com/outreachkit/engage/process"
)

var _ = Describe("type Status", func() {
	table.DescribeTable(
		"func IsTerminal()",
		func(s Status, expect bool) {
			Expect(s.IsTerminal()).To(Equal(expect))
		},
		table.Entry("pending", StatusPending, false),
		table.Entry("running", StatusRunning, false),
		table.Entry("suspended", StatusSuspended, false),
		table.Entry("completed", StatusCompleted, true),
		table.Entry("failed", StatusFailed, true),
		table.Entry("timed-out", StatusTimedOut, true),
		table.Entry("cancelled", StatusCancelled, true),
	)

	Describe("func MustValidate()", func() {
		It("does not panic for a recognized status", func() {
			Expect(func() {
				StatusSuspended.MustValidate()
			}).NotTo(Panic())
		})

		It("panics for an unrecognized status", func() {
			Expect(func() {
				Status("<invalid>").MustValidate()
			}).To(Panic())
		})
	})
})

var _ = Describe("type Step", func() {
	Describe("func IsWait()", func() {
		It("returns true if the step is a suspend point", func() {
			s := Step{Wait: &WaitSpec{}}
			Expect(s.IsWait()).To(BeTrue())
		})

		It("returns false if the step is executable", func() {
			var s Step
			Expect(s.IsWait()).To(BeFalse())
		})
	})
})
