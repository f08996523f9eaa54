package engage

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/outreachkit/engage/fixtures"
	"github.com/outreachkit/engage/process"
)

var _ = Describe("func marshalInstance() and unmarshalInstance()", func() {
	var inst *process.Instance

	BeforeEach(func() {
		inst = &process.Instance{
			InstanceID:  "<instance>",
			ProcessType: "<process>",
			BusinessKey: "<key>",
			Status:      process.StatusSuspended,
			CurrentStep: 3,
			History: []process.StepRecord{
				{
					Name:   "<step>",
					Output: "<output>",
					Attempts: []process.Attempt{
						{Number: 1},
					},
				},
			},
			Wait: &process.PendingWait{
				Step:       "<wait-step>",
				SignalName: "<signal>",
				Deadline:   time.Now().Add(time.Hour).UTC(),
			},
			Root:      &fixtures.ProcessRoot{Value: "<value>"},
			CreatedAt: time.Now().Add(-time.Minute).UTC(),
			UpdatedAt: time.Now().UTC(),
		}
	})

	It("round-trips an instance through its persisted representation", func() {
		rec, err := marshalInstance(fixtures.Marshaler, inst, 7)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(rec.ProcessType).To(Equal("<process>"))
		Expect(rec.BusinessKey).To(Equal("<key>"))
		Expect(rec.Revision).To(BeNumerically("==", 7))
		Expect(rec.Terminal).To(BeFalse())

		out, err := unmarshalInstance(fixtures.Marshaler, rec)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(out).To(Equal(inst))
	})

	It("marks terminal instances as such", func() {
		inst.Status = process.StatusCompleted
		inst.Wait = nil

		rec, err := marshalInstance(fixtures.Marshaler, inst, 9)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(rec.Terminal).To(BeTrue())
	})

	It("returns a pointer to the root even though it is persisted by value", func() {
		rec, err := marshalInstance(fixtures.Marshaler, inst, 0)
		Expect(err).ShouldNot(HaveOccurred())

		out, err := unmarshalInstance(fixtures.Marshaler, rec)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(out.Root).To(Equal(&fixtures.ProcessRoot{Value: "<value>"}))
	})

	It("panics if the persisted status is not recognized", func() {
		inst.Status = "<invalid>"

		rec, err := marshalInstance(fixtures.Marshaler, inst, 0)
		Expect(err).ShouldNot(HaveOccurred())

		Expect(func() {
			unmarshalInstance(fixtures.Marshaler, rec)
		}).To(Panic())
	})
})
