package providertest

import (
	"github.com/dogmatiq/marshalkit"
	"github.com/onsi/ginkgo"
	"github.com/onsi/gomega"
	"github.com/outreachkit/engage/persistence"
)

// declareDataStoreTests declares a suite of tests for the process-instance
// repository behavior of persistence.DataStore implementations.
func declareDataStoreTests(tc *TestContext) {
	ginkgo.Describe("type DataStore (interface)", func() {
		var (
			dataStore persistence.DataStore
			tearDown  func()
			inst      persistence.ProcessInstance
		)

		ginkgo.BeforeEach(func() {
			dataStore, tearDown = tc.SetupDataStore()

			inst = persistence.ProcessInstance{
				ProcessType: "<process>",
				BusinessKey: "<key>",
				InstanceID:  "f2455a6e-0b95-4abd-9e5b-da64a7e07a63",
				Packet: marshalkit.Packet{
					MediaType: "application/json; type=Snapshot",
					Data:      []byte(`{"Status":"running"}`),
				},
			}
		})

		ginkgo.AfterEach(func() {
			tearDown()
		})

		ginkgo.Describe("func LoadProcessInstance()", func() {
			ginkgo.It("returns an instance with a revision of zero if the instance does not exist", func() {
				loaded, err := dataStore.LoadProcessInstance(tc.Context, "<process>", "<key>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(loaded).To(gomega.Equal(
					persistence.ProcessInstance{
						ProcessType: "<process>",
						BusinessKey: "<key>",
					},
				))
			})

			ginkgo.It("returns the instance as currently persisted", func() {
				err := dataStore.SaveProcessInstance(tc.Context, inst)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				loaded, err := dataStore.LoadProcessInstance(tc.Context, "<process>", "<key>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				expect := inst
				expect.Revision = 1
				gomega.Expect(loaded).To(gomega.Equal(expect))
			})
		})

		ginkgo.Describe("func LoadProcessInstanceByID()", func() {
			ginkgo.It("reports that the instance does not exist", func() {
				_, ok, err := dataStore.LoadProcessInstanceByID(tc.Context, inst.InstanceID)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeFalse())
			})

			ginkgo.It("returns the instance as currently persisted", func() {
				err := dataStore.SaveProcessInstance(tc.Context, inst)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				loaded, ok, err := dataStore.LoadProcessInstanceByID(tc.Context, inst.InstanceID)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeTrue())

				expect := inst
				expect.Revision = 1
				gomega.Expect(loaded).To(gomega.Equal(expect))
			})
		})

		ginkgo.Describe("func LoadActiveProcessInstances()", func() {
			ginkgo.It("returns an empty result if no instances exist", func() {
				active, err := dataStore.LoadActiveProcessInstances(tc.Context)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(active).To(gomega.BeEmpty())
			})

			ginkgo.It("returns only non-terminal instances", func() {
				err := dataStore.SaveProcessInstance(tc.Context, inst)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				done := inst
				done.BusinessKey = "<done-key>"
				done.InstanceID = "40d8fdcc-713c-4d33-95cb-8d74bc2b63d4"
				done.Terminal = true

				err = dataStore.SaveProcessInstance(tc.Context, done)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				active, err := dataStore.LoadActiveProcessInstances(tc.Context)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				expect := inst
				expect.Revision = 1
				gomega.Expect(active).To(gomega.ConsistOf(expect))
			})
		})

		ginkgo.Describe("func SaveProcessInstance()", func() {
			ginkgo.It("creates the instance when saved at revision zero", func() {
				err := dataStore.SaveProcessInstance(tc.Context, inst)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				loaded, err := dataStore.LoadProcessInstance(tc.Context, "<process>", "<key>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(loaded.Revision).To(gomega.BeEquivalentTo(1))
			})

			ginkgo.It("returns a conflict when creating an instance that already exists", func() {
				err := dataStore.SaveProcessInstance(tc.Context, inst)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = dataStore.SaveProcessInstance(tc.Context, inst)
				gomega.Expect(persistence.IsConflict(err)).To(gomega.BeTrue())
			})

			ginkgo.It("updates the instance when saved at the persisted revision", func() {
				err := dataStore.SaveProcessInstance(tc.Context, inst)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				next := inst
				next.Revision = 1
				next.Packet.Data = []byte(`{"Status":"completed"}`)

				err = dataStore.SaveProcessInstance(tc.Context, next)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				loaded, err := dataStore.LoadProcessInstance(tc.Context, "<process>", "<key>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(loaded.Revision).To(gomega.BeEquivalentTo(2))
				gomega.Expect(loaded.Packet.Data).To(gomega.Equal(next.Packet.Data))
			})

			ginkgo.It("returns a conflict when saved at a stale revision", func() {
				err := dataStore.SaveProcessInstance(tc.Context, inst)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				next := inst
				next.Revision = 1

				err = dataStore.SaveProcessInstance(tc.Context, next)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = dataStore.SaveProcessInstance(tc.Context, next)
				gomega.Expect(persistence.IsConflict(err)).To(gomega.BeTrue())
			})

			ginkgo.It("returns a conflict when saving a terminal instance", func() {
				inst.Terminal = true

				err := dataStore.SaveProcessInstance(tc.Context, inst)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				next := inst
				next.Revision = 1
				next.Terminal = false

				err = dataStore.SaveProcessInstance(tc.Context, next)
				gomega.Expect(persistence.IsConflict(err)).To(gomega.BeTrue())
			})

			ginkgo.It("does not affect other instances of the same process type", func() {
				err := dataStore.SaveProcessInstance(tc.Context, inst)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				other := inst
				other.BusinessKey = "<other-key>"
				other.InstanceID = "be9aca55-29be-4f7e-b5a9-a8e3fbd234b6"

				err = dataStore.SaveProcessInstance(tc.Context, other)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				loaded, err := dataStore.LoadProcessInstance(tc.Context, "<process>", "<key>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(loaded.Revision).To(gomega.BeEquivalentTo(1))
			})
		})

		ginkgo.Describe("func Close()", func() {
			ginkgo.It("causes future operations to fail", func() {
				err := dataStore.Close()
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				_, err = dataStore.LoadProcessInstance(tc.Context, "<process>", "<key>")
				gomega.Expect(err).To(gomega.Equal(persistence.ErrDataStoreClosed))

				_, _, err = dataStore.LoadProcessInstanceByID(tc.Context, inst.InstanceID)
				gomega.Expect(err).To(gomega.Equal(persistence.ErrDataStoreClosed))

				_, err = dataStore.LoadActiveProcessInstances(tc.Context)
				gomega.Expect(err).To(gomega.Equal(persistence.ErrDataStoreClosed))

				err = dataStore.SaveProcessInstance(tc.Context, inst)
				gomega.Expect(err).To(gomega.Equal(persistence.ErrDataStoreClosed))
			})

			ginkgo.It("returns an error if the data-store is already closed", func() {
				err := dataStore.Close()
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = dataStore.Close()
				gomega.Expect(err).To(gomega.Equal(persistence.ErrDataStoreClosed))
			})
		})
	})
}
