package providertest

import (
	"github.com/onsi/ginkgo"
	"github.com/onsi/gomega"
	"github.com/outreachkit/engage/fixtures"
	"github.com/outreachkit/engage/persistence"
)

// declareProviderTests declares a suite of tests for the exclusive-open
// semantics of persistence.Provider implementations.
func declareProviderTests(tc *TestContext) {
	ginkgo.Describe("type Provider (interface)", func() {
		ginkgo.Describe("func Open()", func() {
			ginkgo.It("returns an error if the application's data-store is already open", func() {
				p, close := tc.Out.NewProvider()
				if close != nil {
					defer close()
				}

				ds1, err := p.Open(tc.Context, fixtures.DefaultAppKey)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer ds1.Close()

				ds2, err := p.Open(tc.Context, fixtures.DefaultAppKey)
				if ds2 != nil {
					ds2.Close()
				}
				gomega.Expect(err).To(gomega.Equal(persistence.ErrDataStoreLocked))
			})

			ginkgo.It("allows the application's data-store to be re-opened after it is closed", func() {
				p, close := tc.Out.NewProvider()
				if close != nil {
					defer close()
				}

				ds, err := p.Open(tc.Context, fixtures.DefaultAppKey)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = ds.Close()
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				ds, err = p.Open(tc.Context, fixtures.DefaultAppKey)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				ds.Close()
			})

			ginkgo.It("allows data-stores for different applications to be open simultaneously", func() {
				p, close := tc.Out.NewProvider()
				if close != nil {
					defer close()
				}

				ds1, err := p.Open(tc.Context, "<app-key-1>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer ds1.Close()

				ds2, err := p.Open(tc.Context, "<app-key-2>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer ds2.Close()

				gomega.Expect(ds1).ToNot(gomega.BeIdenticalTo(ds2))
			})

			ginkgo.It("keeps the applications' data isolated", func() {
				p, close := tc.Out.NewProvider()
				if close != nil {
					defer close()
				}

				ds1, err := p.Open(tc.Context, "<app-key-1>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer ds1.Close()

				ds2, err := p.Open(tc.Context, "<app-key-2>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer ds2.Close()

				err = ds1.SaveProcessInstance(
					tc.Context,
					persistence.ProcessInstance{
						ProcessType: "<process>",
						BusinessKey: "<key>",
						InstanceID:  "<instance-1>",
					},
				)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				inst, err := ds2.LoadProcessInstance(tc.Context, "<process>", "<key>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(inst.Revision).To(gomega.BeEquivalentTo(0))
			})
		})
	})
}
