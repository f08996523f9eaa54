package cache_test

import (
	"context"
	"time"

	"github.com/outreachkit/engage/internal/cache"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Cache", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		c      *cache.Cache
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 250*time.Millisecond)

		c = &cache.Cache{
			TTL: 5 * time.Millisecond,
		}
	})

	AfterEach(func() {
		cancel()
	})

	Describe("func Acquire()", func() {
		It("returns a record with a nil instance", func() {
			rec, err := c.Acquire(ctx, "<id>")
			Expect(err).ShouldNot(HaveOccurred())
			defer rec.Release()

			Expect(rec.Instance).To(BeNil())
		})

		It("returns the same record for a given ID if it is kept alive", func() {
			rec1, err := c.Acquire(ctx, "<id>")
			Expect(err).ShouldNot(HaveOccurred())
			rec1.Instance = "<instance>"
			rec1.KeepAlive()
			rec1.Release()

			rec2, err := c.Acquire(ctx, "<id>")
			Expect(err).ShouldNot(HaveOccurred())
			defer rec2.Release()

			Expect(rec2).To(BeIdenticalTo(rec1))
			Expect(rec2.Instance).To(Equal("<instance>"))
		})

		It("returns a new record if the previous record was not kept alive", func() {
			rec1, err := c.Acquire(ctx, "<id>")
			Expect(err).ShouldNot(HaveOccurred())
			rec1.Instance = "<instance>"
			rec1.Release()

			rec2, err := c.Acquire(ctx, "<id>")
			Expect(err).ShouldNot(HaveOccurred())
			defer rec2.Release()

			Expect(rec2).NotTo(BeIdenticalTo(rec1))
			Expect(rec2.Instance).To(BeNil())
		})

		It("returns separate records for separate IDs", func() {
			rec1, err := c.Acquire(ctx, "<id-1>")
			Expect(err).ShouldNot(HaveOccurred())
			defer rec1.Release()

			rec2, err := c.Acquire(ctx, "<id-2>")
			Expect(err).ShouldNot(HaveOccurred())
			defer rec2.Release()

			Expect(rec2).NotTo(BeIdenticalTo(rec1))
		})

		It("blocks until the record is released", func() {
			rec1, err := c.Acquire(ctx, "<id>")
			Expect(err).ShouldNot(HaveOccurred())
			rec1.KeepAlive()

			go func() {
				time.Sleep(10 * time.Millisecond)
				rec1.Release()
			}()

			rec2, err := c.Acquire(ctx, "<id>")
			Expect(err).ShouldNot(HaveOccurred())
			defer rec2.Release()

			Expect(rec2).To(BeIdenticalTo(rec1))
		})

		It("retries if the record is removed while waiting for the lock", func() {
			rec1, err := c.Acquire(ctx, "<id>")
			Expect(err).ShouldNot(HaveOccurred())

			go func() {
				time.Sleep(10 * time.Millisecond)
				rec1.Release() // not kept alive, so it is removed
			}()

			rec2, err := c.Acquire(ctx, "<id>")
			Expect(err).ShouldNot(HaveOccurred())
			defer rec2.Release()

			Expect(rec2).NotTo(BeIdenticalTo(rec1))
		})

		It("returns an error if the deadline is exceeded while blocked", func() {
			rec, err := c.Acquire(ctx, "<id>")
			Expect(err).ShouldNot(HaveOccurred())
			defer rec.Release()

			acquireCtx, cancelAcquire := context.WithTimeout(ctx, 5*time.Millisecond)
			defer cancelAcquire()

			_, err = c.Acquire(acquireCtx, "<id>")
			Expect(err).To(Equal(context.DeadlineExceeded))
		})
	})

	Describe("func Run()", func() {
		It("evicts records that remain idle for two cycles", func() {
			rec1, err := c.Acquire(ctx, "<id>")
			Expect(err).ShouldNot(HaveOccurred())
			rec1.Instance = "<instance>"
			rec1.KeepAlive()
			rec1.Release()

			runCtx, cancelRun := context.WithCancel(ctx)
			defer cancelRun()

			go c.Run(runCtx)
			time.Sleep(25 * time.Millisecond)

			rec2, err := c.Acquire(ctx, "<id>")
			Expect(err).ShouldNot(HaveOccurred())
			defer rec2.Release()

			Expect(rec2).NotTo(BeIdenticalTo(rec1))
			Expect(rec2.Instance).To(BeNil())
		})

		It("does not evict records that are in use", func() {
			rec, err := c.Acquire(ctx, "<id>")
			Expect(err).ShouldNot(HaveOccurred())
			rec.Instance = "<instance>"

			runCtx, cancelRun := context.WithCancel(ctx)
			defer cancelRun()

			go c.Run(runCtx)
			time.Sleep(25 * time.Millisecond)

			rec.KeepAlive()
			rec.Release()

			rec2, err := c.Acquire(ctx, "<id>")
			Expect(err).ShouldNot(HaveOccurred())
			defer rec2.Release()

			Expect(rec2).To(BeIdenticalTo(rec))
			Expect(rec2.Instance).To(Equal("<instance>"))
		})

		It("returns when ctx is canceled", func() {
			runCtx, cancelRun := context.WithCancel(ctx)
			cancelRun()

			err := c.Run(runCtx)
			Expect(err).To(Equal(context.Canceled))
		})
	})
})
