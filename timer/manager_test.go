package timer_test

import (
	"context"
	"time"

	. "github.com/outreachkit/engage/timer"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Manager", func() {
	var (
		ctx     context.Context
		cancel  context.CancelFunc
		manager *Manager
		done    chan struct{}
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		manager = &Manager{}

		done = make(chan struct{})
		go func() {
			defer close(done)
			manager.Run(ctx)
		}()
	})

	AfterEach(func() {
		cancel()
		Eventually(done).Should(BeClosed())
	})

	Describe("func After()", func() {
		It("fires after the duration elapses", func() {
			w := manager.After(10 * time.Millisecond)

			Eventually(w.Expired(), 2*time.Second).Should(Receive())
		})

		It("fires immediately for a non-positive duration", func() {
			w := manager.After(-1 * time.Second)

			Eventually(w.Expired(), 2*time.Second).Should(Receive())
		})

		It("fires wake-ups in deadline order", func() {
			late := manager.After(60 * time.Millisecond)
			early := manager.After(10 * time.Millisecond)

			Eventually(early.Expired(), 2*time.Second).Should(Receive())
			Expect(late.Expired()).NotTo(Receive())

			Eventually(late.Expired(), 2*time.Second).Should(Receive())
		})

		It("re-arms when an earlier wake-up is scheduled", func() {
			manager.After(1 * time.Hour)
			early := manager.After(10 * time.Millisecond)

			Eventually(early.Expired(), 2*time.Second).Should(Receive())
		})
	})

	Describe("type Wakeup", func() {
		Describe("func Cancel()", func() {
			It("suppresses the wake-up", func() {
				w := manager.After(50 * time.Millisecond)

				Expect(w.Cancel()).To(BeTrue())
				Consistently(w.Expired(), 100*time.Millisecond).ShouldNot(Receive())
			})

			It("returns false once the wake-up has fired", func() {
				w := manager.After(1 * time.Millisecond)

				Eventually(w.Expired(), 2*time.Second).Should(Receive())
				Expect(w.Cancel()).To(BeFalse())
			})

			It("returns false on a second call", func() {
				w := manager.After(1 * time.Hour)

				Expect(w.Cancel()).To(BeTrue())
				Expect(w.Cancel()).To(BeFalse())
			})

			It("produces exactly one observable effect when racing the deadline", func() {
				// Repeatedly race cancellation against an immediate deadline.
				// In every round either the cancellation wins and nothing is
				// received, or the firing wins and the value is received.
				for i := 0; i < 100; i++ {
					w := manager.After(1 * time.Millisecond)

					if w.Cancel() {
						Consistently(w.Expired(), 5*time.Millisecond).ShouldNot(Receive())
					} else {
						Eventually(w.Expired(), 2*time.Second).Should(Receive())
					}
				}
			})
		})
	})
})
