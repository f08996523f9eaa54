// Package providertest contains a generic behavioral test suite that all
// persistence providers must pass.
package providertest

import (
	"context"
	"time"

	"github.com/dogmatiq/marshalkit"
	"github.com/onsi/ginkgo"
	"github.com/onsi/gomega"
	"github.com/outreachkit/engage/fixtures"
	"github.com/outreachkit/engage/persistence"
)

// In is a container for values provided by the test suite to the
// provider-specific initialization code.
type In struct {
	// Marshaler marshals and unmarshals the test snapshot and root types.
	Marshaler marshalkit.Marshaler
}

// Out is a container for values that are provided by the provider-specific
// initialization code to the test suite.
type Out struct {
	// NewProvider is a function that creates a new provider.
	NewProvider func() (p persistence.Provider, close func())

	// IsShared returns true if multiple instances of the same provider access
	// the same data.
	IsShared bool

	// TestTimeout is the maximum duration allowed for each test.
	TestTimeout time.Duration
}

// DefaultTestTimeout is the default test timeout.
const DefaultTestTimeout = 10 * time.Second

// TestContext encapsulates the shared test context passed to the tests for
// each provider sub-system.
type TestContext struct {
	Context context.Context
	In      In
	Out     Out
}

// SetupDataStore sets up a new data-store.
func (tc *TestContext) SetupDataStore() (persistence.DataStore, func()) {
	p, close := tc.Out.NewProvider()

	ds, err := p.Open(tc.Context, fixtures.DefaultAppKey)
	if err != nil {
		if close != nil {
			close()
		}

		gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
	}

	return ds, func() {
		ds.Close()

		if close != nil {
			close()
		}
	}
}

// Declare declares generic behavioral tests for a specific persistence
// provider implementation.
func Declare(
	before func(context.Context, In) Out,
	after func(),
) {
	var (
		tc     TestContext
		cancel func()
	)

	ginkgo.Context("standard provider test suite", func() {
		ginkgo.BeforeEach(func() {
			setupCtx, cancelSetup := context.WithTimeout(context.Background(), DefaultTestTimeout)
			defer cancelSetup()

			tc.In = In{
				Marshaler: fixtures.Marshaler,
			}

			tc.Out = before(setupCtx, tc.In)

			if tc.Out.TestTimeout <= 0 {
				tc.Out.TestTimeout = DefaultTestTimeout
			}

			tc.Context, cancel = context.WithTimeout(context.Background(), tc.Out.TestTimeout)
		})

		ginkgo.AfterEach(func() {
			if after != nil {
				after()
			}

			cancel()
		})

		declareProviderTests(&tc)
		declareDataStoreTests(&tc)
	})
}
