package memorypersistence_test

import (
	"context"

	"github.com/outreachkit/engage/persistence"
	. "github.com/outreachkit/engage/persistence/memorypersistence"
	"github.com/outreachkit/engage/persistence/internal/providertest"
	. "github.com/onsi/ginkgo"
)

var _ = Describe("type Provider", func() {
	providertest.Declare(
		func(ctx context.Context, in providertest.In) providertest.Out {
			return providertest.Out{
				NewProvider: func() (persistence.Provider, func()) {
					return &Provider{}, nil
				},
			}
		},
		nil,
	)
})
