// Package main runs the account engagement daemon.
//
// It hosts the upsell process on an engine, exposes an HTTP API for usage
// alerts, account replies and instance inspection, and recovers in-flight
// engagements on startup.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/outreachkit/engage"
	"github.com/outreachkit/engage/internal/x/loggingx"
	"github.com/outreachkit/engage/persistence"
	"github.com/outreachkit/engage/persistence/boltpersistence"
	"github.com/outreachkit/engage/persistence/memorypersistence"
	"github.com/outreachkit/engage/persistence/sqlitepersistence"
	"github.com/outreachkit/engage/upsell"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// newContext returns a cancelable context that is canceled when the process
// receives a SIGTERM or SIGINT.
func newContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
		case <-sig:
			cancel()
		}
	}()

	return ctx, cancel
}

func main() {
	ctx, cancel := newContext()
	defer cancel()

	if err := run(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func run(ctx context.Context) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.DefaultLogger
	if cfg.Debug {
		logger = logging.DebugLogger
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	tiers, err := loadTiers(cfg.TiersPath)
	if err != nil {
		return err
	}

	def := &upsell.Definition{
		Usage:        newUsageSource(logger),
		Contracts:    newContractStore(logger),
		Recommender:  newRecommender(logger, tiers),
		Sender:       newCommunicationSender(logger),
		Summaries:    newSummaryPoster(logger),
		Meetings:     newMeetingScheduler(logger),
		Ledger:       newOutcomeLedger(logger),
		Tiers:        tiers,
		ReplyTimeout: cfg.ReplyTimeout,
	}

	e := engage.New(
		engage.WithDefinition(def),
		engage.WithPersistence(provider),
		engage.WithApplicationKey(cfg.ApplicationKey),
		engage.WithLogger(logger),
	)

	server := &http.Server{
		Addr: cfg.ListenAddress,
		Handler: newHandler(
			e,
			cfg.UsageThreshold,
			loggingx.WithPrefix(logger, "http: "),
		),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.Run(ctx)
	})

	g.Go(func() error {
		logging.Log(logger, "listening on %s", cfg.ListenAddress)

		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			5*time.Second,
		)
		defer cancel()

		return multierr.Append(
			ctx.Err(),
			server.Shutdown(shutdownCtx),
		)
	})

	return g.Wait()
}

// newProvider returns the persistence provider selected by the
// configuration.
func newProvider(cfg config) (persistence.Provider, error) {
	switch cfg.Persistence {
	case "bolt":
		return &boltpersistence.FileProvider{
			Path: cfg.DataPath,
		}, nil

	case "sqlite":
		return &sqlitepersistence.FileProvider{
			Path: cfg.DataPath,
		}, nil

	case "memory":
		return &memorypersistence.Provider{}, nil

	default:
		return nil, fmt.Errorf(
			"unrecognized persistence driver %q, expected bolt, sqlite or memory",
			cfg.Persistence,
		)
	}
}
