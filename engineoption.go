package engage

import (
	"fmt"
	"reflect"
	"runtime"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/marshalkit/codec"
	"github.com/dogmatiq/marshalkit/codec/json"
	"github.com/outreachkit/engage/persistence"
	"github.com/outreachkit/engage/persistence/boltpersistence"
	"github.com/outreachkit/engage/process"
	"github.com/outreachkit/engage/retry"
)

var (
	// DefaultPersistenceProvider is the default persistence provider.
	//
	// It is overridden by the WithPersistence() option.
	DefaultPersistenceProvider persistence.Provider = &boltpersistence.FileProvider{
		Path: "/var/run/engaged.boltdb",
	}

	// DefaultApplicationKey is the default identity key used to open the
	// application's data-store.
	//
	// It is overridden by the WithApplicationKey() option.
	DefaultApplicationKey = "engage"

	// DefaultRetryPolicy is the retry policy applied to steps that do not
	// configure their own.
	//
	// It is overridden by the WithRetryPolicy() option.
	DefaultRetryPolicy = retry.DefaultPolicy

	// DefaultRecoveryBackoff is the default backoff strategy applied when an
	// instance can not be executed for infrastructure reasons, such as a
	// checkpoint-write conflict with a prior incarnation of the engine.
	//
	// It is overridden by the WithRecoveryBackoff() option.
	DefaultRecoveryBackoff backoff.Strategy = backoff.WithTransforms(
		backoff.Exponential(100*time.Millisecond),
		linger.FullJitter,
		linger.Limiter(0, 1*time.Hour),
	)

	// DefaultConcurrencyLimit is the default number of instances that may
	// execute in parallel.
	//
	// It is overridden by the WithConcurrencyLimit() option.
	DefaultConcurrencyLimit = uint(runtime.GOMAXPROCS(0) * 2)

	// DefaultLogger is the default target for log messages produced by the
	// engine.
	//
	// It is overridden by the WithLogger() option.
	DefaultLogger = logging.DefaultLogger
)

// EngineOption configures the behavior of an engine.
type EngineOption func(*engineOptions)

// WithDefinition returns an engine option that hosts a process definition on
// the engine.
//
// At least one definition is required.
func WithDefinition(d process.Definition) EngineOption {
	if d == nil {
		panic("definition must not be nil")
	}

	return func(opts *engineOptions) {
		opts.Definitions = append(opts.Definitions, d)
	}
}

// WithPersistence returns an engine option that sets the persistence provider
// used to store and recover process instances.
//
// If this option is omitted or p is nil, DefaultPersistenceProvider is used.
func WithPersistence(p persistence.Provider) EngineOption {
	return func(opts *engineOptions) {
		opts.PersistenceProvider = p
	}
}

// WithApplicationKey returns an engine option that sets the identity key used
// to open the application's data-store.
//
// If this option is omitted or k is empty, DefaultApplicationKey is used.
func WithApplicationKey(k string) EngineOption {
	return func(opts *engineOptions) {
		opts.ApplicationKey = k
	}
}

// WithConcurrencyLimit returns an engine option that sets the number of
// instances that may execute in parallel.
//
// If this option is omitted or n is zero, DefaultConcurrencyLimit is used.
func WithConcurrencyLimit(n uint) EngineOption {
	return func(opts *engineOptions) {
		opts.ConcurrencyLimit = n
	}
}

// WithRetryPolicy returns an engine option that sets the retry policy applied
// to steps that do not configure their own.
//
// If this option is omitted or p is a zero policy, DefaultRetryPolicy is
// used.
func WithRetryPolicy(p retry.Policy) EngineOption {
	return func(opts *engineOptions) {
		opts.RetryPolicy = p
	}
}

// WithRecoveryBackoff returns an engine option that sets the backoff strategy
// applied when an instance can not be executed for infrastructure reasons.
//
// If this option is omitted or s is nil, DefaultRecoveryBackoff is used.
func WithRecoveryBackoff(s backoff.Strategy) EngineOption {
	return func(opts *engineOptions) {
		opts.RecoveryBackoff = s
	}
}

// WithMarshaler returns an engine option that sets the marshaler used to
// marshal and unmarshal instance snapshots and root state.
//
// If this option is omitted or m is nil, NewDefaultMarshaler() is called to
// obtain the default marshaler.
func WithMarshaler(m marshalkit.Marshaler) EngineOption {
	return func(opts *engineOptions) {
		opts.Marshaler = m
	}
}

// WithLogger returns an engine option that sets the target for log messages
// produced by the engine.
//
// If this option is omitted or l is nil, DefaultLogger is used.
func WithLogger(l logging.Logger) EngineOption {
	return func(opts *engineOptions) {
		opts.Logger = l
	}
}

// NewDefaultMarshaler returns the default marshaler to use for the given
// definitions.
//
// It is used if the WithMarshaler() option is omitted.
func NewDefaultMarshaler(defs []process.Definition) marshalkit.Marshaler {
	types := []reflect.Type{
		reflect.TypeOf(process.Snapshot{}),
	}

	for _, d := range defs {
		t := reflect.TypeOf(d.NewRoot())
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}

		types = append(types, t)
	}

	m, err := codec.NewMarshaler(
		types,
		[]codec.Codec{
			&json.Codec{},
		},
	)
	if err != nil {
		panic(err)
	}

	return m
}

// engineOptions is a container for a fully-resolved set of engine options.
type engineOptions struct {
	Definitions         []process.Definition
	PersistenceProvider persistence.Provider
	ApplicationKey      string
	ConcurrencyLimit    uint
	RetryPolicy         retry.Policy
	RecoveryBackoff     backoff.Strategy
	Marshaler           marshalkit.Marshaler
	Logger              logging.Logger
}

// resolveEngineOptions returns a fully-populated set of engine options built
// from the given list of option functions.
func resolveEngineOptions(options ...EngineOption) *engineOptions {
	opts := &engineOptions{}

	for _, o := range options {
		o(opts)
	}

	if len(opts.Definitions) == 0 {
		panic("at least one definition is required, use WithDefinition()")
	}

	seen := map[string]struct{}{}
	for _, d := range opts.Definitions {
		t := d.ProcessType()
		if _, ok := seen[t]; ok {
			panic(fmt.Sprintf("multiple definitions for process type %q", t))
		}
		seen[t] = struct{}{}
	}

	if opts.PersistenceProvider == nil {
		opts.PersistenceProvider = DefaultPersistenceProvider
	}

	if opts.ApplicationKey == "" {
		opts.ApplicationKey = DefaultApplicationKey
	}

	if opts.ConcurrencyLimit == 0 {
		opts.ConcurrencyLimit = DefaultConcurrencyLimit
	}

	if opts.RetryPolicy.IsZero() {
		opts.RetryPolicy = DefaultRetryPolicy
	}

	if opts.RecoveryBackoff == nil {
		opts.RecoveryBackoff = DefaultRecoveryBackoff
	}

	if opts.Marshaler == nil {
		opts.Marshaler = NewDefaultMarshaler(opts.Definitions)
	}

	if opts.Logger == nil {
		opts.Logger = DefaultLogger
	}

	return opts
}
