package process

import (
	"github.com/dogmatiq/dodeca/logging"
	"github.com/outreachkit/engage/internal/mlog"
)

// Scope is a step's view of the process instance it executes within.
//
// The root state may be mutated freely; mutations become durable when the
// engine checkpoints the instance after the step completes.
type Scope struct {
	// Instance is the instance being executed. Steps must treat it as
	// read-only; it is mutated only by the engine.
	Instance *Instance

	// Root is the application-defined state of the instance.
	Root Root

	// Logger is the target for log messages produced by the step.
	Logger logging.Logger
}

// Log records an informational message within the context of the instance
// being executed.
func (s *Scope) Log(f string, v ...interface{}) {
	mlog.LogFromScope(
		s.Logger,
		s.Instance.ProcessType,
		s.Instance.BusinessKey,
		f,
		v,
	)
}
