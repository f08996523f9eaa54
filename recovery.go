package engage

import (
	"context"

	"github.com/dogmatiq/dodeca/logging"
)

// recoverInstances re-queues every non-terminal instance in the data-store.
//
// Running and pending instances resume from their last checkpoint. Suspended
// instances re-arm their signal subscription and deadline timer; a deadline
// that elapsed while the engine was stopped fires immediately, resolving the
// wait as a timeout.
func (e *Engine) recoverInstances(ctx context.Context) error {
	recs, err := e.ds.LoadActiveProcessInstances(ctx)
	if err != nil {
		return err
	}

	for _, p := range recs {
		if _, ok := e.defs[p.ProcessType]; !ok {
			logging.Log(
				e.opts.Logger,
				"instance %s not recovered, no definition hosted for process type %q",
				p.InstanceID,
				p.ProcessType,
			)
			continue
		}

		e.enqueue(p.InstanceID)
	}

	if n := len(recs); n > 0 {
		logging.Log(
			e.opts.Logger,
			"recovered %d active process instance(s)",
			n,
		)
	}

	return nil
}
