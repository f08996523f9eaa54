package engage

import (
	"context"
	"fmt"
	"time"

	"github.com/outreachkit/engage/internal/cache"
	"github.com/outreachkit/engage/internal/mlog"
	"github.com/outreachkit/engage/process"
	"github.com/outreachkit/engage/retry"
)

// cacheEntry is the engine's cached view of one instance: the unmarshaled
// instance plus the revision at which it was last persisted.
type cacheEntry struct {
	inst *process.Instance
	rev  uint64
}

// executeInstance advances a single instance as far as it can go: to its
// next suspend point, or to a terminal status.
//
// The instance is locked for the duration of the execution, so two
// executions of the same instance never overlap. The cached state is
// retained only if execution succeeds; any failure evicts the cache record,
// forcing the next execution to reload the instance from the data-store.
func (e *Engine) executeInstance(ctx context.Context, id string) (err error) {
	rec, err := e.cache.Acquire(ctx, id)
	if err != nil {
		return err
	}
	defer func() {
		if err == nil {
			rec.KeepAlive()
		}
		rec.Release()
	}()

	entry, err := e.load(ctx, rec, id)
	if err != nil {
		return err
	}
	if entry == nil {
		// The instance does not exist. There is nothing to execute, and
		// nothing to gain by retrying.
		return nil
	}

	inst := entry.inst

	if inst.Status.IsTerminal() {
		e.markDone(id)
		return nil
	}

	def, ok := e.defs[inst.ProcessType]
	if !ok {
		return fmt.Errorf(
			"no definition hosted for process type %q",
			inst.ProcessType,
		)
	}

	steps := def.Steps()

	if inst.Status == process.StatusSuspended {
		suspended, err := e.resume(ctx, entry, steps)
		if suspended || err != nil {
			return err
		}
	}

	return e.runSteps(ctx, entry, steps)
}

// load returns the cached entry for the given instance, loading it from the
// data-store if necessary.
//
// It returns nil if no such instance exists.
func (e *Engine) load(
	ctx context.Context,
	rec *cache.Record,
	id string,
) (*cacheEntry, error) {
	if rec.Instance != nil {
		return rec.Instance.(*cacheEntry), nil
	}

	p, ok, err := e.ds.LoadProcessInstanceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	inst, err := unmarshalInstance(e.opts.Marshaler, p)
	if err != nil {
		return nil, err
	}

	entry := &cacheEntry{
		inst: inst,
		rev:  p.Revision,
	}
	rec.Instance = entry

	return entry, nil
}

// resume folds a pending wait's resolution into a suspended instance.
//
// It returns true if the instance remains suspended because no resolution
// has arrived yet, in which case the wait registration is (re-)armed. This
// is how suspended instances are recovered after a restart: re-queueing them
// lands here, which re-arms the signal subscription and deadline timer.
func (e *Engine) resume(
	ctx context.Context,
	entry *cacheEntry,
	steps []process.Step,
) (bool, error) {
	inst := entry.inst

	if e.cancelRequested(inst.InstanceID) {
		e.cancelWait(inst.InstanceID)
		return false, e.terminate(
			ctx,
			entry,
			process.StatusCancelled,
			"cancelled by operator",
		)
	}

	res, ok := e.takeResolution(inst.InstanceID)
	if !ok {
		e.registerWait(ctx, inst)
		return true, nil
	}

	if inst.CurrentStep >= len(steps) || !steps[inst.CurrentStep].IsWait() {
		return false, fmt.Errorf(
			"instance %s is suspended at step %d, which is not a wait point",
			inst.InstanceID,
			inst.CurrentStep,
		)
	}

	step := steps[inst.CurrentStep]

	mlog.LogResume(
		e.opts.Logger,
		inst.ProcessType,
		inst.BusinessKey,
		res.TimedOut,
	)

	if res.TimedOut && step.Wait.FatalOnTimeout {
		return false, e.terminate(
			ctx,
			entry,
			process.StatusTimedOut,
			"wait deadline elapsed",
		)
	}

	now := time.Now()
	scope := e.scope(inst)

	output, err := step.Wait.OnResume(scope, res.Payload, res.TimedOut)
	if err != nil {
		return false, e.fail(ctx, entry, step.Name, err)
	}

	inst.History = append(inst.History, process.StepRecord{
		Name:        step.Name,
		Output:      output,
		StartedAt:   now,
		CompletedAt: time.Now(),
	})
	inst.Wait = nil
	inst.Status = process.StatusRunning
	inst.CurrentStep++

	return false, e.checkpoint(ctx, entry)
}

// runSteps advances the instance through its step table until it completes,
// terminates, or parks at a suspend point.
func (e *Engine) runSteps(
	ctx context.Context,
	entry *cacheEntry,
	steps []process.Step,
) error {
	inst := entry.inst

	if inst.Status == process.StatusPending {
		inst.Status = process.StatusRunning
	}

	for inst.CurrentStep < len(steps) {
		if e.cancelRequested(inst.InstanceID) {
			return e.terminate(
				ctx,
				entry,
				process.StatusCancelled,
				"cancelled by operator",
			)
		}

		step := steps[inst.CurrentStep]
		scope := e.scope(inst)

		if step.IsWait() {
			if step.Wait.Applies != nil && !step.Wait.Applies(scope) {
				if err := e.bypassWait(ctx, entry, step, scope); err != nil {
					return err
				}
				continue
			}

			return e.suspend(ctx, entry, step)
		}

		if step.Applies != nil && !step.Applies(scope) {
			mlog.LogSkip(
				e.opts.Logger,
				inst.ProcessType,
				inst.BusinessKey,
				step.Name,
			)

			now := time.Now()
			inst.History = append(inst.History, process.StepRecord{
				Name:        step.Name,
				Skipped:     true,
				StartedAt:   now,
				CompletedAt: now,
			})
			inst.CurrentStep++

			if err := e.checkpoint(ctx, entry); err != nil {
				return err
			}
			continue
		}

		if err := e.executeStep(ctx, entry, step, scope); err != nil {
			return err
		}
	}

	return e.complete(ctx, entry)
}

// executeStep runs one executable step under its retry policy, appends its
// audit record and checkpoints the instance.
func (e *Engine) executeStep(
	ctx context.Context,
	entry *cacheEntry,
	step process.Step,
	scope *process.Scope,
) error {
	inst := entry.inst

	policy := step.Retry
	if policy.IsZero() {
		policy = e.opts.RetryPolicy
	}

	srec := process.StepRecord{
		Name:      step.Name,
		StartedAt: time.Now(),
	}

	output, err := retry.Execute(
		ctx,
		policy,
		func(ctx context.Context) (string, error) {
			return step.Execute(ctx, scope)
		},
		func(a retry.Attempt) {
			pa := process.Attempt{
				Number:      a.Number,
				NextRetryAt: a.NextRetryAt,
			}

			if a.Err != nil {
				pa.Error = a.Err.Error()

				if !a.NextRetryAt.IsZero() {
					mlog.LogRetry(
						e.opts.Logger,
						inst.ProcessType,
						inst.BusinessKey,
						step.Name,
						a.Err,
						time.Until(a.NextRetryAt),
					)
				}
			}

			srec.Attempts = append(srec.Attempts, pa)
		},
	)

	if err != nil {
		if ctx.Err() != nil {
			// The engine is shutting down. The instance is not
			// checkpointed; it resumes from its last checkpoint on the
			// next run.
			return ctx.Err()
		}

		if step.Recover == nil {
			inst.History = append(inst.History, srec)
			return e.fail(ctx, entry, step.Name, err)
		}

		cause := err

		output, err = step.Recover(scope, cause)
		if err != nil {
			inst.History = append(inst.History, srec)
			return e.fail(ctx, entry, step.Name, err)
		}

		srec.Fallback = true

		mlog.LogFallback(
			e.opts.Logger,
			inst.ProcessType,
			inst.BusinessKey,
			step.Name,
			cause,
		)
	} else {
		mlog.LogStep(
			e.opts.Logger,
			inst.ProcessType,
			inst.BusinessKey,
			step.Name,
			output,
			len(srec.Attempts),
		)
	}

	srec.Output = output
	srec.CompletedAt = time.Now()

	inst.History = append(inst.History, srec)
	inst.CurrentStep++

	return e.checkpoint(ctx, entry)
}

// bypassWait invokes a wait point's resume function immediately, without
// suspending, because the wait's condition excluded it.
func (e *Engine) bypassWait(
	ctx context.Context,
	entry *cacheEntry,
	step process.Step,
	scope *process.Scope,
) error {
	inst := entry.inst
	now := time.Now()

	output, err := step.Wait.OnResume(scope, "", true)
	if err != nil {
		return e.fail(ctx, entry, step.Name, err)
	}

	inst.History = append(inst.History, process.StepRecord{
		Name:        step.Name,
		Output:      output,
		StartedAt:   now,
		CompletedAt: time.Now(),
	})
	inst.CurrentStep++

	return e.checkpoint(ctx, entry)
}

// suspend parks the instance at its wait point.
//
// The pending wait is made durable before the signal subscription is armed,
// so a crash between the two leaves the instance recoverable.
func (e *Engine) suspend(
	ctx context.Context,
	entry *cacheEntry,
	step process.Step,
) error {
	inst := entry.inst

	inst.Status = process.StatusSuspended
	inst.Wait = &process.PendingWait{
		Step:       step.Name,
		SignalName: step.Wait.SignalName,
		Deadline:   time.Now().Add(step.Wait.Timeout),
	}

	if err := e.checkpoint(ctx, entry); err != nil {
		return err
	}

	mlog.LogSuspend(
		e.opts.Logger,
		inst.ProcessType,
		inst.BusinessKey,
		step.Wait.SignalName,
		inst.Wait.Deadline,
	)

	e.registerWait(ctx, inst)

	return nil
}

// complete marks the instance as completed and records its result.
func (e *Engine) complete(
	ctx context.Context,
	entry *cacheEntry,
) error {
	inst := entry.inst

	inst.Status = process.StatusCompleted
	inst.Result = result(inst)

	if err := e.checkpoint(ctx, entry); err != nil {
		return err
	}

	mlog.LogTerminal(
		e.opts.Logger,
		inst.ProcessType,
		inst.BusinessKey,
		string(inst.Status),
		inst.Result,
	)

	e.markDone(inst.InstanceID)

	return nil
}

// fail terminates the instance as failed.
func (e *Engine) fail(
	ctx context.Context,
	entry *cacheEntry,
	step string,
	cause error,
) error {
	return e.terminate(
		ctx,
		entry,
		process.StatusFailed,
		fmt.Sprintf("step %s: %s", step, cause),
	)
}

// terminate moves the instance to the given terminal status and checkpoints
// it one final time.
func (e *Engine) terminate(
	ctx context.Context,
	entry *cacheEntry,
	status process.Status,
	detail string,
) error {
	inst := entry.inst

	inst.Status = status
	inst.Wait = nil

	if status == process.StatusFailed {
		inst.FailureReason = detail
	}

	if err := e.checkpoint(ctx, entry); err != nil {
		return err
	}

	mlog.LogTerminal(
		e.opts.Logger,
		inst.ProcessType,
		inst.BusinessKey,
		string(status),
		detail,
	)

	e.markDone(inst.InstanceID)

	return nil
}

// checkpoint makes the instance's current state durable.
//
// The write is conditional on the revision at which the instance was last
// persisted, so a conflicting write by another incarnation of the engine is
// detected rather than silently overwritten.
func (e *Engine) checkpoint(
	ctx context.Context,
	entry *cacheEntry,
) error {
	entry.inst.UpdatedAt = time.Now()

	p, err := marshalInstance(e.opts.Marshaler, entry.inst, entry.rev)
	if err != nil {
		return err
	}

	if err := e.ds.SaveProcessInstance(ctx, p); err != nil {
		return err
	}

	entry.rev++

	return nil
}

// scope returns a step's view of the given instance.
func (e *Engine) scope(inst *process.Instance) *process.Scope {
	return &process.Scope{
		Instance: inst,
		Root:     inst.Root,
		Logger:   e.opts.Logger,
	}
}

// result produces the instance's human-readable result.
//
// Root types may implement Result() to describe their outcome; otherwise the
// output of the last executed step is used.
func result(inst *process.Instance) string {
	if r, ok := inst.Root.(interface{ Result() string }); ok {
		return r.Result()
	}

	for i := len(inst.History) - 1; i >= 0; i-- {
		if !inst.History[i].Skipped {
			return inst.History[i].Output
		}
	}

	return ""
}
