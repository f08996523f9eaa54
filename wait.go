package engage

import (
	"context"

	"github.com/outreachkit/engage/process"
)

// resolution is the outcome of a pending wait.
type resolution struct {
	// Payload is the signal payload, or empty if the wait timed out.
	Payload string

	// TimedOut is true if the wait's deadline elapsed before its signal
	// arrived.
	TimedOut bool
}

// waitReg tracks the live subscription and deadline timer for one suspended
// instance.
type waitReg struct {
	stop chan struct{}
}

// registerWait arms the signal subscription and deadline timer for a
// suspended instance.
//
// Exactly one of signal arrival, deadline expiry or cancelation resolves the
// wait; the losers have no observable effect. Resolving a wait stores the
// resolution and re-queues the instance for execution.
func (e *Engine) registerWait(ctx context.Context, inst *process.Instance) {
	e.m.Lock()

	if _, ok := e.waits[inst.InstanceID]; ok {
		e.m.Unlock()
		return
	}

	reg := &waitReg{
		stop: make(chan struct{}),
	}
	e.waits[inst.InstanceID] = reg

	e.m.Unlock()

	sub := e.router.Subscribe(inst.BusinessKey, inst.Wait.SignalName)
	wake := e.timers.At(inst.Wait.Deadline)
	id := inst.InstanceID

	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
			wake.Cancel()

		case <-reg.stop:
			sub.Cancel()
			wake.Cancel()

		case sig := <-sub.Signaled():
			wake.Cancel()
			e.resolveWait(id, resolution{Payload: sig.Payload})

		case <-wake.Expired():
			// The deadline and the signal may race. The signal wins if it
			// was delivered before the subscription could be retired.
			select {
			case sig := <-sub.Signaled():
				e.resolveWait(id, resolution{Payload: sig.Payload})
			default:
				sub.Cancel()
				e.resolveWait(id, resolution{TimedOut: true})
			}
		}
	}()
}

// resolveWait records the outcome of a pending wait and re-queues the
// instance so it resumes execution.
func (e *Engine) resolveWait(id string, res resolution) {
	e.m.Lock()
	e.resolutions[id] = res
	delete(e.waits, id)
	e.m.Unlock()

	e.enqueue(id)
}

// takeResolution consumes the stored resolution for the given instance, if
// any.
func (e *Engine) takeResolution(id string) (resolution, bool) {
	e.m.Lock()
	defer e.m.Unlock()

	res, ok := e.resolutions[id]
	if ok {
		delete(e.resolutions, id)
	}

	return res, ok
}

// cancelWait releases the wait registration for the given instance, if any,
// without producing a resolution.
func (e *Engine) cancelWait(id string) {
	e.m.Lock()
	defer e.m.Unlock()

	if reg, ok := e.waits[id]; ok {
		close(reg.stop)
		delete(e.waits, id)
	}
}
