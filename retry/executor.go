package retry

import (
	"context"
	"time"

	"github.com/dogmatiq/linger"
)

// An Attempt describes one completed execution attempt.
type Attempt struct {
	// Number is the 1-based attempt number.
	Number int

	// Err is the error produced by the attempt, or nil if it succeeded.
	Err error

	// NextRetryAt is the time at which the following attempt is scheduled.
	// It is zero if no further attempt will be made.
	NextRetryAt time.Time
}

// An Observer is notified of each attempt as it completes, before any retry
// delay is applied.
type Observer func(Attempt)

// Execute invokes fn under the policy p.
//
// It blocks between attempts, honoring ctx cancelation, and returns fn's
// output on the first success. After p.MaxAttempts failed attempts, or as
// soon as fn returns a permanent error, the last error is returned.
//
// If obs is non-nil it is invoked once per attempt, so the caller can append
// an audit record for each attempt, including transient failures.
func Execute(
	ctx context.Context,
	p Policy,
	fn func(context.Context) (string, error),
	obs Observer,
) (string, error) {
	if p.IsZero() {
		p = DefaultPolicy
	}

	var err error

	for n := 1; ; n++ {
		var output string
		output, err = fn(ctx)

		a := Attempt{
			Number: n,
			Err:    err,
		}

		if err == nil {
			if obs != nil {
				obs(a)
			}

			return output, nil
		}

		final := n >= p.MaxAttempts || IsPermanent(err) || ctx.Err() != nil
		if !final {
			a.NextRetryAt = time.Now().Add(p.Delay(n))
		}

		if obs != nil {
			obs(a)
		}

		if final {
			return "", err
		}

		if err := linger.SleepUntil(ctx, a.NextRetryAt); err != nil {
			return "", err
		}
	}
}
