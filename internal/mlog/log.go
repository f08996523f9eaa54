package mlog

import (
	"fmt"
	"time"

	"github.com/dogmatiq/dodeca/logging"
)

// LogStep logs a message indicating that a step has executed successfully.
func LogStep(
	log logging.Logger,
	ptype, key, step, output string,
	attempts int,
) {
	logging.LogString(
		log,
		line(
			[]IconWithLabel{
				InstanceIDIcon.WithLabel("%s", ptype),
				BusinessKeyIcon.WithLabel("%s", key),
			},
			[]Icon{
				StepIcon,
				retryIcon(attempts),
			},
			step,
			output,
		),
	)
}

// LogSkip logs a message indicating that a step was excluded by its
// condition.
func LogSkip(
	log logging.Logger,
	ptype, key, step string,
) {
	if !logging.IsDebug(log) {
		return
	}

	logging.DebugString(
		log,
		line(
			[]IconWithLabel{
				InstanceIDIcon.WithLabel("%s", ptype),
				BusinessKeyIcon.WithLabel("%s", key),
			},
			[]Icon{
				SkipIcon,
				"",
			},
			step,
			"skipped",
		),
	)
}

// LogRetry logs a message indicating that a step attempt failed and a retry
// has been scheduled.
func LogRetry(
	log logging.Logger,
	ptype, key, step string,
	cause error,
	delay time.Duration,
) {
	logging.LogString(
		log,
		line(
			[]IconWithLabel{
				InstanceIDIcon.WithLabel("%s", ptype),
				BusinessKeyIcon.WithLabel("%s", key),
			},
			[]Icon{
				RetryIcon,
				ErrorIcon,
			},
			step,
			cause.Error(),
			fmt.Sprintf("next attempt in %s", delay),
		),
	)
}

// LogFallback logs a message indicating that a step's output was substituted
// by its recovery function.
func LogFallback(
	log logging.Logger,
	ptype, key, step string,
	cause error,
) {
	logging.LogString(
		log,
		line(
			[]IconWithLabel{
				InstanceIDIcon.WithLabel("%s", ptype),
				BusinessKeyIcon.WithLabel("%s", key),
			},
			[]Icon{
				FallbackIcon,
				ErrorIcon,
			},
			step,
			cause.Error(),
			"fallback output substituted",
		),
	)
}

// LogSuspend logs a message indicating that an instance has parked at its
// wait point.
func LogSuspend(
	log logging.Logger,
	ptype, key, signal string,
	deadline time.Time,
) {
	logging.LogString(
		log,
		line(
			[]IconWithLabel{
				InstanceIDIcon.WithLabel("%s", ptype),
				BusinessKeyIcon.WithLabel("%s", key),
			},
			[]Icon{
				SuspendIcon,
				"",
			},
			fmt.Sprintf("awaiting %q signal", signal),
			fmt.Sprintf("deadline %s", deadline.Format(time.RFC3339)),
		),
	)
}

// LogResume logs a message indicating that a suspended instance has been
// woken.
func LogResume(
	log logging.Logger,
	ptype, key string,
	timedOut bool,
) {
	icon := SignalIcon
	how := "signal received"

	if timedOut {
		icon = TimeoutIcon
		how = "deadline elapsed"
	}

	logging.LogString(
		log,
		line(
			[]IconWithLabel{
				InstanceIDIcon.WithLabel("%s", ptype),
				BusinessKeyIcon.WithLabel("%s", key),
			},
			[]Icon{
				icon,
				"",
			},
			how,
		),
	)
}

// LogTerminal logs a message indicating that an instance has reached a
// terminal status.
func LogTerminal(
	log logging.Logger,
	ptype, key, status, detail string,
) {
	text := []string{status}
	if detail != "" {
		text = append(text, detail)
	}

	logging.LogString(
		log,
		line(
			[]IconWithLabel{
				InstanceIDIcon.WithLabel("%s", ptype),
				BusinessKeyIcon.WithLabel("%s", key),
			},
			[]Icon{
				SystemIcon,
				"",
			},
			text...,
		),
	)
}

// LogFromScope logs an informational message produced by a step via its
// scope.
func LogFromScope(
	log logging.Logger,
	ptype, key string,
	f string, v []interface{},
) {
	logging.LogString(
		log,
		line(
			[]IconWithLabel{
				InstanceIDIcon.WithLabel("%s", ptype),
				BusinessKeyIcon.WithLabel("%s", key),
			},
			[]Icon{
				StepIcon,
				"",
			},
			fmt.Sprintf(f, v...),
		),
	)
}

func retryIcon(attempts int) Icon {
	if attempts <= 1 {
		return ""
	}

	return RetryIcon
}
