package mlog

import (
	"fmt"
	"strings"
)

const (
	// InstanceIDIcon is the icon shown directly before a process instance ID.
	// It is an "equals sign", indicating that the log line relates to exactly
	// the displayed instance.
	InstanceIDIcon Icon = "="

	// BusinessKeyIcon is the icon shown directly before a business key. It is
	// the mathematical "member of set" symbol, indicating that the instance
	// belongs to the logical process run identified by the key.
	BusinessKeyIcon Icon = "⋲"

	// StepIcon is the icon shown when a step is executed. It is three
	// horizontal lines, representing one row of the step table.
	StepIcon Icon = "≡"

	// SkipIcon is the icon shown when a step is excluded by its condition.
	// It is a hollow variant of the step icon.
	SkipIcon Icon = "⦸"

	// SuspendIcon is the icon shown when an instance parks at its wait point.
	// It is an hourglass.
	SuspendIcon Icon = "⧗"

	// SignalIcon is the icon shown when a signal resolves a wait. It is a
	// downward arrow, as inbound signals are "downloaded" into the instance.
	SignalIcon Icon = "▼"

	// TimeoutIcon is the icon shown when a deadline resolves a wait. It is a
	// hollow variant of the signal icon, indicating that no signal arrived.
	TimeoutIcon Icon = "▽"

	// RetryIcon is the icon shown when a step attempt is being retried. It is
	// an open circle with an arrow, indicating that the attempt has "come
	// around again".
	RetryIcon Icon = "↻"

	// FallbackIcon is the icon shown when a step's output is substituted by
	// its recovery function. It is the mathematical "therefore" symbol,
	// representing the substituted conclusion.
	FallbackIcon Icon = "∴"

	// ErrorIcon is the icon shown when logging information about an error.
	// It is a heavy cross, indicating a failure.
	ErrorIcon Icon = "✖"

	// SystemIcon is the icon shown when a log message relates to the
	// internals of the engine. It is a sprocket.
	SystemIcon Icon = "⚙"
)

// Icon is a unicode symbol used as an icon in log messages.
type Icon string

func (i Icon) String() string {
	return string(i)
}

// WithLabel returns an IconWithLabel containing this icon and the given label.
func (i Icon) WithLabel(f string, v ...interface{}) IconWithLabel {
	label := fmt.Sprintf(f, v...)
	if label == "" {
		label = "-"
	}

	return IconWithLabel{i, label}
}

// IconWithLabel is a combination of an icon and a text label.
type IconWithLabel struct {
	Icon  Icon
	Label string
}

func (il IconWithLabel) String() string {
	return il.Icon.String() + " " + il.Label
}

// line renders a log line consisting of labelled icons, status icons and
// free-form text fragments.
func line(
	ids []IconWithLabel,
	icons []Icon,
	text ...string,
) string {
	w := &strings.Builder{}

	for _, v := range ids {
		w.WriteString(v.String())
		w.WriteByte(' ')
	}

	for _, v := range icons {
		s := v.String()
		if s == "" {
			s = " "
		}

		w.WriteString(s)
		w.WriteByte(' ')
	}

	for i, v := range text {
		if i > 0 {
			w.WriteString("  ● ")
		}

		w.WriteString(v)
	}

	return w.String()
}
