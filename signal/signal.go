// Package signal routes named external events to specific waiting process
// instances.
package signal

import "time"

// A Signal is an asynchronous external event addressed to a specific logical
// process run.
type Signal struct {
	// BusinessKey identifies the process run the signal is addressed to.
	BusinessKey string

	// Name is the name of the signal, as registered by the waiting instance.
	Name string

	// Payload is the signal's free-form text content.
	Payload string

	// ReceivedAt is the time at which the signal was accepted by the router.
	ReceivedAt time.Time
}
