// Package metrics provides counters and latency observations for the
// payment gate. The Recorder interface keeps instrumentation optional; the
// gate defaults to the no-op recorder.
package metrics

import "time"

// Recorder receives payment gate events.
type Recorder interface {
	// IncCounter increments the named counter. Labels carry low-cardinality
	// dimensions such as the verification outcome.
	IncCounter(name string, labels map[string]string)

	// ObserveLatency records how long a named operation took.
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Event and operation names recorded by the gate.
const (
	CounterChallengesIssued  = "challenges_issued"
	CounterVerifications     = "verifications"
	CounterPaymentsAccepted  = "payments_accepted"
	CounterResourcesReleased = "resources_released"

	OpVerify = "verify"
	OpFetch  = "fetch"
)

// OutcomeLabels builds the label set for a verification outcome.
func OutcomeLabels(outcome string) map[string]string {
	return map[string]string{"outcome": outcome}
}
