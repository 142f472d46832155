// Package flightstatus tracks the vehicle's armed state (§6 "Flight
// status"), consulted by the estimator's startup-phase gain policy
// (§4.1) to decide whether high-gain arming-phase correction applies.
package flightstatus

import "sync/atomic"

// Armed enumerates the flight status values the estimator cares about.
// The original's Armed field carries more states (e.g. disarming); only
// the ones referenced by the attitude module's gain policy are modeled.
type Armed int32

const (
	ArmedDisarmed Armed = iota
	ArmedArming
	ArmedArmed
)

// Status is a lock-free snapshot of the current flight status, updated
// by a flight-status bus subscriber on one goroutine and read by the
// estimator task on another.
type Status struct {
	armed atomic.Int32
}

// NewStatus returns a Status initialized to Disarmed.
func NewStatus() *Status {
	return &Status{}
}

// Set records the current armed state.
func (s *Status) Set(a Armed) {
	s.armed.Store(int32(a))
}

// Armed returns the current armed state.
func (s *Status) Armed() Armed {
	return Armed(s.armed.Load())
}

// IsArming reports whether the vehicle is in the transient arming state
// (§4.1 startup-phase policy, §Glossary "Arming").
func (s *Status) IsArming() bool {
	return s.Armed() == ArmedArming
}
