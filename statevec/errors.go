package statevec

import "errors"

var (
	// ErrInvalidQubitIndex is returned when a target qubit is out of range or
	// duplicated within one call. Rejected before any mutation.
	ErrInvalidQubitIndex = errors.New("statevec: invalid qubit index")

	// ErrBudgetTooSmall is a configuration error: the block budget cannot hold
	// the largest concurrent block group a registered gate requires.
	ErrBudgetTooSmall = errors.New("statevec: block budget too small")

	// ErrDenormalized is a non-fatal diagnostic: the sum of squared amplitude
	// magnitudes deviates from 1 beyond the configured tolerance, signalling a
	// numerical or logic defect upstream.
	ErrDenormalized = errors.New("statevec: state norm outside tolerance")

	// ErrTierIO marks a tier read or write that failed after exhausting its
	// retry budget. It escalates: ApplyGate attempts a best-effort checkpoint
	// before propagating it.
	ErrTierIO = errors.New("statevec: tier io failed")

	// ErrCorruptCheckpoint is returned by Resume when no committed checkpoint
	// passes validation.
	ErrCorruptCheckpoint = errors.New("statevec: no usable checkpoint")

	// ErrUnknownGate is returned by ByName for an unrecognized gate name.
	ErrUnknownGate = errors.New("statevec: unknown gate")
)
