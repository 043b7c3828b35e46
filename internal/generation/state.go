package generation

import (
	kberr "github.com/mwestra/kbindex/internal/errors"
)

// State is the lifecycle phase of an index type's generation pipeline.
type State string

const (
	// StateReady means no run is in flight; the last run (if any)
	// either completed or was reset.
	StateReady State = "ready"
	// StateParser means the engine is parsing source documents.
	StateParser State = "parser"
	// StateGeneration means the engine is building the storage artifact.
	StateGeneration State = "generation"
	// StateError is terminal until an explicit reset.
	StateError State = "error"
)

// Machine is the generation state machine. It is not safe for
// concurrent use; the Manager serializes access to it.
type Machine struct {
	state       State
	errorSource State
}

// NewMachine returns a machine in StateReady.
func NewMachine() *Machine {
	return &Machine{state: StateReady}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// ErrorSource reports which state the machine failed from. It is the
// zero value unless the machine is in StateError.
func (m *Machine) ErrorSource() State {
	return m.errorSource
}

// Apply drives one transition from a classified signal. It returns true
// when the state changed. Signals that do not fit the current state are
// ignored: a stray "complete" while ready means the engine replayed old
// output, not that a run finished.
func (m *Machine) Apply(sig Signal) bool {
	if m.state == StateError {
		return false
	}

	switch sig.Kind {
	case KindStart:
		if m.state == StateReady {
			m.state = StateParser
			return true
		}
	case KindParserComplete:
		if m.state == StateParser {
			m.state = StateGeneration
			return true
		}
	case KindComplete:
		if m.state == StateGeneration {
			m.state = StateReady
			return true
		}
	case KindFailure:
		m.errorSource = m.state
		m.state = StateError
		return true
	}
	return false
}

// Reset returns the machine from StateError to StateReady. Any other
// state is rejected: reset is an error-recovery action, not a cancel.
func (m *Machine) Reset() error {
	if m.state != StateError {
		return kberr.New(kberr.ErrCodeNotResettable,
			"cannot reset from state "+string(m.state), nil).
			WithSuggestion("reset is only valid after a failed run")
	}
	m.state = StateReady
	m.errorSource = ""
	return nil
}
