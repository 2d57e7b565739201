package extract

import (
	"fmt"
	"sync"
)

// State is a per-file processing state.
type State string

const (
	StatePending        State = "pending"
	StateProbing        State = "probing"
	StateClassifying    State = "classifying"
	StateSkipped        State = "skipped"
	StateNaming         State = "naming"
	StateExtracting     State = "extracting"
	StateSuccess        State = "success"
	StatePartialFailure State = "partial_failure"
	StateFailed         State = "failed"
	StateAborted        State = "aborted"
)

var transitions = map[State][]State{
	StatePending:     {StateProbing},
	StateProbing:     {StateClassifying, StateFailed},
	StateClassifying: {StateSkipped, StateNaming, StateFailed},
	StateNaming:      {StateExtracting, StateSkipped, StateFailed},
	StateExtracting:  {StateSuccess, StatePartialFailure, StateAborted},
}

// IsTerminal reports whether no further transition is allowed.
func (s State) IsTerminal() bool {
	switch s {
	case StateSkipped, StateSuccess, StatePartialFailure, StateFailed, StateAborted:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Machine tracks one file's progress through the states. The zero value is
// not usable; call NewMachine.
type Machine struct {
	mu      sync.Mutex
	state   State
	history []State
}

// NewMachine starts a machine in StatePending.
func NewMachine() *Machine {
	return &Machine{state: StatePending, history: []State{StatePending}}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// History returns every state visited, in order.
func (m *Machine) History() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]State, len(m.history))
	copy(out, m.history)
	return out
}

// Transition moves to next or returns an error for an illegal step.
func (m *Machine) Transition(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.IsTerminal() {
		return fmt.Errorf("illegal transition %s -> %s: %s is terminal", m.state, next, m.state)
	}
	if !CanTransition(m.state, next) {
		return fmt.Errorf("illegal transition %s -> %s", m.state, next)
	}
	m.state = next
	m.history = append(m.history, next)
	return nil
}
