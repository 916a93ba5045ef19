package services

import (
	"fmt"
	"sync"

	"signalbroker/internal/core/domain"
)

// legalTransitions encodes §4.E's per-role state machine:
// CONNECTED -> IDENTIFIED -> SUBSCRIBED -> CLOSING, with CLOSING reachable
// from any state and SUBSCRIBED only meaningful for players (a streamer or
// SFU connection simply never requests that transition).
var legalTransitions = map[domain.ConnState]map[domain.ConnState]bool{
	domain.StateConnected: {
		domain.StateIdentified: true,
		domain.StateClosing:    true,
	},
	domain.StateIdentified: {
		domain.StateSubscribed: true,
		domain.StateClosing:    true,
	},
	domain.StateSubscribed: {
		domain.StateIdentified: true, // a player may unsubscribe and pick a new streamer
		domain.StateClosing:    true,
	},
	domain.StateClosing: {},
}

// Machine is a single connection's role state machine. It is a pure state
// guard: the transport layer calls Transition before acting on a frame,
// and the machine rejects anything out of order.
type Machine struct {
	mu    sync.Mutex
	state domain.ConnState
}

// NewMachine starts a machine in CONNECTED.
func NewMachine() *Machine {
	return &Machine{state: domain.StateConnected}
}

// State returns the current state.
func (m *Machine) State() domain.ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition attempts to move to `to`, returning ErrInvalidTransition if
// the move isn't legal from the current state.
func (m *Machine) Transition(to domain.ConnState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == to {
		return nil
	}
	if allowed, ok := legalTransitions[m.state]; !ok || !allowed[to] {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, m.state, to)
	}
	m.state = to
	return nil
}
