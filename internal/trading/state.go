// Package trading sequences the remote account lifecycle that turns a
// parsed signal into submitted orders.
package trading

import "fmt"

// State is one stage of the execution lifecycle.
type State string

const (
	StateDisconnected        State = "disconnected"
	StateDeploying           State = "deploying"
	StateWaitingConnected    State = "waiting_connected"
	StateConnecting          State = "connecting"
	StateWaitingSynchronized State = "waiting_synchronized"
	StateSynchronized        State = "synchronized"
	StateSubmitting          State = "submitting"
	StateDone                State = "done"
	StateFailed              State = "failed"
)

// transitions lists the allowed next states for each state. Failure is
// reachable from every non-terminal state; nothing leaves a terminal state.
var transitions = map[State][]State{
	StateDisconnected:        {StateDeploying, StateWaitingConnected, StateFailed},
	StateDeploying:           {StateWaitingConnected, StateFailed},
	StateWaitingConnected:    {StateConnecting, StateFailed},
	StateConnecting:          {StateWaitingSynchronized, StateFailed},
	StateWaitingSynchronized: {StateSynchronized, StateFailed},
	StateSynchronized:        {StateSubmitting, StateDone, StateFailed},
	StateSubmitting:          {StateDone, StateFailed},
	StateDone:                {},
	StateFailed:              {},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the state ends the lifecycle.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

func invalidTransition(from, to State) error {
	return fmt.Errorf("invalid lifecycle transition %s -> %s", from, to)
}
