package orchestration

import (
	"fmt"
	"slices"

	"github.com/minisc/minisc/internal/cloud"
)

// State is a point in the cluster lifecycle.
type State string

const (
	StateEmpty             State = "Empty"
	StateNetworkReady      State = "NetworkReady"
	StateSecurityReady     State = "SecurityReady"
	StateHeadRunning       State = "HeadRunning"
	StateAwaitingJoinToken State = "AwaitingJoinToken"
	StateWorkersRunning    State = "WorkersRunning"
	StateAborted           State = "Aborted"
)

// AllStates lists every state in lifecycle order.
var AllStates = []State{
	StateEmpty,
	StateNetworkReady,
	StateSecurityReady,
	StateHeadRunning,
	StateAwaitingJoinToken,
	StateWorkersRunning,
	StateAborted,
}

var transitions = map[State][]State{
	StateEmpty:             {StateNetworkReady, StateAborted},
	StateNetworkReady:      {StateSecurityReady, StateAborted},
	StateSecurityReady:     {StateHeadRunning, StateAborted},
	StateHeadRunning:       {StateAwaitingJoinToken, StateAborted},
	StateAwaitingJoinToken: {StateWorkersRunning, StateAborted},
}

// CanTransition reports whether to directly follows from.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", cloud.ErrInvalidState, from, to)
	}
	return nil
}

func stateNames() []string {
	names := make([]string, len(AllStates))
	for i, s := range AllStates {
		names[i] = string(s)
	}
	return names
}
