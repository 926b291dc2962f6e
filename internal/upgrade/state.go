// Package upgrade drives a proxied token through an implementation swap and
// checks that the state readable through the proxy survives it.
package upgrade

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// verifier's current state.
	ErrInvalidState = errors.New("invalid verifier state")
	// ErrStateMismatch is returned when post-upgrade state differs from
	// what the upgrade was expected to leave behind.
	ErrStateMismatch = errors.New("state mismatch")
	// ErrExpectationFailed is returned when a mutation's effect cannot be
	// read back.
	ErrExpectationFailed = errors.New("expectation failed")
	// ErrAccessControl is returned when a privileged path was not rejected.
	ErrAccessControl = errors.New("access control violated")
)

// State is the lifecycle stage of one upgrade cycle.
type State int

const (
	StateDeployed State = iota
	StateMutated
	StateUpgrading
	StateUpgraded
)

func (s State) String() string {
	switch s {
	case StateDeployed:
		return "deployed"
	case StateMutated:
		return "mutated"
	case StateUpgrading:
		return "upgrading"
	case StateUpgraded:
		return "upgraded"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// allowed lists the states each transition may start from.
var allowed = map[State][]State{
	StateMutated:   {StateDeployed, StateMutated},
	StateUpgrading: {StateDeployed, StateMutated},
	StateUpgraded:  {StateUpgrading},
}

func checkTransition(from, to State) error {
	for _, s := range allowed[to] {
		if s == from {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, from, to)
}
