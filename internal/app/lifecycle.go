package app

import (
	"errors"
	"sync"

	"github.com/bft-labs/pikarelay/pkg/log"
)

// ErrInvalidTransition is returned when a state change is not allowed.
var ErrInvalidTransition = errors.New("pikarelay: invalid state transition")

// State is a step of the worker state machine.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateSending
	StateReconnecting
	StateDraining
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting"
	case StateSending:
		return "Sending"
	case StateReconnecting:
		return "Reconnecting"
	case StateDraining:
		return "Draining"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// transitions lists, for each state, the states it may move to.
// Stopped is terminal.
var transitions = map[State][]State{
	StateIdle:         {StateConnecting},
	StateConnecting:   {StateSending, StateDraining, StateStopped},
	StateSending:      {StateReconnecting, StateDraining, StateStopped},
	StateReconnecting: {StateSending, StateDraining, StateStopped},
	StateDraining:     {StateReconnecting, StateStopped},
}

// EventEmitter is called when the worker state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle tracks the worker state and validates every change.
type Lifecycle struct {
	mu           sync.RWMutex
	state        State
	logger       log.Logger
	eventEmitter EventEmitter
}

// NewLifecycle creates a lifecycle in StateIdle. emitter may be nil.
func NewLifecycle(logger log.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{
		state:        StateIdle,
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo moves to newState, or returns ErrInvalidTransition.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state
	if !allowed(oldState, newState) {
		l.mu.Unlock()
		return ErrInvalidTransition
	}
	l.state = newState
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Info("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)
	return nil
}

// Started returns true once the worker has left StateIdle.
func (l *Lifecycle) Started() bool {
	return l.State() != StateIdle
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
