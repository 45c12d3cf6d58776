package relay

import (
	"time"

	"github.com/bft-labs/pikarelay/internal/app"
	"github.com/bft-labs/pikarelay/internal/domain"
)

// State represents the lifecycle state of a Sender.
type State int

const (
	// StateIdle means the sender was created but not started.
	StateIdle State = iota
	// StateConnecting means the first session is being established.
	StateConnecting
	// StateSending means commands are being relayed.
	StateSending
	// StateReconnecting means a send failed and a new session is being established.
	StateReconnecting
	// StateDraining means Stop was called and queued commands are still being sent.
	StateDraining
	// StateStopped is terminal: the queue was drained or a fatal error occurred.
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

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	SenderID int
	Previous State
	Current  State
	Reason   string
}

// ConnectEvent is emitted when a session is authenticated and ready.
type ConnectEvent struct {
	SenderID int
	Addr     string
	// Attempts counts the dials it took, starting at 1.
	Attempts int
}

// ConnectErrorEvent is emitted for every failed connect attempt.
type ConnectErrorEvent struct {
	SenderID int
	Error    error
	// Fatal is true when the sender gives up.
	Fatal bool
}

// SendSuccessEvent is emitted when the store replied to a command.
// A store error reply still counts as a success.
type SendSuccessEvent struct {
	SenderID int
	Key      string
	Bytes    int
	Duration time.Duration
}

// SendErrorEvent is emitted when a command could not be delivered and was
// put back in the queue.
type SendErrorEvent struct {
	SenderID int
	Key      string
	Bytes    int
	Error    error
}

// EventHandler receives Sender events.
// Methods are called synchronously from the worker goroutine and must not block.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnConnect(ConnectEvent)
	OnConnectError(ConnectErrorEvent)
	OnSendSuccess(SendSuccessEvent)
	OnSendError(SendErrorEvent)
}

// BaseEventHandler implements EventHandler with no-ops.
// Embed it to override only the events you care about.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)   {}
func (BaseEventHandler) OnConnect(ConnectEvent)           {}
func (BaseEventHandler) OnConnectError(ConnectErrorEvent) {}
func (BaseEventHandler) OnSendSuccess(SendSuccessEvent)   {}
func (BaseEventHandler) OnSendError(SendErrorEvent)       {}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	senderID int
	handler  EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		SenderID: e.senderID,
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnConnect(addr string, attempts int) {
	if e.handler == nil {
		return
	}
	e.handler.OnConnect(ConnectEvent{SenderID: e.senderID, Addr: addr, Attempts: attempts})
}

func (e *eventEmitterWrapper) OnConnectError(err error, fatal bool) {
	if e.handler == nil {
		return
	}
	e.handler.OnConnectError(ConnectErrorEvent{SenderID: e.senderID, Error: err, Fatal: fatal})
}

func (e *eventEmitterWrapper) OnSendSuccess(cmd domain.Command, duration time.Duration) {
	if e.handler == nil {
		return
	}
	e.handler.OnSendSuccess(SendSuccessEvent{
		SenderID: e.senderID,
		Key:      cmd.Key,
		Bytes:    cmd.Size(),
		Duration: duration,
	})
}

func (e *eventEmitterWrapper) OnSendError(cmd domain.Command, err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnSendError(SendErrorEvent{
		SenderID: e.senderID,
		Key:      cmd.Key,
		Bytes:    cmd.Size(),
		Error:    err,
	})
}

func convertState(s app.State) State {
	switch s {
	case app.StateIdle:
		return StateIdle
	case app.StateConnecting:
		return StateConnecting
	case app.StateSending:
		return StateSending
	case app.StateReconnecting:
		return StateReconnecting
	case app.StateDraining:
		return StateDraining
	default:
		return StateStopped
	}
}
