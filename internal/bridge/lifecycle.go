package bridge

import (
	"context"

	"github.com/looplab/fsm"
)

// State is the lifecycle position of a bridged call.
type State string

const (
	StatePending        State = "pending"
	StateAuthenticating State = "authenticating"
	StateActive         State = "active"
	StateClosing        State = "closing"
	StateClosed         State = "closed"
)

const (
	eventStart     = "start"
	eventAuthorize = "authorize"
	eventReject    = "reject"
	eventHangup    = "hangup"
	eventFinish    = "finish"
)

// newLifecycle builds the call state machine:
//
//	pending --start--> authenticating --authorize--> active
//	authenticating --reject--> closing
//	pending|authenticating|active --hangup--> closing --finish--> closed
func newLifecycle(onChange func(from, to State)) *fsm.FSM {
	return fsm.NewFSM(
		string(StatePending),
		fsm.Events{
			{Name: eventStart, Src: []string{string(StatePending)}, Dst: string(StateAuthenticating)},
			{Name: eventAuthorize, Src: []string{string(StateAuthenticating)}, Dst: string(StateActive)},
			{Name: eventReject, Src: []string{string(StateAuthenticating)}, Dst: string(StateClosing)},
			{Name: eventHangup, Src: []string{string(StatePending), string(StateAuthenticating), string(StateActive)}, Dst: string(StateClosing)},
			{Name: eventFinish, Src: []string{string(StateClosing)}, Dst: string(StateClosed)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if onChange != nil {
					onChange(State(e.Src), State(e.Dst))
				}
			},
		},
	)
}
