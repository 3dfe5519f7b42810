package chat

import (
	"github.com/qmuntal/stateless" // FSM library
)

// State is the lifecycle of the current chat view.
type State string

const (
	StateNoChat  State = "NoChat"  // nothing selected
	StateLoading State = "Loading" // selected, messages not fetched yet
	StateReady   State = "Ready"   // messages fetched at least once
)

// Trigger moves the view between states.
type Trigger string

const (
	TriggerSelect Trigger = "Select"
	TriggerLoaded Trigger = "Loaded"
	TriggerClose  Trigger = "Close"
)

// newViewMachine builds the view FSM. The message list is only trusted in
// StateReady; an empty list in StateLoading means "not fetched yet".
//
//	NoChat  --Select--> Loading
//	Loading --Select--> Loading (another chat)
//	Loading --Loaded--> Ready
//	Ready   --Select--> Loading
//	Loading/Ready --Close--> NoChat
func newViewMachine() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(StateNoChat)

	fsm.Configure(StateNoChat).
		Permit(TriggerSelect, StateLoading).
		Ignore(TriggerClose).
		Ignore(TriggerLoaded)

	fsm.Configure(StateLoading).
		PermitReentry(TriggerSelect).
		Permit(TriggerLoaded, StateReady).
		Permit(TriggerClose, StateNoChat)

	fsm.Configure(StateReady).
		Permit(TriggerSelect, StateLoading).
		Ignore(TriggerLoaded).
		Permit(TriggerClose, StateNoChat)

	return fsm
}
