package session

import (
	"errors"
	"fmt"
)

// Phase is the meeting lifecycle state. Transitions are driven by user
// actions and by protocol events; anything not listed below is rejected
// with ErrInvalidTransition instead of being silently tolerated.
//
//	Setup      --Start-->            Connecting
//	Connecting --connection_ready--> Active
//	Active     --End-->              Ending
//	Ending     --summary-->          Summarized
//	any        --Reset-->            Setup
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseConnecting
	PhaseActive
	PhaseEnding
	PhaseSummarized
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseConnecting:
		return "connecting"
	case PhaseActive:
		return "active"
	case PhaseEnding:
		return "ending"
	case PhaseSummarized:
		return "summarized"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned when an action is not legal in the
// current phase, e.g. toggling the mic before the meeting has started.
var ErrInvalidTransition = errors.New("invalid session transition")

func invalidTransition(action string, from Phase) error {
	return fmt.Errorf("%s while %s: %w", action, from, ErrInvalidTransition)
}
