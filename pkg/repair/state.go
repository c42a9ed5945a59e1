package repair

import "fmt"

// Phase is the repair progress of one diagram source.
//
//	Idle --begin--> Repairing --succeed--> Repaired
//	                          --exhaust--> Exhausted
//
// Repaired and Exhausted are terminal: a source leaves them only through
// Coordinator.Reset.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRepairing
	PhaseRepaired
	PhaseExhausted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRepairing:
		return "repairing"
	case PhaseRepaired:
		return "repaired"
	case PhaseExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseRepaired || p == PhaseExhausted
}

// State tracks one diagram source.
type State struct {
	Source string
	Phase  Phase
	// Depth counts the repairs that led to Source; the source a document
	// was generated with has depth 0.
	Depth int
}

// Attempted reports whether a repair request was sent for Source.
func (s State) Attempted() bool { return s.Phase != PhaseIdle }

// InFlight reports whether a repair request for Source is outstanding.
func (s State) InFlight() bool { return s.Phase == PhaseRepairing }

// TransitionError is returned for a transition the current phase does not
// allow.
type TransitionError struct {
	Transition string
	From       Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("repair: cannot %s from %s", e.Transition, e.From)
}

func (s *State) begin() error {
	if s.Phase != PhaseIdle {
		return &TransitionError{Transition: "begin", From: s.Phase}
	}
	s.Phase = PhaseRepairing
	return nil
}

func (s *State) succeed() error {
	if s.Phase != PhaseRepairing {
		return &TransitionError{Transition: "succeed", From: s.Phase}
	}
	s.Phase = PhaseRepaired
	return nil
}

// exhaust also accepts Idle, for sources given up on without a request
// (the chain limit).
func (s *State) exhaust() error {
	if s.Phase != PhaseRepairing && s.Phase != PhaseIdle {
		return &TransitionError{Transition: "exhaust", From: s.Phase}
	}
	s.Phase = PhaseExhausted
	return nil
}
