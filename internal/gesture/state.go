// Package gesture turns the per-frame feature stream into pointer actions.
//
// A Machine holds only immutable configuration; every piece of per-frame
// memory (filter history, current state, cooldown timestamps, pinch and swipe
// trackers) lives in a Context owned by the caller. Feeding the same frames
// into a fresh Context always yields the same actions.
package gesture

import (
	"fmt"

	"github.com/ayusman/handmouse/internal/mapper"
)

// State is the gesture the machine currently believes the hand is making.
type State int

const (
	Idle State = iota
	Moving
	LeftClick
	RightClick
	Scrolling
	Swiping
)

var stateNames = map[State]string{
	Idle:       "idle",
	Moving:     "moving",
	LeftClick:  "left_click",
	RightClick: "right_click",
	Scrolling:  "scrolling",
	Swiping:    "swiping",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	st, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseState is the inverse of State.String.
func ParseState(name string) (State, error) {
	for st, n := range stateNames {
		if n == name {
			return st, nil
		}
	}
	return Idle, fmt.Errorf("unknown state %q", name)
}

// ActionKind identifies what the mouse controller should do.
type ActionKind int

const (
	None ActionKind = iota
	Move
	ClickLeft
	ClickRight
	Scroll
	SwipeLeft
	SwipeRight
)

var actionNames = map[ActionKind]string{
	None:       "none",
	Move:       "move",
	ClickLeft:  "left_click",
	ClickRight: "right_click",
	Scroll:     "scroll",
	SwipeLeft:  "swipe_left",
	SwipeRight: "swipe_right",
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes an action kind name.
func (k *ActionKind) UnmarshalText(b []byte) error {
	kind, err := ParseActionKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseActionKind is the inverse of ActionKind.String.
func ParseActionKind(s string) (ActionKind, error) {
	for k, name := range actionNames {
		if name == s {
			return k, nil
		}
	}
	return None, fmt.Errorf("unknown action kind %q", s)
}

// Discrete reports whether the action is a one-shot event rather than
// continuous pointer motion.
func (k ActionKind) Discrete() bool {
	switch k {
	case ClickLeft, ClickRight, SwipeLeft, SwipeRight:
		return true
	}
	return false
}

// Action is the single event produced for one frame. It is consumed
// immediately and never queued.
type Action struct {
	Kind ActionKind `json:"kind"`
	// X and Y are the target pixel for Move.
	X int `json:"x,omitempty"`
	Y int `json:"y,omitempty"`
	// DY is the scroll amount for Scroll. Positive means the hand moved down.
	DY float64 `json:"dy,omitempty"`
}

// NoAction is the idempotent "do nothing" event.
var NoAction = Action{Kind: None}

func moveTo(p mapper.Pixel) Action {
	return Action{Kind: Move, X: p.X, Y: p.Y}
}

func (a Action) String() string {
	switch a.Kind {
	case Move:
		return fmt.Sprintf("move(%d,%d)", a.X, a.Y)
	case Scroll:
		return fmt.Sprintf("scroll(%.3f)", a.DY)
	default:
		return a.Kind.String()
	}
}
