package game

import "fmt"

// Action is the single move a program returns for one turn.
type Action int

const (
	DoNothing Action = iota
	Attack
	MoveForward
	TurnLeft
	TurnRight
	Retreat
)

// Fallback is substituted whenever a program times out, exhausts its quota or faults.
const Fallback = DoNothing

var actionNames = [...]string{
	DoNothing:   "DO_NOTHING",
	Attack:      "ATTACK",
	MoveForward: "MOVE_FORWARD",
	TurnLeft:    "TURN_LEFT",
	TurnRight:   "TURN_RIGHT",
	Retreat:     "RETREAT",
}

// Actions lists every action in declaration order.
func Actions() []Action {
	out := make([]Action, len(actionNames))
	for i := range actionNames {
		out[i] = Action(i)
	}
	return out
}

func (a Action) Valid() bool {
	return a >= 0 && int(a) < len(actionNames)
}

func (a Action) String() string {
	if !a.Valid() {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return actionNames[a]
}

// ParseAction maps a wire name such as "ATTACK" back to its Action.
func ParseAction(name string) (Action, error) {
	for i, n := range actionNames {
		if n == name {
			return Action(i), nil
		}
	}
	return DoNothing, fmt.Errorf("unknown action %q", name)
}

func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid action %d", int(a))
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	parsed, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
