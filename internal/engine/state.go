package engine

import "fmt"

// State is the scheduler's lifecycle state. Only the engine sets it.
type State int32

const (
	// Disabled means the loop is not scheduled.
	Disabled State = iota
	// Idle means the loop is scheduled and waiting for the next tick.
	Idle
	// Scanning means a tick is querying the problem source.
	Scanning
	// Fixing means a tick is invoking the fixer and writing results.
	Fixing
	// CoolingDown means fixes were applied recently and ticks are
	// skipped until the cooldown expires.
	CoolingDown
)

var stateNames = [...]string{"disabled", "idle", "scanning", "fixing", "cooling_down"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown engine state %q", b)
}
