package tracker

import "encoding/json"

// State is where a tracker is in Idle -> Active <-> Paused -> Idle.
type State int

const (
	StateIdle State = iota
	StateActive
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	}
	return "idle"
}

func (s State) IsTracking() bool { return s != StateIdle }

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
