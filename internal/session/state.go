package session

import (
	"encoding/json"
	"fmt"
)

// State is the lifecycle position of a session. Stopped is terminal; a
// new Controller is needed to track again.
type State int

const (
	Idle State = iota
	Tracking
	Paused
	Stopped
)

var stateNames = map[State]string{
	Idle:     "idle",
	Tracking: "tracking",
	Paused:   "paused",
	Stopped:  "stopped",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for st, n := range stateNames {
		if n == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", name)
}
