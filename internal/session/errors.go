package session

import "errors"

var (
	// ErrSensorProcess means the sensor could not be started or exited
	// while the session was still tracking. It ends the session.
	ErrSensorProcess = errors.New("sensor process failure")

	// ErrInvalidState is returned for a transition the current state does
	// not allow, such as resuming a session that is not paused.
	ErrInvalidState = errors.New("invalid session state transition")
)
