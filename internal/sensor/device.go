// Package sensor starts gaze sensors and exposes their output as a line
// stream for sensormux.
package sensor

import (
	"fmt"
	"strings"
)

// Device selects which sensor produces samples.
type Device int

const (
	// Mouse reports the pointer position as if it were a gaze point.
	Mouse Device = iota
	// Tobii reads a Tobii Pro eye tracker through tobii_research.
	Tobii
)

func (d Device) String() string {
	switch d {
	case Mouse:
		return "mouse"
	case Tobii:
		return "tobii"
	default:
		return fmt.Sprintf("Device(%d)", int(d))
	}
}

// DisplayName is the device name recorded with each session.
func (d Device) DisplayName() string {
	switch d {
	case Mouse:
		return "Mouse"
	case Tobii:
		return "Tobii Pro Fusion"
	default:
		return d.String()
	}
}

// ParseDevice accepts the config spelling of a device.
func ParseDevice(s string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mouse", "":
		return Mouse, nil
	case "tobii", "tobii pro fusion":
		return Tobii, nil
	default:
		return Mouse, fmt.Errorf("unknown sensor device %q: expected mouse or tobii", s)
	}
}
