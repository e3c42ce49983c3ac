package sensor

import (
	"fmt"
	"time"

	"github.com/banshee-data/gaze.report/internal/sensormux"
)

// DefaultPython is the interpreter used when none is configured.
const DefaultPython = "python3"

// Launcher starts a sensor and returns its output stream. Closing the
// stream stops the sensor.
type Launcher interface {
	Launch() (sensormux.LinePorter, error)
}

// Options selects and parameterizes a sensor. At most one of Command and
// SerialPort is honoured; Command wins.
type Options struct {
	Device    Device
	Frequency float64

	// Python interpreter for the embedded device scripts.
	Python string

	// Command replaces the embedded script with an arbitrary program that
	// writes sample lines to stdout.
	Command []string

	// SerialPort reads samples from a serial device instead of a process.
	SerialPort string
	Serial     SerialOptions
}

// Launch implements Launcher.
func (o Options) Launch() (sensormux.LinePorter, error) {
	if len(o.Command) > 0 {
		return StartProcess(o.Command[0], o.Command[1:]...)
	}
	if o.SerialPort != "" {
		return OpenSerial(o.SerialPort, o.Serial)
	}

	script, err := Script(o.Device, o.Frequency)
	if err != nil {
		return nil, err
	}
	python := o.Python
	if python == "" {
		python = DefaultPython
	}
	return StartProcess(python, "-c", script)
}

// Replay is a Launcher that loops over recorded sample lines at the given
// frequency.
type Replay struct {
	Lines     []string
	Frequency float64
}

func (r Replay) Launch() (sensormux.LinePorter, error) {
	if r.Frequency <= 0 {
		return nil, fmt.Errorf("replay frequency must be positive, got %v", r.Frequency)
	}
	interval := time.Duration(float64(time.Second) / r.Frequency)
	return sensormux.NewReplayPort(r.Lines, interval), nil
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func() (sensormux.LinePorter, error)

func (f LauncherFunc) Launch() (sensormux.LinePorter, error) { return f() }
