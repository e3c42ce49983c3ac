package sensor

import (
	"bytes"
	"embed"
	"fmt"
	"strconv"
	"text/template"
)

//go:embed scripts/*.py.tmpl
var scriptFS embed.FS

var scripts = template.Must(template.ParseFS(scriptFS, "scripts/*.py.tmpl"))

// Script renders the Python program for the device at the given sample
// frequency in Hz.
func Script(d Device, frequency float64) (string, error) {
	if frequency <= 0 {
		return "", fmt.Errorf("sample frequency must be positive, got %v", frequency)
	}
	var name string
	switch d {
	case Mouse:
		name = "mouse.py.tmpl"
	case Tobii:
		name = "tobii.py.tmpl"
	default:
		return "", fmt.Errorf("no script for device %v", d)
	}

	var buf bytes.Buffer
	data := struct{ Frequency string }{strconv.FormatFloat(frequency, 'f', -1, 64)}
	if err := scripts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
