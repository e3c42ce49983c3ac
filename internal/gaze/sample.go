// Package gaze decodes raw dual-eye tracker samples and projects them onto
// the screen.
package gaze

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrMalformed    = errors.New("malformed gaze sample")
	ErrNumericParse = errors.New("unparseable numeric field")

	errInfinite = errors.New("value is not finite")
)

// NoData is the token sensors emit for a missing measurement.
const NoData = "nan"

const (
	leftFields       = 5
	rightFields      = 7
	rightFieldsShort = 5 // mouse surrogate omits trackbox depth
)

// EyeData holds the per-eye fields of a sample. X and Y are normalised
// display-area coordinates in [0,1] or NaN when the eye was not found.
type EyeData struct {
	X             float64 `json:"gaze_point_x"`
	Y             float64 `json:"gaze_point_y"`
	Validity      float64 `json:"gaze_validity"`
	PupilDiameter float64 `json:"pupil_diameter"`
	PupilValidity float64 `json:"pupil_validity"`
}

// Sample is one decoded line of sensor output.
type Sample struct {
	Timestamp      int64   `json:"timestamp"`
	Left           EyeData `json:"left_eye"`
	Right          EyeData `json:"right_eye"`
	LeftTrackboxZ  float64 `json:"left_trackbox_z"`
	RightTrackboxZ float64 `json:"right_trackbox_z"`
}

// DecodeError describes why a line could not be decoded. It matches
// ErrMalformed or ErrNumericParse with errors.Is.
type DecodeError struct {
	Kind  error
	Field string
	Value string
	Err   error
}

func (e *DecodeError) Error() string {
	switch {
	case e.Field == "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Value)
	case e.Err != nil:
		return fmt.Sprintf("%v: field %s=%q: %v", e.Kind, e.Field, e.Value, e.Err)
	default:
		return fmt.Sprintf("%v: field %s=%q", e.Kind, e.Field, e.Value)
	}
}

func (e *DecodeError) Is(target error) bool { return target == e.Kind }

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses "timestamp; lx, ly, lv, lpd, lpv; rx, ry, rv, rpd, rpv, lz, rz".
// Whitespace around separators is ignored.
func Decode(line string) (Sample, error) {
	var s Sample
	line = strings.TrimSpace(line)

	parts := strings.Split(line, ";")
	if len(parts) != 3 {
		return s, &DecodeError{Kind: ErrMalformed, Value: fmt.Sprintf("expected 3 fields, got %d", len(parts))}
	}

	ts := strings.TrimSpace(parts[0])
	timestamp, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		// some sensors emit fractional milliseconds
		f, ferr := strconv.ParseFloat(ts, 64)
		if ferr != nil || math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return s, &DecodeError{Kind: ErrNumericParse, Field: "timestamp", Value: ts, Err: err}
		}
		timestamp = int64(f)
	}
	s.Timestamp = timestamp

	left := splitBlock(parts[1])
	if len(left) != leftFields {
		return s, &DecodeError{Kind: ErrMalformed, Value: fmt.Sprintf("left eye block has %d fields, expected %d", len(left), leftFields)}
	}
	right := splitBlock(parts[2])
	if len(right) != rightFields && len(right) != rightFieldsShort {
		return s, &DecodeError{Kind: ErrMalformed, Value: fmt.Sprintf("right eye block has %d fields, expected %d", len(right), rightFields)}
	}

	if s.Left, err = decodeEye("left", left); err != nil {
		return s, err
	}
	if s.Right, err = decodeEye("right", right[:rightFieldsShort]); err != nil {
		return s, err
	}

	s.LeftTrackboxZ, s.RightTrackboxZ = math.NaN(), math.NaN()
	if len(right) == rightFields {
		if s.LeftTrackboxZ, err = parseField("left_trackbox_z", right[5]); err != nil {
			return s, err
		}
		if s.RightTrackboxZ, err = parseField("right_trackbox_z", right[6]); err != nil {
			return s, err
		}
	}
	return s, nil
}

func splitBlock(block string) []string {
	fields := strings.Split(block, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func decodeEye(eye string, f []string) (EyeData, error) {
	var d EyeData
	targets := []struct {
		name string
		dst  *float64
	}{
		{"gaze_point_x", &d.X},
		{"gaze_point_y", &d.Y},
		{"gaze_validity", &d.Validity},
		{"pupil_diameter", &d.PupilDiameter},
		{"pupil_validity", &d.PupilValidity},
	}
	for i, t := range targets {
		v, err := parseField(eye+"_"+t.name, f[i])
		if err != nil {
			return d, err
		}
		*t.dst = v
	}
	return d, nil
}

// parseField maps the "no data" token to NaN. Python prints booleans for
// validity flags, so True/False are accepted as 1/0.
func parseField(name, raw string) (float64, error) {
	switch strings.ToLower(raw) {
	case NoData:
		return math.NaN(), nil
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &DecodeError{Kind: ErrNumericParse, Field: name, Value: raw, Err: err}
	}
	if math.IsInf(v, 0) {
		return 0, &DecodeError{Kind: ErrNumericParse, Field: name, Value: raw, Err: errInfinite}
	}
	return v, nil
}
