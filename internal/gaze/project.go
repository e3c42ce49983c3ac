package gaze

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrProjection = errors.New("gaze point could not be projected")

// DominantEye selects the eye whose horizontal coordinate is authoritative.
type DominantEye int

const (
	EyeUnset DominantEye = iota
	EyeLeft
	EyeRight
)

func (e DominantEye) String() string {
	switch e {
	case EyeLeft:
		return "left"
	case EyeRight:
		return "right"
	default:
		return "unset"
	}
}

// ParseDominantEye accepts "left" or "right" in any case.
func ParseDominantEye(s string) (DominantEye, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l":
		return EyeLeft, nil
	case "right", "r":
		return EyeRight, nil
	default:
		return EyeUnset, fmt.Errorf("unknown dominant eye %q: expected left or right", s)
	}
}

// ScreenPoint is a location in absolute device-screen pixels.
type ScreenPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Project combines both eyes into one screen point. X comes from the
// dominant eye, Y is the mean of both eyes so vertical jitter is damped.
func Project(s Sample, dominant DominantEye, screenWidth, screenHeight float64) (ScreenPoint, error) {
	if !finite(s.Left.Y) || !finite(s.Right.Y) {
		return ScreenPoint{}, fmt.Errorf("%w: missing vertical coordinate", ErrProjection)
	}

	var x float64
	switch dominant {
	case EyeLeft:
		x = s.Left.X
	case EyeRight:
		x = s.Right.X
	case EyeUnset:
		return ScreenPoint{}, fmt.Errorf("%w: dominant eye not configured", ErrProjection)
	default:
		return ScreenPoint{}, fmt.Errorf("%w: unknown dominant eye %d", ErrProjection, int(dominant))
	}
	if !finite(x) {
		return ScreenPoint{}, fmt.Errorf("%w: missing %s eye horizontal coordinate", ErrProjection, dominant)
	}

	px, py := x*screenWidth, (s.Left.Y+s.Right.Y)/2*screenHeight
	if !onScreenScale(px) || !onScreenScale(py) {
		return ScreenPoint{}, fmt.Errorf("%w: point (%g, %g) out of pixel range", ErrProjection, px, py)
	}
	return ScreenPoint{X: int(px), Y: int(py)}, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// onScreenScale rejects values whose int conversion is undefined. Points
// off screen are still valid and classify as OOB.
func onScreenScale(v float64) bool {
	return finite(v) && v > math.MinInt32 && v < math.MaxInt32
}
