package gaze

import (
	"encoding/json"
	"math"
)

// nullable maps NaN to nil so "no data" survives JSON encoding as null.
func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

type eyeJSON struct {
	X             *float64 `json:"gaze_point_x"`
	Y             *float64 `json:"gaze_point_y"`
	Validity      *float64 `json:"gaze_validity"`
	PupilDiameter *float64 `json:"pupil_diameter"`
	PupilValidity *float64 `json:"pupil_validity"`
}

func (d EyeData) MarshalJSON() ([]byte, error) {
	return json.Marshal(eyeJSON{
		X:             nullable(d.X),
		Y:             nullable(d.Y),
		Validity:      nullable(d.Validity),
		PupilDiameter: nullable(d.PupilDiameter),
		PupilValidity: nullable(d.PupilValidity),
	})
}

func (d *EyeData) UnmarshalJSON(b []byte) error {
	var v eyeJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*d = EyeData{
		X:             orNaN(v.X),
		Y:             orNaN(v.Y),
		Validity:      orNaN(v.Validity),
		PupilDiameter: orNaN(v.PupilDiameter),
		PupilValidity: orNaN(v.PupilValidity),
	}
	return nil
}

type sampleJSON struct {
	Timestamp      int64    `json:"timestamp"`
	Left           EyeData  `json:"left_eye"`
	Right          EyeData  `json:"right_eye"`
	LeftTrackboxZ  *float64 `json:"left_trackbox_z"`
	RightTrackboxZ *float64 `json:"right_trackbox_z"`
}

func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleJSON{
		Timestamp:      s.Timestamp,
		Left:           s.Left,
		Right:          s.Right,
		LeftTrackboxZ:  nullable(s.LeftTrackboxZ),
		RightTrackboxZ: nullable(s.RightTrackboxZ),
	})
}

func (s *Sample) UnmarshalJSON(b []byte) error {
	var v sampleJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = Sample{
		Timestamp:      v.Timestamp,
		Left:           v.Left,
		Right:          v.Right,
		LeftTrackboxZ:  orNaN(v.LeftTrackboxZ),
		RightTrackboxZ: orNaN(v.RightTrackboxZ),
	}
	return nil
}
