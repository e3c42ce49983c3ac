// Package report summarises recorded gaze sessions as statistics and charts.
package report

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/gaze.report/internal/gaze"
)

// AOIStat aggregates the records that resolved to one AOI label.
type AOIStat struct {
	AOI     string  `json:"aoi"`
	Samples int     `json:"samples"`
	Share   float64 `json:"share"`
	// Dwells are maximal runs of consecutive samples on this AOI.
	Dwells      int     `json:"dwells"`
	MeanDwellMs float64 `json:"mean_dwell_ms"`
	StdDwellMs  float64 `json:"std_dwell_ms"`
	MaxDwellMs  float64 `json:"max_dwell_ms"`
}

// Summary describes one session's records.
type Summary struct {
	SessionID     string    `json:"session_id"`
	Samples       int       `json:"samples"`
	InvalidPoints int       `json:"invalid_points"`
	NoEditor      int       `json:"no_editor"`
	EditorHits    int       `json:"editor_hits"`
	Unchanged     int       `json:"unchanged_structure"`
	DurationMs    int64     `json:"duration_ms"`
	MeanX         float64   `json:"mean_x"`
	MeanY         float64   `json:"mean_y"`
	AOIs          []AOIStat `json:"aois"`
}

type dwell struct {
	aoi        string
	start, end int64
}

// Summarize computes per-AOI statistics. records must be in timestamp order.
func Summarize(sessionID string, records []gaze.Record) Summary {
	s := Summary{SessionID: sessionID, Samples: len(records), AOIs: []AOIStat{}}
	if len(records) == 0 {
		return s
	}
	s.DurationMs = records[len(records)-1].Timestamp - records[0].Timestamp

	var xs, ys []float64
	var dwells []dwell
	counts := map[string]int{}
	labelled := 0

	for _, r := range records {
		switch r.Remark {
		case gaze.RemarkInvalidPoint:
			s.InvalidPoints++
		case gaze.RemarkNoEditor:
			s.NoEditor++
		}
		if r.Location != nil {
			s.EditorHits++
		}
		if r.Structure != nil && r.Structure.Unchanged {
			s.Unchanged++
		}
		if r.Point != nil {
			xs = append(xs, float64(r.Point.X))
			ys = append(ys, float64(r.Point.Y))
		}
		if r.AOI == "" {
			continue
		}
		labelled++
		counts[r.AOI]++
		if n := len(dwells); n > 0 && dwells[n-1].aoi == r.AOI {
			dwells[n-1].end = r.Timestamp
		} else {
			dwells = append(dwells, dwell{aoi: r.AOI, start: r.Timestamp, end: r.Timestamp})
		}
	}

	if len(xs) > 0 {
		s.MeanX = stat.Mean(xs, nil)
		s.MeanY = stat.Mean(ys, nil)
	}

	durations := map[string][]float64{}
	for _, d := range dwells {
		durations[d.aoi] = append(durations[d.aoi], float64(d.end-d.start))
	}

	for aoi, n := range counts {
		ds := durations[aoi]
		st := AOIStat{
			AOI:         aoi,
			Samples:     n,
			Share:       float64(n) / float64(labelled),
			Dwells:      len(ds),
			MeanDwellMs: stat.Mean(ds, nil),
		}
		if len(ds) > 1 {
			st.StdDwellMs = stat.StdDev(ds, nil)
		}
		for _, d := range ds {
			st.MaxDwellMs = math.Max(st.MaxDwellMs, d)
		}
		s.AOIs = append(s.AOIs, st)
	}
	sort.Slice(s.AOIs, func(i, j int) bool {
		if s.AOIs[i].Samples != s.AOIs[j].Samples {
			return s.AOIs[i].Samples > s.AOIs[j].Samples
		}
		return s.AOIs[i].AOI < s.AOIs[j].AOI
	})
	return s
}
