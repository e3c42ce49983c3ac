package aoi

import (
	"github.com/banshee-data/gaze.report/internal/editor"
	"github.com/banshee-data/gaze.report/internal/gaze"
)

// Labels used for the non-registry outcomes.
const (
	LabelEditor      = "Editor"
	LabelOutOfBounds = "OOB"
)

// Kind identifies which classification rule matched.
type Kind int

const (
	KindOutOfBounds Kind = iota
	KindPopup
	KindEditor
	KindNamed
)

func (k Kind) String() string {
	switch k {
	case KindPopup:
		return "popup"
	case KindEditor:
		return "editor"
	case KindNamed:
		return "named"
	default:
		return "out_of_bounds"
	}
}

// Classification is the outcome for one point. ID is set for popup and
// named hits. Relative is the point in content-component coordinates and
// is only meaningful for editor hits.
type Classification struct {
	Kind     Kind
	ID       string
	Relative editor.Point
	// EditorUnavailable records that step 2 was skipped because no editor
	// geometry could be read.
	EditorUnavailable bool
}

// Label is the AOI name written to the event log.
func (c Classification) Label() string {
	switch c.Kind {
	case KindPopup, KindNamed:
		return c.ID
	case KindEditor:
		return LabelEditor
	default:
		return LabelOutOfBounds
	}
}

// Resolver classifies points against a registry and the active editor.
type Resolver struct {
	Registry *Registry
}

func NewResolver(r *Registry) *Resolver {
	return &Resolver{Registry: r}
}

// Classify applies, in order: popup overlay, editor viewport, registry
// scan, out of bounds. ed may be nil.
func (r *Resolver) Classify(p gaze.ScreenPoint, ed editor.Context) Classification {
	snap := r.Registry.Snapshot()

	if popup, ok := snap[SearchEverywhere]; ok && popup.Contains(p) {
		return Classification{Kind: KindPopup, ID: SearchEverywhere}
	}

	var geom editor.Geometry
	ok := false
	if ed != nil {
		geom, ok = ed.Geometry()
	}
	if ok {
		rel := editor.Point{X: p.X - geom.Origin.X, Y: p.Y - geom.Origin.Y}
		vx, vy := rel.X-geom.Viewport.X, rel.Y-geom.Viewport.Y
		if vx >= 0 && vy >= 0 && vx <= geom.Viewport.Width && vy <= geom.Viewport.Height {
			return Classification{Kind: KindEditor, Relative: rel}
		}
	}

	if id, found := scan(snap, p); found {
		return Classification{Kind: KindNamed, ID: id, EditorUnavailable: !ok}
	}
	return Classification{Kind: KindOutOfBounds, EditorUnavailable: !ok}
}

// scan picks the containing region with the smallest area. Equal areas
// fall back to the lexically smallest id so overlaps resolve the same way
// every time.
func scan(snap map[string]Bounds, p gaze.ScreenPoint) (string, bool) {
	var (
		best  Bounds
		found bool
	)
	for id, b := range snap {
		if !b.Contains(p) {
			continue
		}
		b.ID = id
		if !found || b.Area() < best.Area() || (b.Area() == best.Area() && id < best.ID) {
			best, found = b, true
		}
	}
	return best.ID, found
}
