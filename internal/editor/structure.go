package editor

import (
	"fmt"

	"github.com/banshee-data/gaze.report/internal/dedup"
	"github.com/banshee-data/gaze.report/internal/gaze"
)

// Walker builds structure snapshots and skips the ancestor walk when the
// leaf under the gaze has not changed. A Walker belongs to one session
// and is only used from the UI goroutine.
type Walker struct {
	last dedup.Last[Element]
}

// Snapshot resolves the element at offset. It returns false when the
// document has no structure service or nothing is found at offset.
func (w *Walker) Snapshot(ctx Context, offset int) (gaze.Structure, bool) {
	svc := ctx.Structure()
	if svc == nil {
		return gaze.Structure{}, false
	}
	el, ok := svc.ElementAt(offset)
	if !ok {
		return gaze.Structure{}, false
	}

	s := gaze.Structure{Token: el.Text(), Kind: el.Kind()}
	if !w.last.Changed(el) {
		s.Unchanged = true
		return s, true
	}

	for _, a := range svc.AncestorsOf(el) {
		s.Levels = append(s.Levels, gaze.Level{
			Label: a.Label,
			Start: formatPosition(ctx.OffsetToLogical(a.StartOffset)),
			End:   formatPosition(ctx.OffsetToLogical(a.EndOffset)),
		})
	}
	return s, true
}

// Reset forgets the previous leaf.
func (w *Walker) Reset() { w.last.Reset() }

func formatPosition(lp LogicalPosition) string {
	return fmt.Sprintf("%d:%d", lp.Line, lp.Column)
}
