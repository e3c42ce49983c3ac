package editor

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// TextView is a monospace editor model driven by geometry updates from the
// IDE. The document text is fixed for the life of the view; a new
// document means a new TextView.
type TextView struct {
	path       string
	text       string
	lineStarts []int
	lineHeight int
	charWidth  int
	structure  StructureService

	mu       sync.RWMutex
	geometry Geometry
	showing  bool
}

// TextViewOptions configures a TextView.
type TextViewOptions struct {
	Path       string
	Text       string
	LineHeight int
	CharWidth  int
	Geometry   *Geometry
	// Structure overrides the structure service chosen from Path.
	Structure StructureService
}

// NewTextView builds a view. Go sources get a syntax service
// automatically; other documents only map positions.
func NewTextView(opts TextViewOptions) *TextView {
	v := &TextView{
		path:       opts.Path,
		text:       opts.Text,
		lineStarts: lineStarts(opts.Text),
		lineHeight: max(opts.LineHeight, 1),
		charWidth:  max(opts.CharWidth, 1),
		structure:  opts.Structure,
	}
	if opts.Geometry != nil {
		v.geometry, v.showing = *opts.Geometry, true
	}
	if v.structure == nil && strings.EqualFold(filepath.Ext(opts.Path), ".go") {
		if gs, err := ParseGo(opts.Path, []byte(opts.Text)); err == nil {
			v.structure = gs
		}
	}
	return v
}

func lineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// SetGeometry records a move, resize or scroll.
func (v *TextView) SetGeometry(g Geometry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.geometry, v.showing = g, true
}

// Hide marks the content component as not on screen.
func (v *TextView) Hide() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.showing = false
}

func (v *TextView) Geometry() (Geometry, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.geometry, v.showing
}

func (v *TextView) XYToLogical(p Point) LogicalPosition {
	return LogicalPosition{
		Line:   max(p.Y, 0) / v.lineHeight,
		Column: max(p.X, 0) / v.charWidth,
	}
}

// LogicalToOffset clamps positions past the end of a line or document.
func (v *TextView) LogicalToOffset(lp LogicalPosition) int {
	if lp.Line >= len(v.lineStarts) {
		return len(v.text)
	}
	start := v.lineStarts[max(lp.Line, 0)]
	end := len(v.text)
	if lp.Line+1 < len(v.lineStarts) {
		end = v.lineStarts[lp.Line+1] - 1
	}
	return min(start+max(lp.Column, 0), end)
}

func (v *TextView) OffsetToLogical(offset int) LogicalPosition {
	offset = min(max(offset, 0), len(v.text))
	line := sort.Search(len(v.lineStarts), func(i int) bool { return v.lineStarts[i] > offset }) - 1
	return LogicalPosition{Line: line, Column: offset - v.lineStarts[line]}
}

func (v *TextView) FilePath() string { return v.path }

func (v *TextView) Structure() StructureService { return v.structure }

func (v *TextView) LineCount() int { return len(v.lineStarts) }
