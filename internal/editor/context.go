// Package editor describes the active code editor as seen by the gaze
// pipeline: its on-screen geometry, the pixel to logical position mapping
// of its document, and the syntax structure service behind it.
//
// Geometry may be read from any goroutine. Everything that touches the
// document (positions, offsets, structure) must run on the UI goroutine,
// see package uithread.
package editor

import (
	"errors"
	"sync"
)

var ErrUnavailable = errors.New("no active editor")

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Geometry is the editor content component's screen origin and the
// currently visible part of it, in content-component coordinates.
type Geometry struct {
	Origin   Point `json:"origin"`
	Viewport Rect  `json:"viewport"`
}

// LogicalPosition is a zero-based line/column pair.
type LogicalPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Element is a syntax node handle. Implementations must be comparable:
// two handles are equal exactly when they denote the same node.
type Element interface {
	Text() string
	Kind() string
}

// Ancestor is one enclosing node with its document offsets.
type Ancestor struct {
	Label       string
	StartOffset int
	EndOffset   int
}

// StructureService resolves document offsets to syntax nodes.
type StructureService interface {
	ElementAt(offset int) (Element, bool)
	// AncestorsOf returns the chain from e outwards, e included, stopping
	// below the file root.
	AncestorsOf(e Element) []Ancestor
}

// Context is the active editor.
type Context interface {
	// Geometry reports false when the editor is not showing or its screen
	// location cannot be read.
	Geometry() (Geometry, bool)
	XYToLogical(p Point) LogicalPosition
	LogicalToOffset(lp LogicalPosition) int
	OffsetToLogical(offset int) LogicalPosition
	FilePath() string
	// Structure returns nil when the document has no syntax service.
	Structure() StructureService
}

// Active holds whichever editor currently has focus.
type Active struct {
	mu  sync.RWMutex
	ctx Context
}

func (a *Active) Set(ctx Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctx = ctx
}

func (a *Active) Clear() { a.Set(nil) }

// Current returns the focused editor or nil.
func (a *Active) Current() Context {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ctx
}

func (a *Active) Require() (Context, error) {
	if ctx := a.Current(); ctx != nil {
		return ctx, nil
	}
	return nil, ErrUnavailable
}
