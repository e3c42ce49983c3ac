package editor

// Position is a logical document position plus its character offset.
type Position struct {
	Line   int
	Column int
	Offset int
}

// MapToLogical converts a point relative to the content component into a
// document position. Call it on the UI goroutine only.
func MapToLogical(rel Point, ctx Context) Position {
	lp := ctx.XYToLogical(rel)
	return Position{
		Line:   lp.Line,
		Column: lp.Column,
		Offset: ctx.LogicalToOffset(lp),
	}
}
