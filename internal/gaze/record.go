package gaze

// Remarks attached to records that could not be fully classified.
const (
	RemarkInvalidPoint = "Fail | Invalid Gaze Point"
	RemarkNoEditor     = "Fail | No Editor"
	RemarkSameElement  = "Same (Last Successful AST)"
)

// Location is the logical document position of an editor hit.
type Location struct {
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Path   string `json:"path"`
}

// Level is one enclosing syntax element, innermost first.
type Level struct {
	Label string `json:"tag"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Structure is the syntax element under the gaze and its ancestors.
// Unchanged is set when the leaf is the one resolved for the previous
// sample, in which case Levels is empty.
type Structure struct {
	Token     string  `json:"token"`
	Kind      string  `json:"type"`
	Levels    []Level `json:"levels,omitempty"`
	Unchanged bool    `json:"unchanged,omitempty"`
}

// Record is one classified sample as handed to the event log.
type Record struct {
	SessionID string       `json:"session_id"`
	Timestamp int64        `json:"timestamp"`
	AOI       string       `json:"aoi,omitempty"`
	Point     *ScreenPoint `json:"point,omitempty"`
	Location  *Location    `json:"location,omitempty"`
	Structure *Structure   `json:"ast_structure,omitempty"`
	Remark    string       `json:"remark,omitempty"`
	Raw       Sample       `json:"raw"`
}

// Selection is a text-selection change reported by the editor.
type Selection struct {
	SessionID string `json:"session_id"`
	Timestamp int64  `json:"timestamp"`
	Path      string `json:"path"`
	Start     string `json:"start_position"`
	End       string `json:"end_position"`
	Text      string `json:"selected_text"`
}
