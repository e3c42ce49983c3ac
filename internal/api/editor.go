package api

import (
	"errors"
	"net/http"

	"github.com/banshee-data/gaze.report/internal/editor"
	"github.com/banshee-data/gaze.report/internal/httputil"
)

var errNoDocument = errors.New("no open document at that path; send its text")

// EditorRequest is the body of PUT /api/editor. Text opens a new document;
// without it the request moves, scrolls or hides the current one.
type EditorRequest struct {
	Path       string          `json:"path"`
	Text       *string         `json:"text,omitempty"`
	LineHeight int             `json:"line_height,omitempty"`
	CharWidth  int             `json:"char_width,omitempty"`
	Geometry   editor.Geometry `json:"geometry"`
	Visible    *bool           `json:"visible,omitempty"`
}

// EditorState is returned by GET and PUT /api/editor.
type EditorState struct {
	Active   bool             `json:"active"`
	Path     string           `json:"path,omitempty"`
	Visible  bool             `json:"visible"`
	Lines    int              `json:"lines,omitempty"`
	Geometry *editor.Geometry `json:"geometry,omitempty"`
}

func editorState(ctx editor.Context) EditorState {
	if ctx == nil {
		return EditorState{}
	}
	g, ok := ctx.Geometry()
	st := EditorState{Active: true, Path: ctx.FilePath(), Visible: ok}
	if ok {
		st.Geometry = &g
	}
	if view, ok := ctx.(*editor.TextView); ok {
		st.Lines = view.LineCount()
	}
	return st
}

// handleEditor handles GET/PUT/DELETE /api/editor. Changes are applied on
// the UI goroutine so they never race an in-flight position lookup.
func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, editorState(s.opts.Editor.Current()))

	case http.MethodPut:
		var req EditorRequest
		if !decodeBody(w, r, &req, false) {
			return
		}
		if req.Path == "" {
			httputil.BadRequest(w, "path is required")
			return
		}

		var applyErr error
		err := s.opts.UI.Invoke(r.Context(), func() {
			applyErr = s.applyEditor(req)
		})
		if err != nil {
			httputil.WriteJSONError(w, http.StatusServiceUnavailable, "editor update not applied: "+err.Error())
			return
		}
		if applyErr != nil {
			httputil.WriteJSONError(w, http.StatusConflict, applyErr.Error())
			return
		}
		httputil.WriteJSONOK(w, editorState(s.opts.Editor.Current()))

	case http.MethodDelete:
		if err := s.opts.UI.Invoke(r.Context(), s.opts.Editor.Clear); err != nil {
			httputil.WriteJSONError(w, http.StatusServiceUnavailable, "editor update not applied: "+err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		httputil.MethodNotAllowed(w)
	}
}

// applyEditor runs on the UI goroutine.
func (s *Server) applyEditor(req EditorRequest) error {
	hidden := req.Visible != nil && !*req.Visible

	if req.Text != nil {
		opts := editor.TextViewOptions{
			Path:       req.Path,
			Text:       *req.Text,
			LineHeight: req.LineHeight,
			CharWidth:  req.CharWidth,
		}
		if !hidden {
			opts.Geometry = &req.Geometry
		}
		s.opts.Editor.Set(editor.NewTextView(opts))
		return nil
	}

	current, err := s.opts.Editor.Require()
	if err != nil {
		return errNoDocument
	}
	view, ok := current.(*editor.TextView)
	if !ok || view.FilePath() != req.Path {
		return errNoDocument
	}
	if hidden {
		view.Hide()
	} else {
		view.SetGeometry(req.Geometry)
	}
	return nil
}
