package api

import (
	"net/http"

	"github.com/banshee-data/gaze.report/internal/aoi"
	"github.com/banshee-data/gaze.report/internal/httputil"
)

// AOIRequest is the body of PUT /api/aoi/{id}.
type AOIRequest struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// handleAOIs handles GET /api/aoi - List all registered regions
func (s *Server) handleAOIs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.opts.Registry.List())
}

// handleAOIByID handles GET/PUT/DELETE /api/aoi/{id}
func (s *Server) handleAOIByID(w http.ResponseWriter, r *http.Request) {
	id, rest := pathID(r.URL.Path, "/api/aoi/")
	if id == "" || rest != "" {
		httputil.NotFound(w, "unknown AOI path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		b, ok := s.opts.Registry.Get(id)
		if !ok {
			httputil.NotFound(w, "AOI not found")
			return
		}
		httputil.WriteJSONOK(w, b)

	case http.MethodPut:
		var req AOIRequest
		if !decodeBody(w, r, &req, false) {
			return
		}
		if req.Width < 0 || req.Height < 0 {
			httputil.BadRequest(w, "width and height must not be negative")
			return
		}
		b := aoi.Bounds{ID: id, X: req.X, Y: req.Y, Width: req.Width, Height: req.Height}
		s.opts.Registry.Upsert(b)
		httputil.WriteJSONOK(w, b)

	case http.MethodDelete:
		s.opts.Registry.Remove(id)
		w.WriteHeader(http.StatusNoContent)

	default:
		httputil.MethodNotAllowed(w)
	}
}
