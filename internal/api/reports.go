package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"tailscale.com/tsweb"

	"github.com/banshee-data/gaze.report/internal/db"
	"github.com/banshee-data/gaze.report/internal/httputil"
	"github.com/banshee-data/gaze.report/internal/report"
	"github.com/banshee-data/gaze.report/internal/sensormux"
)

const defaultRecordLimit = 1000

// listSessions handles GET /api/sessions
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sessions, err := s.opts.DB.Sessions()
	if err != nil {
		httputil.InternalServerError(w, "failed to list sessions: "+err.Error())
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

// handleSessionByID handles GET /api/sessions/{id}[/records|/aois|/selections|/summary|/scatter.png]
func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id, rest := pathID(r.URL.Path, "/api/sessions/")
	if id == "" {
		httputil.NotFound(w, "session id required")
		return
	}

	rec, err := s.opts.DB.Session(id)
	if errors.Is(err, db.ErrSessionNotFound) {
		httputil.NotFound(w, "session not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	switch rest {
	case "":
		httputil.WriteJSONOK(w, rec)

	case "records":
		limit := defaultRecordLimit
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil {
				httputil.BadRequest(w, "invalid 'limit' parameter")
				return
			}
			limit = n
		}
		records, err := s.opts.DB.GazeRecords(id, limit)
		if err != nil {
			httputil.InternalServerError(w, "failed to read records: "+err.Error())
			return
		}
		httputil.WriteJSONOK(w, records)

	case "aois":
		counts, err := s.opts.DB.AOICounts(id)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, counts)

	case "selections":
		sels, err := s.opts.DB.Selections(id)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, sels)

	case "summary":
		sum, err := s.summarize(id)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, sum)

	case "scatter.png":
		records, err := s.opts.DB.GazeRecords(id, 0)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		var buf bytes.Buffer
		if err := report.RenderScatterPNG(&buf, records, rec.ScreenWidth, rec.ScreenHeight); err != nil {
			httputil.InternalServerError(w, "failed to render scatter plot: "+err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())

	default:
		httputil.NotFound(w, "unknown session resource")
	}
}

func (s *Server) summarize(id string) (report.Summary, error) {
	records, err := s.opts.DB.GazeRecords(id, 0)
	if err != nil {
		return report.Summary{}, err
	}
	return report.Summarize(id, records), nil
}

func (s *Server) attachDebugRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.Handle("aoi-chart", "AOI dwell chart (?session=<id>, defaults to the current session)", http.HandlerFunc(s.showAOIChart))
	debug.Handle("ui-queue", "UI dispatcher queue", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		published, dropped := s.opts.Hub.Stats()
		httputil.WriteJSONOK(w, map[string]interface{}{
			"ui_dropped":       s.opts.UI.Dropped(),
			"realtime_clients": s.opts.Hub.Clients(),
			"realtime_sent":    published,
			"realtime_dropped": dropped,
			"registered_aois":  s.opts.Registry.Len(),
		})
	}))
	sensormux.AttachTailRoutes(mux, func() sensormux.Subscriber {
		if ctrl := s.Current(); ctrl != nil {
			return ctrl.Lines()
		}
		return nil
	})
	s.opts.DB.AttachAdminRoutes(mux)
}

func (s *Server) showAOIChart(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if id == "" {
		if ctrl := s.Current(); ctrl != nil {
			id = ctrl.ID()
		}
	}
	if id == "" {
		http.Error(w, "no session given and none running", http.StatusNotFound)
		return
	}

	sum, err := s.summarize(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := report.RenderDwellChart(&buf, sum); err != nil {
		http.Error(w, "failed to render chart: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
