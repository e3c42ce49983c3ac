package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/banshee-data/gaze.report/internal/db"
	"github.com/banshee-data/gaze.report/internal/gaze"
	"github.com/banshee-data/gaze.report/internal/httputil"
	"github.com/banshee-data/gaze.report/internal/monitoring"
	"github.com/banshee-data/gaze.report/internal/session"
)

// StartRequest optionally overrides configured settings for one session.
type StartRequest struct {
	DominantEye string `json:"dominant_eye,omitempty"`
	ProjectRoot string `json:"project_root,omitempty"`
	Realtime    *bool  `json:"realtime,omitempty"`
}

// SelectionRequest is the body of POST /api/selection.
type SelectionRequest struct {
	Path      string `json:"path"`
	Start     string `json:"start_position"`
	End       string `json:"end_position"`
	Text      string `json:"selected_text"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// journal records session lifecycles in the sessions table.
type journal struct {
	db *db.DB
}

func (j journal) SessionStarted(info session.Info) error {
	return j.db.CreateSession(db.SessionRecord{
		SessionID:       info.ID,
		Device:          info.Device,
		SampleFrequency: info.SampleFrequency,
		DominantEye:     info.DominantEye.String(),
		ScreenWidth:     info.ScreenWidth,
		ScreenHeight:    info.ScreenHeight,
		ProjectRoot:     info.ProjectRoot,
		StartedUnixMs:   info.Started.UnixMilli(),
	})
}

func (j journal) SessionStopped(id string, stopped time.Time, cause error) error {
	var msg string
	if cause != nil {
		msg = cause.Error()
	}
	return j.db.EndSession(id, stopped.UnixMilli(), msg)
}

// Current returns the most recently started session, or nil.
func (s *Server) Current() *session.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// StartSession launches a new session unless one is still running.
func (s *Server) StartSession(req StartRequest) (*session.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.State() != session.Stopped {
		return nil, session.ErrInvalidState
	}

	cfg := s.opts.Config
	eye := cfg.GetDominantEye()
	if req.DominantEye != "" {
		var err error
		if eye, err = gaze.ParseDominantEye(req.DominantEye); err != nil {
			return nil, err
		}
	}
	root := cfg.GetProjectRoot()
	if req.ProjectRoot != "" {
		root = req.ProjectRoot
	}
	if req.Realtime != nil {
		s.realtime = *req.Realtime
	}

	ctrl, err := session.New(session.Options{
		Launcher:        s.opts.Launcher,
		Device:          cfg.GetDevice().DisplayName(),
		SampleFrequency: cfg.GetSampleFrequency(),
		DominantEye:     eye,
		ScreenWidth:     cfg.GetScreenWidth(),
		ScreenHeight:    cfg.GetScreenHeight(),
		ProjectRoot:     root,
		Registry:        s.opts.Registry,
		Editor:          s.opts.Editor,
		UI:              s.opts.UI,
		Sink:            db.NewSink(s.opts.DB, s.opts.BatchSize),
		Publisher:       s.opts.Hub,
		Journal:         journal{db: s.opts.DB},
		Realtime:        s.realtime,
		Metrics:         s.opts.Metrics,
		Clock:           s.opts.Clock,
	})
	if err != nil {
		return nil, err
	}

	// a failed launch still leaves a Stopped session to report on
	s.current = ctrl
	if err := ctrl.Start(s.opts.Context); err != nil {
		return ctrl, err
	}
	go func() {
		<-ctrl.Done()
		if err := ctrl.Err(); err != nil {
			monitoring.Logf("session %s ended: %v", ctrl.ID(), err)
		}
	}()
	return ctrl, nil
}

// handleSessionStatus handles GET /api/session
func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	ctrl := s.Current()
	if ctrl == nil {
		httputil.NotFound(w, "no session has been started")
		return
	}
	httputil.WriteJSONOK(w, sessionStatus(ctrl))
}

// SessionStatus is the live view of a session.
type SessionStatus struct {
	session.Stats
	Error string `json:"error,omitempty"`
}

func sessionStatus(ctrl *session.Controller) SessionStatus {
	st := SessionStatus{Stats: ctrl.Stats()}
	if err := ctrl.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// handleSessionAction handles POST /api/session/{start,pause,resume,stop}
// and PUT /api/session/realtime
func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	action, rest := pathID(r.URL.Path, "/api/session/")
	if rest != "" {
		httputil.NotFound(w, "unknown session action")
		return
	}

	if action == "realtime" {
		s.handleRealtime(w, r)
		return
	}
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	if action == "start" {
		var req StartRequest
		if !decodeBody(w, r, &req, true) {
			return
		}
		ctrl, err := s.StartSession(req)
		switch {
		case errors.Is(err, session.ErrInvalidState):
			httputil.WriteJSONError(w, http.StatusConflict, "a session is already running")
		case errors.Is(err, session.ErrSensorProcess):
			httputil.WriteJSONError(w, http.StatusBadGateway, err.Error())
		case err != nil:
			httputil.BadRequest(w, err.Error())
		default:
			httputil.WriteJSON(w, http.StatusCreated, sessionStatus(ctrl))
		}
		return
	}

	ctrl := s.Current()
	if ctrl == nil {
		httputil.NotFound(w, "no session has been started")
		return
	}

	var err error
	switch action {
	case "pause":
		err = ctrl.Pause()
	case "resume":
		err = ctrl.Resume()
	case "stop":
		err = ctrl.Stop()
	default:
		httputil.NotFound(w, "unknown session action")
		return
	}
	switch {
	case errors.Is(err, session.ErrInvalidState):
		httputil.WriteJSONError(w, http.StatusConflict, err.Error())
	case err != nil:
		httputil.InternalServerError(w, err.Error())
	default:
		httputil.WriteJSONOK(w, sessionStatus(ctrl))
	}
}

type realtimeRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		on := s.realtime
		s.mu.Unlock()
		httputil.WriteJSONOK(w, realtimeRequest{Enabled: on})
	case http.MethodPut:
		var req realtimeRequest
		if !decodeBody(w, r, &req, false) {
			return
		}
		s.mu.Lock()
		s.realtime = req.Enabled
		ctrl := s.current
		s.mu.Unlock()
		if ctrl != nil {
			ctrl.SetRealtime(req.Enabled)
		}
		httputil.WriteJSONOK(w, req)
	default:
		httputil.MethodNotAllowed(w)
	}
}

// handleSelection handles POST /api/selection
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req SelectionRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	ctrl := s.Current()
	if ctrl == nil {
		httputil.WriteJSONError(w, http.StatusConflict, "no session is tracking")
		return
	}
	err := ctrl.RecordSelection(gaze.Selection{
		Timestamp: req.Timestamp,
		Path:      req.Path,
		Start:     req.Start,
		End:       req.End,
		Text:      req.Text,
	})
	switch {
	case errors.Is(err, session.ErrInvalidState):
		httputil.WriteJSONError(w, http.StatusConflict, err.Error())
	case err != nil:
		httputil.InternalServerError(w, err.Error())
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}
