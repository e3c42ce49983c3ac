// Package api is the HTTP surface of the gaze recorder: AOI and editor
// updates from the IDE, session control, stored sessions and reports.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/gaze.report/internal/aoi"
	"github.com/banshee-data/gaze.report/internal/config"
	"github.com/banshee-data/gaze.report/internal/db"
	"github.com/banshee-data/gaze.report/internal/editor"
	"github.com/banshee-data/gaze.report/internal/httputil"
	"github.com/banshee-data/gaze.report/internal/monitoring"
	"github.com/banshee-data/gaze.report/internal/realtime"
	"github.com/banshee-data/gaze.report/internal/sensor"
	"github.com/banshee-data/gaze.report/internal/session"
	"github.com/banshee-data/gaze.report/internal/timeutil"
	"github.com/banshee-data/gaze.report/internal/uithread"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxBodyBytes caps request bodies; editor documents are the largest.
const maxBodyBytes = 8 << 20

// Options wires a Server. DB, Registry, UI and Hub are required.
type Options struct {
	// Context bounds the lifetime of sessions started over HTTP.
	Context context.Context

	Config   *config.Config
	DB       *db.DB
	Registry *aoi.Registry
	Editor   *editor.Active
	UI       *uithread.Dispatcher
	Hub      *realtime.Hub
	Metrics  *monitoring.Metrics
	Clock    timeutil.Clock

	// Launcher overrides the sensor chosen by Config, e.g. for replay.
	Launcher  sensor.Launcher
	BatchSize int
}

type Server struct {
	opts Options

	mu       sync.Mutex
	current  *session.Controller
	realtime bool
}

func NewServer(opts Options) *Server {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Config == nil {
		opts.Config = config.Empty()
	}
	if opts.Editor == nil {
		opts.Editor = &editor.Active{}
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Launcher == nil {
		opts.Launcher = opts.Config.SensorOptions()
	}
	return &Server{
		opts:     opts,
		realtime: opts.Config.GetRealtime(),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}

// Hijack is needed for the websocket upgrade on /api/ws.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration.
// Streaming endpoints are logged when they end.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/aoi", s.handleAOIs)
	mux.HandleFunc("/api/aoi/", s.handleAOIByID)
	mux.HandleFunc("/api/editor", s.handleEditor)
	mux.HandleFunc("/api/selection", s.handleSelection)

	mux.HandleFunc("/api/session", s.handleSessionStatus)
	mux.HandleFunc("/api/session/", s.handleSessionAction)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionByID)

	mux.HandleFunc("/api/stream", s.opts.Hub.ServeSSE)
	mux.HandleFunc("/api/ws", s.opts.Hub.ServeWS)
	if s.opts.Metrics != nil {
		mux.Handle("/metrics", s.opts.Metrics.Handler())
	}
	s.attachDebugRoutes(mux)
	return mux
}

// Close stops the running session, if any.
func (s *Server) Close() error {
	s.mu.Lock()
	ctrl := s.current
	s.mu.Unlock()
	if ctrl == nil {
		return nil
	}
	return ctrl.Stop()
}

// decodeBody reads a JSON request body into v. An empty body leaves v
// untouched when allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		httputil.BadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// pathID extracts the first path segment after prefix and whatever
// follows it.
func pathID(path, prefix string) (id, rest string) {
	tail := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	id, rest, _ = strings.Cut(tail, "/")
	return id, rest
}
