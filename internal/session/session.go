// Package session drives one gaze recording: it starts the sensor, threads
// every sample through decode, projection and AOI classification, resolves
// editor hits on the UI goroutine and hands the results to the event log.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/gaze.report/internal/aoi"
	"github.com/banshee-data/gaze.report/internal/dedup"
	"github.com/banshee-data/gaze.report/internal/editor"
	"github.com/banshee-data/gaze.report/internal/gaze"
	"github.com/banshee-data/gaze.report/internal/monitoring"
	"github.com/banshee-data/gaze.report/internal/security"
	"github.com/banshee-data/gaze.report/internal/sensor"
	"github.com/banshee-data/gaze.report/internal/sensormux"
	"github.com/banshee-data/gaze.report/internal/timeutil"
	"github.com/banshee-data/gaze.report/internal/uithread"
)

// drainTimeout bounds how long Stop waits for editor lookups already
// queued on the UI goroutine.
const drainTimeout = 2 * time.Second

// Sink is the event log.
type Sink interface {
	RecordGaze(gaze.Record) error
	RecordSelection(gaze.Selection) error
	Flush() error
}

// Publisher receives records for live viewers. Publish must not block.
type Publisher interface {
	Publish(gaze.Record)
}

// Info describes a session's recording settings.
type Info struct {
	ID              string
	Device          string
	SampleFrequency float64
	DominantEye     gaze.DominantEye
	ScreenWidth     int
	ScreenHeight    int
	ProjectRoot     string
	Started         time.Time
}

// Journal stores session start and end. Errors are logged and do not
// affect tracking.
type Journal interface {
	SessionStarted(Info) error
	SessionStopped(id string, stopped time.Time, cause error) error
}

// Options configures a Controller. Launcher, Registry, UI and Sink are
// required.
type Options struct {
	// ID defaults to a random UUID.
	ID string

	Launcher        sensor.Launcher
	Device          string
	SampleFrequency float64

	DominantEye  gaze.DominantEye
	ScreenWidth  int
	ScreenHeight int
	// ProjectRoot makes editor paths relative in the log.
	ProjectRoot string

	Registry *aoi.Registry
	Editor   *editor.Active
	UI       *uithread.Dispatcher

	Sink      Sink
	Publisher Publisher
	Journal   Journal
	Realtime  bool

	Metrics *monitoring.Metrics
	Clock   timeutil.Clock
}

// Stats is a point-in-time view of the session counters.
type Stats struct {
	SessionID            string `json:"session_id"`
	State                State  `json:"state"`
	Lines                uint64 `json:"lines"`
	DecodeFailures       uint64 `json:"decode_failures"`
	Paused               uint64 `json:"paused"`
	InvalidPoints        uint64 `json:"invalid_points"`
	EditorLookups        uint64 `json:"editor_lookups"`
	DispatchDropped      uint64 `json:"dispatch_dropped"`
	Recorded             uint64 `json:"recorded"`
	SinkErrors           uint64 `json:"sink_errors"`
	Selections           uint64 `json:"selections"`
	SelectionsSuppressed uint64 `json:"selections_suppressed"`
	Realtime             bool   `json:"realtime"`
}

type counters struct {
	lines                atomic.Uint64
	decodeFailures       atomic.Uint64
	paused               atomic.Uint64
	invalidPoints        atomic.Uint64
	editorLookups        atomic.Uint64
	dispatchDropped      atomic.Uint64
	recorded             atomic.Uint64
	sinkErrors           atomic.Uint64
	selections           atomic.Uint64
	selectionsSuppressed atomic.Uint64
}

// Controller owns one session. All methods are safe for concurrent use.
type Controller struct {
	opts     Options
	resolver *aoi.Resolver
	clock    timeutil.Clock

	// walker is only touched from tasks running on opts.UI.
	walker     editor.Walker
	selections dedup.SelectionFilter

	paused   atomic.Bool
	realtime atomic.Bool
	// closed is set once late editor lookups must be discarded.
	closed atomic.Bool
	stats  counters

	mu       sync.Mutex
	state    State
	stopping bool
	err      error
	cancel   context.CancelFunc
	mux      *sensormux.Mux[sensormux.LinePorter]
	monErr   error

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
	done     chan struct{}
}

// New validates opts and returns an Idle controller.
func New(opts Options) (*Controller, error) {
	switch {
	case opts.Launcher == nil:
		return nil, errors.New("session: launcher is required")
	case opts.Registry == nil:
		return nil, errors.New("session: AOI registry is required")
	case opts.UI == nil:
		return nil, errors.New("session: UI dispatcher is required")
	case opts.Sink == nil:
		return nil, errors.New("session: sink is required")
	case opts.ScreenWidth <= 0 || opts.ScreenHeight <= 0:
		return nil, fmt.Errorf("session: invalid screen size %dx%d", opts.ScreenWidth, opts.ScreenHeight)
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Editor == nil {
		opts.Editor = &editor.Active{}
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}

	c := &Controller{
		opts:     opts,
		resolver: aoi.NewResolver(opts.Registry),
		clock:    opts.Clock,
		done:     make(chan struct{}),
	}
	c.realtime.Store(opts.Realtime)
	return c, nil
}

func (c *Controller) ID() string { return c.opts.ID }

// Info returns the settings the session records with.
func (c *Controller) Info() Info {
	return Info{
		ID:              c.opts.ID,
		Device:          c.opts.Device,
		SampleFrequency: c.opts.SampleFrequency,
		DominantEye:     c.opts.DominantEye,
		ScreenWidth:     c.opts.ScreenWidth,
		ScreenHeight:    c.opts.ScreenHeight,
		ProjectRoot:     c.opts.ProjectRoot,
	}
}

// Start launches the sensor and begins routing samples. A launch failure
// leaves the session Stopped with Err reporting ErrSensorProcess.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Idle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidState, state)
	}

	port, err := c.opts.Launcher.Launch()
	if err != nil {
		err = fmt.Errorf("%w: launch: %v", ErrSensorProcess, err)
		c.state, c.err = Stopped, err
		c.closed.Store(true)
		close(c.done)
		c.mu.Unlock()
		monitoring.Logf("session %s: %v", c.opts.ID, err)
		return err
	}

	info := c.Info()
	info.Started = c.clock.Now()
	if c.opts.Journal != nil {
		if jerr := c.opts.Journal.SessionStarted(info); jerr != nil {
			monitoring.Logf("session %s: journal start: %v", c.opts.ID, jerr)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	mux := sensormux.New[sensormux.LinePorter](port)
	subID, lines := mux.Subscribe()
	c.mux, c.cancel = mux, cancel
	c.state = Tracking

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		err := mux.Monitor(runCtx)
		c.mu.Lock()
		c.monErr = err
		c.mu.Unlock()
		// closing the subscription lets the reader drain what was
		// already buffered and then notice the end of the stream
		mux.Unsubscribe(subID)
	}()
	go func() {
		defer c.wg.Done()
		c.readLoop(runCtx, lines)
	}()
	c.mu.Unlock()

	monitoring.Logf("session %s: tracking %s at %gHz, dominant eye %s",
		c.opts.ID, c.opts.Device, c.opts.SampleFrequency, c.opts.DominantEye)
	return nil
}

func (c *Controller) readLoop(ctx context.Context, lines <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				c.sensorEnded()
				return
			}
			c.handleLine(line)
		}
	}
}

// sensorEnded runs when the line stream closes. Unless Stop caused it,
// the sensor went away on its own and the session is over.
func (c *Controller) sensorEnded() {
	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		return
	}
	cause := fmt.Errorf("%w: sensor exited", ErrSensorProcess)
	if c.monErr != nil && !errors.Is(c.monErr, context.Canceled) {
		cause = fmt.Errorf("%w: %v", ErrSensorProcess, c.monErr)
	}
	c.mu.Unlock()

	monitoring.Logf("session %s: %v", c.opts.ID, cause)
	// shutdown waits for this goroutine, so it cannot run inline
	go c.shutdown(cause)
}

// Pause stops emitting records. Sensor lines are still read and decoded so
// the sensor never blocks on a full pipe.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Tracking {
		return fmt.Errorf("%w: pause from %s", ErrInvalidState, c.state)
	}
	c.state = Paused
	c.paused.Store(true)
	return nil
}

func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Paused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidState, c.state)
	}
	c.state = Tracking
	c.paused.Store(false)
	return nil
}

// Stop ends the session, terminates the sensor and flushes the sink. It
// returns the flush error, if any. Stopping twice is harmless.
func (c *Controller) Stop() error {
	return c.shutdown(nil)
}

func (c *Controller) shutdown(cause error) error {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopping = true
		mux, cancel := c.mux, c.cancel
		started := mux != nil
		c.mu.Unlock()

		if !started {
			c.mu.Lock()
			if c.state != Stopped {
				c.state = Stopped
				c.closed.Store(true)
				close(c.done)
			}
			c.mu.Unlock()
			return
		}

		cancel()
		if err := mux.Close(); err != nil {
			monitoring.Logf("session %s: closing sensor: %v", c.opts.ID, err)
		}
		c.wg.Wait()

		// UI tasks run in order, so once this one runs every lookup the
		// reader posted has been handled.
		drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
		if err := c.opts.UI.Invoke(drainCtx, func() {}); err != nil && !errors.Is(err, uithread.ErrClosed) {
			monitoring.Logf("session %s: draining editor lookups: %v", c.opts.ID, err)
		}
		drainCancel()
		c.closed.Store(true)

		if err := c.opts.Sink.Flush(); err != nil {
			c.stopErr = fmt.Errorf("flush event log: %w", err)
			monitoring.Logf("session %s: %v", c.opts.ID, c.stopErr)
		}
		if c.opts.Journal != nil {
			if err := c.opts.Journal.SessionStopped(c.opts.ID, c.clock.Now(), cause); err != nil {
				monitoring.Logf("session %s: journal stop: %v", c.opts.ID, err)
			}
		}

		monitoring.Logf("session %s: stopped after %d lines, %d records, %d decode failures",
			c.opts.ID, c.stats.lines.Load(), c.stats.recorded.Load(), c.stats.decodeFailures.Load())

		c.mu.Lock()
		c.state, c.err = Stopped, cause
		c.paused.Store(false)
		c.mu.Unlock()
		close(c.done)
	})
	return c.stopErr
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when the session reaches Stopped.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Err reports why the session stopped on its own. It is nil while running
// and after a requested Stop.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Lines gives access to the raw sensor line stream. It is nil before
// Start.
func (c *Controller) Lines() sensormux.Subscriber {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mux == nil {
		return nil
	}
	return c.mux
}

// SetRealtime switches live publishing on or off.
func (c *Controller) SetRealtime(on bool) { c.realtime.Store(on) }

func (c *Controller) Stats() Stats {
	return Stats{
		SessionID:            c.opts.ID,
		State:                c.State(),
		Lines:                c.stats.lines.Load(),
		DecodeFailures:       c.stats.decodeFailures.Load(),
		Paused:               c.stats.paused.Load(),
		InvalidPoints:        c.stats.invalidPoints.Load(),
		EditorLookups:        c.stats.editorLookups.Load(),
		DispatchDropped:      c.stats.dispatchDropped.Load(),
		Recorded:             c.stats.recorded.Load(),
		SinkErrors:           c.stats.sinkErrors.Load(),
		Selections:           c.stats.selections.Load(),
		SelectionsSuppressed: c.stats.selectionsSuppressed.Load(),
		Realtime:             c.realtime.Load(),
	}
}

// RecordSelection logs an editor selection change. Repeats of the previous
// selection and selections made while paused are dropped.
func (c *Controller) RecordSelection(sel gaze.Selection) error {
	switch st := c.State(); st {
	case Tracking:
	case Paused:
		return nil
	default:
		return fmt.Errorf("%w: selection while %s", ErrInvalidState, st)
	}

	sel.SessionID = c.opts.ID
	if sel.Timestamp == 0 {
		sel.Timestamp = timeutil.UnixMilli(c.clock)
	}
	sel.Path = security.RelativeTo(c.opts.ProjectRoot, sel.Path)
	if !c.selections.Admit(sel) {
		c.stats.selectionsSuppressed.Add(1)
		c.opts.Metrics.SelectionDeduped()
		return nil
	}
	if err := c.opts.Sink.RecordSelection(sel); err != nil {
		c.stats.sinkErrors.Add(1)
		c.opts.Metrics.SinkFailed()
		return fmt.Errorf("record selection: %w", err)
	}
	c.stats.selections.Add(1)
	return nil
}

// handleLine runs on the reader goroutine.
func (c *Controller) handleLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	c.stats.lines.Add(1)
	c.opts.Metrics.SampleRead()

	sample, err := gaze.Decode(line)
	if err != nil {
		n := c.stats.decodeFailures.Add(1)
		c.opts.Metrics.DecodeFailed()
		if n == 1 || n%500 == 0 {
			monitoring.Logf("session %s: dropping sensor line (%d so far): %v", c.opts.ID, n, err)
		}
		return
	}

	if c.paused.Load() {
		c.stats.paused.Add(1)
		c.opts.Metrics.SamplePaused()
		return
	}

	rec := gaze.Record{SessionID: c.opts.ID, Timestamp: sample.Timestamp, Raw: sample}

	p, err := gaze.Project(sample, c.opts.DominantEye, float64(c.opts.ScreenWidth), float64(c.opts.ScreenHeight))
	if err != nil {
		c.stats.invalidPoints.Add(1)
		c.opts.Metrics.ProjectionFailed()
		rec.Remark = gaze.RemarkInvalidPoint
		c.emit(rec)
		return
	}
	rec.Point = &p

	ed := c.opts.Editor.Current()
	cls := c.resolver.Classify(p, ed)
	c.opts.Metrics.Classified(cls.Kind.String())
	rec.AOI = cls.Label()

	if cls.Kind != aoi.KindEditor {
		if cls.Kind == aoi.KindOutOfBounds && cls.EditorUnavailable {
			rec.Remark = gaze.RemarkNoEditor
		}
		c.emit(rec)
		return
	}

	c.stats.editorLookups.Add(1)
	if !c.opts.UI.Post(func() { c.resolveEditorHit(rec, ed, cls.Relative) }) {
		c.stats.dispatchDropped.Add(1)
		c.opts.Metrics.DispatchDrop()
	}
}

// resolveEditorHit runs on the UI goroutine.
func (c *Controller) resolveEditorHit(rec gaze.Record, ed editor.Context, rel editor.Point) {
	if c.closed.Load() {
		return
	}
	pos := editor.MapToLogical(rel, ed)
	rec.Location = &gaze.Location{
		Line:   pos.Line,
		Column: pos.Column,
		Path:   security.RelativeTo(c.opts.ProjectRoot, ed.FilePath()),
	}
	if st, ok := c.walker.Snapshot(ed, pos.Offset); ok {
		rec.Structure = &st
		if st.Unchanged {
			rec.Remark = gaze.RemarkSameElement
		}
	}
	c.emit(rec)
}

func (c *Controller) emit(rec gaze.Record) {
	if err := c.opts.Sink.RecordGaze(rec); err != nil {
		n := c.stats.sinkErrors.Add(1)
		c.opts.Metrics.SinkFailed()
		if n == 1 || n%100 == 0 {
			monitoring.Logf("session %s: event log write failed (%d so far): %v", c.opts.ID, n, err)
		}
	} else {
		c.stats.recorded.Add(1)
	}
	if c.realtime.Load() && c.opts.Publisher != nil {
		c.opts.Publisher.Publish(rec)
	}
}
