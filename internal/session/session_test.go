package session

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaze.report/internal/aoi"
	"github.com/banshee-data/gaze.report/internal/editor"
	"github.com/banshee-data/gaze.report/internal/gaze"
	"github.com/banshee-data/gaze.report/internal/monitoring"
	"github.com/banshee-data/gaze.report/internal/sensor"
	"github.com/banshee-data/gaze.report/internal/sensormux"
	"github.com/banshee-data/gaze.report/internal/testutil"
	"github.com/banshee-data/gaze.report/internal/timeutil"
	"github.com/banshee-data/gaze.report/internal/uithread"
)

const demoSource = "package demo\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n"

type recordingSink struct {
	mu         sync.Mutex
	records    []gaze.Record
	selections []gaze.Selection
	flushes    int
	failGaze   error
}

func (s *recordingSink) RecordGaze(r gaze.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGaze != nil {
		return s.failGaze
	}
	s.records = append(s.records, r)
	return nil
}

func (s *recordingSink) RecordSelection(sel gaze.Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selections = append(s.selections, sel)
	return nil
}

func (s *recordingSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *recordingSink) Records() []gaze.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gaze.Record(nil), s.records...)
}

func (s *recordingSink) Selections() []gaze.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gaze.Selection(nil), s.selections...)
}

type recordingPublisher struct {
	mu   sync.Mutex
	seen []gaze.Record
}

func (p *recordingPublisher) Publish(r gaze.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, r)
}

func (p *recordingPublisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

type recordingJournal struct {
	mu      sync.Mutex
	started []Info
	causes  []error
}

func (j *recordingJournal) SessionStarted(info Info) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.started = append(j.started, info)
	return nil
}

func (j *recordingJournal) SessionStopped(_ string, _ time.Time, cause error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.causes = append(j.causes, cause)
	return nil
}

type harness struct {
	port    *sensormux.TestablePort
	sink    *recordingSink
	pub     *recordingPublisher
	journal *recordingJournal
	reg     *aoi.Registry
	active  *editor.Active
	ctrl    *Controller
}

func newHarness(t *testing.T, configure func(*Options)) *harness {
	t.Helper()
	monitoring.SetLogger(nil)

	h := &harness{
		port:    sensormux.NewTestablePort(),
		sink:    &recordingSink{},
		pub:     &recordingPublisher{},
		journal: &recordingJournal{},
		reg:     aoi.NewRegistry(),
		active:  &editor.Active{},
	}

	ui := uithread.New(0)
	ctx, cancel := context.WithCancel(context.Background())
	go ui.Run(ctx)

	opts := Options{
		ID:              "test-session",
		Launcher:        sensor.LauncherFunc(func() (sensormux.LinePorter, error) { return h.port, nil }),
		Device:          "Mouse",
		SampleFrequency: 60,
		DominantEye:     gaze.EyeLeft,
		ScreenWidth:     1000,
		ScreenHeight:    1000,
		Registry:        h.reg,
		Editor:          h.active,
		UI:              ui,
		Sink:            h.sink,
		Publisher:       h.pub,
		Journal:         h.journal,
		Realtime:        true,
		Metrics:         monitoring.NewMetrics(),
		Clock:           timeutil.NewMockClock(time.UnixMilli(5000)),
	}
	if configure != nil {
		configure(&opts)
	}

	ctrl, err := New(opts)
	require.NoError(t, err)
	h.ctrl = ctrl
	t.Cleanup(func() {
		ctrl.Stop()
		cancel()
	})
	return h
}

// runLines starts the session, feeds lines, ends the sensor stream and
// waits for the session to wind down.
func (h *harness) runLines(t *testing.T, lines ...string) {
	t.Helper()
	require.NoError(t, h.ctrl.Start(context.Background()))
	for _, l := range lines {
		h.port.AddLine(l)
	}
	h.port.CloseWrite()
	waitDone(t, h.ctrl)
}

func waitDone(t *testing.T, c *Controller) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop")
	}
}

func demoView(origin editor.Point, root string) *editor.TextView {
	return editor.NewTextView(editor.TextViewOptions{
		Path:       filepath.Join(root, "demo", "add.go"),
		Text:       demoSource,
		LineHeight: 20,
		CharWidth:  10,
		Geometry: &editor.Geometry{
			Origin:   origin,
			Viewport: editor.Rect{Width: 1920, Height: 1080},
		},
	})
}

func TestNew_Validation(t *testing.T) {
	launcher := sensor.LauncherFunc(func() (sensormux.LinePorter, error) { return nil, nil })
	base := Options{
		Launcher:     launcher,
		Registry:     aoi.NewRegistry(),
		UI:           uithread.New(1),
		Sink:         &recordingSink{},
		ScreenWidth:  10,
		ScreenHeight: 10,
	}

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"missing launcher", func(o *Options) { o.Launcher = nil }},
		{"missing registry", func(o *Options) { o.Registry = nil }},
		{"missing dispatcher", func(o *Options) { o.UI = nil }},
		{"missing sink", func(o *Options) { o.Sink = nil }},
		{"zero screen", func(o *Options) { o.ScreenWidth = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := base
			tt.mutate(&opts)
			_, err := New(opts)
			assert.Error(t, err)
		})
	}

	c, err := New(base)
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID(), "a session id is generated")
	assert.Equal(t, Idle, c.State())
}

func TestController_ProjectsAndClassifiesOutOfBounds(t *testing.T) {
	h := newHarness(t, nil)
	h.runLines(t, testutil.SampleLine)

	recs := h.sink.Records()
	require.Len(t, recs, 1)
	want := gaze.Record{
		SessionID: "test-session",
		Timestamp: 1000,
		AOI:       aoi.LabelOutOfBounds,
		Point:     &gaze.ScreenPoint{X: 500, Y: 450},
		Remark:    gaze.RemarkNoEditor,
	}
	if diff := cmp.Diff(want, recs[0], cmpIgnoreRaw); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0.5, recs[0].Raw.Left.X)
}

var cmpIgnoreRaw = cmp.FilterPath(func(p cmp.Path) bool {
	return p.String() == "Raw"
}, cmp.Ignore())

func TestController_EditorHit(t *testing.T) {
	root := t.TempDir()
	h := newHarness(t, func(o *Options) { o.ProjectRoot = root })
	h.active.Set(demoView(editor.Point{}, root))

	h.runLines(t, testutil.SampleLine)

	recs := h.sink.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, aoi.LabelEditor, recs[0].AOI)
	assert.Equal(t, &gaze.ScreenPoint{X: 500, Y: 450}, recs[0].Point)
	require.NotNil(t, recs[0].Location)
	// relative point (500,450) on a 10x20 character grid
	assert.Equal(t, gaze.Location{Line: 22, Column: 50, Path: "demo/add.go"}, *recs[0].Location)
	assert.Nil(t, recs[0].Structure, "nothing to resolve past the end of the document")
	assert.Empty(t, recs[0].Remark)
}

func TestController_RepeatedLeafIsMarkedUnchanged(t *testing.T) {
	root := t.TempDir()
	h := newHarness(t, func(o *Options) { o.ProjectRoot = root })
	// (500,450) lands on "Add" at line 2, column 5
	h.active.Set(demoView(editor.Point{X: 445, Y: 405}, root))

	h.runLines(t, testutil.SampleLine, testutil.SampleLine)

	recs := h.sink.Records()
	require.Len(t, recs, 2)

	first, second := recs[0], recs[1]
	require.NotNil(t, first.Structure)
	assert.Equal(t, "Add", first.Structure.Token)
	assert.Equal(t, "Ident", first.Structure.Kind)
	assert.False(t, first.Structure.Unchanged)
	require.NotEmpty(t, first.Structure.Levels)
	assert.Equal(t, "FuncDecl:Add", first.Structure.Levels[len(first.Structure.Levels)-1].Label)

	require.NotNil(t, second.Structure)
	assert.True(t, second.Structure.Unchanged)
	assert.Empty(t, second.Structure.Levels)
	assert.Equal(t, gaze.RemarkSameElement, second.Remark)
	assert.Equal(t, gaze.Location{Line: 2, Column: 5, Path: "demo/add.go"}, *second.Location)
}

func TestController_RegistryScanWithoutEditor(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.ScreenWidth, o.ScreenHeight = 600, 600
	})
	h.reg.Upsert(aoi.Bounds{ID: "ToolA", X: 0, Y: 0, Width: 100, Height: 100})

	h.runLines(t,
		"1; 0.25,0.25,1,0,0; 0.25,0.25,1,0,0,1,1",     // (150,150)
		"2; 0.125,0.125,1,0,0; 0.125,0.125,1,0,0,1,1", // (75,75)
	)

	recs := h.sink.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, aoi.LabelOutOfBounds, recs[0].AOI)
	assert.Equal(t, gaze.RemarkNoEditor, recs[0].Remark)
	assert.Equal(t, &gaze.ScreenPoint{X: 150, Y: 150}, recs[0].Point)

	assert.Equal(t, "ToolA", recs[1].AOI)
	assert.Empty(t, recs[1].Remark)
}

func TestController_DecodeFailuresAreSkipped(t *testing.T) {
	h := newHarness(t, nil)
	h.runLines(t, "bad;data", "", "Traceback (most recent call last):", testutil.SampleLine)

	recs := h.sink.Records()
	require.Len(t, recs, 1, "the pipeline continues after a bad line")
	assert.Equal(t, int64(1000), recs[0].Timestamp)

	s := h.ctrl.Stats()
	assert.Equal(t, uint64(3), s.Lines)
	assert.Equal(t, uint64(2), s.DecodeFailures)
	assert.Equal(t, uint64(1), s.Recorded)
}

func TestController_InvalidPointIsRecorded(t *testing.T) {
	h := newHarness(t, nil)
	h.runLines(t, testutil.SampleLineLeftNaN)

	recs := h.sink.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, gaze.RemarkInvalidPoint, recs[0].Remark)
	assert.Empty(t, recs[0].AOI)
	assert.Nil(t, recs[0].Point)
	assert.Equal(t, uint64(1), h.ctrl.Stats().InvalidPoints)
}

func TestController_UnsetDominantEyeFailsClosed(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.DominantEye = gaze.EyeUnset })
	h.runLines(t, testutil.SampleLine)

	recs := h.sink.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, gaze.RemarkInvalidPoint, recs[0].Remark)
}

func TestController_SensorExitEndsSession(t *testing.T) {
	h := newHarness(t, nil)
	h.runLines(t)

	assert.Equal(t, Stopped, h.ctrl.State())
	assert.ErrorIs(t, h.ctrl.Err(), ErrSensorProcess)
	assert.Equal(t, 1, h.sink.flushes)
	require.Len(t, h.journal.causes, 1)
	assert.ErrorIs(t, h.journal.causes[0], ErrSensorProcess)
}

func TestController_SensorReadError(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.port.SetReadError(errors.New("device unplugged"))
	waitDone(t, h.ctrl)

	err := h.ctrl.Err()
	assert.ErrorIs(t, err, ErrSensorProcess)
	assert.Contains(t, err.Error(), "device unplugged")
	assert.True(t, h.port.IsClosed(), "the sensor is released")
}

func TestController_LaunchFailure(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Launcher = sensor.LauncherFunc(func() (sensormux.LinePorter, error) {
			return nil, errors.New("exec: \"python3\": executable file not found")
		})
	})

	err := h.ctrl.Start(context.Background())
	assert.ErrorIs(t, err, ErrSensorProcess)
	assert.Equal(t, Stopped, h.ctrl.State())
	assert.ErrorIs(t, h.ctrl.Err(), ErrSensorProcess)
	waitDone(t, h.ctrl)
	assert.Empty(t, h.journal.started)
}

func TestController_StopIsClean(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.port.AddLine(testutil.SampleLine)

	require.Eventually(t, func() bool { return h.ctrl.Stats().Recorded == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.ctrl.Stop())
	assert.Equal(t, Stopped, h.ctrl.State())
	assert.NoError(t, h.ctrl.Err())
	assert.True(t, h.port.IsClosed())
	assert.Equal(t, 1, h.sink.flushes)

	require.NoError(t, h.ctrl.Stop(), "second stop is a no-op")
	assert.Equal(t, 1, h.sink.flushes)

	require.Len(t, h.journal.started, 1)
	assert.Equal(t, "Mouse", h.journal.started[0].Device)
	assert.Equal(t, time.UnixMilli(5000), h.journal.started[0].Started)
	assert.Equal(t, []error{nil}, h.journal.causes)
}

func TestController_StopBeforeStart(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.ctrl.Stop())
	assert.Equal(t, Stopped, h.ctrl.State())
	waitDone(t, h.ctrl)

	err := h.ctrl.Start(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState, "stopped is terminal")
}

func TestController_PauseGatesRouting(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.ctrl.Start(context.Background()))

	require.NoError(t, h.ctrl.Pause())
	assert.Equal(t, Paused, h.ctrl.State())
	assert.ErrorIs(t, h.ctrl.Pause(), ErrInvalidState)

	h.port.AddLine(testutil.SampleLine)
	h.port.AddLine("bad;data")
	require.Eventually(t, func() bool {
		s := h.ctrl.Stats()
		return s.Paused == 1 && s.DecodeFailures == 1
	}, 2*time.Second, 5*time.Millisecond, "lines are still drained and decoded")
	assert.Empty(t, h.sink.Records())
	assert.Zero(t, h.pub.Len())

	require.NoError(t, h.ctrl.Resume())
	assert.ErrorIs(t, h.ctrl.Resume(), ErrInvalidState)
	h.port.AddLine(testutil.SampleLine)
	require.Eventually(t, func() bool { return len(h.sink.Records()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestController_RealtimeToggle(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.ctrl.Start(context.Background()))

	h.port.AddLine(testutil.SampleLine)
	require.Eventually(t, func() bool { return h.pub.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	h.ctrl.SetRealtime(false)
	assert.False(t, h.ctrl.Stats().Realtime)
	h.port.AddLine(testutil.SampleLine)
	require.Eventually(t, func() bool { return h.ctrl.Stats().Recorded == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.pub.Len(), "nothing is pushed while real-time is off")
}

func TestController_SinkErrorsAreCounted(t *testing.T) {
	h := newHarness(t, nil)
	h.sink.failGaze = errors.New("disk full")
	h.runLines(t, testutil.SampleLine)

	s := h.ctrl.Stats()
	assert.Equal(t, uint64(1), s.SinkErrors)
	assert.Zero(t, s.Recorded)
}

func TestController_RecordSelection(t *testing.T) {
	root := t.TempDir()
	h := newHarness(t, func(o *Options) { o.ProjectRoot = root })

	sel := gaze.Selection{Path: filepath.Join(root, "demo", "add.go"), Start: "2:5", End: "2:8", Text: "Add"}
	assert.ErrorIs(t, h.ctrl.RecordSelection(sel), ErrInvalidState)

	require.NoError(t, h.ctrl.Start(context.Background()))
	require.NoError(t, h.ctrl.RecordSelection(sel))
	require.NoError(t, h.ctrl.RecordSelection(sel))

	next := sel
	next.End, next.Text = "2:6", "Ad"
	require.NoError(t, h.ctrl.RecordSelection(next))

	got := h.sink.Selections()
	require.Len(t, got, 2, "the repeated selection is suppressed")
	assert.Equal(t, "demo/add.go", got[0].Path)
	assert.Equal(t, "test-session", got[0].SessionID)
	assert.Equal(t, int64(5000), got[0].Timestamp)
	assert.Equal(t, "Ad", got[1].Text)
	assert.Equal(t, uint64(1), h.ctrl.Stats().SelectionsSuppressed)

	require.NoError(t, h.ctrl.Pause())
	third := next
	third.Text = "A"
	require.NoError(t, h.ctrl.RecordSelection(third))
	assert.Len(t, h.sink.Selections(), 2, "paused sessions drop selections")
}

func TestController_DroppedEditorLookups(t *testing.T) {
	root := t.TempDir()
	ui := uithread.New(1)
	ui.Close()
	h := newHarness(t, func(o *Options) { o.UI = ui })
	h.active.Set(demoView(editor.Point{}, root))

	h.runLines(t, testutil.SampleLine)

	assert.Empty(t, h.sink.Records())
	s := h.ctrl.Stats()
	assert.Equal(t, uint64(1), s.EditorLookups)
	assert.Equal(t, uint64(1), s.DispatchDropped)
}

func TestState_String(t *testing.T) {
	var names []string
	for _, s := range []State{Idle, Tracking, Paused, Stopped, State(42)} {
		names = append(names, s.String())
	}
	assert.Equal(t, "idle tracking paused stopped unknown", strings.Join(names, " "))
}
