package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaze.report/internal/api"
	"github.com/banshee-data/gaze.report/internal/gaze"
	"github.com/banshee-data/gaze.report/internal/httputil"
	"github.com/banshee-data/gaze.report/internal/sensor"
	"github.com/banshee-data/gaze.report/internal/version"
)

func TestRun_Commands(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"version"}, &out))
	assert.Equal(t, version.String()+"\n", out.String())

	out.Reset()
	require.NoError(t, run([]string{"help"}, &out))
	assert.Contains(t, out.String(), "Usage: gaze")

	out.Reset()
	err := run([]string{"record"}, &out)
	assert.ErrorContains(t, err, `unknown command "record"`)
	assert.Contains(t, out.String(), "Commands:")
}

func TestRun_MigrateHelp(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"migrate", "help"}, &out))
	assert.NotEmpty(t, out.String())

	out.Reset()
	assert.Error(t, run([]string{"migrate"}, &out), "an action is required")
}

func TestServeFlags_Defaults(t *testing.T) {
	f := newServeFlags()
	require.NoError(t, f.fs.Parse(nil))
	cfg, err := f.load()
	require.NoError(t, err)

	// unset flags leave the config defaults alone
	assert.Equal(t, "localhost:8090", cfg.GetListen())
	assert.Equal(t, 1920, cfg.GetScreenWidth())
	assert.True(t, cfg.GetRealtime())
	assert.Equal(t, gaze.EyeLeft, cfg.GetDominantEye())
}

func TestServeFlags_OverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gaze.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9000\"\nscreen_width: 2560\nscreen_height: 1440\ndominant_eye: left\n"), 0o600))

	f := newServeFlags()
	require.NoError(t, f.fs.Parse([]string{
		"--config", path,
		"--dominant-eye", "right",
		"--screen-height", "1600",
		"--realtime=false",
	}))
	cfg, err := f.load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.GetListen())
	assert.Equal(t, 2560, cfg.GetScreenWidth())
	assert.Equal(t, 1600, cfg.GetScreenHeight())
	assert.Equal(t, gaze.EyeRight, cfg.GetDominantEye())
	assert.False(t, cfg.GetRealtime())
}

func TestServeFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad eye", []string{"--dominant-eye", "both"}},
		{"zero width", []string{"--screen-width", "0"}},
		{"bad device", []string{"--device", "webcam"}},
		{"missing config", []string{"--config", "/nonexistent/gaze.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServeFlags()
			require.NoError(t, f.fs.Parse(tt.args))
			_, err := f.load()
			assert.Error(t, err)
		})
	}

	f := newServeFlags()
	assert.ErrorIs(t, f.fs.Parse([]string{"--help"}), pflag.ErrHelp)
}

func TestReplayLauncher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixtures.txt")
	content := "1000; 0.5,0.5,1,0,0; 0.5,0.4,1,0,0,1,1\n\n  \n1001; 0.4,0.4,1,0,0; 0.4,0.4,1,0,0,1,1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	l, err := replayLauncher(path, 30)
	require.NoError(t, err)
	replay, ok := l.(sensor.Replay)
	require.True(t, ok)
	assert.Len(t, replay.Lines, 2)
	assert.Equal(t, 30.0, replay.Frequency)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n\n"), 0o600))
	_, err = replayLauncher(empty, 30)
	assert.ErrorContains(t, err, "no sample lines")

	_, err = replayLauncher(filepath.Join(dir, "missing.txt"), 30)
	assert.Error(t, err)
}

func TestRunCtl(t *testing.T) {
	mock := httputil.NewMockHTTPClient().
		Respond(http.StatusCreated, `{"session_id":"s1","state":"tracking","realtime":false}`).
		Respond(http.StatusConflict, `{"error":"invalid session state transition"}`)

	var out bytes.Buffer
	err := runCtl([]string{"--addr", "127.0.0.1:9999", "--dominant-eye", "right", "--no-realtime", "start"}, &out, mock)
	require.NoError(t, err)

	var st api.SessionStatus
	require.NoError(t, json.Unmarshal(out.Bytes(), &st))
	assert.Equal(t, "s1", st.SessionID)

	req, body := mock.Request(0)
	assert.Equal(t, "http://127.0.0.1:9999/api/session/start", req.URL.String())
	assert.JSONEq(t, `{"dominant_eye":"right","realtime":false}`, body)

	err = runCtl([]string{"resume"}, &out, mock)
	assert.ErrorContains(t, err, "409")

	err = runCtl(nil, &out, mock)
	assert.True(t, err != nil && strings.HasPrefix(err.Error(), "usage:"))
	assert.Equal(t, 2, mock.RequestCount())
}
