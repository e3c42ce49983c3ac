package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/banshee-data/gaze.report/internal/api"
	"github.com/banshee-data/gaze.report/internal/httputil"
)

// ctl drives a running recorder, e.g. `gaze ctl start --dominant-eye right`.
func ctl(args []string, stdout io.Writer) error {
	return runCtl(args, stdout, nil)
}

func runCtl(args []string, stdout io.Writer, hc httputil.HTTPClient) error {
	fs := pflag.NewFlagSet("ctl", pflag.ContinueOnError)
	addr := fs.String("addr", "localhost:8090", "Address of the running recorder")
	eye := fs.String("dominant-eye", "", "Dominant eye for start: left or right")
	root := fs.String("project-root", "", "Project root for start")
	noRealtime := fs.Bool("no-realtime", false, "Start without pushing records to live subscribers")
	timeout := fs.Duration("timeout", 10*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: gaze ctl [options] start|pause|resume|stop|status")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	client := api.NewClient(*addr, hc)

	var (
		st  api.SessionStatus
		err error
	)
	switch action := fs.Arg(0); action {
	case "status":
		st, err = client.Status(ctx)
	case "start":
		req := api.StartRequest{DominantEye: *eye, ProjectRoot: *root}
		if fs.Changed("no-realtime") {
			on := !*noRealtime
			req.Realtime = &on
		}
		st, err = client.Start(ctx, req)
	default:
		st, err = client.Action(ctx, action)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}
