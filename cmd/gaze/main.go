package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/banshee-data/gaze.report/internal/aoi"
	"github.com/banshee-data/gaze.report/internal/api"
	"github.com/banshee-data/gaze.report/internal/config"
	"github.com/banshee-data/gaze.report/internal/db"
	"github.com/banshee-data/gaze.report/internal/editor"
	"github.com/banshee-data/gaze.report/internal/monitoring"
	"github.com/banshee-data/gaze.report/internal/realtime"
	"github.com/banshee-data/gaze.report/internal/sensor"
	"github.com/banshee-data/gaze.report/internal/uithread"
	"github.com/banshee-data/gaze.report/internal/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "gaze: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		return serve(args)
	case "migrate":
		return migrate(args, stdout)
	case "ctl":
		return ctl(args, stdout)
	case "version":
		fmt.Fprintln(stdout, version.String())
		return nil
	case "help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stdout)
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `gaze - gaze classification and AOI recorder

Usage: gaze [command] [options]

Commands:
  serve      Run the recorder and its HTTP API (default)
  migrate    Manage database schema migrations
  ctl        Control a running recorder: start, pause, resume, stop, status
  version    Show the build version
  help       Show this help message

Run 'gaze <command> --help' for the options of a command.
`)
}

// serveFlags are the command line overrides for the config file.
type serveFlags struct {
	fs *pflag.FlagSet

	configPath   string
	dev          string
	listen       string
	dbPath       string
	device       string
	dominantEye  string
	screenWidth  int
	screenHeight int
	projectRoot  string
	realtime     bool
}

func newServeFlags() *serveFlags {
	f := &serveFlags{fs: pflag.NewFlagSet("serve", pflag.ContinueOnError)}
	f.fs.StringVar(&f.configPath, "config", "", "Path to a .json or .yaml config file")
	f.fs.StringVar(&f.dev, "dev", "", "Replay sample lines from this fixtures file instead of launching the sensor")
	f.fs.StringVar(&f.listen, "listen", "", "HTTP listen address")
	f.fs.StringVar(&f.dbPath, "db-path", "", "SQLite database path")
	f.fs.StringVar(&f.device, "device", "", "Sensor device: mouse or tobii")
	f.fs.StringVar(&f.dominantEye, "dominant-eye", "", "Dominant eye: left or right")
	f.fs.IntVar(&f.screenWidth, "screen-width", 0, "Screen width in pixels")
	f.fs.IntVar(&f.screenHeight, "screen-height", 0, "Screen height in pixels")
	f.fs.StringVar(&f.projectRoot, "project-root", "", "Directory editor paths are recorded relative to")
	f.fs.BoolVar(&f.realtime, "realtime", true, "Push records to live subscribers")
	return f
}

// load reads the config file, if any, and applies the flags that were set.
func (f *serveFlags) load() (*config.Config, error) {
	cfg := config.Empty()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, err
		}
	}

	if f.fs.Changed("listen") {
		cfg.Listen = &f.listen
	}
	if f.fs.Changed("db-path") {
		cfg.DBPath = &f.dbPath
	}
	if f.fs.Changed("device") {
		cfg.Device = &f.device
	}
	if f.fs.Changed("dominant-eye") {
		cfg.DominantEye = &f.dominantEye
	}
	if f.fs.Changed("screen-width") {
		cfg.ScreenWidth = &f.screenWidth
	}
	if f.fs.Changed("screen-height") {
		cfg.ScreenHeight = &f.screenHeight
	}
	if f.fs.Changed("project-root") {
		cfg.ProjectRoot = &f.projectRoot
	}
	if f.fs.Changed("realtime") {
		cfg.Realtime = &f.realtime
	}
	return cfg, cfg.Validate()
}

// replayLauncher loops the non-empty lines of a fixtures file.
func replayLauncher(path string, frequency float64) (sensor.Launcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixtures file: %w", err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("fixtures file %s has no sample lines", path)
	}
	return sensor.Replay{Lines: lines, Frequency: frequency}, nil
}

func serve(args []string) error {
	flags := newServeFlags()
	if err := flags.fs.Parse(args); err != nil {
		return err
	}
	cfg, err := flags.load()
	if err != nil {
		return err
	}

	log.Printf("starting %s", version.String())

	var launcher sensor.Launcher
	if flags.dev != "" {
		if launcher, err = replayLauncher(flags.dev, cfg.GetSampleFrequency()); err != nil {
			return err
		}
		log.Printf("dev mode: replaying %s", flags.dev)
	}

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Sessions and the UI goroutine outlive the signal so that shutdown can
	// stop the session cleanly and flush it.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	var wg sync.WaitGroup

	// all editor access runs on this goroutine
	ui := uithread.New(cfg.GetUIQueueSize())
	wg.Add(1)
	go func() {
		defer wg.Done()
		ui.Run(appCtx)
		log.Print("ui dispatcher stopped")
	}()

	server := api.NewServer(api.Options{
		Context:  appCtx,
		Config:   cfg,
		DB:       database,
		Registry: aoi.NewRegistry(),
		Editor:   &editor.Active{},
		UI:       ui,
		Hub:      realtime.NewHub(),
		Metrics:  monitoring.NewMetrics(),
		Launcher: launcher,
	})

	httpServer := &http.Server{
		Addr:    cfg.GetListen(),
		Handler: api.LoggingMiddleware(server.ServeMux()),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		stop()
	}

	log.Println("shutting down HTTP server...")
	server.Close()
	appCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		log.Printf("HTTP server shutdown error: %v", serr)
		if cerr := httpServer.Close(); cerr != nil {
			log.Printf("HTTP server force close error: %v", cerr)
		}
	}

	wg.Wait()
	log.Printf("Graceful shutdown complete")
	return err
}

func migrate(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	dbPath := fs.String("db-path", "gaze.db", "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.RunMigrateCommand(stdout, fs.Args(), *dbPath)
}
