// Command handmouse drives the mouse pointer from webcam hand tracking.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"

	"github.com/ayusman/handmouse/internal/app"
	"github.com/ayusman/handmouse/internal/capture"
	"github.com/ayusman/handmouse/internal/config"
	"github.com/ayusman/handmouse/internal/detector"
	"github.com/ayusman/handmouse/internal/gesture"
	"github.com/ayusman/handmouse/internal/logging"
	"github.com/ayusman/handmouse/internal/mouse"
	"github.com/ayusman/handmouse/internal/server"
	"github.com/ayusman/handmouse/internal/store"
	"github.com/ayusman/handmouse/internal/tray"
)

const defaultConfigPath = "~/.handmouse/config.yaml"

var version = "dev"

type options struct {
	configPath  string
	noTray      bool
	showVersion bool
	overrides   config.FlagOverrides
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("handmouse", flag.ContinueOnError)

	var opts options
	var (
		device       = fs.Int("camera", 0, "Camera device index")
		fps          = fs.Int("fps", 30, "Active capture rate in frames per second")
		mirror       = fs.Bool("mirror", true, "Mirror the camera image horizontally")
		screenWidth  = fs.Int("screen-width", 0, "Screen width in pixels (0 = detect)")
		screenHeight = fs.Int("screen-height", 0, "Screen height in pixels (0 = detect)")
		serve        = fs.Bool("server", true, "Serve the local status API")
		addr         = fs.String("addr", "127.0.0.1:8080", "Status API listen address")
		journal      = fs.Bool("journal", false, "Journal clicks, scrolls and swipes to SQLite")
		journalPath  = fs.String("journal-path", "~/.handmouse/journal.db", "Journal database path")
		logLevel     = fs.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	fs.StringVar(&opts.configPath, "config", "", "Path to a YAML config file (default "+defaultConfigPath+" if present)")
	fs.BoolVar(&opts.noTray, "no-tray", false, "Run without the system tray menu")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	// Only flags given on the command line override the config file.
	o := &opts.overrides
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "camera":
			o.CameraDevice = device
		case "fps":
			o.CameraFPS = fps
		case "mirror":
			o.Mirror = mirror
		case "screen-width":
			o.ScreenWidth = screenWidth
		case "screen-height":
			o.ScreenHeight = screenHeight
		case "server":
			o.ServerEnabled = serve
		case "addr":
			o.ServerAddr = addr
		case "journal":
			o.JournalEnabled = journal
		case "journal-path":
			o.JournalPath = journalPath
		case "log-level":
			o.LogLevel = logLevel
		}
	})
	return opts, nil
}

func loadConfig(opts options) (config.Config, error) {
	cfg := config.Default()

	path := opts.configPath
	if path == "" {
		if _, err := os.Stat(config.ExpandPath(defaultConfigPath)); err == nil {
			path = defaultConfigPath
		}
	}
	if path != "" {
		loaded, err := config.LoadFile(config.ExpandPath(path))
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	opts.overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Println("handmouse", version)
		return
	}

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "handmouse:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	screen, ok := cfg.Screen()
	if !ok {
		if screen, err = mouse.ScreenSize(); err != nil {
			return err
		}
	}
	logger.Info("screen", zap.Int("width", screen.Width), zap.Int("height", screen.Height))

	machine, err := gesture.NewMachine(cfg.ToGestureConfig(), cfg.ToFeaturesConfig(), screen)
	if err != nil {
		return err
	}

	det, err := detector.NewMediaPipeDetector(cfg.ToTrackerConfig(), logger.Named("tracker"))
	if err != nil {
		return fmt.Errorf("hand tracker unavailable: %w", err)
	}
	defer det.Close()

	var st *store.Store
	if cfg.Journal.Enabled {
		st, err = store.New(config.ExpandPath(cfg.Journal.Path))
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer st.Close()
		logger.Info("journal enabled", zap.String("path", st.Path()))
	}

	var hub *server.Hub
	var events app.Broadcaster
	if cfg.Server.Enabled {
		hub = server.NewHub(logger.Named("events"))
		events = hub
	}

	motion := capture.NewMotionDetector(cfg.Camera.MotionThreshold)
	defer motion.Close()

	var tr *tray.Tray
	if !opts.noTray {
		tr = tray.New()
	}

	pipeline, err := app.New(app.Config{
		Camera:     capture.NewCamera(cfg.ToCameraConfig()),
		Detector:   det,
		Machine:    machine,
		Controller: mouse.NewRobot(logger.Named("mouse")),
		Motion:     motion,
		Gate: capture.IdleGate{
			ActiveFPS: cfg.Camera.FPS,
			IdleFPS:   cfg.Camera.IdleFPS,
			IdleAfter: cfg.IdleTimeout(),
		},
		Store:  st,
		Events: events,
		OnFrame: func(state gesture.State, a gesture.Action) {
			if tr != nil {
				tr.SetState(state)
				tr.SetLastAction(a.Kind)
			}
		},
		OnEnabled: func(enabled bool) {
			if tr != nil {
				tr.SetEnabled(enabled)
			}
		},
		Logger: logger.Named("app"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Enabled {
		srv := server.New(server.Config{
			Store:  st,
			Status: pipeline,
			Events: hub,
			Logger: logger.Named("http"),
		})
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server", zap.Error(err))
			}
		}()
	}

	if tr == nil {
		return pipeline.Run(ctx)
	}

	// The tray must own the main goroutine on macOS.
	tr.OnToggle(pipeline.SetEnabled)
	tr.OnQuit(stop)
	tr.OnStatus(func() {
		if !cfg.Server.Enabled {
			return
		}
		url := "http://" + cfg.Server.Addr + "/api/status"
		if err := openBrowser(url); err != nil {
			logger.Warn("open status page", zap.String("url", url), zap.Error(err))
		}
	})

	errc := make(chan error, 1)
	go func() {
		errc <- pipeline.Run(ctx)
		tr.Quit()
	}()
	tr.Run()
	stop()
	return <-errc
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
