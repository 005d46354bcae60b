// Package app wires the camera, hand tracker, gesture machine and mouse
// controller into the running handmouse pipeline.
package app

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/handmouse/internal/capture"
	"github.com/ayusman/handmouse/internal/detector"
	"github.com/ayusman/handmouse/internal/gesture"
	"github.com/ayusman/handmouse/internal/logging"
	"github.com/ayusman/handmouse/internal/mouse"
	"github.com/ayusman/handmouse/internal/store"
)

// maxReadFailures is how many consecutive camera errors end the run.
const maxReadFailures = 30

// Broadcaster receives every applied action; server.Hub implements it.
type Broadcaster interface {
	Broadcast(a gesture.Action, state gesture.State, at time.Time)
}

// Config holds the pipeline's collaborators. Camera, Detector, Machine and
// Controller are required.
type Config struct {
	Camera     capture.Camera
	Detector   detector.Detector
	Machine    *gesture.Machine
	Controller mouse.Controller

	// Motion gates detection while idle. Optional.
	Motion *capture.MotionDetector
	// Gate picks the capture rate. A zero ActiveFPS uses the camera's rate.
	Gate   capture.IdleGate

	// Store journals discrete and scroll actions per session. Optional.
	Store  *store.Store
	Events Broadcaster

	// OnFrame runs after every processed frame with the resulting state and
	// action. OnEnabled runs when tracking is paused or resumed.
	OnFrame   func(state gesture.State, a gesture.Action)
	OnEnabled func(enabled bool)

	Logger *zap.Logger
	// Now stamps captured frames; defaults to time.Now.
	Now    func() time.Time
}

// App is the running pipeline. It implements server.Status.
type App struct {
	cfg    Config
	logger *zap.Logger

	// toggleMu orders enable and run transitions with their journal
	// sessions. It is taken before mu.
	toggleMu sync.Mutex

	mu      sync.Mutex
	enabled bool
	running bool
	gctx    *gesture.Context
	state   gesture.State
	session string

	frames atomic.Uint64
}

// New checks cfg and returns an enabled, not yet running App.
func New(cfg Config) (*App, error) {
	var errs []error
	if cfg.Camera == nil {
		errs = append(errs, errors.New("app: camera is required"))
	}
	if cfg.Detector == nil {
		errs = append(errs, errors.New("app: detector is required"))
	}
	if cfg.Machine == nil {
		errs = append(errs, errors.New("app: gesture machine is required"))
	}
	if cfg.Controller == nil {
		errs = append(errs, errors.New("app: mouse controller is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Gate.ActiveFPS <= 0 {
		cfg.Gate.ActiveFPS = cfg.Camera.FPS()
	}
	if cfg.Gate.IdleFPS <= 0 {
		cfg.Gate.IdleFPS = cfg.Gate.ActiveFPS
	}

	return &App{
		cfg:     cfg,
		logger:  logging.OrNop(cfg.Logger),
		enabled: true,
		gctx:    cfg.Machine.NewContext(),
		state:   gesture.Idle,
	}, nil
}

// SetEnabled pauses or resumes tracking. Resuming starts from a fresh
// gesture context, so no filter state or pinch survives a pause.
func (a *App) SetEnabled(enabled bool) {
	a.toggleMu.Lock()
	a.mu.Lock()
	if a.enabled == enabled {
		a.mu.Unlock()
		a.toggleMu.Unlock()
		return
	}
	a.enabled = enabled
	if enabled {
		a.gctx = a.cfg.Machine.NewContext()
	}
	a.state = gesture.Idle
	running := a.running
	a.mu.Unlock()

	a.logger.Info("tracking toggled", zap.Bool("enabled", enabled))
	if running {
		if enabled {
			a.startSession()
		} else {
			a.endSession()
		}
	}
	a.toggleMu.Unlock()

	if a.cfg.OnEnabled != nil {
		a.cfg.OnEnabled(enabled)
	}
}

// Enabled reports whether tracking is active.
func (a *App) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// State returns the gesture state after the last processed frame.
func (a *App) State() gesture.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// FramesProcessed returns how many frames reached the gesture machine.
func (a *App) FramesProcessed() uint64 {
	return a.frames.Load()
}

// Session returns the current journal session ID, or "" if none.
func (a *App) Session() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

func (a *App) startSession() {
	if a.cfg.Store == nil {
		return
	}
	sess, err := a.cfg.Store.Sessions().Start(a.cfg.Now())
	if err != nil {
		a.logger.Warn("start journal session", zap.Error(err))
		return
	}

	a.mu.Lock()
	prev := a.session
	a.session = sess.ID
	a.mu.Unlock()
	if prev != "" {
		if err := a.cfg.Store.Sessions().End(prev, a.cfg.Now()); err != nil {
			a.logger.Warn("end journal session", zap.String("session", prev), zap.Error(err))
		}
	}
	a.logger.Debug("journal session started", zap.String("session", sess.ID))
}

func (a *App) endSession() {
	a.mu.Lock()
	id := a.session
	a.session = ""
	a.mu.Unlock()

	if a.cfg.Store == nil || id == "" {
		return
	}
	if err := a.cfg.Store.Sessions().End(id, a.cfg.Now()); err != nil {
		a.logger.Warn("end journal session", zap.String("session", id), zap.Error(err))
	}
}
