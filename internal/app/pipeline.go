package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/handmouse/internal/capture"
	"github.com/ayusman/handmouse/internal/detector"
	"github.com/ayusman/handmouse/internal/filter"
	"github.com/ayusman/handmouse/internal/gesture"
	"github.com/ayusman/handmouse/internal/store"
)

// Run opens the camera and processes frames until ctx is cancelled or the
// camera stops delivering. A camera that runs out of recorded frames ends
// the run without error.
//
// Capture runs on its own goroutine and hands the newest frame over through
// a FrameSlot, so a slow tracker drops stale frames instead of lagging.
func (a *App) Run(ctx context.Context) error {
	cam := a.cfg.Camera
	if err := cam.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	defer func() {
		if err := cam.Close(); err != nil {
			a.logger.Warn("close camera", zap.Error(err))
		}
	}()
	cam.SetFPS(a.cfg.Gate.ActiveFPS)

	slot := capture.NewFrameSlot()
	defer slot.Close()

	a.toggleMu.Lock()
	a.mu.Lock()
	a.running = true
	enabled := a.enabled
	a.mu.Unlock()
	if enabled {
		a.startSession()
	}
	a.toggleMu.Unlock()
	defer func() {
		a.toggleMu.Lock()
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
		a.endSession()
		a.toggleMu.Unlock()
		a.logger.Info("pipeline stopped",
			zap.Uint64("frames", a.frames.Load()),
			zap.Uint64("dropped", slot.Dropped()))
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	captureDone := make(chan error, 1)
	go func() {
		captureDone <- a.captureLoop(ctx, slot)
	}()

	a.logger.Info("pipeline started", zap.Int("fps", cam.FPS()))

	for {
		select {
		case <-ctx.Done():
			<-captureDone
			return nil
		case err := <-captureDone:
			if f, ok := slot.TryTake(); ok {
				a.handleCapture(f)
			}
			return err
		case <-slot.Ready():
			if f, ok := slot.TryTake(); ok {
				a.handleCapture(f)
			}
		}
	}
}

// captureLoop reads frames at the camera's current rate into slot.
func (a *App) captureLoop(ctx context.Context, slot *capture.FrameSlot) error {
	cam := a.cfg.Camera
	failures := 0

	for {
		start := time.Now()

		mat, err := cam.ReadFrame()
		switch {
		case errors.Is(err, capture.ErrNoMoreFrames):
			a.logger.Info("camera has no more frames")
			return nil
		case err != nil:
			failures++
			a.logger.Debug("read frame", zap.Int("failures", failures), zap.Error(err))
			if failures >= maxReadFailures {
				return fmt.Errorf("read frame: %d consecutive failures: %w", failures, err)
			}
		default:
			failures = 0
			slot.Put(capture.Captured{Mat: mat, Timestamp: a.cfg.Now()})
		}

		interval := time.Second / time.Duration(max(cam.FPS(), 1))
		wait := interval - time.Since(start)
		if wait <= 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// handleCapture detects the hand in one captured frame, steps the gesture
// machine and adjusts the capture rate.
func (a *App) handleCapture(c capture.Captured) {
	defer c.Close()

	if !a.Enabled() {
		a.setFPS(a.cfg.Gate.IdleFPS)
		return
	}

	motion := false
	if a.cfg.Motion != nil {
		motion, _ = a.cfg.Motion.Detect(c.Mat)
	}

	// While idle a still scene cannot contain a new hand.
	if a.cfg.Motion != nil && a.cfg.Gate.Idle(c.Timestamp) && !motion {
		a.setFPS(a.cfg.Gate.Observe(c.Timestamp, false, false))
		return
	}

	hands, err := a.cfg.Detector.Detect(c.Mat)
	if err != nil {
		a.logger.Debug("detect hands", zap.Error(err))
		hands = nil
	}
	frame := detector.Frame{Hand: detector.Primary(hands), Timestamp: c.Timestamp}

	if _, err := a.ProcessFrame(frame); err != nil {
		a.logger.Debug("drop frame", zap.Error(err))
	}

	a.setFPS(a.cfg.Gate.Observe(c.Timestamp, frame.Hand != nil, motion))
}

func (a *App) setFPS(fps int) {
	cam := a.cfg.Camera
	if fps <= 0 || fps == cam.FPS() {
		return
	}
	cam.SetFPS(fps)
	a.logger.Info("capture rate changed", zap.Int("fps", fps))
}

// ProcessFrame runs one tracker frame through the gesture machine and
// dispatches the resulting action to the controller, the event stream and
// the journal. While paused it does nothing and returns a None action.
//
// An out-of-order frame is rejected with an error wrapping
// filter.ErrOutOfOrderSample; the pipeline stays usable.
func (a *App) ProcessFrame(frame detector.Frame) (gesture.Action, error) {
	a.mu.Lock()
	if !a.enabled {
		a.mu.Unlock()
		return gesture.NoAction, nil
	}
	act, err := a.cfg.Machine.Process(a.gctx, frame)
	if err != nil {
		a.mu.Unlock()
		if errors.Is(err, filter.ErrOutOfOrderSample) {
			return gesture.NoAction, err
		}
		return gesture.NoAction, fmt.Errorf("process frame: %w", err)
	}
	state := a.gctx.State()
	a.state = state
	session := a.session
	a.mu.Unlock()

	a.frames.Add(1)

	if act.Kind != gesture.None {
		if err := a.cfg.Controller.Apply(act); err != nil {
			a.logger.Warn("apply action", zap.Stringer("action", act), zap.Error(err))
		}
	}
	if act.Kind.Discrete() {
		a.logger.Debug("gesture", zap.Stringer("action", act), zap.Stringer("state", state))
	}
	if a.cfg.Events != nil {
		a.cfg.Events.Broadcast(act, state, frame.Timestamp)
	}
	if a.cfg.OnFrame != nil {
		a.cfg.OnFrame(state, act)
	}
	a.journal(session, act, state, frame.Timestamp)

	return act, nil
}

// journal records discrete actions and non-zero scrolls. Moves are too
// frequent to keep.
func (a *App) journal(session string, act gesture.Action, state gesture.State, at time.Time) {
	if a.cfg.Store == nil || session == "" {
		return
	}
	if !act.Kind.Discrete() && (act.Kind != gesture.Scroll || act.DY == 0) {
		return
	}

	rec := &store.Action{
		SessionID: session,
		Kind:      act.Kind.String(),
		X:         act.X,
		Y:         act.Y,
		DY:        act.DY,
		State:     state.String(),
		CreatedAt: at,
	}
	if err := a.cfg.Store.Actions().Record(rec); err != nil {
		a.logger.Warn("journal action", zap.Stringer("action", act), zap.Error(err))
	}
}
