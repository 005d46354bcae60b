package app

import (
	"context"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handmouse/internal/capture"
	"github.com/ayusman/handmouse/internal/detector"
	"github.com/ayusman/handmouse/internal/gesture"
)

func blankFrames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()

	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	t.Cleanup(func() {
		for _, m := range frames {
			m.Close()
		}
	})
	return frames
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func runAsync(ctx context.Context, a *App) <-chan error {
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	return done
}

func TestApp_Run_PlaysRecordedFrames(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cam := capture.NewMockCamera(blankFrames(t, 3), false)
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.PointingLandmarks()})

	a, rec := newTestApp(t, func(c *Config) {
		c.Camera = cam
		c.Detector = det
		c.Gate = capture.IdleGate{ActiveFPS: 200, IdleFPS: 200, IdleAfter: time.Second}
	})

	select {
	case err := <-runAsync(context.Background(), a):
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after the last frame")
	}

	if cam.IsOpen() {
		t.Error("expected camera closed after Run")
	}
	frames := a.FramesProcessed()
	if frames == 0 || frames > 3 {
		t.Errorf("frames processed = %d, want 1..3", frames)
	}
	if uint64(det.Calls()) != frames {
		t.Errorf("detector calls = %d, want %d", det.Calls(), frames)
	}
	if uint64(rec.Count(gesture.Move)) != frames {
		t.Errorf("moves = %d, want %d", rec.Count(gesture.Move), frames)
	}
}

func TestApp_Run_StopsOnCancel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	s := newTestStore(t)
	motion := capture.NewMotionDetector(1.0)
	defer motion.Close()
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.PointingLandmarks()})

	a, rec := newTestApp(t, func(c *Config) {
		c.Camera = capture.NewMockCamera(blankFrames(t, 2), true)
		c.Detector = det
		c.Store = s
		c.Motion = motion
		c.Gate = capture.IdleGate{ActiveFPS: 200, IdleFPS: 200, IdleAfter: time.Minute}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, a)

	waitFor(t, "pointer moves", func() bool { return rec.Count(gesture.Move) >= 5 })
	session := a.Session()
	if session == "" {
		t.Error("expected a journal session while running")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if a.Session() != "" {
		t.Error("expected session cleared after Run")
	}
	sess, err := s.Sessions().GetByID(session)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if sess.EndedAt == nil {
		t.Error("expected session ended after Run")
	}
}

func TestApp_Run_PausedSkipsDetection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cam := capture.NewMockCamera(blankFrames(t, 1), true)
	det := detector.NewMockDetector()

	a, _ := newTestApp(t, func(c *Config) {
		c.Camera = cam
		c.Detector = det
		c.Gate = capture.IdleGate{ActiveFPS: 200, IdleFPS: 100, IdleAfter: time.Second}
	})
	a.SetEnabled(false)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, a)

	waitFor(t, "camera reads", func() bool { return cam.Reads() >= 5 })
	waitFor(t, "idle rate", func() bool { return cam.FPS() == 100 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if det.Calls() != 0 {
		t.Errorf("detector calls = %d, want 0 while paused", det.Calls())
	}
	if a.FramesProcessed() != 0 {
		t.Errorf("frames processed = %d, want 0", a.FramesProcessed())
	}
}
