package app

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/handmouse/internal/capture"
	"github.com/ayusman/handmouse/internal/detector"
	"github.com/ayusman/handmouse/internal/features"
	"github.com/ayusman/handmouse/internal/filter"
	"github.com/ayusman/handmouse/internal/gesture"
	"github.com/ayusman/handmouse/internal/mapper"
	"github.com/ayusman/handmouse/internal/mouse"
	"github.com/ayusman/handmouse/internal/store"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// frameAt returns the timestamp of frame i at 30 fps.
func frameAt(i int) time.Time {
	return t0.Add(time.Duration(i) * 100 * time.Millisecond / 3)
}

type event struct {
	action gesture.Action
	state  gesture.State
}

// recordingHub captures broadcasts.
type recordingHub struct {
	mu     sync.Mutex
	events []event
}

func (h *recordingHub) Broadcast(a gesture.Action, state gesture.State, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event{a, state})
}

func newTestApp(t *testing.T, mutate func(*Config)) (*App, *mouse.Recorder) {
	t.Helper()

	m, err := gesture.NewMachine(gesture.DefaultConfig(), features.DefaultConfig(), mapper.Screen{Width: 1920, Height: 1080})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	rec := mouse.NewRecorder()
	cfg := Config{
		Camera:     capture.NewMockCamera(nil, false),
		Detector:   detector.NewMockDetector(),
		Machine:    m,
		Controller: rec,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a, rec
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func feed(t *testing.T, a *App, h detector.HandLandmarks, from, to int) []gesture.Action {
	t.Helper()

	var out []gesture.Action
	for i := from; i < to; i++ {
		hand := h
		act, err := a.ProcessFrame(detector.Frame{Hand: &hand, Timestamp: frameAt(i)})
		if err != nil {
			t.Fatalf("frame %d: ProcessFrame() error = %v", i, err)
		}
		out = append(out, act)
	}
	return out
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Fatal("expected error for empty config")
	}
	for _, want := range []string{"camera", "detector", "gesture machine", "mouse controller"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestApp_PointingMovesPointer(t *testing.T) {
	hub := &recordingHub{}
	var states []gesture.State
	a, rec := newTestApp(t, func(c *Config) {
		c.Events = hub
		c.OnFrame = func(s gesture.State, _ gesture.Action) { states = append(states, s) }
	})

	hand := detector.PointingLandmarks().CenteredAt(0.5, 0.5)
	actions := feed(t, a, hand, 0, 30)

	for i, act := range actions {
		if act != (gesture.Action{Kind: gesture.Move, X: 960, Y: 540}) {
			t.Fatalf("frame %d: action = %v, want move(960,540)", i, act)
		}
	}
	if rec.Count(gesture.Move) != 30 {
		t.Errorf("controller moves = %d, want 30", rec.Count(gesture.Move))
	}
	if len(hub.events) != 30 || len(states) != 30 {
		t.Errorf("broadcasts = %d, frame callbacks = %d, want 30", len(hub.events), len(states))
	}
	if a.State() != gesture.Moving {
		t.Errorf("state = %v, want moving", a.State())
	}
	if a.FramesProcessed() != 30 {
		t.Errorf("frames = %d, want 30", a.FramesProcessed())
	}
}

func TestApp_ClickIsJournaled(t *testing.T) {
	s := newTestStore(t)
	a, rec := newTestApp(t, func(c *Config) { c.Store = s })
	a.startSession()
	session := a.Session()
	if session == "" {
		t.Fatal("expected a journal session")
	}

	actions := feed(t, a, detector.IndexPinchLandmarks(), 0, 5)
	if actions[3].Kind != gesture.ClickLeft {
		t.Fatalf("frame 3 = %v, want left_click", actions[3])
	}
	if rec.Count(gesture.ClickLeft) != 1 {
		t.Errorf("controller clicks = %d, want 1", rec.Count(gesture.ClickLeft))
	}

	counts, err := s.Actions().CountByKind(session)
	if err != nil {
		t.Fatalf("CountByKind() error = %v", err)
	}
	if len(counts) != 1 || counts["left_click"] != 1 {
		t.Errorf("journal = %v, want one left_click and no moves", counts)
	}

	listed, err := s.Actions().List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(listed) != 1 || listed[0].State != "left_click" || !listed[0].CreatedAt.Equal(frameAt(3)) {
		t.Errorf("journaled = %+v", listed)
	}

	a.endSession()
	sess, err := s.Sessions().GetByID(session)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if sess.EndedAt == nil {
		t.Error("expected session to be ended")
	}
}

func TestApp_PauseResume(t *testing.T) {
	var toggles []bool
	a, rec := newTestApp(t, func(c *Config) {
		c.OnEnabled = func(enabled bool) { toggles = append(toggles, enabled) }
	})
	hand := detector.PointingLandmarks().CenteredAt(0.5, 0.5)

	feed(t, a, hand, 0, 5)
	a.SetEnabled(false)
	a.SetEnabled(false)

	if a.Enabled() {
		t.Fatal("expected paused")
	}
	if a.State() != gesture.Idle {
		t.Errorf("paused state = %v, want idle", a.State())
	}
	for _, act := range feed(t, a, hand, 5, 10) {
		if act.Kind != gesture.None {
			t.Fatalf("paused action = %v, want none", act)
		}
	}
	if rec.Count(gesture.Move) != 5 {
		t.Errorf("moves = %d, want 5", rec.Count(gesture.Move))
	}

	// A fresh context accepts timestamps older than the last frame seen
	// before the pause.
	a.SetEnabled(true)
	if acts := feed(t, a, hand, 2, 3); acts[0].Kind != gesture.Move {
		t.Errorf("first frame after resume = %v, want move", acts[0])
	}

	if len(toggles) != 2 || toggles[0] || !toggles[1] {
		t.Errorf("toggles = %v, want [false true]", toggles)
	}
}

func TestApp_ConcurrentTogglesCloseSessions(t *testing.T) {
	s := newTestStore(t)
	a, _ := newTestApp(t, func(c *Config) { c.Store = s })
	a.mu.Lock()
	a.running = true
	a.mu.Unlock()
	a.startSession()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(enabled bool) {
			defer wg.Done()
			a.SetEnabled(enabled)
		}(i%2 == 0)
	}
	wg.Wait()

	openSessions := func() int {
		t.Helper()
		var n int
		if err := s.DB().QueryRow("SELECT COUNT(*) FROM sessions WHERE ended_at IS NULL").Scan(&n); err != nil {
			t.Fatalf("count open sessions: %v", err)
		}
		return n
	}

	want := 0
	if a.Enabled() {
		want = 1
	}
	if got := openSessions(); got != want {
		t.Errorf("open sessions = %d, want %d (enabled=%v)", got, want, a.Enabled())
	}

	a.SetEnabled(true)
	if got := openSessions(); got != 1 {
		t.Errorf("open sessions while enabled = %d, want 1", got)
	}
	a.SetEnabled(false)
	if got := openSessions(); got != 0 {
		t.Errorf("open sessions after pause = %d, want 0", got)
	}
	if a.Session() != "" {
		t.Errorf("Session() = %q after pause, want empty", a.Session())
	}
}

func TestApp_OutOfOrderFrame(t *testing.T) {
	a, rec := newTestApp(t, nil)
	hand := detector.PointingLandmarks()

	feed(t, a, hand, 0, 3)
	act, err := a.ProcessFrame(detector.Frame{Hand: &hand, Timestamp: frameAt(1)})
	if !errors.Is(err, filter.ErrOutOfOrderSample) {
		t.Fatalf("error = %v, want ErrOutOfOrderSample", err)
	}
	if act.Kind != gesture.None {
		t.Errorf("action = %v, want none", act)
	}
	if a.FramesProcessed() != 3 || len(rec.Actions()) != 3 {
		t.Errorf("frames = %d, applied = %d, want 3", a.FramesProcessed(), len(rec.Actions()))
	}

	feed(t, a, hand, 3, 4)
}

func TestApp_ControllerErrorIsNotFatal(t *testing.T) {
	a, rec := newTestApp(t, nil)
	rec.SetError(errors.New("no display"))

	hand := detector.PointingLandmarks()
	if _, err := a.ProcessFrame(detector.Frame{Hand: &hand, Timestamp: frameAt(0)}); err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if a.State() != gesture.Moving {
		t.Errorf("state = %v, want moving", a.State())
	}
}

func TestApp_HandLoss(t *testing.T) {
	a, _ := newTestApp(t, nil)

	feed(t, a, detector.PointingLandmarks(), 0, 3)
	act, err := a.ProcessFrame(detector.Frame{Timestamp: frameAt(3)})
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if act.Kind != gesture.None || a.State() != gesture.Idle {
		t.Errorf("after hand loss: %v in %v, want none in idle", act, a.State())
	}
}
