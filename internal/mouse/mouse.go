// Package mouse applies gesture actions to the operating system pointer.
package mouse

import (
	"math"
	"runtime"
	"sync"

	"github.com/ayusman/handmouse/internal/gesture"
)

// Controller performs one action. None must be a no-op. Implementations apply
// actions immediately and never queue them.
type Controller interface {
	Apply(a gesture.Action) error
}

// Chord is a key combination.
type Chord struct {
	Key       string
	Modifiers []string
}

// SwipeChords returns the browser back/forward shortcuts for goos.
func SwipeChords(goos string) (back, forward Chord) {
	if goos == "darwin" {
		return Chord{Key: "[", Modifiers: []string{"cmd"}}, Chord{Key: "]", Modifiers: []string{"cmd"}}
	}
	return Chord{Key: "left", Modifiers: []string{"alt"}}, Chord{Key: "right", Modifiers: []string{"alt"}}
}

func defaultSwipeChords() (Chord, Chord) {
	return SwipeChords(runtime.GOOS)
}

// Wheel turns fractional scroll amounts into whole wheel notches, carrying
// the remainder so slow scrolling still moves the page.
type Wheel struct {
	residual float64
}

// Notches adds dy and returns the whole notches to emit.
func (w *Wheel) Notches(dy float64) int {
	if math.IsNaN(dy) || math.IsInf(dy, 0) {
		return 0
	}
	w.residual += dy
	n := math.Trunc(w.residual)
	w.residual -= n
	return int(n)
}

// Reset drops any carried remainder.
func (w *Wheel) Reset() {
	w.residual = 0
}

// Recorder is a Controller that remembers what it was asked to do.
type Recorder struct {
	mu      sync.Mutex
	actions []gesture.Action
	err     error
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Apply records a; None is ignored.
func (r *Recorder) Apply(a gesture.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if a.Kind != gesture.None {
		r.actions = append(r.actions, a)
	}
	return nil
}

// SetError makes every later Apply fail with err.
func (r *Recorder) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Actions returns a copy of the recorded actions.
func (r *Recorder) Actions() []gesture.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gesture.Action(nil), r.actions...)
}

// Count returns how many actions of kind were recorded.
func (r *Recorder) Count(kind gesture.ActionKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}
