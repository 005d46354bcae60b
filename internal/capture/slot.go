package capture

import (
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Captured is one camera frame stamped with its capture time.
type Captured struct {
	Mat       *gocv.Mat
	Timestamp time.Time
}

// Close releases the frame's image.
func (c Captured) Close() {
	if c.Mat != nil {
		c.Mat.Close()
	}
}

// FrameSlot is a single-slot handoff between the capture goroutine and the
// processing loop. Put overwrites an unconsumed frame, closing it; consumers
// never block.
type FrameSlot struct {
	mu      sync.Mutex
	frame   Captured
	full    bool
	closed  bool
	dropped uint64
	ready   chan struct{}
}

// NewFrameSlot returns an empty slot.
func NewFrameSlot() *FrameSlot {
	return &FrameSlot{ready: make(chan struct{}, 1)}
}

// Put stores f as the latest frame. A frame that was never taken is dropped.
// After Close, Put releases f immediately.
func (s *FrameSlot) Put(f Captured) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		f.Close()
		return
	}
	if s.full {
		s.frame.Close()
		s.dropped++
	}
	s.frame = f
	s.full = true
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// TryTake removes and returns the latest frame, if any. The caller owns the
// returned frame and must Close it.
func (s *FrameSlot) TryTake() (Captured, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.full {
		return Captured{}, false
	}
	f := s.frame
	s.frame = Captured{}
	s.full = false
	return f, true
}

// Ready is signalled after a Put. A signal may be stale; always follow it
// with TryTake.
func (s *FrameSlot) Ready() <-chan struct{} {
	return s.ready
}

// Dropped returns how many frames were overwritten before being taken.
func (s *FrameSlot) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close releases any pending frame and makes later Puts discard their frame.
func (s *FrameSlot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.full {
		s.frame.Close()
		s.frame = Captured{}
		s.full = false
	}
	s.closed = true
}
