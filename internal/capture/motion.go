package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	// blurSize is the Gaussian kernel applied before differencing.
	blurSize = 21
	// diffThreshold is the per-pixel intensity change that counts as motion.
	diffThreshold = 25
)

// MotionDetector reports how much of the frame changed since the previous
// call, using grayscale frame differencing over a blurred image.
type MotionDetector struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionDetector creates a detector. threshold is the percentage of pixels
// that must change for Detect to report motion; 1.0 means 1%.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one and returns whether it moved
// and the percentage of changed pixels. The first frame only sets the
// baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: blurSize, Y: blurSize}, 0, 0, gocv.BorderDefault)

	if !m.initialized || blurred.Rows() != m.prevGray.Rows() || blurred.Cols() != m.prevGray.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, diffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	blurred.CopyTo(&m.prevGray)
	return changed > m.threshold, changed
}

// Reset drops the baseline; the next frame starts a new comparison.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = false
}

// Close releases resources used by the motion detector.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prevGray.Close()
	m.prevGray = gocv.NewMat()
	m.initialized = false
}

// IdleGate decides the capture rate. While a hand is tracked or the scene is
// moving the camera runs at the active rate; after IdleAfter without either
// it drops to the idle rate to save CPU.
type IdleGate struct {
	ActiveFPS int
	IdleFPS   int
	IdleAfter time.Duration

	lastActivity time.Time
}

// Observe records one frame's observation and returns the rate to capture at.
func (g *IdleGate) Observe(now time.Time, handSeen, motion bool) int {
	if handSeen || motion || g.lastActivity.IsZero() {
		g.lastActivity = now
	}
	if g.Idle(now) {
		return g.IdleFPS
	}
	return g.ActiveFPS
}

// Idle reports whether the gate has been quiet for IdleAfter.
func (g *IdleGate) Idle(now time.Time) bool {
	return !g.lastActivity.IsZero() && now.Sub(g.lastActivity) >= g.IdleAfter
}
