// Package detector provides hand tracking interfaces and landmark types for pointer control.
package detector

import (
	"math"
	"time"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Bounds for a plausible landmark coordinate. MediaPipe reports points of a
// partially visible hand slightly outside [0, 1]; anything further out is
// tracker noise.
const (
	minPlanar = -1.0
	maxPlanar = 2.0
	maxDepth  = 2.0
)

// palmJoints are the landmarks averaged into the palm centre. They barely move
// when fingers curl or pinch, which keeps the pointer steady during clicks.
var palmJoints = [...]int{Wrist, IndexMCP, MiddleMCP, RingMCP, PinkyMCP}

// Point3D represents a 3D point in normalized image space.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Frame is one tracker observation. A nil Hand means no hand was detected,
// which is an ordinary outcome rather than an error.
type Frame struct {
	Hand      *HandLandmarks
	Timestamp time.Time
}

// Valid reports whether every landmark is finite and inside the plausible
// coordinate range.
func (h *HandLandmarks) Valid() bool {
	if h == nil {
		return false
	}
	for _, p := range h.Points {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return false
		}
		if p.X < minPlanar || p.X > maxPlanar || p.Y < minPlanar || p.Y > maxPlanar {
			return false
		}
		if math.Abs(p.Z) > maxDepth {
			return false
		}
	}
	return true
}

// PalmCenter returns the 2D mean of the wrist and the four finger MCP joints.
func (h *HandLandmarks) PalmCenter() (x, y float64) {
	for _, idx := range palmJoints {
		x += h.Points[idx].X
		y += h.Points[idx].Y
	}
	n := float64(len(palmJoints))
	return x / n, y / n
}

// Translate returns a copy of the hand shifted by (dx, dy) in the image plane.
func (h HandLandmarks) Translate(dx, dy float64) HandLandmarks {
	for i := range h.Points {
		h.Points[i].X += dx
		h.Points[i].Y += dy
	}
	return h
}

// CenteredAt returns a copy of the hand translated so its palm centre sits at (x, y).
func (h HandLandmarks) CenteredAt(x, y float64) HandLandmarks {
	cx, cy := h.PalmCenter()
	return h.Translate(x-cx, y-cy)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
