// Package features turns one frame of hand landmarks into the compact feature
// set the gesture state machine decides on.
package features

import (
	"fmt"
	"time"

	"github.com/golang/geo/r3"

	"github.com/ayusman/handmouse/internal/detector"
)

// Finger identifies one digit in a Fingers array.
type Finger int

const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Pinky
	numFingers
)

var fingerNames = [numFingers]string{"thumb", "index", "middle", "ring", "pinky"}

func (f Finger) String() string {
	if f < 0 || f >= numFingers {
		return fmt.Sprintf("Finger(%d)", int(f))
	}
	return fingerNames[f]
}

// Fingers holds the extended (true) or curled (false) state of every finger.
type Fingers [numFingers]bool

// Only reports whether exactly the given fingers are extended among index,
// middle, ring and pinky. The thumb is ignored because it is busy pinching.
func (f Fingers) Only(extended ...Finger) bool {
	want := Fingers{}
	for _, e := range extended {
		want[e] = true
	}
	for i := Index; i < numFingers; i++ {
		if f[i] != want[i] {
			return false
		}
	}
	return true
}

// All reports whether all five fingers are extended.
func (f Fingers) All() bool {
	for _, ext := range f {
		if !ext {
			return false
		}
	}
	return true
}

// Point2D is a position in normalized image coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FeatureSet is an immutable per-frame snapshot derived from one landmark set.
type FeatureSet struct {
	Fingers    Fingers
	ThumbIndex float64 // thumb tip to index tip
	ThumbPinky float64 // thumb tip to pinky tip
	Centroid   Point2D // palm centre
	Timestamp  time.Time
}

// Config holds the finger extension thresholds. A finger's extension ratio is
// its tip-to-base distance over its middle-joint-to-base distance.
type Config struct {
	// ExtendRatio is the ratio at or above which a finger becomes extended.
	ExtendRatio float64
	// CurlRatio is the ratio at or below which a finger becomes curled.
	CurlRatio float64
}

// DefaultConfig returns the thresholds tuned for MediaPipe landmarks.
func DefaultConfig() Config {
	return Config{
		ExtendRatio: 1.2,
		CurlRatio:   1.0,
	}
}

// Validate checks that the thresholds leave a hysteresis band.
func (c Config) Validate() error {
	if c.CurlRatio <= 0 {
		return fmt.Errorf("curl ratio must be > 0, got %g", c.CurlRatio)
	}
	if c.ExtendRatio <= c.CurlRatio {
		return fmt.Errorf("extend ratio (%g) must be greater than curl ratio (%g)", c.ExtendRatio, c.CurlRatio)
	}
	return nil
}

// joints lists tip, middle joint and base landmark per finger.
var joints = [numFingers][3]int{
	Thumb:  {detector.ThumbTip, detector.ThumbIP, detector.ThumbMCP},
	Index:  {detector.IndexTip, detector.IndexPIP, detector.Wrist},
	Middle: {detector.MiddleTip, detector.MiddlePIP, detector.Wrist},
	Ring:   {detector.RingTip, detector.RingPIP, detector.Wrist},
	Pinky:  {detector.PinkyTip, detector.PinkyPIP, detector.Wrist},
}

// Extract computes the feature set of one frame. prev is the finger state of
// the previous frame and decides fingers whose ratio falls in the hysteresis
// band. ok is false when there is no hand or the landmarks are malformed.
func (c Config) Extract(hand *detector.HandLandmarks, ts time.Time, prev Fingers) (fs FeatureSet, ok bool) {
	if hand == nil || !hand.Valid() {
		return FeatureSet{}, false
	}

	var fingers Fingers
	for f := Thumb; f < numFingers; f++ {
		j := joints[f]
		ref := distance(hand.Points[j[1]], hand.Points[j[2]])
		if ref <= 0 {
			fingers[f] = prev[f]
			continue
		}
		ratio := distance(hand.Points[j[0]], hand.Points[j[2]]) / ref
		switch {
		case ratio >= c.ExtendRatio:
			fingers[f] = true
		case ratio <= c.CurlRatio:
			fingers[f] = false
		default:
			fingers[f] = prev[f]
		}
	}

	cx, cy := hand.PalmCenter()

	return FeatureSet{
		Fingers:    fingers,
		ThumbIndex: distance(hand.Points[detector.ThumbTip], hand.Points[detector.IndexTip]),
		ThumbPinky: distance(hand.Points[detector.ThumbTip], hand.Points[detector.PinkyTip]),
		Centroid:   Point2D{X: cx, Y: cy},
		Timestamp:  ts,
	}, true
}

func distance(a, b detector.Point3D) float64 {
	return vec(a).Distance(vec(b))
}

func vec(p detector.Point3D) r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}
