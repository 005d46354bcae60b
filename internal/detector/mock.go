package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It either returns a fixed result or plays back a scripted sequence, one
// entry per Detect call.
type MockDetector struct {
	mu       sync.Mutex
	hands    []HandLandmarks
	sequence [][]HandLandmarks
	calls    int
	err      error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by every Detect call.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
	m.sequence = nil
}

// SetSequence scripts the results of successive Detect calls. Once the
// sequence is exhausted Detect reports no hands.
func (m *MockDetector) SetSequence(seq [][]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = seq
	m.calls = 0
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.sequence != nil {
		i := m.calls - 1
		if i >= len(m.sequence) {
			return nil, nil
		}
		return m.sequence[i], nil
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Preset poses share the same palm so the palm centre is identical across
// them; only the fingers change. Y grows downward, as in image space.

var (
	presetWrist = Point3D{X: 0.50, Y: 0.80}

	thumbBase = [3]Point3D{
		{X: 0.55, Y: 0.75}, // CMC
		{X: 0.58, Y: 0.70}, // MCP
		{X: 0.60, Y: 0.66}, // IP
	}
	thumbTucked   = Point3D{X: 0.56, Y: 0.68}
	thumbExtended = Point3D{X: 0.68, Y: 0.58}

	// MCP, PIP, DIP, tip for each finger.
	indexUp   = [4]Point3D{{X: 0.55, Y: 0.68}, {X: 0.56, Y: 0.58}, {X: 0.565, Y: 0.50}, {X: 0.57, Y: 0.43}}
	indexDown = [4]Point3D{{X: 0.55, Y: 0.68}, {X: 0.56, Y: 0.62}, {X: 0.55, Y: 0.67}, {X: 0.53, Y: 0.70}}

	middleUp   = [4]Point3D{{X: 0.50, Y: 0.67}, {X: 0.50, Y: 0.56}, {X: 0.50, Y: 0.48}, {X: 0.50, Y: 0.41}}
	middleDown = [4]Point3D{{X: 0.50, Y: 0.67}, {X: 0.50, Y: 0.61}, {X: 0.49, Y: 0.66}, {X: 0.48, Y: 0.70}}

	ringUp   = [4]Point3D{{X: 0.45, Y: 0.68}, {X: 0.44, Y: 0.58}, {X: 0.435, Y: 0.50}, {X: 0.43, Y: 0.44}}
	ringDown = [4]Point3D{{X: 0.45, Y: 0.68}, {X: 0.45, Y: 0.62}, {X: 0.46, Y: 0.67}, {X: 0.47, Y: 0.70}}

	pinkyUp   = [4]Point3D{{X: 0.41, Y: 0.71}, {X: 0.39, Y: 0.63}, {X: 0.38, Y: 0.57}, {X: 0.37, Y: 0.52}}
	pinkyDown = [4]Point3D{{X: 0.41, Y: 0.71}, {X: 0.41, Y: 0.66}, {X: 0.42, Y: 0.70}, {X: 0.43, Y: 0.72}}
)

func buildHand(thumbTip Point3D, index, middle, ring, pinky [4]Point3D) HandLandmarks {
	h := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}
	h.Points[Wrist] = presetWrist
	h.Points[ThumbCMC] = thumbBase[0]
	h.Points[ThumbMCP] = thumbBase[1]
	h.Points[ThumbIP] = thumbBase[2]
	h.Points[ThumbTip] = thumbTip
	copy(h.Points[IndexMCP:IndexTip+1], index[:])
	copy(h.Points[MiddleMCP:MiddleTip+1], middle[:])
	copy(h.Points[RingMCP:RingTip+1], ring[:])
	copy(h.Points[PinkyMCP:PinkyTip+1], pinky[:])
	return h
}

// PointingLandmarks returns a hand with only the index finger extended and
// the thumb tucked against the palm.
func PointingLandmarks() HandLandmarks {
	return buildHand(thumbTucked, indexUp, middleDown, ringDown, pinkyDown)
}

// ScrollLandmarks returns a hand with index and middle fingers extended.
func ScrollLandmarks() HandLandmarks {
	return buildHand(thumbTucked, indexUp, middleUp, ringDown, pinkyDown)
}

// OpenPalmLandmarks returns a preset HandLandmarks representing an open palm.
// All five fingers are extended.
func OpenPalmLandmarks() HandLandmarks {
	return buildHand(thumbExtended, indexUp, middleUp, ringUp, pinkyUp)
}

// FistLandmarks returns a hand with every finger curled.
func FistLandmarks() HandLandmarks {
	return buildHand(thumbTucked, indexDown, middleDown, ringDown, pinkyDown)
}

// IndexPinchLandmarks returns the pointing pose with the thumb tip touching
// the index fingertip.
func IndexPinchLandmarks() HandLandmarks {
	tip := indexUp[3]
	return buildHand(Point3D{X: tip.X + 0.01, Y: tip.Y + 0.005}, indexUp, middleDown, ringDown, pinkyDown)
}

// PinkyPinchLandmarks returns the pointing pose with the thumb tip touching
// the curled pinky tip.
func PinkyPinchLandmarks() HandLandmarks {
	tip := pinkyDown[3]
	return buildHand(Point3D{X: tip.X + 0.01, Y: tip.Y}, indexUp, middleDown, ringDown, pinkyDown)
}
