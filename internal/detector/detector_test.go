package detector

import (
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func TestHandLandmarks_Valid(t *testing.T) {
	t.Run("preset poses are valid", func(t *testing.T) {
		poses := map[string]HandLandmarks{
			"pointing":    PointingLandmarks(),
			"scroll":      ScrollLandmarks(),
			"open palm":   OpenPalmLandmarks(),
			"fist":        FistLandmarks(),
			"index pinch": IndexPinchLandmarks(),
			"pinky pinch": PinkyPinchLandmarks(),
		}
		for name, pose := range poses {
			if !pose.Valid() {
				t.Errorf("%s: expected valid landmarks", name)
			}
		}
	})

	t.Run("nil hand is invalid", func(t *testing.T) {
		var hand *HandLandmarks
		if hand.Valid() {
			t.Error("expected nil hand to be invalid")
		}
	})

	t.Run("NaN coordinate is invalid", func(t *testing.T) {
		hand := PointingLandmarks()
		hand.Points[IndexTip].X = math.NaN()
		if hand.Valid() {
			t.Error("expected NaN landmark to be invalid")
		}
	})

	t.Run("infinite depth is invalid", func(t *testing.T) {
		hand := PointingLandmarks()
		hand.Points[Wrist].Z = math.Inf(-1)
		if hand.Valid() {
			t.Error("expected infinite landmark to be invalid")
		}
	})

	t.Run("far out of frame is invalid", func(t *testing.T) {
		hand := PointingLandmarks()
		hand.Points[PinkyTip].Y = 7
		if hand.Valid() {
			t.Error("expected out-of-range landmark to be invalid")
		}
	})

	t.Run("slightly out of frame is still valid", func(t *testing.T) {
		hand := PointingLandmarks().Translate(0.6, 0)
		if !hand.Valid() {
			t.Error("expected partially visible hand to be valid")
		}
	})

	t.Run("coordinate bounds", func(t *testing.T) {
		tests := []struct {
			name  string
			set   func(p *Point3D)
			valid bool
		}{
			{"x at lower bound", func(p *Point3D) { p.X = -1 }, true},
			{"x below lower bound", func(p *Point3D) { p.X = -1.01 }, false},
			{"y at upper bound", func(p *Point3D) { p.Y = 2 }, true},
			{"x above upper bound", func(p *Point3D) { p.X = 2.5 }, false},
			{"depth inside", func(p *Point3D) { p.Z = 1.5 }, true},
			{"depth at bound", func(p *Point3D) { p.Z = -2 }, true},
			{"depth beyond bound", func(p *Point3D) { p.Z = 2.5 }, false},
		}
		for _, tt := range tests {
			hand := PointingLandmarks()
			tt.set(&hand.Points[ThumbTip])
			if got := hand.Valid(); got != tt.valid {
				t.Errorf("%s: Valid() = %v, want %v", tt.name, got, tt.valid)
			}
		}
	})
}

func TestHandLandmarks_PalmCenter(t *testing.T) {
	hand := PointingLandmarks()
	x, y := hand.PalmCenter()

	// Mean of wrist and the four MCP joints of the preset palm.
	if math.Abs(x-0.482) > epsilon {
		t.Errorf("expected palm x 0.482, got %f", x)
	}
	if math.Abs(y-0.708) > epsilon {
		t.Errorf("expected palm y 0.708, got %f", y)
	}

	// Curling fingers must not move the palm centre.
	fist := FistLandmarks()
	fx, fy := fist.PalmCenter()
	if math.Abs(fx-x) > epsilon || math.Abs(fy-y) > epsilon {
		t.Errorf("palm centre moved between poses: (%f,%f) vs (%f,%f)", x, y, fx, fy)
	}
}

func TestHandLandmarks_CenteredAt(t *testing.T) {
	hand := OpenPalmLandmarks().CenteredAt(0.25, 0.6)
	x, y := hand.PalmCenter()

	if math.Abs(x-0.25) > epsilon || math.Abs(y-0.6) > epsilon {
		t.Errorf("expected palm centre (0.25, 0.6), got (%f, %f)", x, y)
	}

	// Translation keeps the relative geometry.
	orig := OpenPalmLandmarks()
	dx := hand.Points[IndexTip].X - hand.Points[Wrist].X
	odx := orig.Points[IndexTip].X - orig.Points[Wrist].X
	if math.Abs(dx-odx) > epsilon {
		t.Errorf("translation changed hand shape: %f vs %f", dx, odx)
	}
}

func TestPrimary(t *testing.T) {
	t.Run("no hands", func(t *testing.T) {
		if Primary(nil) != nil {
			t.Error("expected nil for no hands")
		}
	})

	t.Run("highest score wins", func(t *testing.T) {
		low := PointingLandmarks()
		low.Score = 0.6
		high := OpenPalmLandmarks()
		high.Score = 0.9

		got := Primary([]HandLandmarks{low, high})
		if got == nil || got.Score != 0.9 {
			t.Fatalf("expected the 0.9 hand, got %+v", got)
		}
	})
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands([]HandLandmarks{PointingLandmarks()})

		for i := 0; i < 3; i++ {
			hands, err := mock.Detect(nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(hands) != 1 {
				t.Fatalf("call %d: expected 1 hand, got %d", i, len(hands))
			}
		}
		if mock.Calls() != 3 {
			t.Errorf("expected 3 calls, got %d", mock.Calls())
		}
	})

	t.Run("plays back a sequence then reports no hand", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetSequence([][]HandLandmarks{
			{PointingLandmarks()},
			nil,
			{OpenPalmLandmarks()},
		})

		wantLens := []int{1, 0, 1, 0, 0}
		for i, want := range wantLens {
			hands, err := mock.Detect(nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(hands) != want {
				t.Errorf("call %d: expected %d hands, got %d", i, want, len(hands))
			}
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestDecodeResponse(t *testing.T) {
	t.Run("decodes complete hands", func(t *testing.T) {
		points := `[` + repeatPoint(NumLandmarks) + `]`
		line := []byte(`{"hands":[{"points":` + points + `,"handedness":"Left","score":0.8}]}` + "\n")

		hands, err := decodeResponse(line)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hands) != 1 {
			t.Fatalf("expected 1 hand, got %d", len(hands))
		}
		if hands[0].Handedness != "Left" || hands[0].Score != 0.8 {
			t.Errorf("unexpected hand metadata: %+v", hands[0])
		}
		if hands[0].Points[PinkyTip].X != 0.5 {
			t.Errorf("expected last point to be decoded, got %+v", hands[0].Points[PinkyTip])
		}
	})

	t.Run("drops truncated hands", func(t *testing.T) {
		points := `[` + repeatPoint(5) + `]`
		line := []byte(`{"hands":[{"points":` + points + `}]}`)

		hands, err := decodeResponse(line)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hands) != 0 {
			t.Errorf("expected truncated hand to be dropped, got %d", len(hands))
		}
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		if _, err := decodeResponse([]byte(`{"hands":`)); err == nil {
			t.Error("expected parse error")
		}
	})
}

func repeatPoint(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += `{"x":0.5,"y":0.5,"z":0}`
	}
	return s
}
