// Package mapper converts a normalized hand position into absolute screen pixels.
package mapper

import (
	"fmt"
	"math"

	"github.com/ayusman/handmouse/internal/features"
)

// Region is the reachable pointing area in normalized camera coordinates.
type Region struct {
	Left, Top, Right, Bottom float64
}

// RegionFromMargins builds a region that trims mx from the left and right
// edges and my from the top and bottom edges of the frame.
func RegionFromMargins(mx, my float64) Region {
	return Region{Left: mx, Top: my, Right: 1 - mx, Bottom: 1 - my}
}

// DefaultRegion keeps a 10% margin on every side so the hand never has to
// reach the frame edge, where tracking degrades.
func DefaultRegion() Region {
	return RegionFromMargins(0.1, 0.1)
}

// Validate checks that the region has positive area inside the frame.
func (r Region) Validate() error {
	for _, v := range []float64{r.Left, r.Top, r.Right, r.Bottom} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("region %+v must lie within [0, 1]", r)
		}
	}
	if r.Right <= r.Left || r.Bottom <= r.Top {
		return fmt.Errorf("region %+v has no area", r)
	}
	return nil
}

// Screen is the target display size in pixels.
type Screen struct {
	Width, Height int
}

// Validate checks that the screen has a usable size.
func (s Screen) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("screen size %dx%d must be positive", s.Width, s.Height)
	}
	return nil
}

// Center returns the pixel at the middle of the screen.
func (s Screen) Center() Pixel {
	return Pixel{X: s.Width / 2, Y: s.Height / 2}
}

// Pixel is an absolute screen coordinate.
type Pixel struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Map clamps p to the region and interpolates it linearly onto the screen.
// The result is always inside [0, Width-1] x [0, Height-1].
func Map(p features.Point2D, region Region, screen Screen) Pixel {
	nx := normalize(p.X, region.Left, region.Right)
	ny := normalize(p.Y, region.Top, region.Bottom)
	return Pixel{
		X: toPixel(nx, screen.Width),
		Y: toPixel(ny, screen.Height),
	}
}

// normalize maps v from [lo, hi] onto [0, 1], clamping outside values.
// NaN maps to 0.
func normalize(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v <= lo || hi <= lo {
		return 0
	}
	if v >= hi {
		return 1
	}
	return (v - lo) / (hi - lo)
}

func toPixel(n float64, size int) int {
	if size <= 0 {
		return 0
	}
	px := int(math.Round(n * float64(size)))
	if px < 0 {
		return 0
	}
	if px > size-1 {
		return size - 1
	}
	return px
}
