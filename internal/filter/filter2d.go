package filter

import (
	"fmt"
	"time"
)

// Filter2D smooths a 2D position with two independent One Euro filters.
type Filter2D struct {
	x, y *OneEuro
}

// New2D creates a 2D filter; both axes share the same parameters.
func New2D(cfg Config) *Filter2D {
	return &Filter2D{x: New(cfg), y: New(cfg)}
}

// Filter smooths one (x, y) sample. The timestamp is checked before either
// axis is updated, so an out-of-order sample leaves both axes untouched.
func (f *Filter2D) Filter(x, y float64, ts time.Time) (float64, float64, error) {
	if f.x.initialized {
		if _, prev := f.x.Last(); !ts.After(prev) {
			lx, _ := f.x.Last()
			ly, _ := f.y.Last()
			return lx, ly, fmt.Errorf("%w: %s is not after %s",
				ErrOutOfOrderSample, ts.Format(time.RFC3339Nano), prev.Format(time.RFC3339Nano))
		}
	}

	fx, err := f.x.Filter(x, ts)
	if err != nil {
		return 0, 0, err
	}
	fy, err := f.y.Filter(y, ts)
	if err != nil {
		return 0, 0, err
	}
	return fx, fy, nil
}

// Reset clears both axes, signalling a gap in tracking.
func (f *Filter2D) Reset() {
	f.x.Reset()
	f.y.Reset()
}

// Initialized reports whether the filter has a previous sample.
func (f *Filter2D) Initialized() bool {
	return f.x.initialized
}

// Last returns the most recent filtered position.
func (f *Filter2D) Last() (float64, float64) {
	x, _ := f.x.Last()
	y, _ := f.y.Last()
	return x, y
}
