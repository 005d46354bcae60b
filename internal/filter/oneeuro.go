// Package filter implements the One Euro adaptive low-pass filter used to
// remove landmark jitter from the pointer position.
//
// At rest the filter smooths heavily (cutoff near MinCutoff); as the signal
// speeds up the cutoff rises with Beta times the smoothed speed, trading
// smoothness for low lag. See Casiez et al., "1€ Filter", CHI 2012.
package filter

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrOutOfOrderSample is returned when a sample's timestamp is not strictly
// after the previous one. The filter state is left untouched.
var ErrOutOfOrderSample = errors.New("out-of-order sample")

// Config holds the One Euro filter parameters.
type Config struct {
	// MinCutoff is the cutoff frequency in Hz at zero speed.
	MinCutoff float64
	// Beta scales how fast the cutoff grows with speed (Hz per unit/s).
	Beta float64
	// DerivCutoff is the cutoff frequency in Hz used to smooth the derivative.
	DerivCutoff float64
}

// DefaultConfig returns parameters tuned for normalized image coordinates at
// 30 fps.
func DefaultConfig() Config {
	return Config{
		MinCutoff:   1.0,
		Beta:        10.0,
		DerivCutoff: 1.0,
	}
}

// Validate checks that the parameters describe a usable filter.
func (c Config) Validate() error {
	if !(c.MinCutoff > 0) {
		return fmt.Errorf("min cutoff must be > 0, got %g", c.MinCutoff)
	}
	if !(c.DerivCutoff > 0) {
		return fmt.Errorf("derivative cutoff must be > 0, got %g", c.DerivCutoff)
	}
	if !(c.Beta >= 0) {
		return fmt.Errorf("beta must be >= 0, got %g", c.Beta)
	}
	return nil
}

// OneEuro filters a single scalar signal. The zero value is not usable; create
// one with New.
type OneEuro struct {
	cfg Config

	initialized bool
	prevValue   float64
	prevDeriv   float64
	prevTime    time.Time
}

// New creates a filter with the given parameters.
func New(cfg Config) *OneEuro {
	return &OneEuro{cfg: cfg}
}

// Filter feeds one sample and returns the smoothed value. The first sample
// after creation or Reset is returned unchanged.
func (f *OneEuro) Filter(raw float64, ts time.Time) (float64, error) {
	if !f.initialized {
		f.initialized = true
		f.prevValue = raw
		f.prevDeriv = 0
		f.prevTime = ts
		return raw, nil
	}

	if !ts.After(f.prevTime) {
		return f.prevValue, fmt.Errorf("%w: %s is not after %s",
			ErrOutOfOrderSample, ts.Format(time.RFC3339Nano), f.prevTime.Format(time.RFC3339Nano))
	}

	te := ts.Sub(f.prevTime).Seconds()

	deriv := (raw - f.prevValue) / te
	derivHat := smooth(alpha(f.cfg.DerivCutoff, te), deriv, f.prevDeriv)

	cutoff := f.cfg.MinCutoff + f.cfg.Beta*math.Abs(derivHat)
	value := smooth(alpha(cutoff, te), raw, f.prevValue)

	f.prevValue = value
	f.prevDeriv = derivHat
	f.prevTime = ts
	return value, nil
}

// Reset clears the filter state. The next sample passes through unchanged.
func (f *OneEuro) Reset() {
	f.initialized = false
	f.prevValue = 0
	f.prevDeriv = 0
	f.prevTime = time.Time{}
}

// Initialized reports whether the filter has seen a sample since the last reset.
func (f *OneEuro) Initialized() bool {
	return f.initialized
}

// Last returns the most recent filtered value and its timestamp.
func (f *OneEuro) Last() (float64, time.Time) {
	return f.prevValue, f.prevTime
}

// alpha converts a cutoff frequency into an exponential smoothing factor for
// a sampling period of te seconds.
func alpha(cutoff, te float64) float64 {
	tau := 1.0 / (2 * math.Pi * cutoff)
	return 1.0 / (1.0 + tau/te)
}

func smooth(a, x, prev float64) float64 {
	return a*x + (1-a)*prev
}
