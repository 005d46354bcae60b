package mouse

import (
	"fmt"
	"sync"

	"github.com/go-vgo/robotgo"
	"go.uber.org/zap"

	"github.com/ayusman/handmouse/internal/gesture"
	"github.com/ayusman/handmouse/internal/logging"
	"github.com/ayusman/handmouse/internal/mapper"
)

// Robot drives the real pointer through robotgo.
type Robot struct {
	logger *zap.Logger

	mu      sync.Mutex
	wheel   Wheel
	back    Chord
	forward Chord
}

// NewRobot creates a controller for the current desktop session.
func NewRobot(logger *zap.Logger) *Robot {
	back, forward := defaultSwipeChords()
	return &Robot{
		logger:  logging.OrNop(logger).Named("mouse"),
		back:    back,
		forward: forward,
	}
}

// ScreenSize asks the OS for the main display size.
func ScreenSize() (mapper.Screen, error) {
	w, h := robotgo.GetScreenSize()
	s := mapper.Screen{Width: w, Height: h}
	if err := s.Validate(); err != nil {
		return mapper.Screen{}, fmt.Errorf("detect screen size: %w", err)
	}
	return s, nil
}

// Apply performs a on the OS pointer.
func (r *Robot) Apply(a gesture.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch a.Kind {
	case gesture.None:
		return nil
	case gesture.Move:
		robotgo.Move(a.X, a.Y)
	case gesture.ClickLeft:
		robotgo.Click("left")
	case gesture.ClickRight:
		robotgo.Click("right")
	case gesture.Scroll:
		if n := r.wheel.Notches(a.DY); n != 0 {
			// Hand down scrolls the page down, which is a negative wheel delta.
			robotgo.Scroll(0, -n)
		}
	case gesture.SwipeLeft:
		return r.tap(r.back)
	case gesture.SwipeRight:
		return r.tap(r.forward)
	default:
		return fmt.Errorf("unsupported action %s", a.Kind)
	}

	if a.Kind != gesture.Scroll {
		r.wheel.Reset()
	}
	if a.Kind.Discrete() {
		r.logger.Debug("applied", zap.Stringer("action", a))
	}
	return nil
}

func (r *Robot) tap(c Chord) error {
	r.wheel.Reset()
	mods := make([]interface{}, len(c.Modifiers))
	for i, m := range c.Modifiers {
		mods[i] = m
	}
	if err := robotgo.KeyTap(c.Key, mods...); err != nil {
		return fmt.Errorf("key tap %s: %w", c.Key, err)
	}
	r.logger.Debug("applied", zap.String("key", c.Key), zap.Strings("modifiers", c.Modifiers))
	return nil
}
