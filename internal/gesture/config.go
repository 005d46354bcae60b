package gesture

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/handmouse/internal/filter"
	"github.com/ayusman/handmouse/internal/mapper"
)

// Config holds every threshold of the state machine.
type Config struct {
	// PinchTrigger is the tip distance below which a pinch starts.
	PinchTrigger float64
	// PinchRelease is the tip distance above which a pinch ends. It must be
	// larger than PinchTrigger.
	PinchRelease float64
	// ClickDebounce is how long a pinch must be held before it clicks.
	ClickDebounce time.Duration

	LeftClickCooldown  time.Duration
	RightClickCooldown time.Duration
	SwipeCooldown      time.Duration

	// ScrollSensitivity scales the vertical palm movement per frame into a
	// scroll amount.
	ScrollSensitivity float64
	// SwipeVelocity is the horizontal palm speed, in frame widths per second,
	// an open hand must exceed to count towards a swipe.
	SwipeVelocity float64
	// SwipeFrames is how many consecutive frames must exceed SwipeVelocity.
	SwipeFrames int

	Filter filter.Config
	Region mapper.Region
}

// DefaultConfig returns thresholds tuned for MediaPipe landmarks at 30 fps.
func DefaultConfig() Config {
	return Config{
		PinchTrigger:       0.045,
		PinchRelease:       0.06,
		ClickDebounce:      100 * time.Millisecond,
		LeftClickCooldown:  300 * time.Millisecond,
		RightClickCooldown: 300 * time.Millisecond,
		SwipeCooldown:      500 * time.Millisecond,
		ScrollSensitivity:  40,
		SwipeVelocity:      1.2,
		SwipeFrames:        3,
		Filter:             filter.DefaultConfig(),
		Region:             mapper.DefaultRegion(),
	}
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var errs []error
	if !(c.PinchTrigger > 0) {
		errs = append(errs, fmt.Errorf("pinch trigger must be > 0, got %g", c.PinchTrigger))
	}
	if !(c.PinchRelease > c.PinchTrigger) {
		errs = append(errs, fmt.Errorf("pinch release (%g) must be greater than pinch trigger (%g)", c.PinchRelease, c.PinchTrigger))
	}
	if c.ClickDebounce < 0 {
		errs = append(errs, fmt.Errorf("click debounce must not be negative, got %s", c.ClickDebounce))
	}
	cooldowns := []struct {
		name string
		d    time.Duration
	}{
		{"left click cooldown", c.LeftClickCooldown},
		{"right click cooldown", c.RightClickCooldown},
		{"swipe cooldown", c.SwipeCooldown},
	}
	for _, cd := range cooldowns {
		if cd.d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %s", cd.name, cd.d))
		}
	}
	if !(c.ScrollSensitivity > 0) {
		errs = append(errs, fmt.Errorf("scroll sensitivity must be > 0, got %g", c.ScrollSensitivity))
	}
	if !(c.SwipeVelocity > 0) {
		errs = append(errs, fmt.Errorf("swipe velocity must be > 0, got %g", c.SwipeVelocity))
	}
	if c.SwipeFrames < 1 {
		errs = append(errs, fmt.Errorf("swipe frames must be >= 1, got %d", c.SwipeFrames))
	}
	if err := c.Filter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("filter: %w", err))
	}
	if err := c.Region.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("region: %w", err))
	}
	return errors.Join(errs...)
}

func (c Config) cooldown(k ActionKind) time.Duration {
	switch k {
	case ClickLeft:
		return c.LeftClickCooldown
	case ClickRight:
		return c.RightClickCooldown
	case SwipeLeft, SwipeRight:
		return c.SwipeCooldown
	}
	return 0
}
