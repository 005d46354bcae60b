package gesture

import (
	"fmt"
	"math"
	"time"

	"github.com/ayusman/handmouse/internal/detector"
	"github.com/ayusman/handmouse/internal/features"
	"github.com/ayusman/handmouse/internal/filter"
	"github.com/ayusman/handmouse/internal/mapper"
)

// Machine decides one Action per frame. It is immutable after construction
// and may be shared; all mutable memory lives in a Context.
//
// Candidate transitions are evaluated in a fixed priority order:
//
//	Swiping                   -> Idle (one frame after firing)
//	LeftClick / RightClick    -> Moving once the pinch is released
//	Moving + debounced pinch  -> LeftClick, then RightClick
//	index + middle extended   -> Scrolling
//	open hand, sustained |vx| -> Swiping
//	Scrolling, pattern lost   -> Moving or Idle
//	index extended            -> Moving
//	anything else             -> Idle
type Machine struct {
	cfg      Config
	features features.Config
	screen   mapper.Screen

	// OnTransition, if set, is called after every state change.
	OnTransition func(from, to State)
}

// NewMachine validates the configuration and creates a machine that maps
// pointer positions onto screen.
func NewMachine(cfg Config, feat features.Config, screen mapper.Screen) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("gesture config: %w", err)
	}
	if err := feat.Validate(); err != nil {
		return nil, fmt.Errorf("features config: %w", err)
	}
	if err := screen.Validate(); err != nil {
		return nil, err
	}
	return &Machine{cfg: cfg, features: feat, screen: screen}, nil
}

// Config returns the machine's thresholds.
func (m *Machine) Config() Config {
	return m.cfg
}

// Screen returns the screen the machine maps onto.
func (m *Machine) Screen() mapper.Screen {
	return m.screen
}

// NewContext returns a fresh context in the Idle state.
func (m *Machine) NewContext() *Context {
	return &Context{
		pos:   filter.New2D(m.cfg.Filter),
		swipe: swipeTracker{armed: true},
		fired: make(map[ActionKind]time.Time),
	}
}

// Process extracts the features of one tracker frame, using the context's
// finger state for hysteresis, and steps the machine.
func (m *Machine) Process(ctx *Context, frame detector.Frame) (Action, error) {
	fs, ok := m.features.Extract(frame.Hand, frame.Timestamp, ctx.fingers)
	if !ok {
		return m.Step(ctx, nil)
	}
	act, err := m.Step(ctx, &fs)
	if err != nil {
		return act, err
	}
	ctx.fingers = fs.Fingers
	return act, nil
}

// Step advances the machine by one frame. A nil or malformed feature set means
// the hand was lost: the context returns to Idle and its filter restarts.
//
// A timestamp that is not after the previous frame's returns an error
// wrapping filter.ErrOutOfOrderSample and leaves the context untouched.
func (m *Machine) Step(ctx *Context, fs *features.FeatureSet) (Action, error) {
	if fs == nil || !finite(fs.Centroid.X, fs.Centroid.Y, fs.ThumbIndex, fs.ThumbPinky) {
		m.lose(ctx)
		return NoAction, nil
	}

	ts := fs.Timestamp
	if ctx.hasLast && !ts.After(ctx.lastTS) {
		return NoAction, fmt.Errorf("step at %s after %s: %w",
			ts.Format(time.RFC3339Nano), ctx.lastTS.Format(time.RFC3339Nano), filter.ErrOutOfOrderSample)
	}

	fx, fy, err := ctx.pos.Filter(fs.Centroid.X, fs.Centroid.Y, ts)
	if err != nil {
		return NoAction, fmt.Errorf("filter palm position: %w", err)
	}

	var vx, dy float64
	if ctx.hasLast {
		vx = (fs.Centroid.X - ctx.lastRawX) / ts.Sub(ctx.lastTS).Seconds()
		dy = (fy - ctx.lastY) * m.cfg.ScrollSensitivity
	}
	ctx.swipe.update(ctx.hasLast && fs.Fingers.All() && math.Abs(vx) > m.cfg.SwipeVelocity, sign(vx))
	if holdsPinch(ctx.state, fs.Fingers) {
		ctx.left.update(fs.ThumbIndex, m.cfg.PinchTrigger, m.cfg.PinchRelease, ts)
		ctx.right.update(fs.ThumbPinky, m.cfg.PinchTrigger, m.cfg.PinchRelease, ts)
	} else {
		ctx.left, ctx.right = pinch{}, pinch{}
	}

	next, act := m.transition(ctx, fs, features.Point2D{X: fx, Y: fy}, dy)

	ctx.hasLast = true
	ctx.lastTS = ts
	ctx.lastRawX = fs.Centroid.X
	ctx.lastY = fy
	m.setState(ctx, next)
	return act, nil
}

func (m *Machine) transition(ctx *Context, fs *features.FeatureSet, pos features.Point2D, dy float64) (State, Action) {
	ts := fs.Timestamp
	pointing := fs.Fingers.Only(features.Index)

	switch ctx.state {
	case Swiping:
		return Idle, NoAction
	case LeftClick:
		if ctx.left.held {
			return LeftClick, NoAction
		}
		return Moving, NoAction
	case RightClick:
		if ctx.right.held {
			return RightClick, NoAction
		}
		return Moving, NoAction
	case Moving:
		if m.tryClick(ctx, &ctx.left, ClickLeft, ts) {
			return LeftClick, Action{Kind: ClickLeft}
		}
		if m.tryClick(ctx, &ctx.right, ClickRight, ts) {
			return RightClick, Action{Kind: ClickRight}
		}
	}

	if fs.Fingers.Only(features.Index, features.Middle) {
		return Scrolling, Action{Kind: Scroll, DY: dy}
	}

	if ctx.swipe.armed && ctx.swipe.count >= m.cfg.SwipeFrames {
		kind := SwipeRight
		if ctx.swipe.dir < 0 {
			kind = SwipeLeft
		}
		if ctx.fire(kind, ts, m.cfg.cooldown(kind)) {
			ctx.swipe.armed = false
			return Swiping, Action{Kind: kind}
		}
	}

	if ctx.state == Scrolling {
		if pointing {
			return Moving, NoAction
		}
		return Idle, NoAction
	}

	if pointing {
		return Moving, moveTo(mapper.Map(pos, m.cfg.Region, m.screen))
	}
	return Idle, NoAction
}

// holdsPinch reports whether a pinch may be timed on this frame: while in
// Moving or a click state, or on the pointing frame that enters Moving. A pinch
// formed in Idle or Scrolling starts its debounce only once pointing begins.
func holdsPinch(state State, fingers features.Fingers) bool {
	switch state {
	case Moving, LeftClick, RightClick:
		return true
	case Swiping:
		return false
	}
	return fingers.Only(features.Index)
}

// tryClick consumes a pinch that has just completed its debounce and reports
// whether the cooldown lets it fire. A consumed pinch must be released before
// it can click again.
func (m *Machine) tryClick(ctx *Context, p *pinch, kind ActionKind, ts time.Time) bool {
	if !p.ready(ts, m.cfg.ClickDebounce) {
		return false
	}
	p.consumed = true
	return ctx.fire(kind, ts, m.cfg.cooldown(kind))
}

// lose handles a frame without a usable hand. Cooldowns survive; everything
// that describes the current hand does not.
func (m *Machine) lose(ctx *Context) {
	ctx.pos.Reset()
	ctx.fingers = features.Fingers{}
	ctx.hasLast = false
	ctx.lastTS = time.Time{}
	ctx.lastRawX, ctx.lastY = 0, 0
	ctx.left, ctx.right = pinch{}, pinch{}
	ctx.swipe = swipeTracker{armed: true}
	m.setState(ctx, Idle)
}

func (m *Machine) setState(ctx *Context, next State) {
	prev := ctx.state
	ctx.state = next
	if prev != next && m.OnTransition != nil {
		m.OnTransition(prev, next)
	}
}

// Context is the per-hand memory carried from one frame to the next. It is
// not safe for concurrent use; one processing loop owns it.
type Context struct {
	state State
	pos   *filter.Filter2D

	// fingers is the previous frame's finger state, used for hysteresis.
	fingers features.Fingers

	hasLast  bool
	lastTS   time.Time
	lastRawX float64
	lastY    float64 // filtered

	left, right pinch
	swipe       swipeTracker

	// fired holds the last firing time per discrete gesture.
	fired map[ActionKind]time.Time
}

// State returns the current gesture state.
func (c *Context) State() State {
	return c.state
}

// fire records a discrete action at ts unless its cooldown is still running.
// Both swipe directions share one cooldown.
func (c *Context) fire(kind ActionKind, ts time.Time, cooldown time.Duration) bool {
	key := kind
	if key == SwipeRight {
		key = SwipeLeft
	}
	if last, ok := c.fired[key]; ok && ts.Sub(last) < cooldown {
		return false
	}
	c.fired[key] = ts
	return true
}

// pinch tracks one thumb-to-fingertip pinch with trigger/release hysteresis.
type pinch struct {
	held     bool
	since    time.Time
	consumed bool
}

func (p *pinch) update(dist, trigger, release float64, ts time.Time) {
	switch {
	case !p.held && dist < trigger:
		*p = pinch{held: true, since: ts}
	case p.held && dist > release:
		*p = pinch{}
	}
}

func (p *pinch) ready(ts time.Time, debounce time.Duration) bool {
	return p.held && !p.consumed && ts.Sub(p.since) >= debounce
}

// swipeTracker counts consecutive frames of fast open-hand motion in one
// direction. It is disarmed by a swipe and re-armed by the first frame that
// does not qualify, so one sustained motion fires once.
type swipeTracker struct {
	count int
	dir   int
	armed bool
}

func (s *swipeTracker) update(qualifies bool, dir int) {
	if !qualifies {
		s.count = 0
		s.armed = true
		return
	}
	if dir != s.dir {
		s.count = 0
		s.dir = dir
	}
	s.count++
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func sign(v float64) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
