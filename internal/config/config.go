// Package config loads the handmouse YAML configuration.
//
// Values are resolved in three layers: Default, then the file, then command
// line overrides. Validate runs last so the rest of the program can assume a
// well-formed config.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/handmouse/internal/capture"
	"github.com/ayusman/handmouse/internal/detector"
	"github.com/ayusman/handmouse/internal/features"
	"github.com/ayusman/handmouse/internal/filter"
	"github.com/ayusman/handmouse/internal/gesture"
	"github.com/ayusman/handmouse/internal/mapper"
)

// Config is the top-level YAML configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Features FeaturesConfig `yaml:"features"`
	Filter   FilterConfig   `yaml:"filter"`
	Gesture  GestureConfig  `yaml:"gesture"`
	Mapping  MappingConfig  `yaml:"mapping"`
	Server   ServerConfig   `yaml:"server"`
	Journal  JournalConfig  `yaml:"journal"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type CameraConfig struct {
	Device          int     `yaml:"device"`
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`
	FPS             int     `yaml:"fps"`
	IdleFPS         int     `yaml:"idle_fps"`
	Mirror          bool    `yaml:"mirror"`
	MotionThreshold float64 `yaml:"motion_threshold"` // percent of pixels
	IdleTimeoutMS   int     `yaml:"idle_timeout_ms"`
}

type TrackerConfig struct {
	MinDetectionConfidence float64 `yaml:"min_detection_confidence"`
	MinTrackingConfidence  float64 `yaml:"min_tracking_confidence"`
}

type FeaturesConfig struct {
	ExtendRatio float64 `yaml:"extend_ratio"`
	CurlRatio   float64 `yaml:"curl_ratio"`
}

type FilterConfig struct {
	MinCutoff float64 `yaml:"min_cutoff"`
	Beta      float64 `yaml:"beta"`
	DCutoff   float64 `yaml:"d_cutoff"`
}

// GestureConfig mirrors gesture.Config with YAML-friendly millisecond fields.
type GestureConfig struct {
	PinchTrigger         float64 `yaml:"pinch_trigger"`
	PinchRelease         float64 `yaml:"pinch_release"`
	ClickDebounceMS      int     `yaml:"click_debounce_ms"`
	LeftClickCooldownMS  int     `yaml:"left_click_cooldown_ms"`
	RightClickCooldownMS int     `yaml:"right_click_cooldown_ms"`
	SwipeCooldownMS      int     `yaml:"swipe_cooldown_ms"`
	ScrollSensitivity    float64 `yaml:"scroll_sensitivity"`
	SwipeVelocity        float64 `yaml:"swipe_velocity"`
	SwipeFrames          int     `yaml:"swipe_frames"`
}

// MappingConfig describes the active region and the target screen. A zero
// screen size means "ask the OS".
type MappingConfig struct {
	MarginX      float64 `yaml:"margin_x"`
	MarginY      float64 `yaml:"margin_y"`
	ScreenWidth  int     `yaml:"screen_width"`
	ScreenHeight int     `yaml:"screen_height"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a fully-populated Config. The core values come from the
// packages that consume them so the two never drift apart.
func Default() Config {
	cam := capture.DefaultConfig()
	trk := detector.DefaultConfig()
	feat := features.DefaultConfig()
	g := gesture.DefaultConfig()

	return Config{
		Camera: CameraConfig{
			Device:          cam.Device,
			Width:           cam.Width,
			Height:          cam.Height,
			FPS:             cam.FPS,
			IdleFPS:         5,
			Mirror:          cam.Mirror,
			MotionThreshold: 1.0,
			IdleTimeoutMS:   2000,
		},
		Tracker: TrackerConfig{
			MinDetectionConfidence: trk.MinConfidence,
			MinTrackingConfidence:  trk.MinTrackingConf,
		},
		Features: FeaturesConfig{
			ExtendRatio: feat.ExtendRatio,
			CurlRatio:   feat.CurlRatio,
		},
		Filter: FilterConfig{
			MinCutoff: g.Filter.MinCutoff,
			Beta:      g.Filter.Beta,
			DCutoff:   g.Filter.DerivCutoff,
		},
		Gesture: GestureConfig{
			PinchTrigger:         g.PinchTrigger,
			PinchRelease:         g.PinchRelease,
			ClickDebounceMS:      int(g.ClickDebounce / time.Millisecond),
			LeftClickCooldownMS:  int(g.LeftClickCooldown / time.Millisecond),
			RightClickCooldownMS: int(g.RightClickCooldown / time.Millisecond),
			SwipeCooldownMS:      int(g.SwipeCooldown / time.Millisecond),
			ScrollSensitivity:    g.ScrollSensitivity,
			SwipeVelocity:        g.SwipeVelocity,
			SwipeFrames:          g.SwipeFrames,
		},
		Mapping: MappingConfig{
			MarginX: g.Region.Left,
			MarginY: g.Region.Top,
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8080",
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    "~/.handmouse/journal.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFile reads a YAML file on top of Default. Unknown fields are rejected
// so typos surface at startup.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of Default.
func Parse(b []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		// An empty or comment-only file carries no overrides.
		if errors.Is(err, io.EOF) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}
	// Only whitespace and comments may follow the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}
	return cfg, nil
}

// Validate checks config invariants and returns every violation.
// Call it after defaults, file and overrides have been applied.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Camera.Device < 0 {
		add("camera.device must be >= 0")
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		add("camera.width and camera.height must be > 0")
	}
	if c.Camera.FPS <= 0 || c.Camera.FPS > 240 {
		add("camera.fps must be between 1 and 240")
	}
	if c.Camera.IdleFPS <= 0 || c.Camera.IdleFPS > c.Camera.FPS {
		add("camera.idle_fps must be between 1 and camera.fps")
	}
	if c.Camera.MotionThreshold < 0 || c.Camera.MotionThreshold > 100 {
		add("camera.motion_threshold must be a percentage")
	}
	if c.Camera.IdleTimeoutMS < 0 {
		add("camera.idle_timeout_ms must be >= 0")
	}

	if v := c.Tracker.MinDetectionConfidence; v < 0 || v > 1 {
		add("tracker.min_detection_confidence must be between 0 and 1")
	}
	if v := c.Tracker.MinTrackingConfidence; v < 0 || v > 1 {
		add("tracker.min_tracking_confidence must be between 0 and 1")
	}

	if err := c.ToFeaturesConfig().Validate(); err != nil {
		add("features: %w", err)
	}
	if err := c.ToGestureConfig().Validate(); err != nil {
		add("gesture: %w", err)
	}
	if c.Mapping.ScreenWidth < 0 || c.Mapping.ScreenHeight < 0 {
		add("mapping.screen_width and mapping.screen_height must be >= 0")
	}
	if (c.Mapping.ScreenWidth == 0) != (c.Mapping.ScreenHeight == 0) {
		add("mapping.screen_width and mapping.screen_height must be set together")
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		add("server.enabled is true but server.addr is empty")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		add("journal.enabled is true but journal.path is empty")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}

	return errors.Join(errs...)
}

// ToCameraConfig converts the camera section for the capture package.
func (c *Config) ToCameraConfig() capture.Config {
	return capture.Config{
		Device: c.Camera.Device,
		Width:  c.Camera.Width,
		Height: c.Camera.Height,
		FPS:    c.Camera.FPS,
		Mirror: c.Camera.Mirror,
	}
}

// IdleTimeout returns how long the scene must be still before capture slows down.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Camera.IdleTimeoutMS) * time.Millisecond
}

// ToTrackerConfig converts the tracker section. Only one hand is tracked.
func (c *Config) ToTrackerConfig() detector.Config {
	cfg := detector.DefaultConfig()
	cfg.MaxHands = 1
	cfg.MinConfidence = c.Tracker.MinDetectionConfidence
	cfg.MinTrackingConf = c.Tracker.MinTrackingConfidence
	return cfg
}

// ToFeaturesConfig converts the features section.
func (c *Config) ToFeaturesConfig() features.Config {
	return features.Config{
		ExtendRatio: c.Features.ExtendRatio,
		CurlRatio:   c.Features.CurlRatio,
	}
}

// ToGestureConfig converts the gesture, filter and mapping sections into the
// state machine's configuration.
func (c *Config) ToGestureConfig() gesture.Config {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return gesture.Config{
		PinchTrigger:       c.Gesture.PinchTrigger,
		PinchRelease:       c.Gesture.PinchRelease,
		ClickDebounce:      ms(c.Gesture.ClickDebounceMS),
		LeftClickCooldown:  ms(c.Gesture.LeftClickCooldownMS),
		RightClickCooldown: ms(c.Gesture.RightClickCooldownMS),
		SwipeCooldown:      ms(c.Gesture.SwipeCooldownMS),
		ScrollSensitivity:  c.Gesture.ScrollSensitivity,
		SwipeVelocity:      c.Gesture.SwipeVelocity,
		SwipeFrames:        c.Gesture.SwipeFrames,
		Filter: filter.Config{
			MinCutoff:   c.Filter.MinCutoff,
			Beta:        c.Filter.Beta,
			DerivCutoff: c.Filter.DCutoff,
		},
		Region: mapper.RegionFromMargins(c.Mapping.MarginX, c.Mapping.MarginY),
	}
}

// Screen returns the configured screen size and whether one was configured.
func (c *Config) Screen() (mapper.Screen, bool) {
	s := mapper.Screen{Width: c.Mapping.ScreenWidth, Height: c.Mapping.ScreenHeight}
	return s, s.Width > 0 && s.Height > 0
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
