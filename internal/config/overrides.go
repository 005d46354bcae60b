package config

// FlagOverrides carries command line values that win over the file. Each
// field is applied only when non-nil, even if it points at a zero value.
type FlagOverrides struct {
	CameraDevice *int
	CameraFPS    *int
	Mirror       *bool

	ScreenWidth  *int
	ScreenHeight *int

	ServerEnabled *bool
	ServerAddr    *string

	JournalEnabled *bool
	JournalPath    *string

	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.CameraDevice != nil {
		cfg.Camera.Device = *o.CameraDevice
	}
	if o.CameraFPS != nil {
		cfg.Camera.FPS = *o.CameraFPS
	}
	if o.Mirror != nil {
		cfg.Camera.Mirror = *o.Mirror
	}

	if o.ScreenWidth != nil {
		cfg.Mapping.ScreenWidth = *o.ScreenWidth
	}
	if o.ScreenHeight != nil {
		cfg.Mapping.ScreenHeight = *o.ScreenHeight
	}

	if o.ServerEnabled != nil {
		cfg.Server.Enabled = *o.ServerEnabled
	}
	if o.ServerAddr != nil {
		cfg.Server.Addr = *o.ServerAddr
	}

	if o.JournalEnabled != nil {
		cfg.Journal.Enabled = *o.JournalEnabled
	}
	if o.JournalPath != nil {
		cfg.Journal.Path = *o.JournalPath
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}
