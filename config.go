package screencapture

import (
	"fmt"
	"os"
	"time"

	"github.com/e7canasta/screen-capture/bitmap"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBufferCount is the number of native surfaces kept in flight
	DefaultBufferCount = 3
	// DefaultQueueDepth is the depth of the backend sample queue
	DefaultQueueDepth = 4
	// DefaultIdleTimeout is how long without samples before an Idle event
	DefaultIdleTimeout = time.Second
)

// AudioConfig enables audio capture alongside video
type AudioConfig struct {
	SampleRate   AudioSampleRate
	ChannelCount AudioChannelCount
	// ExcludeCurrentProcess drops audio produced by this process where the
	// backend can tell sources apart
	ExcludeCurrentProcess bool
	// Backend selects the audio backend: "pulse" (default) or "miniaudio"
	Backend string
}

// NewAudioConfig returns the default audio options: 24 kHz mono
func NewAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:   Hz24000,
		ChannelCount: Mono,
		Backend:      "pulse",
	}
}

// CaptureConfig describes what to capture and how
type CaptureConfig struct {
	Target Target
	// SourceRect is the region of the target to capture; zero size captures
	// the whole target
	SourceRect Rect
	// OutputSize is the size of delivered frames when ScaleToFit is set;
	// otherwise frames keep the source size
	OutputSize  Size
	ShowCursor  bool
	PixelFormat PixelFormat
	// Audio enables audio capture when non-nil
	Audio *AudioConfig
	// BufferCount is the number of native surfaces in flight
	BufferCount int
	// QueueDepth is the backend sample queue depth
	QueueDepth int
	// MaximumFPS caps the frame rate; zero means native rate
	MaximumFPS          float64
	ScaleToFit          bool
	PreserveAspectRatio bool
	// IdleTimeout is how long without new samples before an Idle event
	IdleTimeout time.Duration
	// Access is the token obtained from TestAccess or RequestAccess
	Access AccessToken
}

func baseConfig(target Target, format PixelFormat) CaptureConfig {
	rect := target.Rect()
	return CaptureConfig{
		Target:      target,
		SourceRect:  Rect{Size: rect.Size},
		OutputSize:  rect.Size,
		PixelFormat: format,
		BufferCount: DefaultBufferCount,
		QueueDepth:  DefaultQueueDepth,
		IdleTimeout: DefaultIdleTimeout,
	}
}

// NewWindowConfig returns a config capturing the whole window at its size
func NewWindowConfig(w Window, format PixelFormat) (CaptureConfig, error) {
	if w.Rect.Size.IsZero() {
		return CaptureConfig{}, &ConfigError{
			Kind:    ConfigInvalidTarget,
			Message: fmt.Sprintf("window %d has empty rect", w.ID),
		}
	}
	return baseConfig(WindowTarget(w), format), nil
}

// NewDisplayConfig returns a config capturing the whole display
func NewDisplayConfig(d Display, format PixelFormat) CaptureConfig {
	return baseConfig(DisplayTarget(d), format)
}

// WithAudio enables audio capture
func (c CaptureConfig) WithAudio(a AudioConfig) CaptureConfig {
	c.Audio = &a
	return c
}

// WithSourceRect restricts capture to a region of the target
func (c CaptureConfig) WithSourceRect(r Rect) CaptureConfig {
	c.SourceRect = r
	return c
}

// WithOutputSize sets the size of delivered frames
func (c CaptureConfig) WithOutputSize(s Size) CaptureConfig {
	c.OutputSize = s
	return c
}

// WithShowCursor draws the cursor into frames
func (c CaptureConfig) WithShowCursor(show bool) CaptureConfig {
	c.ShowCursor = show
	return c
}

// WithMaximumFPS caps the frame rate
func (c CaptureConfig) WithMaximumFPS(fps float64) CaptureConfig {
	c.MaximumFPS = fps
	return c
}

// WithBufferCount sets the number of native surfaces in flight
func (c CaptureConfig) WithBufferCount(n int) CaptureConfig {
	c.BufferCount = n
	return c
}

// WithQueueDepth sets the backend sample queue depth
func (c CaptureConfig) WithQueueDepth(n int) CaptureConfig {
	c.QueueDepth = n
	return c
}

// WithAccess attaches the access token
func (c CaptureConfig) WithAccess(token AccessToken) CaptureConfig {
	c.Access = token
	return c
}

// Validate checks the configuration, filling zero-valued defaults
func (c *CaptureConfig) Validate() error {
	if c.Target.Kind() == TargetNone {
		return &ConfigError{Kind: ConfigInvalidTarget, Message: "target is required"}
	}

	supported := false
	for _, f := range capturePixelFormats {
		if f == c.PixelFormat {
			supported = true
			break
		}
	}
	if !supported {
		return &ConfigError{
			Kind:    ConfigUnsupportedPixelFormat,
			Message: fmt.Sprintf("pixel format %s cannot be captured", c.PixelFormat),
		}
	}

	if c.BufferCount == 0 {
		c.BufferCount = DefaultBufferCount
	}
	if c.BufferCount < 1 {
		return &ConfigError{
			Kind:    ConfigInvalidBufferCount,
			Message: fmt.Sprintf("buffer count %d (must be >= 1)", c.BufferCount),
		}
	}

	if c.QueueDepth == 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	if c.QueueDepth < 1 {
		return &ConfigError{
			Kind:    ConfigInvalidQueueDepth,
			Message: fmt.Sprintf("queue depth %d (must be >= 1)", c.QueueDepth),
		}
	}

	if c.MaximumFPS < 0 {
		return &ConfigError{
			Kind:    ConfigInvalidFrameRate,
			Message: fmt.Sprintf("maximum fps %.2f (must be >= 0)", c.MaximumFPS),
		}
	}

	if c.OutputSize.Width < 0 || c.OutputSize.Height < 0 ||
		c.SourceRect.Size.Width < 0 || c.SourceRect.Size.Height < 0 {
		return &ConfigError{Kind: ConfigInvalidSize, Message: "negative source or output size"}
	}

	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}

	if c.Audio != nil {
		if !c.Audio.SampleRate.valid() {
			return &ConfigError{
				Kind:    ConfigInvalidAudio,
				Message: fmt.Sprintf("audio sample rate %d (must be 8000, 16000, 24000 or 48000)", c.Audio.SampleRate),
			}
		}
		if c.Audio.ChannelCount != Mono && c.Audio.ChannelCount != Stereo {
			return &ConfigError{
				Kind:    ConfigInvalidAudio,
				Message: fmt.Sprintf("audio channel count %d (must be 1 or 2)", c.Audio.ChannelCount),
			}
		}
		switch c.Audio.Backend {
		case "":
			c.Audio.Backend = "pulse"
		case "pulse", "miniaudio":
		default:
			return &ConfigError{
				Kind:    ConfigInvalidAudio,
				Message: fmt.Sprintf("audio backend %q (must be pulse or miniaudio)", c.Audio.Backend),
			}
		}
	}

	return nil
}

// fileConfig is the YAML schema of a capture config file
type fileConfig struct {
	Target struct {
		Kind    string  `yaml:"kind"` // display, window
		ID      uint64  `yaml:"id"`
		Name    string  `yaml:"name"`
		Title   string  `yaml:"title"`
		AppID   string  `yaml:"app_id"`
		Width   float64 `yaml:"width"`
		Height  float64 `yaml:"height"`
		OriginX float64 `yaml:"x"`
		OriginY float64 `yaml:"y"`
	} `yaml:"target"`
	PixelFormat string `yaml:"pixel_format"`
	Source      *struct {
		X      float64 `yaml:"x"`
		Y      float64 `yaml:"y"`
		Width  float64 `yaml:"width"`
		Height float64 `yaml:"height"`
	} `yaml:"source_rect,omitempty"`
	Output *struct {
		Width  float64 `yaml:"width"`
		Height float64 `yaml:"height"`
	} `yaml:"output_size,omitempty"`
	ShowCursor          bool    `yaml:"show_cursor"`
	BufferCount         int     `yaml:"buffer_count"`
	QueueDepth          int     `yaml:"queue_depth"`
	MaximumFPS          float64 `yaml:"maximum_fps"`
	ScaleToFit          bool    `yaml:"scale_to_fit"`
	PreserveAspectRatio bool    `yaml:"preserve_aspect_ratio"`
	IdleTimeoutMS       int     `yaml:"idle_timeout_ms"`
	Audio               *struct {
		SampleRate            int    `yaml:"sample_rate"`
		Channels              int    `yaml:"channels"`
		ExcludeCurrentProcess bool   `yaml:"exclude_current_process"`
		Backend               string `yaml:"backend"`
	} `yaml:"audio,omitempty"`
}

// LoadConfig reads and validates a YAML capture config file.
// The access token is not part of the file; attach it with WithAccess.
func LoadConfig(path string) (CaptureConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CaptureConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates a YAML capture config
func ParseConfig(data []byte) (CaptureConfig, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return CaptureConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}

	format, err := bitmap.ParsePixelFormat(fc.PixelFormat)
	if err != nil {
		return CaptureConfig{}, &ConfigError{Kind: ConfigUnsupportedPixelFormat, Message: err.Error()}
	}

	rect := Rect{
		Origin: Point{X: fc.Target.OriginX, Y: fc.Target.OriginY},
		Size:   Size{Width: fc.Target.Width, Height: fc.Target.Height},
	}

	var cfg CaptureConfig
	switch fc.Target.Kind {
	case "window":
		cfg, err = NewWindowConfig(Window{
			ID:    fc.Target.ID,
			Title: fc.Target.Title,
			Rect:  rect,
			App:   Application{ID: fc.Target.AppID},
		}, format)
		if err != nil {
			return CaptureConfig{}, err
		}
	case "display", "":
		cfg = NewDisplayConfig(Display{ID: fc.Target.ID, Name: fc.Target.Name, Rect: rect}, format)
	default:
		return CaptureConfig{}, &ConfigError{
			Kind:    ConfigInvalidTarget,
			Message: fmt.Sprintf("target kind %q (must be display or window)", fc.Target.Kind),
		}
	}

	if fc.Source != nil {
		cfg.SourceRect = Rect{
			Origin: Point{X: fc.Source.X, Y: fc.Source.Y},
			Size:   Size{Width: fc.Source.Width, Height: fc.Source.Height},
		}
	}
	if fc.Output != nil {
		cfg.OutputSize = Size{Width: fc.Output.Width, Height: fc.Output.Height}
	}
	cfg.ShowCursor = fc.ShowCursor
	if fc.BufferCount != 0 {
		cfg.BufferCount = fc.BufferCount
	}
	if fc.QueueDepth != 0 {
		cfg.QueueDepth = fc.QueueDepth
	}
	cfg.MaximumFPS = fc.MaximumFPS
	cfg.ScaleToFit = fc.ScaleToFit
	cfg.PreserveAspectRatio = fc.PreserveAspectRatio
	if fc.IdleTimeoutMS > 0 {
		cfg.IdleTimeout = time.Duration(fc.IdleTimeoutMS) * time.Millisecond
	}

	if fc.Audio != nil {
		audio := NewAudioConfig()
		if fc.Audio.SampleRate != 0 {
			audio.SampleRate = AudioSampleRate(fc.Audio.SampleRate)
		}
		if fc.Audio.Channels != 0 {
			audio.ChannelCount = AudioChannelCount(fc.Audio.Channels)
		}
		audio.ExcludeCurrentProcess = fc.Audio.ExcludeCurrentProcess
		if fc.Audio.Backend != "" {
			audio.Backend = fc.Audio.Backend
		}
		cfg = cfg.WithAudio(audio)
	}

	if err := cfg.Validate(); err != nil {
		return CaptureConfig{}, err
	}
	return cfg, nil
}

// MarshalYAML renders the config in the file schema accepted by ParseConfig
func (c CaptureConfig) MarshalYAML() (interface{}, error) {
	var fc fileConfig
	rect := c.Target.Rect()
	fc.Target.Kind = c.Target.Kind().String()
	fc.Target.ID = c.Target.ID()
	if w, ok := c.Target.Window(); ok {
		fc.Target.Title = w.Title
		fc.Target.AppID = w.App.ID
	}
	if d, ok := c.Target.Display(); ok {
		fc.Target.Name = d.Name
	}
	fc.Target.OriginX, fc.Target.OriginY = rect.Origin.X, rect.Origin.Y
	fc.Target.Width, fc.Target.Height = rect.Size.Width, rect.Size.Height
	fc.PixelFormat = c.PixelFormat.String()
	fc.Source = &struct {
		X      float64 `yaml:"x"`
		Y      float64 `yaml:"y"`
		Width  float64 `yaml:"width"`
		Height float64 `yaml:"height"`
	}{c.SourceRect.Origin.X, c.SourceRect.Origin.Y, c.SourceRect.Size.Width, c.SourceRect.Size.Height}
	fc.Output = &struct {
		Width  float64 `yaml:"width"`
		Height float64 `yaml:"height"`
	}{c.OutputSize.Width, c.OutputSize.Height}
	fc.ShowCursor = c.ShowCursor
	fc.BufferCount = c.BufferCount
	fc.QueueDepth = c.QueueDepth
	fc.MaximumFPS = c.MaximumFPS
	fc.ScaleToFit = c.ScaleToFit
	fc.PreserveAspectRatio = c.PreserveAspectRatio
	fc.IdleTimeoutMS = int(c.IdleTimeout / time.Millisecond)
	if c.Audio != nil {
		fc.Audio = &struct {
			SampleRate            int    `yaml:"sample_rate"`
			Channels              int    `yaml:"channels"`
			ExcludeCurrentProcess bool   `yaml:"exclude_current_process"`
			Backend               string `yaml:"backend"`
		}{int(c.Audio.SampleRate), int(c.Audio.ChannelCount), c.Audio.ExcludeCurrentProcess, c.Audio.Backend}
	}
	return fc, nil
}
