package screencapture

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/e7canasta/screen-capture/bitmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValidate_FillsDefaults(t *testing.T) {
	cfg := CaptureConfig{
		Target:      DisplayTarget(Display{Rect: Rect{Size: Size{Width: 100, Height: 100}}}),
		PixelFormat: BGRA8888,
		Audio:       &AudioConfig{SampleRate: Hz48000, ChannelCount: Stereo},
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultBufferCount, cfg.BufferCount)
	assert.Equal(t, DefaultQueueDepth, cfg.QueueDepth)
	assert.Equal(t, DefaultIdleTimeout, cfg.IdleTimeout)
	assert.Equal(t, "pulse", cfg.Audio.Backend)
}

func TestValidate_Rejects(t *testing.T) {
	display := DisplayTarget(Display{Rect: Rect{Size: Size{Width: 100, Height: 100}}})

	tests := []struct {
		name   string
		mutate func(*CaptureConfig)
		kind   ConfigErrorKind
	}{
		{"missing target", func(c *CaptureConfig) { c.Target = Target{} }, ConfigInvalidTarget},
		{"rgbaf16 is not a capture format", func(c *CaptureConfig) { c.PixelFormat = bitmap.RGBAF16 }, ConfigUnsupportedPixelFormat},
		{"negative buffer count", func(c *CaptureConfig) { c.BufferCount = -1 }, ConfigInvalidBufferCount},
		{"negative queue depth", func(c *CaptureConfig) { c.QueueDepth = -2 }, ConfigInvalidQueueDepth},
		{"negative fps", func(c *CaptureConfig) { c.MaximumFPS = -30 }, ConfigInvalidFrameRate},
		{"negative output", func(c *CaptureConfig) { c.OutputSize = Size{Width: -1, Height: 10} }, ConfigInvalidSize},
		{"bad sample rate", func(c *CaptureConfig) { c.Audio = &AudioConfig{SampleRate: 44100, ChannelCount: Mono} }, ConfigInvalidAudio},
		{"bad channel count", func(c *CaptureConfig) { c.Audio = &AudioConfig{SampleRate: Hz24000, ChannelCount: 6} }, ConfigInvalidAudio},
		{"bad audio backend", func(c *CaptureConfig) {
			c.Audio = &AudioConfig{SampleRate: Hz24000, ChannelCount: Mono, Backend: "alsa"}
		}, ConfigInvalidAudio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDisplayConfig(Display{Rect: Rect{Size: Size{Width: 100, Height: 100}}}, BGRA8888)
			cfg.Target = display
			tt.mutate(&cfg)

			err := cfg.Validate()
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.kind, cfgErr.Kind)
		})
	}
}

func TestNewWindowConfig_EmptyRect(t *testing.T) {
	_, err := NewWindowConfig(Window{ID: 42, Title: "empty"}, BGRA8888)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ConfigInvalidTarget, cfgErr.Kind)

	cfg, err := NewWindowConfig(Window{
		ID:   42,
		Rect: Rect{Origin: Point{X: 10, Y: 20}, Size: Size{Width: 300, Height: 200}},
	}, V420)
	require.NoError(t, err)
	assert.Equal(t, TargetWindow, cfg.Target.Kind())
	assert.Equal(t, Size{Width: 300, Height: 200}, cfg.OutputSize)
	assert.Equal(t, Rect{Size: Size{Width: 300, Height: 200}}, cfg.SourceRect)
}

const sampleConfig = `
target:
  kind: window
  id: 73400321
  title: Terminal
  app_id: org.gnome.Terminal
  x: 100
  y: 50
  width: 1280
  height: 720
pixel_format: nv12
output_size:
  width: 640
  height: 360
scale_to_fit: true
preserve_aspect_ratio: true
maximum_fps: 30
idle_timeout_ms: 500
audio:
  sample_rate: 48000
  channels: 2
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	w, ok := cfg.Target.Window()
	require.True(t, ok)
	assert.Equal(t, uint64(73400321), w.ID)
	assert.Equal(t, "org.gnome.Terminal", cfg.Target.AppID())
	assert.Equal(t, Point{X: 100, Y: 50}, w.Rect.Origin)

	assert.Equal(t, V420, cfg.PixelFormat)
	assert.Equal(t, Size{Width: 640, Height: 360}, cfg.OutputSize)
	assert.True(t, cfg.ScaleToFit)
	assert.True(t, cfg.PreserveAspectRatio)
	assert.Equal(t, 30.0, cfg.MaximumFPS)
	assert.Equal(t, 500*time.Millisecond, cfg.IdleTimeout)
	assert.Equal(t, DefaultBufferCount, cfg.BufferCount)

	require.NotNil(t, cfg.Audio)
	assert.Equal(t, Hz48000, cfg.Audio.SampleRate)
	assert.Equal(t, Stereo, cfg.Audio.ChannelCount)
	assert.Equal(t, "pulse", cfg.Audio.Backend)
	assert.False(t, cfg.Access.Valid(), "access is never read from a file")
}

func TestParseConfig_Errors(t *testing.T) {
	_, err := ParseConfig([]byte("pixel_format: [unterminated"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("pixel_format: yuyv\ntarget: {width: 10, height: 10}"))
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ConfigUnsupportedPixelFormat, cfgErr.Kind)

	_, err = ParseConfig([]byte("pixel_format: bgra\ntarget: {kind: tab}"))
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ConfigInvalidTarget, cfgErr.Kind)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, TargetWindow, cfg.Target.Kind())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_MarshalYAMLParsesBack(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	again, err := ParseConfig(out)
	require.NoError(t, err, "rendered config:\n%s", out)

	assert.Equal(t, cfg.Target, again.Target)
	assert.Equal(t, cfg.PixelFormat, again.PixelFormat)
	assert.Equal(t, cfg.OutputSize, again.OutputSize)
	assert.Equal(t, cfg.IdleTimeout, again.IdleTimeout)
	assert.Equal(t, *cfg.Audio, *again.Audio)
}
