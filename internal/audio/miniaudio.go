package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/e7canasta/screen-capture/internal/native"
	"github.com/gen2brain/malgo"
)

// MiniaudioBackend records through a miniaudio loopback device. Loopback
// needs a backend that supports it (WASAPI, or a PulseAudio/PipeWire monitor
// exposed as capture device).
type MiniaudioBackend struct{}

// NewMiniaudioBackend returns the miniaudio backend
func NewMiniaudioBackend() *MiniaudioBackend { return &MiniaudioBackend{} }

func (*MiniaudioBackend) Name() string { return "miniaudio" }

// StartAudio initializes a context and a loopback capture device
func (*MiniaudioBackend) StartAudio(cfg native.AudioConfig, h native.Handler) (native.Session, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("audio: miniaudio", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("miniaudio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Loopback)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	// miniaudio's buffer is only valid during the callback; the chunker copies
	chunks := newChunker(cfg.SampleRate, cfg.Channels)
	var mu sync.Mutex
	onRecv := func(_, input []byte, frameCount uint32) {
		if frameCount == 0 {
			return
		}
		mu.Lock()
		chunks.feed(input, h.Audio)
		mu.Unlock()
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		ctx.Free()
		return nil, fmt.Errorf("miniaudio loopback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("miniaudio start: %w", err)
	}

	slog.Info("audio: miniaudio loopback recording",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	return &miniaudioSession{ctx: ctx, device: device}, nil
}

type miniaudioSession struct {
	once   sync.Once
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

func (s *miniaudioSession) Stop() error {
	var err error
	s.once.Do(func() {
		err = s.device.Stop()
		s.device.Uninit()
		if freeErr := s.ctx.Uninit(); freeErr != nil && err == nil {
			err = freeErr
		}
		s.ctx.Free()
		slog.Debug("audio: miniaudio recording stopped")
	})
	if err != nil {
		return fmt.Errorf("miniaudio stop: %w", err)
	}
	return nil
}
