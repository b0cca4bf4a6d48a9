package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/e7canasta/screen-capture/internal/native"
	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

// PulseBackend records the default sink monitor through PulseAudio
// (or pipewire-pulse)
type PulseBackend struct {
	appName string
}

// NewPulseBackend returns the PulseAudio backend
func NewPulseBackend() *PulseBackend {
	return &PulseBackend{appName: "screen-capture"}
}

func (*PulseBackend) Name() string { return "pulse" }

// pcmWriter implements pulse.Writer, forwarding fixed-size chunks
type pcmWriter struct {
	mu      sync.Mutex
	chunks  *chunker
	handler native.Handler
}

func (w *pcmWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chunks.feed(data, w.handler.Audio)
	return len(data), nil
}

func (w *pcmWriter) Format() byte {
	return proto.FormatInt16LE
}

// StartAudio connects to the server and starts a monitor record stream
func (b *PulseBackend) StartAudio(cfg native.AudioConfig, h native.Handler) (native.Session, error) {
	client, err := pulse.NewClient(pulse.ClientApplicationName(b.appName))
	if err != nil {
		return nil, fmt.Errorf("pulse connect: %w", err)
	}

	sink, err := client.DefaultSink()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("pulse default sink: %w", err)
	}

	if cfg.ExcludeCurrentProcess {
		// a sink monitor carries the mixed output; per-client exclusion is
		// not available at this level
		slog.Debug("audio: exclude-current-process not supported by pulse monitor, ignoring")
	}

	layout := pulse.RecordMono
	if cfg.Channels == 2 {
		layout = pulse.RecordStereo
	}

	w := &pcmWriter{chunks: newChunker(cfg.SampleRate, cfg.Channels), handler: h}
	stream, err := client.NewRecord(
		w,
		pulse.RecordMonitor(sink),
		layout,
		pulse.RecordSampleRate(cfg.SampleRate),
		pulse.RecordBufferFragmentSize(uint32(chunkBytes(cfg.SampleRate, cfg.Channels))),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("pulse record stream: %w", err)
	}
	stream.Start()

	slog.Info("audio: pulse monitor recording",
		"sink", sink.Name(),
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	return &pulseSession{client: client, stream: stream}, nil
}

type pulseSession struct {
	once   sync.Once
	client *pulse.Client
	stream *pulse.RecordStream
}

func (s *pulseSession) Stop() error {
	var err error
	s.once.Do(func() {
		s.stream.Stop()
		err = s.stream.Error()
		s.stream.Close()
		s.client.Close()
		slog.Debug("audio: pulse recording stopped")
	})
	if err != nil {
		return fmt.Errorf("pulse record stream: %w", err)
	}
	return nil
}
