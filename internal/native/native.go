// Package native defines the boundary between a capture stream and the
// platform backends that produce samples.
//
// Backends deliver on their own goroutines (GStreamer streaming threads,
// PulseAudio reader, miniaudio device thread) and must not assume anything
// about how the stream serializes those deliveries.
package native

import (
	"errors"
	"time"

	"github.com/e7canasta/screen-capture/bitmap"
)

// ErrStreamStopped is wrapped by backend errors meaning the native session
// ended on its own (window closed, portal session revoked, EOS).
var ErrStreamStopped = errors.New("native stream stopped")

// ErrUnsupportedPixelFormat is returned by StartVideo for formats the
// backend cannot produce.
var ErrUnsupportedPixelFormat = errors.New("unsupported pixel format")

// Handler receives native events. Implementations must be safe for
// concurrent calls from several backend goroutines.
type Handler interface {
	Video(VideoSample)
	Audio(AudioSample)
	Idle()
	Error(err error)
}

// Session is one running native capture session
type Session interface {
	// Stop halts the session. Must not be called from a backend delivery
	// goroutine.
	Stop() error
}

// TargetKind selects what the video backend captures
type TargetKind int

const (
	TargetDisplay TargetKind = iota
	TargetWindow
)

// VideoConfig is the backend-facing view of a capture configuration
type VideoConfig struct {
	Kind        TargetKind
	TargetID    uint64
	DisplayName string // X11 display, e.g. ":0"

	// PipeWire source granted by the screencast portal (fd < 0 when unused)
	PipeWireFD   int
	PipeWireNode uint32

	// Target frame in screen coordinates
	OriginX, OriginY          int
	TargetWidth, TargetHeight int

	// Source rectangle in target pixels; zero size means the whole target
	SourceX, SourceY          int
	SourceWidth, SourceHeight int

	// Output size; zero means native size
	Width, Height int

	PixelFormat bitmap.PixelFormat
	ShowCursor  bool
	MaximumFPS  float64
	BufferCount int
	QueueDepth  int
	ScaleToFit  bool
	KeepAspect  bool
	IdleTimeout time.Duration
}

// AudioSampleFormat is the sample encoding of delivered audio
type AudioSampleFormat int

const (
	SampleI16 AudioSampleFormat = iota
	SampleI32
	SampleF32
)

// BytesPerSample returns the size of one sample of one channel
func (f AudioSampleFormat) BytesPerSample() int {
	if f == SampleI16 {
		return 2
	}
	return 4
}

// AudioConfig is the backend-facing view of the audio options
type AudioConfig struct {
	SampleRate            int
	Channels              int
	ExcludeCurrentProcess bool
}

// VideoSample is one video frame as delivered by a backend
type VideoSample struct {
	Surface    bitmap.Surface
	Width      int
	Height     int
	DPI        float64
	OriginTime time.Duration
	Duration   time.Duration
	// Release drops the backend's reference to the surface. May be nil.
	Release func()
}

// AudioSample is one chunk of interleaved little-endian PCM
type AudioSample struct {
	Data       []byte
	Format     AudioSampleFormat
	SampleRate int
	Channels   int
	OriginTime time.Duration
	Duration   time.Duration
}

// VideoBackend starts video sessions
type VideoBackend interface {
	Name() string
	SupportedPixelFormats() []bitmap.PixelFormat
	StartVideo(cfg VideoConfig, h Handler) (Session, error)
}

// AudioBackend starts audio sessions
type AudioBackend interface {
	Name() string
	StartAudio(cfg AudioConfig, h Handler) (Session, error)
}

// Supports reports whether formats contains f
func Supports(formats []bitmap.PixelFormat, f bitmap.PixelFormat) bool {
	for _, sf := range formats {
		if sf == f {
			return true
		}
	}
	return false
}
