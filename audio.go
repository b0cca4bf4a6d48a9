package screencapture

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/e7canasta/screen-capture/internal/native"
)

// AudioSampleFormat is the encoding of captured audio samples
type AudioSampleFormat = native.AudioSampleFormat

const (
	SampleI16 = native.SampleI16
	SampleI32 = native.SampleI32
	SampleF32 = native.SampleF32
)

// AudioFrame is a chunk of captured audio, interleaved across channels
type AudioFrame struct {
	id          uint64
	captureTime time.Time
	originTime  time.Duration
	duration    time.Duration
	sampleRate  int
	channels    int
	format      AudioSampleFormat
	data        []byte
}

func newAudioFrame(id uint64, captured time.Time, s native.AudioSample) *AudioFrame {
	return &AudioFrame{
		id:          id,
		captureTime: captured,
		originTime:  s.OriginTime,
		duration:    s.Duration,
		sampleRate:  s.SampleRate,
		channels:    s.Channels,
		format:      s.Format,
		data:        s.Data,
	}
}

// FrameID is the sequence number of this audio frame, strictly increasing
// from 0 and independent of video frame ids.
func (f *AudioFrame) FrameID() uint64 { return f.id }

// CaptureTime is the monotonic time at which the native chunk was received
func (f *AudioFrame) CaptureTime() time.Time { return f.captureTime }

// OriginTime is the time since stream start at which the chunk begins
func (f *AudioFrame) OriginTime() time.Duration { return f.originTime }

// Duration of the chunk
func (f *AudioFrame) Duration() time.Duration { return f.duration }

// SampleRate of the captured audio
func (f *AudioFrame) SampleRate() AudioSampleRate { return AudioSampleRate(f.sampleRate) }

// ChannelCount of the captured audio
func (f *AudioFrame) ChannelCount() AudioChannelCount { return AudioChannelCount(f.channels) }

// SampleFormat of the captured audio
func (f *AudioFrame) SampleFormat() AudioSampleFormat { return f.format }

// AudioBufferErrorKind classifies channel buffer failures
type AudioBufferErrorKind int

const (
	// AudioInvalidChannel means the requested channel is not present
	AudioInvalidChannel AudioBufferErrorKind = iota
	// AudioUnsupportedFormat means the sample format cannot be exposed
	AudioUnsupportedFormat
	// AudioOther is any other failure
	AudioOther
)

// AudioBufferError is returned by AudioFrame.ChannelBuffer
type AudioBufferError struct {
	Kind    AudioBufferErrorKind
	Message string
}

func (e *AudioBufferError) Error() string {
	switch e.Kind {
	case AudioInvalidChannel:
		return "screen-capture: invalid audio channel: " + e.Message
	case AudioUnsupportedFormat:
		return "screen-capture: unsupported audio format: " + e.Message
	default:
		return "screen-capture: audio buffer: " + e.Message
	}
}

// AudioChannelData is the samples of one channel; the concrete type is one
// of F32Samples, I32Samples or I16Samples.
type AudioChannelData interface {
	Len() int
	sampleFormat() AudioSampleFormat
}

// ChannelSamples is a strided view of one channel inside interleaved data
type ChannelSamples struct {
	data   []byte
	offset int
	stride int
	length int
}

// Len returns the number of samples in the channel
func (c ChannelSamples) Len() int { return c.length }

func (c ChannelSamples) at(i int) []byte {
	if i < 0 || i >= c.length {
		panic(fmt.Sprintf("screen-capture: sample index %d out of range [0,%d)", i, c.length))
	}
	return c.data[c.offset+i*c.stride:]
}

// F32Samples are 32-bit float samples
type F32Samples struct{ ChannelSamples }

// At returns sample i
func (s F32Samples) At(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(s.at(i)))
}

func (F32Samples) sampleFormat() AudioSampleFormat { return SampleF32 }

// I32Samples are signed 32-bit integer samples
type I32Samples struct{ ChannelSamples }

// At returns sample i
func (s I32Samples) At(i int) int32 {
	return int32(binary.LittleEndian.Uint32(s.at(i)))
}

func (I32Samples) sampleFormat() AudioSampleFormat { return SampleI32 }

// I16Samples are signed 16-bit integer samples
type I16Samples struct{ ChannelSamples }

// At returns sample i
func (s I16Samples) At(i int) int16 {
	return int16(binary.LittleEndian.Uint16(s.at(i)))
}

func (I16Samples) sampleFormat() AudioSampleFormat { return SampleI16 }

// ChannelBuffer returns the samples of one channel
func (f *AudioFrame) ChannelBuffer(channel int) (AudioChannelData, error) {
	if channel < 0 || channel >= f.channels {
		return nil, &AudioBufferError{
			Kind:    AudioInvalidChannel,
			Message: fmt.Sprintf("channel %d of %d", channel, f.channels),
		}
	}

	bps := f.format.BytesPerSample()
	stride := bps * f.channels
	samples := ChannelSamples{
		data:   f.data,
		offset: channel * bps,
		stride: stride,
		length: len(f.data) / stride,
	}

	switch f.format {
	case SampleF32:
		return F32Samples{samples}, nil
	case SampleI32:
		return I32Samples{samples}, nil
	case SampleI16:
		return I16Samples{samples}, nil
	default:
		return nil, &AudioBufferError{
			Kind:    AudioUnsupportedFormat,
			Message: fmt.Sprintf("sample format %d", int(f.format)),
		}
	}
}
