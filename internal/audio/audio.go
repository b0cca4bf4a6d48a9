// Package audio records system output audio as 16-bit PCM, either from the
// PulseAudio default sink monitor or from a miniaudio loopback device.
package audio

import (
	"time"

	"github.com/e7canasta/screen-capture/internal/native"
)

// chunkDuration is the length of every delivered audio frame
const chunkDuration = 20 * time.Millisecond

const bytesPerSample = 2 // S16LE

// chunkBytes is the size of one chunk of interleaved S16 samples
func chunkBytes(rate, channels int) int {
	return rate * int(chunkDuration/time.Millisecond) / 1000 * channels * bytesPerSample
}

// chunker regroups arbitrarily sized PCM writes into fixed-size frames and
// stamps each with its position in the stream. Not safe for concurrent use.
type chunker struct {
	rate     int
	channels int
	size     int
	buf      []byte
	frames   int64 // sample frames emitted so far
}

func newChunker(rate, channels int) *chunker {
	size := chunkBytes(rate, channels)
	return &chunker{
		rate:     rate,
		channels: channels,
		size:     size,
		buf:      make([]byte, 0, size*2),
	}
}

// feed appends data and calls emit for every complete chunk. Emitted
// samples own their data.
func (c *chunker) feed(data []byte, emit func(native.AudioSample)) {
	c.buf = append(c.buf, data...)
	for len(c.buf) >= c.size {
		out := make([]byte, c.size)
		copy(out, c.buf[:c.size])
		c.buf = append(c.buf[:0], c.buf[c.size:]...)

		n := int64(c.size / (c.channels * bytesPerSample))
		emit(native.AudioSample{
			Data:       out,
			Format:     native.SampleI16,
			SampleRate: c.rate,
			Channels:   c.channels,
			OriginTime: time.Duration(c.frames) * time.Second / time.Duration(c.rate),
			Duration:   time.Duration(n) * time.Second / time.Duration(c.rate),
		})
		c.frames += n
	}
}
