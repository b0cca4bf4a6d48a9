package screencapture

import (
	"sync/atomic"
	"time"

	"github.com/e7canasta/screen-capture/bitmap"
	"github.com/e7canasta/screen-capture/internal/native"
)

// VideoFrame is a captured video frame.
//
// A frame keeps the native surface that backs it alive until its last
// reference is released. The stream holds one reference for the duration of
// the callback and drops it when the callback returns; consumers that need
// the frame afterwards call Retain and later Release.
type VideoFrame struct {
	id          uint64
	captureTime time.Time
	originTime  time.Duration
	duration    time.Duration
	width       int
	height      int
	dpi         float64
	format      PixelFormat

	surface bitmap.Surface
	release func()
	refs    atomic.Int32
}

func newVideoFrame(id uint64, captured time.Time, s native.VideoSample) *VideoFrame {
	f := &VideoFrame{
		id:          id,
		captureTime: captured,
		originTime:  s.OriginTime,
		duration:    s.Duration,
		width:       s.Width,
		height:      s.Height,
		dpi:         s.DPI,
		surface:     s.Surface,
		release:     s.Release,
	}
	if s.Surface != nil {
		f.format = s.Surface.PixelFormat()
	}
	f.refs.Store(1)
	return f
}

// FrameID is the sequence number of this frame, strictly increasing from 0.
// Video and audio ids are counted separately.
func (f *VideoFrame) FrameID() uint64 { return f.id }

// CaptureTime is the monotonic time at which the native sample was received
func (f *VideoFrame) CaptureTime() time.Time { return f.captureTime }

// OriginTime is the presentation time relative to the stream start
func (f *VideoFrame) OriginTime() time.Duration { return f.originTime }

// Duration is the nominal display duration of the frame
func (f *VideoFrame) Duration() time.Duration { return f.duration }

// Size is the raw frame size; for planar formats the size of the largest plane
func (f *VideoFrame) Size() Size {
	return Size{Width: float64(f.width), Height: float64(f.height)}
}

// DPI of the frame contents, accounting for capture scaling
func (f *VideoFrame) DPI() float64 { return f.dpi }

// PixelFormat of the backing surface
func (f *VideoFrame) PixelFormat() PixelFormat { return f.format }

// Retain adds a reference. It returns false if the frame was already
// released, in which case the caller must not use it.
func (f *VideoFrame) Retain() bool {
	for {
		n := f.refs.Load()
		if n <= 0 {
			return false
		}
		if f.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference; the last one releases the native surface
func (f *VideoFrame) Release() {
	if f.refs.Add(-1) == 0 && f.release != nil {
		f.release()
	}
}

// Lock implements bitmap.Surface for the frame, refusing once released
func (f *VideoFrame) Lock() ([]bitmap.Plane, func(), error) {
	if f.refs.Load() <= 0 || f.surface == nil {
		return nil, nil, bitmap.ErrSurfaceReleased
	}
	return f.surface.Lock()
}

// Bitmap copies the frame into freshly allocated storage
func (f *VideoFrame) Bitmap() (bitmap.Bitmap, error) {
	return bitmap.Extract(f)
}

// PooledBitmap copies the frame into buffers from pool, blocking while the
// pool is exhausted. Call it from a consumer goroutine rather than inside the
// stream callback if the pool can run dry.
func (f *VideoFrame) PooledBitmap(pool *bitmap.Pool) (bitmap.Bitmap, error) {
	return bitmap.ExtractPooled(f, pool)
}

// TryPooledBitmap is the non-blocking PooledBitmap; it returns (nil, nil)
// when the pool cannot supply every plane right now.
func (f *VideoFrame) TryPooledBitmap(pool *bitmap.Pool) (bitmap.Bitmap, error) {
	return bitmap.TryExtractPooled(f, pool)
}

// Diagnostic reports the native plane layout of the frame
func (f *VideoFrame) Diagnostic() ([]bitmap.PlaneInfo, error) {
	return bitmap.Describe(f)
}
