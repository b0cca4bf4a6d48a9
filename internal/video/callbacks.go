package video

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/screen-capture/bitmap"
	"github.com/e7canasta/screen-capture/internal/native"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
	gstvideo "github.com/tinyzimmer/go-gst/gst/video"
)

// baseDPI is the X11 logical DPI at scale 1
const baseDPI = 96.0

// CallbackContext holds state needed by the appsink callback
type CallbackContext struct {
	Handler     native.Handler
	Format      bitmap.PixelFormat
	SourceWidth int
	FrameTime   time.Duration // nominal frame duration, 0 when unconstrained
	StartedAt   time.Time

	// MaxInFlight bounds the surfaces handed out and not yet released
	MaxInFlight int32
	InFlight    *atomic.Int32

	FrameCounter  *atomic.Uint64
	FramesDropped *atomic.Uint64
	LastSampleAt  *atomic.Int64 // unix nanos
}

// frameSurface is a mapped copy of one appsink buffer in GStreamer's raw
// layout, row padding included.
type frameSurface struct {
	format bitmap.PixelFormat
	layout []planeGeom

	mu   sync.Mutex
	data []byte
}

func (s *frameSurface) PixelFormat() bitmap.PixelFormat { return s.format }

func (s *frameSurface) Lock() ([]bitmap.Plane, func(), error) {
	s.mu.Lock()
	data := s.data
	s.mu.Unlock()

	if data == nil {
		return nil, nil, bitmap.ErrSurfaceReleased
	}
	planes, err := planesOf(data, s.layout)
	if err != nil {
		return nil, nil, err
	}
	return planes, func() {}, nil
}

func (s *frameSurface) release() {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
}

// OnNewSample is called by GStreamer when a new frame is available
//
// This callback:
//  1. Pulls the sample and reads the negotiated size from its caps
//  2. Maps the buffer and copies it (GStreamer reuses the buffer)
//  3. Wraps the copy as a surface with GStreamer's plane layout
//  4. Hands it to the handler, which owns it until Release
//
// A frame is dropped when MaxInFlight surfaces are still held by consumers.
func OnNewSample(sink *app.Sink, ctx *CallbackContext) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		// Graceful degradation: skip frame instead of terminating stream
		slog.Warn("gst: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}
	now := time.Now()
	ctx.LastSampleAt.Store(now.UnixNano())

	caps := sample.GetCaps()
	width, height, err := capsSize(caps)
	if err != nil {
		ctx.Handler.Error(&PipelineError{category: ErrCategoryFormat, Message: err.Error()})
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("gst: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	if ctx.InFlight.Add(1) > ctx.MaxInFlight {
		ctx.InFlight.Add(-1)
		ctx.FramesDropped.Add(1)
		slog.Debug("gst: dropping frame, all surfaces in use",
			"in_flight", ctx.MaxInFlight,
		)
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	buffer.Unmap()

	layout, size, err := planeLayout(ctx.Format, width, height)
	if err == nil {
		err = checkBufferSize(len(data), size, negotiatedSize(caps), width, height, ctx.Format)
	}
	if err != nil {
		ctx.InFlight.Add(-1)
		ctx.Handler.Error(&PipelineError{category: ErrCategoryFormat, Message: err.Error()})
		return gst.FlowOK
	}

	surface := &frameSurface{format: ctx.Format, layout: layout, data: data}
	var once sync.Once
	release := func() {
		once.Do(func() {
			surface.release()
			ctx.InFlight.Add(-1)
		})
	}

	seq := ctx.FrameCounter.Add(1)
	slog.Debug("gst: frame sampled",
		"seq", seq,
		"size_bytes", len(data),
		"width", width,
		"height", height,
	)

	ctx.Handler.Video(native.VideoSample{
		Surface:    surface,
		Width:      width,
		Height:     height,
		DPI:        frameDPI(width, ctx.SourceWidth),
		OriginTime: now.Sub(ctx.StartedAt),
		Duration:   ctx.FrameTime,
		Release:    release,
	})

	return gst.FlowOK
}

// capsSize reads width and height from negotiated caps
func capsSize(caps *gst.Caps) (int, int, error) {
	if caps == nil || caps.GetSize() == 0 {
		return 0, 0, fmt.Errorf("sample has no caps")
	}
	st := caps.GetStructureAt(0)
	w, err := st.GetValue("width")
	if err != nil {
		return 0, 0, fmt.Errorf("caps width: %w", err)
	}
	h, err := st.GetValue("height")
	if err != nil {
		return 0, 0, fmt.Errorf("caps height: %w", err)
	}
	width, ok1 := w.(int)
	height, ok2 := h.(int)
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("caps size has unexpected type %T x %T", w, h)
	}
	return width, height, nil
}

// negotiatedSize is the buffer size GStreamer derives from the caps, or 0
// when the caps do not describe raw video.
func negotiatedSize(caps *gst.Caps) int {
	return int(gstvideo.NewInfo().FromCaps(caps).Size())
}

// checkBufferSize rejects a mapped buffer that does not match the plane
// layout computed for it.
func checkBufferSize(have, size, negotiated, width, height int, format bitmap.PixelFormat) error {
	if negotiated > 0 && negotiated != size {
		return fmt.Errorf("%dx%d %s negotiated as %d bytes, plane layout gives %d", width, height, format, negotiated, size)
	}
	if have < size {
		return fmt.Errorf("buffer holds %d bytes, %dx%d %s needs %d", have, width, height, format, size)
	}
	return nil
}

// frameDPI scales the logical DPI by the capture scale factor
func frameDPI(width, sourceWidth int) float64 {
	if width <= 0 || sourceWidth <= 0 {
		return baseDPI
	}
	return baseDPI * float64(width) / float64(sourceWidth)
}
