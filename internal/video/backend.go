// Package video captures X11 displays and windows (ximagesrc) or portal
// PipeWire streams (pipewiresrc) through GStreamer appsink pipelines.
package video

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/screen-capture/bitmap"
	"github.com/e7canasta/screen-capture/internal/native"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Backend starts GStreamer capture sessions
type Backend struct{}

// NewBackend returns the GStreamer video backend
func NewBackend() *Backend { return &Backend{} }

func (*Backend) Name() string { return "gstreamer" }

func (*Backend) SupportedPixelFormats() []bitmap.PixelFormat {
	out := make([]bitmap.PixelFormat, len(supportedFormats))
	copy(out, supportedFormats)
	return out
}

// StartVideo builds the pipeline, sets it PLAYING and starts the bus monitor
func (b *Backend) StartVideo(cfg native.VideoConfig, h native.Handler) (native.Session, error) {
	if !native.Supports(supportedFormats, cfg.PixelFormat) {
		return nil, fmt.Errorf("gst: %s: %w", cfg.PixelFormat, native.ErrUnsupportedPixelFormat)
	}

	// Fail-fast validation: capture element availability
	if err := checkElementAvailable(sourceKind(cfg)); err != nil {
		return nil, fmt.Errorf("gst: %w", err)
	}

	elements, err := CreatePipeline(cfg)
	if err != nil {
		return nil, fmt.Errorf("gst: failed to create pipeline: %w", err)
	}

	s := &session{
		elements: elements,
		started:  time.Now(),
	}
	s.lastSampleAt.Store(s.started.UnixNano())

	maxInFlight := int32(cfg.BufferCount)
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	var frameTime time.Duration
	if cfg.MaximumFPS > 0 {
		frameTime = time.Duration(float64(time.Second) / cfg.MaximumFPS)
	}

	callbackCtx := &CallbackContext{
		Handler:       h,
		Format:        cfg.PixelFormat,
		SourceWidth:   cfg.SourceWidth,
		FrameTime:     frameTime,
		StartedAt:     s.started,
		MaxInFlight:   maxInFlight,
		InFlight:      &s.inFlight,
		FrameCounter:  &s.frameCount,
		FramesDropped: &s.framesDropped,
		LastSampleAt:  &s.lastSampleAt,
	}
	elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return OnNewSample(sink, callbackCtx)
		},
	})

	if err := elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		DestroyPipeline(elements)
		return nil, fmt.Errorf("gst: failed to start pipeline: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	monitorCtx := &MonitorContext{
		Handler:      h,
		Errors:       &s.errors,
		FrameCounter: &s.frameCount,
		LastSampleAt: &s.lastSampleAt,
		IdleTimeout:  cfg.IdleTimeout,
		StartedAt:    s.started,
		Source:       sourceKind(cfg),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := MonitorPipelineBus(ctx, elements.Pipeline, monitorCtx); err != nil {
			slog.Error("gst: pipeline monitor failed", "error", err)
		}
	}()

	slog.Info("gst: capture session started",
		"source", sourceKind(cfg),
		"format", cfg.PixelFormat.String(),
		"buffer_count", maxInFlight,
	)

	return s, nil
}

// session is one running pipeline
type session struct {
	elements *PipelineElements
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  time.Time
	stopOnce sync.Once
	stopErr  error

	inFlight      atomic.Int32
	frameCount    atomic.Uint64
	framesDropped atomic.Uint64
	lastSampleAt  atomic.Int64
	errors        ErrorCounters
}

// Stop cancels the monitor, waits for it (timeout 3s) and sets the pipeline
// to NULL. Idempotent.
func (s *session) Stop() error {
	s.stopOnce.Do(func() {
		s.cancel()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			slog.Debug("gst: monitor stopped cleanly")
		case <-time.After(3 * time.Second):
			slog.Warn("gst: stop timeout exceeded, monitor may still be running")
		}

		s.stopErr = DestroyPipeline(s.elements)

		slog.Info("gst: capture session stopped",
			"frames_captured", s.frameCount.Load(),
			"frames_dropped", s.framesDropped.Load(),
			"errors_format", s.errors.Format.Load(),
			"errors_resource", s.errors.Resource.Load(),
			"errors_unknown", s.errors.Unknown.Load(),
			"uptime", time.Since(s.started),
		)
	})
	return s.stopErr
}
