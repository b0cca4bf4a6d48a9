package video

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/e7canasta/screen-capture/internal/native"
	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCounters holds atomic counters per error category
type ErrorCounters struct {
	Permission atomic.Uint64
	Format     atomic.Uint64
	Ended      atomic.Uint64
	Resource   atomic.Uint64
	Unknown    atomic.Uint64
}

func (c *ErrorCounters) add(category ErrorCategory) {
	switch category {
	case ErrCategoryPermission:
		c.Permission.Add(1)
	case ErrCategoryFormat:
		c.Format.Add(1)
	case ErrCategoryEnded:
		c.Ended.Add(1)
	case ErrCategoryResource:
		c.Resource.Add(1)
	default:
		c.Unknown.Add(1)
	}
}

// MonitorContext holds what the bus monitor needs besides the pipeline
type MonitorContext struct {
	Handler      native.Handler
	Errors       *ErrorCounters
	FrameCounter *atomic.Uint64
	LastSampleAt *atomic.Int64 // unix nanos, written by OnNewSample
	IdleTimeout  time.Duration
	StartedAt    time.Time
	Source       string
}

// idleWatch emits one Idle per gap of at least timeout between samples
type idleWatch struct {
	timeout time.Duration
	since   int64 // LastSampleAt value the current gap started from
	fired   bool
}

// check reports whether an Idle is due at now given the last sample time
func (w *idleWatch) check(last int64, now time.Time) bool {
	if w.timeout <= 0 {
		return false
	}
	if last != w.since {
		w.since = last
		w.fired = false
	}
	if w.fired || now.Sub(time.Unix(0, last)) < w.timeout {
		return false
	}
	w.fired = true
	return true
}

// MonitorPipelineBus monitors the GStreamer pipeline bus for messages
//
// This function:
//  1. Polls the bus (EOS, Error, Warning, StateChanged)
//  2. Classifies errors and updates counters atomically
//  3. Reports warnings as non-terminal errors
//  4. Reports EOS and errors as native stream end (GStreamer halts on ERROR)
//  5. Emits Idle when no sample arrives within the idle timeout
//
// Returns when ctx is cancelled or the stream has ended.
func MonitorPipelineBus(ctx context.Context, pipeline *gst.Pipeline, mc *MonitorContext) error {
	if pipeline == nil {
		return fmt.Errorf("pipeline not initialized")
	}

	bus := pipeline.GetPipelineBus()
	idle := &idleWatch{timeout: mc.IdleTimeout, since: mc.LastSampleAt.Load()}

	for {
		select {
		case <-ctx.Done():
			slog.Debug("gst: context cancelled, stopping pipeline monitor")
			return nil

		default:
			if idle.check(mc.LastSampleAt.Load(), time.Now()) {
				slog.Debug("gst: no new samples, stream idle", "timeout", mc.IdleTimeout)
				mc.Handler.Idle()
			}

			// Poll for messages with short timeout for responsive shutdown
			msg := bus.TimedPop(50 * time.Millisecond)
			if msg == nil {
				continue
			}

			switch msg.Type() {
			case gst.MessageEOS:
				slog.Info("gst: end of stream received",
					"source", mc.Source,
					"uptime", time.Since(mc.StartedAt),
					"frames_processed", mc.FrameCounter.Load(),
				)
				mc.Handler.Error(fmt.Errorf("gst: end of stream: %w", native.ErrStreamStopped))
				return nil

			case gst.MessageWarning:
				gerr := msg.ParseWarning()
				category := ClassifyGStreamerError(gerr)
				slog.Warn("gst: pipeline warning",
					"error", gerr.Error(),
					"debug", gerr.DebugString(),
					"category", category.String(),
				)
				mc.Handler.Error(&PipelineError{
					category: category,
					Message:  gerr.Error(),
					Debug:    gerr.DebugString(),
					Warning:  true,
				})

			case gst.MessageError:
				gerr := msg.ParseError()
				category := ClassifyGStreamerError(gerr)
				mc.Errors.add(category)

				slog.Error("gst: pipeline error",
					"error", gerr.Error(),
					"debug", gerr.DebugString(),
					"category", category.String(),
					"source", mc.Source,
					"uptime", time.Since(mc.StartedAt),
					"frames_processed", mc.FrameCounter.Load(),
				)

				perr := &PipelineError{category: category, Message: gerr.Error(), Debug: gerr.DebugString()}
				if category != ErrCategoryEnded {
					mc.Handler.Error(perr)
				}
				mc.Handler.Error(fmt.Errorf("gst: pipeline halted: %w", endedError{perr}))
				return nil

			case gst.MessageStateChanged:
				if msg.Source() == pipeline.GetName() {
					old, new := msg.ParseStateChanged()
					slog.Debug("gst: pipeline state changed",
						"from", old,
						"to", new,
					)
				}
			}
		}
	}
}

// endedError marks a pipeline error as the end of the native stream
type endedError struct {
	cause *PipelineError
}

func (e endedError) Error() string { return e.cause.Error() }

func (e endedError) Unwrap() []error {
	return []error{e.cause, native.ErrStreamStopped}
}
