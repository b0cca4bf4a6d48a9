package screencapture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/screen-capture/internal/audio"
	"github.com/e7canasta/screen-capture/internal/framestats"
	"github.com/e7canasta/screen-capture/internal/native"
	"github.com/e7canasta/screen-capture/internal/video"
	"github.com/google/uuid"
)

// Stream is a running capture session delivering events to one callback.
//
// Delivery contract:
//   - the callback is never invoked concurrently or reentrantly
//   - frame ids are strictly increasing from 0 per media kind
//   - exactly one EndEvent is delivered, whichever of Stop, Close or native
//     termination happens first
//   - once Stop returns, no callback begins except that EndEvent
type Stream struct {
	id  string
	cfg CaptureConfig
	cb  Callback

	// deliverMu serializes every callback invocation
	deliverMu sync.Mutex

	// stateMu guards the lifecycle flags; never held across a callback
	stateMu     sync.Mutex
	running     bool
	stopped     bool
	dispatching bool
	endOwed     bool

	sessions []native.Session
	done     chan struct{}

	videoSeq atomic.Uint64
	audioSeq atomic.Uint64

	idleCount  atomic.Uint64
	errorCount atomic.Uint64
	suppressed atomic.Uint64
	window     *framestats.Window
	started    time.Time
	stoppedAt  atomic.Int64
}

// SupportedPixelFormats lists the formats the default video backend produces
func SupportedPixelFormats() []PixelFormat {
	return video.NewBackend().SupportedPixelFormats()
}

// New validates cfg and starts capturing. cb receives every event; it must
// not block for long since native delivery waits on it.
//
// On error no event is ever delivered.
func New(cfg CaptureConfig, cb Callback) (*Stream, error) {
	var ab native.AudioBackend
	if cfg.Audio != nil {
		if cfg.Audio.Backend == "miniaudio" {
			ab = audio.NewMiniaudioBackend()
		} else {
			ab = audio.NewPulseBackend()
		}
	}
	return newStream(cfg, video.NewBackend(), ab, cb)
}

func newStream(cfg CaptureConfig, vb native.VideoBackend, ab native.AudioBackend, cb Callback) (*Stream, error) {
	// Fail-fast validation: callback, config, access, pixel format
	if cb == nil {
		return nil, &CreateError{Kind: CreateOther, Message: "callback is required"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, createErrorFromConfig(err)
	}
	if !cfg.Access.Valid() {
		return nil, &CreateError{Kind: CreateAccessDenied, Message: "no access token; call TestAccess or RequestAccess"}
	}
	if !native.Supports(vb.SupportedPixelFormats(), cfg.PixelFormat) {
		return nil, &CreateError{
			Kind:    CreateUnsupportedPixelFormat,
			Message: fmt.Sprintf("%s backend cannot produce %s", vb.Name(), cfg.PixelFormat),
		}
	}
	if cfg.Audio != nil && ab == nil {
		return nil, &CreateError{Kind: CreateOther, Message: "audio requested but no audio backend available"}
	}

	s := &Stream{
		id:      uuid.New().String(),
		cfg:     cfg,
		cb:      cb,
		done:    make(chan struct{}),
		window:  framestats.NewWindow(framestats.DefaultWindow),
		started: time.Now(),
	}
	h := &handler{s: s}

	vcfg, err := s.videoConfig()
	if err != nil {
		return nil, &CreateError{Kind: CreateInvalidTarget, Err: err}
	}

	vsess, err := vb.StartVideo(vcfg, h)
	if err != nil {
		s.abort()
		kind := CreateOther
		if errors.Is(err, native.ErrUnsupportedPixelFormat) {
			kind = CreateUnsupportedPixelFormat
		}
		return nil, &CreateError{Kind: kind, Message: vb.Name() + " video session", Err: err}
	}
	s.sessions = append(s.sessions, vsess)

	if cfg.Audio != nil {
		asess, err := ab.StartAudio(native.AudioConfig{
			SampleRate:            int(cfg.Audio.SampleRate),
			Channels:              int(cfg.Audio.ChannelCount),
			ExcludeCurrentProcess: cfg.Audio.ExcludeCurrentProcess,
		}, h)
		if err != nil {
			s.abort()
			if stopErr := vsess.Stop(); stopErr != nil {
				slog.Warn("screen-capture: failed to stop video session after audio failure",
					"stream_id", s.id,
					"error", stopErr,
				)
			}
			return nil, &CreateError{Kind: CreateOther, Message: ab.Name() + " audio session", Err: err}
		}
		s.sessions = append(s.sessions, asess)
	}

	s.stateMu.Lock()
	ended := s.stopped
	s.running = !ended
	s.stateMu.Unlock()

	if ended {
		if err := s.teardown(); err != nil {
			slog.Warn("screen-capture: teardown after setup failure",
				"stream_id", s.id,
				"error", err,
			)
		}
		return nil, &CreateError{Kind: CreateOther, Message: "native session ended during setup"}
	}

	slog.Info("screen-capture: stream started",
		"stream_id", s.id,
		"target", cfg.Target.String(),
		"pixel_format", cfg.PixelFormat.String(),
		"output_size", cfg.OutputSize.String(),
		"video_backend", vb.Name(),
		"audio", cfg.Audio != nil,
	)

	return s, nil
}

// abort marks a stream whose construction failed; no End is delivered
func (s *Stream) abort() {
	s.stateMu.Lock()
	s.stopped = true
	s.stateMu.Unlock()
}

func (s *Stream) videoConfig() (native.VideoConfig, error) {
	cfg := s.cfg
	vc := native.VideoConfig{
		TargetID:     cfg.Target.ID(),
		OriginX:      int(cfg.Target.Rect().Origin.X),
		OriginY:      int(cfg.Target.Rect().Origin.Y),
		TargetWidth:  int(cfg.Target.Rect().Size.Width),
		TargetHeight: int(cfg.Target.Rect().Size.Height),
		PipeWireFD:   -1,
		SourceX:      int(cfg.SourceRect.Origin.X),
		SourceY:      int(cfg.SourceRect.Origin.Y),
		SourceWidth:  int(cfg.SourceRect.Size.Width),
		SourceHeight: int(cfg.SourceRect.Size.Height),
		Width:        int(cfg.OutputSize.Width),
		Height:       int(cfg.OutputSize.Height),
		PixelFormat:  cfg.PixelFormat,
		ShowCursor:   cfg.ShowCursor,
		MaximumFPS:   cfg.MaximumFPS,
		BufferCount:  cfg.BufferCount,
		QueueDepth:   cfg.QueueDepth,
		ScaleToFit:   cfg.ScaleToFit,
		KeepAspect:   cfg.PreserveAspectRatio,
		IdleTimeout:  cfg.IdleTimeout,
	}
	switch cfg.Target.Kind() {
	case TargetWindow:
		vc.Kind = native.TargetWindow
	case TargetDisplay:
		vc.Kind = native.TargetDisplay
	default:
		return vc, fmt.Errorf("target kind %s", cfg.Target.Kind())
	}
	if err := cfg.Access.apply(&vc); err != nil {
		return vc, err
	}
	return vc, nil
}

// ID returns the unique stream identifier used in logs
func (s *Stream) ID() string { return s.id }

// Config returns the validated configuration the stream runs with
func (s *Stream) Config() CaptureConfig { return s.cfg }

// Done is closed once the EndEvent has been delivered
func (s *Stream) Done() <-chan struct{} { return s.done }

// Stop halts capture and delivers the EndEvent. It is idempotent and safe
// to call from any goroutine, including from inside the callback.
//
// If a callback is running when Stop is called, Stop does not wait for it:
// the EndEvent follows as soon as that callback returns, and the native
// session is torn down in the background. Use Done to wait for the end.
// A second Stop returns nil.
func (s *Stream) Stop() error {
	return s.terminate(true, "stop")
}

// Close is Stop for use with defer; it has the same single-End semantics
func (s *Stream) Close() error {
	return s.terminate(true, "close")
}

// terminate is the single path to the stopped state. syncTeardown is false
// when called from a backend goroutine, which must not stop its own session.
func (s *Stream) terminate(syncTeardown bool, reason string) error {
	s.stateMu.Lock()
	if s.stopped {
		s.stateMu.Unlock()
		return nil
	}
	if !s.running {
		// construction still in progress; New reports the failure
		s.stopped = true
		s.stateMu.Unlock()
		return nil
	}
	s.stopped = true
	inFlight := s.dispatching
	if inFlight {
		s.endOwed = true
	}
	s.stateMu.Unlock()
	s.stoppedAt.Store(time.Now().UnixNano())

	slog.Info("screen-capture: stopping stream",
		"stream_id", s.id,
		"reason", reason,
		"callback_in_flight", inFlight,
		"video_frames", s.videoSeq.Load(),
		"audio_frames", s.audioSeq.Load(),
		"uptime", time.Since(s.started),
	)

	if inFlight || !syncTeardown {
		go func() {
			if err := s.teardown(); err != nil {
				slog.Warn("screen-capture: native teardown failed",
					"stream_id", s.id,
					"error", err,
				)
			}
		}()
		if inFlight {
			// the dispatching goroutine delivers End when its callback returns
			return nil
		}
		s.deliverMu.Lock()
		s.emitEnd()
		s.deliverMu.Unlock()
		return nil
	}

	err := s.teardown()

	s.deliverMu.Lock()
	s.emitEnd()
	s.deliverMu.Unlock()

	return err
}

func (s *Stream) teardown() error {
	var errs []error
	for i := len(s.sessions) - 1; i >= 0; i-- {
		if err := s.sessions[i].Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &StopError{Errs: errs}
	}
	return nil
}

// emitEnd delivers the EndEvent; caller holds deliverMu
func (s *Stream) emitEnd() {
	s.cb(EndEvent{}, nil)
	close(s.done)
	slog.Info("screen-capture: stream ended",
		"stream_id", s.id,
		"video_frames", s.videoSeq.Load(),
		"audio_frames", s.audioSeq.Load(),
		"suppressed", s.suppressed.Load(),
	)
}

// enter claims the dispatch slot; caller holds deliverMu
func (s *Stream) enter() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if !s.running || s.stopped {
		return false
	}
	s.dispatching = true
	return true
}

// leave releases the dispatch slot, delivering an End that a concurrent
// terminate left owed; caller holds deliverMu
func (s *Stream) leave() {
	s.stateMu.Lock()
	s.dispatching = false
	owed := s.endOwed
	s.endOwed = false
	s.stateMu.Unlock()

	if owed {
		s.emitEnd()
	}
}

// deliver runs prepare and the callback under the delivery lock. prepare is
// only called once the event is accepted, so ids are assigned without gaps.
// It returns false if the stream is not running.
func (s *Stream) deliver(prepare func() (StreamEvent, func(), error)) bool {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	if !s.enter() {
		s.suppressed.Add(1)
		return false
	}
	defer s.leave()

	event, cleanup, err := prepare()
	if cleanup != nil {
		defer cleanup()
	}
	s.cb(event, err)
	return true
}

// Stats returns a snapshot of the stream counters
func (s *Stream) Stats() Stats {
	s.stateMu.Lock()
	running := s.running && !s.stopped
	s.stateMu.Unlock()

	uptime := time.Since(s.started)
	if at := s.stoppedAt.Load(); at != 0 {
		uptime = time.Unix(0, at).Sub(s.started)
	}

	return Stats{
		ID:          s.id,
		VideoFrames: s.videoSeq.Load(),
		AudioFrames: s.audioSeq.Load(),
		IdleEvents:  s.idleCount.Load(),
		Errors:      s.errorCount.Load(),
		Suppressed:  s.suppressed.Load(),
		Running:     running,
		Uptime:      uptime,
		FPS:         fromInternal(s.window.Stats()),
	}
}

// handler adapts backend deliveries onto the stream
type handler struct {
	s *Stream
}

func (h *handler) Video(sample native.VideoSample) {
	captured := time.Now()
	s := h.s

	accepted := s.deliver(func() (StreamEvent, func(), error) {
		frame := newVideoFrame(s.videoSeq.Add(1)-1, captured, sample)
		s.window.Add(captured)
		slog.Debug("screen-capture: video frame",
			"stream_id", s.id,
			"frame_id", frame.id,
			"size", frame.Size().String(),
		)
		return VideoEvent{Frame: frame}, frame.Release, nil
	})
	if !accepted && sample.Release != nil {
		sample.Release()
	}
}

func (h *handler) Audio(sample native.AudioSample) {
	captured := time.Now()
	s := h.s

	s.deliver(func() (StreamEvent, func(), error) {
		frame := newAudioFrame(s.audioSeq.Add(1)-1, captured, sample)
		return AudioEvent{Frame: frame}, nil, nil
	})
}

func (h *handler) Idle() {
	s := h.s
	s.deliver(func() (StreamEvent, func(), error) {
		s.idleCount.Add(1)
		return IdleEvent{}, nil, nil
	})
}

// categorized is implemented by backend errors carrying a classification
type categorized interface {
	Category() string
}

func (h *handler) Error(err error) {
	s := h.s

	if errors.Is(err, native.ErrStreamStopped) {
		slog.Info("screen-capture: native stream ended",
			"stream_id", s.id,
			"reason", err.Error(),
		)
		s.terminate(false, "native end")
		return
	}

	s.deliver(func() (StreamEvent, func(), error) {
		s.errorCount.Add(1)
		streamErr := &StreamError{Err: err}
		var c categorized
		if errors.As(err, &c) {
			streamErr.Category = c.Category()
		}
		slog.Warn("screen-capture: stream error",
			"stream_id", s.id,
			"category", streamErr.Category,
			"error", err,
		)
		return nil, nil, streamErr
	})
}
