package screencapture

// EventKind names the variants of StreamEvent
type EventKind int

const (
	EventVideo EventKind = iota
	EventAudio
	EventIdle
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventVideo:
		return "video"
	case EventAudio:
		return "audio"
	case EventIdle:
		return "idle"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// StreamEvent is one successful delivery to a stream callback. The concrete
// type is one of VideoEvent, AudioEvent, IdleEvent or EndEvent:
//
//	switch ev := event.(type) {
//	case screencapture.VideoEvent:
//	    bm, err := ev.Frame.Bitmap()
//	case screencapture.AudioEvent:
//	case screencapture.IdleEvent:
//	case screencapture.EndEvent:
//	}
type StreamEvent interface {
	Kind() EventKind
	streamEvent()
}

// VideoEvent carries a captured video frame. The frame is valid for the
// duration of the callback; call Frame.Retain to keep it longer.
type VideoEvent struct {
	Frame *VideoFrame
}

// AudioEvent carries a captured audio frame
type AudioEvent struct {
	Frame *AudioFrame
}

// IdleEvent reports that the native session produced no new content
type IdleEvent struct{}

// EndEvent is the last event of every stream, delivered exactly once
type EndEvent struct{}

func (VideoEvent) Kind() EventKind { return EventVideo }
func (AudioEvent) Kind() EventKind { return EventAudio }
func (IdleEvent) Kind() EventKind  { return EventIdle }
func (EndEvent) Kind() EventKind   { return EventEnd }

func (VideoEvent) streamEvent() {}
func (AudioEvent) streamEvent() {}
func (IdleEvent) streamEvent()  {}
func (EndEvent) streamEvent()   {}

// Callback receives one event-or-error per delivery. Exactly one of event
// and err is non-nil. Invocations are never concurrent or reentrant.
type Callback func(event StreamEvent, err error)
