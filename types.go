package screencapture

import (
	"fmt"

	"github.com/e7canasta/screen-capture/bitmap"
)

// Point is a position in target coordinates
type Point struct {
	X float64
	Y float64
}

// Size is a width/height pair in pixels
type Size struct {
	Width  float64
	Height float64
}

// IsZero reports whether either dimension is zero
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Scaled returns the size multiplied by factor
func (s Size) Scaled(factor float64) Size {
	return Size{Width: s.Width * factor, Height: s.Height * factor}
}

func (s Size) String() string {
	return fmt.Sprintf("%.0fx%.0f", s.Width, s.Height)
}

// Rect is an origin plus a size
type Rect struct {
	Origin Point
	Size   Size
}

// Application identifies the process owning a window
type Application struct {
	// PID is the owning process id (0 when unknown)
	PID int
	// Name is the human-readable application name
	Name string
	// ID is the platform application identifier (desktop file id, WM_CLASS)
	ID string
}

// Window is a capturable window as produced by a content enumerator
type Window struct {
	// ID is the native window handle (X11 XID)
	ID uint64
	// Title is the window title at enumeration time
	Title string
	// Rect is the window frame in screen coordinates
	Rect Rect
	// App is the owning application
	App Application
}

// Display is a capturable display as produced by a content enumerator
type Display struct {
	// ID is the native display or monitor index
	ID uint64
	// Name is the output name (e.g. "eDP-1") or X11 display (":0")
	Name string
	// Rect is the display frame in screen coordinates
	Rect Rect
}

// TargetKind tells which of Window or Display a Target holds
type TargetKind int

const (
	// TargetNone is the zero value; a config with it does not validate
	TargetNone TargetKind = iota
	// TargetWindow captures a single window
	TargetWindow
	// TargetDisplay captures a whole display
	TargetDisplay
)

func (k TargetKind) String() string {
	switch k {
	case TargetWindow:
		return "window"
	case TargetDisplay:
		return "display"
	default:
		return "none"
	}
}

// Target is an opaque handle to a window or display eligible for capture
type Target struct {
	kind    TargetKind
	window  Window
	display Display
}

// WindowTarget wraps a window
func WindowTarget(w Window) Target {
	return Target{kind: TargetWindow, window: w}
}

// DisplayTarget wraps a display
func DisplayTarget(d Display) Target {
	return Target{kind: TargetDisplay, display: d}
}

// Kind returns what the target refers to
func (t Target) Kind() TargetKind { return t.kind }

// Window returns the wrapped window, if any
func (t Target) Window() (Window, bool) { return t.window, t.kind == TargetWindow }

// Display returns the wrapped display, if any
func (t Target) Display() (Display, bool) { return t.display, t.kind == TargetDisplay }

// Rect returns the target frame
func (t Target) Rect() Rect {
	if t.kind == TargetWindow {
		return t.window.Rect
	}
	return t.display.Rect
}

// ID returns the native handle of the target
func (t Target) ID() uint64 {
	if t.kind == TargetWindow {
		return t.window.ID
	}
	return t.display.ID
}

// AppID returns the owning application identifier for window targets
func (t Target) AppID() string {
	if t.kind == TargetWindow {
		return t.window.App.ID
	}
	return ""
}

func (t Target) String() string {
	switch t.kind {
	case TargetWindow:
		return fmt.Sprintf("window(%d %q)", t.window.ID, t.window.Title)
	case TargetDisplay:
		return fmt.Sprintf("display(%d %q)", t.display.ID, t.display.Name)
	default:
		return "none"
	}
}

// PixelFormat is the capture pixel format
type PixelFormat = bitmap.PixelFormat

// Capture pixel formats
const (
	BGRA8888    = bitmap.BGRA8888
	ARGB2101010 = bitmap.ARGB2101010
	V420        = bitmap.V420
	F420        = bitmap.F420
)

// capturePixelFormats are the formats a CaptureConfig may request
var capturePixelFormats = []PixelFormat{BGRA8888, ARGB2101010, V420, F420}

// AudioSampleRate is the rate at which audio is captured
type AudioSampleRate int

const (
	Hz8000  AudioSampleRate = 8000
	Hz16000 AudioSampleRate = 16000
	Hz24000 AudioSampleRate = 24000
	Hz48000 AudioSampleRate = 48000
)

func (r AudioSampleRate) valid() bool {
	switch r {
	case Hz8000, Hz16000, Hz24000, Hz48000:
		return true
	}
	return false
}

// AudioChannelCount is the number of captured audio channels
type AudioChannelCount int

const (
	Mono   AudioChannelCount = 1
	Stereo AudioChannelCount = 2
)

func (c AudioChannelCount) String() string {
	switch c {
	case Mono:
		return "mono"
	case Stereo:
		return "stereo"
	default:
		return fmt.Sprintf("channels(%d)", int(c))
	}
}
