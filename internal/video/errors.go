package video

import (
	"fmt"
	"strings"

	"github.com/e7canasta/screen-capture/internal/native"
	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory is the classification of GStreamer errors for telemetry
type ErrorCategory int

const (
	// ErrCategoryPermission indicates the compositor or portal refused access
	ErrCategoryPermission ErrorCategory = iota
	// ErrCategoryFormat indicates caps negotiation or format failures
	ErrCategoryFormat
	// ErrCategoryEnded indicates the capture source went away (window closed, node removed)
	ErrCategoryEnded
	// ErrCategoryResource indicates display, device or memory failures
	ErrCategoryResource
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryPermission:
		return "permission"
	case ErrCategoryFormat:
		return "format"
	case ErrCategoryEnded:
		return "ended"
	case ErrCategoryResource:
		return "resource"
	default:
		return "unknown"
	}
}

// PipelineError is a classified GStreamer bus error or warning
type PipelineError struct {
	category ErrorCategory
	Message  string
	Debug    string
	Warning  bool
}

// Category implements the classification hook read by the stream
func (e *PipelineError) Category() string { return e.category.String() }

func (e *PipelineError) Error() string {
	kind := "error"
	if e.Warning {
		kind = "warning"
	}
	return fmt.Sprintf("gst: pipeline %s [%s]: %s", kind, e.category, e.Message)
}

// Unwrap makes source loss match native.ErrStreamStopped
func (e *PipelineError) Unwrap() error {
	if e.category == ErrCategoryEnded {
		return native.ErrStreamStopped
	}
	return nil
}

// ClassifyGStreamerError categorizes a GStreamer error.
//
// go-gst's GError does not expose the domain, so classification relies on
// keyword matching over the message and debug string.
func ClassifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return classify(gerr.Error(), gerr.DebugString())
}

func classify(msg, debug string) ErrorCategory {
	combined := strings.ToLower(msg + " " + debug)

	// Priority 1: permission (most specific)
	if containsAny(combined, permissionKeywords) {
		return ErrCategoryPermission
	}
	// Priority 2: source gone
	if containsAny(combined, endedKeywords) {
		return ErrCategoryEnded
	}
	// Priority 3: negotiation and formats
	if containsAny(combined, formatKeywords) {
		return ErrCategoryFormat
	}
	// Priority 4: resources
	if containsAny(combined, resourceKeywords) {
		return ErrCategoryResource
	}
	return ErrCategoryUnknown
}

var (
	permissionKeywords = []string{
		"permission denied",
		"not authorized",
		"access denied",
		"badaccess",
		"portal",
	}
	endedKeywords = []string{
		"window closed",
		"window was closed",
		"badwindow",
		"node removed",
		"stream ended",
		"target not found",
		"no longer exists",
	}
	formatKeywords = []string{
		"not negotiated",
		"not-negotiated",
		"negotiation",
		"caps",
		"format",
		"no converter",
	}
	resourceKeywords = []string{
		"could not open display",
		"cannot open display",
		"out of memory",
		"shm",
		"resource",
		"device",
		"busy",
	}
)

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
