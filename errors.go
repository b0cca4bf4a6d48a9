package screencapture

import (
	"errors"
	"fmt"
)

// CreateErrorKind classifies stream construction failures
type CreateErrorKind int

const (
	// CreateOther covers invalid configuration and native setup failures
	CreateOther CreateErrorKind = iota
	// CreateUnsupportedPixelFormat means the backend cannot produce the format
	CreateUnsupportedPixelFormat
	// CreateInvalidTarget means the capture target is missing or unusable
	CreateInvalidTarget
	// CreateAccessDenied means no access token was granted
	CreateAccessDenied
)

func (k CreateErrorKind) String() string {
	switch k {
	case CreateUnsupportedPixelFormat:
		return "unsupported pixel format"
	case CreateInvalidTarget:
		return "invalid target"
	case CreateAccessDenied:
		return "access denied"
	default:
		return "other"
	}
}

// CreateError is returned by New. No events are ever delivered for a stream
// whose construction failed.
type CreateError struct {
	Kind    CreateErrorKind
	Message string
	Err     error
}

func (e *CreateError) Error() string {
	msg := "screen-capture: create stream: " + e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CreateError) Unwrap() error {
	return e.Err
}

// StreamError is a per-delivery failure. It reaches the callback as the
// error argument and does not end the stream.
type StreamError struct {
	// Category is the backend classification (e.g. "format", "resource")
	Category string
	Err      error
}

func (e *StreamError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("screen-capture: stream error [%s]: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("screen-capture: stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// StopError reports a native teardown failure from Stop. The stream is
// stopped regardless and its End event has been delivered or scheduled.
type StopError struct {
	Errs []error
}

func (e *StopError) Error() string {
	return "screen-capture: stop: " + errors.Join(e.Errs...).Error()
}

func (e *StopError) Unwrap() []error {
	return e.Errs
}

// AccessErrorKind classifies permission failures
type AccessErrorKind int

const (
	// AccessDenied means the user or system refused capture
	AccessDenied AccessErrorKind = iota
	// AccessUnavailable means no capture mechanism is reachable
	AccessUnavailable
)

func (k AccessErrorKind) String() string {
	if k == AccessUnavailable {
		return "unavailable"
	}
	return "denied"
}

// AccessError is returned when capture permission cannot be obtained
type AccessError struct {
	Kind AccessErrorKind
	Err  error
}

func (e *AccessError) Error() string {
	if e.Err == nil {
		return "screen-capture: access " + e.Kind.String()
	}
	return fmt.Sprintf("screen-capture: access %s: %v", e.Kind, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// ConfigErrorKind classifies configuration validation failures
type ConfigErrorKind int

const (
	ConfigUnsupportedPixelFormat ConfigErrorKind = iota
	ConfigInvalidBufferCount
	ConfigInvalidQueueDepth
	ConfigInvalidFrameRate
	ConfigInvalidAudio
	ConfigInvalidTarget
	ConfigInvalidSize
)

// ConfigError is returned by CaptureConfig.Validate and LoadConfig
type ConfigError struct {
	Kind    ConfigErrorKind
	Message string
}

func (e *ConfigError) Error() string {
	return "screen-capture: invalid config: " + e.Message
}

// createErrorFromConfig maps a validation failure onto the create taxonomy
func createErrorFromConfig(err error) *CreateError {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Kind {
		case ConfigUnsupportedPixelFormat:
			return &CreateError{Kind: CreateUnsupportedPixelFormat, Err: err}
		case ConfigInvalidTarget:
			return &CreateError{Kind: CreateInvalidTarget, Err: err}
		}
	}
	return &CreateError{Kind: CreateOther, Err: err}
}
