package screencapture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/e7canasta/screen-capture/internal/native"
	"github.com/e7canasta/screen-capture/internal/portal"
)

type accessKind int

const (
	accessNone accessKind = iota
	accessX11
	accessPortal
)

// AccessToken is proof that capture was permitted. On X11 access is implicit
// and the token names the display; on Wayland it carries the ScreenCast
// portal session and its PipeWire source.
type AccessToken struct {
	kind    accessKind
	display string
	session *portal.Session
}

// Valid reports whether the token grants capture
func (t AccessToken) Valid() bool { return t.kind != accessNone }

// Portal reports whether the token came from the ScreenCast portal
func (t AccessToken) Portal() bool { return t.kind == accessPortal }

// RestoreToken returns the portal restore token, if any
func (t AccessToken) RestoreToken() string {
	if t.session == nil {
		return ""
	}
	return t.session.RestoreToken()
}

func (t AccessToken) String() string {
	switch t.kind {
	case accessX11:
		return "x11(" + t.display + ")"
	case accessPortal:
		return fmt.Sprintf("portal(fd=%d)", t.session.FD())
	default:
		return "none"
	}
}

// Release closes the portal session; a no-op for X11 tokens. Streams
// created with the token must be stopped first.
func (t AccessToken) Release() error {
	if t.session == nil {
		return nil
	}
	return t.session.Close()
}

// apply points the video backend at the source the token grants
func (t AccessToken) apply(vc *native.VideoConfig) error {
	switch t.kind {
	case accessX11:
		vc.DisplayName = t.display
	case accessPortal:
		streams := t.session.Streams()
		if len(streams) == 0 {
			return errors.New("portal session has no streams")
		}
		vc.PipeWireFD = t.session.FD()
		vc.PipeWireNode = streams[0].NodeID
	default:
		return errors.New("no access token")
	}
	return nil
}

func waylandSession() bool {
	return os.Getenv("WAYLAND_DISPLAY") != "" || os.Getenv("XDG_SESSION_TYPE") == "wayland"
}

// TestAccess reports whether capture is possible without asking the user.
// It never blocks. On Wayland it always returns false; use RequestAccess.
func TestAccess() (AccessToken, bool) {
	if waylandSession() {
		return AccessToken{}, false
	}
	display := os.Getenv("DISPLAY")
	if display == "" {
		return AccessToken{}, false
	}
	return AccessToken{kind: accessX11, display: display}, true
}

// AccessOptions tune the portal request on Wayland
type AccessOptions struct {
	// Windows lets the user pick a window in addition to monitors
	Windows bool
	// ShowCursor embeds the cursor in the shared stream
	ShowCursor bool
	// RestoreToken skips the dialog if the portal still honors it
	RestoreToken string
}

// RequestAccess obtains capture permission. On Wayland it shows the
// ScreenCast portal dialog and blocks until the user answers or ctx is done.
func RequestAccess(ctx context.Context, opts AccessOptions) (AccessToken, error) {
	if token, ok := TestAccess(); ok {
		return token, nil
	}
	if !waylandSession() {
		return AccessToken{}, &AccessError{Kind: AccessUnavailable, Err: errors.New("no X11 display or Wayland session")}
	}
	if !portal.Available() {
		return AccessToken{}, &AccessError{Kind: AccessUnavailable, Err: errors.New("xdg-desktop-portal ScreenCast not available")}
	}

	popts := portal.Options{
		Types:        portal.SourceMonitor,
		CursorMode:   portal.CursorHidden,
		RestoreToken: opts.RestoreToken,
	}
	if opts.Windows {
		popts.Types |= portal.SourceWindow
	}
	if opts.ShowCursor {
		popts.CursorMode = portal.CursorEmbedded
	}

	sess, err := portal.Open(ctx, popts)
	if err != nil {
		if errors.Is(err, portal.ErrCancelled) || errors.Is(err, portal.ErrNoStreams) {
			return AccessToken{}, &AccessError{Kind: AccessDenied, Err: err}
		}
		return AccessToken{}, &AccessError{Kind: AccessUnavailable, Err: err}
	}

	slog.Info("screen-capture: access granted via portal",
		"streams", len(sess.Streams()),
	)
	return AccessToken{kind: accessPortal, session: sess}, nil
}
