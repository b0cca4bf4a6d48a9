// Package portal negotiates screen capture through the xdg-desktop-portal
// ScreenCast interface on the D-Bus session bus.
//
// A successful Open yields a PipeWire remote fd and the node ids of the
// streams the user selected; both are consumed by the pipewiresrc element.
package portal

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	objectName   = "org.freedesktop.portal.Desktop"
	objectPath   = "/org/freedesktop/portal/desktop"
	requestPath  = objectPath + "/request/"
	propertyGet  = "org.freedesktop.DBus.Properties.Get"
	castIface    = "org.freedesktop.portal.ScreenCast"
	requestIface = "org.freedesktop.portal.Request"
	sessionIface = "org.freedesktop.portal.Session"
)

// Source types
const (
	SourceMonitor uint32 = 1
	SourceWindow  uint32 = 2
)

// Cursor modes
const (
	CursorHidden   uint32 = 1
	CursorEmbedded uint32 = 2
)

// Response statuses of org.freedesktop.portal.Request
const (
	responseSuccess   uint32 = 0
	responseCancelled uint32 = 1
)

var (
	// ErrCancelled is returned when the user dismisses the portal dialog
	ErrCancelled = errors.New("portal: request cancelled by user")
	// ErrNoStreams is returned when Start succeeds without any stream
	ErrNoStreams = errors.New("portal: no streams selected")
	// ErrUnexpectedResponse is returned on malformed portal replies
	ErrUnexpectedResponse = errors.New("portal: unexpected response")
)

// Options select what the user is asked to share
type Options struct {
	Types      uint32
	CursorMode uint32
	// RestoreToken reuses a previous selection without a dialog
	RestoreToken string
}

// Stream is one shared source
type Stream struct {
	NodeID     uint32
	Position   [2]int32
	Size       [2]int32
	SourceType uint32
}

// Session is an open ScreenCast session
type Session struct {
	conn         *dbus.Conn
	path         dbus.ObjectPath
	fd           int
	streams      []Stream
	restoreToken string
}

// FD is the PipeWire remote file descriptor
func (s *Session) FD() int { return s.fd }

// Streams returns the shared sources
func (s *Session) Streams() []Stream { return s.streams }

// RestoreToken can be passed in Options to skip the dialog next time
func (s *Session) RestoreToken() string { return s.restoreToken }

// Close ends the portal session. The PipeWire fd is owned by the pipeline
// that consumed it.
func (s *Session) Close() error {
	obj := s.conn.Object(objectName, s.path)
	if call := obj.Call(sessionIface+".Close", 0); call.Err != nil {
		return fmt.Errorf("portal: close session: %w", call.Err)
	}
	slog.Debug("portal: session closed", "path", s.path)
	return nil
}

// Available reports whether a ScreenCast portal answers on the session bus
func Available() bool {
	conn, err := dbus.SessionBus()
	if err != nil {
		return false
	}
	var v dbus.Variant
	err = conn.Object(objectName, objectPath).
		Call(propertyGet, 0, castIface, "AvailableSourceTypes").
		Store(&v)
	return err == nil
}

// Open runs CreateSession, SelectSources, Start and OpenPipeWireRemote.
// Start shows the portal dialog, so Open blocks until the user answers or
// ctx is done.
func Open(ctx context.Context, opts Options) (*Session, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("portal: session bus: %w", err)
	}

	c := &client{conn: conn, obj: conn.Object(objectName, objectPath)}

	results, err := c.request(ctx, "CreateSession", func(token string) []any {
		return []any{map[string]dbus.Variant{
			"handle_token":         dbus.MakeVariant(token),
			"session_handle_token": dbus.MakeVariant(newToken()),
		}}
	})
	if err != nil {
		return nil, err
	}
	handle, ok := results["session_handle"].Value().(string)
	if !ok {
		return nil, fmt.Errorf("%w: session_handle missing", ErrUnexpectedResponse)
	}
	sess := &Session{conn: conn, path: dbus.ObjectPath(handle), fd: -1}

	slog.Debug("portal: session created", "path", sess.path)

	_, err = c.request(ctx, "SelectSources", func(token string) []any {
		data := map[string]dbus.Variant{
			"handle_token": dbus.MakeVariant(token),
			"types":        dbus.MakeVariant(opts.Types),
			"persist_mode": dbus.MakeVariant(uint32(2)),
		}
		if opts.CursorMode != 0 {
			data["cursor_mode"] = dbus.MakeVariant(opts.CursorMode)
		}
		if opts.RestoreToken != "" {
			data["restore_token"] = dbus.MakeVariant(opts.RestoreToken)
		}
		return []any{sess.path, data}
	})
	if err != nil {
		sess.Close()
		return nil, err
	}

	results, err = c.request(ctx, "Start", func(token string) []any {
		return []any{sess.path, "", map[string]dbus.Variant{
			"handle_token": dbus.MakeVariant(token),
		}}
	})
	if err != nil {
		sess.Close()
		return nil, err
	}

	sess.streams, err = parseStreams(results["streams"])
	if err != nil {
		sess.Close()
		return nil, err
	}
	if rt, ok := results["restore_token"].Value().(string); ok {
		sess.restoreToken = rt
	}

	var fd dbus.UnixFD
	call := c.obj.Call(castIface+".OpenPipeWireRemote", 0, sess.path, map[string]dbus.Variant{})
	if err := call.Store(&fd); err != nil {
		sess.Close()
		return nil, fmt.Errorf("portal: open pipewire remote: %w", err)
	}
	sess.fd = int(fd)

	slog.Info("portal: screencast session started",
		"path", sess.path,
		"streams", len(sess.streams),
		"pipewire_fd", sess.fd,
	)
	return sess, nil
}

type client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// request calls a ScreenCast method and waits for the Response signal on
// its Request object. The signal is subscribed before the call so an early
// response is not lost.
func (c *client) request(ctx context.Context, method string, args func(token string) []any) (map[string]dbus.Variant, error) {
	token := newToken()
	names := c.conn.Names()
	if len(names) == 0 {
		return nil, fmt.Errorf("portal: no unique bus name")
	}
	path := requestObjectPath(names[0], token)

	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(requestIface),
		dbus.WithMatchMember("Response"),
	}
	if err := c.conn.AddMatchSignal(match...); err != nil {
		return nil, fmt.Errorf("portal: subscribe %s response: %w", method, err)
	}
	defer c.conn.RemoveMatchSignal(match...)

	signals := make(chan *dbus.Signal, 4)
	c.conn.Signal(signals)
	defer c.conn.RemoveSignal(signals)

	call := c.obj.CallWithContext(ctx, castIface+"."+method, 0, args(token)...)
	if call.Err != nil {
		return nil, fmt.Errorf("portal: %s: %w", method, call.Err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case sig := <-signals:
			if sig == nil || sig.Path != path || sig.Name != requestIface+".Response" {
				continue
			}
			return parseResponse(method, sig.Body)
		}
	}
}

func parseResponse(method string, body []any) (map[string]dbus.Variant, error) {
	if len(body) != 2 {
		return nil, fmt.Errorf("%w: %s response has %d values", ErrUnexpectedResponse, method, len(body))
	}
	status, ok := body[0].(uint32)
	if !ok {
		return nil, fmt.Errorf("%w: %s status", ErrUnexpectedResponse, method)
	}
	results, _ := body[1].(map[string]dbus.Variant)

	switch status {
	case responseSuccess:
		return results, nil
	case responseCancelled:
		return nil, ErrCancelled
	default:
		return nil, fmt.Errorf("portal: %s ended with status %d", method, status)
	}
}

// requestObjectPath is where the portal exports the Request for token
func requestObjectPath(sender, token string) dbus.ObjectPath {
	s := strings.TrimPrefix(sender, ":")
	s = strings.ReplaceAll(s, ".", "_")
	return dbus.ObjectPath(requestPath + s + "/" + token)
}

// parseStreams decodes the a(ua{sv}) streams result of Start
func parseStreams(v dbus.Variant) ([]Stream, error) {
	var raw [][]any
	switch rs := v.Value().(type) {
	case [][]any:
		raw = rs
	case []any:
		for _, r := range rs {
			if s, ok := r.([]any); ok {
				raw = append(raw, s)
			}
		}
	}

	var streams []Stream
	for _, entry := range raw {
		if len(entry) < 2 {
			continue
		}
		node, ok := entry[0].(uint32)
		if !ok {
			continue
		}
		st := Stream{NodeID: node}
		if props, ok := entry[1].(map[string]dbus.Variant); ok {
			if p, ok := props["position"].Value().([]any); ok && len(p) == 2 {
				x, _ := p[0].(int32)
				y, _ := p[1].(int32)
				st.Position = [2]int32{x, y}
			}
			if sz, ok := props["size"].Value().([]any); ok && len(sz) == 2 {
				w, _ := sz[0].(int32)
				h, _ := sz[1].(int32)
				st.Size = [2]int32{w, h}
			}
			if t, ok := props["source_type"].Value().(uint32); ok {
				st.SourceType = t
			}
		}
		streams = append(streams, st)
	}

	if len(streams) == 0 {
		return nil, ErrNoStreams
	}
	return streams, nil
}

func newToken() string {
	n, _ := rand.Int(rand.Reader, big.NewInt(1<<32))
	return "screencap" + strconv.FormatUint(n.Uint64(), 16)
}
