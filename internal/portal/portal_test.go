package portal

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestObjectPath(t *testing.T) {
	got := requestObjectPath(":1.42", "screencapab12")
	assert.Equal(t, dbus.ObjectPath("/org/freedesktop/portal/desktop/request/1_42/screencapab12"), got)
	assert.True(t, got.IsValid())
}

func TestParseResponse(t *testing.T) {
	results := map[string]dbus.Variant{"session_handle": dbus.MakeVariant("/s/1")}

	tests := []struct {
		name    string
		body    []any
		wantErr error
	}{
		{name: "success", body: []any{uint32(0), results}},
		{name: "cancelled", body: []any{uint32(1), results}, wantErr: ErrCancelled},
		{name: "short body", body: []any{uint32(0)}, wantErr: ErrUnexpectedResponse},
		{name: "bad status", body: []any{"0", results}, wantErr: ErrUnexpectedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResponse("CreateSession", tt.body)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "/s/1", got["session_handle"].Value())
		})
	}

	_, err := parseResponse("Start", []any{uint32(2), results})
	assert.Error(t, err)
}

func TestParseStreams(t *testing.T) {
	v := dbus.MakeVariant([]any{
		[]any{uint32(57), map[string]dbus.Variant{
			"position":    dbus.MakeVariant([]any{int32(10), int32(20)}),
			"size":        dbus.MakeVariant([]any{int32(1920), int32(1080)}),
			"source_type": dbus.MakeVariant(SourceMonitor),
		}},
		[]any{"not a node", map[string]dbus.Variant{}},
		[]any{uint32(58)},
	})

	streams, err := parseStreams(v)
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, Stream{
		NodeID:     57,
		Position:   [2]int32{10, 20},
		Size:       [2]int32{1920, 1080},
		SourceType: SourceMonitor,
	}, streams[0])

	_, err = parseStreams(dbus.Variant{})
	assert.ErrorIs(t, err, ErrNoStreams)
}
