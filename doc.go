// Package screencapture captures video frames and system audio from a
// display or window and delivers them to a single callback.
//
// # Quick Start
//
//	token, ok := screencapture.TestAccess()
//	if !ok {
//	    // Wayland: shows the ScreenCast portal dialog
//	    token, err = screencapture.RequestAccess(ctx, screencapture.AccessOptions{})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	}
//	defer token.Release()
//
//	cfg := screencapture.NewDisplayConfig(display, screencapture.BGRA8888).
//	    WithMaximumFPS(30).
//	    WithAccess(token)
//
//	stream, err := screencapture.New(cfg, func(event screencapture.StreamEvent, err error) {
//	    if err != nil {
//	        log.Printf("stream error: %v", err) // the stream keeps running
//	        return
//	    }
//	    switch ev := event.(type) {
//	    case screencapture.VideoEvent:
//	        bm, err := ev.Frame.Bitmap()
//	        ...
//	    case screencapture.EndEvent:
//	        // always last, always exactly once
//	    }
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stream.Close()
//
// # Delivery Guarantees
//
//   - The callback is never invoked concurrently or reentrantly, even though
//     video and audio arrive on different native threads.
//   - Video and audio frame ids each count up from 0 without gaps.
//   - Exactly one EndEvent is delivered, whether the stream ends through
//     Stop, Close or the capture source going away (window closed, portal
//     session revoked).
//   - Once Stop returns no callback starts, apart from the EndEvent. Stop may
//     be called from inside the callback; the EndEvent then follows right
//     after that callback returns.
//   - If New fails, no event is ever delivered.
//
// # Frames
//
// A VideoFrame is only valid during the callback unless it is retained with
// Frame.Retain. Bitmap copies the native planes into packed CPU buffers;
// PooledBitmap and TryPooledBitmap draw those buffers from a bounded
// bitmap.Pool so steady-state capture does not allocate:
//
//	pool := bitmap.NewPoolWithInitialCapacity(3, 1920, 1080, 6, screencapture.V420)
//	bm, err := frame.TryPooledBitmap(pool) // nil, nil when the pool is exhausted
//
// # Backends
//
// Video is captured with GStreamer (ximagesrc on X11, pipewiresrc on
// Wayland through the xdg-desktop-portal ScreenCast session). Audio comes
// from the PulseAudio default sink monitor or a miniaudio loopback device.
//
// # Telemetry
//
// Stream.Stats reports frame counts, idle and error counts, events
// suppressed after stop and FPS/jitter statistics over the most recent
// frames. Lifecycle events are logged through log/slog with the stream id.
package screencapture
