package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	screencapture "github.com/e7canasta/screen-capture"
	"github.com/e7canasta/screen-capture/bitmap"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newCaptureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture frames from a display or window",
		Example: `  test-capture capture --max-frames 5 --output ./frames
  test-capture capture --target window --id 0x4a00003 --width 1280 --height 720 --format v420
  test-capture capture --config capture.yaml --dump-config`,
		RunE: runCapture,
	}

	f := cmd.Flags()
	f.String("config", "", "Capture config file (YAML); replaces the target and stream flags")
	f.String("target", "display", "Target kind: display or window")
	f.Uint64("id", 0, "Display index or X11 window id")
	f.Float64("x", 0, "Target origin x in screen coordinates")
	f.Float64("y", 0, "Target origin y in screen coordinates")
	f.Float64("width", 1920, "Target width")
	f.Float64("height", 1080, "Target height")
	f.String("format", "bgra8888", "Pixel format: bgra8888, argb2101010, v420, f420")
	f.Float64("fps", 0, "Maximum FPS (0 = native rate)")
	f.Float64("output-width", 0, "Scale frames to this width in the pipeline (0 = source size)")
	f.Bool("show-cursor", false, "Draw the cursor into frames")
	f.Bool("audio", false, "Capture system audio as well")
	f.String("audio-backend", "pulse", "Audio backend: pulse or miniaudio")
	f.Int("max-frames", 10, "Video frames to capture (0 = until interrupted)")
	f.String("output", "", "Directory to save captured frames (optional)")
	f.String("image-format", "png", "Output image format: png, jpeg, bmp, tiff")
	f.Int("jpeg-quality", 90, "JPEG quality (1-100, only for jpeg format)")
	f.Int("scale-width", 0, "Resize saved images to this width (0 = frame size)")
	f.Int("stats-interval", 5, "Seconds between stats reports")
	f.Bool("dump-config", false, "Print the effective capture config as YAML and exit")
	addAccessFlags(cmd)

	return cmd
}

// buildConfig assembles the capture config from a file or from flags
func buildConfig() (screencapture.CaptureConfig, error) {
	if path := v.GetString("config"); path != "" {
		return screencapture.LoadConfig(path)
	}

	format, err := bitmap.ParsePixelFormat(v.GetString("format"))
	if err != nil {
		return screencapture.CaptureConfig{}, err
	}

	rect := screencapture.Rect{
		Origin: screencapture.Point{X: v.GetFloat64("x"), Y: v.GetFloat64("y")},
		Size:   screencapture.Size{Width: v.GetFloat64("width"), Height: v.GetFloat64("height")},
	}

	var cfg screencapture.CaptureConfig
	switch v.GetString("target") {
	case "display":
		cfg = screencapture.NewDisplayConfig(screencapture.Display{
			ID:   v.GetUint64("id"),
			Name: os.Getenv("DISPLAY"),
			Rect: rect,
		}, format)
	case "window":
		cfg, err = screencapture.NewWindowConfig(screencapture.Window{
			ID:   v.GetUint64("id"),
			Rect: rect,
		}, format)
		if err != nil {
			return screencapture.CaptureConfig{}, err
		}
	default:
		return screencapture.CaptureConfig{}, fmt.Errorf("invalid target: %s (must be display or window)", v.GetString("target"))
	}

	cfg = cfg.
		WithShowCursor(v.GetBool("show-cursor")).
		WithMaximumFPS(v.GetFloat64("fps"))

	if w := v.GetFloat64("output-width"); w > 0 {
		cfg = cfg.WithOutputSize(screencapture.Size{Width: w, Height: rect.Size.Height * w / rect.Size.Width})
		cfg.ScaleToFit = true
		cfg.PreserveAspectRatio = true
	}

	if v.GetBool("audio") {
		audio := screencapture.NewAudioConfig()
		audio.Backend = v.GetString("audio-backend")
		cfg = cfg.WithAudio(audio)
	}

	if err := cfg.Validate(); err != nil {
		return screencapture.CaptureConfig{}, err
	}
	return cfg, nil
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	if v.GetBool("dump-config") {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token, err := acquireAccess(ctx)
	if err != nil {
		return err
	}
	defer token.Release()
	cfg = cfg.WithAccess(token)

	maxFrames := v.GetInt("max-frames")
	outputDir := v.GetString("output")

	var saver *frameSaver
	if outputDir != "" {
		size := cfg.OutputSize
		pool := bitmap.NewPoolWithInitialCapacity(2, int(size.Width), int(size.Height), 4, cfg.PixelFormat)
		saver, err = newFrameSaver(outputDir, v.GetString("image-format"), v.GetInt("jpeg-quality"), v.GetInt("scale-width"), pool)
		if err != nil {
			return err
		}
		slog.Info("Frame saving enabled",
			"directory", outputDir,
			"format", v.GetString("image-format"),
		)
	}

	printBanner(cfg, token, maxFrames, outputDir)

	var (
		videoFrames atomic.Int64
		audioFrames atomic.Int64
		reached     = make(chan struct{})
		reachedOnce sync.Once
	)

	callback := func(event screencapture.StreamEvent, err error) {
		if err != nil {
			slog.Warn("Stream error", "error", err)
			return
		}
		switch ev := event.(type) {
		case screencapture.VideoEvent:
			n := videoFrames.Add(1)
			f := ev.Frame
			fmt.Printf("[%s] Frame #%-6d | %-10s | %9s | DPI %5.1f | Origin: %s\n",
				time.Now().Format("15:04:05"),
				f.FrameID(),
				f.PixelFormat(),
				f.Size(),
				f.DPI(),
				f.OriginTime().Round(time.Millisecond),
			)
			if saver != nil {
				saver.offer(f)
			}
			if maxFrames > 0 && n >= int64(maxFrames) {
				reachedOnce.Do(func() { close(reached) })
			}
		case screencapture.AudioEvent:
			if audioFrames.Add(1)%50 == 1 {
				slog.Debug("Audio frame",
					"frame_id", ev.Frame.FrameID(),
					"sample_rate", int(ev.Frame.SampleRate()),
					"channels", ev.Frame.ChannelCount().String(),
					"duration", ev.Frame.Duration(),
				)
			}
		case screencapture.IdleEvent:
			slog.Debug("Stream idle")
		case screencapture.EndEvent:
			slog.Info("Stream ended")
		}
	}

	stream, err := screencapture.New(cfg, callback)
	if err != nil {
		if saver != nil {
			saver.close()
		}
		return fmt.Errorf("failed to create stream: %w", err)
	}

	interval := v.GetInt("stats-interval")
	if interval < 1 {
		interval = 5
	}
	statsTicker := time.NewTicker(time.Duration(interval) * time.Second)
	defer statsTicker.Stop()

	func() {
		for {
			select {
			case <-ctx.Done():
				fmt.Printf("\n\nReceived interrupt signal, shutting down...\n")
				return
			case <-reached:
				fmt.Printf("\nReached maximum frames (%d), stopping...\n", maxFrames)
				return
			case <-stream.Done():
				slog.Warn("Stream ended by the capture source")
				return
			case <-statsTicker.C:
				printStats("Stream Statistics", stream.Stats(), saver)
			}
		}
	}()

	slog.Info("Stopping stream...")
	if err := stream.Stop(); err != nil {
		slog.Error("Error stopping stream", "error", err)
	}
	<-stream.Done()

	if saver != nil {
		saver.close()
	}

	printStats("Final Statistics", stream.Stats(), saver)
	slog.Info("Test capture completed", "stream_id", stream.ID())
	return nil
}

func printBanner(cfg screencapture.CaptureConfig, token screencapture.AccessToken, maxFrames int, outputDir string) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║                 Screen Capture Test %-22s║\n", version)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Target:        %s\n", cfg.Target)
	fmt.Printf("  Access:        %s\n", token)
	fmt.Printf("  Pixel Format:  %s\n", cfg.PixelFormat)
	fmt.Printf("  Output Size:   %s\n", cfg.OutputSize)
	if cfg.MaximumFPS > 0 {
		fmt.Printf("  Maximum FPS:   %.2f\n", cfg.MaximumFPS)
	} else {
		fmt.Printf("  Maximum FPS:   native\n")
	}
	if cfg.Audio != nil {
		fmt.Printf("  Audio:         %d Hz %s (%s)\n", int(cfg.Audio.SampleRate), cfg.Audio.ChannelCount, cfg.Audio.Backend)
	}
	if outputDir != "" {
		fmt.Printf("  Output Dir:    %s\n", outputDir)
	} else {
		fmt.Printf("  Output Dir:    (none - frames not saved)\n")
	}
	if maxFrames > 0 {
		fmt.Printf("  Max Frames:    %d\n", maxFrames)
	} else {
		fmt.Printf("  Max Frames:    unlimited\n")
	}
	fmt.Printf("\nPress Ctrl+C to stop gracefully\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n\n")
}

func printStats(title string, stats screencapture.Stats, saver *frameSaver) {
	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ %s (Uptime: %s)\n", title, stats.Uptime.Round(time.Second))
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Video Frames:       %6d frames\n", stats.VideoFrames)
	fmt.Printf("│ Audio Frames:       %6d frames\n", stats.AudioFrames)
	fmt.Printf("│ Idle Events:        %6d\n", stats.IdleEvents)
	fmt.Printf("│ Errors:             %6d\n", stats.Errors)
	if stats.Suppressed > 0 {
		fmt.Printf("│ Suppressed:         %6d events after stop\n", stats.Suppressed)
	}
	if saver != nil {
		fmt.Printf("│ Frames Saved:       %6d frames\n", saver.saved.Load())
		fmt.Printf("│ Save Failures:      %6d frames\n", saver.failed.Load())
		fmt.Printf("│ Save Drops:         %6d frames\n", saver.dropped.Load())
	}
	if stats.FPS.Frames > 1 {
		fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
		fmt.Printf("│ FPS Mean:           %6.2f fps\n", stats.FPS.FPSMean)
		fmt.Printf("│ FPS StdDev:         %6.2f fps\n", stats.FPS.FPSStdDev)
		fmt.Printf("│ FPS Range:          %6.1f - %.1f fps\n", stats.FPS.FPSMin, stats.FPS.FPSMax)
		fmt.Printf("│ Jitter Mean:        %6.3f s\n", stats.FPS.JitterMean)
		fmt.Printf("│ Jitter Max:         %6.3f s\n", stats.FPS.JitterMax)
		fmt.Printf("│ Stable:             %6v\n", stats.FPS.IsStable)
	}
	fmt.Printf("│ Running:            %6v\n", stats.Running)
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
	fmt.Printf("\n")
}
