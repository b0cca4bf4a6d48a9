package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information
const version = "v0.1.0"

// v holds CLI settings: flags, SCREENCAP_* environment variables, defaults
var v = viper.New()

func init() {
	v.SetDefault("target", "display")
	v.SetDefault("width", 1920)
	v.SetDefault("height", 1080)
	v.SetDefault("format", "bgra8888")
	v.SetDefault("max-frames", 10)
	v.SetDefault("image-format", "png")
	v.SetDefault("jpeg-quality", 90)
	v.SetDefault("stats-interval", 5)
	v.SetDefault("audio-backend", "pulse")

	v.SetEnvPrefix("SCREENCAP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "test-capture",
		Short:         "Screen capture test tool",
		Long:          `test-capture exercises the screen-capture library: it checks capture access, lists pixel formats and captures frames from a display or window to image files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}
			setupLogging(v.GetBool("debug"))
			return nil
		},
	}

	root.PersistentFlags().Bool("debug", false, "Enable debug logging")

	root.AddCommand(newFormatsCommand())
	root.AddCommand(newAccessCommand())
	root.AddCommand(newCaptureCommand())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("test-capture %s\n", version)
		},
	})

	return root
}

func setupLogging(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
