package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	screencapture "github.com/e7canasta/screen-capture"
	"github.com/spf13/cobra"
)

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the pixel formats the video backend can produce",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Supported pixel formats:\n")
			for _, f := range screencapture.SupportedPixelFormats() {
				planes := "packed"
				if f.IsYCbCr() {
					planes = fmt.Sprintf("%d planes", f.PlaneCount())
				}
				fmt.Printf("  %-12s %s\n", f, planes)
			}
			return nil
		},
	}
}

func newAccessCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Check capture access, asking through the ScreenCast portal if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token, ok := screencapture.TestAccess(); ok {
				fmt.Printf("Access granted without prompt: %s\n", token)
				return nil
			}
			if v.GetBool("probe") {
				fmt.Printf("Access requires a user prompt\n")
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
			defer cancel()

			token, err := acquireAccess(ctx)
			if err != nil {
				return err
			}
			defer token.Release()

			fmt.Printf("Access granted: %s\n", token)
			if rt := token.RestoreToken(); rt != "" {
				fmt.Printf("Restore token: %s\n", rt)
				fmt.Printf("  (export SCREENCAP_RESTORE_TOKEN=%s to skip the dialog next time)\n", rt)
			}
			return nil
		},
	}

	cmd.Flags().Bool("probe", false, "Only test for prompt-free access, never show a dialog")
	cmd.Flags().Duration("timeout", 2*time.Minute, "How long to wait for the portal dialog")
	addAccessFlags(cmd)
	return cmd
}

func addAccessFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("portal-windows", false, "Let the portal dialog offer windows as well as monitors")
	cmd.Flags().String("restore-token", "", "Portal restore token from a previous grant")
}

// acquireAccess returns a prompt-free token or asks the portal
func acquireAccess(ctx context.Context) (screencapture.AccessToken, error) {
	if token, ok := screencapture.TestAccess(); ok {
		return token, nil
	}

	slog.Info("Requesting capture access through the ScreenCast portal...")
	token, err := screencapture.RequestAccess(ctx, screencapture.AccessOptions{
		Windows:      v.GetBool("portal-windows"),
		ShowCursor:   v.GetBool("show-cursor"),
		RestoreToken: v.GetString("restore-token"),
	})
	if err != nil {
		return screencapture.AccessToken{}, fmt.Errorf("failed to obtain capture access: %w", err)
	}
	return token, nil
}
