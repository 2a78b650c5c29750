package cmd

import (
	"context"
	"fmt"

	"github.com/conclave-ai/conclave/internal/render"
	"github.com/spf13/cobra"
)

var abortCmd = &cobra.Command{
	Use:   "abort [launch-id]",
	Short: "Abort a running launch",
	Long: `Abort a launch from any non-terminal stage. Running sessions are stopped,
whatever responses exist are aggregated into a synthesis marked as manually
terminated, and the launch moves to the complete stage.

A launch hosted by another conclave process notices the stage change and
stands down: its pending watchers skip their continuations and its sessions
are stopped when their safety timeouts fire.

Without an argument, aborts the most recent launch.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAbort,
}

func init() {
	rootCmd.AddCommand(abortCmd)
}

func runAbort(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()

	ref := ""
	if len(args) > 0 {
		ref = args[0]
	}
	launch, err := resolveLaunch(ctx, app.store, ref)
	if err != nil {
		return err
	}

	if err := app.controller.Abort(ctx, launch.ID); err != nil {
		return fmt.Errorf("failed to abort launch: %w", err)
	}

	fmt.Println(render.Warning.Render("launch aborted"))
	fmt.Println(render.Muted.Render("launch " + launch.ID))
	return nil
}
