package cmd

import (
	"context"
	"fmt"

	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/render"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs [launch-id]",
	Short: "View a launch's log entries",
	Long: `View the log entries recorded for a launch: stage transitions, session
timeouts, spawn failures, and other deliberation events.

Without an argument, shows logs for the most recent launch.

Examples:
  # Logs for the most recent launch
  conclave logs

  # Only warnings and errors for a specific launch
  conclave logs 7c1f --level warn`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

var logsLevel string

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Minimum level to show (info/warn/error)")
}

// logLevelPriority orders launch log levels for --level filtering.
func logLevelPriority(level council.LogLevel) int {
	switch level {
	case council.LogWarn:
		return 1
	case council.LogError:
		return 2
	default:
		return 0
	}
}

func runLogs(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	ref := ""
	if len(args) > 0 {
		ref = args[0]
	}
	launch, err := resolveLaunch(ctx, st, ref)
	if err != nil {
		return err
	}

	entries, err := st.ListLogsByLaunch(ctx, launch.ID)
	if err != nil {
		return err
	}

	if logsLevel != "" {
		minimum := logLevelPriority(council.LogLevel(logsLevel))
		filtered := entries[:0]
		for _, entry := range entries {
			if logLevelPriority(entry.Level) >= minimum {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}

	r := render.New()
	fmt.Println(render.Muted.Render("launch " + launch.ID))
	fmt.Print(r.LogLines(entries))
	return nil
}
