package cmd

import (
	"context"
	"fmt"

	"github.com/conclave-ai/conclave/internal/config"
	"github.com/conclave-ai/conclave/internal/render"
	"github.com/conclave-ai/conclave/internal/roster"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [launch-id]",
	Short: "Show a launch's stage, sessions, and synthesis",
	Long: `Show the current state of a launch: its stage, the worker sessions spawned
so far, the discussion transcript, and the synthesis once complete.

Without an argument, shows the most recent launch. Launch ids may be
abbreviated to any unique prefix. Use --all to list every launch instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var statusAll bool

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusAll, "all", false, "List all launches")
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	ctx := context.Background()
	r := render.New()

	if statusAll {
		launches, err := st.ListLaunches(ctx)
		if err != nil {
			return err
		}
		if len(launches) == 0 {
			fmt.Println("No launches yet")
			return nil
		}
		for _, launch := range launches {
			fmt.Println(r.LaunchLine(launch))
		}
		return nil
	}

	ref := ""
	if len(args) > 0 {
		ref = args[0]
	}
	launch, err := resolveLaunch(ctx, st, ref)
	if err != nil {
		return err
	}

	councilName := launch.CouncilID
	if c, err := st.LoadCouncil(ctx, launch.CouncilID); err == nil {
		councilName = c.Name
	}
	fmt.Println(r.LaunchSummary(launch, councilName))

	sessions, err := st.ListSessionsByLaunch(ctx, launch.ID)
	if err != nil {
		return err
	}
	fmt.Println(render.Header.Render("Sessions"))
	fmt.Print(r.SessionTable(sessions, rosterNames(), nil))

	msgs, err := st.ListMessagesByLaunch(ctx, launch.ID)
	if err != nil {
		return err
	}
	if len(msgs) > 0 {
		fmt.Println()
		fmt.Println(render.Header.Render("Discussion"))
		fmt.Print(r.Transcript(msgs))
	}

	if launch.Synthesis != "" {
		fmt.Println()
		fmt.Println(render.Header.Render("Synthesis"))
		fmt.Print(r.Synthesis(launch.Synthesis))
	}
	return nil
}

// rosterNames maps agent ids to display names, best effort. Status still
// works when the roster file is missing; sessions then show raw agent ids.
func rosterNames() map[string]string {
	cfg, err := config.Load()
	if err != nil {
		return nil
	}
	dir, err := roster.Load(cfg.Paths.ResolveRosterFile())
	if err != nil {
		return nil
	}
	names := make(map[string]string, dir.Len())
	for _, a := range dir.Agents() {
		names[a.ID] = a.Name
	}
	return names
}
