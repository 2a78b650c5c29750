package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/event"
	"github.com/conclave-ai/conclave/internal/render"
	"github.com/spf13/cobra"
)

var launchCmd = &cobra.Command{
	Use:   "launch [question]",
	Short: "Launch a council deliberation",
	Long: `Launch a council against a question and run the deliberation to completion.

The command stays in the foreground: it hosts the agent processes, prints
stage transitions and discussion messages as they happen, and renders the
final synthesis when the council completes. Press Ctrl+C to abort; partial
responses are aggregated into a terminated synthesis.

Examples:
  # Launch a council by name against the project registered for this directory
  conclave launch --council architects "How should we shard the user table?"

  # Launch against an explicit project
  conclave launch --council architects --project api-server "Review the v2 auth design"`,
	Args: cobra.ExactArgs(1),
	RunE: runLaunch,
}

var (
	launchCouncil string
	launchProject string
)

func init() {
	rootCmd.AddCommand(launchCmd)

	launchCmd.Flags().StringVar(&launchCouncil, "council", "", "Council name or id (required)")
	launchCmd.Flags().StringVar(&launchProject, "project", "", "Project name or id (default: project registered for the current directory)")
	_ = launchCmd.MarkFlagRequired("council")
}

func runLaunch(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()

	c, err := resolveCouncil(ctx, app.store, launchCouncil)
	if err != nil {
		return err
	}
	project, err := findLaunchProject(ctx, app)
	if err != nil {
		return err
	}

	r := render.New()
	done := make(chan struct{})
	subscribeProgress(app.bus, r, done)

	launch, err := app.controller.Launch(ctx, c.ID, project.ID, args[0])
	if err != nil {
		return fmt.Errorf("failed to launch council: %w", err)
	}

	fmt.Println(r.LaunchSummary(launch, c.Name))

	if err := waitForCompletion(ctx, app, launch.ID, done); err != nil {
		return err
	}

	final, err := app.store.LoadLaunch(ctx, launch.ID)
	if err != nil {
		return fmt.Errorf("failed to load completed launch: %w", err)
	}
	fmt.Println()
	fmt.Println(r.Synthesis(final.Synthesis))
	fmt.Println(render.Muted.Render("launch " + final.ID))
	return nil
}

// findLaunchProject resolves the --project flag, falling back to the project
// registered for the current working directory.
func findLaunchProject(ctx context.Context, app *app) (*council.Project, error) {
	if launchProject != "" {
		return resolveProject(ctx, app.store, launchProject)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	projects, err := app.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.WorkingDir == cwd {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no project registered for %s (run 'conclave projects add' or pass --project)", cwd)
}

// subscribeProgress prints deliberation progress as bus events arrive and
// closes done once the launch reaches the complete stage.
func subscribeProgress(bus *event.Bus, r *render.Renderer, done chan struct{}) {
	var once sync.Once
	bus.Subscribe(event.TypeStageChanged, func(e event.Event) {
		sc, ok := e.(event.StageChangedEvent)
		if !ok {
			return
		}
		fmt.Printf("%s %s\n", sc.Timestamp().Format("15:04:05"), render.StageBadge(sc.CurrentStage))
		if sc.CurrentStage == council.StageComplete {
			once.Do(func() { close(done) })
		}
	})
	bus.Subscribe(event.TypeLogEntry, func(e event.Event) {
		le, ok := e.(event.LogEntryEvent)
		if !ok {
			return
		}
		line := le.Entry.Message
		if le.Entry.Detail != "" {
			line += ": " + le.Entry.Detail
		}
		fmt.Println(render.Muted.Render(render.Truncate(line, r.Width())))
	})
	bus.Subscribe(event.TypeDiscussionMessage, func(e event.Event) {
		dm, ok := e.(event.DiscussionMessageEvent)
		if !ok {
			return
		}
		fmt.Printf("%s %s\n%s\n\n",
			render.Primary.Render(dm.Message.AgentName),
			render.Muted.Render(fmt.Sprintf("round %d", dm.Message.Round)),
			dm.Message.Content)
	})
}

// waitForCompletion blocks until the launch completes, the user interrupts,
// or an external process moves the launch to the terminal stage. A second
// interrupt exits without waiting for the abort to finish.
func waitForCompletion(ctx context.Context, app *app, launchID string, done <-chan struct{}) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	// The bus only carries events from this process; the ticker catches a
	// launch completed externally (e.g. conclave abort in another terminal).
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return nil
		case <-ticker.C:
			launch, err := app.store.LoadLaunch(ctx, launchID)
			if err == nil && launch.Stage.Terminal() {
				return nil
			}
		case <-interrupt:
			fmt.Println(render.Warning.Render("aborting launch..."))
			if err := app.controller.Abort(ctx, launchID); err != nil {
				return fmt.Errorf("failed to abort launch: %w", err)
			}
			return nil
		}
	}
}
