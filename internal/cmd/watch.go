package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/render"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [launch-id]",
	Short: "Follow a launch live",
	Long: `Follow a launch as it runs, printing stage transitions, log entries, and
discussion messages as they are persisted. Works across processes: watch a
launch hosted by 'conclave launch' in another terminal.

Exits when the launch completes (rendering the synthesis) or on Ctrl+C.

Without an argument, watches the most recent launch.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Documents are replaced by atomic renames, so watch the directories and
	// filter by file name rather than watching the files themselves.
	docName := launch.ID + ".json"
	for _, sub := range []string{"launches", "messages", "logs"} {
		if err := watcher.Add(filepath.Join(st.BaseDir(), sub)); err != nil {
			return fmt.Errorf("failed to watch data directory: %w", err)
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	// Rename-based writes can slip between fsnotify events on some
	// filesystems; a slow tick keeps the view converging regardless.
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	r := render.New()
	view := &watchView{}
	view.render(ctx, st, r, launch.ID)

	if done, _ := view.terminal(ctx, st, launch.ID); done {
		return nil
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != docName {
				continue
			}
			view.render(ctx, st, r, launch.ID)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Println(render.Error.Render("watch error: " + err.Error()))
		case <-ticker.C:
			view.render(ctx, st, r, launch.ID)
		case <-interrupt:
			return nil
		}

		if done, synthesis := view.terminal(ctx, st, launch.ID); done {
			fmt.Println()
			fmt.Println(r.Synthesis(synthesis))
			return nil
		}
	}
}

// watchView prints launch progress incrementally: only stages, messages, and
// log entries not yet shown.
type watchView struct {
	stage    council.Stage
	messages int
	logs     int
}

// render prints whatever changed since the last call.
func (v *watchView) render(ctx context.Context, st storeReader, r *render.Renderer, launchID string) {
	launch, err := st.LoadLaunch(ctx, launchID)
	if err == nil && launch.Stage != v.stage {
		v.stage = launch.Stage
		fmt.Printf("%s %s\n", time.Now().Format("15:04:05"), render.StageBadge(launch.Stage))
	}

	if entries, err := st.ListLogsByLaunch(ctx, launchID); err == nil && len(entries) > v.logs {
		fmt.Print(r.LogLines(entries[v.logs:]))
		v.logs = len(entries)
	}

	if msgs, err := st.ListMessagesByLaunch(ctx, launchID); err == nil && len(msgs) > v.messages {
		fmt.Print(r.Transcript(msgs[v.messages:]))
		v.messages = len(msgs)
	}
}

// terminal reports whether the launch reached its terminal stage, returning
// the synthesis when it has.
func (v *watchView) terminal(ctx context.Context, st storeReader, launchID string) (bool, string) {
	launch, err := st.LoadLaunch(ctx, launchID)
	if err != nil || !launch.Stage.Terminal() {
		return false, ""
	}
	return true, launch.Synthesis
}

// storeReader is the slice of the store the watch view reads.
type storeReader interface {
	LoadLaunch(ctx context.Context, id string) (*council.Launch, error)
	ListMessagesByLaunch(ctx context.Context, launchID string) ([]*council.DiscussionMessage, error)
	ListLogsByLaunch(ctx context.Context, launchID string) ([]*council.LogEntry, error)
}
