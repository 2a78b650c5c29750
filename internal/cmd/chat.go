package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conclave-ai/conclave/internal/render"
	"github.com/conclave-ai/conclave/internal/runtime"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <launch-id> <message>",
	Short: "Ask a follow-up question about a completed launch",
	Long: `Send a follow-up message about a completed launch and print the reply.

The chat session is seeded with the original question, the synthesis, and the
discussion transcript, so the agent answers with the deliberation's full
context. The launch must be complete and have a synthesis.

Examples:
  conclave chat 7c1f "Which of the dissenting opinions should we revisit?"`,
	Args: cobra.ExactArgs(2),
	RunE: runChat,
}

var (
	chatWait time.Duration
	chatIdle time.Duration
)

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().DurationVar(&chatWait, "wait", 5*time.Minute, "How long to wait for the reply to start")
	chatCmd.Flags().DurationVar(&chatIdle, "idle", 3*time.Second, "How long the reply must be silent before it is considered finished")
}

func runChat(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()

	launch, err := resolveLaunch(ctx, app.store, args[0])
	if err != nil {
		return err
	}

	sessionID, err := app.controller.StartFollowUpChat(ctx, launch.ID, args[1])
	if err != nil {
		return fmt.Errorf("failed to start follow-up chat: %w", err)
	}

	streamReply(app, sessionID)
	return nil
}

// streamReply prints the chat session's output as it arrives. The reply is
// considered finished when the session exits, stays silent for the idle
// window after producing output, or the user interrupts.
func streamReply(app *app, sessionID string) {
	chunks := make(chan string, 64)
	finished := make(chan struct{}, 1)
	token := app.runtime.Subscribe(sessionID, func(id string, ev runtime.Event) {
		switch e := ev.(type) {
		case runtime.OutputChunk:
			select {
			case chunks <- e.Content:
			default:
				// A full channel means the terminal cannot keep up; the
				// complete output is still in the session buffer.
			}
		case runtime.Exited, runtime.Stopped:
			select {
			case finished <- struct{}{}:
			default:
			}
		}
	})
	defer app.runtime.Unsubscribe(sessionID, token)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	// The first-output budget is generous; once output starts, the shorter
	// idle window decides when the reply is done.
	timer := time.NewTimer(chatWait)
	defer timer.Stop()

	replied := false
	for {
		select {
		case chunk := <-chunks:
			fmt.Print(chunk)
			replied = true
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(chatIdle)
		case <-finished:
			drainChunks(chunks)
			fmt.Println()
			return
		case <-timer.C:
			if !replied {
				fmt.Println(render.Warning.Render("no reply within the wait budget"))
			} else {
				fmt.Println()
			}
			return
		case <-interrupt:
			fmt.Println()
			return
		}
	}
}

// drainChunks flushes output that arrived between the last print and the
// session's exit event.
func drainChunks(chunks <-chan string) {
	for {
		select {
		case chunk := <-chunks:
			fmt.Print(chunk)
		default:
			return
		}
	}
}
