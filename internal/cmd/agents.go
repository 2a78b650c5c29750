package cmd

import (
	"fmt"

	"github.com/conclave-ai/conclave/internal/config"
	"github.com/conclave-ai/conclave/internal/render"
	"github.com/conclave-ai/conclave/internal/roster"
	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents [pattern]",
	Short: "List roster agents",
	Long: `List the agents available in the roster, optionally filtered by a glob
pattern matched against agent ids and names.

Examples:
  conclave agents
  conclave agents 'gpt-*'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAgents,
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}

// openRoster loads the agent roster from the configured path.
func openRoster() (*roster.Directory, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	dir, err := roster.Load(cfg.Paths.ResolveRosterFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load agent roster (run 'conclave init' to create one): %w", err)
	}
	return dir, nil
}

func runAgents(cmd *cobra.Command, args []string) error {
	dir, err := openRoster()
	if err != nil {
		return err
	}

	agents := dir.Agents()
	if len(args) > 0 {
		agents, err = dir.Match(args[0])
		if err != nil {
			return err
		}
	}
	if len(agents) == 0 {
		fmt.Println("No matching agents")
		return nil
	}

	r := render.New()
	for _, a := range agents {
		fmt.Println(r.AgentLine(a))
	}
	return nil
}
