package cmd

import (
	"context"
	"fmt"

	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/render"
	"github.com/conclave-ai/conclave/internal/roster"
	"github.com/spf13/cobra"
)

var councilsCmd = &cobra.Command{
	Use:   "councils",
	Short: "List or create councils",
	Long: `List or create councils.

A council is a fixed, named group of roster agents, optionally with a
chairman and a number of discussion rounds. Councils are reusable: every
launch runs the same lineup against a new question.`,
	RunE: runCouncilsList,
}

var councilsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List councils",
	RunE:  runCouncilsList,
}

var councilsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a council from roster agents",
	Long: `Create a council from roster agents.

Agents are selected with glob patterns matched against roster ids and names;
patterns accumulate in order and duplicates collapse. The chairman must be
one of the roster agents (not necessarily a member).

Examples:
  # Every gpt agent plus claude-opus, chaired by claude-opus, two rounds
  conclave councils create architects \
    --agents 'gpt-*' --agents claude-opus \
    --chairman claude-opus --rounds 2`,
	Args: cobra.ExactArgs(1),
	RunE: runCouncilsCreate,
}

var (
	councilAgents   []string
	councilChairman string
	councilRounds   int
)

func init() {
	rootCmd.AddCommand(councilsCmd)
	councilsCmd.AddCommand(councilsListCmd)
	councilsCmd.AddCommand(councilsCreateCmd)

	councilsCreateCmd.Flags().StringArrayVar(&councilAgents, "agents", nil, "Glob pattern selecting roster agents (repeatable)")
	councilsCreateCmd.Flags().StringVar(&councilChairman, "chairman", "", "Roster agent id to chair the synthesis")
	councilsCreateCmd.Flags().IntVar(&councilRounds, "rounds", 0, "Number of discussion rounds")
	_ = councilsCreateCmd.MarkFlagRequired("agents")
}

func runCouncilsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	councils, err := st.ListCouncils(context.Background())
	if err != nil {
		return err
	}
	if len(councils) == 0 {
		fmt.Println("No councils yet. Create one with 'conclave councils create'.")
		return nil
	}

	r := render.New()
	for _, c := range councils {
		fmt.Println(r.CouncilLine(c))
	}
	return nil
}

func runCouncilsCreate(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	dir, err := openRoster()
	if err != nil {
		return err
	}

	agentIDs, err := selectAgents(dir, councilAgents)
	if err != nil {
		return err
	}

	if councilChairman != "" {
		if _, err := dir.Agent(councilChairman); err != nil {
			return err
		}
	}

	c := council.NewCouncil(args[0], agentIDs, councilChairman, councilRounds)
	if err := c.Validate(); err != nil {
		return err
	}
	if err := st.SaveCouncil(context.Background(), c); err != nil {
		return fmt.Errorf("failed to save council: %w", err)
	}

	fmt.Printf("Created council %s\n", c.Name)
	fmt.Println(render.Muted.Render(c.ID))
	for _, id := range c.AgentIDs {
		marker := ""
		if id == c.ChairmanAgentID {
			marker = "  (chairman)"
		}
		fmt.Printf("  %s%s\n", id, marker)
	}
	return nil
}

// selectAgents expands glob patterns against the roster, keeping first-match
// order and collapsing duplicates.
func selectAgents(dir *roster.Directory, patterns []string) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matched, err := dir.Match(pattern)
		if err != nil {
			return nil, err
		}
		if len(matched) == 0 {
			return nil, fmt.Errorf("pattern '%s' matched no roster agents", pattern)
		}
		for _, a := range matched {
			if !seen[a.ID] {
				seen[a.ID] = true
				ids = append(ids, a.ID)
			}
		}
	}
	return ids, nil
}
