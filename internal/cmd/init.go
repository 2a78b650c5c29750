package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/conclave-ai/conclave/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the conclave config and a starter agent roster",
	Long: `Create the conclave configuration directory with a default config file and
a starter agent roster. Existing files are left untouched.

Edit agents.yaml to describe the agent commands available on this machine,
then group them into councils with 'conclave councils create'.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

// defaultConfigFile is written by 'conclave init'. Values mirror the
// defaults; uncomment to override.
const defaultConfigFile = `# Conclave configuration.
# Values shown are the defaults.

stages:
  # Per-member budget for initial responses. The responding stage's safety
  # timeout is this value times the number of members.
  response_budget_per_agent_seconds: 300
  # Per-agent budget for one discussion round. Multiplied by agent count only
  # when a council member runs on a serialized backend.
  discussion_budget_per_agent_seconds: 180
  # No discussion round gets less than this, regardless of cohort size.
  discussion_round_floor_seconds: 120
  # All discussion rounds of a launch combined never exceed this.
  discussion_total_ceiling_seconds: 1800
  # Per-reviewer budget for the peer-review stage.
  review_budget_per_agent_seconds: 300
  # Chairman synthesis budget.
  synthesis_budget_seconds: 600
  # How long a follow-up chat session may take to start.
  chat_start_budget_seconds: 60

runtime:
  # Bytes of stdout retained per session.
  output_buffer_size: 262144
  # Seconds between interrupting a session and killing it.
  stop_grace_seconds: 2

logging:
  enabled: true
  level: info
  max_size_mb: 10
  max_backups: 3

paths:
  # Where launches, transcripts, and logs are stored.
  # Default: $XDG_DATA_HOME/conclave or ~/.local/share/conclave
  #data_dir: ~/.local/share/conclave
  # The agent roster file.
  # Default: agents.yaml next to this config file.
  #roster_file: ~/.config/conclave/agents.yaml
`

// defaultRosterFile is the starter roster written by 'conclave init'.
const defaultRosterFile = `# Conclave agent roster.
#
# Each agent names a command that runs one worker session: the prompt arrives
# on stdin, the answer is read from stdout, and the process exits when it is
# done. Mark agents whose backend handles one request at a time with
# "serialized: true" so discussion budgets scale with council size.
#
# Examples:
#
# agents:
#   - id: gpt-5
#     name: GPT-5
#     command: ["llm", "prompt", "--model", "gpt-5"]
#   - id: claude-opus
#     name: Claude Opus
#     command: ["llm", "prompt", "--model", "claude-opus"]
#   - id: local-llama
#     name: Llama (local)
#     command: ["llama-cli", "--stdin"]
#     serialized: true

agents: []
`

func runInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	wrote := false
	configPath := config.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(defaultConfigFile), 0644); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		fmt.Printf("Created %s\n", configPath)
		wrote = true
	}

	rosterPath := filepath.Join(configDir, "agents.yaml")
	if _, err := os.Stat(rosterPath); os.IsNotExist(err) {
		if err := os.WriteFile(rosterPath, []byte(defaultRosterFile), 0644); err != nil {
			return fmt.Errorf("failed to write roster file: %w", err)
		}
		fmt.Printf("Created %s\n", rosterPath)
		wrote = true
	}

	if !wrote {
		fmt.Println("Conclave is already initialized")
		return nil
	}

	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Add your agents to " + rosterPath)
	fmt.Println("  2. conclave projects add <name> [dir]")
	fmt.Println("  3. conclave councils create <name> --agents '*'")
	fmt.Println("  4. conclave launch --council <name> \"your question\"")
	return nil
}
