// Package cmd implements the conclave command-line interface. Each verb lives
// in its own file and registers itself on the root command; shared wiring for
// the store, roster, runtime, and stage controller lives in app.go.
package cmd

import (
	"strings"

	"github.com/conclave-ai/conclave/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "conclave",
	Short: "Council deliberation orchestrator for LLM agents",
	Long: `Conclave runs a council of independent LLM agents through a multi-stage
deliberation: every member answers a question in parallel, the council
optionally discusses over several rounds, members review each other's work
anonymously, and a chairman synthesizes the final answer.

Agents are external processes defined in a YAML roster; councils group
agents and are launched against a project's working directory.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/conclave/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/conclave")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CONCLAVE")
	// Replace dots with underscores for nested keys in env vars
	// e.g., CONCLAVE_STAGES_SYNTHESIS_BUDGET_SECONDS for stages.synthesis_budget_seconds
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
