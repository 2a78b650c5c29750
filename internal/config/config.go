package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Conclave configuration
type Config struct {
	Stages  StagesConfig  `mapstructure:"stages"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Logging LoggingConfig `mapstructure:"logging"`
	Paths   PathsConfig   `mapstructure:"paths"`
}

// StagesConfig controls the timeout budgets for each deliberation stage.
// All values are in seconds; per-agent budgets are multiplied by cohort size
// where the stage machinery calls for it.
type StagesConfig struct {
	// ResponseBudgetPerAgentSeconds is the initial-response budget per agent.
	// The responding watcher's safety timeout is this value times the number
	// of members.
	ResponseBudgetPerAgentSeconds int `mapstructure:"response_budget_per_agent_seconds"`
	// DiscussionBudgetPerAgentSeconds is the per-agent budget for one
	// discussion round. Multiplied by agent count only when the round runs on
	// a serialized backend.
	DiscussionBudgetPerAgentSeconds int `mapstructure:"discussion_budget_per_agent_seconds"`
	// DiscussionRoundFloorSeconds is the minimum wall-clock budget for any
	// single discussion round, regardless of cohort size.
	DiscussionRoundFloorSeconds int `mapstructure:"discussion_round_floor_seconds"`
	// DiscussionTotalCeilingSeconds caps the combined budget across all
	// discussion rounds of a launch.
	DiscussionTotalCeilingSeconds int `mapstructure:"discussion_total_ceiling_seconds"`
	// ReviewBudgetPerAgentSeconds is the review-stage budget per agent.
	ReviewBudgetPerAgentSeconds int `mapstructure:"review_budget_per_agent_seconds"`
	// SynthesisBudgetSeconds is the chairman's synthesis budget. Not scaled;
	// synthesis is always a single session.
	SynthesisBudgetSeconds int `mapstructure:"synthesis_budget_seconds"`
	// ChatStartBudgetSeconds bounds how long a follow-up chat session may
	// take to start before the operation fails.
	ChatStartBudgetSeconds int `mapstructure:"chat_start_budget_seconds"`
}

// RuntimeConfig controls the agent process runtime
type RuntimeConfig struct {
	// OutputBufferSize is the size of each session's output ring buffer in bytes
	OutputBufferSize int `mapstructure:"output_buffer_size"`
	// StopGraceSeconds is how long to wait after an interrupt before killing
	// a session's process
	StopGraceSeconds int `mapstructure:"stop_grace_seconds"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// PathsConfig controls where Conclave stores data
type PathsConfig struct {
	// DataDir is where launch documents, transcripts, and logs are written.
	// If empty, defaults to the XDG data directory for conclave.
	// Supports ~ for home directory expansion.
	DataDir string `mapstructure:"data_dir"`

	// RosterFile is the path to the agent roster YAML file.
	// If empty, defaults to agents.yaml in the config directory.
	RosterFile string `mapstructure:"roster_file"`
}

// ResolveDataDir returns the resolved data directory path. An empty DataDir
// falls back to the XDG default; ~ expands to the user's home directory.
func (p *PathsConfig) ResolveDataDir() string {
	if p.DataDir == "" {
		return DataDir()
	}
	return expandHome(p.DataDir)
}

// ResolveRosterFile returns the resolved roster file path, defaulting to
// agents.yaml under the config directory.
func (p *PathsConfig) ResolveRosterFile() string {
	if p.RosterFile == "" {
		return filepath.Join(ConfigDir(), "agents.yaml")
	}
	return expandHome(p.RosterFile)
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			return home
		}
	}
	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Stages: StagesConfig{
			ResponseBudgetPerAgentSeconds:   300,  // 5 minutes per member
			DiscussionBudgetPerAgentSeconds: 180,  // 3 minutes per discusser
			DiscussionRoundFloorSeconds:     120,  // No round shorter than 2 minutes
			DiscussionTotalCeilingSeconds:   1800, // 30 minutes across all rounds
			ReviewBudgetPerAgentSeconds:     300,
			SynthesisBudgetSeconds:          600, // 10 minutes for the chairman
			ChatStartBudgetSeconds:          60,
		},
		Runtime: RuntimeConfig{
			OutputBufferSize: 262144, // 256KB per session
			StopGraceSeconds: 2,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Paths: PathsConfig{
			DataDir:    "", // Empty means use the XDG data directory
			RosterFile: "", // Empty means <config dir>/agents.yaml
		},
	}
}

// ResponseBudgetPerAgent returns the per-member initial-response budget as a time.Duration
func (s *StagesConfig) ResponseBudgetPerAgent() time.Duration {
	return time.Duration(s.ResponseBudgetPerAgentSeconds) * time.Second
}

// DiscussionBudgetPerAgent returns the per-agent discussion round budget as a time.Duration
func (s *StagesConfig) DiscussionBudgetPerAgent() time.Duration {
	return time.Duration(s.DiscussionBudgetPerAgentSeconds) * time.Second
}

// DiscussionRoundFloor returns the minimum single-round budget as a time.Duration
func (s *StagesConfig) DiscussionRoundFloor() time.Duration {
	return time.Duration(s.DiscussionRoundFloorSeconds) * time.Second
}

// DiscussionTotalCeiling returns the all-rounds budget cap as a time.Duration
func (s *StagesConfig) DiscussionTotalCeiling() time.Duration {
	return time.Duration(s.DiscussionTotalCeilingSeconds) * time.Second
}

// ReviewBudgetPerAgent returns the per-reviewer budget as a time.Duration
func (s *StagesConfig) ReviewBudgetPerAgent() time.Duration {
	return time.Duration(s.ReviewBudgetPerAgentSeconds) * time.Second
}

// SynthesisBudget returns the chairman synthesis budget as a time.Duration
func (s *StagesConfig) SynthesisBudget() time.Duration {
	return time.Duration(s.SynthesisBudgetSeconds) * time.Second
}

// ChatStartBudget returns the follow-up chat start budget as a time.Duration
func (s *StagesConfig) ChatStartBudget() time.Duration {
	return time.Duration(s.ChatStartBudgetSeconds) * time.Second
}

// StopGrace returns the interrupt-to-kill grace period as a time.Duration
func (r *RuntimeConfig) StopGrace() time.Duration {
	return time.Duration(r.StopGraceSeconds) * time.Second
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Stage budget defaults
	viper.SetDefault("stages.response_budget_per_agent_seconds", defaults.Stages.ResponseBudgetPerAgentSeconds)
	viper.SetDefault("stages.discussion_budget_per_agent_seconds", defaults.Stages.DiscussionBudgetPerAgentSeconds)
	viper.SetDefault("stages.discussion_round_floor_seconds", defaults.Stages.DiscussionRoundFloorSeconds)
	viper.SetDefault("stages.discussion_total_ceiling_seconds", defaults.Stages.DiscussionTotalCeilingSeconds)
	viper.SetDefault("stages.review_budget_per_agent_seconds", defaults.Stages.ReviewBudgetPerAgentSeconds)
	viper.SetDefault("stages.synthesis_budget_seconds", defaults.Stages.SynthesisBudgetSeconds)
	viper.SetDefault("stages.chat_start_budget_seconds", defaults.Stages.ChatStartBudgetSeconds)

	// Runtime defaults
	viper.SetDefault("runtime.output_buffer_size", defaults.Runtime.OutputBufferSize)
	viper.SetDefault("runtime.stop_grace_seconds", defaults.Runtime.StopGraceSeconds)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Paths defaults
	viper.SetDefault("paths.data_dir", defaults.Paths.DataDir)
	viper.SetDefault("paths.roster_file", defaults.Paths.RosterFile)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "conclave")
	}
	// Fall back to ~/.config/conclave
	home, err := os.UserHomeDir()
	if err != nil {
		return ".conclave"
	}
	return filepath.Join(home, ".config", "conclave")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns the path to the user's data directory
func DataDir() string {
	// Check XDG_DATA_HOME first
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "conclave")
	}
	// Fall back to ~/.local/share/conclave
	home, err := os.UserHomeDir()
	if err != nil {
		return ".conclave"
	}
	return filepath.Join(home, ".local", "share", "conclave")
}
