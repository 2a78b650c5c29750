package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "stages.synthesis_budget_seconds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateStages()...)
	errors = append(errors, c.validateRuntime()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateStages validates the StagesConfig
func (c *Config) validateStages() []ValidationError {
	var errors []ValidationError

	budgets := []struct {
		field string
		value int
	}{
		{"stages.response_budget_per_agent_seconds", c.Stages.ResponseBudgetPerAgentSeconds},
		{"stages.discussion_budget_per_agent_seconds", c.Stages.DiscussionBudgetPerAgentSeconds},
		{"stages.discussion_round_floor_seconds", c.Stages.DiscussionRoundFloorSeconds},
		{"stages.discussion_total_ceiling_seconds", c.Stages.DiscussionTotalCeilingSeconds},
		{"stages.review_budget_per_agent_seconds", c.Stages.ReviewBudgetPerAgentSeconds},
		{"stages.synthesis_budget_seconds", c.Stages.SynthesisBudgetSeconds},
		{"stages.chat_start_budget_seconds", c.Stages.ChatStartBudgetSeconds},
	}
	for _, b := range budgets {
		if b.value <= 0 {
			errors = append(errors, ValidationError{
				Field:   b.field,
				Value:   b.value,
				Message: "must be positive",
			})
		}
	}

	if c.Stages.DiscussionTotalCeilingSeconds < c.Stages.DiscussionRoundFloorSeconds {
		errors = append(errors, ValidationError{
			Field:   "stages.discussion_total_ceiling_seconds",
			Value:   c.Stages.DiscussionTotalCeilingSeconds,
			Message: fmt.Sprintf("must be at least the round floor (%d)", c.Stages.DiscussionRoundFloorSeconds),
		})
	}

	return errors
}

// validateRuntime validates the RuntimeConfig
func (c *Config) validateRuntime() []ValidationError {
	var errors []ValidationError

	const minBufferSize = 1024        // 1KB minimum
	const maxBufferSize = 100_000_000 // 100MB maximum

	if c.Runtime.OutputBufferSize < minBufferSize {
		errors = append(errors, ValidationError{
			Field:   "runtime.output_buffer_size",
			Value:   c.Runtime.OutputBufferSize,
			Message: fmt.Sprintf("must be at least %d bytes (1KB)", minBufferSize),
		})
	}
	if c.Runtime.OutputBufferSize > maxBufferSize {
		errors = append(errors, ValidationError{
			Field:   "runtime.output_buffer_size",
			Value:   c.Runtime.OutputBufferSize,
			Message: fmt.Sprintf("exceeds maximum of %d bytes (100MB)", maxBufferSize),
		})
	}

	if c.Runtime.StopGraceSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "runtime.stop_grace_seconds",
			Value:   c.Runtime.StopGraceSeconds,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
