package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	if len(errs) != 0 {
		t.Errorf("Default config should be valid, got %d errors: %v", len(errs), errs)
	}
}

// hasFieldError reports whether any validation error names the given field.
func hasFieldError(errs []ValidationError, field string) bool {
	for _, err := range errs {
		if err.Field == field {
			return true
		}
	}
	return false
}

func TestConfig_Validate_Stages(t *testing.T) {
	t.Run("zero budget", func(t *testing.T) {
		cfg := Default()
		cfg.Stages.SynthesisBudgetSeconds = 0
		errs := cfg.Validate()
		if !hasFieldError(errs, "stages.synthesis_budget_seconds") {
			t.Error("expected error for zero synthesis budget")
		}
	})

	t.Run("negative budget", func(t *testing.T) {
		cfg := Default()
		cfg.Stages.ResponseBudgetPerAgentSeconds = -5
		errs := cfg.Validate()
		if !hasFieldError(errs, "stages.response_budget_per_agent_seconds") {
			t.Error("expected error for negative response budget")
		}
	})

	t.Run("ceiling below floor", func(t *testing.T) {
		cfg := Default()
		cfg.Stages.DiscussionRoundFloorSeconds = 300
		cfg.Stages.DiscussionTotalCeilingSeconds = 200
		errs := cfg.Validate()
		if !hasFieldError(errs, "stages.discussion_total_ceiling_seconds") {
			t.Error("expected error when ceiling is below the round floor")
		}
	})

	t.Run("all budgets reported", func(t *testing.T) {
		cfg := Default()
		cfg.Stages = StagesConfig{}
		errs := cfg.Validate()
		// Seven zero budgets, each reported individually.
		count := 0
		for _, err := range errs {
			if strings.HasPrefix(err.Field, "stages.") && err.Message == "must be positive" {
				count++
			}
		}
		if count != 7 {
			t.Errorf("expected 7 stage budget errors, got %d: %v", count, errs)
		}
	})
}

func TestConfig_Validate_Runtime(t *testing.T) {
	t.Run("buffer too small", func(t *testing.T) {
		cfg := Default()
		cfg.Runtime.OutputBufferSize = 512
		errs := cfg.Validate()
		if !hasFieldError(errs, "runtime.output_buffer_size") {
			t.Error("expected error for undersized output buffer")
		}
	})

	t.Run("buffer too large", func(t *testing.T) {
		cfg := Default()
		cfg.Runtime.OutputBufferSize = 200_000_000
		errs := cfg.Validate()
		if !hasFieldError(errs, "runtime.output_buffer_size") {
			t.Error("expected error for oversized output buffer")
		}
	})

	t.Run("negative stop grace", func(t *testing.T) {
		cfg := Default()
		cfg.Runtime.StopGraceSeconds = -1
		errs := cfg.Validate()
		if !hasFieldError(errs, "runtime.stop_grace_seconds") {
			t.Error("expected error for negative stop grace")
		}
	})

	t.Run("zero stop grace is valid", func(t *testing.T) {
		cfg := Default()
		cfg.Runtime.StopGraceSeconds = 0
		errs := cfg.Validate()
		if hasFieldError(errs, "runtime.stop_grace_seconds") {
			t.Error("zero stop grace should be valid")
		}
	})
}

func TestConfig_Validate_Logging(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		hasError bool
	}{
		{"valid debug", "debug", false},
		{"valid info", "info", false},
		{"valid warn", "warn", false},
		{"valid error", "error", false},
		{"empty is valid", "", false},
		{"invalid level", "verbose", true},
		{"case sensitive", "INFO", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Logging.Level = tt.level
			errs := cfg.Validate()

			if got := hasFieldError(errs, "logging.level"); got != tt.hasError {
				t.Errorf("Validate() for level=%q: hasError=%v, want %v", tt.level, got, tt.hasError)
			}
		})
	}

	t.Run("zero max size", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxSizeMB = 0
		errs := cfg.Validate()
		if !hasFieldError(errs, "logging.max_size_mb") {
			t.Error("expected error for zero max_size_mb")
		}
	})

	t.Run("negative backups", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxBackups = -1
		errs := cfg.Validate()
		if !hasFieldError(errs, "logging.max_backups") {
			t.Error("expected error for negative max_backups")
		}
	})

	t.Run("zero backups is valid", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxBackups = 0
		errs := cfg.Validate()
		if hasFieldError(errs, "logging.max_backups") {
			t.Error("zero backups should be valid")
		}
	})
}

func TestValidLogLevels(t *testing.T) {
	levels := ValidLogLevels()
	expected := []string{"debug", "info", "warn", "error"}
	if len(levels) != len(expected) {
		t.Fatalf("ValidLogLevels() length = %d, want %d", len(levels), len(expected))
	}
	for i, level := range expected {
		if levels[i] != level {
			t.Errorf("ValidLogLevels()[%d] = %q, want %q", i, levels[i], level)
		}
	}
}
