package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured indicates a feature is intentionally not configured.
var ErrNotConfigured = errors.New("not configured")

// ConfigError is a configuration problem with actionable guidance.
// All messages are lowercase.
//
//nolint:revive // ConfigError is intentionally named for clarity in external API usage
type ConfigError struct {
	Category string // "missing", "invalid" or "not_configured"
	Field    string // config key, e.g. "database.host"
	Message  string
	Action   string
}

func (e *ConfigError) Error() string {
	var parts []string
	if e.Category != "" {
		parts = append(parts, fmt.Sprintf("config_%s:", e.Category))
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}
	return strings.Join(parts, " ")
}

// Is lets errors.Is match ErrNotConfigured for not_configured errors.
func (e *ConfigError) Is(target error) bool {
	return target == ErrNotConfigured && e.Category == "not_configured"
}

// envVar derives the environment variable overriding field.
func envVar(field string) string {
	return DefaultEnvPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
}

// NewMissingFieldError reports a required field left empty.
func NewMissingFieldError(field string) *ConfigError {
	return &ConfigError{
		Category: "missing",
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to %s", envVar(field), field, DefaultConfigFile),
	}
}

// NewInvalidFieldError reports a field holding an unusable value.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := &ConfigError{
		Category: "invalid",
		Field:    field,
		Message:  message,
	}
	if len(validOptions) > 0 {
		err.Action = fmt.Sprintf("must be one of: %s", strings.Join(validOptions, ", "))
	}
	return err
}

// NewNotConfiguredError reports an optional feature that was not set up.
func NewNotConfiguredError(field string) *ConfigError {
	return &ConfigError{
		Category: "not_configured",
		Field:    field,
		Message:  "(optional)",
		Action:   fmt.Sprintf("to enable: set %s env var or add %s to %s", envVar(field), field, DefaultConfigFile),
	}
}
