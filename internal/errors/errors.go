// Package errors defines the error taxonomy used across restbench.
//
// Errors are modeled as typed values carrying user-facing context (a
// message plus an optional suggestion) rather than opaque fmt.Errorf
// strings, so callers at the IPC/CLI boundary can render a consistent
// "short error class + descriptive message" shape.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context.
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration or settings error with helpful context.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  " + e.Suggestion
	}

	return msg
}

// NotFoundError reports a missing repository row.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// ConstraintViolationError reports a foreign-key or uniqueness violation.
type ConstraintViolationError struct {
	Entity  string
	Message string
}

func (e ConstraintViolationError) Error() string {
	return fmt.Sprintf("%s constraint violation: %s", e.Entity, e.Message)
}

// EncryptionError reports tamper detection, a key mismatch, or an unreadable
// wrapped master key. Kept distinct from IOError so callers can tell
// "the disk is fine but the bytes don't decrypt" from "the disk failed".
type EncryptionError struct {
	Op      string
	Message string
	Err     error
}

func (e EncryptionError) Error() string {
	msg := fmt.Sprintf("encryption error during %s: %s", e.Op, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e EncryptionError) Unwrap() error { return e.Err }

// ConflictError reports a three-way merge divergence surfaced by the sync engine.
type ConflictError struct {
	CollectionID   string
	CollectionName string
	Paths          []string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("sync conflict in collection '%s' (%s): %d path(s) diverged",
		e.CollectionName, e.CollectionID, len(e.Paths))
}

// ProviderAuthError reports a 401/403 from a secret provider that survived
// one token-refresh retry.
type ProviderAuthError struct {
	Provider string
	Err      error
}

func (e ProviderAuthError) Error() string {
	msg := fmt.Sprintf("%s authentication failed", e.Provider)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e ProviderAuthError) Unwrap() error { return e.Err }

// ProviderNetworkError reports TLS, DNS, connection-refused, or timeout
// failures talking to a secret provider or git remote.
type ProviderNetworkError struct {
	Provider string
	Summary  string
	Err      error
}

func (e ProviderNetworkError) Error() string {
	return fmt.Sprintf("%s network error: %s", e.Provider, e.Summary)
}

func (e ProviderNetworkError) Unwrap() error { return e.Err }

// ScriptLimitError reports a pre-request chain depth or cycle violation.
type ScriptLimitError struct {
	RequestID string
	Reason    string // "max depth" or "cycle"
}

func (e ScriptLimitError) Error() string {
	return fmt.Sprintf("script chain error for request %s: %s", e.RequestID, e.Reason)
}

// ValidationError reports a rejected input: a disallowed URL scheme, an
// out-of-range retention value, an oversized body, or a non-matching
// conflict-resolution token.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// SerializationError reports a document parse failure: invalid YAML-like
// syntax, a malformed UUID, or an array expected where one wasn't found.
type SerializationError struct {
	Path    string
	Message string
	Err     error
}

func (e SerializationError) Error() string {
	msg := fmt.Sprintf("failed to parse %s: %s", e.Path, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e SerializationError) Unwrap() error { return e.Err }

// IOError reports a backing-store failure (disk full, permission denied,
// file missing) distinct from EncryptionError.
type IOError struct {
	Op  string
	Err error
}

func (e IOError) Error() string {
	return fmt.Sprintf("io error during %s: %s", e.Op, e.Err)
}

func (e IOError) Unwrap() error { return e.Err }

// CommandError represents a command execution error.
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  " + e.Suggestion
	}

	return msg
}

// ProviderError enhances secret-provider or git-adapter errors with context.
func ProviderError(provider string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s error during %s", provider, operation),
		Suggestion: getProviderSuggestion(provider, err),
		Err:        err,
	}
}

func getProviderSuggestion(provider string, err error) string {
	errStr := err.Error()

	switch provider {
	case "vault", "hashicorp-vault":
		if strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "403") {
			return "Check the token or AppRole has a policy granting access to this path"
		}
		if strings.Contains(errStr, "sealed") {
			return "The Vault server is sealed; ask an operator to unseal it"
		}
		if strings.Contains(errStr, "404") {
			return "Verify the mount and path exist; list secrets with the configured mount prefix"
		}
	case "github", "git":
		if strings.Contains(errStr, "409") || strings.Contains(errStr, "sha") {
			return "The remote file changed since it was last read; pull before pushing again"
		}
		if strings.Contains(errStr, "401") || strings.Contains(errStr, "403") {
			return "Check the configured token has repo write access"
		}
	}

	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check network connectivity and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check network and provider configuration"
	}

	return ""
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(strings.ToLower(errStr), pattern) {
			return true
		}
	}

	return false
}

// SimplifyError simplifies common technical errors into user-facing ones.
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	switch err.(type) {
	case UserError, ConfigError, CommandError:
		return err
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "json:") {
		return ConfigError{
			Message:    "Invalid JSON format",
			Suggestion: "Validate the JSON structure",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}

// WrapCommandNotFound wraps a "command not found" failure in a CommandError
// whose suggestion names what to install.
func WrapCommandNotFound(command string, err error) error {
	hints := map[string]string{
		"npm": "Install Node.js", "docker": "Install Docker", "git": "Install Git",
		"python": "Install Python", "go": "Install Go",
	}
	suggestion, ok := hints[command]
	if !ok {
		suggestion = fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	}
	return CommandError{Command: command, Message: err.Error(), Suggestion: suggestion}
}
