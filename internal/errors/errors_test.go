package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/restbench/core/internal/errors"
)

// TestUserErrorFormatting verifies UserError displays properly
func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "Connection timeout",
		Suggestion: "Check network connectivity",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Connection timeout")
	assert.Contains(t, errMsg, "Check network connectivity")
	assert.Contains(t, errMsg, "Try:")
}

// TestConfigErrorFormatting verifies ConfigError displays with context
func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "providers.vault.addr",
		Value:      "invalid-url",
		Message:    "Invalid URL format",
		Suggestion: "Use format: http://hostname:port",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "providers.vault.addr")
	assert.Contains(t, errMsg, "invalid-url")
	assert.Contains(t, errMsg, "Invalid URL format")
	assert.Contains(t, errMsg, "http://hostname:port")
}

// TestCommandErrorFormatting verifies CommandError includes exit code
func TestCommandErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.CommandError{
		Command:    "git push",
		ExitCode:   1,
		Message:    "remote rejected",
		Suggestion: "pull before pushing again",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "git push")
	assert.Contains(t, errMsg, "exit code: 1")
	assert.Contains(t, errMsg, "remote rejected")
	assert.Contains(t, errMsg, "pull before pushing again")
}

func TestNotFoundError(t *testing.T) {
	t.Parallel()

	err := errors.NotFoundError{Entity: "workspace", ID: "ws-1"}
	assert.Contains(t, err.Error(), "workspace")
	assert.Contains(t, err.Error(), "ws-1")
}

func TestConstraintViolationError(t *testing.T) {
	t.Parallel()

	err := errors.ConstraintViolationError{Entity: "folder", Message: "parent collection does not exist"}
	assert.Contains(t, err.Error(), "folder")
	assert.Contains(t, err.Error(), "parent collection does not exist")
}

func TestEncryptionError(t *testing.T) {
	t.Parallel()

	base := fmt.Errorf("cipher: message authentication failed")
	err := errors.EncryptionError{Op: "decrypt field", Message: "tamper detected", Err: base}

	assert.Contains(t, err.Error(), "tamper detected")
	assert.Contains(t, err.Error(), "decrypt field")
	assert.ErrorIs(t, err, base)
}

func TestConflictError(t *testing.T) {
	t.Parallel()

	err := errors.ConflictError{
		CollectionID:   "col-1",
		CollectionName: "Payments API",
		Paths:          []string{"requests/create.yaml", "requests/refund.yaml"},
	}

	errMsg := err.Error()
	assert.Contains(t, errMsg, "Payments API")
	assert.Contains(t, errMsg, "col-1")
	assert.Contains(t, errMsg, "2 path")
}

func TestProviderAuthError(t *testing.T) {
	t.Parallel()

	base := fmt.Errorf("403 permission denied")
	err := errors.ProviderAuthError{Provider: "vault", Err: base}

	assert.Contains(t, err.Error(), "vault")
	assert.Contains(t, err.Error(), "403")
	assert.ErrorIs(t, err, base)
}

func TestProviderNetworkError(t *testing.T) {
	t.Parallel()

	base := fmt.Errorf("dial tcp: connection refused")
	err := errors.ProviderNetworkError{Provider: "vault", Summary: "connection refused", Err: base}

	assert.Contains(t, err.Error(), "vault")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, base)
}

func TestScriptLimitError(t *testing.T) {
	t.Parallel()

	err := errors.ScriptLimitError{RequestID: "req-1", Reason: "max depth"}
	assert.Contains(t, err.Error(), "req-1")
	assert.Contains(t, err.Error(), "max depth")
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := errors.ValidationError{Field: "history_retention_days", Message: "must be between 1 and 365"}
	assert.Contains(t, err.Error(), "history_retention_days")
	assert.Contains(t, err.Error(), "must be between 1 and 365")

	bare := errors.ValidationError{Message: "body too large"}
	assert.Equal(t, "validation error: body too large", bare.Error())
}

func TestSerializationError(t *testing.T) {
	t.Parallel()

	base := fmt.Errorf("yaml: line 4: did not find expected key")
	err := errors.SerializationError{Path: "requests/list-users.yaml", Message: "malformed document", Err: base}

	assert.Contains(t, err.Error(), "requests/list-users.yaml")
	assert.Contains(t, err.Error(), "malformed document")
	assert.ErrorIs(t, err, base)
}

func TestIOError(t *testing.T) {
	t.Parallel()

	base := fmt.Errorf("no space left on device")
	err := errors.IOError{Op: "write manifest", Err: base}

	assert.Contains(t, err.Error(), "write manifest")
	assert.Contains(t, err.Error(), "no space left on device")
	assert.ErrorIs(t, err, base)
}

// TestProviderErrorSuggestions verifies provider-specific error suggestions
// for the collaborators this module actually talks to.
func TestProviderErrorSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name               string
		provider           string
		errorMsg           string
		expectedSuggestion string
	}{
		{"vault_forbidden", "vault", "permission denied (403)", "policy granting access"},
		{"vault_sealed", "vault", "Vault is sealed", "unseal"},
		{"vault_not_found", "vault", "404 not found", "mount"},
		{"github_conflict", "github", "409 sha mismatch", "pull before pushing"},
		{"github_forbidden", "github", "403 Forbidden", "repo write access"},
		{"generic_timeout", "vault", "request timeout", "timed out"},
		{"generic_connrefused", "github", "dial tcp: connection refused", "Unable to connect"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			baseErr := fmt.Errorf(tt.errorMsg)
			providerErr := errors.ProviderError(tt.provider, "resolve", baseErr)

			errMsg := providerErr.Error()
			assert.Contains(t, errMsg, tt.expectedSuggestion)
		})
	}
}

// TestWrapCommandNotFound verifies command not found errors have helpful suggestions
func TestWrapCommandNotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		command            string
		expectedSuggestion string
	}{
		{"npm", "Node.js"},
		{"docker", "Docker"},
		{"git", "Git"},
		{"python", "Python"},
		{"go", "Go"},
		{"unknown-cmd", "in your PATH"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.command, func(t *testing.T) {
			t.Parallel()

			baseErr := fmt.Errorf("command not found")
			err := errors.WrapCommandNotFound(tt.command, baseErr)

			errMsg := err.Error()
			assert.Contains(t, errMsg, tt.command)
			assert.Contains(t, errMsg, tt.expectedSuggestion)
		})
	}
}

// TestIsRetryable verifies retryable error detection
func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		errorMsg  string
		retryable bool
	}{
		{"timeout", "operation timeout", true},
		{"rate_limit", "rate limit exceeded", true},
		{"throttling", "ThrottlingException", true},
		{"connection_reset", "connection reset by peer", true},
		{"broken_pipe", "broken pipe", true},
		{"not_found", "resource not found", false},
		{"invalid_config", "invalid configuration", false},
		{"nil_error", "", false}, // nil error case
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var err error
			if tt.errorMsg != "" {
				err = fmt.Errorf(tt.errorMsg)
			}

			result := errors.IsRetryable(err)
			assert.Equal(t, tt.retryable, result)
		})
	}
}

// TestSimplifyError verifies error simplification for common cases
func TestSimplifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		inputError    error
		expectedType  string
		expectedInMsg string
	}{
		{
			name:          "yaml_error",
			inputError:    fmt.Errorf("yaml: line 5: mapping values are not allowed"),
			expectedType:  "ConfigError",
			expectedInMsg: "Invalid YAML",
		},
		{
			name:          "json_error",
			inputError:    fmt.Errorf("json: invalid character"),
			expectedType:  "ConfigError",
			expectedInMsg: "Invalid JSON",
		},
		{
			name:          "permission_denied",
			inputError:    fmt.Errorf("permission denied"),
			expectedType:  "UserError",
			expectedInMsg: "Permission denied",
		},
		{
			name:          "file_not_found",
			inputError:    fmt.Errorf("no such file or directory"),
			expectedType:  "UserError",
			expectedInMsg: "not found",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			simplified := errors.SimplifyError(tt.inputError)

			errMsg := simplified.Error()
			assert.Contains(t, errMsg, tt.expectedInMsg)

			switch tt.expectedType {
			case "ConfigError":
				_, ok := simplified.(errors.ConfigError)
				assert.True(t, ok, "Should be ConfigError type")
			case "UserError":
				_, ok := simplified.(errors.UserError)
				assert.True(t, ok, "Should be UserError type")
			}
		})
	}
}

// TestUserErrorUnwrap verifies error unwrapping works correctly
func TestUserErrorUnwrap(t *testing.T) {
	t.Parallel()

	baseErr := fmt.Errorf("base error")
	userErr := errors.UserError{
		Message: "wrapped error",
		Err:     baseErr,
	}

	unwrapped := userErr.Unwrap()
	assert.Equal(t, baseErr, unwrapped)
}

// TestNilErrorHandling verifies nil errors are handled gracefully
func TestNilErrorHandling(t *testing.T) {
	t.Parallel()

	assert.False(t, errors.IsRetryable(nil))
	assert.Nil(t, errors.SimplifyError(nil))
}
