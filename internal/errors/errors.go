package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Authentication errors (AUTH-001 to AUTH-099)
	ErrCodeInvalidCredentials ErrorCode = "AUTH-001"
	ErrCodeMissingToken       ErrorCode = "AUTH-002"
	ErrCodeUnauthorized       ErrorCode = "AUTH-003"
	ErrCodeCredentialsMissing ErrorCode = "AUTH-004"

	// Directory errors (DIR-001 to DIR-099)
	ErrCodeRequestFailed ErrorCode = "DIR-001"
	ErrCodeDecodeFailed  ErrorCode = "DIR-002"
	ErrCodeEncodeFailed  ErrorCode = "DIR-003"

	// User workflow errors (USER-001 to USER-099)
	ErrCodeProtectedRecord  ErrorCode = "USER-001"
	ErrCodeValidationFailed ErrorCode = "USER-002"
	ErrCodeNothingSelected  ErrorCode = "USER-003"
	ErrCodeMutationInFlight ErrorCode = "USER-004"
	ErrCodeRecordNotFound   ErrorCode = "USER-005"

	// Configuration errors (CFG-001 to CFG-099)
	ErrCodeConfigInvalid ErrorCode = "CFG-001"
	ErrCodeConfigRead    ErrorCode = "CFG-002"
)

// ConsoleError represents an enhanced error with code, suggestions, and documentation
type ConsoleError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *ConsoleError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *ConsoleError) Unwrap() error {
	return e.Cause
}

// New creates a new ConsoleError
func New(code ErrorCode, message string) *ConsoleError {
	return &ConsoleError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new ConsoleError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *ConsoleError {
	return &ConsoleError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *ConsoleError) WithSuggestion(suggestion string) *ConsoleError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *ConsoleError) WithSuggestions(suggestions ...string) *ConsoleError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *ConsoleError) WithDocs(url string) *ConsoleError {
	e.DocsURL = url
	return e
}

// CodeOf returns the code of the first ConsoleError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ce *ConsoleError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// Is reports whether err's chain contains a ConsoleError with the given code.
func Is(err error, code ErrorCode) bool {
	var ce *ConsoleError
	for err != nil {
		if !stderrors.As(err, &ce) {
			return false
		}
		if ce.Code == code {
			return true
		}
		err = ce.Cause
	}
	return false
}

// Common error constructors for frequently used errors

// NewInvalidCredentialsError reports a rejected login.
func NewInvalidCredentialsError(cause error) *ConsoleError {
	return Wrap(ErrCodeInvalidCredentials, "Invalid email or password.", cause).
		WithSuggestion("Check the email/username and password and try again")
}

// NewMissingTokenError reports a login response without an access token.
func NewMissingTokenError() *ConsoleError {
	return New(ErrCodeMissingToken, "Login succeeded but no token received.").
		WithSuggestion("The backend may be misconfigured; contact your administrator")
}

// NewUnauthorizedError reports a request the backend refused for lack of a valid session.
func NewUnauthorizedError(cause error) *ConsoleError {
	return Wrap(ErrCodeUnauthorized, "request not authorized", cause).
		WithSuggestion("Log in again; sessions are not refreshed automatically")
}

// NewProtectedRecordError reports an attempt to mutate a root administrator.
func NewProtectedRecordError(message string) *ConsoleError {
	return New(ErrCodeProtectedRecord, message)
}

// NewValidationError reports form fields that failed local validation.
func NewValidationError(details string) *ConsoleError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("validation failed: %s", details)).
		WithSuggestion("Correct the highlighted fields and submit again")
}

// NewConfigInvalidError reports an unusable configuration value.
func NewConfigInvalidError(details string) *ConsoleError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Run 'rbr config view' to inspect the effective configuration").
		WithSuggestion("Check RBR_* environment variables")
}
