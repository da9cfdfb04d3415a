package exitcode

import (
	stderrors "errors"
	"net"
	"strings"

	"github.com/felixgeelhaar/rbr-console/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// Rejected indicates the operation was refused locally: protected
	// record, failed validation or a mutation already in flight
	Rejected = 3

	// ConfigError indicates an unusable configuration
	ConfigError = 4

	// AuthError indicates an authentication or authorization failure
	AuthError = 5

	// NetworkError indicates the backend could not be reached or failed
	NetworkError = 6

	// Interrupted indicates the user cancelled with Ctrl+C or SIGTERM
	Interrupted = 130
)

// DetermineExitCode maps an error to an exit code. Coded errors decide by
// code; uncoded errors fall back to network and cobra usage detection.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if errors.Is(err, errors.ErrCodeInvalidCredentials) ||
		errors.Is(err, errors.ErrCodeMissingToken) ||
		errors.Is(err, errors.ErrCodeUnauthorized) ||
		errors.Is(err, errors.ErrCodeCredentialsMissing) {
		return AuthError
	}

	switch errors.CodeOf(err) {
	case errors.ErrCodeProtectedRecord, errors.ErrCodeValidationFailed,
		errors.ErrCodeNothingSelected, errors.ErrCodeMutationInFlight,
		errors.ErrCodeRecordNotFound:
		return Rejected
	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigRead:
		return ConfigError
	case errors.ErrCodeRequestFailed, errors.ErrCodeDecodeFailed, errors.ErrCodeEncodeFailed:
		return NetworkError
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return NetworkError
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unknown command") || strings.Contains(msg, "unknown flag") ||
		strings.Contains(msg, "required flag") || strings.Contains(msg, "accepts ") {
		return UsageError
	}

	return GeneralError
}

// Description returns a human-readable description of an exit code
func Description(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case Rejected:
		return "Operation rejected"
	case ConfigError:
		return "Configuration error"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
