// internal/session/errors.go
package session

import "fmt"

// ErrorCode is a string type used for structured error reporting from the
// session loop and the action executor. Using a custom type ensures only
// predefined constants appear where an ErrorCode is expected.
type ErrorCode string

const (
	// ErrCodeDriverUnavailable means the browser driver cannot be reached.
	// Fatal: browser connectivity is not expected to self-heal, so there is
	// no retry.
	ErrCodeDriverUnavailable ErrorCode = "DRIVER_UNAVAILABLE"

	// ErrCodeMalformedDecision means the decision model produced output that
	// could not be turned into a valid action request, twice in a row for the
	// same step.
	ErrCodeMalformedDecision ErrorCode = "MALFORMED_DECISION"

	// ErrCodeActionExecution means a valid action failed during execution.
	// Recoverable per step; the failure is recorded and surfaced to the model.
	ErrCodeActionExecution ErrorCode = "ACTION_EXECUTION_ERROR"

	// ErrCodeConfiguration means the session could not start: missing goal,
	// missing credential, or an invalid configuration value.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// ErrCodeUnknownAction means the executor was handed an action kind it has
	// no mapping for. Validated requests cannot trigger it; it guards the
	// executor's own dispatch table.
	ErrCodeUnknownAction ErrorCode = "UNKNOWN_ACTION_TYPE"

	// ErrCodeInterrupted means the caller's context ended mid-session.
	ErrCodeInterrupted ErrorCode = "INTERRUPTED"
)

// ConfigurationError reports a startup precondition failure. It is returned
// before any browser or model resources are touched and carries
// ErrCodeConfiguration in its message.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCodeConfiguration, e.Detail)
}
