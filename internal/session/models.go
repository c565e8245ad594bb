// internal/session/models.go
package session

import (
	"time"

	"github.com/xkilldash9x/operator-cli/internal/history"
)

// Status represents the session's lifecycle state. A session starts running
// and moves exactly once into one of the three terminal states; transitions
// out of a terminal state are never applied.
type Status string

const (
	StatusRunning   Status = "RUNNING"   // The loop is actively perceiving, deciding and acting.
	StatusSucceeded Status = "SUCCEEDED" // The model signalled goal completion.
	StatusFailed    Status = "FAILED"    // A fatal error ended the session.
	StatusExhausted Status = "EXHAUSTED" // The step budget ran out before completion.
)

// terminal reports whether the status admits no further transitions.
func (s Status) terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusExhausted
}

// Goal is the operator's mission input: the natural-language objective plus
// an optional starting URL the session navigates to before the first
// decision.
type Goal struct {
	Objective string `json:"objective"`
	StartURL  string `json:"start_url,omitempty"`
}

// Result is the final report of a session run. It is produced exactly once,
// after the status has become terminal, and carries the full action history
// as the diagnostic record.
type Result struct {
	SessionID string    `json:"session_id"`
	Goal      Goal      `json:"goal"`
	Status    Status    `json:"status"`
	Steps     int       `json:"steps"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// ErrorCode and ErrorDetail are set when Status is FAILED.
	ErrorCode   ErrorCode `json:"error_code,omitempty"`
	ErrorDetail string    `json:"error_detail,omitempty"`

	// FinalURL is the page the browser was on when the session ended, when
	// known.
	FinalURL string `json:"final_url,omitempty"`
	// FinalScreenshotPath points at the last persisted screenshot, when
	// screenshot persistence is enabled.
	FinalScreenshotPath string `json:"final_screenshot_path,omitempty"`

	History []history.Entry `json:"history"`
}

// ExecutionResult is the standardized outcome of a single executed action:
// success or failure, with a structured error code and detail on failure.
type ExecutionResult struct {
	Status    string    `json:"status"` // "success" or "failed"
	ErrorCode ErrorCode `json:"error_code,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

const (
	execStatusSuccess = "success"
	execStatusFailed  = "failed"
)

// OK reports whether the action executed successfully.
func (r ExecutionResult) OK() bool {
	return r.Status == execStatusSuccess
}
