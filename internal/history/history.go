// internal/history/history.go
// The history log is the agent's continuity across steps: an append-only,
// ordered record of what was attempted and what happened. The decision model
// cannot consume an unbounded transcript, so Digest renders a bounded view:
// the most recent entries verbatim and everything older compacted to a
// single line each, oldest first, order preserved.
package history

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/operator-cli/internal/action"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Outcome is the recorded result status of an executed action.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
)

// Entry is one ordered (step, request, result summary) tuple. Entries are
// immutable once appended.
type Entry struct {
	Step    int            `json:"step"`
	Request action.Request `json:"request"`
	Outcome Outcome        `json:"outcome"`
	// Detail carries the error message for failed executions.
	Detail string `json:"detail,omitempty"`
}

// Log owns the full ordered sequence of history entries for one session.
// It is not safe for concurrent use; the session loop is strictly
// sequential so no locking is needed.
type Log struct {
	entries []Entry
	// window is how many of the most recent entries the digest renders in
	// full; older entries are compacted.
	window int
	// errorNote is a transient note injected into the next digest, used when
	// re-requesting a decision after a malformed model response.
	errorNote string
}

// NewLog creates a history log with the given digest window.
func NewLog(window int) *Log {
	if window < 1 {
		window = 1
	}
	return &Log{window: window}
}

// Append records an entry. The step index must strictly increase; a
// non-monotonic append indicates a controller bug and panics rather than
// silently corrupting the record.
func (l *Log) Append(e Entry) {
	if n := len(l.entries); n > 0 && e.Step <= l.entries[n-1].Step {
		panic(fmt.Sprintf("history: non-monotonic step index %d after %d", e.Step, l.entries[n-1].Step))
	}
	l.entries = append(l.entries, e)
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the full sequence, preserving order. The full
// history is retained even on failure; it is the primary diagnostic record.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Last returns the most recent entry, or false when the log is empty.
func (l *Log) Last() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// SetErrorNote attaches a transient note rendered by the next Digest call,
// e.g. "previous response was not valid JSON". It persists until cleared.
func (l *Log) SetErrorNote(note string) {
	l.errorNote = note
}

// ClearErrorNote removes the transient note.
func (l *Log) ClearErrorNote() {
	l.errorNote = ""
}

// Digest renders the bounded serialization of history for the decision
// model. Recent entries (up to the window) are rendered as lossless JSON so
// the exact action kind and parameters can be reconstructed from the text;
// older entries are compacted to one summary line each. Ordering is always
// oldest first and nothing is reordered or silently dropped.
func (l *Log) Digest() string {
	var b strings.Builder

	if len(l.entries) == 0 {
		b.WriteString("No actions have been taken yet.")
	} else {
		b.WriteString("Action history (oldest first):\n")
		cutoff := len(l.entries) - l.window
		for i, e := range l.entries {
			if i < cutoff {
				b.WriteString(compactLine(e))
			} else {
				b.WriteString(fullLine(e))
			}
			b.WriteByte('\n')
		}
	}

	if l.errorNote != "" {
		b.WriteString("\nNote: ")
		b.WriteString(l.errorNote)
	}

	return strings.TrimRight(b.String(), "\n")
}

// compactLine renders an old entry as a short ordered summary.
func compactLine(e Entry) string {
	if e.Outcome == OutcomeError {
		return fmt.Sprintf("#%d %s -> error (%s)", e.Step, e.Request.Summary(), e.Detail)
	}
	return fmt.Sprintf("#%d %s -> ok", e.Step, e.Request.Summary())
}

// fullLine renders a recent entry with the complete request JSON. The JSON
// is lossless: unmarshalling it yields the same kind and parameters.
func fullLine(e Entry) string {
	raw, err := json.Marshal(e.Request)
	if err != nil {
		// Marshalling a Request cannot realistically fail; fall back to the
		// summary so the digest stays ordered.
		return compactLine(e)
	}
	if e.Outcome == OutcomeError {
		return fmt.Sprintf("#%d [error: %s] %s", e.Step, e.Detail, string(raw))
	}
	return fmt.Sprintf("#%d [ok] %s", e.Step, string(raw))
}
