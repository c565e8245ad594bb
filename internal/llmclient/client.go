// internal/llmclient/client.go
package llmclient

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/operator-cli/internal/action"
	"github.com/xkilldash9x/operator-cli/internal/observer"
)

// DecisionInput is everything the decision model sees for one step: the goal,
// the current observation (screenshot plus page metadata) and the bounded
// history digest. It carries no mutable loop state.
type DecisionInput struct {
	Goal          string
	Observation   observer.Observation
	HistoryDigest string
	// Step and MaxSteps let the model pace itself against the budget.
	Step     int
	MaxSteps int
}

// Client produces a single validated action request per call. Decide blocks
// until the decision is available or the context ends; implementations own
// their transport-level retries internally.
type Client interface {
	Decide(ctx context.Context, in DecisionInput) (action.Request, error)
}

// MalformedDecisionError reports a model response that could not be turned
// into a valid action request: unparsable JSON, an unknown action kind, or
// parameters that fail validation. The caller retries the decision once with
// this detail in context before treating it as fatal.
type MalformedDecisionError struct {
	Detail string
}

func (e *MalformedDecisionError) Error() string {
	return fmt.Sprintf("malformed model decision: %s", e.Detail)
}

func malformedf(format string, args ...any) error {
	return &MalformedDecisionError{Detail: fmt.Sprintf(format, args...)}
}
