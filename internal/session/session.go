// internal/session/session.go
// The session controller owns the perceive-decide-act loop: capture the
// browser state, ask the decision model for the next action, execute it,
// record the outcome, repeat. The loop is strictly sequential; at most one
// action is in flight at any time and every decision sees the effects of all
// previous actions.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/operator-cli/internal/action"
	"github.com/xkilldash9x/operator-cli/internal/browser"
	"github.com/xkilldash9x/operator-cli/internal/config"
	"github.com/xkilldash9x/operator-cli/internal/history"
	"github.com/xkilldash9x/operator-cli/internal/llmclient"
	"github.com/xkilldash9x/operator-cli/internal/observer"
)

// Perceiver captures the current browser state. Satisfied by
// observer.Observer in production.
type Perceiver interface {
	Capture(ctx context.Context) (observer.Observation, error)
}

// Controller drives one session from goal to terminal state. It is
// single-use: construct, Run once, discard.
type Controller struct {
	perceiver Perceiver
	client    llmclient.Client
	executor  *Executor
	log       *history.Log
	cfg       config.SessionConfig
	logger    *zap.Logger
}

// NewController wires the loop's collaborators together.
func NewController(drv browser.Driver, perceiver Perceiver, client llmclient.Client, log *history.Log, cfg config.SessionConfig, logger *zap.Logger) *Controller {
	logger = logger.Named("session")
	return &Controller{
		perceiver: perceiver,
		client:    client,
		executor:  NewExecutor(drv, cfg.MaxWait, logger),
		log:       log,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes the loop until the session reaches a terminal state. The
// returned Result is always populated when the error is nil; an error is
// returned only for startup precondition failures, before any step runs.
func (c *Controller) Run(ctx context.Context, goal Goal) (*Result, error) {
	if err := validateGoal(goal); err != nil {
		return nil, err
	}

	result := &Result{
		SessionID: uuid.NewString(),
		Goal:      goal,
		Status:    StatusRunning,
		StartTime: time.Now().UTC(),
	}
	c.logger.Info("Session starting.",
		zap.String("session_id", result.SessionID),
		zap.String("objective", goal.Objective),
		zap.String("start_url", goal.StartURL),
		zap.Int("max_steps", c.cfg.MaxSteps))

	steps := 0
	consecutiveErrors := 0

	// The starting URL, when given, is the session's first action. It counts
	// against the step budget like any other executed action.
	if goal.StartURL != "" {
		req := action.Request{
			Kind:      action.KindNavigate,
			Params:    action.Params{URL: goal.StartURL},
			Reasoning: "Navigate to the starting URL.",
		}
		res := c.executor.Execute(ctx, req)
		steps++
		c.record(steps, req, res)
		if !res.OK() {
			consecutiveErrors++
			if consecutiveErrors >= c.cfg.MaxConsecutiveErrors {
				c.fail(result, ErrCodeActionExecution,
					fmt.Sprintf("starting navigation failed: %s", res.Detail))
			}
		}
	}

	for steps < c.cfg.MaxSteps && !result.Status.terminal() {
		if err := ctx.Err(); err != nil {
			c.fail(result, ErrCodeInterrupted, err.Error())
			break
		}

		obs, err := c.perceiver.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.fail(result, ErrCodeInterrupted, ctx.Err().Error())
				break
			}
			// Lost browser connectivity does not self-heal; end immediately.
			c.fail(result, ErrCodeDriverUnavailable, err.Error())
			break
		}
		result.FinalURL = obs.Page.URL
		if obs.ScreenshotPath != "" {
			result.FinalScreenshotPath = obs.ScreenshotPath
		}

		req, err := c.decide(ctx, goal, obs, steps)
		if err != nil {
			if ctx.Err() != nil {
				c.fail(result, ErrCodeInterrupted, ctx.Err().Error())
			} else {
				c.fail(result, ErrCodeMalformedDecision, err.Error())
			}
			break
		}

		if req.Kind == action.KindDone {
			// Completion executes nothing and consumes no step.
			c.logger.Info("Goal reported complete.",
				zap.String("session_id", result.SessionID),
				zap.String("reasoning", req.Reasoning),
				zap.Int("steps", steps))
			c.setStatus(result, StatusSucceeded)
			break
		}

		res := c.executor.Execute(ctx, req)
		steps++
		c.record(steps, req, res)

		if res.OK() {
			consecutiveErrors = 0
		} else {
			consecutiveErrors++
			if consecutiveErrors >= c.cfg.MaxConsecutiveErrors {
				c.fail(result, ErrCodeActionExecution,
					fmt.Sprintf("%d consecutive action failures, last: %s", consecutiveErrors, res.Detail))
				break
			}
		}

		if steps < c.cfg.MaxSteps {
			if err := c.pause(ctx); err != nil {
				c.fail(result, ErrCodeInterrupted, err.Error())
				break
			}
		}
	}

	// Budget ran out without completion or a fatal error.
	c.setStatus(result, StatusExhausted)

	// Best-effort final observation so the result reflects the last executed
	// action. Skipped on failure, where the browser may already be gone.
	if result.Status != StatusFailed {
		if obs, err := c.perceiver.Capture(ctx); err == nil {
			result.FinalURL = obs.Page.URL
			if obs.ScreenshotPath != "" {
				result.FinalScreenshotPath = obs.ScreenshotPath
			}
		}
	}

	result.Steps = steps
	result.History = c.log.Entries()
	result.EndTime = time.Now().UTC()
	c.logger.Info("Session finished.",
		zap.String("session_id", result.SessionID),
		zap.String("status", string(result.Status)),
		zap.Int("steps", steps))
	return result, nil
}

// decide asks the model for the next action. A malformed reply is retried
// exactly once with the failure detail added to the model's context; a second
// failure is fatal to the session.
func (c *Controller) decide(ctx context.Context, goal Goal, obs observer.Observation, steps int) (action.Request, error) {
	in := llmclient.DecisionInput{
		Goal:          goal.Objective,
		Observation:   obs,
		HistoryDigest: c.log.Digest(),
		Step:          steps + 1,
		MaxSteps:      c.cfg.MaxSteps,
	}

	req, err := c.client.Decide(ctx, in)
	if err == nil {
		return req, nil
	}
	if ctx.Err() != nil {
		return action.Request{}, err
	}

	detail := err.Error()
	var malformed *llmclient.MalformedDecisionError
	if errors.As(err, &malformed) {
		detail = malformed.Detail
	}
	c.logger.Warn("Unusable decision, retrying once with error context.", zap.String("detail", detail))

	c.log.SetErrorNote(fmt.Sprintf("Your previous response could not be used: %s. Reply with exactly one valid JSON action object.", detail))
	in.HistoryDigest = c.log.Digest()
	c.log.ClearErrorNote()

	req, err = c.client.Decide(ctx, in)
	if err != nil {
		return action.Request{}, fmt.Errorf("decision failed twice for the same step: %w", err)
	}
	return req, nil
}

// record appends the executed step to the history log.
func (c *Controller) record(step int, req action.Request, res ExecutionResult) {
	outcome := history.OutcomeOK
	if !res.OK() {
		outcome = history.OutcomeError
	}
	c.log.Append(history.Entry{
		Step:    step,
		Request: req,
		Outcome: outcome,
		Detail:  res.Detail,
	})
}

// pause sleeps the configured inter-step delay, aborting if the context ends.
func (c *Controller) pause(ctx context.Context) error {
	if c.cfg.StepDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(c.cfg.StepDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// setStatus applies a lifecycle transition. Terminal states are final; a
// transition out of one is ignored.
func (c *Controller) setStatus(r *Result, s Status) {
	if r.Status.terminal() {
		return
	}
	r.Status = s
}

// fail moves the session into the failed state with a structured error.
func (c *Controller) fail(r *Result, code ErrorCode, detail string) {
	if r.Status.terminal() {
		return
	}
	r.Status = StatusFailed
	r.ErrorCode = code
	r.ErrorDetail = detail
	c.logger.Error("Session failed.",
		zap.String("session_id", r.SessionID),
		zap.String("error_code", string(code)),
		zap.String("detail", detail))
}

// validateGoal checks the session's startup preconditions.
func validateGoal(goal Goal) error {
	if goal.Objective == "" {
		return &ConfigurationError{Detail: "a non-empty goal is required"}
	}
	if goal.StartURL != "" {
		probe := action.Request{Kind: action.KindNavigate, Params: action.Params{URL: goal.StartURL}}
		if err := probe.Validate(); err != nil {
			return &ConfigurationError{Detail: fmt.Sprintf("invalid start URL: %v", err)}
		}
	}
	return nil
}
