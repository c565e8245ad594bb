// internal/session/executor.go
package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/operator-cli/internal/action"
	"github.com/xkilldash9x/operator-cli/internal/browser"
)

// Executor translates validated action requests into driver calls. It holds
// no loop state; each Execute call is independent and blocks until the
// browser has processed the operation.
type Executor struct {
	drv     browser.Driver
	logger  *zap.Logger
	maxWait time.Duration
}

// NewExecutor creates an executor over the given driver. maxWait clamps
// model-requested wait durations.
func NewExecutor(drv browser.Driver, maxWait time.Duration, logger *zap.Logger) *Executor {
	return &Executor{
		drv:     drv,
		logger:  logger.Named("executor"),
		maxWait: maxWait,
	}
}

// Execute dispatches one action request to the browser and reports the
// outcome. The request is assumed validated; execution failures come back as
// a failed result rather than an error so the loop can record them and let
// the model react.
func (e *Executor) Execute(ctx context.Context, req action.Request) ExecutionResult {
	start := time.Now()
	err := e.dispatch(ctx, req)
	duration := time.Since(start)

	if err != nil {
		code := ErrCodeActionExecution
		var unknown *unknownActionError
		if errors.As(err, &unknown) {
			code = ErrCodeUnknownAction
		}
		e.logger.Warn("Action execution failed.",
			zap.String("action", string(req.Kind)),
			zap.Duration("duration", duration),
			zap.Error(err))
		return ExecutionResult{
			Status:    execStatusFailed,
			ErrorCode: code,
			Detail:    err.Error(),
		}
	}

	e.logger.Debug("Action executed.",
		zap.String("action", string(req.Kind)),
		zap.Duration("duration", duration))
	return ExecutionResult{Status: execStatusSuccess}
}

func (e *Executor) dispatch(ctx context.Context, req action.Request) error {
	p := req.Params
	switch req.Kind {
	case action.KindNavigate:
		return e.drv.Navigate(ctx, p.URL)
	case action.KindClick:
		button := p.Button
		if button == "" {
			button = "left"
		}
		return e.drv.Click(ctx, *p.X, *p.Y, button)
	case action.KindDoubleClick:
		return e.drv.DoubleClick(ctx, *p.X, *p.Y)
	case action.KindScroll:
		return e.drv.Scroll(ctx, p.X, p.Y, p.ScrollX, p.ScrollY)
	case action.KindType:
		return e.drv.Type(ctx, p.Text)
	case action.KindMove:
		return e.drv.Move(ctx, *p.X, *p.Y)
	case action.KindKeypress:
		return e.drv.Keypress(ctx, p.Keys)
	case action.KindDrag:
		path := make([][2]float64, len(p.Path))
		for i, pt := range p.Path {
			path[i] = pt
		}
		return e.drv.Drag(ctx, path)
	case action.KindWait:
		return e.drv.Wait(ctx, e.clampWait(p.Milliseconds))
	default:
		// KindDone never reaches the executor; anything else is a dispatch
		// table gap.
		return &unknownActionError{kind: req.Kind}
	}
}

// clampWait bounds a requested wait so a looping model cannot stall the
// session.
func (e *Executor) clampWait(ms int) time.Duration {
	d := time.Duration(ms) * time.Millisecond
	if e.maxWait > 0 && d > e.maxWait {
		return e.maxWait
	}
	return d
}

type unknownActionError struct {
	kind action.Kind
}

func (e *unknownActionError) Error() string {
	return "no executor mapping for action kind " + string(e.kind)
}
