// internal/session/session_test.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/operator-cli/internal/action"
	"github.com/xkilldash9x/operator-cli/internal/browser"
	"github.com/xkilldash9x/operator-cli/internal/config"
	"github.com/xkilldash9x/operator-cli/internal/history"
	"github.com/xkilldash9x/operator-cli/internal/llmclient"
	"github.com/xkilldash9x/operator-cli/internal/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeDriver records dispatched calls and fails on demand.
type fakeDriver struct {
	calls []string
	// failNext makes the next n action calls fail.
	failNext int
}

func (d *fakeDriver) step(name string) error {
	d.calls = append(d.calls, name)
	if d.failNext > 0 {
		d.failNext--
		return fmt.Errorf("%s rejected by browser", name)
	}
	return nil
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	return d.step("navigate " + url)
}
func (d *fakeDriver) Click(ctx context.Context, x, y float64, button string) error {
	return d.step(fmt.Sprintf("click %.0f,%.0f %s", x, y, button))
}
func (d *fakeDriver) DoubleClick(ctx context.Context, x, y float64) error {
	return d.step("double_click")
}
func (d *fakeDriver) Scroll(ctx context.Context, x, y *float64, dx, dy float64) error {
	return d.step("scroll")
}
func (d *fakeDriver) Type(ctx context.Context, text string) error { return d.step("type " + text) }
func (d *fakeDriver) Move(ctx context.Context, x, y float64) error {
	return d.step("move")
}
func (d *fakeDriver) Keypress(ctx context.Context, keys []string) error {
	return d.step("keypress " + strings.Join(keys, "+"))
}
func (d *fakeDriver) Drag(ctx context.Context, path [][2]float64) error { return d.step("drag") }
func (d *fakeDriver) Wait(ctx context.Context, dur time.Duration) error {
	return d.step(fmt.Sprintf("wait %s", dur))
}
func (d *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) { return []byte("png"), nil }
func (d *fakeDriver) PageInfo(ctx context.Context) (browser.PageInfo, error) {
	return browser.PageInfo{URL: "https://example.com", Title: "Example"}, nil
}
func (d *fakeDriver) Elements(ctx context.Context) ([]browser.Element, error) { return nil, nil }
func (d *fakeDriver) Close(ctx context.Context) error                         { return nil }

// fakePerceiver returns canned observations or a scripted failure.
type fakePerceiver struct {
	captures int
	err      error
}

func (p *fakePerceiver) Capture(ctx context.Context) (observer.Observation, error) {
	p.captures++
	if p.err != nil {
		return observer.Observation{}, p.err
	}
	return observer.Observation{
		Screenshot: []byte("png"),
		Page:       browser.PageInfo{URL: "https://example.com", Title: "Example"},
		CapturedAt: time.Now(),
	}, nil
}

// scriptedClient replays a fixed sequence of decisions or errors and records
// the digests it was shown.
type scriptedClient struct {
	replies []scriptedReply
	digests []string
	call    int
}

type scriptedReply struct {
	req action.Request
	err error
}

func (c *scriptedClient) Decide(ctx context.Context, in llmclient.DecisionInput) (action.Request, error) {
	c.digests = append(c.digests, in.HistoryDigest)
	if c.call >= len(c.replies) {
		return action.Request{}, fmt.Errorf("scripted client exhausted after %d calls", c.call)
	}
	r := c.replies[c.call]
	c.call++
	return r.req, r.err
}

func coord(v float64) *float64 { return &v }

func doneReply() scriptedReply {
	return scriptedReply{req: action.Request{Kind: action.KindDone, Reasoning: "goal achieved"}}
}

func waitReply() scriptedReply {
	return scriptedReply{req: action.Request{Kind: action.KindWait, Params: action.Params{Milliseconds: 10}}}
}

func clickReply(x, y float64) scriptedReply {
	return scriptedReply{req: action.Request{Kind: action.KindClick, Params: action.Params{X: coord(x), Y: coord(y)}}}
}

func testSessionConfig(maxSteps int) config.SessionConfig {
	return config.SessionConfig{
		MaxSteps:             maxSteps,
		StepDelay:            0,
		MaxWait:              time.Second,
		MaxConsecutiveErrors: 3,
	}
}

func newTestController(drv *fakeDriver, perceiver Perceiver, client llmclient.Client, cfg config.SessionConfig) (*Controller, *history.Log) {
	log := history.NewLog(5)
	return NewController(drv, perceiver, client, log, cfg, zap.NewNop()), log
}

func TestRunSucceedsWhenModelSignalsDone(t *testing.T) {
	drv := &fakeDriver{}
	client := &scriptedClient{replies: []scriptedReply{doneReply()}}
	ctrl, _ := newTestController(drv, &fakePerceiver{}, client, testSessionConfig(20))

	result, err := ctrl.Run(context.Background(), Goal{
		Objective: "confirm the page loads",
		StartURL:  "https://example.com",
	})
	require.NoError(t, err)

	// Forced starting navigation is step 1; done executes nothing.
	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, 1, result.Steps)
	require.Len(t, result.History, 1)
	assert.Equal(t, 1, result.History[0].Step)
	assert.Equal(t, action.KindNavigate, result.History[0].Request.Kind)
	assert.Equal(t, []string{"navigate https://example.com"}, drv.calls)
	assert.Empty(t, result.ErrorCode)
}

func TestRunExhaustsStepBudget(t *testing.T) {
	drv := &fakeDriver{}
	client := &scriptedClient{replies: []scriptedReply{waitReply(), waitReply(), waitReply()}}
	ctrl, _ := newTestController(drv, &fakePerceiver{}, client, testSessionConfig(3))

	result, err := ctrl.Run(context.Background(), Goal{Objective: "wait forever"})
	require.NoError(t, err)

	assert.Equal(t, StatusExhausted, result.Status)
	assert.Equal(t, 3, result.Steps)
	assert.Len(t, result.History, 3)
	// Step indices are strictly increasing from 1.
	for i, e := range result.History {
		assert.Equal(t, i+1, e.Step)
	}
}

func TestRunRetriesMalformedDecisionOnce(t *testing.T) {
	drv := &fakeDriver{}
	client := &scriptedClient{replies: []scriptedReply{
		{err: &llmclient.MalformedDecisionError{Detail: "unknown action kind \"teleport\""}},
		clickReply(10, 20),
		doneReply(),
	}}
	ctrl, _ := newTestController(drv, &fakePerceiver{}, client, testSessionConfig(20))

	result, err := ctrl.Run(context.Background(), Goal{Objective: "click the button"})
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, 1, result.Steps)

	// The retry sees the failure detail; the digest after recovery does not.
	require.Len(t, client.digests, 3)
	assert.NotContains(t, client.digests[0], "could not be used")
	assert.Contains(t, client.digests[1], "unknown action kind \"teleport\"")
	assert.NotContains(t, client.digests[2], "could not be used")
}

func TestRunFailsAfterSecondMalformedDecision(t *testing.T) {
	drv := &fakeDriver{}
	client := &scriptedClient{replies: []scriptedReply{
		{err: &llmclient.MalformedDecisionError{Detail: "not valid JSON"}},
		{err: &llmclient.MalformedDecisionError{Detail: "still not valid JSON"}},
	}}
	ctrl, _ := newTestController(drv, &fakePerceiver{}, client, testSessionConfig(20))

	result, err := ctrl.Run(context.Background(), Goal{Objective: "do something"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, ErrCodeMalformedDecision, result.ErrorCode)
	assert.Contains(t, result.ErrorDetail, "still not valid JSON")
	assert.Equal(t, 0, result.Steps)
	assert.Empty(t, drv.calls)
}

func TestRunFailsFastWhenDriverUnavailable(t *testing.T) {
	drv := &fakeDriver{}
	perceiver := &fakePerceiver{err: errors.New("driver unavailable: websocket closed")}
	client := &scriptedClient{}
	ctrl, _ := newTestController(drv, perceiver, client, testSessionConfig(20))

	result, err := ctrl.Run(context.Background(), Goal{Objective: "anything"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, ErrCodeDriverUnavailable, result.ErrorCode)
	// No decision is requested once the browser is gone.
	assert.Equal(t, 0, client.call)
	assert.Equal(t, 1, perceiver.captures)
}

// cancellingPerceiver cancels the run context mid-capture, simulating an
// interrupt landing while the driver call is in flight.
type cancellingPerceiver struct {
	cancel context.CancelFunc
}

func (p *cancellingPerceiver) Capture(ctx context.Context) (observer.Observation, error) {
	p.cancel()
	return observer.Observation{}, errors.New("driver unavailable: context canceled")
}

func TestRunReportsInterruptWhenCancelledDuringCapture(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drv := &fakeDriver{}
	ctrl, _ := newTestController(drv, &cancellingPerceiver{cancel: cancel}, &scriptedClient{}, testSessionConfig(20))

	result, err := ctrl.Run(ctx, Goal{Objective: "anything"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, ErrCodeInterrupted, result.ErrorCode)
}

func TestRunFailsAfterConsecutiveActionErrors(t *testing.T) {
	drv := &fakeDriver{failNext: 3}
	client := &scriptedClient{replies: []scriptedReply{
		clickReply(1, 1), clickReply(2, 2), clickReply(3, 3),
	}}
	ctrl, _ := newTestController(drv, &fakePerceiver{}, client, testSessionConfig(20))

	result, err := ctrl.Run(context.Background(), Goal{Objective: "keep clicking"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, ErrCodeActionExecution, result.ErrorCode)
	assert.Equal(t, 3, result.Steps)
	for _, e := range result.History {
		assert.Equal(t, history.OutcomeError, e.Outcome)
	}
}

func TestRunRecoversFromIsolatedActionErrors(t *testing.T) {
	drv := &fakeDriver{failNext: 1}
	client := &scriptedClient{replies: []scriptedReply{
		clickReply(1, 1), clickReply(2, 2), doneReply(),
	}}
	ctrl, _ := newTestController(drv, &fakePerceiver{}, client, testSessionConfig(20))

	result, err := ctrl.Run(context.Background(), Goal{Objective: "click through"})
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, 2, result.Steps)
	assert.Equal(t, history.OutcomeError, result.History[0].Outcome)
	assert.Equal(t, history.OutcomeOK, result.History[1].Outcome)
}

func TestRunRejectsEmptyGoal(t *testing.T) {
	drv := &fakeDriver{}
	ctrl, _ := newTestController(drv, &fakePerceiver{}, &scriptedClient{}, testSessionConfig(20))

	_, err := ctrl.Run(context.Background(), Goal{})
	var cfgErr *ConfigurationError
	require.Error(t, err)
	assert.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), string(ErrCodeConfiguration))
	assert.Empty(t, drv.calls)
}

func TestRunRejectsInvalidStartURL(t *testing.T) {
	drv := &fakeDriver{}
	ctrl, _ := newTestController(drv, &fakePerceiver{}, &scriptedClient{}, testSessionConfig(20))

	_, err := ctrl.Run(context.Background(), Goal{Objective: "go", StartURL: "not-a-url"})
	var cfgErr *ConfigurationError
	require.Error(t, err)
	assert.True(t, errors.As(err, &cfgErr))
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	drv := &fakeDriver{}
	ctrl, _ := newTestController(drv, &fakePerceiver{}, &scriptedClient{}, testSessionConfig(20))

	result, err := ctrl.Run(ctx, Goal{Objective: "anything"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, ErrCodeInterrupted, result.ErrorCode)
}

func TestTerminalStatusIsFinal(t *testing.T) {
	drv := &fakeDriver{}
	ctrl, _ := newTestController(drv, &fakePerceiver{}, &scriptedClient{}, testSessionConfig(20))

	r := &Result{Status: StatusSucceeded}
	ctrl.setStatus(r, StatusExhausted)
	assert.Equal(t, StatusSucceeded, r.Status)

	ctrl.fail(r, ErrCodeActionExecution, "too late")
	assert.Equal(t, StatusSucceeded, r.Status)
	assert.Empty(t, r.ErrorCode)
}

func TestExecutorClampsWaitDuration(t *testing.T) {
	drv := &fakeDriver{}
	exec := NewExecutor(drv, 50*time.Millisecond, zap.NewNop())

	res := exec.Execute(context.Background(), action.Request{
		Kind:   action.KindWait,
		Params: action.Params{Milliseconds: 60000},
	})
	require.True(t, res.OK())
	assert.Equal(t, []string{"wait 50ms"}, drv.calls)
}

func TestExecutorDefaultsClickButton(t *testing.T) {
	drv := &fakeDriver{}
	exec := NewExecutor(drv, time.Second, zap.NewNop())

	res := exec.Execute(context.Background(), action.Request{
		Kind:   action.KindClick,
		Params: action.Params{X: coord(5), Y: coord(6)},
	})
	require.True(t, res.OK())
	assert.Equal(t, []string{"click 5,6 left"}, drv.calls)
}

func TestExecutorReportsExecutionFailures(t *testing.T) {
	drv := &fakeDriver{failNext: 1}
	exec := NewExecutor(drv, time.Second, zap.NewNop())

	res := exec.Execute(context.Background(), action.Request{
		Kind:   action.KindNavigate,
		Params: action.Params{URL: "https://example.com"},
	})
	assert.False(t, res.OK())
	assert.Equal(t, ErrCodeActionExecution, res.ErrorCode)
	assert.Contains(t, res.Detail, "rejected by browser")
}

func TestExecutorReportsUnknownActionKinds(t *testing.T) {
	drv := &fakeDriver{}
	exec := NewExecutor(drv, time.Second, zap.NewNop())

	res := exec.Execute(context.Background(), action.Request{Kind: action.Kind("teleport")})
	assert.False(t, res.OK())
	assert.Equal(t, ErrCodeUnknownAction, res.ErrorCode)
	assert.Contains(t, res.Detail, "teleport")
	assert.Empty(t, drv.calls)
}
