// internal/browser/driver.go
// This file defines the Driver contract for browser automation primitives and
// its chromedp-backed production implementation. All browser state mutation
// in the program flows through a Driver; no other component issues CDP calls.
//
// Coordinate-level input (click, move, drag, scroll) is dispatched as raw CDP
// input events rather than selector-based chromedp actions, because the
// decision model reasons about the rendered screenshot and answers in
// viewport coordinates.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/operator-cli/internal/config"
)

// PageInfo is the lightweight page metadata attached to every observation.
type PageInfo struct {
	URL            string  `json:"url"`
	Title          string  `json:"title"`
	ViewportWidth  int     `json:"viewport_width"`
	ViewportHeight int     `json:"viewport_height"`
	ScrollX        float64 `json:"scroll_x"`
	ScrollY        float64 `json:"scroll_y"`
}

// Driver defines the contract for external browser interactions, allowing
// for mocking during tests. Every method presents a synchronous, ordered
// contract: it returns only once the browser has processed the operation.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, x, y float64, button string) error
	DoubleClick(ctx context.Context, x, y float64) error
	Scroll(ctx context.Context, x, y *float64, deltaX, deltaY float64) error
	Type(ctx context.Context, text string) error
	Move(ctx context.Context, x, y float64) error
	Keypress(ctx context.Context, keys []string) error
	Drag(ctx context.Context, path [][2]float64) error
	Wait(ctx context.Context, d time.Duration) error
	Screenshot(ctx context.Context) ([]byte, error)
	PageInfo(ctx context.Context) (PageInfo, error)
	Elements(ctx context.Context) ([]Element, error)
	Close(ctx context.Context) error
}

// ChromeDriver is the production implementation of the Driver interface over
// a single chromedp browser context. The instance is owned exclusively by
// one session for its whole lifetime.
type ChromeDriver struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	// ctx is the chromedp browser context; all CDP actions run against it.
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
}

var _ Driver = (*ChromeDriver)(nil)

// NewChromeDriver launches a browser process and returns a driver bound to a
// fresh tab. The returned driver must be Closed by the caller.
func NewChromeDriver(parentCtx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*ChromeDriver, error) {
	opts := execAllocatorOptions(cfg)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parentCtx, opts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx)

	d := &ChromeDriver{
		cfg:         cfg,
		logger:      logger.Named("browser"),
		ctx:         ctx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
	}

	// Force the browser to start now so a broken Chrome install surfaces as a
	// startup error instead of a mid-session failure.
	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		d.Close(parentCtx)
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	d.logger.Info("Browser launched.",
		zap.Bool("headless", cfg.Headless),
		zap.Int("window_width", cfg.WindowWidth),
		zap.Int("window_height", cfg.WindowHeight))
	return d, nil
}

// execAllocatorOptions builds the allocator flag set from configuration.
func execAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.DisableGPU,
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	return opts
}

// run executes chromedp actions against the browser context, bounded by the
// given timeout and cancellable through the caller's operational context.
func (d *ChromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := combineContext(d.ctx, ctx)
	defer cancel()

	if timeout > 0 {
		var tcancel context.CancelFunc
		opCtx, tcancel = context.WithTimeout(opCtx, timeout)
		defer tcancel()
	}

	err := chromedp.Run(opCtx, actions...)
	if err != nil {
		// Prefer the caller's cancellation over a CDP transport error.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.ctx.Err() != nil {
			return fmt.Errorf("browser context closed: %w", d.ctx.Err())
		}
	}
	return err
}

// actionTimeout returns the configured per-action timeout with a sane floor.
func (d *ChromeDriver) actionTimeout() time.Duration {
	if d.cfg.ActionTimeout > 0 {
		return d.cfg.ActionTimeout
	}
	return 30 * time.Second
}

// Navigate loads the given URL and waits for the load event.
func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	navTimeout := d.cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 90 * time.Second
	}

	d.logger.Info("Navigating.", zap.String("url", url))
	if err := d.run(ctx, navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Click moves the pointer to (x, y) and performs a single click with the
// given button ("left" when empty).
func (d *ChromeDriver) Click(ctx context.Context, x, y float64, button string) error {
	btn := mouseButton(button)
	d.logger.Debug("Clicking.", zap.Float64("x", x), zap.Float64("y", y), zap.String("button", string(btn)))

	return d.run(ctx, d.actionTimeout(),
		mouseMove(x, y),
		mousePress(x, y, btn, 1),
		mouseRelease(x, y, btn, 1),
	)
}

// DoubleClick performs two rapid clicks at (x, y). The second press carries
// clickCount=2 per the CDP convention so the page sees a dblclick event.
func (d *ChromeDriver) DoubleClick(ctx context.Context, x, y float64) error {
	d.logger.Debug("Double-clicking.", zap.Float64("x", x), zap.Float64("y", y))

	return d.run(ctx, d.actionTimeout(),
		mouseMove(x, y),
		mousePress(x, y, input.Left, 1),
		mouseRelease(x, y, input.Left, 1),
		mousePress(x, y, input.Left, 2),
		mouseRelease(x, y, input.Left, 2),
	)
}

// Scroll dispatches a mouse wheel event. When no anchor coordinates are
// given the wheel event is anchored at the viewport center.
func (d *ChromeDriver) Scroll(ctx context.Context, x, y *float64, deltaX, deltaY float64) error {
	ax := float64(d.cfg.WindowWidth) / 2
	ay := float64(d.cfg.WindowHeight) / 2
	if x != nil && y != nil {
		ax, ay = *x, *y
	}
	d.logger.Debug("Scrolling.", zap.Float64("delta_x", deltaX), zap.Float64("delta_y", deltaY))

	return d.run(ctx, d.actionTimeout(), chromedp.ActionFunc(func(c context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, ax, ay).
			WithDeltaX(deltaX).
			WithDeltaY(deltaY).
			Do(c)
	}))
}

// Type sends the text to the currently focused element as key events.
func (d *ChromeDriver) Type(ctx context.Context, text string) error {
	d.logger.Debug("Typing.", zap.Int("text_length", len(text)))

	// Scale the timeout with text length; key events are dispatched one rune
	// at a time.
	timeout := d.actionTimeout() + time.Duration(len(text)/5)*time.Second
	return d.run(ctx, timeout, chromedp.KeyEvent(text))
}

// Move repositions the pointer without pressing any button.
func (d *ChromeDriver) Move(ctx context.Context, x, y float64) error {
	d.logger.Debug("Moving pointer.", zap.Float64("x", x), zap.Float64("y", y))
	return d.run(ctx, d.actionTimeout(), mouseMove(x, y))
}

// Keypress presses the given keys in order. Modifier names in the list
// (ctrl, alt, shift, meta) are held for the remaining keys, so
// ["ctrl", "c"] produces Ctrl+C.
func (d *ChromeDriver) Keypress(ctx context.Context, keys []string) error {
	d.logger.Debug("Pressing keys.", zap.Strings("keys", keys))

	var mods input.Modifier
	var actions []chromedp.Action
	for _, name := range keys {
		if m, ok := modifierByName(name); ok {
			mods |= m
			continue
		}
		runes, err := keyRunes(name)
		if err != nil {
			return err
		}
		actions = append(actions, chromedp.KeyEvent(runes, chromedp.KeyModifiers(mods)))
	}
	if len(actions) == 0 {
		// Modifier-only presses have no standalone key event to dispatch.
		return nil
	}
	return d.run(ctx, d.actionTimeout(), actions...)
}

// Drag presses at the first point, moves along the path, and releases at the
// last point.
func (d *ChromeDriver) Drag(ctx context.Context, path [][2]float64) error {
	if len(path) < 2 {
		return fmt.Errorf("drag path must contain at least two points")
	}
	d.logger.Debug("Dragging.", zap.Int("points", len(path)))

	start, end := path[0], path[len(path)-1]
	actions := []chromedp.Action{
		mouseMove(start[0], start[1]),
		mousePress(start[0], start[1], input.Left, 1),
	}
	for _, p := range path[1:] {
		actions = append(actions, mouseMove(p[0], p[1]))
	}
	actions = append(actions, mouseRelease(end[0], end[1], input.Left, 1))

	return d.run(ctx, d.actionTimeout(), actions...)
}

// Wait pauses for the given duration, honoring context cancellation.
func (d *ChromeDriver) Wait(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return nil
	}
	d.logger.Debug("Waiting.", zap.Duration("duration", dur))

	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return d.ctx.Err()
	}
}

// Screenshot captures the current viewport as PNG bytes.
func (d *ChromeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, d.actionTimeout(), chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot capture failed: %w", err)
	}
	return buf, nil
}

// PageInfo returns the current URL, title, and viewport metrics.
func (d *ChromeDriver) PageInfo(ctx context.Context) (PageInfo, error) {
	var info PageInfo
	var metrics struct {
		Width   int     `json:"width"`
		Height  int     `json:"height"`
		ScrollX float64 `json:"scrollX"`
		ScrollY float64 `json:"scrollY"`
	}

	err := d.run(ctx, d.actionTimeout(),
		chromedp.Location(&info.URL),
		chromedp.Title(&info.Title),
		chromedp.Evaluate(`({width: window.innerWidth, height: window.innerHeight, scrollX: window.scrollX, scrollY: window.scrollY})`, &metrics),
	)
	if err != nil {
		return PageInfo{}, fmt.Errorf("failed to read page info: %w", err)
	}

	info.ViewportWidth = metrics.Width
	info.ViewportHeight = metrics.Height
	info.ScrollX = metrics.ScrollX
	info.ScrollY = metrics.ScrollY
	return info, nil
}

// Close shuts down the tab and the browser process. Safe to call more than
// once.
func (d *ChromeDriver) Close(ctx context.Context) error {
	d.logger.Debug("Closing browser.")

	// chromedp.Cancel waits for the browser to exit gracefully.
	if err := chromedp.Cancel(d.ctx); err != nil && ctx.Err() == nil {
		d.logger.Warn("Graceful browser shutdown failed.", zap.Error(err))
	}
	d.cancelCtx()
	d.cancelAlloc()
	return nil
}

// -- raw CDP input helpers --

func mouseButton(name string) input.MouseButton {
	switch strings.ToLower(name) {
	case "right":
		return input.Right
	case "middle":
		return input.Middle
	default:
		return input.Left
	}
}

func mouseMove(x, y float64) chromedp.Action {
	return chromedp.ActionFunc(func(c context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(c)
	})
}

func mousePress(x, y float64, btn input.MouseButton, clickCount int64) chromedp.Action {
	return chromedp.ActionFunc(func(c context.Context) error {
		return input.DispatchMouseEvent(input.MousePressed, x, y).
			WithButton(btn).
			WithClickCount(clickCount).
			Do(c)
	})
}

func mouseRelease(x, y float64, btn input.MouseButton, clickCount int64) chromedp.Action {
	return chromedp.ActionFunc(func(c context.Context) error {
		return input.DispatchMouseEvent(input.MouseReleased, x, y).
			WithButton(btn).
			WithClickCount(clickCount).
			Do(c)
	})
}
