// internal/observer/observer.go
package observer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/operator-cli/internal/browser"
)

// Observation is a snapshot of browser state at a point in time: a PNG
// screenshot plus lightweight page metadata. It is captured fresh each step,
// owned by the step that created it, and never mutated after capture; the
// next step's Observation supersedes it.
type Observation struct {
	Screenshot []byte           `json:"-"`
	Page       browser.PageInfo `json:"page"`
	// Elements is the bounded summary of visible interactive elements,
	// giving the decision model concrete click targets beyond raw pixels.
	Elements   []browser.Element `json:"elements,omitempty"`
	CapturedAt time.Time         `json:"captured_at"`
	// ScreenshotPath is set when screenshot persistence is enabled.
	ScreenshotPath string `json:"screenshot_path,omitempty"`
}

// Observer captures the current browser state. A capture failure means the
// browser driver itself is unreachable, which callers must treat as fatal;
// browser connectivity is not expected to self-heal.
type Observer struct {
	drv    browser.Driver
	logger *zap.Logger
	// screenshotDir, when non-empty, persists each screenshot to disk.
	screenshotDir string
}

// New creates an Observer over the given driver.
func New(drv browser.Driver, screenshotDir string, logger *zap.Logger) *Observer {
	return &Observer{
		drv:           drv,
		logger:        logger.Named("observer"),
		screenshotDir: screenshotDir,
	}
}

// Capture takes a screenshot and reads the page metadata. Any error here
// signals the driver is unavailable.
func (o *Observer) Capture(ctx context.Context) (Observation, error) {
	shot, err := o.drv.Screenshot(ctx)
	if err != nil {
		return Observation{}, fmt.Errorf("driver unavailable: %w", err)
	}

	info, err := o.drv.PageInfo(ctx)
	if err != nil {
		return Observation{}, fmt.Errorf("driver unavailable: %w", err)
	}

	elems, err := o.drv.Elements(ctx)
	if err != nil {
		return Observation{}, fmt.Errorf("driver unavailable: %w", err)
	}

	obs := Observation{
		Screenshot: shot,
		Page:       info,
		Elements:   elems,
		CapturedAt: time.Now().UTC(),
	}

	if o.screenshotDir != "" {
		if path, err := o.persist(shot, obs.CapturedAt); err != nil {
			// Persistence is best-effort; the in-memory observation is intact.
			o.logger.Warn("Failed to persist screenshot.", zap.Error(err))
		} else {
			obs.ScreenshotPath = path
		}
	}

	o.logger.Debug("Observation captured.",
		zap.String("url", info.URL),
		zap.String("title", info.Title),
		zap.Int("elements", len(elems)),
		zap.Int("screenshot_bytes", len(shot)))
	return obs, nil
}

// persist writes the screenshot to the configured directory.
func (o *Observer) persist(shot []byte, at time.Time) (string, error) {
	if err := os.MkdirAll(o.screenshotDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	path := filepath.Join(o.screenshotDir, fmt.Sprintf("screenshot_%d.png", at.UnixNano()))
	if err := os.WriteFile(path, shot, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}
