// internal/browser/context.go
package browser

import "context"

// combineContext derives an operational context from the browser context
// that is additionally cancelled when the watch context ends. chromedp
// actions must run against a descendant of the browser context, so the
// caller's context cannot be passed to chromedp.Run directly.
func combineContext(base, watch context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(base)
	if watch == nil {
		return ctx, cancel
	}

	stop := make(chan struct{})
	go func() {
		select {
		case <-watch.Done():
			cancel()
		case <-ctx.Done():
		case <-stop:
		}
	}()

	return ctx, func() {
		close(stop)
		cancel()
	}
}
