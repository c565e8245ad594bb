// internal/browser/dom.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// Element is one visible interactive DOM element surfaced to the decision
// model: what it is, its visible label, and the viewport coordinates of its
// center.
type Element struct {
	Tag  string  `json:"tag"`
	Type string  `json:"type,omitempty"`
	Text string  `json:"text,omitempty"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// elementsJS collects the interactive elements currently inside the viewport.
// The result is bounded to 40 entries and labels to 80 characters so a
// link-heavy page cannot flood the decision prompt.
const elementsJS = `(() => {
	const selector = 'a[href], button, input, textarea, select, [role="button"], [role="link"], [onclick]';
	const out = [];
	for (const el of document.querySelectorAll(selector)) {
		if (out.length >= 40) break;
		const r = el.getBoundingClientRect();
		if (r.width < 1 || r.height < 1) continue;
		if (r.bottom < 0 || r.right < 0 || r.top > window.innerHeight || r.left > window.innerWidth) continue;
		const label = (el.innerText || el.value || el.placeholder || el.getAttribute('aria-label') || '')
			.trim().replace(/\s+/g, ' ').slice(0, 80);
		out.push({
			tag: el.tagName.toLowerCase(),
			type: el.getAttribute('type') || '',
			text: label,
			x: Math.round(r.left + r.width / 2),
			y: Math.round(r.top + r.height / 2),
		});
	}
	return out;
})()`

// Elements returns a bounded summary of the visible interactive elements on
// the current page.
func (d *ChromeDriver) Elements(ctx context.Context) ([]Element, error) {
	var elems []Element
	if err := d.run(ctx, d.actionTimeout(), chromedp.Evaluate(elementsJS, &elems)); err != nil {
		return nil, fmt.Errorf("failed to read interactive elements: %w", err)
	}
	return elems, nil
}
