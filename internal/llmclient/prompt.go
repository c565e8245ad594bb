// internal/llmclient/prompt.go
package llmclient

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/operator-cli/internal/browser"
)

// systemPrompt instructs the model to act as a browser operator and pins the
// reply to a single JSON object using the closed action vocabulary. The
// schema here must stay in sync with the action package.
const systemPrompt = `You are a browser automation operator. You are given a goal, a screenshot of the current browser viewport, the current page URL and title, and a history of the actions taken so far. Decide the single next action that makes progress toward the goal.

You MUST reply with exactly one JSON object and nothing else:
{
  "reasoning": "<one or two sentences explaining the choice>",
  "action": "<one of: navigate, click, double_click, scroll, type, wait, move, keypress, drag, done>",
  "params": { ... },
  "goal_completed": <true only when the goal is already fully achieved>
}

Parameters per action:
- navigate: {"url": "https://..."} an absolute URL.
- click: {"x": <px>, "y": <px>, "button": "left"|"right"|"middle"} button defaults to left.
- double_click: {"x": <px>, "y": <px>}
- scroll: {"scroll_x": <px>, "scroll_y": <px>} positive scroll_y scrolls down; optionally {"x","y"} to anchor the scroll.
- type: {"text": "..."} types into the currently focused element; click an input first.
- wait: {"ms": <milliseconds>} use after navigation or when content is still loading.
- move: {"x": <px>, "y": <px>} moves the pointer without clicking, e.g. to reveal hover menus.
- keypress: {"keys": ["ctrl", "a"]} named keys (enter, tab, escape, arrowdown, ...) or single characters; modifiers listed first are held.
- drag: {"path": [[x1,y1],[x2,y2],...]} pointer down at the first point, up at the last.
- done: {} signals the goal is achieved; use it together with "goal_completed": true. Nothing is executed.

Rules:
- All coordinates are CSS pixels within the screenshot you were shown.
- When a list of visible interactive elements is provided, prefer their center coordinates over estimating positions from the screenshot.
- Take one action at a time and rely on the next screenshot to see its effect.
- If an action did not have the expected effect, try a different approach instead of repeating it.
- Prefer waiting briefly over interacting with a page that is clearly still loading.
- Declare "done" as soon as the goal is satisfied; do not take extra actions afterwards.`

// buildUserPrompt renders the per-step textual context that accompanies the
// screenshot part.
func buildUserPrompt(in DecisionInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\n", in.Goal)
	fmt.Fprintf(&b, "Current page: %s\n", in.Observation.Page.URL)
	if in.Observation.Page.Title != "" {
		fmt.Fprintf(&b, "Page title: %s\n", in.Observation.Page.Title)
	}
	fmt.Fprintf(&b, "Viewport: %dx%d (scrolled to %.0f,%.0f)\n",
		in.Observation.Page.ViewportWidth, in.Observation.Page.ViewportHeight,
		in.Observation.Page.ScrollX, in.Observation.Page.ScrollY)
	fmt.Fprintf(&b, "Step %d of %d.\n", in.Step, in.MaxSteps)
	if len(in.Observation.Elements) > 0 {
		b.WriteString("\nVisible interactive elements (center coordinates):\n")
		for _, el := range in.Observation.Elements {
			if el.Text != "" {
				fmt.Fprintf(&b, "- %s %q at (%.0f,%.0f)\n", elementLabel(el), el.Text, el.X, el.Y)
			} else {
				fmt.Fprintf(&b, "- %s at (%.0f,%.0f)\n", elementLabel(el), el.X, el.Y)
			}
		}
	}
	b.WriteByte('\n')
	b.WriteString(in.HistoryDigest)
	b.WriteString("\n\nThe screenshot of the current viewport is attached. Reply with the next action as a single JSON object.")
	return b.String()
}

// elementLabel renders an element's tag with its input type when present,
// e.g. "input[password]".
func elementLabel(el browser.Element) string {
	if el.Type != "" {
		return el.Tag + "[" + el.Type + "]"
	}
	return el.Tag
}
