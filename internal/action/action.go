// internal/action/action.go
package action

import (
	"fmt"
	"net/url"
	"strings"
)

// Kind is an enumeration of all primitive browser operations the decision
// model may request. This provides a closed, structured vocabulary for the
// agent's capabilities; anything outside it is rejected at the decision
// boundary.
type Kind string

const (
	KindNavigate    Kind = "navigate"     // Navigates to a URL.
	KindClick       Kind = "click"        // Clicks at viewport coordinates.
	KindDoubleClick Kind = "double_click" // Double-clicks at viewport coordinates.
	KindScroll      Kind = "scroll"       // Scrolls by a delta, optionally at coordinates.
	KindType        Kind = "type"         // Types text into the focused element.
	KindWait        Kind = "wait"         // Pauses for a bounded duration.
	KindMove        Kind = "move"         // Moves the pointer to coordinates.
	KindKeypress    Kind = "keypress"     // Presses one or more named keys.
	KindDrag        Kind = "drag"         // Drags the pointer along a path.

	// KindDone is the goal-completion sentinel. It executes nothing; the
	// session controller treats it as the success signal.
	KindDone Kind = "done"
)

// Point is a single 2D viewport coordinate, serialized as [x, y].
type Point [2]float64

// Params carries the typed parameters for every action kind. Only the fields
// relevant to the request's kind are populated; Validate enforces the
// per-kind schema. Coordinates use pointers so a missing value is
// distinguishable from a legitimate 0.
type Params struct {
	// navigate
	URL string `json:"url,omitempty"`

	// click, double_click, move; optional anchor for scroll
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`

	// click only; defaults to "left"
	Button string `json:"button,omitempty"`

	// scroll deltas (positive Y scrolls down)
	ScrollX float64 `json:"scroll_x,omitempty"`
	ScrollY float64 `json:"scroll_y,omitempty"`

	// type
	Text string `json:"text,omitempty"`

	// wait
	Milliseconds int `json:"ms,omitempty"`

	// keypress
	Keys []string `json:"keys,omitempty"`

	// drag
	Path []Point `json:"path,omitempty"`
}

// Request is a single validated decision-model output: one action kind, its
// typed parameters, and the model's natural-language rationale.
type Request struct {
	Kind      Kind   `json:"action"`
	Params    Params `json:"params"`
	Reasoning string `json:"reasoning,omitempty"`
}

// mouseButtons is the closed set of accepted click buttons.
var mouseButtons = map[string]struct{}{
	"left": {}, "right": {}, "middle": {},
}

// namedKeys lists the recognized non-character key names for keypress
// actions, lowercased. Single printable characters are always accepted.
var namedKeys = map[string]struct{}{
	"enter": {}, "tab": {}, "escape": {}, "backspace": {}, "delete": {},
	"space": {}, "home": {}, "end": {}, "pageup": {}, "pagedown": {},
	"arrowup": {}, "arrowdown": {}, "arrowleft": {}, "arrowright": {},
	"ctrl": {}, "control": {}, "alt": {}, "shift": {}, "meta": {}, "cmd": {},
}

// KnownKey reports whether a key name is part of the recognized keypress
// vocabulary.
func KnownKey(name string) bool {
	if len([]rune(name)) == 1 {
		return true
	}
	_, ok := namedKeys[strings.ToLower(name)]
	return ok
}

// Validate checks the request against the schema for its kind. It is pure:
// given the same request it always returns the same result, so re-validating
// an already valid request never rejects it. Invalid requests are rejected
// whole; there is no partial acceptance.
func (r Request) Validate() error {
	switch r.Kind {
	case KindNavigate:
		if r.Params.URL == "" {
			return fmt.Errorf("navigate requires a url")
		}
		u, err := url.Parse(r.Params.URL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("navigate url %q is not a well-formed absolute URL", r.Params.URL)
		}
	case KindClick:
		if r.Params.X == nil || r.Params.Y == nil {
			return fmt.Errorf("click requires x and y coordinates")
		}
		if r.Params.Button != "" {
			if _, ok := mouseButtons[strings.ToLower(r.Params.Button)]; !ok {
				return fmt.Errorf("unknown mouse button %q", r.Params.Button)
			}
		}
	case KindDoubleClick, KindMove:
		if r.Params.X == nil || r.Params.Y == nil {
			return fmt.Errorf("%s requires x and y coordinates", r.Kind)
		}
	case KindScroll:
		if r.Params.ScrollX == 0 && r.Params.ScrollY == 0 {
			return fmt.Errorf("scroll requires a non-zero scroll_x or scroll_y delta")
		}
		// Anchor coordinates are optional but must come as a pair.
		if (r.Params.X == nil) != (r.Params.Y == nil) {
			return fmt.Errorf("scroll anchor requires both x and y")
		}
	case KindType:
		if r.Params.Text == "" {
			return fmt.Errorf("type requires non-empty text")
		}
	case KindWait:
		if r.Params.Milliseconds < 0 {
			return fmt.Errorf("wait duration must be non-negative, got %dms", r.Params.Milliseconds)
		}
	case KindKeypress:
		if len(r.Params.Keys) == 0 {
			return fmt.Errorf("keypress requires at least one key")
		}
		for _, k := range r.Params.Keys {
			if !KnownKey(k) {
				return fmt.Errorf("unrecognized key name %q", k)
			}
		}
	case KindDrag:
		if len(r.Params.Path) < 2 {
			return fmt.Errorf("drag requires a path of at least two points")
		}
		if r.Params.Path[0] == r.Params.Path[len(r.Params.Path)-1] {
			return fmt.Errorf("drag source and target must be distinct")
		}
	case KindDone:
		// No parameters.
	default:
		return fmt.Errorf("unknown action kind %q", r.Kind)
	}
	return nil
}

// Summary renders a one-line human-readable description of the request, used
// when compacting old history entries. It never loses the action kind.
func (r Request) Summary() string {
	p := r.Params
	switch r.Kind {
	case KindNavigate:
		return fmt.Sprintf("navigate %s", p.URL)
	case KindClick, KindDoubleClick, KindMove:
		if p.X != nil && p.Y != nil {
			return fmt.Sprintf("%s(%.0f,%.0f)", r.Kind, *p.X, *p.Y)
		}
		return string(r.Kind)
	case KindScroll:
		return fmt.Sprintf("scroll(%.0f,%.0f)", p.ScrollX, p.ScrollY)
	case KindType:
		text := p.Text
		if len(text) > 40 {
			text = text[:40] + "..."
		}
		return fmt.Sprintf("type %q", text)
	case KindWait:
		return fmt.Sprintf("wait %dms", p.Milliseconds)
	case KindKeypress:
		return fmt.Sprintf("keypress %s", strings.Join(p.Keys, "+"))
	case KindDrag:
		return fmt.Sprintf("drag %d points", len(p.Path))
	default:
		return string(r.Kind)
	}
}
