// internal/browser/keys.go
package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp/kb"
)

// namedKeyRunes maps the recognized key names (lowercased) to the special
// rune values the chromedp kb package encodes into full CDP key events.
var namedKeyRunes = map[string]string{
	"enter":      kb.Enter,
	"tab":        kb.Tab,
	"escape":     kb.Escape,
	"backspace":  kb.Backspace,
	"delete":     kb.Delete,
	"space":      " ",
	"home":       kb.Home,
	"end":        kb.End,
	"pageup":     kb.PageUp,
	"pagedown":   kb.PageDown,
	"arrowup":    kb.ArrowUp,
	"arrowdown":  kb.ArrowDown,
	"arrowleft":  kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
}

// modifierByName maps modifier key names to their CDP modifier bit. Returns
// false for non-modifier keys.
func modifierByName(name string) (input.Modifier, bool) {
	switch strings.ToLower(name) {
	case "ctrl", "control":
		return input.ModifierCtrl, true
	case "alt":
		return input.ModifierAlt, true
	case "shift":
		return input.ModifierShift, true
	case "meta", "cmd":
		return input.ModifierCommand, true
	default:
		return 0, false
	}
}

// keyRunes resolves a key name to the rune sequence chromedp.KeyEvent
// expects: named keys map to kb package constants, single printable
// characters pass through unchanged.
func keyRunes(name string) (string, error) {
	if r, ok := namedKeyRunes[strings.ToLower(name)]; ok {
		return r, nil
	}
	// Single characters pass through with case intact so "A" dispatches an
	// uppercase key event rather than a silent downcase.
	if len([]rune(name)) == 1 {
		return name, nil
	}
	return "", fmt.Errorf("unrecognized key name %q", name)
}
