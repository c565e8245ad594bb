// internal/llmclient/prompt_test.go
package llmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/operator-cli/internal/browser"
	"github.com/xkilldash9x/operator-cli/internal/observer"
)

func TestBuildUserPromptRendersPageContext(t *testing.T) {
	in := DecisionInput{
		Goal: "Find the pricing page",
		Observation: observer.Observation{
			Page: browser.PageInfo{
				URL:            "https://example.com",
				Title:          "Example",
				ViewportWidth:  1280,
				ViewportHeight: 720,
			},
		},
		HistoryDigest: "#1 [ok] navigate",
		Step:          2,
		MaxSteps:      15,
	}

	got := buildUserPrompt(in)
	assert.Contains(t, got, "Goal: Find the pricing page")
	assert.Contains(t, got, "Current page: https://example.com")
	assert.Contains(t, got, "Page title: Example")
	assert.Contains(t, got, "Viewport: 1280x720")
	assert.Contains(t, got, "Step 2 of 15.")
	assert.Contains(t, got, "#1 [ok] navigate")
	assert.NotContains(t, got, "Visible interactive elements")
}

func TestBuildUserPromptRendersInteractiveElements(t *testing.T) {
	in := DecisionInput{
		Goal: "Log in",
		Observation: observer.Observation{
			Page: browser.PageInfo{URL: "https://example.com/login"},
			Elements: []browser.Element{
				{Tag: "a", Text: "Pricing", X: 412, Y: 88},
				{Tag: "input", Type: "password", X: 640, Y: 300},
				{Tag: "button", Text: "Sign in", X: 640, Y: 360},
			},
		},
		Step:     1,
		MaxSteps: 15,
	}

	got := buildUserPrompt(in)
	assert.Contains(t, got, "Visible interactive elements (center coordinates):")
	assert.Contains(t, got, `- a "Pricing" at (412,88)`)
	assert.Contains(t, got, "- input[password] at (640,300)")
	assert.Contains(t, got, `- button "Sign in" at (640,360)`)
}
