// internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1280, cfg.Browser.WindowWidth)
	assert.Equal(t, 720, cfg.Browser.WindowHeight)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 20, cfg.Session.MaxSteps)
	assert.Equal(t, time.Second, cfg.Session.StepDelay)
	assert.Equal(t, 3, cfg.Session.MaxConsecutiveErrors)
	assert.Equal(t, 5, cfg.History.Window)
}

func TestLoadOverrides(t *testing.T) {
	v := newViper()
	v.Set("session.max_steps", 5)
	v.Set("browser.headless", false)
	v.Set("llm.model", "gemini-2.5-pro")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Session.MaxSteps)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(v *viper.Viper){
		"zero max steps":      func(v *viper.Viper) { v.Set("session.max_steps", 0) },
		"negative max steps":  func(v *viper.Viper) { v.Set("session.max_steps", -3) },
		"zero error budget":   func(v *viper.Viper) { v.Set("session.max_consecutive_errors", 0) },
		"zero history window": func(v *viper.Viper) { v.Set("history.window", 0) },
		"bad endpoint":        func(v *viper.Viper) { v.Set("llm.endpoint", "not a url") },
		"unknown provider":    func(v *viper.Viper) { v.Set("llm.provider", "openai") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := newViper()
			mutate(v)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestValidateAcceptsExplicitEndpoint(t *testing.T) {
	v := newViper()
	v.Set("llm.endpoint", "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent")
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.LLM.Endpoint)
}
