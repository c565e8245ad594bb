// -- cmd/run.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/operator-cli/internal/browser"
	"github.com/xkilldash9x/operator-cli/internal/config"
	"github.com/xkilldash9x/operator-cli/internal/history"
	"github.com/xkilldash9x/operator-cli/internal/llmclient"
	"github.com/xkilldash9x/operator-cli/internal/observability"
	"github.com/xkilldash9x/operator-cli/internal/observer"
	"github.com/xkilldash9x/operator-cli/internal/session"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs a browser session toward the given goal",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind override flags to their viper keys so command-line values
			// take precedence over config file and environment.
			if err := viper.BindPFlag("session.max_steps", cmd.Flags().Lookup("max-steps")); err != nil {
				return err
			}
			if err := viper.BindPFlag("llm.api_key", cmd.Flags().Lookup("api-key")); err != nil {
				return err
			}
			if err := viper.BindPFlag("llm.model", cmd.Flags().Lookup("model")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			return viper.BindPFlag("browser.screenshot_dir", cmd.Flags().Lookup("screenshot-dir"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from Execute (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-load so flag overrides bound in PreRunE are applied.
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return &exitError{code: 1, msg: err.Error()}
			}

			goal, _ := cmd.Flags().GetString("goal")
			startURL, _ := cmd.Flags().GetString("start-url")

			// The credential is checked before any browser resources are
			// allocated; a missing key must not launch Chrome.
			if cfg.LLM.APIKey == "" {
				return &exitError{code: 1, msg: "configuration error: no API key set (use --api-key or OPERATOR_LLM_API_KEY)"}
			}

			result, err := runSession(ctx, cfg, goal, startURL, logger)
			if err != nil {
				var cfgErr *session.ConfigurationError
				if errors.As(err, &cfgErr) {
					return &exitError{code: 1, msg: err.Error()}
				}
				return err
			}

			printResult(result)
			switch result.Status {
			case session.StatusSucceeded:
				return nil
			case session.StatusExhausted:
				return &exitError{code: 2}
			default:
				return &exitError{code: 1}
			}
		},
	}

	runCmd.Flags().StringP("goal", "g", "", "Natural-language goal for the session (required)")
	runCmd.Flags().String("start-url", "", "URL to navigate to before the first decision")
	runCmd.Flags().Int("max-steps", 0, "Maximum number of executed actions. (Overrides config/env)")
	runCmd.Flags().String("api-key", "", "Decision model API key. (Overrides config/env)")
	runCmd.Flags().String("model", "", "Decision model name. (Overrides config/env)")
	runCmd.Flags().Bool("headless", true, "Run the browser headless. (Overrides config/env)")
	runCmd.Flags().String("screenshot-dir", "", "Directory to persist per-step screenshots. (Overrides config/env)")
	_ = runCmd.MarkFlagRequired("goal")

	return runCmd
}

// runSession wires the session components together and runs the loop to a
// terminal state.
func runSession(ctx context.Context, cfg *config.Config, goal, startURL string, logger *zap.Logger) (*session.Result, error) {
	client, err := llmclient.NewGeminiClient(cfg.LLM, logger)
	if err != nil {
		return nil, &session.ConfigurationError{Detail: err.Error()}
	}

	driver, err := browser.NewChromeDriver(ctx, cfg.Browser, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := driver.Close(closeCtx); err != nil {
			logger.Warn("Error during browser shutdown", zap.Error(err))
		}
	}()

	perceiver := observer.New(driver, cfg.Browser.ScreenshotDir, logger)
	log := history.NewLog(cfg.History.Window)
	ctrl := session.NewController(driver, perceiver, client, log, cfg.Session, logger)

	return ctrl.Run(ctx, session.Goal{Objective: goal, StartURL: startURL})
}

// printResult writes the human-facing session summary to stdout.
func printResult(r *session.Result) {
	fmt.Printf("\nSession %s: %s after %d step(s)\n", r.SessionID, r.Status, r.Steps)
	if r.FinalURL != "" {
		fmt.Printf("Final page: %s\n", r.FinalURL)
	}
	if r.FinalScreenshotPath != "" {
		fmt.Printf("Final screenshot: %s\n", r.FinalScreenshotPath)
	}
	if r.Status == session.StatusFailed {
		fmt.Printf("Error: [%s] %s\n", r.ErrorCode, r.ErrorDetail)
	}
	for _, e := range r.History {
		marker := "ok"
		if e.Outcome != history.OutcomeOK {
			marker = "error: " + e.Detail
		}
		fmt.Printf("  #%d %s (%s)\n", e.Step, e.Request.Summary(), marker)
	}
}
