// -- cmd/fill.go --
package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/browser/static"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/observability"
)

// addAutofillFlags registers the flags shared by fill and live. They override the
// autofill section of the configuration through flagBindings.
func addAutofillFlags(cmd *cobra.Command, profilePath *string) {
	cmd.Flags().StringVarP(profilePath, "profile", "p", "", "path to the profile JSON (- reads stdin)")
	_ = cmd.MarkFlagRequired("profile")
	cmd.Flags().Duration("scan-delay", 0, "pause between the scan summary and the first fill")
	cmd.Flags().Duration("field-delay", 0, "pause after each filled field")
	cmd.Flags().String("on-busy", config.OnBusyIgnore, "what a second start does while a run is active: ignore or restart")
}

func readProfile(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read profile from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return data, nil
}

// newFillCmd creates the `fill` command for saved pages.
func newFillCmd() *cobra.Command {
	var (
		profilePath string
		outPath     string
		events      bool
	)
	fillCmd := &cobra.Command{
		Use:   "fill <page.html>",
		Short: "Fills a saved page and its frames from a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			raw, err := readProfile(profilePath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			page, err := static.Load(ctx, logger, args[0])
			if err != nil {
				return err
			}

			run := &fillRun{
				logger:      logger,
				cfg:         cfg,
				frames:      page.Frames(),
				progressOut: cmd.ErrOrStderr(),
			}
			if events {
				run.eventsOut = cmd.OutOrStdout()
			}

			start := time.Now()
			rep, err := run.execute(ctx, raw)
			if err != nil {
				return err
			}
			logger.Info("Autofill finished.",
				zap.Int("total", rep.Sum.Total),
				zap.Int("filled", rep.Sum.Filled),
				zap.Duration("took", time.Since(start)),
			)

			if outPath != "" {
				if err := page.WriteFile(outPath); err != nil {
					return err
				}
				logger.Info("Filled page written.", zap.String("path", outPath))
			}
			if !events {
				fmt.Fprintln(cmd.OutOrStdout(), summaryLine(rep))
			}
			return nil
		},
	}
	addAutofillFlags(fillCmd, &profilePath)
	fillCmd.Flags().StringVarP(&outPath, "out", "o", "", "write the filled page to this path")
	fillCmd.Flags().BoolVar(&events, "events", false, "stream top-frame messages to stdout as JSON lines")
	return fillCmd
}
