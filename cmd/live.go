// -- cmd/live.go --
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/browser/session"
	"github.com/xkilldash9x/formpilot/internal/observability"
)

// newLiveCmd creates the `live` command: a Chrome tab is opened on the URL, and once
// a form shows up every frame of the tab is filled.
func newLiveCmd() *cobra.Command {
	var (
		profilePath string
		events      bool
		hold        time.Duration
	)
	liveCmd := &cobra.Command{
		Use:   "live <url>",
		Short: "Opens a page in Chrome and fills every frame from a profile",
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

			// Holding a tab nobody can see is pointless.
			if hold > 0 && !cmd.Flags().Changed("headless") {
				cfg.SetBrowserHeadless(false)
			}

			sess, err := session.New(ctx, logger, cfg.Browser())
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.Navigate(ctx, args[0]); err != nil {
				return err
			}
			if err := sess.WaitForForm(ctx); err != nil {
				return err
			}
			frames, err := sess.Frames(ctx)
			if err != nil {
				return err
			}

			run := &fillRun{
				logger:      logger,
				cfg:         cfg,
				frames:      frames,
				progressOut: cmd.ErrOrStderr(),
			}
			if events {
				run.eventsOut = cmd.OutOrStdout()
			}
			rep, err := run.execute(ctx, raw)
			if err != nil {
				return err
			}
			logger.Info("Autofill finished.",
				zap.String("url", args[0]),
				zap.Int("total", rep.Sum.Total),
				zap.Int("filled", rep.Sum.Filled),
			)
			if !events {
				fmt.Fprintln(cmd.OutOrStdout(), summaryLine(rep))
			}

			// Keep a visible browser open so the result can be reviewed and submitted by hand.
			if hold > 0 {
				logger.Info("Holding the browser open.", zap.Duration("hold", hold))
				select {
				case <-ctx.Done():
				case <-time.After(hold):
				}
			}
			return nil
		},
	}
	addAutofillFlags(liveCmd, &profilePath)
	liveCmd.Flags().BoolVar(&events, "events", false, "stream top-frame messages to stdout as JSON lines")
	liveCmd.Flags().Bool("headless", true, "run Chrome without a window")
	liveCmd.Flags().Duration("form-timeout", 0, "how long to wait for a form to appear")
	liveCmd.Flags().Duration("nav-timeout", 0, "navigation timeout")
	liveCmd.Flags().DurationVar(&hold, "hold", 0, "keep the browser open this long after filling")
	return liveCmd
}
