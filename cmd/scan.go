// -- cmd/scan.go --
package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/autofill/classifier"
	"github.com/xkilldash9x/formpilot/internal/autofill/engine"
	"github.com/xkilldash9x/formpilot/internal/browser/dom"
	"github.com/xkilldash9x/formpilot/internal/browser/static"
	"github.com/xkilldash9x/formpilot/internal/observability"
)

// scannedField is one row of scan output.
type scannedField struct {
	schemas.FieldReport `yaml:",inline"`
	Keyword             string `json:"keyword,omitempty" yaml:"keyword,omitempty"`
}

// newScanCmd creates the `scan` command: classification only, nothing is filled.
func newScanCmd() *cobra.Command {
	var (
		format  string
		explain bool
	)
	scanCmd := &cobra.Command{
		Use:   "scan <page.html>",
		Short: "Lists and classifies the fillable fields of a saved page and its frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			switch format {
			case "table", "json", "yaml":
			default:
				return fmt.Errorf("unsupported format %q (want table, json or yaml)", format)
			}

			page, err := static.Load(ctx, logger, args[0])
			if err != nil {
				return err
			}

			var rows []scannedField
			for _, frame := range page.Frames() {
				orch := engine.NewOrchestrator(logger, cfg.Autofill(), frame, nil)
				for _, f := range orch.Scan(ctx) {
					row := scannedField{FieldReport: f.Report(frame.ID)}
					if explain {
						_, row.Keyword = classifier.Explain(f.Context, f.Element)
					}
					rows = append(rows, row)
				}
			}
			logger.Debug("Scan finished.", zap.Int("frames", len(page.Frames())), zap.Int("fields", len(rows)))
			return writeScan(cmd.OutOrStdout(), format, explain, rows)
		},
	}
	scanCmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json or yaml")
	scanCmd.Flags().BoolVar(&explain, "explain", false, "show the keyword that decided each classification")
	return scanCmd
}

func writeScan(w io.Writer, format string, explain bool, rows []scannedField) error {
	if rows == nil {
		rows = []scannedField{}
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := "FRAME\tLABEL\tTYPE\tLOCATOR\tCONTEXT"
	if explain {
		header += "\tKEYWORD"
	}
	fmt.Fprintln(tw, header)
	for _, r := range rows {
		line := fmt.Sprintf("%d\t%s\t%s\t%s\t%s", r.Frame, r.Label, r.Type, r.Locator, truncate(r.Context, 60))
		if explain {
			line += "\t" + r.Keyword
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}

// truncate shortens s to at most n runes, marking the cut.
func truncate(s string, n int) string {
	s = dom.CollapseSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
