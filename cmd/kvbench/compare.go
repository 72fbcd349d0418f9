package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kvbench/internal/report"
)

func newCompareCmd() *cobra.Command {
	th := report.DefaultThresholds()
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "compare <baseline.json> <current.json>",
		Short: "Compare two JSON reports and fail on significant regressions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			baseline, err := readReport(args[0])
			if err != nil {
				return err
			}
			current, err := readReport(args[1])
			if err != nil {
				return err
			}

			c := report.Compare(baseline.Summary, current.Summary, th)
			if asJSON {
				err = report.WriteJSON(cmd.OutOrStdout(), c)
			} else {
				err = report.WriteComparison(cmd.OutOrStdout(), c)
			}
			if err != nil {
				return err
			}
			if c.Regressed() {
				return fmt.Errorf("%d metrics regressed", len(c.Regressions))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&th.Throughput, "throughput-threshold", th.Throughput, "Throughput change in percent tolerated as noise")
	f.Float64Var(&th.Latency, "latency-threshold", th.Latency, "Latency change in percent tolerated as noise")
	f.BoolVar(&asJSON, "json", false, "Print the comparison as JSON")
	return cmd
}

func readReport(path string) (*report.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	defer f.Close()

	doc, err := report.ReadDocument(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return doc, nil
}
