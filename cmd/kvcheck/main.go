// Command kvcheck replays a seeded operation sequence against an index and
// an in-memory mirror and reports every disagreement.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kvbench/internal/checker"
	"kvbench/internal/config"
	"kvbench/internal/index"
	_ "kvbench/internal/index/badgerdb"
	_ "kvbench/internal/index/bloomfront"
	_ "kvbench/internal/index/btreemap"
	_ "kvbench/internal/index/hashmap"
	_ "kvbench/internal/index/leveldb"
	_ "kvbench/internal/index/lrufront"
	_ "kvbench/internal/index/redisdb"
	_ "kvbench/internal/index/remote"
	"kvbench/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := checker.DefaultOptions()
	var (
		path     string
		addr     string
		options  map[string]string
		jsonOut  bool
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "kvcheck <index>",
		Short: "Cross-check an index against an in-memory mirror",
		Long: `Insert records, then run find, update, remove and scan phases with
random keys against both the index and a B-tree mirror. Any result that
differs is reported. Scans are skipped with --skip-scan for backends that
do not keep keys ordered.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logCfg := config.DefaultConfig().Logging
			logCfg.Level = logLevel
			logger := logging.NewLogger(&logCfg).WithField(string(logging.IndexKey), args[0])

			icfg := checker.IndexConfig()
			icfg.Path = path
			icfg.Addr = addr
			icfg.InMemory = path == ""
			icfg.Options = options

			idx, err := index.Open(args[0], icfg)
			if err != nil {
				return err
			}
			defer idx.Close()

			c, err := checker.New(idx, opts, logger)
			if err != nil {
				return err
			}
			rep, runErr := c.Run(ctx)
			if err := writeReport(cmd.OutOrStdout(), rep, jsonOut); err != nil {
				return err
			}
			return runErr
		},
	}

	f := cmd.Flags()
	f.Uint64VarP(&opts.Records, "records", "n", opts.Records, "Records inserted before the checks")
	f.Uint64VarP(&opts.Operations, "operations", "p", opts.Operations, "Operations per find, update and remove phase")
	f.Uint64Var(&opts.Scans, "scans", opts.Scans, "Number of scans")
	f.IntVar(&opts.ScanSize, "scan-size", opts.ScanSize, "Records per scan")
	f.Uint64Var(&opts.Seed, "seed", opts.Seed, "Seed for the operation sequence")
	f.BoolVar(&opts.SkipScan, "skip-scan", false, "Skip the scan phase")
	f.BoolVar(&opts.FailFast, "fail-fast", false, "Stop at the first mismatch")
	f.StringVar(&path, "path", "", "Data directory for persistent backends")
	f.StringVar(&addr, "addr", "", "Address of networked backends")
	f.StringToStringVar(&options, "index-opt", nil, "Backend-specific options as key=value")
	f.BoolVar(&jsonOut, "json", false, "Print the report as JSON")
	f.StringVar(&logLevel, "log-level", "warn", "Log level")
	return cmd
}

func writeReport(w io.Writer, rep *checker.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	for _, p := range rep.Phases {
		fmt.Fprintf(w, "%-8s %10d operations %6d mismatches %v\n", p.Name, p.Operations, p.Mismatches, p.Duration)
	}
	for _, m := range rep.Mismatches {
		fmt.Fprintf(w, "mismatch: %s\n", m)
	}
	if rep.Total() == 0 {
		_, err := fmt.Fprintln(w, "Success!")
		return err
	}
	_, err := fmt.Fprintf(w, "Failed: %d mismatches\n", rep.Total())
	return err
}
