package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kvbench/internal/config"
	"kvbench/internal/index"
	"kvbench/internal/logging"
)

func newRootCmd() *cobra.Command {
	flags := &benchFlags{}

	cmd := &cobra.Command{
		Use:   "kvbench [index]",
		Short: "Benchmark framework for key-value indexes",
		Long: `Load an index with a fixed number of records, verify them, then run a
mix of find, insert, update, remove and scan operations from a pool of
worker threads and report throughput, per-operation success counts,
throughput samples and latency percentiles.

The index is picked by name from the registered backends (see "kvbench
indexes"). Settings come from defaults, then an optional YAML file
(--config), then KVBENCH_* environment variables, then flags.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags, args)
			if err != nil {
				return err
			}
			return runBenchmark(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
	flags.register(cmd.Flags())

	cmd.AddCommand(newIndexesCmd(), newConfigCmd(flags), newServeCmd(), newCompareCmd())
	return cmd
}

func loadConfig(cmd *cobra.Command, flags *benchFlags, args []string) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if env := os.Getenv("KVBENCH_ENV"); env != "" {
		logging.SetupEnvironmentLogging(cfg, env)
	}
	if len(args) == 1 {
		cfg.Index.Name = args[0]
	}
	if err := flags.apply(cmd.Flags(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newIndexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "List the registered index backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range index.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newConfigCmd(flags *benchFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config [index]",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags, args)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}
