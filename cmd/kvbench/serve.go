package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kvbench/internal/config"
	"kvbench/internal/index"
	"kvbench/internal/index/remote"
	"kvbench/internal/logging"
)

type serveFlags struct {
	configPath string
	listen     string
	index      string
	path       string
	keySize    int
	valueSize  int
	threads    int
	options    map[string]string
}

// newServeCmd exposes a local backend to "kvbench --index remote" running
// on another machine.
func newServeCmd() *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a local index backend over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			icfg := cfg.IndexConfig()
			flags := cmd.Flags()
			if flags.Changed("index") || cfg.Index.Name == "" {
				cfg.Index.Name = f.index
			}
			if flags.Changed("path") {
				icfg.Path = f.path
			}
			if flags.Changed("key-size") {
				icfg.KeySize = f.keySize
			}
			if flags.Changed("value-size") {
				icfg.ValueSize = f.valueSize
			}
			if flags.Changed("threads") {
				icfg.Threads = f.threads
			}
			for k, v := range f.options {
				if icfg.Options == nil {
					icfg.Options = make(map[string]string)
				}
				icfg.Options[k] = v
			}
			if cfg.Index.Name == remote.Name {
				return fmt.Errorf("cannot serve the %q backend", remote.Name)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serveIndex(ctx, cfg, cfg.Index.Name, icfg, f.listen)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(wordSepNormalizeFunc)
	fs.StringVarP(&f.configPath, "config", "c", "", "Path to a YAML configuration file")
	fs.StringVar(&f.listen, "listen", ":9090", "gRPC listen address")
	fs.StringVar(&f.index, "index", "btreemap", "Index backend to serve")
	fs.StringVar(&f.path, "path", "", "Data directory for persistent backends")
	fs.IntVar(&f.keySize, "key-size", 8, "Key width in bytes, including any prefix")
	fs.IntVar(&f.valueSize, "value-size", 8, "Value width in bytes")
	fs.IntVar(&f.threads, "threads", 1, "Expected number of concurrent clients")
	fs.StringToStringVar(&f.options, "index-opt", nil, "Backend-specific options as key=value")
	return cmd
}

func serveIndex(ctx context.Context, cfg *config.Config, name string, icfg index.Config, listen string) error {
	logger := logging.NewLogger(&cfg.Logging).WithField(string(logging.IndexKey), name)

	idx, err := index.Open(name, icfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	srv := remote.NewServer(idx, logger)
	if err := srv.Start(listen); err != nil {
		return err
	}

	<-ctx.Done()
	srv.Stop()
	return nil
}
