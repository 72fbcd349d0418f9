package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"kvbench/internal/config"
	"kvbench/internal/generator"
	"kvbench/internal/workload"
)

// benchFlags holds the command-line overrides. Only flags the user set are
// copied onto the loaded configuration.
type benchFlags struct {
	configPath string

	records    uint64
	operations uint64
	threads    int
	mode       string
	seconds    float64
	samplingMS int
	latency    float64

	keyPrefix string
	keySize   int
	valueSize int
	noHash    bool

	readRatio   float64
	insertRatio float64
	updateRatio float64
	removeRatio float64
	scanRatio   float64
	scanSize    int

	distribution textValue
	skew         float64
	seed         uint64

	skipLoad   bool
	skipVerify bool
	bulkLoad   bool
	pin        bool
	maxRate    float64

	index        string
	indexPath    string
	indexAddr    string
	indexOptions map[string]string
	inMemory     bool

	reportFormat string
	reportOutput string
	noEnv        bool

	logLevel  string
	logFormat string

	metrics     bool
	metricsAddr string
	tracing     bool
	tracer      string
}

// textValue adapts an encoding.TextUnmarshaler setting to pflag.Value.
type textValue struct {
	text string
	kind generator.DistributionKind
}

func (v *textValue) String() string { return v.text }

func (v *textValue) Set(s string) error {
	if err := v.kind.UnmarshalText([]byte(s)); err != nil {
		return err
	}
	v.text = strings.ToLower(s)
	return nil
}

func (v *textValue) Type() string { return "distribution" }

// wordSepNormalizeFunc accepts the classic underscore spelling of every
// flag, so --key_size and --key-size are the same flag.
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func (b *benchFlags) register(f *pflag.FlagSet) {
	d := workload.DefaultOptions()
	f.SetNormalizeFunc(wordSepNormalizeFunc)

	f.StringVarP(&b.configPath, "config", "c", "", "Path to a YAML configuration file")

	f.Uint64VarP(&b.records, "records", "n", d.Records, "Number of records to load")
	f.Uint64VarP(&b.operations, "operations", "p", d.Operations, "Number of operations to execute")
	f.IntVarP(&b.threads, "threads", "t", d.Threads, "Number of threads to use")
	f.StringVar(&b.mode, "mode", d.Mode.String(), "Run mode: operation or time")
	f.Float64Var(&b.seconds, "seconds", d.Duration.Seconds(), "Run duration in time mode")
	f.IntVar(&b.samplingMS, "sampling-ms", int(d.SamplingInterval.Milliseconds()), "Sampling window in milliseconds")
	f.Float64Var(&b.latency, "latency-sampling", d.LatencySampling, "Fraction of requests whose latency is sampled")

	f.StringVarP(&b.keyPrefix, "key-prefix", "f", d.KeyPrefix, "Prefix string prepended to every key")
	f.IntVarP(&b.keySize, "key-size", "k", d.KeySize, "Size of keys in bytes (without prefix)")
	f.IntVarP(&b.valueSize, "value-size", "v", d.ValueSize, "Size of values in bytes")
	f.BoolVar(&b.noHash, "no-hash", false, "Use raw identifiers as keys instead of hashing them")

	f.Float64VarP(&b.readRatio, "read-ratio", "r", d.ReadRatio, "Ratio of read operations")
	f.Float64VarP(&b.insertRatio, "insert-ratio", "i", d.InsertRatio, "Ratio of insert operations")
	f.Float64VarP(&b.updateRatio, "update-ratio", "u", d.UpdateRatio, "Ratio of update operations")
	f.Float64VarP(&b.removeRatio, "remove-ratio", "d", d.RemoveRatio, "Ratio of remove operations")
	f.Float64VarP(&b.scanRatio, "scan-ratio", "s", d.ScanRatio, "Ratio of scan operations")
	f.IntVar(&b.scanSize, "scan-size", d.ScanSize, "Number of records to be scanned")

	b.distribution = textValue{text: d.Distribution.String(), kind: d.Distribution}
	f.Var(&b.distribution, "distribution", "Key distribution: uniform, selfsimilar or zipfian")
	f.Float64Var(&b.skew, "skew", d.Skew, "Key distribution skew factor")
	f.Uint64Var(&b.seed, "seed", d.Seed, "Seed for random generators")

	f.BoolVar(&b.skipLoad, "skip-load", false, "Skip the load phase")
	f.BoolVar(&b.skipVerify, "skip-verify", false, "Skip verifying loaded records")
	f.BoolVar(&b.bulkLoad, "bulk-load", false, "Load records with the index bulk loader")
	f.BoolVar(&b.pin, "pin", false, "Pin worker threads to CPUs")
	f.Float64Var(&b.maxRate, "max-rate", 0, "Aggregate operations per second cap (0 for unlimited)")

	f.StringVar(&b.index, "index", "btreemap", "Index backend to benchmark")
	f.StringVar(&b.indexPath, "index-path", "", "Data directory for persistent backends")
	f.StringVar(&b.indexAddr, "index-addr", "", "Address of networked backends")
	f.StringToStringVar(&b.indexOptions, "index-opt", nil, "Backend-specific options as key=value")
	f.BoolVar(&b.inMemory, "in-memory", true, "Keep persistent backends in memory")

	f.StringVar(&b.reportFormat, "format", "text", "Report format: text or json")
	f.StringVarP(&b.reportOutput, "output", "o", "stdout", "Report destination: stdout or a file path")
	f.BoolVar(&b.noEnv, "no-env", false, "Do not print the environment block")

	f.StringVar(&b.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	f.StringVar(&b.logFormat, "log-format", "text", "Log format: text, json or console")

	f.BoolVar(&b.metrics, "metrics", false, "Serve progress and Prometheus metrics during the run")
	f.StringVar(&b.metricsAddr, "metrics-addr", ":2112", "Listen address of the metrics endpoint")
	f.BoolVar(&b.tracing, "tracing", false, "Emit a trace span per phase")
	f.StringVar(&b.tracer, "tracing-exporter", "console", "Trace exporter: console, otlp or jaeger")
}

// apply copies changed flags onto cfg and validates the result.
func (b *benchFlags) apply(f *pflag.FlagSet, cfg *config.Config) error {
	o := &cfg.Benchmark
	set := func(name string, fn func()) {
		if f.Changed(name) {
			fn()
		}
	}

	set("records", func() { o.Records = b.records })
	set("operations", func() { o.Operations = b.operations })
	set("threads", func() { o.Threads = b.threads })
	set("seconds", func() { o.Duration = time.Duration(b.seconds * float64(time.Second)) })
	set("sampling-ms", func() { o.SamplingInterval = time.Duration(b.samplingMS) * time.Millisecond })
	set("latency-sampling", func() { o.LatencySampling = b.latency })
	set("key-prefix", func() { o.KeyPrefix = b.keyPrefix })
	set("key-size", func() { o.KeySize = b.keySize })
	set("value-size", func() { o.ValueSize = b.valueSize })
	set("no-hash", func() { o.ApplyHash = !b.noHash })
	set("read-ratio", func() { o.ReadRatio = b.readRatio })
	set("insert-ratio", func() { o.InsertRatio = b.insertRatio })
	set("update-ratio", func() { o.UpdateRatio = b.updateRatio })
	set("remove-ratio", func() { o.RemoveRatio = b.removeRatio })
	set("scan-ratio", func() { o.ScanRatio = b.scanRatio })
	set("scan-size", func() { o.ScanSize = b.scanSize })
	set("distribution", func() { o.Distribution = b.distribution.kind })
	set("skew", func() { o.Skew = b.skew })
	set("seed", func() { o.Seed = b.seed })
	set("skip-load", func() { o.SkipLoad = b.skipLoad })
	set("skip-verify", func() { o.SkipVerify = b.skipVerify })
	set("bulk-load", func() { o.BulkLoad = b.bulkLoad })
	set("pin", func() { o.PinThreads = b.pin })
	set("max-rate", func() { o.MaxRate = b.maxRate })

	set("index", func() { cfg.Index.Name = b.index })
	set("index-path", func() { cfg.Index.Path = b.indexPath })
	set("index-addr", func() { cfg.Index.Addr = b.indexAddr })
	set("in-memory", func() { cfg.Index.InMemory = b.inMemory })
	set("index-opt", func() {
		if cfg.Index.Options == nil {
			cfg.Index.Options = make(map[string]string)
		}
		for k, v := range b.indexOptions {
			cfg.Index.Options[k] = v
		}
	})

	set("format", func() { cfg.Report.Format = b.reportFormat })
	set("output", func() { cfg.Report.Output = b.reportOutput })
	set("no-env", func() { cfg.Report.Environment = !b.noEnv })
	set("log-level", func() { cfg.Logging.Level = b.logLevel })
	set("log-format", func() { cfg.Logging.Format = b.logFormat })
	set("metrics", func() { cfg.Metrics.Enabled = b.metrics })
	set("metrics-addr", func() { cfg.Metrics.Address = b.metricsAddr })
	set("tracing", func() { cfg.Tracing.Enabled = b.tracing })
	set("tracing-exporter", func() { cfg.Tracing.ExporterType = b.tracer })

	if f.Changed("mode") {
		mode, err := workload.ParseMode(b.mode)
		if err != nil {
			return err
		}
		o.Mode = mode
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
