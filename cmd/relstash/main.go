// Command relstash assembles relations from a newline-delimited JSON entity
// stream.
//
// Usage:
//
//	relstash [flags] <input>
//
// The input is read twice, once for relations and once for their members. It
// may be a local path or s3://bucket/key and may be compressed with gzip,
// zstd or lz4.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/relstash"
	"github.com/hupe1980/relstash/assembler"
	"github.com/hupe1980/relstash/blobstore/minio"
	"github.com/hupe1980/relstash/compress"
	"github.com/hupe1980/relstash/internal/resource"
	"github.com/hupe1980/relstash/osm"
	"github.com/hupe1980/relstash/source"
	"github.com/hupe1980/relstash/stash"
	flag "github.com/spf13/pflag"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Environ())
	stop()
	os.Exit(code)
}

type invocation struct {
	cfg        Config
	input      string
	list       bool
	dumpConfig bool
}

func parseArgs(errOut io.Writer, args, env []string) (invocation, error) {
	flagSet := flag.NewFlagSet("relstash", flag.ContinueOnError)
	flagSet.SetOutput(errOut)
	flagSet.Usage = func() {
		fmt.Fprintln(errOut, "Usage: relstash [flags] <input>")
		fmt.Fprintln(errOut, "\n<input> is a path or s3://bucket/key. A trailing slash reads every file under it.")
		flagSet.PrintDefaults()
	}

	def := DefaultConfig()
	configPath := flagSet.StringP("config", "c", "", "JSONC config file")
	blockSize := flagSet.Int("block-size", def.BlockSize, "stash block size in bytes")
	memoryLimit := flagSet.Int64("memory-limit", 0, "limit for stash memory in bytes (0 = unlimited)")
	ioLimit := flagSet.Int64("io-limit", 0, "input read limit in bytes per second (0 = unlimited)")
	offHeap := flagSet.Bool("off-heap", false, "allocate stash blocks outside the Go heap")
	workers := flagSet.IntP("workers", "j", def.Workers, "JSON decoding goroutines")
	compression := flagSet.String("compression", "", "input compression (default: from file extension)")
	logLevel := flagSet.String("log-level", def.LogLevel, "debug, info, warn or error")
	logFormat := flagSet.String("log-format", def.LogFormat, "text or json")
	relationTypes := flagSet.StringSliceP("relation-type", "t", nil, "collect relations with this type tag (repeatable)")
	memberTypes := flagSet.StringSlice("member-type", nil, "wait only for members of this type (node, way, relation)")
	report := flagSet.StringP("report", "o", "", "write a JSON report to this path or s3:// uri")
	s3Endpoint := flagSet.String("s3-endpoint", "", "S3 endpoint host:port")
	s3AccessKey := flagSet.String("s3-access-key", "", "S3 access key")
	s3SecretKey := flagSet.String("s3-secret-key", "", "S3 secret key")
	s3Region := flagSet.String("s3-region", "", "S3 region")
	s3SSL := flagSet.Bool("s3-ssl", false, "use HTTPS for S3")
	list := flagSet.BoolP("list", "l", false, "print every complete relation")
	dumpConfig := flagSet.Bool("print-config", false, "print the effective configuration and exit")

	if err := flagSet.Parse(args); err != nil {
		return invocation{}, fmt.Errorf("%w: %w", errUsage, err)
	}

	cfg := def
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfigFile(cfg, *configPath); err != nil {
			return invocation{}, err
		}
	}

	// Flags override the config file.
	overrides := map[string]func(){
		"block-size":    func() { cfg.BlockSize = *blockSize },
		"memory-limit":  func() { cfg.MemoryLimit = *memoryLimit },
		"io-limit":      func() { cfg.IOLimit = *ioLimit },
		"off-heap":      func() { cfg.OffHeap = *offHeap },
		"workers":       func() { cfg.Workers = *workers },
		"compression":   func() { cfg.Compression = *compression },
		"log-level":     func() { cfg.LogLevel = *logLevel },
		"log-format":    func() { cfg.LogFormat = *logFormat },
		"relation-type": func() { cfg.RelationTypes = *relationTypes },
		"member-type":   func() { cfg.MemberTypes = *memberTypes },
		"report":        func() { cfg.Report = *report },
		"s3-endpoint":   func() { cfg.S3.Endpoint = *s3Endpoint },
		"s3-access-key": func() { cfg.S3.AccessKey = *s3AccessKey },
		"s3-secret-key": func() { cfg.S3.SecretKey = *s3SecretKey },
		"s3-region":     func() { cfg.S3.Region = *s3Region },
		"s3-ssl":        func() { cfg.S3.UseSSL = *s3SSL },
	}
	flagSet.Visit(func(f *flag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})
	cfg = applyEnv(cfg, env)

	if err := validateConfig(cfg); err != nil {
		return invocation{}, fmt.Errorf("%w: %w", errUsage, err)
	}
	if _, err := relstash.ParseLevel(cfg.LogLevel); err != nil {
		return invocation{}, fmt.Errorf("%w: %w", errUsage, err)
	}

	inv := invocation{cfg: cfg, list: *list, dumpConfig: *dumpConfig}
	if inv.dumpConfig {
		return inv, nil
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return invocation{}, fmt.Errorf("%w: expected exactly one input, got %d", errUsage, flagSet.NArg())
	}
	inv.input = flagSet.Arg(0)
	return inv, nil
}

func run(ctx context.Context, args []string, out, errOut io.Writer, env []string) int {
	inv, err := parseArgs(errOut, args, env)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(errOut, "error:", err)
		if errors.Is(err, errUsage) {
			return exitUsage
		}
		return exitError
	}

	if inv.dumpConfig {
		s, err := FormatConfig(inv.cfg)
		if err != nil {
			fmt.Fprintln(errOut, "error:", err)
			return exitError
		}
		fmt.Fprintln(out, s)
		return exitOK
	}

	if err := assemble(ctx, inv, out, errOut); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return exitError
	}
	return exitOK
}

func newLogger(cfg Config, w io.Writer) *relstash.Logger {
	level, _ := relstash.ParseLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		return relstash.NewJSONLogger(w, level)
	}
	return relstash.NewTextLogger(w, level)
}

func assemble(ctx context.Context, inv invocation, out, errOut io.Writer) error {
	cfg := inv.cfg
	logger := newLogger(cfg, errOut).WithInput(inv.input)

	ctrl := resource.NewController(resource.Config{
		MemoryLimitBytes:   cfg.MemoryLimit,
		IOLimitBytesPerSec: cfg.IOLimit,
	})
	metrics := &relstash.BasicMetricsCollector{}
	s3 := minio.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Region:    cfg.S3.Region,
		UseSSL:    cfg.S3.UseSSL,
	}

	opts := []assembler.Option{
		assembler.WithLogger(logger.Logger),
		assembler.WithMetrics(metrics),
		assembler.WithWorkers(cfg.Workers),
		assembler.WithStashOptions(
			stash.WithBlockSize(cfg.BlockSize),
			stash.WithMemoryAcquirer(ctrl),
			stash.WithOffHeap(cfg.OffHeap),
		),
	}
	if len(cfg.RelationTypes) > 0 {
		opts = append(opts, assembler.WithTagFilter("type", cfg.RelationTypes...))
	}
	if len(cfg.MemberTypes) > 0 {
		types := make([]osm.ItemType, 0, len(cfg.MemberTypes))
		for _, s := range cfg.MemberTypes {
			t, err := osm.ParseItemType(s)
			if err != nil {
				return err
			}
			types = append(types, t)
		}
		opts = append(opts, assembler.WithMemberTypes(types...))
	}

	handler := assembler.HandlerFunc(func(_ context.Context, rel osm.RelationView, members []*osm.Object) error {
		if inv.list {
			_, err := fmt.Fprintf(out, "relation/%d members=%d\n", rel.ID(), len(members))
			return err
		}
		return nil
	})

	c := assembler.New(handler, opts...)
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}()

	sourceOpts := []source.Option{
		source.WithRegistry(compress.NewRegistry()),
		source.WithController(ctrl),
		source.WithS3(s3),
		source.WithLogger(logger.Logger),
	}
	if cfg.Compression != "" {
		sourceOpts = append(sourceOpts, source.WithCompression(compress.Kind(cfg.Compression)))
	}
	err := c.Run(ctx, func(ctx context.Context) (io.ReadCloser, error) {
		return source.Open(ctx, inv.input, sourceOpts...)
	})
	if err != nil {
		return err
	}

	st := c.Stats()
	fmt.Fprintf(out, "complete: %d\nincomplete: %d\n", st.Completed, st.Incomplete)

	if cfg.Report != "" {
		rep := buildReport(inv.input, c, metrics, ctrl)
		if err := writeReport(ctx, cfg.Report, s3, rep); err != nil {
			return err
		}
		logger.Info("report written", "report", cfg.Report)
	}
	return nil
}

// Report is the JSON document written by --report.
type Report struct {
	Input       string                     `json:"input"`
	Stats       assembler.Stats            `json:"stats"`
	Metrics     relstash.BasicMetricsStats `json:"metrics"`
	PeakMemory  int64                      `json:"peak_memory"`
	MemoryLimit int64                      `json:"memory_limit,omitempty"`
	Incomplete  []IncompleteRelation       `json:"incomplete"`
}

// IncompleteRelation lists a relation that never saw all its members.
type IncompleteRelation struct {
	ID      int64        `json:"id"`
	Missing []osm.Member `json:"missing"`
}

func buildReport(input string, c *assembler.Collector, metrics *relstash.BasicMetricsCollector, ctrl *resource.Controller) Report {
	rep := Report{
		Input:       input,
		Stats:       c.Stats(),
		Metrics:     metrics.GetStats(),
		PeakMemory:  ctrl.PeakMemoryUsage(),
		MemoryLimit: ctrl.MemoryLimit(),
		Incomplete:  []IncompleteRelation{},
	}
	for rel, missing := range c.Pending() {
		rep.Incomplete = append(rep.Incomplete, IncompleteRelation{
			ID:      rel.ID(),
			Missing: missing,
		})
	}
	return rep
}

func writeReport(ctx context.Context, uri string, s3 minio.Config, rep Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	loc, err := source.ParseURI(uri)
	if err != nil {
		return err
	}
	store, err := source.StoreFor(loc, s3)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, loc.Key, append(data, '\n')); err != nil {
		return fmt.Errorf("write report %s: %w", loc, err)
	}
	return nil
}
