// Command tabstat computes descriptive statistics over a rectangular region
// of a CSV file using a pool of worker goroutines.
//
//	tabstat [flags] FILE
//
// The exit code is the run's status code: 0 on success, otherwise the code of
// the error kind that stopped the run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tabstat/internal/config"
	"tabstat/internal/engine"
	apperrors "tabstat/internal/errors"
	"tabstat/internal/infrastructure"
	"tabstat/internal/report"
	"tabstat/internal/selection"
	"tabstat/internal/stats"
	"tabstat/internal/table"
	"tabstat/pkg/contracts"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	filename   string
	rows       string
	cols       string
	ops        map[stats.Operation]*bool
	threads    int
	format     string
	delimiter  string
	configFile string
	verbose    bool
	version    bool
}

func newFlagSet(o *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("tabstat", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.cols, "xrange", "", "columns to include: a header or index, or a range like atoc or 2to0 (default all)")
	fs.StringVar(&o.rows, "yrange", "", "rows to include: a row label or index, or a range like 1to7 (default all)")
	o.ops = make(map[stats.Operation]*bool)
	for _, op := range stats.AllOperations() {
		o.ops[op] = fs.Bool(op.String(), false, fmt.Sprintf("compute the %s of the selection", op))
	}
	fs.IntVar(&o.threads, "thread-count", 0, "number of worker goroutines (default from config)")
	fs.StringVar(&o.format, "format", string(report.FormatText), "output format: text, json or csv")
	fs.StringVar(&o.delimiter, "delimiter", "", "field delimiter: ',', ';', '|' or 'tab' (default from config)")
	fs.StringVar(&o.configFile, "config", "", "path to a YAML config file")
	fs.BoolVar(&o.verbose, "verbose", false, "log progress to stderr")
	fs.BoolVar(&o.version, "version", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: tabstat [flags] FILE\n\n")
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs accepts flags before and after the file name
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := newFlagSet(o, stderr)

	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			break
		}
		if o.filename != "" {
			return nil, fmt.Errorf("unexpected argument %q", rest[0])
		}
		o.filename = rest[0]
		args = rest[1:]
	}
	return o, nil
}

func (o *options) operations() stats.OperationSet {
	var set stats.OperationSet
	for _, op := range stats.AllOperations() {
		if *o.ops[op] {
			set.Add(op)
		}
	}
	return set
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return apperrors.StatusOK
		}
		fmt.Fprintf(stderr, "tabstat: %v\n", err)
		return apperrors.StatusInvalidRequest
	}
	if o.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return apperrors.StatusOK
	}

	format, err := report.ParseFormat(o.format)
	if err != nil {
		return fail(stderr, err)
	}

	cfg, err := config.Load(o.configFile)
	if err != nil {
		return fail(stderr, apperrors.NewConfigError("cannot load configuration", err))
	}
	if o.delimiter != "" {
		cfg.Engine.Delimiter = config.NormalizeDelimiter(o.delimiter)
	}
	delim, err := table.ParseDelimiter(cfg.Engine.Delimiter)
	if err != nil {
		return fail(stderr, err)
	}

	logger, err := newLogger(cfg.Logging, o.verbose, stderr)
	if err != nil {
		return fail(stderr, apperrors.NewConfigError("cannot initialize logging", err))
	}

	otelCfg := infrastructure.OTelConfigFrom(cfg.Telemetry, contracts.Version)
	otelCfg.MetricExporter = "none"
	otelCfg.TraceWriter = stderr
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return fail(stderr, apperrors.NewConfigError("cannot initialize telemetry", err))
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	threads := o.threads
	if threads == 0 {
		threads = cfg.Engine.DefaultThreads
	}

	eng := engine.New(engine.Options{
		Logger:     logger,
		Tracer:     providers.Tracer,
		Table:      table.Options{Delimiter: delim, TrimSpace: cfg.Engine.TrimSpace},
		MaxThreads: cfg.Engine.MaxThreads,
	})

	resp, err := eng.Run(ctx, engine.Request{
		Path:       o.filename,
		Rows:       selection.ParseRangeSpec(o.rows),
		Cols:       selection.ParseRangeSpec(o.cols),
		Operations: o.operations(),
		Threads:    threads,
	})
	if err != nil {
		if format == report.FormatJSON {
			_ = report.WriteJSON(stdout, report.ToContract(resp, err))
		}
		return fail(stderr, err)
	}

	if format == report.FormatJSON {
		err = report.WriteJSON(stdout, report.ToContract(resp, nil))
	} else {
		err = report.Write(stdout, format, resp)
	}
	if err != nil {
		fmt.Fprintf(stderr, "tabstat: cannot write results: %v\n", err)
		return apperrors.StatusUnknown
	}

	fmt.Fprintf(stderr, "tabstat: completed %d operations over %d cells with %d threads in %s\n",
		len(resp.Result.Ops()), resp.Result.Count, resp.Threads, resp.Duration.Round(time.Microsecond))
	return resp.Status
}

// newLogger keeps the CLI quiet unless asked: warnings and above by default,
// debug with --verbose.
func newLogger(cfg config.LoggingConfig, verbose bool, stderr io.Writer) (*slog.Logger, error) {
	cfg.Level = "warn"
	if verbose {
		cfg.Level = "debug"
	}
	return infrastructure.NewLogger(cfg, stderr)
}

func fail(stderr io.Writer, err error) int {
	code := apperrors.StatusCode(err)
	fmt.Fprintf(stderr, "tabstat: failed (status %d, %s): %v\n", code, apperrors.TypeOf(err), err)
	return code
}
