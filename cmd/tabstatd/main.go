// Command tabstatd serves the statistics engine over HTTP and websockets.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"tabstat/internal/app"
	"tabstat/pkg/contracts"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tabstatd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "path to a YAML config file (default tabstat.yaml or configs/tabstat.yaml)")
	version := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return 0
	}

	application, err := app.NewApplication(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "tabstatd: %v\n", err)
		return 1
	}

	if err := application.Run(ctx); err != nil {
		application.Logger.Error("Application error", slog.String("error", err.Error()))
		return 1
	}
	return 0
}
