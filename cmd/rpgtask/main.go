// Package main is the entry point for rpgtask.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dshills/rpgtask/internal/app"
	"github.com/dshills/rpgtask/internal/config"
	"github.com/dshills/rpgtask/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts, exit, code := parseFlags(os.Args[1:])
	if exit {
		return code
	}

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	// Ensure cleanup on all exit paths
	defer application.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := application.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}

// parseFlags parses args into application options. When exit is true the
// process should stop with code.
func parseFlags(args []string) (opts app.Options, exit bool, code int) {
	fs := flag.NewFlagSet("rpgtask", flag.ContinueOnError)

	var showVersion bool
	var showHelp bool

	fs.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (.toml, .yaml)")
	fs.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.ScriptsDir, "scripts", "", "Directory of Lua signal handlers")
	fs.BoolVar(&opts.Watch, "watch", false, "Reload the configuration file when it changes")
	fs.StringVar(&opts.Name, "name", "Ivan", "Name introduced by the relay demo")
	fs.IntVar(&opts.Age, "age", 23, "Age introduced by the relay demo")
	fs.BoolVar(&showVersion, "version", false, "Show version information")
	fs.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	fs.BoolVar(&showHelp, "help", false, "Show help message")
	fs.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "rpgtask - signal dispatch demo\n\n")
		fmt.Fprintf(out, "Usage: rpgtask [options]\n\n")
		fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nEnvironment:\n  %s\n", strings.Join(config.EnvVars(), "\n  "))
		fmt.Fprintf(out, "\nExamples:\n")
		fmt.Fprintf(out, "  rpgtask                          Run the relay demo\n")
		fmt.Fprintf(out, "  rpgtask -scripts ./scripts       Also run Lua handlers\n")
		fmt.Fprintf(out, "  rpgtask -c rpgtask.toml -watch   Keep running and reload on change\n")
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return opts, true, 0
		}
		return opts, true, 2
	}

	if showHelp {
		fs.Usage()
		return opts, true, 0
	}

	if showVersion {
		fmt.Printf("rpgtask %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		return opts, true, 0
	}

	if opts.LogLevel != "" && !logging.ValidLevel(opts.LogLevel) {
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		return opts, true, 1
	}

	// Watching only makes sense while the process stays up.
	opts.Wait = opts.Watch
	return opts, false, 0
}
