package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	lua "github.com/yuin/gopher-lua"

	"github.com/sambeau/tendril/config"
	terrors "github.com/sambeau/tendril/pkg/tendril/errors"
	"github.com/sambeau/tendril/pkg/tendril/repl"
	"github.com/sambeau/tendril/pkg/tendril/tendril"
	"github.com/sambeau/tendril/pkg/tendril/watch"
)

var log = commonlog.GetLogger("tendril")

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// jsonReport marks an error for reporting as a JSON object.
type jsonReport struct {
	err error
}

func (e jsonReport) Error() string { return e.err.Error() }
func (e jsonReport) Unwrap() error { return e.err }

// reportError prints script errors with their hints and traceback, or
// as one line of JSON when err is marked with jsonReport.
func reportError(w io.Writer, err error) {
	var se *terrors.ScriptError
	if errors.As(err, &se) {
		var jr jsonReport
		if errors.As(err, &jr) {
			if data, jerr := se.ToJSON(); jerr == nil {
				fmt.Fprintln(w, string(data))
				return
			}
		}
		fmt.Fprintln(w, se.PrettyString())
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

// run is the main entry point, designed for testability (Mat Ryer pattern)
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) (err error) {
	flags := flag.NewFlagSet("tendril", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() { printUsage(stderr) }

	var (
		configPath  = flags.String("config", "", "Path to config file")
		entry       = flags.String("entry", "", "Embedded resource to run")
		evalCode    = flags.String("e", "", "Evaluate code string")
		file        = flags.String("file", "", "Run a script from disk")
		check       = flags.Bool("check", false, "Check syntax without executing")
		list        = flags.Bool("list", false, "List embedded resources")
		interactive = flags.Bool("i", false, "Start the interactive REPL")
		watchMode   = flags.Bool("watch", false, "Re-run when watched files change")
		verbose     = flags.Bool("v", false, "Verbose host logging")
		jsonErrors  = flags.Bool("json-errors", false, "Report script errors as JSON")
		showVersion = flags.Bool("version", false, "Show version")
		showHelp    = flags.Bool("help", false, "Show help")
	)
	flags.StringVar(evalCode, "eval", "", "Evaluate code string")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if *jsonErrors {
		defer func() {
			if err != nil {
				err = jsonReport{err}
			}
		}()
	}

	if *showHelp {
		printUsage(stdout)
		return nil
	}

	if *showVersion {
		fmt.Fprintf(stdout, "tendril version %s\n", tendril.Version)
		return nil
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, configFile, err := config.LoadWithPath(*configPath, getenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Apply CLI overrides
	if *entry != "" {
		cfg.Entry = *entry
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	commonlog.Configure(cfg.Logging.Verbosity(), cfg.Logging.Path())
	if configFile != "" {
		log.Debugf("using config %s", configFile)
	}

	scriptArgs := flags.Args()
	newHost := func(scriptName string) *tendril.Host {
		return tendril.New(tendril.Options{
			Markdown:            ptr(cfg.Markdown.Options()),
			Logger:              tendril.WriterLogger(stdout),
			Args:                scriptArgs,
			ScriptName:          scriptName,
			CallStackSize:       cfg.Runtime.CallStackSize,
			RegistrySize:        cfg.Runtime.RegistrySize,
			IncludeGoStackTrace: cfg.Runtime.GoStackTrace,
		})
	}

	switch {
	case *list:
		h := newHost("")
		defer h.Close()
		for _, name := range h.Registry().Names() {
			fmt.Fprintln(stdout, name)
		}
		return nil

	case *check:
		return checkScripts(stdout, stderr, cfg.Entry, scriptArgs)

	case *evalCode != "":
		h := newHost("-e")
		defer h.Close()
		v, err := h.Eval("-e", *evalCode)
		if err != nil {
			return err
		}
		if v != lua.LNil {
			fmt.Fprintln(stdout, v.String())
		}
		return nil

	case *interactive:
		h := newHost("")
		defer h.Close()
		repl.Start(stdout, h, tendril.Version)
		return nil
	}

	runOnce := func() error {
		if *file != "" {
			h := newHost(*file)
			defer h.Close()
			log.Debugf("running %s", *file)
			_, err := h.RunFile(*file)
			return err
		}
		h := newHost(cfg.Entry)
		defer h.Close()
		log.Debugf("running resource %s", cfg.Entry)
		_, err := h.RunResource(cfg.Entry)
		return err
	}

	if !*watchMode {
		return runOnce()
	}
	report := func(err error) {
		if *jsonErrors {
			err = jsonReport{err}
		}
		reportError(stderr, err)
	}
	return watchAndRun(ctx, cfg, watchPaths(cfg, *file, scriptArgs), runOnce, report)
}

// watchAndRun runs once, then again after every change, until ctx is
// done. Run errors are reported and do not stop watching.
func watchAndRun(ctx context.Context, cfg *config.Config, paths []string, runOnce func() error, report func(error)) error {
	if len(paths) == 0 {
		return fmt.Errorf("--watch needs --file, watch.paths or a path argument")
	}

	if err := runOnce(); err != nil {
		report(err)
	}

	w, err := watch.New(paths, cfg.Watch.Debounce, func(path string) {
		if err := runOnce(); err != nil {
			report(err)
		}
	})
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Close()

	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	log.Infof("stopped watching after %d change(s)", w.ChangeSeq())
	return nil
}

// watchPaths collects the script file, configured paths and any
// arguments naming existing files or directories.
func watchPaths(cfg *config.Config, file string, args []string) []string {
	var paths []string
	if file != "" {
		paths = append(paths, file)
	}
	paths = append(paths, cfg.Watch.Paths...)
	for _, a := range args {
		if _, err := os.Stat(a); err == nil {
			paths = append(paths, a)
		}
	}
	return paths
}

// checkScripts compiles files, or the entry resource when none are given.
func checkScripts(stdout, stderr io.Writer, entry string, files []string) error {
	if len(files) == 0 {
		h := tendril.New(tendril.Options{Logger: tendril.NullLogger()})
		defer h.Close()
		if _, err := h.Registry().Compile(entry); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "ok %s\n", entry)
		return nil
	}

	failed := 0
	for _, f := range files {
		if err := tendril.CheckFile(f); err != nil {
			reportError(stderr, err)
			failed++
			continue
		}
		fmt.Fprintf(stdout, "ok %s\n", f)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed to compile", failed, len(files))
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `tendril - a Lua host for markdown and HTML tooling

Usage:
  tendril [options] [args...]

Options:
  --config PATH    Path to config file (default: auto-detect)
  --entry NAME     Embedded resource to run (default: main)
  -e, --eval CODE  Evaluate code and print the result
  --file PATH      Run a script from disk instead of the entry resource
  --check [FILES]  Check syntax without executing
  --list           List embedded resources
  -i               Start the interactive REPL
  --watch          Re-run when watched files change
  -v               Verbose host logging
  --json-errors    Report script errors as JSON
  --version        Show version
  --help           Show this help

Arguments after the options are passed to the script as tendril.args
and arg.

Config Resolution:
  1. --config flag
  2. TENDRIL_CONFIG environment variable
  3. ./tendril.yaml
  4. ~/.config/tendril/tendril.yaml

Examples:
  tendril build content site           Render content/*.md into site/
  tendril --watch build content site   Rebuild on every change
  tendril outline README.md            Print the heading outline
  tendril -e "tendril.markdown.convert('*hi*')"
  tendril --file tools/report.lua out.html

`)
}
