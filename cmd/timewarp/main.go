package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/docopt/docopt-go"
	"github.com/mattn/go-isatty"

	"github.com/James-HoneyBadger/timewarp/internal/canvas"
	"github.com/James-HoneyBadger/timewarp/internal/config"
	"github.com/James-HoneyBadger/timewarp/internal/diag"
	"github.com/James-HoneyBadger/timewarp/internal/engine"
	"github.com/James-HoneyBadger/timewarp/internal/library"
	"github.com/James-HoneyBadger/timewarp/internal/repl"
	"github.com/James-HoneyBadger/timewarp/internal/timewarp"
	"github.com/James-HoneyBadger/timewarp/internal/turtle"
)

const usage = `Time Warp runs TW BASIC, TW Pascal, and TW Prolog programs.

Usage:
  timewarp [options] [<file>]

Options:
  --config=<path>    read settings from this file [default: timewarp.toml]
  --lang=<name>      force the language: basic, pascal, or prolog
  --svg=<path>       write the final canvas to an SVG file
  --log-level=<lvl>  log level: debug, info, warn, or error
  --log-file=<path>  write logs here instead of stderr
  -h, --help         show this help
  --version          show version information

With no file, timewarp reads a program from a pipe, or starts the
interactive BASIC shell when standard input is a terminal.`

var (
	// Version is stamped at build time with -ldflags.
	Version   = "dev"
	BuildDate = "unknown"
	Commit    = "unknown"
)

func main() {
	opts, err := docopt.ParseDoc(usage)
	if err != nil {
		os.Exit(2)
	}
	if v, _ := opts.Bool("--version"); v {
		fmt.Printf("timewarp version 'v%s' %s %s\n", Version, BuildDate, Commit)
		return
	}

	cfgPath, _ := opts.String("--config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "timewarp: %v\n", err)
		os.Exit(1)
	}
	if s, _ := opts.String("--log-level"); s != "" {
		cfg.Log.Level = s
	}
	if s, _ := opts.String("--log-file"); s != "" {
		cfg.Log.File = s
	}

	loggerOptions := &slog.HandlerOptions{
		AddSource: false,
		Level:     logLevelFromString(cfg.Log.Level),
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(configureLogWriter(cfg.Log.File), loggerOptions)))

	lang, _ := opts.String("--lang")
	svgPath, _ := opts.String("--svg")

	if file, _ := opts.String("<file>"); file != "" {
		os.Exit(runFile(file, lang, svgPath, cfg))
	}

	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		os.Exit(runPiped(lang, svgPath, cfg))
	}

	runRepl(svgPath, cfg)
}

func runFile(path, lang, svgPath string, cfg config.Configuration) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "timewarp: %v\n", err)
		return 1
	}
	kind, err := pickKind(lang, path, string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "timewarp: %v\n", err)
		return 2
	}
	prog, err := timewarp.Load(kind, string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		printSnippet(string(source), err)
		return 1
	}
	return drive(prog.Start(), svgPath, cfg.Canvas)
}

// runPiped executes a program arriving on standard input, so
// `echo 'PRINT 1' | timewarp` works without a file.
func runPiped(lang, svgPath string, cfg config.Configuration) int {
	source, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "timewarp: %v\n", err)
		return 1
	}
	kind, err := pickKind(lang, "", string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "timewarp: %v\n", err)
		return 2
	}
	prog, err := timewarp.Load(kind, string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "timewarp: %v\n", err)
		printSnippet(string(source), err)
		return 1
	}
	return drive(prog.Start(), svgPath, cfg.Canvas)
}

// printSnippet shows the offending source line under a parse error.
func printSnippet(source string, err error) {
	var derr *diag.Error
	if errors.As(err, &derr) {
		fmt.Fprint(os.Stderr, diag.Snippet(source, derr.Pos))
	}
}

func runRepl(svgPath string, cfg config.Configuration) {
	var store *library.Store
	if cfg.Library.Driver != "" && cfg.Library.DSN != "" {
		s, err := library.Open(cfg.Library.Driver, cfg.Library.DSN)
		if err != nil {
			slog.Warn("program library unavailable", "driver", cfg.Library.Driver, "error", err)
		} else {
			store = s
			defer s.Close()
		}
	}
	repl.Run(repl.Options{
		Store:   store,
		History: cfg.Repl.History,
		SVGPath: svgPath,
		Canvas:  cfg.Canvas,
	})
}

func pickKind(lang, path, source string) (engine.Kind, error) {
	switch strings.ToLower(lang) {
	case "":
		return timewarp.Detect(path, source), nil
	case "basic":
		return engine.KindBasic, nil
	case "pascal":
		return engine.KindPascal, nil
	case "prolog":
		return engine.KindProlog, nil
	}
	return "", fmt.Errorf("unknown language %q (want basic, pascal, or prolog)", lang)
}

// drive pumps the session to its terminal event. Program output goes to
// stdout, diagnostics to stderr, and input requests are served line by line
// from stdin.
func drive(sess *engine.Session, svgPath string, cv config.Canvas) int {
	in := bufio.NewReader(os.Stdin)
	var prims []turtle.Primitive
	ev, err := sess.Step()
	for {
		if err != nil {
			fmt.Fprintf(os.Stderr, "timewarp: %v\n", err)
			return 1
		}
		switch e := ev.(type) {
		case engine.Output:
			fmt.Print(e.Text)
		case engine.Draw:
			prims = append(prims, e.Prim)
		case engine.InputRequest:
			fmt.Print(e.Prompt)
			line, rerr := in.ReadString('\n')
			if rerr != nil && line == "" {
				sess.Abort()
				fmt.Fprintln(os.Stderr, "timewarp: input closed")
				return 1
			}
			ev, err = sess.Resume(strings.TrimRight(line, "\r\n"))
			continue
		case engine.Completed:
			writeSVG(prims, svgPath, cv)
			return 0
		case engine.Failed:
			fmt.Fprintln(os.Stderr, e.Err)
			writeSVG(prims, svgPath, cv)
			return 1
		}
		ev, err = sess.Step()
	}
}

func writeSVG(prims []turtle.Primitive, path string, cv config.Canvas) {
	if path == "" || len(prims) == 0 {
		return
	}
	doc := canvas.SVG(prims, cv.Width, cv.Height, cv.Background)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "timewarp: %v\n", err)
	}
}

func configureLogWriter(logFile string) *os.File {
	if logFile == "" {
		return os.Stderr
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory for '%s': %v; falling back to stderr\n", logFile, err)
		return os.Stderr
	}
	w, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file '%s': %v; falling back to stderr\n", logFile, err)
		return os.Stderr
	}
	return w
}

func logLevelFromString(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
