// Package repl is the interactive immediate mode: an OK prompt, a numbered
// program buffer, and the classic command set over it. Statements typed with
// a leading line number are stored; everything else runs right away.
package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/James-HoneyBadger/timewarp/internal/canvas"
	"github.com/James-HoneyBadger/timewarp/internal/config"
	"github.com/James-HoneyBadger/timewarp/internal/engine"
	"github.com/James-HoneyBadger/timewarp/internal/library"
	"github.com/James-HoneyBadger/timewarp/internal/timewarp"
	"github.com/James-HoneyBadger/timewarp/internal/turtle"
)

const prompt = "OK> "

// Options configure an interactive session.
type Options struct {
	Store   *library.Store // nil disables SAVE, LOAD, DIR, and KILL
	History string         // liner history file; empty disables history
	SVGPath string         // when set, each RUN that draws writes its canvas here
	Canvas  config.Canvas
}

// Repl holds the program buffer and dispatches one input line at a time.
// The terminal loop lives in Run; everything else writes to out and asks
// for program input through ask, which keeps it testable.
type Repl struct {
	out    io.Writer
	ask    func(prompt string) (string, error)
	opts   Options
	buffer map[int]string
}

func New(out io.Writer, ask func(string) (string, error), opts Options) *Repl {
	return &Repl{out: out, ask: ask, opts: opts, buffer: make(map[int]string)}
}

// Run owns the terminal until the user leaves. History is best-effort.
func Run(opts Options) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if opts.History != "" {
		if f, err := os.Open(opts.History); err == nil {
			ln.ReadHistory(f)
			f.Close()
		}
	}

	r := New(os.Stdout, ln.Prompt, opts)
	fmt.Println("TIME WARP READY. TYPE HELP FOR COMMANDS.")
	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			fmt.Println("^C")
			continue
		}
		if err != nil {
			fmt.Println()
			break
		}
		if strings.TrimSpace(line) != "" {
			ln.AppendHistory(line)
		}
		if r.Execute(line) {
			break
		}
	}

	if opts.History != "" {
		if f, err := os.Create(opts.History); err == nil {
			ln.WriteHistory(f)
			f.Close()
		}
	}
	return nil
}

// Execute handles one input line and reports whether the session is over.
func (r *Repl) Execute(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if n, rest, ok := numberedLine(trimmed); ok {
		if rest == "" {
			delete(r.buffer, n)
		} else {
			r.buffer[n] = rest
		}
		return false
	}

	cmd, arg := splitCommand(trimmed)
	switch cmd {
	case "BYE", "EXIT", "QUIT":
		return true
	case "RUN":
		r.run(r.Source())
	case "LIST":
		fmt.Fprint(r.out, r.Source())
	case "NEW":
		r.buffer = make(map[int]string)
	case "HELP":
		fmt.Fprint(r.out, helpText)
	case "SAVE":
		r.save(arg)
	case "LOAD":
		r.load(arg)
	case "DIR":
		r.dir()
	case "KILL":
		r.kill(arg)
	default:
		r.run(trimmed)
	}
	return false
}

// Source renders the buffer back to numbered source, lowest line first.
func (r *Repl) Source() string {
	nums := make([]int, 0, len(r.buffer))
	for n := range r.buffer {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	var sb strings.Builder
	for _, n := range nums {
		fmt.Fprintf(&sb, "%d %s\n", n, r.buffer[n])
	}
	return sb.String()
}

func (r *Repl) run(source string) {
	if strings.TrimSpace(source) == "" {
		return
	}
	prog, err := timewarp.Load(engine.KindBasic, source)
	if err != nil {
		fmt.Fprintf(r.out, "?%s\n", err)
		return
	}
	prims := r.drive(prog.Start())
	r.summarize(prims)
}

// drive pumps a session to its terminal event, echoing output and serving
// input requests through ask. Draw primitives are collected for the canvas.
func (r *Repl) drive(sess *engine.Session) []turtle.Primitive {
	var prims []turtle.Primitive
	ev, err := sess.Step()
	for {
		if err != nil {
			fmt.Fprintf(r.out, "?%s\n", err)
			return prims
		}
		switch e := ev.(type) {
		case engine.Output:
			fmt.Fprint(r.out, e.Text)
		case engine.Draw:
			prims = append(prims, e.Prim)
		case engine.InputRequest:
			answer, aerr := r.ask(e.Prompt)
			if aerr != nil {
				sess.Abort()
				fmt.Fprintln(r.out, "?BREAK")
				return prims
			}
			ev, err = sess.Resume(answer)
			continue
		case engine.Completed:
			return prims
		case engine.Failed:
			fmt.Fprintf(r.out, "?%s\n", e.Err)
			return prims
		}
		ev, err = sess.Step()
	}
}

func (r *Repl) summarize(prims []turtle.Primitive) {
	if len(prims) == 0 {
		return
	}
	fmt.Fprintf(r.out, "[%d draw primitives]\n", len(prims))
	if r.opts.SVGPath == "" {
		return
	}
	doc := canvas.SVG(prims, r.opts.Canvas.Width, r.opts.Canvas.Height, r.opts.Canvas.Background)
	if err := os.WriteFile(r.opts.SVGPath, []byte(doc), 0o644); err != nil {
		fmt.Fprintf(r.out, "?CANNOT WRITE SVG: %s\n", err)
		return
	}
	fmt.Fprintf(r.out, "[canvas written to %s]\n", r.opts.SVGPath)
}

func (r *Repl) save(arg string) {
	name, ok := r.libName(arg)
	if !ok {
		return
	}
	if err := r.opts.Store.Save(name, engine.KindBasic, r.Source()); err != nil {
		fmt.Fprintf(r.out, "?%s\n", err)
		return
	}
	fmt.Fprintf(r.out, "SAVED %q\n", name)
}

func (r *Repl) load(arg string) {
	name, ok := r.libName(arg)
	if !ok {
		return
	}
	entry, err := r.opts.Store.Load(name)
	if err != nil {
		fmt.Fprintf(r.out, "?%s\n", err)
		return
	}
	if entry.Language != engine.KindBasic {
		fmt.Fprintf(r.out, "?%q IS A %s PROGRAM; RUN IT FROM A FILE\n",
			name, strings.ToUpper(string(entry.Language)))
		return
	}
	r.buffer = parseBuffer(entry.Source)
	fmt.Fprintf(r.out, "LOADED %q\n", name)
}

func (r *Repl) dir() {
	if r.opts.Store == nil {
		fmt.Fprintln(r.out, "?NO PROGRAM LIBRARY CONFIGURED")
		return
	}
	entries, err := r.opts.Store.Dir()
	if err != nil {
		fmt.Fprintf(r.out, "?%s\n", err)
		return
	}
	if len(entries) == 0 {
		fmt.Fprintln(r.out, "LIBRARY IS EMPTY")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(r.out, "%-20s %-8s %s\n", e.Name, e.Language, e.Updated.Format("2006-01-02 15:04"))
	}
}

func (r *Repl) kill(arg string) {
	name, ok := r.libName(arg)
	if !ok {
		return
	}
	if err := r.opts.Store.Kill(name); err != nil {
		fmt.Fprintf(r.out, "?%s\n", err)
		return
	}
	fmt.Fprintf(r.out, "KILLED %q\n", name)
}

func (r *Repl) libName(arg string) (string, bool) {
	if r.opts.Store == nil {
		fmt.Fprintln(r.out, "?NO PROGRAM LIBRARY CONFIGURED")
		return "", false
	}
	name := strings.Trim(strings.TrimSpace(arg), `"`)
	if name == "" {
		fmt.Fprintln(r.out, `?EXPECTED A PROGRAM NAME, AS IN: SAVE "SQUARE"`)
		return "", false
	}
	return name, true
}

// parseBuffer reads stored source back into the numbered buffer. Lines
// without numbers are adopted and numbered on, so hand-written files load
// too.
func parseBuffer(source string) map[int]string {
	buf := make(map[int]string)
	next := 10
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if n, rest, ok := numberedLine(line); ok && rest != "" {
			buf[n] = rest
			if n >= next {
				next = n + 10
			}
			continue
		}
		buf[next] = line
		next += 10
	}
	return buf
}

func numberedLine(s string) (int, string, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, "", false
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, "", false
	}
	return n, strings.TrimSpace(s[i:]), true
}

func splitCommand(s string) (string, string) {
	cmd, arg, _ := strings.Cut(s, " ")
	return strings.ToUpper(cmd), strings.TrimSpace(arg)
}

const helpText = `TW BASIC immediate mode. Statements with a leading line number are
stored; a bare line number deletes that line; anything else runs now.

  RUN            run the stored program
  LIST           print the stored program
  NEW            erase the stored program
  SAVE "NAME"    store the program in the library
  LOAD "NAME"    fetch a program from the library
  DIR            list the library
  KILL "NAME"    remove a program from the library
  HELP           this text
  BYE            leave
`
