// Package repl drives the interactive loop: line editing, multi-line
// continuation, interrupt handling and error display.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/eclair-lang/eclair-cli/internal/interp"
	"github.com/eclair-lang/eclair-cli/internal/lang"
	"github.com/eclair-lang/eclair-cli/internal/logging"
)

var (
	errColor  = color.New(color.FgRed)
	resColor  = color.New(color.FgCyan)
	hintColor = color.New(color.Faint)
)

// REPL wraps the interpreter with a readline loop.
type REPL struct {
	ip  *interp.Interp
	log *slog.Logger
}

func New(ip *interp.Interp, log *slog.Logger) *REPL {
	return &REPL{ip: ip, log: log}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".eclair_history")
}

// Run reads and evaluates lines until EOF. Ctrl-C at the prompt clears
// the line; Ctrl-C during evaluation cancels the running expression and
// keeps the environment intact.
func (r *REPL) Run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">> ",
		HistoryFile:     historyPath(),
		AutoComplete:    newCompleter(r.ip),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initializing line editor: %w", err)
	}
	defer rl.Close()

	var buffer string
	for {
		if buffer == "" {
			rl.SetPrompt(">> ")
		} else {
			rl.SetPrompt(".. ")
		}
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buffer = ""
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		input := line
		if buffer != "" {
			input = buffer + "\n" + line
		}
		if strings.TrimSpace(input) == "" {
			continue
		}

		if buffer == "" && strings.HasPrefix(strings.TrimSpace(input), "!") {
			r.runDirective(strings.TrimSpace(input))
			continue
		}

		stmt, err := lang.ParseLine(input)
		if err != nil {
			var parseErr *lang.ParseError
			if errors.As(err, &parseErr) && parseErr.Incomplete {
				buffer = input
				continue
			}
			buffer = ""
			errColor.Fprintln(os.Stderr, err.Error())
			continue
		}
		buffer = ""
		if stmt == nil {
			continue
		}
		r.evaluate(stmt)
	}
}

// evaluate runs one statement with an interrupt-cancellable context.
func (r *REPL) evaluate(stmt lang.Stmt) {
	ctx, cancel := context.WithCancel(context.Background())
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-interrupts:
			cancel()
		case <-done:
		}
	}()
	defer func() {
		close(done)
		signal.Stop(interrupts)
		cancel()
	}()

	r.ip.SetContext(ctx)
	value, err := r.ip.EvalStmt(stmt)
	if err != nil {
		errColor.Fprintln(os.Stderr, err.Error())
		return
	}
	if value.Kind() != interp.KindNull {
		resColor.Fprintln(r.ip.Out, value.String())
	}
}

// runDirective handles the !-prefixed REPL escapes.
func (r *REPL) runDirective(line string) {
	parts := strings.Fields(line)
	switch parts[0] {
	case "!env":
		for _, name := range r.ip.Env().Names() {
			v, _ := r.ip.Env().Get(name)
			fmt.Fprintf(r.ip.Out, "%s: %s\n", name, v.String())
		}
	case "!rpc":
		if len(parts) != 2 {
			errColor.Fprintln(os.Stderr, "usage: !rpc <url>")
			return
		}
		if err := r.ip.Session().SetRPC(context.Background(), parts[1]); err != nil {
			errColor.Fprintln(os.Stderr, err.Error())
		}
	case "!debug":
		if logging.Level.Level() == slog.LevelDebug {
			logging.Level.Set(slog.LevelWarn)
			hintColor.Fprintln(r.ip.Out, "debug logging off")
		} else {
			logging.Level.Set(slog.LevelDebug)
			hintColor.Fprintln(r.ip.Out, "debug logging on")
		}
	default:
		errColor.Fprintf(os.Stderr, "unknown directive %s\n", parts[0])
	}
}
