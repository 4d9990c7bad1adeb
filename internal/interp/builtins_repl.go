package interp

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

func init() {
	registerProp("repl", "vars", replVars)
	registerFunc("repl", "exec", replExec)
}

// replVars prints every visible binding as a table.
func replVars(ip *Interp) (Value, error) {
	t := table.NewWriter()
	t.SetOutputMirror(ip.Out)
	t.AppendHeader(table.Row{"Name", "Value"})
	for _, name := range ip.env.Names() {
		v, _ := ip.env.Get(name)
		display := v.String()
		if len(display) > 80 {
			display = display[:77] + "..."
		}
		t.AppendRow(table.Row{name, display})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	return Null{}, nil
}

// replExec runs a command, streaming its output, and returns the exit
// code. The command line is split on whitespace and the program is run
// directly, not through a shell.
func replExec(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	cmdline, err := argStr(args, 0, "command")
	if err != nil {
		return nil, err
	}
	parts := strings.Fields(cmdline)
	if len(parts) == 0 {
		return nil, UsageErrorf("empty command")
	}
	cmd := exec.CommandContext(ip.ctx, parts[0], parts[1:]...)
	cmd.Stdout = ip.Out
	cmd.Stderr = ip.Out
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return NewUint(bigFromInt(exitErr.ExitCode()), 256)
		}
		return nil, IOError(fmt.Sprintf("running %q", cmdline), err)
	}
	return NewUint(bigFromInt(0), 256)
}
