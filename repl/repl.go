// Package repl implements the interactive Read-Eval-Print Loop for
// the toolchain: one logical statement (or indented block) is read,
// compiled and run on each iteration, with variables carried forward
// by name between iterations.
package repl

import (
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/skx/pyvm/compiler"
	"github.com/skx/pyvm/vm"
)

// Color definitions for REPL output: blue for chrome, yellow for the
// version line, red for errors, green for the banner, cyan for hints.
var (
	blueColor   = color.New(color.FgBlue)
	yellowColor = color.New(color.FgYellow)
	redColor    = color.New(color.FgRed)
	greenColor  = color.New(color.FgGreen)
	cyanColor   = color.New(color.FgCyan)
)

// Repl represents a single interactive session.
type Repl struct {
	Banner  string
	Version string
	Prompt  string

	// values holds the interpreter's variables across separate
	// compilations, keyed by name rather than slot index, since
	// each iteration's compiler assigns slots independently.
	values map[string]vm.Value
}

// New returns a Repl ready to Start.
func New(banner, version, prompt string) *Repl {
	return &Repl{Banner: banner, Version: version, Prompt: prompt, values: make(map[string]vm.Value)}
}

// PrintBanner writes the startup banner and usage hints to writer.
func (r *Repl) PrintBanner(writer io.Writer) {
	line := strings.Repeat("-", 40)

	blueColor.Fprintf(writer, "%s\n", line)
	greenColor.Fprintf(writer, "%s\n", r.Banner)
	blueColor.Fprintf(writer, "%s\n", line)
	yellowColor.Fprintln(writer, "version "+r.Version)
	cyanColor.Fprintln(writer, "enter a statement and press enter; blank line ends a block")
	cyanColor.Fprintln(writer, "type '.exit' to quit")
	blueColor.Fprintf(writer, "%s\n", line)
}

// Start runs the main loop until the user exits or EOF is reached.
func (r *Repl) Start(writer io.Writer) error {
	r.PrintBanner(writer)

	rl, err := readline.New(r.Prompt)
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		block, err := r.readBlock(rl)
		if err != nil {
			writer.Write([]byte("Goodbye!\n"))
			return nil
		}

		if block == "" {
			continue
		}
		if strings.TrimSpace(block) == ".exit" {
			writer.Write([]byte("Goodbye!\n"))
			return nil
		}

		r.evaluate(writer, block)
	}
}

// readBlock reads a single statement, or - when the first line ends
// in `:` - that line plus every line that follows it, up to the next
// blank line.
func (r *Repl) readBlock(rl *readline.Instance) (string, error) {
	first, err := rl.Readline()
	if err != nil {
		return "", err
	}
	first = strings.TrimRight(first, " \t")
	rl.SaveHistory(first)

	if !strings.HasSuffix(strings.TrimSpace(first), ":") {
		return first, nil
	}

	var lines []string
	lines = append(lines, first)
	for {
		line, err := rl.Readline()
		if err != nil || strings.TrimSpace(line) == "" {
			break
		}
		lines = append(lines, line)
		rl.SaveHistory(line)
	}
	return strings.Join(lines, "\n") + "\n", nil
}

// evaluate compiles and runs one block, restoring any variables
// carried over from earlier blocks first, and recording their final
// values afterwards.
func (r *Repl) evaluate(writer io.Writer, source string) {
	if !strings.HasSuffix(source, "\n") {
		source += "\n"
	}

	c := compiler.New(source)
	prog, err := c.Compile()
	if err != nil {
		redColor.Fprintf(writer, "%s\n", err)
		return
	}

	machine := vm.New(false)
	machine.SetOutput(writer)
	machine.Load(prog.Constants, prog.Symbols, prog.Instructions)

	for _, sym := range prog.Symbols {
		if v, ok := r.values[sym.Name]; ok {
			machine.SetVariable(int(sym.Index), v)
		}
	}

	if err := machine.Run(); err != nil {
		redColor.Fprintf(writer, "%s\n", err)
		return
	}

	final := machine.Variables()
	for _, sym := range prog.Symbols {
		if v, ok := final[int(sym.Index)]; ok {
			r.values[sym.Name] = v
		}
	}
}
