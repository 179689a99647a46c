// Command pyvm is the driver for the toolchain: it compiles source
// files, runs them directly, compiles them to a `.pvm` container, runs
// a previously-compiled container, inspects one, or drops into an
// interactive REPL.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/skx/pyvm/compiler"
	"github.com/skx/pyvm/container"
	"github.com/skx/pyvm/instructions"
	"github.com/skx/pyvm/repl"
	"github.com/skx/pyvm/vm"
)

// version is the toolchain's version string, reported by the REPL
// banner and available for future `--version` wiring.
const version = "0.1.0"

var (
	debugFlag       bool
	showBytecode    bool
	performanceFlag bool
	interactiveFlag bool
	compileFlag     bool
	outputFlag      string
	infoFlag        bool
)

func main() {
	root := &cobra.Command{
		Use:           "pyvm [file]",
		Short:         "Compile and run a small Python-like language",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	root.Flags().BoolVarP(&debugFlag, "debug", "d", false, "print tokens and AST after compilation, and trace each instruction as it runs")
	root.Flags().BoolVarP(&showBytecode, "show-bytecode", "s", false, "disassemble the program instead of running it")
	root.Flags().BoolVarP(&performanceFlag, "performance", "p", false, "print a performance report after running")
	root.Flags().BoolVarP(&interactiveFlag, "interactive", "i", false, "start the interactive REPL")
	root.Flags().BoolVarP(&compileFlag, "compile", "c", false, "compile the source to a .pvm container instead of running it")
	root.Flags().StringVarP(&outputFlag, "output", "o", "", "output path for --compile (defaults to the input path with .pvm)")
	root.Flags().BoolVar(&infoFlag, "info", false, "print a .pvm container's header and exit, rather than running it")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %s", err))
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if interactiveFlag {
		r := repl.New("pyvm", version, ">>> ")
		return r.Start(os.Stdout)
	}

	if len(args) != 1 {
		return fmt.Errorf("expected a source file or .pvm container, or --interactive")
	}
	path := args[0]

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file not found: %s", path)
	}

	if strings.ToLower(filepath.Ext(path)) == ".pvm" {
		return runContainer(path)
	}
	return runSource(path)
}

// runContainer handles every mode that takes an already-compiled
// `.pvm` file as input: --info, --show-bytecode, or plain execution.
func runContainer(path string) error {
	if infoFlag {
		info, err := container.Info(path)
		if err != nil {
			return err
		}
		printContainerInfo(os.Stdout, info)
		return nil
	}

	prog, err := container.Load(path)
	if err != nil {
		return err
	}

	if showBytecode {
		showDisassembly(os.Stdout, prog.Constants, prog.Symbols, prog.Instructions)
		return nil
	}

	return execute(prog.Constants, prog.Symbols, prog.Instructions)
}

// runSource handles every mode that takes a source file as input:
// --compile, --show-bytecode, or plain compile-and-run.
func runSource(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := compiler.New(string(src))
	c.SetDebug(debugFlag)

	prog, err := c.Compile()
	if err != nil {
		return err
	}

	if debugFlag {
		printDebugTrace(os.Stdout, c)
	}

	if compileFlag {
		out := outputFlag
		if out == "" {
			out = strings.TrimSuffix(path, filepath.Ext(path)) + ".pvm"
		}
		if err := container.Save(out, &container.Program{
			Constants:    prog.Constants,
			Symbols:      prog.Symbols,
			Instructions: prog.Instructions,
		}); err != nil {
			return err
		}
		fmt.Printf("compiled: %s -> %s\n", path, out)
		return nil
	}

	if showBytecode {
		showDisassembly(os.Stdout, prog.Constants, prog.Symbols, prog.Instructions)
		return nil
	}

	return execute(prog.Constants, prog.Symbols, prog.Instructions)
}

// execute loads a program into a fresh interpreter and runs it,
// printing a performance report afterwards when requested.
func execute(constants []instructions.Constant, symbols []instructions.Symbol, program []instructions.Instruction) error {
	machine := vm.New(debugFlag)
	machine.SetInput(os.Stdin)
	machine.SetOutput(os.Stdout)
	machine.Load(constants, symbols, program)

	err := machine.Run()
	if performanceFlag {
		fmt.Println()
		fmt.Println(machine.PerformanceReport())
	}
	return err
}

func showDisassembly(w io.Writer, constants []instructions.Constant, symbols []instructions.Symbol, program []instructions.Instruction) {
	fmt.Fprintln(w, "=== constants ===")
	for i, c := range constants {
		fmt.Fprintf(w, "  [%2d] %s\n", i, c)
	}

	fmt.Fprintln(w, "=== symbols ===")
	for i, s := range symbols {
		fmt.Fprintf(w, "  [%2d] %s\n", i, s)
	}

	fmt.Fprintln(w, "=== instructions ===")
	fmt.Fprintln(w, instructions.Disassemble(program))
}

func printDebugTrace(w io.Writer, c *compiler.Compiler) {
	fmt.Fprintln(w, "=== tokens ===")
	for _, tok := range c.Tokens() {
		fmt.Fprintf(w, "  %s\n", tok)
	}
	fmt.Fprintln(w, "=== ast ===")
	fmt.Fprintf(w, "  %v\n", c.Tree())
}

func printContainerInfo(w io.Writer, info *container.FileInfo) {
	fmt.Fprintln(w, "=== container info ===")
	fmt.Fprintf(w, "path:          %s\n", info.Path)
	fmt.Fprintf(w, "file size:     %d bytes\n", info.FileSize)
	fmt.Fprintf(w, "version:       0x%04x\n", info.Version)
	fmt.Fprintf(w, "constants:     %d\n", info.ConstCount)
	fmt.Fprintf(w, "symbols:       %d\n", info.SymbolCount)
	fmt.Fprintf(w, "code size:     %d bytes\n", info.CodeSize)
	fmt.Fprintf(w, "header size:   %d bytes\n", info.HeaderSize)

	if info.FileSize > 0 {
		headerPct := float64(info.HeaderSize) / float64(info.FileSize) * 100
		codePct := float64(info.CodeSize) / float64(info.FileSize) * 100
		fmt.Fprintln(w, "=== size breakdown ===")
		fmt.Fprintf(w, "header:        %.1f%%\n", headerPct)
		fmt.Fprintf(w, "code:          %.1f%%\n", codePct)
		fmt.Fprintf(w, "other:         %.1f%%\n", 100-headerPct-codePct)
	}
}
