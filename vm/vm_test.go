package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skx/pyvm/compiler"
	"github.com/skx/pyvm/instructions"
)

func compile(t *testing.T, src string) *compiler.Program {
	t.Helper()
	c := compiler.New(src)
	prog, err := c.Compile()
	require.NoError(t, err, "compile error for %q", src)
	return prog
}

func run(t *testing.T, src string) (string, *Interpreter) {
	t.Helper()
	prog := compile(t, src)

	machine := New(false)
	var out bytes.Buffer
	machine.SetOutput(&out)
	machine.Load(prog.Constants, prog.Symbols, prog.Instructions)

	require.NoError(t, machine.Run(), "runtime error for %q", src)
	return out.String(), machine
}

// TestArithmeticWidening: int+int stays int, mixed int/float widens.
func TestArithmeticWidening(t *testing.T) {
	out, _ := run(t, "print(1 + 2)\nprint(1 + 2.5)\n")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Equal(t, "3", lines[0])
	assert.Equal(t, "3.5", lines[1])
}

// TestDivisionAlwaysFloat: `/` always produces a float, even for two ints.
func TestDivisionAlwaysFloat(t *testing.T) {
	out, _ := run(t, "print(7 / 2)\n")
	assert.Equal(t, "3.5", strings.TrimSpace(out))
}

// TestStringConcatenation: `+` over two strings concatenates.
func TestStringConcatenation(t *testing.T) {
	out, _ := run(t, `print("a" + "b")`+"\n")
	assert.Equal(t, "ab", strings.TrimSpace(out))
}

// TestIfElse: both branches of a conditional are reachable.
func TestIfElse(t *testing.T) {
	out, _ := run(t, "x = 1\nif x > 0:\n    print(1)\nelse:\n    print(0)\n")
	assert.Equal(t, "1", strings.TrimSpace(out))

	out, _ = run(t, "x = -1\nif x > 0:\n    print(1)\nelse:\n    print(0)\n")
	assert.Equal(t, "0", strings.TrimSpace(out))
}

// TestWhileLoop: a counting loop runs the expected number of times.
func TestWhileLoop(t *testing.T) {
	out, _ := run(t, "i = 0\nwhile i < 3:\n    print(i)\n    i = i + 1\n")
	assert.Equal(t, "0\n1\n2", strings.TrimRight(out, "\n"))
}

// TestAndOrAreFusedAtRuntime: since `and`/`or` lower to MUL/ADD, their
// runtime result is arithmetic, not boolean short-circuiting.
func TestAndOrAreFusedAtRuntime(t *testing.T) {
	out, _ := run(t, "print(2 and 3)\n")
	assert.Equal(t, "6", strings.TrimSpace(out))

	out, _ = run(t, "print(2 or 3)\n")
	assert.Equal(t, "5", strings.TrimSpace(out))
}

// TestNotOnTruthyValues: `not` compares against the literal False.
func TestNotOnTruthyValues(t *testing.T) {
	out, _ := run(t, "print(not False)\nprint(not True)\n")
	assert.Equal(t, "True\nFalse", strings.TrimRight(out, "\n"))
}

// TestInput: INPUT reads a line and tries int, then float, then string.
func TestInput(t *testing.T) {
	prog := compile(t, "x = input()\nprint(x)\n")
	machine := New(false)
	machine.SetInput(strings.NewReader("42\n"))
	var out bytes.Buffer
	machine.SetOutput(&out)
	machine.Load(prog.Constants, prog.Symbols, prog.Instructions)
	require.NoError(t, machine.Run())
	assert.Equal(t, "42", strings.TrimSpace(out.String()))
}

// TestUndefinedVariable: reading a slot never stored is a runtime error.
func TestUndefinedVariable(t *testing.T) {
	machine := New(false)
	var out bytes.Buffer
	machine.SetOutput(&out)
	machine.Load(nil, nil, []instructions.Instruction{
		{Op: instructions.LOAD_VAR, Operand: 0},
		{Op: instructions.HALT},
	})
	assert.Error(t, machine.Run())
}

// TestStackUnderflow: popping an empty stack is a fatal error, not a panic.
func TestStackUnderflow(t *testing.T) {
	machine := New(false)
	var out bytes.Buffer
	machine.SetOutput(&out)
	machine.Load(nil, nil, []instructions.Instruction{
		{Op: instructions.POP},
		{Op: instructions.HALT},
	})
	assert.Error(t, machine.Run())
}

// TestIntegerDivisionByZero: dividing two ints by a zero divisor fails cleanly.
func TestIntegerDivisionByZero(t *testing.T) {
	machine := New(false)
	var out bytes.Buffer
	machine.SetOutput(&out)
	machine.Load(
		[]instructions.Constant{
			{Type: instructions.TypeInt, IntValue: 1},
			{Type: instructions.TypeInt, IntValue: 0},
		},
		nil,
		[]instructions.Instruction{
			{Op: instructions.LOAD_CONST, Operand: 0},
			{Op: instructions.LOAD_CONST, Operand: 1},
			{Op: instructions.DIV, Operand: 0},
			{Op: instructions.HALT},
		},
	)
	assert.Error(t, machine.Run())
}

// TestStatusAndPerformanceReport: both accessors run without panicking
// and reflect the program that ran.
func TestStatusAndPerformanceReport(t *testing.T) {
	_, machine := run(t, "x = 1 + 2\n")

	status := machine.GetStatus()
	assert.False(t, status.Running)
	assert.NotZero(t, status.InstructionCount)

	report := machine.PerformanceReport()
	assert.Contains(t, report, "instructions executed")

	machine.ResetStats()
	status = machine.GetStatus()
	assert.Zero(t, status.InstructionCount)
}

// TestStep: single-instruction execution advances the program counter
// one instruction at a time, reporting when the program has finished.
func TestStep(t *testing.T) {
	prog := compile(t, "x = 1\nx = x + 1\nprint(x)\n")

	var out bytes.Buffer
	machine := New(false)
	machine.SetOutput(&out)
	machine.Load(prog.Constants, prog.Symbols, prog.Instructions)

	steps := 0
	for {
		running, err := machine.Step()
		require.NoError(t, err)
		steps++
		if !running {
			break
		}
	}

	assert.Equal(t, len(prog.Instructions), steps)
	assert.Equal(t, "2", strings.TrimSpace(out.String()))
}
