// Package vm implements the fetch-decode-dispatch interpreter: a
// stack machine that executes the instruction stream a compiler
// produces (or a container file restores), against an operand stack,
// a call-frame stack, and a sparse table of variable slots.
package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/skx/pyvm/instructions"
	"github.com/skx/pyvm/stack"
)

// maxStackDepth bounds both the operand stack and the call-frame stack.
const maxStackDepth = 1000

// Error is a virtual-machine runtime error: an unknown opcode, a
// stack fault, an undefined variable, or a type mismatch.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("vm error: %s", e.Message)
}

// frame is a single call-frame: where execution resumes once the
// callee returns.
type frame struct {
	returnAddress int
}

// Status is a snapshot of the interpreter's execution state, for
// callers that want to report on a running or finished program.
type Status struct {
	Running          bool
	PC               int
	InstructionCount int
	StackSize        int
	VariablesCount   int
	CallDepth        int
	ExecutionTime    time.Duration
}

// Interpreter holds all state needed to run a compiled program: the
// constant pool, the variable slots, the instruction stream, the two
// runtime stacks, and execution statistics.
type Interpreter struct {
	debug   bool
	pc      int
	running bool

	constants    []instructions.Constant
	variables    map[int]Value
	program      []instructions.Instruction

	operandStack *stack.Stack
	callStack    *stack.Stack

	instructionCount int
	startTime        time.Time
	executionTime    time.Duration
	instructionStats map[string]int

	in  *bufio.Reader
	out io.Writer
}

// New returns an interpreter ready to Load a program.
func New(debug bool) *Interpreter {
	return &Interpreter{
		debug:            debug,
		variables:        make(map[int]Value),
		operandStack:     stack.New(maxStackDepth),
		callStack:        stack.New(maxStackDepth),
		instructionStats: make(map[string]int),
		in:               bufio.NewReader(os.Stdin),
		out:              os.Stdout,
	}
}

// SetInput overrides the reader INPUT draws from; used by tests and
// by non-interactive invocations that pipe input in.
func (vm *Interpreter) SetInput(r io.Reader) {
	vm.in = bufio.NewReader(r)
}

// SetOutput overrides the writer PRINT writes to.
func (vm *Interpreter) SetOutput(w io.Writer) {
	vm.out = w
}

// Load installs a compiled program, resetting all execution state.
func (vm *Interpreter) Load(constants []instructions.Constant, symbols []instructions.Symbol, program []instructions.Instruction) {
	vm.constants = constants
	vm.program = program

	vm.pc = 0
	vm.running = true
	vm.variables = make(map[int]Value)
	vm.operandStack = stack.New(maxStackDepth)
	vm.callStack = stack.New(maxStackDepth)
	vm.instructionCount = 0
	vm.executionTime = 0
	vm.instructionStats = make(map[string]int)

	if vm.debug {
		fmt.Fprintf(vm.out, "program loaded: %d instructions\n", len(program))
	}
}

// Run executes the loaded program to completion: HALT, a top-level
// RETURN, or a fatal error.
func (vm *Interpreter) Run() error {
	vm.running = true
	vm.pc = 0
	vm.startTime = time.Now()

	if vm.debug {
		fmt.Fprintln(vm.out, "starting execution...")
	}

	var runErr error
	for vm.running && vm.pc < len(vm.program) {
		if err := vm.executeInstruction(); err != nil {
			vm.handleError(err)
			runErr = err
			break
		}
	}

	vm.executionTime = time.Since(vm.startTime)

	if vm.debug {
		fmt.Fprintln(vm.out, "execution finished")
		fmt.Fprintf(vm.out, "instructions executed: %d\n", vm.instructionCount)
		fmt.Fprintf(vm.out, "execution time: %s\n", vm.executionTime)
	}

	return runErr
}

// Step executes a single instruction and reports whether the
// interpreter is still running afterwards.
func (vm *Interpreter) Step() (bool, error) {
	if !vm.running || vm.pc >= len(vm.program) {
		return false, nil
	}

	if err := vm.executeInstruction(); err != nil {
		vm.handleError(err)
		return false, err
	}
	return vm.running, nil
}

func (vm *Interpreter) executeInstruction() error {
	if vm.pc >= len(vm.program) {
		vm.running = false
		return nil
	}

	inst := vm.program[vm.pc]

	if vm.debug {
		fmt.Fprintf(vm.out, "PC=%3d | %s | stack=%v\n", vm.pc, inst, vm.operandStack.Items())
	}

	if err := vm.dispatch(inst); err != nil {
		return err
	}

	vm.instructionCount++
	vm.pc++
	return nil
}

func (vm *Interpreter) dispatch(inst instructions.Instruction) error {
	vm.instructionStats[instructions.Mnemonic(inst.Op)]++

	switch inst.Op {
	case instructions.NOP:
		return nil
	case instructions.LOAD_CONST:
		return vm.loadConst(int(inst.Operand))
	case instructions.LOAD_VAR:
		return vm.loadVar(int(inst.Operand))
	case instructions.STORE_VAR:
		return vm.storeVar(int(inst.Operand))
	case instructions.POP:
		_, err := vm.pop()
		return err
	case instructions.DUP:
		return vm.dup()

	case instructions.ADD:
		return vm.binaryOp(Add)
	case instructions.SUB:
		return vm.binaryOp(Sub)
	case instructions.MUL:
		return vm.binaryOp(Mul)
	case instructions.DIV:
		return vm.binaryOp(Div)
	case instructions.MOD:
		return vm.binaryOp(Mod)
	case instructions.NEG:
		return vm.unaryOp(Neg)

	case instructions.CMP_EQ:
		return vm.compareOp(func(a, b Value) (bool, error) { return Equal(a, b), nil })
	case instructions.CMP_NE:
		return vm.compareOp(func(a, b Value) (bool, error) { return !Equal(a, b), nil })
	case instructions.CMP_LT:
		return vm.compareOp(func(a, b Value) (bool, error) { c, err := Compare(a, b); return c < 0, err })
	case instructions.CMP_LE:
		return vm.compareOp(func(a, b Value) (bool, error) { c, err := Compare(a, b); return c <= 0, err })
	case instructions.CMP_GT:
		return vm.compareOp(func(a, b Value) (bool, error) { c, err := Compare(a, b); return c > 0, err })
	case instructions.CMP_GE:
		return vm.compareOp(func(a, b Value) (bool, error) { c, err := Compare(a, b); return c >= 0, err })

	case instructions.JUMP:
		vm.jump(int(inst.Operand))
		return nil
	case instructions.JUMP_IF_FALSE:
		return vm.jumpIfFalse(int(inst.Operand))
	case instructions.JUMP_IF_TRUE:
		return vm.jumpIfTrue(int(inst.Operand))
	case instructions.CALL:
		return vm.call(int(inst.Operand))
	case instructions.RETURN:
		return vm.ret()

	case instructions.PRINT:
		return vm.print()
	case instructions.INPUT:
		return vm.input()

	case instructions.HALT:
		vm.running = false
		return nil

	default:
		return &Error{Message: fmt.Sprintf("unknown opcode: %s", instructions.Mnemonic(inst.Op))}
	}
}

func (vm *Interpreter) push(v Value) error {
	if err := vm.operandStack.Push(v); err != nil {
		return &Error{Message: "stack overflow"}
	}
	return nil
}

func (vm *Interpreter) pop() (Value, error) {
	v, err := vm.operandStack.Pop()
	if err != nil {
		return Value{}, &Error{Message: "stack underflow"}
	}
	return v.(Value), nil
}

func (vm *Interpreter) loadConst(index int) error {
	if index < 0 || index >= len(vm.constants) {
		return &Error{Message: "constant index out of range"}
	}
	return vm.push(constantToValue(vm.constants[index]))
}

func (vm *Interpreter) loadVar(index int) error {
	v, ok := vm.variables[index]
	if !ok {
		return &Error{Message: "undefined variable"}
	}
	return vm.push(v)
}

func (vm *Interpreter) storeVar(index int) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	vm.variables[index] = v
	return nil
}

func (vm *Interpreter) dup() error {
	v, err := vm.operandStack.Peek()
	if err != nil {
		return &Error{Message: "stack underflow"}
	}
	return vm.push(v.(Value))
}

func (vm *Interpreter) binaryOp(op func(a, b Value) (Value, error)) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	result, err := op(a, b)
	if err != nil {
		return err
	}
	return vm.push(result)
}

func (vm *Interpreter) unaryOp(op func(a Value) (Value, error)) error {
	a, err := vm.pop()
	if err != nil {
		return err
	}
	result, err := op(a)
	if err != nil {
		return err
	}
	return vm.push(result)
}

func (vm *Interpreter) compareOp(op func(a, b Value) (bool, error)) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	result, err := op(a, b)
	if err != nil {
		return err
	}
	return vm.push(BoolValue(result))
}

// jump implements the pc := target - 1 convention: the main loop's
// unconditional post-increment lands exactly on target.
func (vm *Interpreter) jump(target int) {
	vm.pc = target - 1
}

func (vm *Interpreter) jumpIfFalse(target int) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	if !v.Truthy() {
		vm.jump(target)
	}
	return nil
}

func (vm *Interpreter) jumpIfTrue(target int) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	if v.Truthy() {
		vm.jump(target)
	}
	return nil
}

func (vm *Interpreter) call(address int) error {
	if err := vm.callStack.Push(frame{returnAddress: vm.pc + 1}); err != nil {
		return &Error{Message: "recursion limit"}
	}
	vm.jump(address)
	return nil
}

func (vm *Interpreter) ret() error {
	f, err := vm.callStack.Pop()
	if err != nil {
		vm.running = false
		return nil
	}
	vm.jump(f.(frame).returnAddress)
	return nil
}

func (vm *Interpreter) print() error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	fmt.Fprintln(vm.out, v.String())
	return nil
}

func (vm *Interpreter) input() error {
	line, err := vm.in.ReadString('\n')
	if err != nil && line == "" {
		return vm.push(StringValue(""))
	}
	line = strings.TrimRight(line, "\r\n")

	if i, convErr := strconv.ParseInt(line, 10, 64); convErr == nil {
		return vm.push(IntValue(i))
	}
	if f, convErr := strconv.ParseFloat(line, 64); convErr == nil {
		return vm.push(FloatValue(f))
	}
	return vm.push(StringValue(line))
}

func constantToValue(c instructions.Constant) Value {
	switch c.Type {
	case instructions.TypeInt:
		return IntValue(c.IntValue)
	case instructions.TypeFloat:
		return FloatValue(c.FloatValue)
	case instructions.TypeString:
		return StringValue(c.StringValue)
	case instructions.TypeBool:
		return BoolValue(c.BoolValue)
	default:
		return Value{}
	}
}

// handleError reports a fatal runtime error: the PC, the current
// instruction, and a trace of both stacks, then stops the machine.
func (vm *Interpreter) handleError(err error) {
	fmt.Fprintf(os.Stderr, "runtime error: %s\n", err)
	fmt.Fprintf(os.Stderr, "error location: PC=%d\n", vm.pc)

	if vm.pc < len(vm.program) {
		fmt.Fprintf(os.Stderr, "current instruction: %s\n", vm.program[vm.pc])
	}

	fmt.Fprintln(os.Stderr, "operand stack:")
	for _, v := range vm.operandStack.Items() {
		fmt.Fprintf(os.Stderr, "  %v\n", v)
	}

	if !vm.callStack.Empty() {
		fmt.Fprintln(os.Stderr, "call stack:")
		for _, f := range vm.callStack.Items() {
			fmt.Fprintf(os.Stderr, "  return -> %d\n", f.(frame).returnAddress)
		}
	}

	vm.running = false
}

// GetStatus returns a snapshot of the interpreter's current state.
func (vm *Interpreter) GetStatus() Status {
	return Status{
		Running:          vm.running,
		PC:               vm.pc,
		InstructionCount: vm.instructionCount,
		StackSize:        vm.operandStack.Len(),
		VariablesCount:   len(vm.variables),
		CallDepth:        vm.callStack.Len(),
		ExecutionTime:    vm.executionTime,
	}
}

// PerformanceReport renders instruction counts, timing and
// per-opcode statistics gathered during the last Run.
func (vm *Interpreter) PerformanceReport() string {
	var b strings.Builder

	fmt.Fprintln(&b, "=== performance report ===")
	fmt.Fprintf(&b, "total execution time: %s\n", vm.executionTime)
	fmt.Fprintf(&b, "instructions executed: %d\n", vm.instructionCount)

	if vm.executionTime > 0 {
		ips := float64(vm.instructionCount) / vm.executionTime.Seconds()
		fmt.Fprintf(&b, "average speed: %.0f instructions/sec\n", ips)
	}

	fmt.Fprintln(&b, "instruction counts:")
	type stat struct {
		name  string
		count int
	}
	var stats []stat
	for name, count := range vm.instructionStats {
		stats = append(stats, stat{name, count})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].count > stats[j].count })
	for _, s := range stats {
		pct := float64(s.count) / float64(vm.instructionCount) * 100
		fmt.Fprintf(&b, "  %-15s: %6d (%5.1f%%)\n", s.name, s.count, pct)
	}

	fmt.Fprintln(&b, "memory:")
	fmt.Fprintf(&b, "  constants: %d\n", len(vm.constants))
	fmt.Fprintf(&b, "  variables: %d\n", len(vm.variables))
	fmt.Fprintf(&b, "  stack depth: %d\n", vm.operandStack.Len())

	return b.String()
}

// Variables returns a copy of the current variable-slot table, keyed
// by slot index - used by the REPL to carry values across separate
// compilations of the same session.
func (vm *Interpreter) Variables() map[int]Value {
	out := make(map[int]Value, len(vm.variables))
	for k, v := range vm.variables {
		out[k] = v
	}
	return out
}

// SetVariable pre-seeds a variable slot before Run is called - used
// by the REPL to restore values carried over from earlier input.
func (vm *Interpreter) SetVariable(slot int, v Value) {
	vm.variables[slot] = v
}

// ResetStats zeroes the execution counters without disturbing the
// loaded program or variables.
func (vm *Interpreter) ResetStats() {
	vm.instructionCount = 0
	vm.executionTime = 0
	vm.instructionStats = make(map[string]int)
}
