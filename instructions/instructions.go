// Package instructions contains the opcode set of our bytecode virtual
// machine, along with the small value-types used to describe a
// compiled program: instructions, constants and symbols.
//
// The compiler emits a stream of Instruction values; the container
// package serializes them (along with the constant-pool and
// symbol-table) to a `.pvm` file; the vm package fetches, decodes and
// dispatches them one at a time.
package instructions

import "fmt"

// OpCode identifies a single virtual-machine instruction.
type OpCode byte

const (
	// NOP does nothing.
	NOP OpCode = 0x00

	// LOAD_CONST pushes constant-pool entry `operand` onto the stack.
	LOAD_CONST OpCode = 0x01

	// LOAD_VAR pushes variable-slot `operand` onto the stack.
	LOAD_VAR OpCode = 0x02

	// STORE_VAR pops the stack and stores it into variable-slot `operand`.
	STORE_VAR OpCode = 0x03

	// POP discards the top of the stack.
	POP OpCode = 0x04

	// DUP duplicates the top of the stack.
	DUP OpCode = 0x05

	// ADD pops two items and pushes their sum.
	ADD OpCode = 0x10

	// SUB pops two items and pushes their difference.
	SUB OpCode = 0x11

	// MUL pops two items and pushes their product.
	MUL OpCode = 0x12

	// DIV pops two items and pushes their quotient.
	DIV OpCode = 0x13

	// MOD pops two items and pushes the remainder.
	MOD OpCode = 0x14

	// NEG pops one item and pushes its negation.
	NEG OpCode = 0x15

	// CMP_EQ pops two items and pushes whether they are equal.
	CMP_EQ OpCode = 0x20

	// CMP_NE pops two items and pushes whether they are unequal.
	CMP_NE OpCode = 0x21

	// CMP_LT pops two items and pushes whether the first is less than the second.
	CMP_LT OpCode = 0x22

	// CMP_LE pops two items and pushes whether the first is at most the second.
	CMP_LE OpCode = 0x23

	// CMP_GT pops two items and pushes whether the first exceeds the second.
	CMP_GT OpCode = 0x24

	// CMP_GE pops two items and pushes whether the first is at least the second.
	CMP_GE OpCode = 0x25

	// JUMP sets the program counter to `operand`, unconditionally.
	JUMP OpCode = 0x30

	// JUMP_IF_FALSE pops the stack; if falsy, sets the program counter to `operand`.
	JUMP_IF_FALSE OpCode = 0x31

	// JUMP_IF_TRUE pops the stack; if truthy, sets the program counter to `operand`.
	JUMP_IF_TRUE OpCode = 0x32

	// CALL invokes the function whose entry point is `operand`.
	CALL OpCode = 0x33

	// RETURN pops the current call-frame and resumes at its return address.
	RETURN OpCode = 0x34

	// PRINT pops the stack and writes it to standard output.
	PRINT OpCode = 0x40

	// INPUT reads a line from standard input and pushes it as an integer
	// if it parses as one, else as a float if it parses as one, else as
	// a string.
	INPUT OpCode = 0x41

	// HALT stops execution.
	HALT OpCode = 0xFF
)

// info describes one opcode: its mnemonic, and whether it carries an
// operand byte.
type info struct {
	mnemonic   string
	hasOperand bool
}

// instructionInfo maps every known opcode to its descriptive info.
var instructionInfo = map[OpCode]info{
	NOP:           {"NOP", false},
	LOAD_CONST:    {"LOAD_CONST", true},
	LOAD_VAR:      {"LOAD_VAR", true},
	STORE_VAR:     {"STORE_VAR", true},
	POP:           {"POP", false},
	DUP:           {"DUP", false},
	ADD:           {"ADD", false},
	SUB:           {"SUB", false},
	MUL:           {"MUL", false},
	DIV:           {"DIV", false},
	MOD:           {"MOD", false},
	NEG:           {"NEG", false},
	CMP_EQ:        {"CMP_EQ", false},
	CMP_NE:        {"CMP_NE", false},
	CMP_LT:        {"CMP_LT", false},
	CMP_LE:        {"CMP_LE", false},
	CMP_GT:        {"CMP_GT", false},
	CMP_GE:        {"CMP_GE", false},
	JUMP:          {"JUMP", true},
	JUMP_IF_FALSE: {"JUMP_IF_FALSE", true},
	JUMP_IF_TRUE:  {"JUMP_IF_TRUE", true},
	CALL:          {"CALL", true},
	RETURN:        {"RETURN", false},
	PRINT:         {"PRINT", false},
	INPUT:         {"INPUT", false},
	HALT:          {"HALT", false},
}

// Mnemonic returns the human-readable name of an opcode, or "UNKNOWN"
// if it isn't one we recognise.
func Mnemonic(op OpCode) string {
	if i, ok := instructionInfo[op]; ok {
		return i.mnemonic
	}
	return "UNKNOWN"
}

// HasOperand reports whether an opcode is followed by an operand byte.
func HasOperand(op OpCode) bool {
	return instructionInfo[op].hasOperand
}

// Instruction is a single fetched/decoded unit of bytecode: an opcode
// and, for those that need one, an operand.
type Instruction struct {
	Op      OpCode
	Operand byte
}

// String renders an instruction the way our disassembler does.
func (i Instruction) String() string {
	if HasOperand(i.Op) {
		return fmt.Sprintf("%s %d", Mnemonic(i.Op), i.Operand)
	}
	return Mnemonic(i.Op)
}

// DataType identifies the type of a constant-pool entry.
type DataType byte

const (
	// TypeInt marks a constant-pool entry as an integer. It is held as
	// an int64 in memory; the container stores it as a signed 32-bit
	// value.
	TypeInt DataType = 0x01

	// TypeFloat marks a constant-pool entry as a 64-bit float.
	TypeFloat DataType = 0x02

	// TypeString marks a constant-pool entry as a string.
	TypeString DataType = 0x03

	// TypeBool marks a constant-pool entry as a boolean.
	TypeBool DataType = 0x04
)

// Constant is a single entry in a program's constant pool.
type Constant struct {
	Type        DataType
	IntValue    int64
	FloatValue  float64
	StringValue string
	BoolValue   bool
}

// String renders a constant for debug traces and disassembly.
func (c Constant) String() string {
	switch c.Type {
	case TypeInt:
		return fmt.Sprintf("INT(%d)", c.IntValue)
	case TypeFloat:
		return fmt.Sprintf("FLOAT(%g)", c.FloatValue)
	case TypeString:
		return fmt.Sprintf("STRING(%q)", c.StringValue)
	case TypeBool:
		return fmt.Sprintf("BOOL(%t)", c.BoolValue)
	default:
		return "UNKNOWN"
	}
}

// SymbolType identifies the kind of name a Symbol refers to.
type SymbolType byte

const (
	// SymbolVar marks a symbol-table entry as a variable.
	SymbolVar SymbolType = 0x01

	// SymbolFunc marks a symbol-table entry as a function.
	SymbolFunc SymbolType = 0x02
)

// Symbol is a single entry in a program's symbol table: a name,
// its kind, and the slot index the compiler assigned it.
type Symbol struct {
	Name  string
	Type  SymbolType
	Index uint32
}

// String renders a symbol for debug traces and disassembly.
func (s Symbol) String() string {
	kind := "VAR"
	if s.Type == SymbolFunc {
		kind = "FUNC"
	}
	return fmt.Sprintf("%s(%s)[%d]", kind, s.Name, s.Index)
}

// Disassemble renders a sequence of instructions as one line per
// instruction, prefixed with its address.
func Disassemble(program []Instruction) string {
	out := ""
	for i, inst := range program {
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("%04d: %s", i, inst.String())
	}
	return out
}
