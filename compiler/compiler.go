// The compiler-package contains the core of our compiler.
//
// In brief we go through a three-step process:
//
//  1.  Use the lexer to tokenize the source.
//
//  2.  Parse the tokens into an abstract syntax tree.
//
//  3.  Walk the tree, generating a stream of bytecode instructions,
//      alongside the constant-pool and symbol-table the instructions
//      reference.
//
// The result is a Program, ready to be written to a `.pvm` container
// by the container package, or interpreted directly by the vm package.
package compiler

import (
	"github.com/skx/pyvm/ast"
	"github.com/skx/pyvm/instructions"
	"github.com/skx/pyvm/lexer"
	"github.com/skx/pyvm/parser"
	"github.com/skx/pyvm/token"
)

// Program is the output of a successful compilation: a constant pool,
// a symbol table, and the instruction stream that references them.
type Program struct {
	// Constants holds every literal value the program refers to.
	Constants []instructions.Constant

	// Symbols holds every variable the program refers to.
	Symbols []instructions.Symbol

	// Instructions holds the generated bytecode itself.
	Instructions []instructions.Instruction
}

// Compiler holds our object-state.
type Compiler struct {

	// debug holds the flag set by SetDebug. Compile does not consult
	// it; it is read back through Debug.
	debug bool

	// source holds the program text we're compiling.
	source string

	// tokens holds the source, broken down into a series of tokens,
	// once tokenize has run.
	tokens []token.Token

	// tree holds the parsed program, once parse has run.
	tree *ast.Program
}

//
// Our public API consists of the functions:
//  New
//  SetDebug
//  Debug
//  Compile
//  Tokens
//  Tree
//
// The rest of the code is an implementation detail.
//

// New creates a new compiler, given the source in the constructor.
func New(input string) *Compiler {
	c := &Compiler{source: input, debug: false}
	return c
}

// SetDebug changes the debug-flag for our compiler, as reported by
// Debug. The tokens and AST of a Compile call are recorded for the
// Tokens/Tree accessors whether or not the flag is set.
func (c *Compiler) SetDebug(val bool) {
	c.debug = val
}

// Debug reports whether debug-mode is enabled.
func (c *Compiler) Debug() bool {
	return c.debug
}

// Compile converts the input program into a Program: a constant pool,
// symbol table and instruction stream.
func (c *Compiler) Compile() (*Program, error) {

	//
	// First stage: tokenize the source.  At this point there might
	// be errors - if so report them, and terminate.
	//
	err := c.tokenize()
	if err != nil {
		return nil, err
	}

	//
	// Second stage: parse the tokens into an AST.
	//
	err = c.parse()
	if err != nil {
		return nil, err
	}

	//
	// Third stage: generate bytecode from the AST.
	//
	gen := NewGenerator()
	prog, err := gen.Generate(c.tree)
	if err != nil {
		return nil, err
	}

	return prog, nil
}

// tokenize populates our internal list of tokens, as a result of
// lexing the source.
func (c *Compiler) tokenize() error {
	toks, err := lexer.Tokenize(c.source)
	if err != nil {
		return err
	}
	c.tokens = toks
	return nil
}

// parse converts our token-stream into an abstract syntax tree.
func (c *Compiler) parse() error {
	tree, err := parser.Parse(c.tokens)
	if err != nil {
		return err
	}
	c.tree = tree
	return nil
}

// Tokens returns the tokens produced by the most recent Compile call,
// for debug reporting.
func (c *Compiler) Tokens() []token.Token {
	return c.tokens
}

// Tree returns the AST produced by the most recent Compile call, for
// debug reporting.
func (c *Compiler) Tree() *ast.Program {
	return c.tree
}
