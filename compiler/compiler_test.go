package compiler

import (
	"testing"

	"github.com/skx/pyvm/instructions"
)

// We try to compile several bogus programs.
func TestBogusInput(t *testing.T) {

	tests := []string{
		// an indentation mismatch
		"if x:\n  y = 1\n y = 2\n",

		// an unrecognised character
		"x = 3 $\n",

		// an unterminated string
		"x = \"oops\n",

		// a user-defined function - parses fine, rejected at codegen
		"def add(a, b):\n    return a + b\n",

		// an assignment to a non-identifier
		"1 + 2 = 3\n",
	}

	for _, test := range tests {
		c := New(test)
		_, err := c.Compile()
		if err == nil {
			t.Errorf("expected an error compiling %q, got none", test)
		}
	}
}

// Test some valid programs compile cleanly, end to end.
func TestValidPrograms(t *testing.T) {

	tests := []string{
		"x = 1 + 2\n",
		"if x > 3:\n    print(x)\nelse:\n    print(0)\n",
		"i = 0\nwhile i < 10:\n    i = i + 1\n",
		"print(\"hello\")\n",
		"y = not True\n",
	}

	for _, test := range tests {
		c := New(test)
		prog, err := c.Compile()
		if err != nil {
			t.Fatalf("unexpected error compiling %q: %s", test, err)
		}
		if len(prog.Instructions) == 0 {
			t.Errorf("expected at least one instruction for %q", test)
		}
		last := prog.Instructions[len(prog.Instructions)-1]
		if last.Op != instructions.HALT {
			t.Errorf("expected program to end with HALT, got %s", instructions.Mnemonic(last.Op))
		}
	}
}

// TestDebugFlag just exercises SetDebug/Debug, and the Tokens/Tree
// accessors populated along the way.
func TestDebugFlag(t *testing.T) {
	c := New("x = 1\n")
	c.SetDebug(true)

	if !c.Debug() {
		t.Fatalf("expected debug flag to be set")
	}

	if _, err := c.Compile(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(c.Tokens()) == 0 {
		t.Errorf("expected tokens to be recorded")
	}
	if c.Tree() == nil {
		t.Errorf("expected a parsed tree to be recorded")
	}
}
