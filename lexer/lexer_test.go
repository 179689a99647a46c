package lexer

import (
	"testing"

	"github.com/skx/pyvm/token"
)

// Trivial test of the parsing of numbers.
func TestParseNumbers(t *testing.T) {
	input := `3 43 17.5 0.25`

	tests := []struct {
		expectedKind    token.Kind
		expectedLiteral string
	}{
		{token.NUMBER, "3"},
		{token.NUMBER, "43"},
		{token.NUMBER, "17.5"},
		{token.NUMBER, "0.25"},
		{token.EOF, ""},
	}
	l := New(input)
	for i, tt := range tests {
		tok, err := l.NextToken()
		if err != nil {
			t.Fatalf("tests[%d] - unexpected error: %s", i, err)
		}
		if tok.Kind != tt.expectedKind {
			t.Fatalf("tests[%d] - kind wrong, expected=%q, got=%q", i, tt.expectedKind, tok.Kind)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong, expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

// Trivial test of the parsing of operators.
func TestParseOperators(t *testing.T) {
	input := `+ - * / % == != < <= > >= =`

	tests := []struct {
		expectedKind    token.Kind
		expectedLiteral string
	}{
		{token.PLUS, "+"},
		{token.MINUS, "-"},
		{token.MULTIPLY, "*"},
		{token.DIVIDE, "/"},
		{token.MODULO, "%"},
		{token.EQUAL, "=="},
		{token.NOT_EQUAL, "!="},
		{token.LESS_THAN, "<"},
		{token.LESS_EQUAL, "<="},
		{token.GREATER_THAN, ">"},
		{token.GREATER_EQUAL, ">="},
		{token.ASSIGN, "="},
		{token.EOF, ""},
	}
	l := New(input)
	for i, tt := range tests {
		tok, err := l.NextToken()
		if err != nil {
			t.Fatalf("tests[%d] - unexpected error: %s", i, err)
		}
		if tok.Kind != tt.expectedKind {
			t.Fatalf("tests[%d] - kind wrong, expected=%q, got=%q", i, tt.expectedKind, tok.Kind)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong, expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

// Trivial test of an unrecognized character.
func TestUnrecognizedCharacter(t *testing.T) {
	l := New("x = 3 @ 4")

	for i := 0; i < 3; i++ {
		if _, err := l.NextToken(); err != nil {
			t.Fatalf("unexpected error before the bogus character: %s", err)
		}
	}

	if _, err := l.NextToken(); err == nil {
		t.Fatalf("expected a lexer error for '@'")
	}
}

func TestUnterminatedString(t *testing.T) {
	l := New(`"hello`)
	if _, err := l.NextToken(); err == nil {
		t.Fatalf("expected an unterminated-string error")
	}
}

func TestStringEscapes(t *testing.T) {
	l := New(`"a\nb\tc\\d\"e"`)
	tok, err := l.NextToken()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	want := "a\nb\tc\\d\"e"
	if tok.Literal != want {
		t.Fatalf("escape handling wrong, expected=%q, got=%q", want, tok.Literal)
	}
}

// Indentation round-trips through INDENT/DEDENT/NEWLINE tokens.
func TestIndentation(t *testing.T) {
	input := "if x:\n    y = 1\n    z = 2\nw = 3\n"

	kinds, err := kindSequence(input)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	want := []token.Kind{
		token.KEYWORD, token.IDENTIFIER, token.COLON, token.NEWLINE,
		token.INDENT,
		token.IDENTIFIER, token.ASSIGN, token.NUMBER, token.NEWLINE,
		token.IDENTIFIER, token.ASSIGN, token.NUMBER, token.NEWLINE,
		token.DEDENT,
		token.IDENTIFIER, token.ASSIGN, token.NUMBER, token.NEWLINE,
		token.EOF,
	}

	if len(kinds) != len(want) {
		t.Fatalf("token count mismatch: got %d (%v), want %d (%v)", len(kinds), kinds, len(want), want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("token %d: got %q, want %q (full: %v)", i, kinds[i], want[i], kinds)
		}
	}
}

func TestIndentationMismatch(t *testing.T) {
	input := "if x:\n    y = 1\n  z = 2\n"
	if _, err := kindSequence(input); err == nil {
		t.Fatalf("expected an indentation-mismatch error")
	}
}

func kindSequence(input string) ([]token.Kind, error) {
	toks, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	kinds := make([]token.Kind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	return kinds, nil
}
