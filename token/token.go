// Package token contains the tokens that the lexer will produce when
// scanning a program's source text.
package token

// Kind identifies what a Token represents.
type Kind string

// pre-defined Kind values
const (
	EOF        Kind = "EOF"
	ERROR      Kind = "ERROR"
	NUMBER     Kind = "NUMBER"
	STRING     Kind = "STRING"
	BOOLEAN    Kind = "BOOLEAN"
	IDENTIFIER Kind = "IDENTIFIER"
	KEYWORD    Kind = "KEYWORD"

	// arithmetic operators
	PLUS     Kind = "+"
	MINUS    Kind = "-"
	MULTIPLY Kind = "*"
	DIVIDE   Kind = "/"
	MODULO   Kind = "%"

	// comparison operators
	EQUAL         Kind = "=="
	NOT_EQUAL     Kind = "!="
	LESS_THAN     Kind = "<"
	LESS_EQUAL    Kind = "<="
	GREATER_THAN  Kind = ">"
	GREATER_EQUAL Kind = ">="

	ASSIGN Kind = "="

	// delimiters
	LPAREN Kind = "("
	RPAREN Kind = ")"
	COLON  Kind = ":"
	COMMA  Kind = ","

	// structural tokens synthesized by the lexer
	NEWLINE Kind = "NEWLINE"
	INDENT  Kind = "INDENT"
	DEDENT  Kind = "DEDENT"
)

// Token is a single lexeme, tagged with its kind, literal text, and
// 1-based source position.
type Token struct {
	Kind   Kind
	Literal string
	Line   int
	Column int
}

// keywords is the reserved-word set. Anything else that looks like an
// identifier lexes as IDENTIFIER.
var keywords = map[string]bool{
	"if": true, "else": true, "elif": true, "while": true, "for": true,
	"def": true, "return": true, "True": true, "False": true,
	"and": true, "or": true, "not": true, "in": true, "is": true,
	"class": true, "import": true, "from": true, "as": true,
	"try": true, "except": true, "finally": true, "with": true,
	"pass": true, "break": true, "continue": true,
}

// LookupIdentifier reports whether word is a reserved keyword and
// returns the Kind it should be lexed as.
func LookupIdentifier(word string) Kind {
	if keywords[word] {
		return KEYWORD
	}
	return IDENTIFIER
}

// String renders the token for debug traces and error messages.
func (t Token) String() string {
	return string(t.Kind) + "(" + t.Literal + ")"
}
