// Package lexer turns a program's source text into a finite token
// sequence, synthesizing NEWLINE/INDENT/DEDENT/EOF tokens the way
// Python's own tokenizer does.
package lexer

import (
	"fmt"

	"github.com/skx/pyvm/token"
)

// Error is returned for any lexical failure: an unterminated string,
// an unrecognized character, or an indentation mismatch.
type Error struct {
	Message string
	Line    int
	Column  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("lexer error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// twoCharOperators are tried before the single-character fallbacks.
var twoCharOperators = map[string]token.Kind{
	"==": token.EQUAL,
	"!=": token.NOT_EQUAL,
	"<=": token.LESS_EQUAL,
	">=": token.GREATER_EQUAL,
}

var singleCharTokens = map[rune]token.Kind{
	'+': token.PLUS,
	'-': token.MINUS,
	'*': token.MULTIPLY,
	'/': token.DIVIDE,
	'%': token.MODULO,
	'<': token.LESS_THAN,
	'>': token.GREATER_THAN,
	'=': token.ASSIGN,
	'(': token.LPAREN,
	')': token.RPAREN,
	':': token.COLON,
	',': token.COMMA,
}

// Lexer holds our object-state: position, line/column tracking, and
// the indentation stack used to reconstruct INDENT/DEDENT tokens.
type Lexer struct {
	characters   []rune
	position     int // current character position
	readPosition int // next character position
	ch           rune

	line   int
	column int

	atLineStart bool
	indentStack []int

	pendingDedents int
	eofEmitted     bool
}

// New creates a Lexer instance from string input.
func New(input string) *Lexer {
	l := &Lexer{
		characters:  []rune(input),
		line:        1,
		atLineStart: true,
		indentStack: []int{0},
	}
	l.readChar()
	return l
}

// Tokenize scans the whole input and returns the resulting token
// stream, or the first lexical error encountered.
func Tokenize(input string) ([]token.Token, error) {
	l := New(input)
	var tokens []token.Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return tokens, nil
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.characters) {
		l.ch = rune(0)
	} else {
		l.ch = l.characters[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.characters) {
		return rune(0)
	}
	return l.characters[l.readPosition]
}

// NextToken returns the next token in the stream, or a lexical Error.
func (l *Lexer) NextToken() (token.Token, error) {
	if l.pendingDedents > 0 {
		l.pendingDedents--
		return token.Token{Kind: token.DEDENT, Line: l.line, Column: l.column}, nil
	}

	if l.atLineStart {
		tok, emitted, err := l.handleIndentation()
		if err != nil {
			return token.Token{}, err
		}
		if emitted {
			return tok, nil
		}
		// Blank/comment line fully consumed, or indentation
		// unchanged; resume normal scanning on this same line.
	}

	l.skipWhitespace()

	line, col := l.line, l.column

	switch {
	case l.ch == rune(0):
		if len(l.indentStack) > 1 {
			l.indentStack = l.indentStack[:len(l.indentStack)-1]
			return token.Token{Kind: token.DEDENT, Line: line, Column: col}, nil
		}
		return token.Token{Kind: token.EOF, Line: line, Column: col}, nil

	case l.ch == '#':
		l.skipComment()
		return l.NextToken()

	case l.ch == '\n':
		l.readChar()
		l.atLineStart = true
		return token.Token{Kind: token.NEWLINE, Line: line, Column: col}, nil

	case l.ch == '"' || l.ch == '\'':
		return l.readString()

	case isDigit(l.ch):
		return l.readNumber(), nil

	case isIdentStart(l.ch):
		return l.readIdentifier(), nil
	}

	if tok, ok := l.readTwoCharOperator(line, col); ok {
		return tok, nil
	}
	if tok, ok := l.readSingleCharToken(line, col); ok {
		return tok, nil
	}

	ch := l.ch
	l.readChar()
	return token.Token{}, &Error{Message: fmt.Sprintf("unrecognized character %q", ch), Line: line, Column: col}
}

// handleIndentation runs once per physical line. It returns an
// INDENT/DEDENT token if one should be emitted, or emitted=false if
// the caller should resume ordinary scanning (blank line, comment-only
// line, or unchanged indentation).
func (l *Lexer) handleIndentation() (token.Token, bool, error) {
	l.atLineStart = false
	line := l.line

	indent := 0
	for l.ch == ' ' || l.ch == '\t' {
		if l.ch == '\t' {
			indent += 8
		} else {
			indent++
		}
		l.readChar()
	}

	if l.ch == '\n' || l.ch == '#' || l.ch == rune(0) {
		return token.Token{}, false, nil
	}

	top := l.indentStack[len(l.indentStack)-1]

	switch {
	case indent > top:
		l.indentStack = append(l.indentStack, indent)
		return token.Token{Kind: token.INDENT, Line: line, Column: indent + 1}, true, nil

	case indent < top:
		found := false
		for _, lvl := range l.indentStack {
			if lvl == indent {
				found = true
				break
			}
		}
		if !found {
			return token.Token{}, false, &Error{Message: "indentation mismatch", Line: line, Column: indent + 1}
		}

		pops := 0
		for l.indentStack[len(l.indentStack)-1] > indent {
			l.indentStack = l.indentStack[:len(l.indentStack)-1]
			pops++
		}
		l.pendingDedents = pops - 1
		return token.Token{Kind: token.DEDENT, Line: line, Column: indent + 1}, true, nil

	default:
		return token.Token{}, false, nil
	}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) skipComment() {
	for l.ch != '\n' && l.ch != rune(0) {
		l.readChar()
	}
}

func (l *Lexer) readNumber() token.Token {
	line, col := l.line, l.column
	start := l.position
	dots := 0
	for isDigit(l.ch) || (l.ch == '.' && dots == 0 && isDigit(l.peekChar())) {
		if l.ch == '.' {
			dots++
		}
		l.readChar()
	}
	return token.Token{Kind: token.NUMBER, Literal: string(l.characters[start:l.position]), Line: line, Column: col}
}

func (l *Lexer) readIdentifier() token.Token {
	line, col := l.line, l.column
	start := l.position
	for isIdentChar(l.ch) {
		l.readChar()
	}
	lit := string(l.characters[start:l.position])
	return token.Token{Kind: token.LookupIdentifier(lit), Literal: lit, Line: line, Column: col}
}

func (l *Lexer) readString() (token.Token, error) {
	line, col := l.line, l.column
	quote := l.ch
	l.readChar()

	runes := make([]rune, 0, 16)
	for {
		if l.ch == rune(0) {
			return token.Token{}, &Error{Message: "unterminated string", Line: line, Column: col}
		}
		if l.ch == quote {
			l.readChar()
			break
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				runes = append(runes, '\n')
			case 't':
				runes = append(runes, '\t')
			case 'r':
				runes = append(runes, '\r')
			case '\\':
				runes = append(runes, '\\')
			case quote:
				runes = append(runes, quote)
			default:
				runes = append(runes, l.ch)
			}
			l.readChar()
			continue
		}
		runes = append(runes, l.ch)
		l.readChar()
	}
	return token.Token{Kind: token.STRING, Literal: string(runes), Line: line, Column: col}, nil
}

func (l *Lexer) readTwoCharOperator(line, col int) (token.Token, bool) {
	two := string(l.ch) + string(l.peekChar())
	kind, ok := twoCharOperators[two]
	if !ok {
		return token.Token{}, false
	}
	l.readChar()
	l.readChar()
	return token.Token{Kind: kind, Literal: two, Line: line, Column: col}, true
}

func (l *Lexer) readSingleCharToken(line, col int) (token.Token, bool) {
	kind, ok := singleCharTokens[l.ch]
	if !ok {
		return token.Token{}, false
	}
	lit := string(l.ch)
	l.readChar()
	return token.Token{Kind: kind, Literal: lit, Line: line, Column: col}, true
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch rune) bool {
	return isIdentStart(ch) || isDigit(ch)
}
