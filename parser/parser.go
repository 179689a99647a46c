// Package parser implements a recursive-descent parser with a
// Pratt-style precedence cascade over the token stream produced by
// the lexer, building the AST defined in package ast.
package parser

import (
	"fmt"
	"strconv"

	"github.com/skx/pyvm/ast"
	"github.com/skx/pyvm/token"
)

// Error is returned for any syntactic failure: an unexpected token, a
// missing expected token, or an invalid assignment target.
type Error struct {
	Message string
	Token   token.Token
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s (got %s)", e.Token.Line, e.Token.Column, e.Message, e.Token.Kind)
}

// Parser holds our object-state: the token stream and our position
// within it.
type Parser struct {
	tokens  []token.Token
	pos     int
	current token.Token
}

// New creates a Parser over an already-lexed token stream.
func New(tokens []token.Token) *Parser {
	p := &Parser{tokens: tokens}
	if len(tokens) > 0 {
		p.current = tokens[0]
	} else {
		p.current = token.Token{Kind: token.EOF}
	}
	return p
}

// Parse parses the whole token stream and returns the Program root,
// or the first parse error encountered.
func Parse(tokens []token.Token) (*ast.Program, error) {
	return New(tokens).Parse()
}

// Parse consumes the token stream, producing the Program root.
func (p *Parser) Parse() (*ast.Program, error) {
	var statements []ast.Statement

	for !p.atEnd() {
		if p.match(token.NEWLINE) {
			continue
		}
		stmt, err := p.parseStatement()
		if err != nil {
			p.synchronize()
			return nil, err
		}
		if stmt != nil {
			statements = append(statements, stmt)
		}
	}

	return &ast.Program{Statements: statements}, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	if p.match(token.INDENT) || p.match(token.DEDENT) {
		// Indentation is consumed by parseBlock; seeing one here
		// means the caller should simply skip it.
		return nil, nil
	}

	if p.checkKeyword("if") {
		return p.parseIfStatement()
	}
	if p.checkKeyword("while") {
		return p.parseWhileStatement()
	}
	if p.checkKeyword("def") {
		return p.parseFunctionDef()
	}
	if p.checkKeyword("return") {
		return p.parseReturnStatement()
	}

	return p.parseAssignmentOrExpression()
}

func (p *Parser) parseIfStatement() (ast.Statement, error) {
	p.advance() // 'if'

	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.COLON, "expected ':'"); err != nil {
		return nil, err
	}
	if _, err := p.consume(token.NEWLINE, "expected newline"); err != nil {
		return nil, err
	}

	thenBody, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	var elseBody []ast.Statement
	if p.checkKeyword("else") {
		p.advance()
		if _, err := p.consume(token.COLON, "expected ':'"); err != nil {
			return nil, err
		}
		if _, err := p.consume(token.NEWLINE, "expected newline"); err != nil {
			return nil, err
		}
		elseBody, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
	}

	return &ast.IfStatement{Condition: cond, Then: thenBody, Else: elseBody}, nil
}

func (p *Parser) parseWhileStatement() (ast.Statement, error) {
	p.advance() // 'while'

	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.COLON, "expected ':'"); err != nil {
		return nil, err
	}
	if _, err := p.consume(token.NEWLINE, "expected newline"); err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &ast.WhileStatement{Condition: cond, Body: body}, nil
}

func (p *Parser) parseFunctionDef() (ast.Statement, error) {
	p.advance() // 'def'

	name, err := p.consume(token.IDENTIFIER, "expected function name")
	if err != nil {
		return nil, err
	}

	if _, err := p.consume(token.LPAREN, "expected '('"); err != nil {
		return nil, err
	}

	var params []string
	if !p.check(token.RPAREN) {
		param, err := p.consume(token.IDENTIFIER, "expected parameter name")
		if err != nil {
			return nil, err
		}
		params = append(params, param.Literal)
		for p.match(token.COMMA) {
			param, err := p.consume(token.IDENTIFIER, "expected parameter name")
			if err != nil {
				return nil, err
			}
			params = append(params, param.Literal)
		}
	}

	if _, err := p.consume(token.RPAREN, "expected ')'"); err != nil {
		return nil, err
	}
	if _, err := p.consume(token.COLON, "expected ':'"); err != nil {
		return nil, err
	}
	if _, err := p.consume(token.NEWLINE, "expected newline"); err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &ast.FunctionDef{Name: name.Literal, Parameters: params, Body: body}, nil
}

func (p *Parser) parseReturnStatement() (ast.Statement, error) {
	p.advance() // 'return'

	var value ast.Expression
	if !p.check(token.NEWLINE) && !p.atEnd() {
		var err error
		value, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}

	return &ast.ReturnStatement{Value: value}, nil
}

func (p *Parser) parseBlock() ([]ast.Statement, error) {
	var statements []ast.Statement

	if _, err := p.consume(token.INDENT, "expected indent"); err != nil {
		return nil, err
	}

	for !p.check(token.DEDENT) && !p.atEnd() {
		if p.match(token.NEWLINE) {
			continue
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			statements = append(statements, stmt)
		}
	}

	if _, err := p.consume(token.DEDENT, "expected dedent"); err != nil {
		return nil, err
	}

	return statements, nil
}

func (p *Parser) parseAssignmentOrExpression() (ast.Statement, error) {
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if p.match(token.ASSIGN) {
		ident, ok := expr.(*ast.Identifier)
		if !ok {
			return nil, &Error{Message: "assignment target must be identifier", Token: p.current}
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &ast.Assignment{Target: ident.Name, Value: value}, nil
	}

	return &ast.ExpressionStatement{Expression: expr}, nil
}

// parseExpression is the entry point of the precedence cascade:
// or -> and -> equality -> comparison -> additive -> multiplicative
// -> unary -> primary.
func (p *Parser) parseExpression() (ast.Expression, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.checkKeyword("or") {
		op := p.advance().Literal
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOperation{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expression, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.checkKeyword("and") {
		op := p.advance().Literal
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOperation{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseEquality() (ast.Expression, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.check(token.EQUAL) || p.check(token.NOT_EQUAL) {
		op := p.advance().Literal
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOperation{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseComparison() (ast.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.check(token.LESS_THAN) || p.check(token.LESS_EQUAL) || p.check(token.GREATER_THAN) || p.check(token.GREATER_EQUAL) {
		op := p.advance().Literal
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOperation{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.check(token.PLUS) || p.check(token.MINUS) {
		op := p.advance().Literal
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOperation{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.check(token.MULTIPLY) || p.check(token.DIVIDE) || p.check(token.MODULO) {
		op := p.advance().Literal
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOperation{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expression, error) {
	if p.check(token.MINUS) || p.check(token.PLUS) {
		op := p.advance().Literal
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOperation{Operator: op, Operand: operand}, nil
	}
	if p.checkKeyword("not") {
		op := p.advance().Literal
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOperation{Operator: op, Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Expression, error) {
	if p.check(token.NUMBER) {
		lit := p.advance().Literal
		return numberLiteral(lit)
	}

	if p.check(token.STRING) {
		return &ast.StringLiteral{Value: p.advance().Literal}, nil
	}

	if p.checkKeyword("True") {
		p.advance()
		return &ast.BooleanLiteral{Value: true}, nil
	}
	if p.checkKeyword("False") {
		p.advance()
		return &ast.BooleanLiteral{Value: false}, nil
	}

	if p.check(token.IDENTIFIER) {
		name := p.advance().Literal

		if p.match(token.LPAREN) {
			var args []ast.Expression
			if !p.check(token.RPAREN) {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				for p.match(token.COMMA) {
					arg, err := p.parseExpression()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
				}
			}
			if _, err := p.consume(token.RPAREN, "expected ')'"); err != nil {
				return nil, err
			}
			return &ast.FunctionCall{Name: name, Arguments: args}, nil
		}

		return &ast.Identifier{Name: name}, nil
	}

	if p.match(token.LPAREN) {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.RPAREN, "expected ')'"); err != nil {
			return nil, err
		}
		return expr, nil
	}

	return nil, &Error{Message: "unexpected token", Token: p.current}
}

func numberLiteral(lit string) (ast.Expression, error) {
	for _, r := range lit {
		if r == '.' {
			f, err := strconv.ParseFloat(lit, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid float literal %q: %w", lit, err)
			}
			return &ast.NumberLiteral{FloatValue: f, IsFloat: true}, nil
		}
	}
	i, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer literal %q: %w", lit, err)
	}
	return &ast.NumberLiteral{IntValue: i}, nil
}

// --- token-stream helpers ---

func (p *Parser) atEnd() bool {
	return p.current.Kind == token.EOF
}

func (p *Parser) check(kind token.Kind) bool {
	return !p.atEnd() && p.current.Kind == kind
}

func (p *Parser) checkKeyword(word string) bool {
	return !p.atEnd() && p.current.Kind == token.KEYWORD && p.current.Literal == word
}

func (p *Parser) match(kind token.Kind) bool {
	if p.check(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) advance() token.Token {
	prev := p.current
	if !p.atEnd() {
		p.pos++
		if p.pos < len(p.tokens) {
			p.current = p.tokens[p.pos]
		}
	}
	return prev
}

func (p *Parser) consume(kind token.Kind, message string) (token.Token, error) {
	if p.check(kind) {
		return p.advance(), nil
	}
	return token.Token{}, &Error{Message: message, Token: p.current}
}

// synchronize implements the error-recovery strategy described in the
// design: advance until the previous token is NEWLINE or the current
// token is a keyword that starts a statement. The caller re-raises the
// original error; synchronize only repositions the cursor so a future
// call (e.g. from a REPL) can continue past the bad statement.
func (p *Parser) synchronize() {
	p.advance()
	for !p.atEnd() {
		if p.pos > 0 && p.tokens[p.pos-1].Kind == token.NEWLINE {
			return
		}
		if p.current.Kind == token.KEYWORD {
			switch p.current.Literal {
			case "if", "while", "def", "return":
				return
			}
		}
		p.advance()
	}
}
