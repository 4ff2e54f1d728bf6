// Package parser implements the Replica recursive-descent parser.
// It consumes the lexer's token stream and produces the typed syntax
// tree verified by the semantic analyzer. Parse errors are collected
// with source spans rather than aborting at the first failure.
package parser

import (
	"fmt"

	"github.com/replica-lang/replica/internal/ast"
	"github.com/replica-lang/replica/internal/lexer"
	"github.com/replica-lang/replica/internal/position"
)

// Error represents a parse error with position information
type Error struct {
	Span    position.Span
	Message string
}

// Error implements the error interface
func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Span, e.Message)
}

// Parser parses a Replica token stream into an AST
type Parser struct {
	tokens []lexer.Token
	pos    int
	errors []Error
}

// New creates a parser for the given token stream
func New(tokens []lexer.Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseSource is a convenience that lexes and parses source text in one step
func ParseSource(source, filename string) (*ast.Program, []Error) {
	l := lexer.New(source, filename)
	p := New(l.Tokenize())
	return p.ParseProgram()
}

// ParseProgram parses a complete source file
func (p *Parser) ParseProgram() (*ast.Program, []Error) {
	program := &ast.Program{}

	for !p.at(lexer.TokenEOF) {
		actor := p.parseActor()
		if actor != nil {
			program.Actors = append(program.Actors, actor)
		} else {
			// Recovery: skip to the next plausible actor start.
			p.advance()
			for !p.at(lexer.TokenEOF) && !p.at(lexer.TokenActor) && !p.at(lexer.TokenSingle) {
				p.advance()
			}
		}
	}

	if len(program.Actors) > 0 {
		first := program.Actors[0].GetSpan()
		last := program.Actors[len(program.Actors)-1].GetSpan()
		program.Span = first.Union(last)
	}

	return program, p.errors
}

// Errors returns all collected parse errors
func (p *Parser) Errors() []Error {
	return p.errors
}

func (p *Parser) parseActor() *ast.ActorDeclaration {
	start := p.peek().Span

	single := false
	if p.at(lexer.TokenSingle) {
		single = true
		p.advance()
	}

	if !p.expect(lexer.TokenActor, "expected 'actor'") {
		return nil
	}

	name := p.parseIdentifier()
	if name == nil {
		return nil
	}

	if !p.expect(lexer.TokenLBrace, "expected '{' after actor name") {
		return nil
	}

	actor := &ast.ActorDeclaration{
		Name:   name,
		Single: single,
	}

	for !p.at(lexer.TokenRBrace) && !p.at(lexer.TokenEOF) {
		switch p.peek().Type {
		case lexer.TokenLet, lexer.TokenVar:
			if field := p.parseField(); field != nil {
				actor.Fields = append(actor.Fields, field)
			}
		case lexer.TokenInit, lexer.TokenImmediate:
			init := p.parseInitializer()
			if init == nil {
				continue
			}
			if actor.Init != nil {
				p.errorf(init.Span, "actor '%s' already has an initializer", name.Name)
				continue
			}
			actor.Init = init
		case lexer.TokenFunc, lexer.TokenAsync, lexer.TokenSequential,
			lexer.TokenPriority, lexer.TokenTaskGroup:
			if method := p.parseMethod(); method != nil {
				actor.Methods = append(actor.Methods, method)
			}
		default:
			p.errorf(p.peek().Span, "expected field or method declaration, found %s", p.peek().Type)
			p.advance()
		}
	}

	end := p.peek().Span
	p.expect(lexer.TokenRBrace, "expected '}' to close actor body")
	actor.Span = start.Union(end)

	return actor
}

func (p *Parser) parseField() *ast.FieldDeclaration {
	start := p.peek().Span
	mutable := p.at(lexer.TokenVar)
	p.advance() // let or var

	name := p.parseIdentifier()
	if name == nil {
		return nil
	}

	if !p.expect(lexer.TokenColon, "expected ':' after field name") {
		return nil
	}

	ownership := ast.OwnNone
	switch p.peek().Type {
	case lexer.TokenCopy:
		ownership = ast.OwnCopy
		p.advance()
	case lexer.TokenShared:
		ownership = ast.OwnShared
		p.advance()
	}

	fieldType := p.parseType()
	if fieldType == nil {
		return nil
	}

	return &ast.FieldDeclaration{
		Span:      start.Union(fieldType.Span),
		Name:      name,
		Mutable:   mutable,
		Type:      fieldType,
		Ownership: ownership,
	}
}

func (p *Parser) parseInitializer() *ast.InitializerDeclaration {
	start := p.peek().Span

	kind := ast.InitStandard
	if p.at(lexer.TokenImmediate) {
		kind = ast.InitImmediate
		p.advance()
	}

	if !p.expect(lexer.TokenInit, "expected 'init'") {
		return nil
	}

	params := p.parseParameterList()

	body := p.parseBlock()
	if body == nil {
		return nil
	}

	return &ast.InitializerDeclaration{
		Span:   start.Union(body.Span),
		Kind:   kind,
		Params: params,
		Body:   body,
	}
}

func (p *Parser) parseMethod() *ast.MethodDeclaration {
	start := p.peek().Span
	method := &ast.MethodDeclaration{}

	// Annotations may appear in any order before 'func'.
annotations:
	for {
		switch p.peek().Type {
		case lexer.TokenAsync:
			method.IsAsync = true
			p.advance()
		case lexer.TokenSequential:
			method.SequentialKeyword = true
			p.advance()
		case lexer.TokenTaskGroup:
			method.TaskGroupKeyword = true
			p.advance()
		case lexer.TokenPriority:
			p.advance()
			if !p.expect(lexer.TokenLParen, "expected '(' after 'priority'") {
				return nil
			}
			level := p.peek()
			if !p.expect(lexer.TokenIdentifier, "expected priority level") {
				return nil
			}
			method.PriorityName = level.Literal
			method.PrioritySpan = level.Span
			if !p.expect(lexer.TokenRParen, "expected ')' after priority level") {
				return nil
			}
		default:
			break annotations
		}
	}

	if !p.expect(lexer.TokenFunc, "expected 'func'") {
		return nil
	}

	name := p.parseIdentifier()
	if name == nil {
		return nil
	}
	method.Name = name

	method.Params = p.parseParameterList()

	if p.at(lexer.TokenArrow) {
		p.advance()
		method.ReturnType = p.parseType()
	}

	body := p.parseBlock()
	if body == nil {
		return nil
	}
	method.Body = body
	method.Span = start.Union(body.Span)

	return method
}

func (p *Parser) parseParameterList() []*ast.Parameter {
	if !p.expect(lexer.TokenLParen, "expected '('") {
		return nil
	}

	var params []*ast.Parameter
	for !p.at(lexer.TokenRParen) && !p.at(lexer.TokenEOF) {
		if len(params) > 0 && !p.expect(lexer.TokenComma, "expected ',' between parameters") {
			break
		}

		start := p.peek().Span
		isMove := false
		if p.at(lexer.TokenMove) {
			isMove = true
			p.advance()
		}

		name := p.parseIdentifier()
		if name == nil {
			break
		}
		if !p.expect(lexer.TokenColon, "expected ':' after parameter name") {
			break
		}
		paramType := p.parseType()
		if paramType == nil {
			break
		}

		params = append(params, &ast.Parameter{
			Span: start.Union(paramType.Span),
			Name: name,
			Type: paramType,
			Move: isMove,
		})
	}

	p.expect(lexer.TokenRParen, "expected ')' to close parameter list")

	return params
}

func (p *Parser) parseType() *ast.TypeRef {
	start := p.peek().Span

	var ref *ast.TypeRef
	switch p.peek().Type {
	case lexer.TokenLBracket:
		p.advance()
		elem := p.parseType()
		if elem == nil {
			return nil
		}
		end := p.peek().Span
		if !p.expect(lexer.TokenRBracket, "expected ']' to close array type") {
			return nil
		}
		ref = &ast.TypeRef{Span: start.Union(end), Elem: elem}
	case lexer.TokenIdentifier:
		tok := p.peek()
		p.advance()
		ref = &ast.TypeRef{Span: tok.Span, Name: tok.Literal}
	default:
		p.errorf(p.peek().Span, "expected type, found %s", p.peek().Type)
		return nil
	}

	if p.at(lexer.TokenQuestion) {
		ref.Optional = true
		ref.Span = ref.Span.Union(p.peek().Span)
		p.advance()
	}

	return ref
}

// ===== Statements =====

func (p *Parser) parseBlock() *ast.BlockStatement {
	start := p.peek().Span
	if !p.expect(lexer.TokenLBrace, "expected '{'") {
		return nil
	}

	block := &ast.BlockStatement{}
	for !p.at(lexer.TokenRBrace) && !p.at(lexer.TokenEOF) {
		stmt := p.parseStatement()
		if stmt == nil {
			p.advance() // recovery
			continue
		}
		block.Statements = append(block.Statements, stmt)
	}

	end := p.peek().Span
	p.expect(lexer.TokenRBrace, "expected '}' to close block")
	block.Span = start.Union(end)

	return block
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.peek().Type {
	case lexer.TokenLet:
		return p.parseLet()
	case lexer.TokenReturn:
		return p.parseReturn()
	case lexer.TokenIf:
		return p.parseIf()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseLet() ast.Statement {
	start := p.peek().Span
	p.advance() // let

	name := p.parseIdentifier()
	if name == nil {
		return nil
	}

	var declType *ast.TypeRef
	if p.at(lexer.TokenColon) {
		p.advance()
		declType = p.parseType()
		if declType == nil {
			return nil
		}
	}

	if !p.expect(lexer.TokenAssign, "expected '=' in let binding") {
		return nil
	}

	value := p.parseExpression()
	if value == nil {
		return nil
	}

	return &ast.LetStatement{
		Span:  start.Union(value.GetSpan()),
		Name:  name,
		Type:  declType,
		Value: value,
	}
}

func (p *Parser) parseReturn() ast.Statement {
	start := p.peek().Span
	p.advance() // return

	if p.at(lexer.TokenRBrace) {
		return &ast.ReturnStatement{Span: start}
	}

	value := p.parseExpression()
	if value == nil {
		return nil
	}

	return &ast.ReturnStatement{Span: start.Union(value.GetSpan()), Value: value}
}

func (p *Parser) parseIf() ast.Statement {
	start := p.peek().Span
	p.advance() // if

	condition := p.parseExpression()
	if condition == nil {
		return nil
	}

	then := p.parseBlock()
	if then == nil {
		return nil
	}

	stmt := &ast.IfStatement{
		Span:      start.Union(then.Span),
		Condition: condition,
		Then:      then,
	}

	if p.at(lexer.TokenElse) {
		p.advance()

		var elseStmt ast.Statement
		if p.at(lexer.TokenIf) {
			elseStmt = p.parseIf()
		} else {
			elseStmt = p.parseBlock()
		}
		if elseStmt == nil {
			return nil
		}

		stmt.Else = elseStmt
		stmt.Span = stmt.Span.Union(elseStmt.GetSpan())
	}

	return stmt
}

func (p *Parser) parseExpressionStatement() ast.Statement {
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}

	// An expression followed by '=' is an assignment.
	if p.at(lexer.TokenAssign) {
		switch expr.(type) {
		case *ast.Identifier, *ast.FieldAccessExpression:
		default:
			p.errorf(expr.GetSpan(), "invalid assignment target")
			return nil
		}
		p.advance()

		value := p.parseExpression()
		if value == nil {
			return nil
		}

		return &ast.AssignStatement{
			Span:   expr.GetSpan().Union(value.GetSpan()),
			Target: expr,
			Value:  value,
		}
	}

	return &ast.ExpressionStatement{Span: expr.GetSpan(), Expr: expr}
}

// ===== Expressions =====

func (p *Parser) parseExpression() ast.Expression {
	return p.parseComparison()
}

func (p *Parser) parseComparison() ast.Expression {
	left := p.parseAdditive()
	if left == nil {
		return nil
	}

	for p.at(lexer.TokenEq) || p.at(lexer.TokenNe) || p.at(lexer.TokenLt) ||
		p.at(lexer.TokenLe) || p.at(lexer.TokenGt) || p.at(lexer.TokenGe) {
		op := p.peek().Literal
		p.advance()

		right := p.parseAdditive()
		if right == nil {
			return nil
		}

		left = &ast.BinaryExpression{
			Span:     left.GetSpan().Union(right.GetSpan()),
			Left:     left,
			Operator: op,
			Right:    right,
		}
	}

	return left
}

func (p *Parser) parseAdditive() ast.Expression {
	left := p.parseTerm()
	if left == nil {
		return nil
	}

	for p.at(lexer.TokenPlus) || p.at(lexer.TokenMinus) {
		op := p.peek().Literal
		p.advance()

		right := p.parseTerm()
		if right == nil {
			return nil
		}

		left = &ast.BinaryExpression{
			Span:     left.GetSpan().Union(right.GetSpan()),
			Left:     left,
			Operator: op,
			Right:    right,
		}
	}

	return left
}

func (p *Parser) parseTerm() ast.Expression {
	left := p.parseUnary()
	if left == nil {
		return nil
	}

	for p.at(lexer.TokenMul) || p.at(lexer.TokenDiv) {
		op := p.peek().Literal
		p.advance()

		right := p.parseUnary()
		if right == nil {
			return nil
		}

		left = &ast.BinaryExpression{
			Span:     left.GetSpan().Union(right.GetSpan()),
			Left:     left,
			Operator: op,
			Right:    right,
		}
	}

	return left
}

func (p *Parser) parseUnary() ast.Expression {
	start := p.peek().Span

	switch p.peek().Type {
	case lexer.TokenMove:
		p.advance()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &ast.MoveExpression{Span: start.Union(operand.GetSpan()), Operand: operand}
	case lexer.TokenCopy:
		p.advance()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &ast.CopyExpression{Span: start.Union(operand.GetSpan()), Operand: operand}
	case lexer.TokenShared:
		p.advance()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &ast.SharedExpression{Span: start.Union(operand.GetSpan()), Operand: operand}
	case lexer.TokenAwait:
		p.advance()
		operand := p.parsePostfix()
		if operand == nil {
			return nil
		}
		call, ok := operand.(*ast.CallExpression)
		if !ok {
			p.errorf(operand.GetSpan(), "'await' requires a method call")
			return nil
		}
		return &ast.AwaitExpression{Span: start.Union(call.Span), Call: call}
	}

	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expression {
	expr := p.parsePrimary()
	if expr == nil {
		return nil
	}

	for p.at(lexer.TokenDot) {
		p.advance()

		name := p.parseIdentifier()
		if name == nil {
			return nil
		}

		if p.at(lexer.TokenLParen) {
			args := p.parseArgumentList()
			end := p.previous().Span
			expr = &ast.CallExpression{
				Span:      expr.GetSpan().Union(end),
				Receiver:  expr,
				Method:    name,
				Arguments: args,
			}
		} else {
			expr = &ast.FieldAccessExpression{
				Span:     expr.GetSpan().Union(name.Span),
				Receiver: expr,
				Field:    name,
			}
		}
	}

	return expr
}

func (p *Parser) parsePrimary() ast.Expression {
	tok := p.peek()

	switch tok.Type {
	case lexer.TokenIdentifier:
		p.advance()
		ident := &ast.Identifier{Span: tok.Span, Name: tok.Literal}
		// A bare identifier followed by '(' is a constructor call.
		if p.at(lexer.TokenLParen) {
			args := p.parseArgumentList()
			end := p.previous().Span
			return &ast.CallExpression{
				Span:      tok.Span.Union(end),
				Method:    ident,
				Arguments: args,
			}
		}
		return ident
	case lexer.TokenInteger:
		p.advance()
		return &ast.Literal{Span: tok.Span, Kind: ast.LiteralInt, Value: tok.Literal}
	case lexer.TokenFloat:
		p.advance()
		return &ast.Literal{Span: tok.Span, Kind: ast.LiteralFloat, Value: tok.Literal}
	case lexer.TokenString:
		p.advance()
		return &ast.Literal{Span: tok.Span, Kind: ast.LiteralString, Value: tok.Literal}
	case lexer.TokenBool:
		p.advance()
		return &ast.Literal{Span: tok.Span, Kind: ast.LiteralBool, Value: tok.Literal}
	case lexer.TokenLParen:
		p.advance()
		expr := p.parseExpression()
		if expr == nil {
			return nil
		}
		p.expect(lexer.TokenRParen, "expected ')' to close expression")
		return expr
	}

	p.errorf(tok.Span, "expected expression, found %s", tok.Type)
	return nil
}

func (p *Parser) parseArgumentList() []ast.Expression {
	p.expect(lexer.TokenLParen, "expected '('")

	var args []ast.Expression
	for !p.at(lexer.TokenRParen) && !p.at(lexer.TokenEOF) {
		if len(args) > 0 && !p.expect(lexer.TokenComma, "expected ',' between arguments") {
			break
		}

		arg := p.parseExpression()
		if arg == nil {
			break
		}
		args = append(args, arg)
	}

	p.expect(lexer.TokenRParen, "expected ')' to close argument list")

	return args
}

func (p *Parser) parseIdentifier() *ast.Identifier {
	tok := p.peek()
	if tok.Type != lexer.TokenIdentifier {
		p.errorf(tok.Span, "expected identifier, found %s", tok.Type)
		return nil
	}
	p.advance()

	return &ast.Identifier{Span: tok.Span, Name: tok.Literal}
}

// ===== Token stream helpers =====

func (p *Parser) peek() lexer.Token {
	if p.pos >= len(p.tokens) {
		return lexer.Token{Type: lexer.TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) previous() lexer.Token {
	if p.pos == 0 {
		return lexer.Token{Type: lexer.TokenEOF}
	}
	return p.tokens[p.pos-1]
}

func (p *Parser) at(tokType lexer.TokenType) bool {
	return p.peek().Type == tokType
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *Parser) expect(tokType lexer.TokenType, message string) bool {
	if p.at(tokType) {
		p.advance()
		return true
	}
	p.errorf(p.peek().Span, "%s, found %s", message, p.peek().Type)
	return false
}

func (p *Parser) errorf(span position.Span, format string, args ...interface{}) {
	p.errors = append(p.errors, Error{Span: span, Message: fmt.Sprintf(format, args...)})
}
