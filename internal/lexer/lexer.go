// Package lexer implements the Replica lexical analyzer.
// It turns Replica source text into a position-annotated token stream
// consumed by the parser.
package lexer

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/replica-lang/replica/internal/position"
)

// TokenType represents the type of a token
type TokenType int

// String returns a string representation of the token type
func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(tt))
}

// Token types for the Replica language
const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenIdentifier
	TokenInteger
	TokenFloat
	TokenString
	TokenBool

	// Keywords
	TokenActor
	TokenSingle
	TokenVar
	TokenLet
	TokenFunc
	TokenInit
	TokenAsync
	TokenSequential
	TokenImmediate
	TokenPriority
	TokenTaskGroup
	TokenMove
	TokenCopy
	TokenShared
	TokenAwait
	TokenIf
	TokenElse
	TokenReturn

	// Operators
	TokenPlus
	TokenMinus
	TokenMul
	TokenDiv
	TokenAssign
	TokenEq
	TokenNe
	TokenLt
	TokenLe
	TokenGt
	TokenGe
	TokenArrow

	// Delimiters
	TokenLParen
	TokenRParen
	TokenLBrace
	TokenRBrace
	TokenLBracket
	TokenRBracket
	TokenComma
	TokenDot
	TokenColon
	TokenQuestion
)

// Token represents a lexical token with position information
type Token struct {
	Type    TokenType
	Literal string
	Span    position.Span
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("{Type: %s, Literal: %q, Span: %s}", t.Type, t.Literal, t.Span)
}

// tokenNames provides string representations for token types
var tokenNames = map[TokenType]string{
	TokenEOF:   "EOF",
	TokenError: "ERROR",

	TokenIdentifier: "IDENTIFIER",
	TokenInteger:    "INTEGER",
	TokenFloat:      "FLOAT",
	TokenString:     "STRING",
	TokenBool:       "BOOL",

	TokenActor:      "ACTOR",
	TokenSingle:     "SINGLE",
	TokenVar:        "VAR",
	TokenLet:        "LET",
	TokenFunc:       "FUNC",
	TokenInit:       "INIT",
	TokenAsync:      "ASYNC",
	TokenSequential: "SEQUENTIAL",
	TokenImmediate:  "IMMEDIATE",
	TokenPriority:   "PRIORITY",
	TokenTaskGroup:  "TASKGROUP",
	TokenMove:       "MOVE",
	TokenCopy:       "COPY",
	TokenShared:     "SHARED",
	TokenAwait:      "AWAIT",
	TokenIf:         "IF",
	TokenElse:       "ELSE",
	TokenReturn:     "RETURN",

	TokenPlus:   "PLUS",
	TokenMinus:  "MINUS",
	TokenMul:    "MUL",
	TokenDiv:    "DIV",
	TokenAssign: "ASSIGN",
	TokenEq:     "EQ",
	TokenNe:     "NE",
	TokenLt:     "LT",
	TokenLe:     "LE",
	TokenGt:     "GT",
	TokenGe:     "GE",
	TokenArrow:  "ARROW",

	TokenLParen:   "LPAREN",
	TokenRParen:   "RPAREN",
	TokenLBrace:   "LBRACE",
	TokenRBrace:   "RBRACE",
	TokenLBracket: "LBRACKET",
	TokenRBracket: "RBRACKET",
	TokenComma:    "COMMA",
	TokenDot:      "DOT",
	TokenColon:    "COLON",
	TokenQuestion: "QUESTION",
}

// keywords maps string keywords to their token types
var keywords = map[string]TokenType{
	"actor":      TokenActor,
	"single":     TokenSingle,
	"var":        TokenVar,
	"let":        TokenLet,
	"func":       TokenFunc,
	"init":       TokenInit,
	"async":      TokenAsync,
	"sequential": TokenSequential,
	"immediate":  TokenImmediate,
	"priority":   TokenPriority,
	"taskgroup":  TokenTaskGroup,
	"move":       TokenMove,
	"copy":       TokenCopy,
	"shared":     TokenShared,
	"await":      TokenAwait,
	"if":         TokenIf,
	"else":       TokenElse,
	"return":     TokenReturn,
	"true":       TokenBool,
	"false":      TokenBool,
}

// Lexer tokenizes Replica source code
type Lexer struct {
	input    string
	filename string
	pos      int // current byte offset
	line     int // current 1-based line
	column   int // current 1-based column
}

// New creates a lexer for the given source text
func New(input, filename string) *Lexer {
	return &Lexer{
		input:    input,
		filename: filename,
		line:     1,
		column:   1,
	}
}

// Tokenize scans the entire input and returns all tokens up to and
// including the EOF token.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

// NextToken scans and returns the next token
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	start := l.currentPosition()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Span: position.Span{Start: start, End: start}}
	}

	ch := l.peek()

	switch {
	case isIdentStart(ch):
		return l.scanIdentifier(start)
	case unicode.IsDigit(ch):
		return l.scanNumber(start)
	case ch == '"':
		return l.scanString(start)
	}

	l.advance()

	switch ch {
	case '+':
		return l.makeToken(TokenPlus, "+", start)
	case '-':
		if l.peek() == '>' {
			l.advance()
			return l.makeToken(TokenArrow, "->", start)
		}
		return l.makeToken(TokenMinus, "-", start)
	case '*':
		return l.makeToken(TokenMul, "*", start)
	case '/':
		return l.makeToken(TokenDiv, "/", start)
	case '=':
		if l.peek() == '=' {
			l.advance()
			return l.makeToken(TokenEq, "==", start)
		}
		return l.makeToken(TokenAssign, "=", start)
	case '!':
		if l.peek() == '=' {
			l.advance()
			return l.makeToken(TokenNe, "!=", start)
		}
	case '<':
		if l.peek() == '=' {
			l.advance()
			return l.makeToken(TokenLe, "<=", start)
		}
		return l.makeToken(TokenLt, "<", start)
	case '>':
		if l.peek() == '=' {
			l.advance()
			return l.makeToken(TokenGe, ">=", start)
		}
		return l.makeToken(TokenGt, ">", start)
	case '(':
		return l.makeToken(TokenLParen, "(", start)
	case ')':
		return l.makeToken(TokenRParen, ")", start)
	case '{':
		return l.makeToken(TokenLBrace, "{", start)
	case '}':
		return l.makeToken(TokenRBrace, "}", start)
	case '[':
		return l.makeToken(TokenLBracket, "[", start)
	case ']':
		return l.makeToken(TokenRBracket, "]", start)
	case ',':
		return l.makeToken(TokenComma, ",", start)
	case '.':
		return l.makeToken(TokenDot, ".", start)
	case ':':
		return l.makeToken(TokenColon, ":", start)
	case '?':
		return l.makeToken(TokenQuestion, "?", start)
	}

	return l.makeToken(TokenError, string(ch), start)
}

func (l *Lexer) scanIdentifier(start position.Position) Token {
	for l.pos < len(l.input) && isIdentPart(l.peek()) {
		l.advance()
	}

	literal := l.input[start.Offset:l.pos]
	tokType := TokenIdentifier
	if kw, ok := keywords[literal]; ok {
		tokType = kw
	}

	return l.makeToken(tokType, literal, start)
}

func (l *Lexer) scanNumber(start position.Position) Token {
	tokType := TokenInteger
	for l.pos < len(l.input) && (unicode.IsDigit(l.peek()) || l.peek() == '.') {
		if l.peek() == '.' {
			// Only one decimal point, and not a method-call dot.
			next := l.peekAt(l.pos + 1)
			if tokType == TokenFloat || !unicode.IsDigit(next) {
				break
			}
			tokType = TokenFloat
		}
		l.advance()
	}

	return l.makeToken(tokType, l.input[start.Offset:l.pos], start)
}

func (l *Lexer) scanString(start position.Position) Token {
	l.advance() // opening quote

	contentStart := l.pos
	for l.pos < len(l.input) && l.peek() != '"' {
		l.advance()
	}

	if l.pos >= len(l.input) {
		return l.makeToken(TokenError, "unterminated string literal", start)
	}

	literal := l.input[contentStart:l.pos]
	l.advance() // closing quote

	return l.makeToken(TokenString, literal, start)
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.input) {
		ch := l.peek()
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			l.advance()
		case ch == '/' && l.peekAt(l.pos+1) == '/':
			for l.pos < len(l.input) && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *Lexer) peek() rune {
	return l.peekAt(l.pos)
}

func (l *Lexer) peekAt(offset int) rune {
	if offset >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[offset:])
	return r
}

func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
}

func (l *Lexer) currentPosition() position.Position {
	return position.Position{
		Filename: l.filename,
		Line:     l.line,
		Column:   l.column,
		Offset:   l.pos,
	}
}

func (l *Lexer) makeToken(tokType TokenType, literal string, start position.Position) Token {
	return Token{
		Type:    tokType,
		Literal: literal,
		Span:    position.Span{Start: start, End: l.currentPosition()},
	}
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}
