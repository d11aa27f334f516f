package formula

import (
	"fmt"
	"strings"
)

// TokenType represents different types of tokens in programs
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenString
	TokenBoolean
	TokenErrorLiteral
	TokenRef
	TokenFunction
	TokenIdentifier
	TokenUnaryPrefixOp
	TokenUnaryPostfixOp
	TokenBinaryOp
	TokenComma
	TokenSemicolon
	TokenLeftParen
	TokenRightParen
	TokenLeftBracket
	TokenRightBracket
	TokenLeftBrace
	TokenRightBrace
	TokenWhitespace
	TokenError
)

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
	BinOpConcat
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
	UnaryOpPercent
)

// character classification constants. slightly easier to read.
const (
	charNull       = 0
	charTab        = '\t'
	charNewline    = '\n'
	charReturn     = '\r'
	charSpace      = ' '
	charQuote      = '"'
	charApostrophe = '\''
	charPercent    = '%'
	charAmpersand  = '&'
	charLParen     = '('
	charRParen     = ')'
	charLBracket   = '['
	charRBracket   = ']'
	charLBrace     = '{'
	charRBrace     = '}'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charSemicolon  = ';'
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charColon      = ':'
	charLess       = '<'
	charEqual      = '='
	charGreater    = '>'
	charCaret      = '^'
	charUnderscore = '_'
	charExclaim    = '!'
	charDollar     = '$'
	charHash       = '#'
)

// Token is a lexical token. Text is the exact source slice so a token stream
// can be turned back into the original program byte for byte; Value is the
// decoded form (unquoted strings, upper-cased function names).
type Token struct {
	Type  TokenType
	Value string
	Text  string
	Pos   int // rune position in input
}

// TokenState tracks what the previous significant token was, which decides
// whether + and - are unary.
type TokenState int

const (
	StateStart TokenState = iota
	StateAfterValue
	StateAfterOperator
	StateAfterOpen
	StateAfterSeparator
)

// SyntaxError reports a program that cannot be tokenized or parsed.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d: %s", e.Pos, e.Msg)
}

// Lexer tokenizes formula programs. Programs do not include the leading '='.
type Lexer struct {
	input string
	runes []rune // UTF-8 aware representation
	pos   int
	state TokenState
	depth []rune // open brackets awaiting their closer
}

func NewLexer(input string) *Lexer {
	return &Lexer{
		input: input,
		runes: []rune(input),
		state: StateStart,
	}
}

var errorLiterals = []string{"#NULL!", "#DIV/0!", "#VALUE!", "#REF!", "#NAME?", "#NUM!", "#N/A", "#ERROR!", "#CIRC!", "#SPILL!"}

// Tokenize returns every token including whitespace, terminated by EOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for l.pos < len(l.runes) {
		tok := l.nextToken()
		if tok.Type == TokenError {
			return nil, &SyntaxError{Pos: tok.Pos, Msg: tok.Value}
		}
		tok.Text = l.substring(tok.Pos, l.pos)
		tokens = append(tokens, tok)
		l.updateState(tok.Type)
	}
	if len(l.depth) > 0 {
		return nil, &SyntaxError{Pos: l.pos, Msg: fmt.Sprintf("missing closing %q", closerOf(l.depth[len(l.depth)-1]))}
	}
	tokens = append(tokens, Token{Type: TokenEOF, Pos: l.pos})
	return tokens, nil
}

func closerOf(open rune) rune {
	switch open {
	case charLBracket:
		return charRBracket
	case charLBrace:
		return charRBrace
	}
	return charRParen
}

func (l *Lexer) updateState(tokenType TokenType) {
	switch tokenType {
	case TokenNumber, TokenString, TokenBoolean, TokenErrorLiteral, TokenRef, TokenIdentifier,
		TokenRightParen, TokenRightBracket, TokenRightBrace, TokenUnaryPostfixOp:
		l.state = StateAfterValue
	case TokenUnaryPrefixOp, TokenBinaryOp:
		l.state = StateAfterOperator
	case TokenLeftParen, TokenLeftBracket, TokenLeftBrace, TokenFunction:
		l.state = StateAfterOpen
	case TokenComma, TokenSemicolon:
		l.state = StateAfterSeparator
	}
}

func (l *Lexer) open(ch rune, t TokenType, start int) Token {
	l.pos++
	l.depth = append(l.depth, ch)
	return Token{Type: t, Value: string(ch), Pos: start}
}

func (l *Lexer) close(ch rune, t TokenType, start int) Token {
	l.pos++
	if len(l.depth) == 0 || closerOf(l.depth[len(l.depth)-1]) != ch {
		return Token{Type: TokenError, Value: "unexpected " + string(ch), Pos: start}
	}
	l.depth = l.depth[:len(l.depth)-1]
	return Token{Type: t, Value: string(ch), Pos: start}
}

// nextToken returns the next token from the input
func (l *Lexer) nextToken() Token {
	startPos := l.pos
	ch := l.current()

	if isSpace(ch) {
		for l.pos < len(l.runes) && isSpace(l.current()) {
			l.pos++
		}
		return Token{Type: TokenWhitespace, Value: l.substring(startPos, l.pos), Pos: startPos}
	}

	switch {
	case ch == charQuote:
		return l.scanString()
	case ch == charApostrophe:
		return l.scanQuotedGrid()
	case ch == charDollar:
		if end, ok := l.matchRef(l.pos); ok {
			l.pos = end
			return Token{Type: TokenRef, Value: l.substring(startPos, end), Pos: startPos}
		}
		l.pos++
		return Token{Type: TokenError, Value: "unexpected '$'", Pos: startPos}
	case isDigit(ch):
		if end, ok := l.matchRef(l.pos); ok {
			l.pos = end
			return Token{Type: TokenRef, Value: l.substring(startPos, end), Pos: startPos}
		}
		return l.scanNumber()
	case ch == charPeriod && isDigit(l.peek(1)):
		return l.scanNumber()
	case ch == charHash:
		return l.scanErrorLiteral()
	case isAlpha(ch) || ch == charUnderscore:
		return l.scanIdentifierOrRef()
	}

	switch ch {
	case charLParen:
		return l.open(ch, TokenLeftParen, startPos)
	case charRParen:
		return l.close(ch, TokenRightParen, startPos)
	case charLBracket:
		return l.open(ch, TokenLeftBracket, startPos)
	case charRBracket:
		return l.close(ch, TokenRightBracket, startPos)
	case charLBrace:
		return l.open(ch, TokenLeftBrace, startPos)
	case charRBrace:
		return l.close(ch, TokenRightBrace, startPos)
	case charComma:
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: startPos}
	case charSemicolon:
		l.pos++
		return Token{Type: TokenSemicolon, Value: ";", Pos: startPos}
	case charPlus, charMinus:
		l.pos++
		if l.isUnaryContext() {
			return Token{Type: TokenUnaryPrefixOp, Value: string(ch), Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}
	case charPercent:
		l.pos++
		return Token{Type: TokenUnaryPostfixOp, Value: "%", Pos: startPos}
	case charAsterisk, charSlash, charCaret, charAmpersand, charEqual:
		l.pos++
		return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}
	case charLess, charGreater, charExclaim:
		return l.scanComparison()
	}

	l.pos++
	return Token{Type: TokenError, Value: "unexpected character: " + string(ch), Pos: startPos}
}

// helper methods for character navigation and classification

// substring returns a substring of the original input based on rune positions
func (l *Lexer) substring(start, end int) string {
	if start < 0 || end > len(l.runes) || start > end {
		return ""
	}
	return string(l.runes[start:end])
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	return l.at(l.pos + offset)
}

func (l *Lexer) at(pos int) rune {
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func isSpace(ch rune) bool {
	return ch == charSpace || ch == charTab || ch == charNewline || ch == charReturn
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isUpper(ch rune) bool {
	return ch >= 'A' && ch <= 'Z'
}

func isAlpha(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || isUpper(ch)
}

func isIdentChar(ch rune) bool {
	return isAlpha(ch) || isDigit(ch) || ch == charUnderscore || ch == charPeriod
}

// scanNumber scans a number token including decimals and scientific notation
func (l *Lexer) scanNumber() Token {
	startPos := l.pos

	for isDigit(l.current()) {
		l.pos++
	}

	if l.current() == charPeriod && isDigit(l.peek(1)) {
		l.pos++ // consume '.'
		for isDigit(l.current()) {
			l.pos++
		}
	}

	if l.current() == 'e' || l.current() == 'E' {
		savedPos := l.pos
		l.pos++ // consume 'e' or 'E'
		if l.current() == charPlus || l.current() == charMinus {
			l.pos++
		}
		if !isDigit(l.current()) {
			// not scientific notation, restore position
			l.pos = savedPos
		} else {
			for isDigit(l.current()) {
				l.pos++
			}
		}
	}

	return Token{Type: TokenNumber, Value: l.substring(startPos, l.pos), Pos: startPos}
}

// scanString scans a string literal with support for double-quote escapes
func (l *Lexer) scanString() Token {
	startPos := l.pos
	l.pos++ // consume opening quote

	var result []rune
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch != charQuote {
			result = append(result, ch)
			l.pos++
			continue
		}
		if l.peek(1) == charQuote {
			result = append(result, charQuote)
			l.pos += 2
			continue
		}
		l.pos++ // consume closing quote
		return Token{Type: TokenString, Value: string(result), Pos: startPos}
	}
	return Token{Type: TokenError, Value: "unclosed string literal", Pos: startPos}
}

func (l *Lexer) scanErrorLiteral() Token {
	startPos := l.pos
	rest := string(l.runes[l.pos:])
	for _, lit := range errorLiterals {
		if strings.HasPrefix(rest, lit) {
			l.pos += len([]rune(lit))
			return Token{Type: TokenErrorLiteral, Value: lit, Pos: startPos}
		}
	}
	l.pos++
	return Token{Type: TokenError, Value: "unknown error literal", Pos: startPos}
}

// scanIdentifierOrRef scans functions, booleans, references, grid-qualified
// references and plain identifiers.
func (l *Lexer) scanIdentifierOrRef() Token {
	startPos := l.pos
	for isIdentChar(l.current()) {
		l.pos++
	}
	word := l.substring(startPos, l.pos)

	if l.current() == charExclaim && l.peek(1) != charEqual {
		return l.scanQualified(startPos, l.pos+1)
	}
	if l.current() == charLParen {
		return Token{Type: TokenFunction, Value: strings.ToUpper(word), Pos: startPos}
	}
	if upper := strings.ToUpper(word); upper == "TRUE" || upper == "FALSE" {
		return Token{Type: TokenBoolean, Value: upper, Pos: startPos}
	}
	if end, ok := l.matchRef(startPos); ok {
		l.pos = end
		return Token{Type: TokenRef, Value: l.substring(startPos, end), Pos: startPos}
	}
	return Token{Type: TokenIdentifier, Value: word, Pos: startPos}
}

// scanQuotedGrid scans 'Grid Name'!REF.
func (l *Lexer) scanQuotedGrid() Token {
	startPos := l.pos
	i := l.pos + 1
	for i < len(l.runes) {
		if l.runes[i] == charApostrophe {
			if l.at(i+1) == charApostrophe {
				i += 2
				continue
			}
			break
		}
		i++
	}
	if i >= len(l.runes) {
		l.pos = i
		return Token{Type: TokenError, Value: "unclosed grid name", Pos: startPos}
	}
	if l.at(i+1) != charExclaim {
		l.pos = i + 1
		return Token{Type: TokenError, Value: "expected '!' after grid name", Pos: startPos}
	}
	return l.scanQualified(startPos, i+2)
}

func (l *Lexer) scanQualified(startPos, bodyPos int) Token {
	end, ok := l.matchRef(bodyPos)
	if !ok {
		l.pos = bodyPos
		return Token{Type: TokenError, Value: "invalid reference after grid name", Pos: startPos}
	}
	l.pos = end
	return Token{Type: TokenRef, Value: l.substring(startPos, end), Pos: startPos}
}

type endpointKind int

const (
	endpointNone endpointKind = iota
	endpointCell
	endpointCol
	endpointRow
)

// matchEndpoint matches [$]COL[$]ROW, [$]COL or [$]ROW starting at pos.
func (l *Lexer) matchEndpoint(pos int) (int, endpointKind) {
	i := pos
	leading := l.at(i) == charDollar
	if leading {
		i++
	}
	letters := i
	for isUpper(l.at(i)) {
		i++
	}
	hasCol := i > letters
	afterCol := i
	middle := l.at(i) == charDollar
	if middle {
		i++
	}
	if isDigit(l.at(i)) && l.at(i) != '0' {
		for isDigit(l.at(i)) {
			i++
		}
		if hasCol {
			return i, endpointCell
		}
		if leading && middle {
			return pos, endpointNone
		}
		return i, endpointRow
	}
	if hasCol {
		return afterCol, endpointCol
	}
	return pos, endpointNone
}

// matchRef matches a reference body: a cell, or two endpoints joined by ':'.
// A lone column or row is not a reference inside programs.
func (l *Lexer) matchRef(pos int) (int, bool) {
	end, kind := l.matchEndpoint(pos)
	if kind == endpointNone {
		return pos, false
	}
	if l.at(end) == charColon {
		if end2, kind2 := l.matchEndpoint(end + 1); kind2 != endpointNone && !isIdentChar(l.at(end2)) && l.at(end2) != charLParen {
			return end2, true
		}
	}
	if kind != endpointCell || isIdentChar(l.at(end)) || l.at(end) == charLParen {
		return pos, false
	}
	return end, true
}

func (l *Lexer) scanComparison() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++
	next := l.current()
	switch {
	case ch == charLess && next == charEqual:
		l.pos++
		return Token{Type: TokenBinaryOp, Value: "<=", Pos: startPos}
	case ch == charLess && next == charGreater:
		l.pos++
		return Token{Type: TokenBinaryOp, Value: "<>", Pos: startPos}
	case ch == charGreater && next == charEqual:
		l.pos++
		return Token{Type: TokenBinaryOp, Value: ">=", Pos: startPos}
	case ch == charExclaim && next == charEqual:
		l.pos++
		return Token{Type: TokenBinaryOp, Value: "!=", Pos: startPos}
	case ch == charExclaim:
		return Token{Type: TokenError, Value: "unexpected '!'", Pos: startPos}
	}
	return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}
}

// isUnaryContext checks if the current context allows for unary operators
func (l *Lexer) isUnaryContext() bool {
	return l.state != StateAfterValue
}
