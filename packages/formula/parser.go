package formula

import (
	"fmt"
	"strings"
)

// Parser parses tokens into an AST. Whitespace tokens are dropped before
// parsing; they only matter for round-tripping source text.
type Parser struct {
	tokens []Token
	pos    int
}

func NewParser(tokens []Token) *Parser {
	significant := make([]Token, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Type != TokenWhitespace {
			significant = append(significant, tok)
		}
	}
	return &Parser{tokens: significant}
}

// Parse parses a complete program.
func (p *Parser) Parse() (Node, error) {
	if p.peek().Type == TokenEOF {
		return nil, p.errorf("empty program")
	}
	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, &SyntaxError{Pos: tok.Pos, Msg: fmt.Sprintf("unexpected token after expression: %s", tok.Text)}
	}
	return node, nil
}

// Parse tokenizes and parses src.
func Parse(src string) (Node, error) {
	tokens, err := NewLexer(src).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) errorf(format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: p.peek().Pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) expect(t TokenType, what string) (Token, error) {
	tok := p.peek()
	if tok.Type != t {
		if tok.Type == TokenEOF {
			return tok, p.errorf("expected %s, got end of program", what)
		}
		return tok, p.errorf("expected %s, got %q", what, tok.Text)
	}
	p.pos++
	return tok, nil
}

var (
	comparisonOps     = map[string]BinaryOp{"=": BinOpEqual, "<>": BinOpNotEqual, "!=": BinOpNotEqual, "<": BinOpLess, "<=": BinOpLessEqual, ">": BinOpGreater, ">=": BinOpGreaterEqual}
	concatenationOps  = map[string]BinaryOp{"&": BinOpConcat}
	additionOps       = map[string]BinaryOp{"+": BinOpAdd, "-": BinOpSubtract}
	multiplicationOps = map[string]BinaryOp{"*": BinOpMultiply, "/": BinOpDivide}
)

// parseBinary parses a left-associative chain of the given operators.
func (p *Parser) parseBinary(ops map[string]BinaryOp, next func() (Node, error)) (Node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp {
			return left, nil
		}
		op, ok := ops[tok.Value]
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{
			Op:    op,
			Left:  left,
			Right: right,
			Pos:   NodePosition{Start: left.Position().Start, End: right.Position().End},
		}
	}
}

// parseComparison handles comparison operators (lowest precedence)
func (p *Parser) parseComparison() (Node, error) {
	return p.parseBinary(comparisonOps, p.parseConcatenation)
}

func (p *Parser) parseConcatenation() (Node, error) {
	return p.parseBinary(concatenationOps, p.parseAddition)
}

func (p *Parser) parseAddition() (Node, error) {
	return p.parseBinary(additionOps, p.parseMultiplication)
}

func (p *Parser) parseMultiplication() (Node, error) {
	return p.parseBinary(multiplicationOps, p.parsePower)
}

// parsePower handles exponentiation, which is right-associative
func (p *Parser) parsePower() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type == TokenBinaryOp && tok.Value == "^" {
		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return &BinaryOpNode{
			Op:    BinOpPower,
			Left:  left,
			Right: right,
			Pos:   NodePosition{Start: left.Position().Start, End: right.Position().End},
		}, nil
	}
	return left, nil
}

func (p *Parser) parseUnary() (Node, error) {
	tok := p.peek()
	if tok.Type != TokenUnaryPrefixOp {
		return p.parsePostfix()
	}
	op := UnaryOpPlus
	if tok.Value == "-" {
		op = UnaryOpMinus
	}
	p.pos++
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &UnaryOpNode{
		Op:      op,
		Operand: operand,
		Pos:     NodePosition{Start: tok.Pos, End: operand.Position().End},
	}, nil
}

// parsePostfix handles percent and calls on arbitrary values.
func (p *Parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		switch tok.Type {
		case TokenUnaryPostfixOp:
			p.pos++
			node = &UnaryOpNode{
				Op:      UnaryOpPercent,
				Operand: node,
				Pos:     NodePosition{Start: node.Position().Start, End: tok.Pos + 1},
			}
		case TokenLeftParen:
			p.pos++
			args, end, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			node = &CallNode{
				Callee: node,
				Args:   args,
				Pos:    NodePosition{Start: node.Position().Start, End: end},
			}
		default:
			return node, nil
		}
	}
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.peek()
	pos := NodePosition{Start: tok.Pos, End: tok.Pos + len([]rune(tok.Text))}

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := parseNumberLiteral(tok.Value)
		if err != nil {
			return nil, &SyntaxError{Pos: tok.Pos, Msg: fmt.Sprintf("invalid number: %s", tok.Value)}
		}
		return &NumberNode{Value: val, Pos: pos, Original: tok.Text}, nil

	case TokenString:
		p.pos++
		return &StringNode{Value: tok.Value, Pos: pos}, nil

	case TokenBoolean:
		p.pos++
		return &BooleanNode{Value: tok.Value == "TRUE", Pos: pos}, nil

	case TokenErrorLiteral:
		p.pos++
		for code, marker := range ErrorMapper {
			if marker == tok.Value {
				return &ErrorNode{Code: code, Pos: pos}, nil
			}
		}
		return nil, &SyntaxError{Pos: tok.Pos, Msg: fmt.Sprintf("unknown error literal: %s", tok.Value)}

	case TokenRef:
		p.pos++
		return &RefNode{Text: tok.Value, Pos: pos}, nil

	case TokenIdentifier:
		p.pos++
		return &NameNode{Name: tok.Value, Pos: pos}, nil

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRightParen, "')'"); err != nil {
			return nil, err
		}
		return node, nil

	case TokenLeftBrace:
		return p.parseArrayLiteral()

	case TokenLeftBracket:
		return p.parseList()

	case TokenEOF:
		return nil, p.errorf("unexpected end of program")
	}
	return nil, p.errorf("unexpected token: %s", tok.Text)
}

// parseArguments parses a comma separated list up to and including the
// closing parenthesis. The opening parenthesis is already consumed.
func (p *Parser) parseArguments() ([]Node, int, error) {
	args := []Node{}
	if tok := p.peek(); tok.Type == TokenRightParen {
		p.pos++
		return args, tok.Pos + 1, nil
	}
	for {
		arg, err := p.parseComparison()
		if err != nil {
			return nil, 0, err
		}
		args = append(args, arg)

		tok := p.peek()
		switch tok.Type {
		case TokenRightParen:
			p.pos++
			return args, tok.Pos + 1, nil
		case TokenComma:
			p.pos++
		case TokenEOF:
			return nil, 0, p.errorf("unexpected end in function arguments")
		default:
			return nil, 0, p.errorf("expected ',' or ')' in function arguments")
		}
	}
}

func (p *Parser) parseFunctionCall() (Node, error) {
	funcTok := p.tokens[p.pos]
	p.pos++
	if _, err := p.expect(TokenLeftParen, "'(' after function name"); err != nil {
		return nil, err
	}
	args, end, err := p.parseArguments()
	if err != nil {
		return nil, err
	}
	pos := NodePosition{Start: funcTok.Pos, End: end}

	if funcTok.Value == "LAMBDA" {
		return lambdaFromArgs(funcTok, args, pos)
	}
	return &FunctionCallNode{Name: funcTok.Value, Text: funcTok.Text, Args: args, Pos: pos}, nil
}

// lambdaFromArgs builds LAMBDA(p1, p2, ..., body). Every argument but the
// last must be a bare name.
func lambdaFromArgs(funcTok Token, args []Node, pos NodePosition) (Node, error) {
	if len(args) == 0 {
		return nil, &SyntaxError{Pos: funcTok.Pos, Msg: "LAMBDA requires a body"}
	}
	params := make([]string, 0, len(args)-1)
	seen := make(map[string]bool, len(args)-1)
	for _, arg := range args[:len(args)-1] {
		name, ok := arg.(*NameNode)
		if !ok {
			return nil, &SyntaxError{Pos: arg.Position().Start, Msg: fmt.Sprintf("LAMBDA parameter must be a name, got %s", arg.String())}
		}
		if seen[name.Name] {
			return nil, &SyntaxError{Pos: arg.Position().Start, Msg: fmt.Sprintf("duplicate LAMBDA parameter %s", name.Name)}
		}
		seen[name.Name] = true
		params = append(params, name.Name)
	}
	return &LambdaNode{Params: params, Body: args[len(args)-1], Pos: pos}, nil
}

// parseArrayLiteral parses {1,2;3,4}.
func (p *Parser) parseArrayLiteral() (Node, error) {
	open := p.tokens[p.pos]
	p.pos++
	rows := [][]Node{{}}
	for {
		item, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], item)

		tok := p.peek()
		switch tok.Type {
		case TokenComma:
			p.pos++
		case TokenSemicolon:
			p.pos++
			rows = append(rows, []Node{})
		case TokenRightBrace:
			p.pos++
			for _, row := range rows {
				if len(row) != len(rows[0]) {
					return nil, &SyntaxError{Pos: open.Pos, Msg: "array rows have different lengths"}
				}
			}
			return &ArrayNode{Rows: rows, Pos: NodePosition{Start: open.Pos, End: tok.Pos + 1}}, nil
		default:
			return nil, p.errorf("expected ',', ';' or '}' in array")
		}
	}
}

// parseList parses [a, b, ...]. An empty list parses and evaluates to an
// error value.
func (p *Parser) parseList() (Node, error) {
	open := p.tokens[p.pos]
	p.pos++
	items := []Node{}
	if tok := p.peek(); tok.Type == TokenRightBracket {
		p.pos++
		return &ListNode{Items: items, Pos: NodePosition{Start: open.Pos, End: tok.Pos + 1}}, nil
	}
	for {
		item, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		tok := p.peek()
		switch tok.Type {
		case TokenComma:
			p.pos++
		case TokenRightBracket:
			p.pos++
			return &ListNode{Items: items, Pos: NodePosition{Start: open.Pos, End: tok.Pos + 1}}, nil
		default:
			return nil, p.errorf("expected ',' or ']' in list")
		}
	}
}

// Walk calls fn for n and every node beneath it, parents first.
func Walk(n Node, fn func(Node)) {
	fn(n)
	switch node := n.(type) {
	case *BinaryOpNode:
		Walk(node.Left, fn)
		Walk(node.Right, fn)
	case *UnaryOpNode:
		Walk(node.Operand, fn)
	case *FunctionCallNode:
		for _, arg := range node.Args {
			Walk(arg, fn)
		}
	case *CallNode:
		Walk(node.Callee, fn)
		for _, arg := range node.Args {
			Walk(arg, fn)
		}
	case *LambdaNode:
		Walk(node.Body, fn)
	case *ArrayNode:
		for _, row := range node.Rows {
			for _, item := range row {
				Walk(item, fn)
			}
		}
	case *ListNode:
		for _, item := range node.Items {
			Walk(item, fn)
		}
	}
}

func isVolatileFunction(name string) bool {
	switch strings.ToUpper(name) {
	case "NOW", "TODAY", "RAND":
		return true
	}
	return false
}
