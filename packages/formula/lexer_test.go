package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTypes(t *testing.T, src string) []TokenType {
	t.Helper()
	tokens, err := NewLexer(src).Tokenize()
	require.NoError(t, err, src)
	var types []TokenType
	for _, tok := range tokens {
		if tok.Type != TokenWhitespace {
			types = append(types, tok.Type)
		}
	}
	return types
}

func TestLexerRoundTrip(t *testing.T) {
	programs := []string{
		"1+2",
		"SUM(A1:A10)",
		"  SUM( A1 , B2 )  ",
		"Sheet2!A1 + 'My Grid'!B1:C3",
		`"Hello ""world"""`,
		`CONCATENATE("Hello ", "世界")`,
		"$A$1*B$2-$C3",
		"LAMBDA(x, y, x + y)(1, 2)",
		"{1,2;3,4}",
		"[1, [2, 3]]",
		"A:C",
		"2:5",
		"B2:D",
		"-5%",
		"a1 <> #N/A",
	}
	for _, src := range programs {
		t.Run(src, func(t *testing.T) {
			tokens, err := NewLexer(src).Tokenize()
			require.NoError(t, err)
			assert.Equal(t, src, Untokenize(tokens))
		})
	}
}

func TestLexerTokenTypes(t *testing.T) {
	tests := []struct {
		src  string
		want []TokenType
	}{
		{"1+2", []TokenType{TokenNumber, TokenBinaryOp, TokenNumber, TokenEOF}},
		{"-1", []TokenType{TokenUnaryPrefixOp, TokenNumber, TokenEOF}},
		{"A1-1", []TokenType{TokenRef, TokenBinaryOp, TokenNumber, TokenEOF}},
		{"Sheet1!A1:B2", []TokenType{TokenRef, TokenEOF}},
		{"'a b'!C3", []TokenType{TokenRef, TokenEOF}},
		{"A:B", []TokenType{TokenRef, TokenEOF}},
		{"3:4", []TokenType{TokenRef, TokenEOF}},
		{"12", []TokenType{TokenNumber, TokenEOF}},
		{"1.5e3", []TokenType{TokenNumber, TokenEOF}},
		{"rate", []TokenType{TokenIdentifier, TokenEOF}},
		{"A", []TokenType{TokenIdentifier, TokenEOF}},
		{"A1B", []TokenType{TokenIdentifier, TokenEOF}},
		{"sum(1)", []TokenType{TokenFunction, TokenLeftParen, TokenNumber, TokenRightParen, TokenEOF}},
		{"true", []TokenType{TokenBoolean, TokenEOF}},
		{"#REF!", []TokenType{TokenErrorLiteral, TokenEOF}},
		{"x!=1", []TokenType{TokenIdentifier, TokenBinaryOp, TokenNumber, TokenEOF}},
		{"5%", []TokenType{TokenNumber, TokenUnaryPostfixOp, TokenEOF}},
		{"{1;2}", []TokenType{TokenLeftBrace, TokenNumber, TokenSemicolon, TokenNumber, TokenRightBrace, TokenEOF}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenTypes(t, tt.src))
		})
	}
}

func TestLexerFunctionNamesAreUpperCased(t *testing.T) {
	tokens, err := NewLexer("sum(1)").Tokenize()
	require.NoError(t, err)
	assert.Equal(t, "SUM", tokens[0].Value)
	assert.Equal(t, "sum", tokens[0].Text)
}

func TestLexerErrors(t *testing.T) {
	for _, src := range []string{`"open`, "SUM(1", "1)", "{1,2]", "'grid", "'grid'A1", "Sheet1!", "1 ~ 2", "#BOGUS"} {
		t.Run(src, func(t *testing.T) {
			_, err := NewLexer(src).Tokenize()
			var syntaxErr *SyntaxError
			assert.ErrorAs(t, err, &syntaxErr)
		})
	}
}
