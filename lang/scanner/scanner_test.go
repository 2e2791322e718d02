package scanner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ifjc/ifjc/lang/token"
)

func allTokens(src string) []token.Token {
	s := New([]byte(src))
	var toks []token.Token
	for {
		tok := s.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestScanKeywordsAndIdents(t *testing.T) {
	toks := allTokens("func let varx if")
	require.Equal(t, []token.Kind{token.FUNC, token.LET, token.IDENT, token.IF, token.EOF}, kinds(toks))
	require.Equal(t, "varx", toks[2].Lexeme)
}

func TestScanNumbers(t *testing.T) {
	toks := allTokens("42 3.14 1e10 2.5e-3")
	require.Equal(t, []token.Kind{token.INT_LIT, token.DOUBLE_LIT, token.DOUBLE_LIT, token.DOUBLE_LIT, token.EOF}, kinds(toks))
	require.Equal(t, "42", toks[0].Lexeme)
	require.Equal(t, "3.14", toks[1].Lexeme)
}

func TestScanString(t *testing.T) {
	toks := allTokens(`"hello\nworld"`)
	require.Equal(t, token.STRING_LIT, toks[0].Kind)
	require.Equal(t, "hello\nworld", toks[0].Lexeme)
}

func TestScanUnterminatedString(t *testing.T) {
	toks := allTokens(`"oops`)
	require.Equal(t, token.ILLEGAL, toks[0].Kind)
}

func TestScanOperators(t *testing.T) {
	toks := allTokens("<= >= == != ?? -> ! ? = < > + - * /")
	want := []token.Kind{
		token.LE, token.GE, token.EQ, token.NEQ, token.NILCOAL, token.ARROW,
		token.BANG, token.QUESTION, token.ASSIGN, token.LT, token.GT,
		token.PLUS, token.MINUS, token.STAR, token.SLASH, token.EOF,
	}
	require.Equal(t, want, kinds(toks))
}

func TestScanComment(t *testing.T) {
	toks := allTokens("let x = 1 // trailing comment\nlet y = 2")
	require.Equal(t, []token.Kind{
		token.LET, token.IDENT, token.ASSIGN, token.INT_LIT,
		token.LET, token.IDENT, token.ASSIGN, token.INT_LIT, token.EOF,
	}, kinds(toks))
}

func TestScanIllegalChar(t *testing.T) {
	toks := allTokens("@")
	require.Equal(t, token.ILLEGAL, toks[0].Kind)
	require.Equal(t, "@", toks[0].Lexeme)
}

func TestPushBack(t *testing.T) {
	s := New([]byte("let x"))
	first := s.Next()
	require.Equal(t, token.LET, first.Kind)
	s.PushBack(first)
	require.Equal(t, first, s.Next())
	require.Equal(t, token.IDENT, s.Next().Kind)
}

func TestPushBackTwicePanics(t *testing.T) {
	s := New([]byte("let"))
	tok := s.Next()
	s.PushBack(tok)
	require.Panics(t, func() { s.PushBack(tok) })
}

func TestLineColTracking(t *testing.T) {
	toks := allTokens("let\nx")
	require.Equal(t, 1, toks[0].Line)
	require.Equal(t, 2, toks[1].Line)
}
