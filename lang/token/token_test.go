package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	for k := Kind(0); k < maxKind; k++ {
		require.NotEmpty(t, k.String(), "kind %d has no string representation", k)
	}
}

func TestLookupKeyword(t *testing.T) {
	cases := []struct {
		lit  string
		want Kind
	}{
		{"func", FUNC},
		{"let", LET},
		{"var", VAR},
		{"if", IF},
		{"else", ELSE},
		{"while", WHILE},
		{"return", RETURN},
		{"nil", NIL},
		{"true", TRUE},
		{"false", FALSE},
		{"Int", TYPE_INT},
		{"Double", TYPE_DOUBLE},
		{"String", TYPE_STRING},
		{"Bool", TYPE_BOOL},
		{"x", IDENT},
		{"Integer", IDENT},
		{"", IDENT},
	}
	for _, c := range cases {
		require.Equal(t, c.want, LookupKeyword(c.lit), "lit=%q", c.lit)
	}
}

func TestIsBinop(t *testing.T) {
	yes := []Kind{PLUS, MINUS, STAR, SLASH, EQ, NEQ, LT, GT, LE, GE, NILCOAL}
	for _, k := range yes {
		require.True(t, k.IsBinop(), "%s should be a binop", k)
	}
	no := []Kind{BANG, ASSIGN, LPAREN, RPAREN, IDENT, INT_LIT}
	for _, k := range no {
		require.False(t, k.IsBinop(), "%s should not be a binop", k)
	}
}

func TestIsOperandStart(t *testing.T) {
	yes := []Kind{IDENT, INT_LIT, DOUBLE_LIT, STRING_LIT, NIL, TRUE, FALSE, LPAREN}
	for _, k := range yes {
		require.True(t, k.IsOperandStart(), "%s should start an operand", k)
	}
	no := []Kind{PLUS, BANG, RPAREN, EOF, ASSIGN}
	for _, k := range no {
		require.False(t, k.IsOperandStart(), "%s should not start an operand", k)
	}
}
