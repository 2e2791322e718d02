package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssignableTo(t *testing.T) {
	cases := []struct {
		dest, src Tag
		want      bool
	}{
		{Int, Int, true},
		{Int, Double, false},
		{Double, Int, false},
		{IntOpt, Int, true},
		{IntOpt, Nil, true},
		{IntOpt, Double, false},
		{DoubleOpt, Double, true},
		{DoubleOpt, Nil, true},
		{StringOpt, String, true},
		{StringOpt, Nil, true},
		{BoolOpt, Bool, true},
		{BoolOpt, Nil, true},
		{String, Int, false},
		{Bool, Int, false},
		{Int, Nil, false},
		{Int, Unknown, true},
		{String, Unknown, true},
		{Unknown, Int, true},
		{Unknown, String, true},
		{Void, Unknown, false},
		{Unknown, Void, false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, AssignableTo(c.dest, c.src), "dest=%s src=%s", c.dest, c.src)
	}
}

func TestPromotesTo(t *testing.T) {
	require.True(t, PromotesTo(Double, Int))
	require.False(t, PromotesTo(Int, Double))
	require.False(t, PromotesTo(Double, Double))
	require.False(t, PromotesTo(String, Int))
}

func TestComparable(t *testing.T) {
	require.True(t, Comparable(Int, Int, false))
	require.True(t, Comparable(Int, Double, true))
	require.False(t, Comparable(Int, Double, false))
	require.False(t, Comparable(String, Int, false))
	require.True(t, Comparable(Bool, Bool, false))
}

func TestOrdered(t *testing.T) {
	require.True(t, Ordered(Int))
	require.True(t, Ordered(Double))
	require.False(t, Ordered(String))
	require.False(t, Ordered(Bool))
}

func TestResultOfArith(t *testing.T) {
	require.Equal(t, Int, ResultOfArith(Int, Int))
	require.Equal(t, Double, ResultOfArith(Int, Double))
	require.Equal(t, Double, ResultOfArith(Double, Double))
}

func TestUnwrapped(t *testing.T) {
	require.Equal(t, Int, Unwrapped(IntOpt))
	require.Equal(t, String, Unwrapped(StringOpt))
	require.Equal(t, Int, Unwrapped(Int))
}

func TestNilCoalesceResult(t *testing.T) {
	res, ok := NilCoalesceResult(IntOpt, Int)
	require.True(t, ok)
	require.Equal(t, Int, res)

	res, ok = NilCoalesceResult(DoubleOpt, Int)
	require.True(t, ok)
	require.Equal(t, Double, res)

	_, ok = NilCoalesceResult(Int, Int)
	require.False(t, ok)

	_, ok = NilCoalesceResult(StringOpt, Int)
	require.False(t, ok)
}

func TestFromKeyword(t *testing.T) {
	tag, ok := FromKeyword("Int")
	require.True(t, ok)
	require.Equal(t, Int, tag)

	_, ok = FromKeyword("Foo")
	require.False(t, ok)
}

func TestTagStringExhaustive(t *testing.T) {
	for tag := Unknown; tag <= Func; tag++ {
		require.NotEmpty(t, tag.String())
	}
}
