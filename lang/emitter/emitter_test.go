package emitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ifjc/ifjc/lang/types"
)

func TestPrintFixedLayout(t *testing.T) {
	e := New()
	e.Emit("DEFVAR LF@x")
	e.Emit("MOVE LF@x int@1")
	out := e.Print("")

	require.True(t, strings.HasPrefix(out, ".IFJcode23\n"))
	wantOrder := []string{
		".IFJcode23",
		"DEFVAR " + Tmp1,
		"DEFVAR " + Tmp2,
		"DEFVAR " + Tmp3,
		"JUMP !main",
		"LABEL !main",
		"DEFVAR LF@x",
		"MOVE LF@x int@1",
		"EXIT int@0",
	}
	idx := 0
	for _, line := range strings.Split(out, "\n") {
		if idx < len(wantOrder) && line == wantOrder[idx] {
			idx++
		}
	}
	require.Equal(t, len(wantOrder), idx, "expected lines in order: %v, got:\n%s", wantOrder, out)
}

func TestFunctionsBeforeMainLabel(t *testing.T) {
	e := New()
	e.EnterFunction()
	e.Emit("LABEL foo")
	e.Emit("RETURN")
	e.LeaveFunction()
	e.Emit("CALL foo")

	out := e.Print("")
	funcIdx := strings.Index(out, "LABEL foo")
	mainIdx := strings.Index(out, "LABEL !main")
	callIdx := strings.Index(out, "CALL foo")
	require.True(t, funcIdx < mainIdx, "function bodies must precede LABEL !main")
	require.True(t, mainIdx < callIdx, "global code must follow LABEL !main")
}

func TestSubstringHelperOnlyWhenUsed(t *testing.T) {
	e := New()
	out := e.Print("LABEL $substring$helper\nRETURN\n")
	require.NotContains(t, out, "$substring$helper")

	e.MarkSubstringUsed()
	out = e.Print("LABEL $substring$helper\nRETURN\n")
	require.Contains(t, out, "$substring$helper")
}

func TestNewLabelUnique(t *testing.T) {
	e := New()
	a := e.NewLabel("while")
	b := e.NewLabel("while")
	require.NotEqual(t, a, b)
}

func TestNewVarCodenameUnique(t *testing.T) {
	e := New()
	a := e.NewVarCodename("x")
	b := e.NewVarCodename("x")
	require.NotEqual(t, a, b)
}

func TestLoopHoisting(t *testing.T) {
	e := New()
	label := e.NewLabel("while")
	e.EnterLoop(label)
	e.HoistDeclare("LF@x%1")
	e.Emit("JUMPIFEQ end$1 bool@false bool@false")
	e.LeaveLoop()

	out := e.Print("")
	hoistIdx := strings.Index(out, "DEFVAR LF@x%1")
	labelIdx := strings.Index(out, "LABEL "+label)
	require.True(t, hoistIdx >= 0 && labelIdx >= 0)
	require.True(t, hoistIdx < labelIdx, "hoisted DEFVAR must precede the loop's entry label")
}

func TestLoopHoistingNestedSplicesAtOutermost(t *testing.T) {
	e := New()
	outer := e.NewLabel("while")
	e.EnterLoop(outer)
	inner := e.NewLabel("while")
	e.EnterLoop(inner)
	e.HoistDeclare("LF@y%1")
	e.LeaveLoop()
	e.LeaveLoop()

	out := e.Print("")
	hoistIdx := strings.Index(out, "DEFVAR LF@y%1")
	outerIdx := strings.Index(out, "LABEL "+outer)
	require.True(t, hoistIdx < outerIdx, "hoisted DEFVAR from a nested loop must still precede the outermost loop's label")
}

func TestHoistDeclareOutsideLoopEmitsImmediately(t *testing.T) {
	e := New()
	e.HoistDeclare("LF@z%1")
	out := e.Print("")
	require.Contains(t, out, "DEFVAR LF@z%1")
}

func TestConstCodenameInt(t *testing.T) {
	s, err := ConstCodename(types.Int, "42")
	require.NoError(t, err)
	require.Equal(t, "int@42", s)
}

func TestConstCodenameBoolAndNil(t *testing.T) {
	s, err := ConstCodename(types.Bool, "true")
	require.NoError(t, err)
	require.Equal(t, "bool@true", s)

	s, err = ConstCodename(types.Nil, "")
	require.NoError(t, err)
	require.Equal(t, "nil@nil", s)
}

func TestConstCodenameDouble(t *testing.T) {
	s, err := ConstCodename(types.Double, "3.0")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(s, "float@0x"))
}

func TestEmitFnProloguePopsInReverseDeclaredOrder(t *testing.T) {
	e := New()
	e.EnterFunction()
	codenames := e.EmitFnPrologue("foo", []string{"a", "b", "_"})

	require.Equal(t, "LF@a$1", codenames[0])
	require.Equal(t, "LF@b$2", codenames[1])
	require.Equal(t, "", codenames[2])

	require.Equal(t, []string{
		"LABEL foo",
		"CREATEFRAME",
		"PUSHFRAME",
		"DEFVAR LF@a$1",
		"DEFVAR LF@b$2",
		"POPS " + Tmp1,
		"POPS LF@b$2",
		"POPS LF@a$1",
	}, e.FunctionLines())
}

func TestEmitFnCall(t *testing.T) {
	e := New()
	e.EmitFnCall("foo")
	require.Equal(t, []string{"CALL foo"}, e.GlobalLines())
}

func TestEscapeString(t *testing.T) {
	require.Equal(t, "hello", EscapeString("hello"))
	require.Equal(t, "a\\010b", EscapeString("a\nb"))
	require.Equal(t, "a\\035b", EscapeString("a#b"))
	require.Equal(t, "a\\092b", EscapeString(`a\b`))
	require.Equal(t, "a\\032b", EscapeString("a b"))
}
