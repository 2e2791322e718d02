package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ifjc/ifjc/lang/builtins"
	"github.com/ifjc/ifjc/lang/emitter"
	"github.com/ifjc/ifjc/lang/scanner"
	"github.com/ifjc/ifjc/lang/symtab"
)

func newParser(src string) (*Parser, *symtab.Table, *emitter.Emitter) {
	tab := symtab.New()
	builtins.Load(tab)
	em := emitter.New()
	return New(scanner.New([]byte(src)), tab, em), tab, em
}

func TestVarDeclTypeAndInitializer(t *testing.T) {
	p, tab, em := newParser(`let y: Double = 5 + 1`)
	require.NoError(t, p.ParseProgram())

	e, ok := tab.LookupGlobal("y")
	require.True(t, ok)
	require.Equal(t, "Double", e.Type.String())
	require.True(t, e.Initialized)
	require.True(t, e.Immutable)

	lines := em.GlobalLines()
	require.Contains(t, lines, "PUSHS int@5")
	require.Contains(t, lines, "PUSHS int@1")
	require.Contains(t, lines, "ADDS")
	// the Int-literal result is promoted to Double before landing in y.
	require.Contains(t, lines, "INT2FLOATS")
	require.Equal(t, "INT2FLOATS", lines[3])
	require.Equal(t, "POPS GF@y$1", lines[len(lines)-1])
}

func TestVarDeclNeedsTypeOrInitializer(t *testing.T) {
	p, _, _ := newParser(`let z`)
	err := p.ParseProgram()
	require.Error(t, err)
}

func TestAssignmentToImmutableAfterInitFails(t *testing.T) {
	p, _, _ := newParser(`let x = 1
x = 2`)
	err := p.ParseProgram()
	require.Error(t, err)
}

func TestIfLetNarrowsShadowedBinding(t *testing.T) {
	p, _, em := newParser(`let a: Int? = 5
if let a {
	write(a)
} else {
	write(0)
}`)
	require.NoError(t, p.ParseProgram())

	lines := em.GlobalLines()
	found := false
	for _, l := range lines {
		if len(l) >= 9 && l[:9] == "JUMPIFEQ " {
			found = true
		}
	}
	require.True(t, found, "expected a JUMPIFEQ guarding the if-let arm, got %v", lines)
}

func TestIfLetOnMutableVarFails(t *testing.T) {
	p, _, _ := newParser(`var a: Int? = 5
if let a {
	write(a)
} else {
	write(0)
}`)
	err := p.ParseProgram()
	require.Error(t, err)
}

func TestForwardCallThenDefinition(t *testing.T) {
	p, tab, em := newParser(`foo(5)
func foo(_ n: Int) -> Int {
	return n
}`)
	require.NoError(t, p.ParseProgram())

	require.Empty(t, tab.Undefined())
	e, ok := tab.LookupGlobal("foo")
	require.True(t, ok)
	require.True(t, e.Signature.Defined)
	require.Equal(t, "Int", e.Signature.ReturnType.String())

	require.Contains(t, em.GlobalLines(), "CALL foo")
	require.Contains(t, em.GlobalLines(), "POPFRAME")
	require.Contains(t, em.FunctionLines(), "LABEL foo")
	require.Contains(t, em.FunctionLines(), "RETURN")
}

func TestCallBeforeDefinitionWithMismatchedArityFails(t *testing.T) {
	p, _, _ := newParser(`foo(5)
func foo(_ n: Int, _ m: Int) -> Int {
	return n
}`)
	err := p.ParseProgram()
	require.Error(t, err)
}

func TestUndefinedForwardCallFailsAtEndOfProgram(t *testing.T) {
	p, _, _ := newParser(`foo(5)`)
	err := p.ParseProgram()
	require.Error(t, err)
}

func TestWhileHoistsLoopLocalDeclarationsAboveEntryLabel(t *testing.T) {
	p, _, em := newParser(`var x = 0
while x < 10 {
	var t = x
	x = x + 1
}`)
	require.NoError(t, p.ParseProgram())

	lines := em.GlobalLines()
	labelIdx, defvarIdx := -1, -1
	for i, l := range lines {
		if labelIdx == -1 && len(l) >= 6 && l[:6] == "LABEL " {
			labelIdx = i
		}
		if defvarIdx == -1 && len(l) >= 9 && l[:9] == "DEFVAR GF" && len(l) > 10 && l[10] != 'x' {
			// the loop-local "t" declaration's codename, distinct from the
			// outer "x" declared before the loop ever starts.
			defvarIdx = i
		}
	}
	require.NotEqual(t, -1, labelIdx)
	require.NotEqual(t, -1, defvarIdx)
	require.Less(t, defvarIdx, labelIdx, "loop-local DEFVAR must be hoisted above the loop's entry LABEL")
}

func TestReturnForbiddenAtGlobalScope(t *testing.T) {
	p, _, _ := newParser(`return`)
	err := p.ParseProgram()
	require.Error(t, err)
}

func TestVoidFunctionMustNotReturnValue(t *testing.T) {
	p, _, _ := newParser(`func f() {
	return 1
}`)
	err := p.ParseProgram()
	require.Error(t, err)
}

func TestNonVoidFunctionMustReturnOnEveryPath(t *testing.T) {
	p, _, _ := newParser(`func f() -> Int {
	let x = 1
}`)
	err := p.ParseProgram()
	require.Error(t, err)
}

func TestIfElseBothArmsReturnPropagates(t *testing.T) {
	p, _, _ := newParser(`func f() -> Int {
	if true {
		return 1
	} else {
		return 2
	}
}`)
	require.NoError(t, p.ParseProgram())
}

func TestIfElseOnlyOneArmReturnsFails(t *testing.T) {
	p, _, _ := newParser(`func f() -> Int {
	if true {
		return 1
	}
}`)
	err := p.ParseProgram()
	require.Error(t, err)
}

func TestCallAssignedToVariable(t *testing.T) {
	p, tab, em := newParser(`let d = Int2Double(5)`)
	require.NoError(t, p.ParseProgram())

	e, ok := tab.LookupGlobal("d")
	require.True(t, ok)
	require.Equal(t, "Double", e.Type.String())

	lines := em.GlobalLines()
	require.Contains(t, lines, "PUSHS int@5")
	require.Contains(t, lines, "POPS "+emitter.Tmp1)
	require.Contains(t, lines, "INT2FLOAT "+emitter.Tmp2+" "+emitter.Tmp1)
	require.Contains(t, lines, "PUSHS "+emitter.Tmp2)
}

func TestCallAsStatementDiscardsNonVoidResult(t *testing.T) {
	p, _, em := newParser(`length("hi")`)
	require.NoError(t, p.ParseProgram())
	require.Contains(t, em.GlobalLines(), "CLEARS")
}

func TestWriteCallRejectsLabeledArgument(t *testing.T) {
	p, _, _ := newParser(`write(x: 1)`)
	err := p.ParseProgram()
	require.Error(t, err)
}

func TestSubstringCallEmitsCallAndMarksHelperUsed(t *testing.T) {
	p, _, em := newParser(`let s = substring(of: "hello", startingAt: 1, endingBefore: 3)`)
	require.NoError(t, p.ParseProgram())

	require.True(t, em.SubstringUsed())
	require.Contains(t, em.GlobalLines(), "CALL "+builtins.SubstringLabel)
	require.Contains(t, em.GlobalLines(), "POPFRAME")
}

func TestSubstringCallWithWrongLabelFails(t *testing.T) {
	p, _, _ := newParser(`let s = substring(from: "hello", startingAt: 1, endingBefore: 3)`)
	err := p.ParseProgram()
	require.Error(t, err)
}

func TestFunctionRedefinitionFails(t *testing.T) {
	p, _, _ := newParser(`func f() {}
func f() {}`)
	err := p.ParseProgram()
	require.Error(t, err)
}

func TestNestedFuncDefinitionFails(t *testing.T) {
	p, _, _ := newParser(`func f() {
	func g() {}
}`)
	err := p.ParseProgram()
	require.Error(t, err)
}
