// Package exprs implements the Expression Analyzer: a shunting-yard pass
// over operator precedence that builds an expression tree, followed by a
// typed reduction pass over that tree that emits IFJcode23 and computes the
// expression's static type.
//
// Calls are deliberately not handled here: original_source/exp.c's
// precedence parser never recognizes a call as a sub-expression, so a
// function call is parsed exclusively by the statement parser as its own
// statement form, never nested inside an expression.
package exprs

import (
	"github.com/ifjc/ifjc/lang/diag"
	"github.com/ifjc/ifjc/lang/emitter"
	"github.com/ifjc/ifjc/lang/source"
	"github.com/ifjc/ifjc/lang/symtab"
	"github.com/ifjc/ifjc/lang/token"
	"github.com/ifjc/ifjc/lang/types"
)

// Error is the diagnostic shape shared across every analysis stage; see
// lang/diag.
type Error = diag.Error

func errAt(tok token.Token, code, format string, args ...any) *Error {
	return diag.At(tok.Line, tok.Col, code, format, args...)
}

type nodeKind uint8

const (
	nodeOperand nodeKind = iota
	nodeBinary
	nodeUnwrap
)

// node is one element of the expression tree built by the shunting-yard
// stage; a typed, tagged-variant element replacing the original source's
// character-code discriminator.
type node struct {
	kind        nodeKind
	tok         token.Token // operand token, or the operator token for nodeBinary
	left, right *node       // nodeBinary
	operand     *node       // nodeUnwrap
}

// precedence classes, low to high; ?? is right-associative, everything
// else left-associative.
func precedence(k token.Kind) int {
	switch k {
	case token.NILCOAL:
		return 1
	case token.EQ, token.NEQ, token.LT, token.GT, token.LE, token.GE:
		return 2
	case token.PLUS, token.MINUS:
		return 3
	case token.STAR, token.SLASH:
		return 4
	}
	return 0
}

func rightAssoc(k token.Kind) bool { return k == token.NILCOAL }

// Analyzer runs the two-stage analysis against a token Source, a Symbol
// Table for identifier lookup, and a Code Emitter for instruction output.
type Analyzer struct {
	src source.Source
	tab *symtab.Table
	em  *emitter.Emitter
}

// New returns an Analyzer reading tokens from src, resolving identifiers in
// tab, and emitting code via em.
func New(src source.Source, tab *symtab.Table, em *emitter.Emitter) *Analyzer {
	return &Analyzer{src: src, tab: tab, em: em}
}

// Analyze parses and type-checks one expression starting at the next
// token, emits its IFJcode23, and returns its static type plus the
// possibly_implicit flag: true iff the expression's result type is Int and
// every operand leaf in it is a literal Int token — the signal the
// statement parser uses to decide whether an Int-literal-only expression
// may still satisfy a `: Double` declared type via one trailing
// INT2FLOATS.
func (a *Analyzer) Analyze() (types.Tag, bool, error) {
	root, err := a.shuntingYard()
	if err != nil {
		return types.Unknown, false, err
	}
	typ, err := a.reduce(root)
	if err != nil {
		return types.Unknown, false, err
	}
	return typ, typ == types.Int && allIntLiteralLeaves(root), nil
}

// shuntingYard consumes tokens until it finds one that cannot extend the
// expression (pushing that token back) and returns the resulting tree.
func (a *Analyzer) shuntingYard() (*node, error) {
	var operands []*node
	var operators []token.Token // LPAREN acts as a stack sentinel

	applyTop := func() error {
		op := operators[len(operators)-1]
		operators = operators[:len(operators)-1]
		if len(operands) < 2 {
			return errAt(op, "SynErr", "operator %s missing an operand", op.Kind)
		}
		right := operands[len(operands)-1]
		left := operands[len(operands)-2]
		operands = operands[:len(operands)-2]
		operands = append(operands, &node{kind: nodeBinary, tok: op, left: left, right: right})
		return nil
	}

	expectOperand := true
	var first token.Token
	haveFirst := false

	for {
		tok := a.src.Next()
		if !haveFirst {
			first = tok
			haveFirst = true
		}
		if tok.Kind == token.ILLEGAL {
			return nil, errAt(tok, "LexErr", "illegal token %q", tok.Lexeme)
		}

		if expectOperand {
			switch {
			case tok.Kind == token.LPAREN:
				operators = append(operators, tok)
				continue
			case tok.Kind.IsOperandStart():
				operands = append(operands, &node{kind: nodeOperand, tok: tok})
				expectOperand = false
				continue
			default:
				return nil, errAt(tok, "SynErr", "expected an expression, found %s", tok.Kind)
			}
		}

		switch {
		case tok.Kind == token.BANG:
			if len(operands) == 0 {
				return nil, errAt(tok, "SynErr", "! has no preceding operand")
			}
			top := operands[len(operands)-1]
			operands[len(operands)-1] = &node{kind: nodeUnwrap, tok: tok, operand: top}
			// expectOperand stays false: ! is postfix, still followed by an
			// operator or end of expression.
			continue

		case tok.Kind.IsBinop():
			for len(operators) > 0 {
				top := operators[len(operators)-1]
				if top.Kind == token.LPAREN {
					break
				}
				topPrec, tokPrec := precedence(top.Kind), precedence(tok.Kind)
				if topPrec > tokPrec || (topPrec == tokPrec && !rightAssoc(tok.Kind)) {
					if err := applyTop(); err != nil {
						return nil, err
					}
					continue
				}
				break
			}
			operators = append(operators, tok)
			expectOperand = true
			continue

		case tok.Kind == token.RPAREN:
			foundParen := false
			for len(operators) > 0 {
				top := operators[len(operators)-1]
				if top.Kind == token.LPAREN {
					operators = operators[:len(operators)-1]
					foundParen = true
					break
				}
				if err := applyTop(); err != nil {
					return nil, err
				}
			}
			if !foundParen {
				// This ')' closes an enclosing construct (call args, if-condition
				// grouping), not ours: push it back and end the expression.
				a.src.PushBack(tok)
				return a.finish(first, operands, operators)
			}
			continue

		default:
			a.src.PushBack(tok)
			return a.finish(first, operands, operators)
		}
	}
}

func (a *Analyzer) finish(first token.Token, operands []*node, operators []token.Token) (*node, error) {
	for len(operators) > 0 {
		top := operators[len(operators)-1]
		if top.Kind == token.LPAREN {
			return nil, errAt(top, "SynErr", "unmatched (")
		}
		op := top
		operators = operators[:len(operators)-1]
		if len(operands) < 2 {
			return nil, errAt(op, "SynErr", "operator %s missing an operand", op.Kind)
		}
		right := operands[len(operands)-1]
		left := operands[len(operands)-2]
		operands = operands[:len(operands)-2]
		operands = append(operands, &node{kind: nodeBinary, tok: op, left: left, right: right})
	}
	if len(operands) == 0 {
		return nil, errAt(first, "SynErr", "expected an expression")
	}
	if len(operands) != 1 {
		return nil, errAt(first, "SynErr", "malformed expression")
	}
	return operands[0], nil
}

func isIntLiteralLeaf(n *node) bool {
	return n.kind == nodeOperand && n.tok.Kind == token.INT_LIT
}

func allIntLiteralLeaves(n *node) bool {
	switch n.kind {
	case nodeOperand:
		return n.tok.Kind == token.INT_LIT
	case nodeBinary:
		return allIntLiteralLeaves(n.left) && allIntLiteralLeaves(n.right)
	case nodeUnwrap:
		return false
	}
	return false
}

// reduce walks the expression tree post-order, emitting code and returning
// the static type of n.
func (a *Analyzer) reduce(n *node) (types.Tag, error) {
	switch n.kind {
	case nodeOperand:
		return a.reduceOperand(n)
	case nodeUnwrap:
		return a.reduceUnwrap(n)
	case nodeBinary:
		return a.reduceBinary(n)
	}
	panic("exprs: unknown node kind")
}

func (a *Analyzer) reduceOperand(n *node) (types.Tag, error) {
	tok := n.tok
	switch tok.Kind {
	case token.IDENT:
		entry, ok := a.tab.Lookup(tok.Lexeme)
		if !ok {
			return types.Unknown, errAt(tok, "SemUndef", "undefined identifier %q", tok.Lexeme)
		}
		if entry.Signature != nil {
			return types.Unknown, errAt(tok, "SemOther", "%q is a function, not a value", tok.Lexeme)
		}
		if !entry.Initialized {
			return types.Unknown, errAt(tok, "SemUndef", "%q used before being assigned a value", tok.Lexeme)
		}
		a.em.Emitf("PUSHS %s", entry.Codename)
		return entry.Type, nil
	case token.INT_LIT:
		cc, err := emitter.ConstCodename(types.Int, tok.Lexeme)
		if err != nil {
			return types.Unknown, errAt(tok, "InternalCompilerErr", "%s", err)
		}
		a.em.Emitf("PUSHS %s", cc)
		return types.Int, nil
	case token.DOUBLE_LIT:
		cc, err := emitter.ConstCodename(types.Double, tok.Lexeme)
		if err != nil {
			return types.Unknown, errAt(tok, "InternalCompilerErr", "%s", err)
		}
		a.em.Emitf("PUSHS %s", cc)
		return types.Double, nil
	case token.STRING_LIT:
		cc, _ := emitter.ConstCodename(types.String, tok.Lexeme)
		a.em.Emitf("PUSHS %s", cc)
		return types.String, nil
	case token.TRUE:
		a.em.Emit("PUSHS bool@true")
		return types.Bool, nil
	case token.FALSE:
		a.em.Emit("PUSHS bool@false")
		return types.Bool, nil
	case token.NIL:
		a.em.Emit("PUSHS nil@nil")
		return types.Nil, nil
	}
	return types.Unknown, errAt(tok, "SynErr", "%s cannot start an operand", tok.Kind)
}

// reduceUnwrap implements the force-unwrap (!) operator. Unwrapping the
// literal `nil` keyword is a distinct, explicitly named semantic error,
// kept apart from the generic case; unwrapping any other non-optional
// type is a type error, since there is nothing to unwrap.
// Unwrapping a genuine optional carries no runtime instruction: the
// optional and its base type share the same stack representation, only
// the static type narrows.
func (a *Analyzer) reduceUnwrap(n *node) (types.Tag, error) {
	if n.operand.kind == nodeOperand && n.operand.tok.Kind == token.NIL {
		// still must emit the nil push, since the operand stage already ran
		// inside reduce() for any non-leaf path — but nodeOperand NIL is a
		// leaf we haven't reduced yet.
		if _, err := a.reduce(n.operand); err != nil {
			return types.Unknown, err
		}
		return types.Unknown, errAt(n.tok, "SemOther", "cannot force-unwrap the literal nil")
	}
	t, err := a.reduce(n.operand)
	if err != nil {
		return types.Unknown, err
	}
	if !t.IsOptional() {
		return types.Unknown, errAt(n.tok, "SemType", "cannot force-unwrap non-optional type %s", t)
	}
	return t.Base(), nil
}

func (a *Analyzer) reduceBinary(n *node) (types.Tag, error) {
	lt, err := a.reduce(n.left)
	if err != nil {
		return types.Unknown, err
	}
	rt, err := a.reduce(n.right)
	if err != nil {
		return types.Unknown, err
	}
	leftLit, rightLit := isIntLiteralLeaf(n.left), isIntLiteralLeaf(n.right)

	switch n.tok.Kind {
	case token.NILCOAL:
		return a.reduceNilCoalesce(n.tok, lt, rt, rightLit)
	case token.PLUS:
		if lt == types.String && rt == types.String {
			a.em.Emit("POPS " + emitter.Tmp2)
			a.em.Emit("POPS " + emitter.Tmp1)
			a.em.Emitf("CONCAT %s %s %s", emitter.Tmp3, emitter.Tmp1, emitter.Tmp2)
			a.em.Emit("PUSHS " + emitter.Tmp3)
			return types.String, nil
		}
		return a.reduceArith(n.tok, "ADDS", lt, rt, leftLit, rightLit)
	case token.MINUS:
		return a.reduceArith(n.tok, "SUBS", lt, rt, leftLit, rightLit)
	case token.STAR:
		return a.reduceArith(n.tok, "MULS", lt, rt, leftLit, rightLit)
	case token.SLASH:
		return a.reduceDivide(n.tok, lt, rt, leftLit, rightLit)
	case token.LT:
		return a.reduceRelational(n.tok, "LTS", false, lt, rt, leftLit, rightLit)
	case token.GT:
		return a.reduceRelational(n.tok, "GTS", false, lt, rt, leftLit, rightLit)
	case token.LE:
		return a.reduceRelational(n.tok, "GTS", true, lt, rt, leftLit, rightLit)
	case token.GE:
		return a.reduceRelational(n.tok, "LTS", true, lt, rt, leftLit, rightLit)
	case token.EQ:
		return a.reduceEquality(n.tok, false, lt, rt, leftLit, rightLit)
	case token.NEQ:
		return a.reduceEquality(n.tok, true, lt, rt, leftLit, rightLit)
	}
	return types.Unknown, errAt(n.tok, "SynErr", "unsupported operator %s", n.tok.Kind)
}

// promotePair handles the "one side is an Int literal, the other is
// Double" case of the binary-operator promotion rule: `POPS tmp2; POPS
// tmp1; INT2FLOAT tmp3 tmp1; PUSHS tmp3; PUSHS tmp2` (or the symmetric
// form when it's the right side that needs promoting). It reports whether
// a promotion was needed.
func (a *Analyzer) promotePair(lt, rt types.Tag, leftLit, rightLit bool) (promoted bool, newLt, newRt types.Tag) {
	promoteLeft := leftLit && lt == types.Int && rt == types.Double
	promoteRight := rightLit && rt == types.Int && lt == types.Double
	if !promoteLeft && !promoteRight {
		return false, lt, rt
	}
	a.em.Emit("POPS " + emitter.Tmp2)
	a.em.Emit("POPS " + emitter.Tmp1)
	if promoteLeft {
		a.em.Emitf("INT2FLOAT %s %s", emitter.Tmp3, emitter.Tmp1)
		a.em.Emit("PUSHS " + emitter.Tmp3)
		a.em.Emit("PUSHS " + emitter.Tmp2)
		lt = types.Double
	} else {
		a.em.Emitf("INT2FLOAT %s %s", emitter.Tmp3, emitter.Tmp2)
		a.em.Emit("PUSHS " + emitter.Tmp1)
		a.em.Emit("PUSHS " + emitter.Tmp3)
		rt = types.Double
	}
	return true, lt, rt
}

func (a *Analyzer) reduceArith(tok token.Token, stackOp string, lt, rt types.Tag, leftLit, rightLit bool) (types.Tag, error) {
	if !types.Arithmetic(lt) || !types.Arithmetic(rt) {
		return types.Unknown, errAt(tok, "SemType", "operator %s is not admissible for %s and %s", tok.Kind, lt, rt)
	}
	_, lt, rt = a.promotePair(lt, rt, leftLit, rightLit)
	if lt != rt {
		return types.Unknown, errAt(tok, "SemType", "mismatched operand types %s and %s for %s", lt, rt, tok.Kind)
	}
	a.em.Emit(stackOp)
	return lt, nil
}

func (a *Analyzer) reduceDivide(tok token.Token, lt, rt types.Tag, leftLit, rightLit bool) (types.Tag, error) {
	if !types.Arithmetic(lt) || !types.Arithmetic(rt) {
		return types.Unknown, errAt(tok, "SemType", "operator / is not admissible for %s and %s", lt, rt)
	}
	_, lt, rt = a.promotePair(lt, rt, leftLit, rightLit)
	if lt != rt {
		return types.Unknown, errAt(tok, "SemType", "mismatched operand types %s and %s for /", lt, rt)
	}
	if lt == types.Int {
		a.em.Emit("IDIVS")
	} else {
		a.em.Emit("DIVS")
	}
	return lt, nil
}

func (a *Analyzer) reduceRelational(tok token.Token, stackOp string, negate bool, lt, rt types.Tag, leftLit, rightLit bool) (types.Tag, error) {
	if !types.Ordered(lt) || !types.Ordered(rt) {
		return types.Unknown, errAt(tok, "SemType", "operator %s is not admissible for %s and %s", tok.Kind, lt, rt)
	}
	_, lt, rt = a.promotePair(lt, rt, leftLit, rightLit)
	if lt != rt {
		return types.Unknown, errAt(tok, "SemType", "mismatched operand types %s and %s for %s", lt, rt, tok.Kind)
	}
	a.em.Emit(stackOp)
	if negate {
		a.em.Emit("NOTS")
	}
	return types.Bool, nil
}

func (a *Analyzer) reduceEquality(tok token.Token, negate bool, lt, rt types.Tag, leftLit, rightLit bool) (types.Tag, error) {
	if (lt.IsOptional() && rt == types.Nil) || (rt.IsOptional() && lt == types.Nil) {
		a.em.Emit("EQS")
		if negate {
			a.em.Emit("NOTS")
		}
		return types.Bool, nil
	}

	promoted, newLt, newRt := a.promotePair(lt, rt, leftLit, rightLit)
	if !promoted && lt != rt {
		return types.Unknown, errAt(tok, "SemType", "operands of %s must have the same type, got %s and %s", tok.Kind, lt, rt)
	}
	if promoted && newLt != newRt {
		return types.Unknown, errAt(tok, "SemType", "operands of %s must have the same type, got %s and %s", tok.Kind, newLt, newRt)
	}
	a.em.Emit("EQS")
	if negate {
		a.em.Emit("NOTS")
	}
	return types.Bool, nil
}

func (a *Analyzer) reduceNilCoalesce(tok token.Token, lt, rt types.Tag, rightLit bool) (types.Tag, error) {
	if !lt.IsOptional() {
		return types.Unknown, errAt(tok, "SemType", "?? requires an optional left-hand operand, got %s", lt)
	}
	base := lt.Base()
	promoteRight := base == types.Double && rt == types.Int && rightLit
	if rt != base && !promoteRight {
		return types.Unknown, errAt(tok, "SemType", "?? right-hand operand %s is not compatible with %s", rt, base)
	}
	if promoteRight {
		a.em.Emit("POPS " + emitter.Tmp3) // rhs Int literal, promoted below
		a.em.Emitf("INT2FLOAT %s %s", emitter.Tmp2, emitter.Tmp3)
		a.em.Emit("PUSHS " + emitter.Tmp2)
	}
	a.em.Emit("POPS " + emitter.Tmp2) // rhs
	a.em.Emit("POPS " + emitter.Tmp1) // lhs
	l1 := a.em.NewLabel("$coalesce")
	l2 := a.em.NewLabel("$coalesce")
	a.em.Emitf("JUMPIFEQ %s %s nil@nil", l1, emitter.Tmp1)
	a.em.Emit("PUSHS " + emitter.Tmp1)
	a.em.Emitf("JUMP %s", l2)
	a.em.Emitf("LABEL %s", l1)
	a.em.Emit("PUSHS " + emitter.Tmp2)
	a.em.Emitf("LABEL %s", l2)
	return base, nil
}
