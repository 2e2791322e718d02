package types

// AssignableTo reports whether a value of type src may be stored into a
// destination of type dest. It is a pure function of the two tags: no
// literal-ness, no promotion — PromotesTo below covers the one promotion
// rule the language allows.
//
// Unknown stands in for a type not yet resolved (a forward-referenced
// call's placeholder return type, reconciled once the real definition is
// parsed) and is treated as assignable either way, except into or out of
// Void: an unresolved value can still end up being anything, so rejecting
// it here would misdiagnose a program that later turns out fine.
func AssignableTo(dest, src Tag) bool {
	if dest == src {
		return true
	}
	if src == Unknown && dest != Void {
		return true
	}
	if dest == Unknown && src != Void {
		return true
	}
	switch dest {
	case IntOpt:
		return src == Int || src == Nil
	case DoubleOpt:
		return src == Double || src == Nil
	case StringOpt:
		return src == String || src == Nil
	case BoolOpt:
		return src == Bool || src == Nil
	}
	return false
}

// PromotesTo reports whether an Int literal operand may stand in for a
// Double operand by implicit widening. This is the ONLY implicit conversion
// the language performs, and it applies only to literal operands, never to
// Int-typed variables or call results — callers gate this with the
// possibly_implicit flag computed by the expression analyzer, not with this
// function alone.
func PromotesTo(dest, src Tag) bool {
	return dest == Double && src == Int
}

// Comparable reports whether two operand types may appear on either side of
// the == / != relational operators, after accounting for literal promotion
// (promoted is true when one side is an Int literal being widened to
// Double, as computed by the caller).
func Comparable(a, b Tag, promoted bool) bool {
	if a == b {
		return true
	}
	if promoted && ((a == Int && b == Double) || (a == Double && b == Int)) {
		return true
	}
	return false
}

// Ordered reports whether operand type t admits the < > <= >= operators:
// exactly Int and Double — relational ordering is numeric only, String and
// Bool are not ordered.
func Ordered(t Tag) bool {
	return t == Int || t == Double
}

// Arithmetic reports whether operand type t admits + - * / (and the
// integer-only variant, division truncation, is decided by the caller once
// both operands are known to be Int).
func Arithmetic(t Tag) bool {
	return t == Int || t == Double
}

// Concatenable reports whether t admits the + operator in its
// string-concatenation sense: + overloads onto String when both operands
// are String.
func Concatenable(t Tag) bool {
	return t == String
}

// ResultOfArith returns the result type of a + - * / between two
// already-unified arithmetic operands (both Int or both Double after any
// promotion has been applied by the caller).
func ResultOfArith(a, b Tag) Tag {
	if a == Double || b == Double {
		return Double
	}
	return Int
}

// Unwrapped returns the type a force-unwrap (!) operator yields for operand
// type t: the base scalar of an optional, or t unchanged if t is already
// non-optional (the parser treats unwrapping a non-optional as a semantic
// error before ever calling this, so this is purely the type-algebra rule).
func Unwrapped(t Tag) Tag {
	if t.IsOptional() {
		return t.Base()
	}
	return t
}

// NilCoalesceResult returns the result type of lhs ?? rhs, where lhs must be
// one of the four optional tags and rhs must be lhs's base type, or Int when
// that base is Double. ok is false if the operand shapes are not admissible.
func NilCoalesceResult(lhs, rhs Tag) (Tag, bool) {
	if !lhs.IsOptional() {
		return Unknown, false
	}
	base := lhs.Base()
	if rhs == base || (base == Double && rhs == Int) {
		return base, true
	}
	return Unknown, false
}
