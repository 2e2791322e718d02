// Package emitter implements the Code Emitter: an append-only assembler for
// IFJcode23, the textual three-address/stack instruction set consumed by
// the target stack machine. It owns two ordered instruction buffers (global
// code and function bodies), a splice point for loop-invariant DEFVAR
// hoisting, and the literal-encoding rules.
package emitter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ifjc/ifjc/lang/types"
)

// reserved temporaries used by the expression analyzer's typed-stack
// reduction; declared once, right after the program header.
const (
	Tmp1 = "tmp1"
	Tmp2 = "tmp2"
	Tmp3 = "tmp3"
)

// buffer is one ordered sequence of emitted instruction lines.
type buffer struct {
	lines []string
}

func (b *buffer) emit(line string) { b.lines = append(b.lines, line) }

// hoistPoint records where in a buffer the outermost loop's entry LABEL was
// emitted, so that DEFVARs hoisted out of the loop body can be spliced
// immediately before it once the loop closes.
type hoistPoint struct {
	idx int // index into buf.lines of the LABEL line
}

// Emitter assembles one compiled program. Zero value is not usable; use
// New.
type Emitter struct {
	global    buffer
	functions buffer

	labelCounter int
	varCounter   int

	inFunction bool
	cur        *buffer // points at &global or &functions, whichever is active

	loopDepth  int
	hoistStack []hoistPoint
	pending    []string // DEFVAR lines awaiting splice at the outermost loop's entry

	usesSubstring bool
}

// New returns an Emitter ready to receive instructions for the global
// (top-level, a.k.a. !main) scope.
func New() *Emitter {
	e := &Emitter{}
	e.cur = &e.global
	return e
}

// Emit appends one already-formatted instruction line (without leading
// whitespace; IFJcode23 instructions are one per line).
func (e *Emitter) Emit(line string) { e.cur.emit(line) }

// Emitf is Emit with fmt.Sprintf formatting.
func (e *Emitter) Emitf(format string, args ...any) { e.Emit(fmt.Sprintf(format, args...)) }

// EnterFunction switches the active buffer to the functions section, used
// while compiling a `func` body.
func (e *Emitter) EnterFunction() {
	e.inFunction = true
	e.cur = &e.functions
}

// LeaveFunction switches the active buffer back to the global section.
func (e *Emitter) LeaveFunction() {
	e.inFunction = false
	e.cur = &e.global
}

// NewLabel returns a fresh, globally unique label name.
func (e *Emitter) NewLabel(prefix string) string {
	e.labelCounter++
	return fmt.Sprintf("%s$%d", prefix, e.labelCounter)
}

// NewVarCodename returns a fresh, globally unique variable codename for a
// user-declared variable named src, frame-qualified (e.g. `GF@x$1`): GF@ at
// global scope, LF@ inside a function body. The source name is kept as a
// prefix purely to help a human reading the output; uniqueness comes from
// the counter, since the same source name can be declared in nested
// shadowing blocks.
func (e *Emitter) NewVarCodename(src string) string {
	e.varCounter++
	frame := "GF@"
	if e.inFunction {
		frame = "LF@"
	}
	return fmt.Sprintf("%s%s$%d", frame, src, e.varCounter)
}

// EmitFnPrologue emits a function's entry sequence: `LABEL <name>`,
// `CREATEFRAME`, `PUSHFRAME`, then a `DEFVAR` for every non-`_` parameter in
// declared order. Must be called after EnterFunction. It returns the minted
// codename for each parameter (in declared order, with "" for a `_`
// placeholder that binds no name).
//
// Parameters are popped in REVERSE declared order (last param first),
// rather than pushed in reverse: since the token source offers only one
// token of lookahead, arguments are necessarily evaluated and pushed in
// their textual left-to-right order by the statement parser, so the
// prologue instead pops in the mirrored order to match — the same pairing
// of argument to parameter, reached without buffering unparsed tokens.
func (e *Emitter) EmitFnPrologue(name string, paramIDs []string) []string {
	e.Emitf("LABEL %s", name)
	e.Emit("CREATEFRAME")
	e.Emit("PUSHFRAME")

	codenames := make([]string, len(paramIDs))
	for i, id := range paramIDs {
		if id == "_" {
			continue
		}
		codenames[i] = e.NewVarCodename(id)
		e.Emit("DEFVAR " + codenames[i])
	}
	for i := len(paramIDs) - 1; i >= 0; i-- {
		if paramIDs[i] == "_" {
			e.Emit("POPS " + Tmp1) // discard: argument bound to no name
			continue
		}
		e.Emit("POPS " + codenames[i])
	}
	return codenames
}

// EmitFnCall emits `CALL <name>` after the caller has already pushed every
// argument, in declared order, via its own Analyze calls.
func (e *Emitter) EmitFnCall(name string) { e.Emitf("CALL %s", name) }

// EnterLoop marks the entry LABEL of a (possibly nested) while loop. Only
// the outermost loop's entry point is tracked as a hoist splice target:
// nested loops don't get their own splice point, their hoisted DEFVARs
// still land before the outermost loop's label, since DEFVAR is only
// invalid inside a function if the name is already declared, not if it's
// declared early.
func (e *Emitter) EnterLoop(entryLabel string) {
	e.loopDepth++
	e.Emitf("LABEL %s", entryLabel)
	if e.loopDepth == 1 {
		e.hoistStack = append(e.hoistStack, hoistPoint{idx: len(e.cur.lines) - 1})
	}
}

// LeaveLoop closes one level of loop nesting, splicing any pending hoisted
// DEFVARs immediately before the outermost loop's entry label once the
// outermost loop itself closes.
func (e *Emitter) LeaveLoop() {
	e.loopDepth--
	if e.loopDepth == 0 && len(e.pending) > 0 {
		hp := e.hoistStack[len(e.hoistStack)-1]
		e.hoistStack = e.hoistStack[:len(e.hoistStack)-1]
		e.spliceAt(hp.idx)
		e.pending = nil
	} else if e.loopDepth == 0 {
		e.hoistStack = e.hoistStack[:len(e.hoistStack)-1]
	}
}

func (e *Emitter) spliceAt(idx int) {
	buf := e.cur
	tail := make([]string, len(buf.lines)-idx)
	copy(tail, buf.lines[idx:])
	buf.lines = buf.lines[:idx]
	buf.lines = append(buf.lines, e.pending...)
	buf.lines = append(buf.lines, tail...)
}

// HoistDeclare records a DEFVAR that must be lifted above the outermost
// enclosing loop's entry label, applied to every `let`/`var` declared
// anywhere inside a loop body (nested blocks included) so that each
// iteration doesn't redeclare it. If
// no loop is currently open, the DEFVAR is emitted immediately instead.
func (e *Emitter) HoistDeclare(codename string) {
	line := "DEFVAR " + codename
	if e.loopDepth == 0 {
		e.Emit(line)
		return
	}
	e.pending = append(e.pending, line)
}

// GlobalLines returns a copy of the global (top-level) buffer's lines so
// far, for inspection in tests.
func (e *Emitter) GlobalLines() []string {
	out := make([]string, len(e.global.lines))
	copy(out, e.global.lines)
	return out
}

// FunctionLines returns a copy of the functions buffer's lines so far, for
// inspection in tests.
func (e *Emitter) FunctionLines() []string {
	out := make([]string, len(e.functions.lines))
	copy(out, e.functions.lines)
	return out
}

// MarkSubstringUsed records that the substring built-in was called at least
// once, so the driver knows to append its helper subroutine.
func (e *Emitter) MarkSubstringUsed() { e.usesSubstring = true }

// SubstringUsed reports whether MarkSubstringUsed was ever called.
func (e *Emitter) SubstringUsed() bool { return e.usesSubstring }

// Print assembles the final program text in the fixed IFJcode23 layout:
// header, reserved temporaries, a jump to !main, the optional substring
// helper, all function bodies, the !main label, the global code, and a
// final EXIT.
func (e *Emitter) Print(substringHelper string) string {
	var sb strings.Builder
	sb.WriteString(".IFJcode23\n")
	sb.WriteString("DEFVAR " + Tmp1 + "\n")
	sb.WriteString("DEFVAR " + Tmp2 + "\n")
	sb.WriteString("DEFVAR " + Tmp3 + "\n")
	sb.WriteString("JUMP !main\n")
	if e.usesSubstring && substringHelper != "" {
		sb.WriteString(substringHelper)
		if !strings.HasSuffix(substringHelper, "\n") {
			sb.WriteByte('\n')
		}
	}
	for _, l := range e.functions.lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	sb.WriteString("LABEL !main\n")
	for _, l := range e.global.lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	sb.WriteString("EXIT int@0\n")
	return sb.String()
}

// ConstCodename renders a literal value of the given type as an IFJcode23
// operand: int@, float@ (C99 hex float), string@ (with \ddd-escaping for
// bytes <= 32, '#' and '\'), bool@, or nil@nil.
func ConstCodename(tag types.Tag, raw string) (string, error) {
	switch tag {
	case types.Int:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid int literal %q: %w", raw, err)
		}
		return fmt.Sprintf("int@%d", n), nil
	case types.Double:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", fmt.Errorf("invalid double literal %q: %w", raw, err)
		}
		return "float@" + formatHexFloat(f), nil
	case types.String:
		return "string@" + EscapeString(raw), nil
	case types.Bool:
		if raw == "true" {
			return "bool@true", nil
		}
		return "bool@false", nil
	case types.Nil:
		return "nil@nil", nil
	}
	return "", fmt.Errorf("emitter: no literal encoding for type %s", tag)
}

// formatHexFloat renders f as the C99 hexadecimal floating-point literal
// IFJcode23 requires, e.g. 0x1.8p+1 for 3.0.
func formatHexFloat(f float64) string {
	if f == 0 && !math.Signbit(f) {
		return "0x0p+0"
	}
	s := strconv.FormatFloat(f, 'x', -1, 64)
	// strconv pads the exponent to two digits (p+01); C99 %a does not (p+1).
	if i := strings.IndexByte(s, 'p'); i >= 0 && i+3 < len(s) && s[i+2] == '0' {
		s = s[:i+2] + s[i+3:]
	}
	return s
}

// EscapeString renders s per IFJcode23's string@ escaping rule: every byte
// that is whitespace/control (<= 32), '#', or '\' is replaced by a
// backslash followed by its three-digit decimal value.
func EscapeString(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b <= 32 || b == '#' || b == '\\' {
			fmt.Fprintf(&sb, "\\%03d", b)
			continue
		}
		sb.WriteByte(b)
	}
	return sb.String()
}
