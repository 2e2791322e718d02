// Package driver chains the compiler's phases — scan, parse/analyze/emit,
// forward-reference reconciliation — into a single pass: the first
// diagnosed error aborts the whole pipeline with no recovery, and on
// success the assembled IFJcode23 program is returned for printing.
//
// Grounded on internal/maincmd/resolve.go's phase-chaining shape (scan →
// parse → resolve, stopping at the first error, printing once at the end).
package driver

import (
	"github.com/ifjc/ifjc/lang/builtins"
	"github.com/ifjc/ifjc/lang/diag"
	"github.com/ifjc/ifjc/lang/emitter"
	"github.com/ifjc/ifjc/lang/parser"
	"github.com/ifjc/ifjc/lang/scanner"
	"github.com/ifjc/ifjc/lang/symtab"
)

// Compile runs the whole front end over src and returns the assembled
// IFJcode23 program text. On any diagnosed error, the symbol table and
// emit buffers built so far are simply left for the garbage collector —
// nothing partial is ever returned alongside a non-nil error.
func Compile(src []byte) (string, error) {
	tab := symtab.New()
	builtins.Load(tab)
	em := emitter.New()

	p := parser.New(scanner.New(src), tab, em)
	if err := p.ParseProgram(); err != nil {
		return "", err
	}

	helper := ""
	if em.SubstringUsed() {
		helper = builtins.SubstringHelperSource()
	}
	return em.Print(helper), nil
}

// exitCodes maps each diagnostic taxonomy code to its numeric exit code.
// SemUndef and SemRedef share code 3: both are name-resolution failures (a
// name never bound, or a forward-called function never given a real
// definition by end of program, itself reported as SemRedef) rather than
// two distinct categories.
var exitCodes = map[string]int{
	"LexErr":              1,
	"SynErr":              2,
	"SemUndef":            3,
	"SemRedef":            3,
	"SemFunc":             4,
	"SemReturn":           5,
	"SemType":             6,
	"SemUnknownType":      7,
	"SemOther":            8,
	"InternalCompilerErr": 99,
}

// ExitCode returns the numeric exit code for err: 0 for a nil err, the
// taxonomy-mapped code for a *diag.Error, 99 (internal compiler error) for
// anything else unrecognized.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if d, ok := err.(*diag.Error); ok {
		if code, ok := exitCodes[d.Code]; ok {
			return code
		}
	}
	return 99
}
