// Package builtins implements the Built-in Loader: it seeds the symbol
// table with the ten built-in function signatures before any user source
// is parsed, and supplies the substring helper subroutine emitted lazily if
// and only if substring is ever called (grounded on
// original_source/parser.c's bifn_substring_called / genSubstring gating).
package builtins

import (
	"github.com/ifjc/ifjc/lang/symtab"
	"github.com/ifjc/ifjc/lang/types"
)

// Names lists every built-in in load order, matching
// original_source/parser.c's loadBuiltInFnSigs.
var Names = []string{
	"readString", "readInt", "readDouble", "write",
	"Int2Double", "Double2Int", "length", "ord", "chr", "substring",
}

// IsBuiltin reports whether name is one of the built-in functions.
func IsBuiltin(name string) bool {
	switch name {
	case "readString", "readInt", "readDouble", "write",
		"Int2Double", "Double2Int", "length", "ord", "chr", "substring":
		return true
	}
	return false
}

// CreatesOwnFrame reports whether calling name emits CREATEFRAME/PUSHFRAME/
// POPFRAME the way a user-defined function call does. Every built-in except
// substring is call-by-inline-instruction and never touches the frame
// stack; substring is special-cased because its helper subroutine is a real
// IFJcode23 LABEL with its own local frame (original_source/parser.c line
// 144: `!isBuiltInFunction(name) || strcmp(name, "substring") == 0`).
func CreatesOwnFrame(name string) bool {
	return !IsBuiltin(name) || name == "substring"
}

// Load inserts every built-in's Signature into the global block of tab, so
// that ordinary name resolution finds them like any other function. Load
// must run once, before the first statement of user source is parsed.
func Load(tab *symtab.Table) {
	seed := func(name string, ret types.Tag, paramNames []string, paramTypes []types.Tag) {
		tab.InsertGlobal(&symtab.Entry{
			Name: name,
			Type: types.Func,
			Signature: &symtab.Signature{
				ReturnType: ret,
				ParamNames: paramNames,
				ParamTypes: paramTypes,
				Defined:    true,
			},
		})
	}

	seed("readString", types.StringOpt, nil, nil)
	seed("readInt", types.IntOpt, nil, nil)
	seed("readDouble", types.DoubleOpt, nil, nil)
	// write is variadic and unlabeled: any number of arguments of any
	// admissible type, positionally matched, never named (§4.7). The parser
	// special-cases its call-argument parsing rather than consulting
	// ParamTypes.
	seed("write", types.Void, nil, nil)
	seed("Int2Double", types.Double, []string{"_"}, []types.Tag{types.Int})
	seed("Double2Int", types.Int, []string{"_"}, []types.Tag{types.Double})
	seed("length", types.Int, []string{"_"}, []types.Tag{types.String})
	seed("ord", types.Int, []string{"_"}, []types.Tag{types.String})
	seed("chr", types.String, []string{"_"}, []types.Tag{types.Int})
	seed("substring", types.StringOpt,
		[]string{"of", "startingAt", "endingBefore"},
		[]types.Tag{types.String, types.Int, types.Int})
}

// IsVariadic reports whether name accepts any number of arguments
// positionally, bypassing the fixed-arity ParamTypes check (only write).
func IsVariadic(name string) bool { return name == "write" }
