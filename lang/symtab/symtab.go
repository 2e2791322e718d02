// Package symtab implements the Symbol Table: a stack of lexical blocks,
// each holding name-to-entry bindings, with inner-to-outer-to-global lookup
// plus function-signature bookkeeping for forward-reference reconciliation.
package symtab

import (
	"fmt"

	"github.com/dolthub/swiss"

	"github.com/ifjc/ifjc/lang/types"
)

// Signature describes a function's call shape, used both for eagerly
// declared functions and for the forward-reference placeholders created the
// first time an undeclared name is called.
type Signature struct {
	ReturnType types.Tag
	ParamNames []string
	ParamIDs   []string
	ParamTypes []types.Tag
	// Defined is true once the real `func` declaration for this name has
	// been parsed; false for a placeholder inserted on a forward call.
	Defined bool
}

// Entry is one symbol table binding: a variable or a function name.
type Entry struct {
	Name        string
	Type        types.Tag
	Codename    string
	Initialized bool
	Immutable   bool
	Signature   *Signature // non-nil iff Name denotes a function
}

// Block is one lexical scope: a function body, an if/while body, or the
// top-level global block. Blocks nest via Table.PushBlock/PopBlock.
type Block struct {
	bindings   *swiss.Map[string, *Entry]
	hasReturn  bool
	isFunction bool
	isLoop     bool
}

func newBlock() *Block {
	return &Block{bindings: swiss.NewMap[string, *Entry](8)}
}

// Table is the Symbol Table: a stack of Blocks, the outermost of which is
// the global block, plus the set of functions still awaiting their real
// definition.
type Table struct {
	blocks []*Block
	// mustDefine tracks function names that were forward-referenced (called
	// before their `func` declaration was parsed) and have not yet been
	// reconciled with a real definition.
	mustDefine map[string]struct{}
}

// New returns a Table with its global block already pushed.
func New() *Table {
	t := &Table{mustDefine: make(map[string]struct{})}
	t.PushBlock(false, false)
	return t
}

// PushBlock opens a new lexical scope. isFunction marks a function body
// (return tracking resets there); isLoop marks a while-loop body, reported
// by InLoop.
func (t *Table) PushBlock(isFunction, isLoop bool) {
	b := newBlock()
	b.isFunction = isFunction
	b.isLoop = isLoop
	t.blocks = append(t.blocks, b)
}

// PopBlock closes the innermost lexical scope.
func (t *Table) PopBlock() {
	if len(t.blocks) == 1 {
		panic("symtab: PopBlock called on the global block")
	}
	t.blocks = t.blocks[:len(t.blocks)-1]
}

func (t *Table) top() *Block { return t.blocks[len(t.blocks)-1] }

// InsertLocal binds name in the innermost block. It returns false if name
// is already bound in that same block (redeclaration within one scope).
func (t *Table) InsertLocal(e *Entry) bool {
	b := t.top()
	if _, ok := b.bindings.Get(e.Name); ok {
		return false
	}
	b.bindings.Put(e.Name, e)
	return true
}

// InsertGlobal binds name in the outermost (global) block, used for
// top-level function declarations regardless of current nesting depth:
// functions are only ever declared at global scope.
func (t *Table) InsertGlobal(e *Entry) bool {
	g := t.blocks[0]
	if _, ok := g.bindings.Get(e.Name); ok {
		return false
	}
	g.bindings.Put(e.Name, e)
	return true
}

// Lookup searches from the innermost block outward to the global block,
// returning the first match.
func (t *Table) Lookup(name string) (*Entry, bool) {
	for i := len(t.blocks) - 1; i >= 0; i-- {
		if e, ok := t.blocks[i].bindings.Get(name); ok {
			return e, true
		}
	}
	return nil, false
}

// LookupLocal searches only the innermost block.
func (t *Table) LookupLocal(name string) (*Entry, bool) {
	return t.top().bindings.Get(name)
}

// LookupGlobal searches only the outermost (global) block.
func (t *Table) LookupGlobal(name string) (*Entry, bool) {
	return t.blocks[0].bindings.Get(name)
}

// BlockSetReturn marks only the innermost block as having seen a return (or
// as having been unified by its caller into "definitely returns", e.g. an
// if/else whose arms both do). It deliberately does not cascade to
// enclosing blocks: "definitely returns" propagates upward only when a
// construct explicitly re-asserts it at its own level (see lang/parser's
// if/else and bare-block handling), never automatically through every
// enclosing scope.
func (t *Table) BlockSetReturn() {
	t.top().hasReturn = true
}

// BlockHasReturn reports whether the innermost block has been marked as
// returning.
func (t *Table) BlockHasReturn() bool {
	return t.top().hasReturn
}

// InLoop reports whether any enclosing block, searching outward from the
// innermost one and stopping at a function boundary, is a while-loop body.
func (t *Table) InLoop() bool {
	for i := len(t.blocks) - 1; i >= 0; i-- {
		if t.blocks[i].isLoop {
			return true
		}
		if t.blocks[i].isFunction {
			return false
		}
	}
	return false
}

// Depth returns the current nesting depth (1 for the global block alone).
func (t *Table) Depth() int { return len(t.blocks) }

// DeclareForward registers a placeholder Signature for a function called
// before its declaration was seen. It is a no-op if an entry (forward or
// real) for name already exists at global scope.
func (t *Table) DeclareForward(name string, sig *Signature) *Entry {
	if e, ok := t.LookupGlobal(name); ok {
		return e
	}
	e := &Entry{Name: name, Type: types.Func, Signature: sig}
	t.InsertGlobal(e)
	t.mustDefine[name] = struct{}{}
	return e
}

// Reconcile marks name's forward-reference placeholder as satisfied by a
// real `func` definition. It is a no-op if name has no outstanding forward
// reference.
func (t *Table) Reconcile(name string) {
	delete(t.mustDefine, name)
}

// IsForwardOnly reports whether name currently has an outstanding
// forward-reference with no matching real definition.
func (t *Table) IsForwardOnly(name string) bool {
	_, ok := t.mustDefine[name]
	return ok
}

// Undefined returns the names still awaiting a real definition, for the
// driver's end-of-program check.
func (t *Table) Undefined() []string {
	names := make([]string, 0, len(t.mustDefine))
	for name := range t.mustDefine {
		names = append(names, name)
	}
	return names
}

func (e *Entry) String() string {
	if e.Signature != nil {
		return fmt.Sprintf("func %s -> %s", e.Name, e.Type)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Type)
}
