// Package parser implements the Statement Parser: LL recursive descent over
// declarations, assignments, calls, `if`/`while`/`return` and function
// definitions, driving the Symbol Table, the Code Emitter, the Expression
// Analyzer and the Built-in Loader's signatures to translate one source
// file into IFJcode23.
//
// Calls are parsed here, never inside lang/exprs (see that package's doc
// comment): a call used as a value (the right-hand side of a `let`/`var`
// declaration, an assignment, or a `return`) is detected by a two-token
// lookahead (IDENT followed by `(`) before control is handed to the
// expression analyzer.
package parser

import (
	"github.com/ifjc/ifjc/lang/builtins"
	"github.com/ifjc/ifjc/lang/diag"
	"github.com/ifjc/ifjc/lang/emitter"
	"github.com/ifjc/ifjc/lang/exprs"
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

// Parser holds the per-file parsing state: the token source, the shared
// Symbol Table and Code Emitter, and a stack of enclosing function return
// types (consulted by `return`).
type Parser struct {
	src source.Source
	tab *symtab.Table
	em  *emitter.Emitter

	funcReturnStack []types.Tag
}

// New returns a Parser reading tokens from src. tab should already have the
// built-ins loaded (builtins.Load) before the first call to ParseProgram.
func New(src source.Source, tab *symtab.Table, em *emitter.Emitter) *Parser {
	return &Parser{src: src, tab: tab, em: em}
}

// Table returns the parser's Symbol Table.
func (p *Parser) Table() *symtab.Table { return p.tab }

// Emitter returns the parser's Code Emitter.
func (p *Parser) Emitter() *emitter.Emitter { return p.em }

func (p *Parser) next() token.Token      { return p.src.Next() }
func (p *Parser) pushBack(t token.Token) { p.src.PushBack(t) }

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	tok := p.next()
	if tok.Kind != k {
		return tok, errAt(tok, "SynErr", "expected %s, found %s", k, tok.Kind)
	}
	return tok, nil
}

// seededSource replays one already-consumed token ahead of an underlying
// Source, so a token read for a lookahead decision (does this identifier
// start a call, or a label, or a plain operand?) can be handed back to the
// expression analyzer as if it had never been consumed. PushBack always
// forwards to the underlying source: by construction the seed token is
// itself consumed as an operand/operator during analysis and is never the
// token an analyzer pushes back — only a later, genuinely-unread token is.
type seededSource struct {
	seed  *token.Token
	under source.Source
}

func (s *seededSource) Next() token.Token {
	if s.seed != nil {
		t := *s.seed
		s.seed = nil
		return t
	}
	return s.under.Next()
}

func (s *seededSource) PushBack(t token.Token) { s.under.PushBack(t) }

// ParseProgram parses an entire source file as a sequence of top-level
// (global-scope) statements until EOF, then rejects any function that was
// only ever forward-called and never defined.
func (p *Parser) ParseProgram() error {
	for {
		tok := p.next()
		if tok.Kind == token.EOF {
			break
		}
		p.pushBack(tok)
		if err := p.parseStmt(); err != nil {
			return err
		}
	}
	if names := p.tab.Undefined(); len(names) > 0 {
		return diag.At(0, 0, "SemRedef", "function %q is called but never defined", names[0])
	}
	return nil
}

func (p *Parser) parseStmt() error {
	tok := p.next()
	switch tok.Kind {
	case token.LET, token.VAR:
		p.pushBack(tok)
		return p.parseVarDecl()
	case token.IF:
		both, err := p.parseIf(tok)
		if err != nil {
			return err
		}
		if both {
			p.tab.BlockSetReturn()
		}
		return nil
	case token.WHILE:
		return p.parseWhile(tok)
	case token.RETURN:
		return p.parseReturn(tok)
	case token.FUNC:
		return p.parseFuncDef()
	case token.LBRACE:
		p.pushBack(tok)
		return p.parseBlock()
	case token.IDENT:
		return p.parseIdentStmt(tok)
	case token.ILLEGAL:
		return errAt(tok, "LexErr", "illegal token %q", tok.Lexeme)
	default:
		return errAt(tok, "SynErr", "unexpected %s at start of statement", tok.Kind)
	}
}

// parseStmtsUntilRBrace consumes a `{`, then statements, until the matching
// `}`. It does not itself open or close a symbol-table block: callers that
// want a fresh lexical scope push one first.
func (p *Parser) parseStmtsUntilRBrace() error {
	if _, err := p.expect(token.LBRACE); err != nil {
		return err
	}
	for {
		tok := p.next()
		if tok.Kind == token.RBRACE {
			return nil
		}
		if tok.Kind == token.EOF {
			return errAt(tok, "SynErr", "unexpected end of file, expected }")
		}
		p.pushBack(tok)
		if err := p.parseStmt(); err != nil {
			return err
		}
	}
}

// parseBlock handles a bare `{ … }` used as a statement: a fresh local
// scope, propagated upward as "has return" whenever it definitely executed
// a return, since there is no second arm to unify against.
func (p *Parser) parseBlock() error {
	p.tab.PushBlock(false, false)
	if err := p.parseStmtsUntilRBrace(); err != nil {
		p.tab.PopBlock()
		return err
	}
	hasReturn := p.tab.BlockHasReturn()
	p.tab.PopBlock()
	if hasReturn {
		p.tab.BlockSetReturn()
	}
	return nil
}

// parseRHS parses the right-hand side of a `let`/`var` initializer, an
// assignment, or a `return`: a call (if the next two tokens are IDENT `(`)
// or an ordinary expression, uniformly. possiblyImplicit is always false
// for a call result.
func (p *Parser) parseRHS() (types.Tag, bool, error) {
	tok := p.next()
	if tok.Kind == token.IDENT {
		tok2 := p.next()
		if tok2.Kind == token.LPAREN {
			p.pushBack(tok2)
			t, err := p.parseCall(tok)
			return t, false, err
		}
		p.pushBack(tok2)
		an := exprs.New(&seededSource{seed: &tok, under: p.src}, p.tab, p.em)
		return an.Analyze()
	}
	p.pushBack(tok)
	an := exprs.New(p.src, p.tab, p.em)
	return an.Analyze()
}

// checkAssignable applies the one Int-literal→Double conversion the
// language allows at an assignment boundary, beyond plain T1 compatibility:
// `possiblyImplicit` must hold and the destination must be Double.
func (p *Parser) checkAssignable(dest, src types.Tag, possiblyImplicit bool) bool {
	if types.AssignableTo(dest, src) {
		return true
	}
	if dest == types.Double && src == types.Int && possiblyImplicit {
		p.em.Emit("INT2FLOATS")
		return true
	}
	return false
}

func tagFromTypeToken(k token.Kind) (types.Tag, bool) {
	switch k {
	case token.TYPE_INT:
		return types.Int, true
	case token.TYPE_DOUBLE:
		return types.Double, true
	case token.TYPE_STRING:
		return types.String, true
	case token.TYPE_BOOL:
		return types.Bool, true
	}
	return types.Unknown, false
}

// parseTypeAnnotationRest parses a declared-type keyword plus an optional
// trailing `?`, the token just after a `:` has already been... no: this
// reads the type keyword itself, then looks one token further for `?`.
func (p *Parser) parseTypeAnnotationRest() (types.Tag, error) {
	typeTok := p.next()
	base, ok := tagFromTypeToken(typeTok.Kind)
	if !ok {
		return types.Unknown, errAt(typeTok, "SemUnknownType", "unknown type %s", typeTok.Kind)
	}
	tok := p.next()
	if tok.Kind == token.QUESTION {
		return types.Optional(base), nil
	}
	p.pushBack(tok)
	return base, nil
}

// parseVarDecl handles `let`/`var` declarations: a type annotation, an
// initializer, or both are required; at least one must be present.
func (p *Parser) parseVarDecl() error {
	kw := p.next()
	immutable := kw.Kind == token.LET

	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return err
	}

	var declaredType types.Tag
	hasType := false
	tok := p.next()
	if tok.Kind == token.COLON {
		hasType = true
		t, err := p.parseTypeAnnotationRest()
		if err != nil {
			return err
		}
		declaredType = t
		tok = p.next()
	}

	hasInit := false
	var exprType types.Tag
	var possiblyImplicit bool
	if tok.Kind == token.ASSIGN {
		hasInit = true
		t, pi, err := p.parseRHS()
		if err != nil {
			return err
		}
		exprType, possiblyImplicit = t, pi
	} else {
		p.pushBack(tok)
	}

	if !hasType && !hasInit {
		return errAt(nameTok, "SynErr", "declaration of %q needs a type annotation or an initializer", nameTok.Lexeme)
	}

	var finalType types.Tag
	switch {
	case hasType && hasInit:
		if !p.checkAssignable(declaredType, exprType, possiblyImplicit) {
			return errAt(nameTok, "SemType", "cannot initialize %q of type %s with a value of type %s", nameTok.Lexeme, declaredType, exprType)
		}
		finalType = declaredType
	case hasType && !hasInit:
		finalType = declaredType
		if declaredType.IsOptional() {
			p.em.Emit("PUSHS nil@nil")
			hasInit = true
		}
	default: // !hasType && hasInit
		switch exprType {
		case types.Nil:
			return errAt(nameTok, "SemUnknownType", "cannot infer the type of %q from nil alone", nameTok.Lexeme)
		case types.Void:
			return errAt(nameTok, "SemType", "cannot initialize %q from a Void result", nameTok.Lexeme)
		}
		finalType = exprType
	}

	codename := p.em.NewVarCodename(nameTok.Lexeme)
	entry := &symtab.Entry{
		Name: nameTok.Lexeme, Type: finalType, Codename: codename,
		Initialized: hasInit, Immutable: immutable,
	}
	if !p.tab.InsertLocal(entry) {
		return errAt(nameTok, "SemRedef", "%q is already declared in this block", nameTok.Lexeme)
	}
	p.em.HoistDeclare(codename)
	if hasInit {
		p.em.Emit("POPS " + codename)
	}
	return nil
}

// parseIdentStmt resolves the ambiguity between an assignment and a
// call-as-statement by reading one further token after the identifier.
func (p *Parser) parseIdentStmt(nameTok token.Token) error {
	tok := p.next()
	switch tok.Kind {
	case token.LPAREN:
		p.pushBack(tok)
		retType, err := p.parseCall(nameTok)
		if err != nil {
			return err
		}
		// retType is Unknown for a call whose callee is still only a
		// forward-reference placeholder: its real return type, Void or not,
		// isn't known until the matching `func` is parsed. Skipping CLEARS
		// here trades a possible leaked stack value
		// (if the real definition turns out non-Void) for never popping a
		// value that a Void definition never pushed.
		if retType != types.Void && retType != types.Unknown {
			p.em.Emit("CLEARS")
		}
		return nil
	case token.ASSIGN:
		return p.parseAssignment(nameTok)
	default:
		return errAt(tok, "SynErr", "expected = or ( after %q", nameTok.Lexeme)
	}
}

func (p *Parser) parseAssignment(nameTok token.Token) error {
	entry, ok := p.tab.Lookup(nameTok.Lexeme)
	if !ok {
		return errAt(nameTok, "SemUndef", "undefined identifier %q", nameTok.Lexeme)
	}
	if entry.Signature != nil {
		return errAt(nameTok, "SemOther", "%q is a function, not assignable", nameTok.Lexeme)
	}
	if entry.Immutable && entry.Initialized {
		return errAt(nameTok, "SemOther", "cannot assign to %q: already-initialized let binding", nameTok.Lexeme)
	}

	exprType, possiblyImplicit, err := p.parseRHS()
	if err != nil {
		return err
	}
	if !p.checkAssignable(entry.Type, exprType, possiblyImplicit) {
		return errAt(nameTok, "SemType", "cannot assign a value of type %s to %q of type %s", exprType, nameTok.Lexeme, entry.Type)
	}
	p.em.Emit("POPS " + entry.Codename)
	entry.Initialized = true
	return nil
}

// parseIf parses one `if EXP { … } (else (if …|{ … }))?` and reports
// whether both its arms unconditionally return, so a chained `else if`
// can be folded into the same computation by its caller.
func (p *Parser) parseIf(ifTok token.Token) (bool, error) {
	tok := p.next()
	if tok.Kind == token.LET {
		return p.parseIfLet(ifTok)
	}
	p.pushBack(tok)

	an := exprs.New(p.src, p.tab, p.em)
	condType, _, err := an.Analyze()
	if err != nil {
		return false, err
	}
	if condType != types.Bool {
		return false, errAt(ifTok, "SemType", "if condition must be Bool, got %s", condType)
	}

	elseLabel := p.em.NewLabel("$else")
	endLabel := p.em.NewLabel("$endif")
	p.em.Emit("PUSHS bool@false")
	p.em.Emitf("JUMPIFEQS %s", elseLabel)

	p.tab.PushBlock(false, false)
	if err := p.parseStmtsUntilRBrace(); err != nil {
		p.tab.PopBlock()
		return false, err
	}
	thenReturns := p.tab.BlockHasReturn()
	p.tab.PopBlock()

	elseReturns := false
	tok = p.next()
	if tok.Kind == token.ELSE {
		p.em.Emitf("JUMP %s", endLabel)
		p.em.Emitf("LABEL %s", elseLabel)

		elseTok := p.next()
		if elseTok.Kind == token.IF {
			both, err := p.parseIf(elseTok)
			if err != nil {
				return false, err
			}
			elseReturns = both
		} else {
			p.pushBack(elseTok)
			p.tab.PushBlock(false, false)
			if err := p.parseStmtsUntilRBrace(); err != nil {
				p.tab.PopBlock()
				return false, err
			}
			elseReturns = p.tab.BlockHasReturn()
			p.tab.PopBlock()
		}
		p.em.Emitf("LABEL %s", endLabel)
	} else {
		p.pushBack(tok)
		p.em.Emitf("LABEL %s", elseLabel)
	}

	return thenReturns && elseReturns, nil
}

// parseIfLet handles `if let id { … } else { … }`: id must already be an
// immutable, initialized optional variable; inside
// the true arm a shadow binding of the same codename narrows its type to
// the optional's base.
func (p *Parser) parseIfLet(ifTok token.Token) (bool, error) {
	idTok, err := p.expect(token.IDENT)
	if err != nil {
		return false, err
	}
	entry, ok := p.tab.Lookup(idTok.Lexeme)
	if !ok {
		return false, errAt(idTok, "SemUndef", "undefined identifier %q", idTok.Lexeme)
	}
	if !entry.Immutable || !entry.Initialized {
		return false, errAt(idTok, "SemOther", "if let requires an immutable, initialized variable")
	}
	if !entry.Type.IsOptional() {
		return false, errAt(idTok, "SemType", "if let requires an optional-typed variable, got %s", entry.Type)
	}

	elseLabel := p.em.NewLabel("$ifLet")
	endLabel := p.em.NewLabel("$endIfLet")
	p.em.Emitf("JUMPIFEQ %s %s nil@nil", elseLabel, entry.Codename)

	p.tab.PushBlock(false, false)
	p.tab.InsertLocal(&symtab.Entry{
		Name: idTok.Lexeme, Type: entry.Type.Base(), Codename: entry.Codename,
		Initialized: true, Immutable: true,
	})
	if err := p.parseStmtsUntilRBrace(); err != nil {
		p.tab.PopBlock()
		return false, err
	}
	thenReturns := p.tab.BlockHasReturn()
	p.tab.PopBlock()

	elseReturns := false
	tok := p.next()
	if tok.Kind == token.ELSE {
		p.em.Emitf("JUMP %s", endLabel)
		p.em.Emitf("LABEL %s", elseLabel)

		elseTok := p.next()
		if elseTok.Kind == token.IF {
			both, err := p.parseIf(elseTok)
			if err != nil {
				return false, err
			}
			elseReturns = both
		} else {
			p.pushBack(elseTok)
			p.tab.PushBlock(false, false)
			if err := p.parseStmtsUntilRBrace(); err != nil {
				p.tab.PopBlock()
				return false, err
			}
			elseReturns = p.tab.BlockHasReturn()
			p.tab.PopBlock()
		}
		p.em.Emitf("LABEL %s", endLabel)
	} else {
		p.pushBack(tok)
		p.em.Emitf("LABEL %s", elseLabel)
	}

	return thenReturns && elseReturns, nil
}

// parseWhile handles `while EXP { … }`: the entry label precedes the
// condition check so the back-edge can jump straight to it;
// loop-invariant declarations inside the body are hoisted above the
// outermost loop's entry label via Emitter.HoistDeclare/LeaveLoop.
func (p *Parser) parseWhile(whileTok token.Token) error {
	entryLabel := p.em.NewLabel("$while")
	exitLabel := p.em.NewLabel("$endWhile")
	p.em.EnterLoop(entryLabel)

	an := exprs.New(p.src, p.tab, p.em)
	condType, _, err := an.Analyze()
	if err != nil {
		p.em.LeaveLoop()
		return err
	}
	if condType != types.Bool {
		p.em.LeaveLoop()
		return errAt(whileTok, "SemType", "while condition must be Bool, got %s", condType)
	}
	p.em.Emit("PUSHS bool@false")
	p.em.Emitf("JUMPIFEQS %s", exitLabel)

	p.tab.PushBlock(false, true)
	if err := p.parseStmtsUntilRBrace(); err != nil {
		p.tab.PopBlock()
		p.em.LeaveLoop()
		return err
	}
	p.tab.PopBlock()

	p.em.Emitf("JUMP %s", entryLabel)
	p.em.Emitf("LABEL %s", exitLabel)
	p.em.LeaveLoop()
	return nil
}

// parseReturn handles `return`: forbidden at global scope; a
// Void function must not carry a value; a value function must carry one
// compatible (with Int-literal promotion) with its declared return type. A
// bare `return` (no value) is recognized only when immediately followed by
// `}` — the unambiguous case reachable with one token of lookahead; a
// `return` anywhere else must carry an expression.
func (p *Parser) parseReturn(retTok token.Token) error {
	if p.tab.Depth() == 1 {
		return errAt(retTok, "SemOther", "return is not allowed at global scope")
	}
	want := p.funcReturnStack[len(p.funcReturnStack)-1]

	tok := p.next()
	if tok.Kind == token.RBRACE {
		p.pushBack(tok)
		if want != types.Void {
			return errAt(retTok, "SemReturn", "function must return a value of type %s", want)
		}
		p.em.Emit("RETURN")
		p.tab.BlockSetReturn()
		return nil
	}
	p.pushBack(tok)

	if want == types.Void {
		return errAt(retTok, "SemReturn", "a Void function must not return a value")
	}
	t, possiblyImplicit, err := p.parseRHS()
	if err != nil {
		return err
	}
	if !p.checkAssignable(want, t, possiblyImplicit) {
		return errAt(retTok, "SemType", "cannot return a value of type %s from a function declared to return %s", t, want)
	}
	p.em.Emit("RETURN")
	p.tab.BlockSetReturn()
	return nil
}

// parseParam parses one function-declaration parameter: `label id: Type` or
// the shorthand `id: Type` (label implicitly equal to id). `_` is a valid
// label (meaning the call site passes that argument unlabeled) and a valid
// id (meaning the argument binds no name in the body).
func (p *Parser) parseParam() (label, id string, typ types.Tag, err error) {
	first, err := p.expect(token.IDENT)
	if err != nil {
		return "", "", types.Unknown, err
	}
	tok := p.next()
	if tok.Kind == token.COLON {
		t, err := p.parseTypeAnnotationRest()
		return first.Lexeme, first.Lexeme, t, err
	}
	if tok.Kind != token.IDENT {
		return "", "", types.Unknown, errAt(tok, "SynErr", "expected parameter name, found %s", tok.Kind)
	}
	idTok := tok
	if _, err := p.expect(token.COLON); err != nil {
		return "", "", types.Unknown, err
	}
	t, err := p.parseTypeAnnotationRest()
	return first.Lexeme, idTok.Lexeme, t, err
}

func sameBaseKind(recorded, declared types.Tag) bool {
	if recorded == types.Unknown {
		return true
	}
	base := recorded
	if base.IsOptional() {
		base = base.Base()
	}
	return base == declared
}

// parseFuncDef handles a `func` definition: only valid at global scope,
// reconciled against any outstanding forward-call signature, with
// pairwise-distinct parameter labels and ids.
func (p *Parser) parseFuncDef() error {
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return err
	}
	if p.tab.Depth() != 1 {
		return errAt(nameTok, "SemOther", "function definitions are only allowed at global scope")
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return err
	}

	var paramNames, paramIDs []string
	var paramTypes []types.Tag
	tok := p.next()
	if tok.Kind != token.RPAREN {
		p.pushBack(tok)
		for {
			label, id, typ, err := p.parseParam()
			if err != nil {
				return err
			}
			paramNames = append(paramNames, label)
			paramIDs = append(paramIDs, id)
			paramTypes = append(paramTypes, typ)
			tok = p.next()
			if tok.Kind == token.RPAREN {
				break
			}
			if tok.Kind != token.COMMA {
				return errAt(tok, "SynErr", "expected , or ) in parameter list")
			}
		}
	}

	seenNames := map[string]bool{}
	seenIDs := map[string]bool{}
	for i, n := range paramNames {
		if n != "_" {
			if seenNames[n] {
				return errAt(nameTok, "SemFunc", "duplicate parameter label %q", n)
			}
			seenNames[n] = true
		}
		if id := paramIDs[i]; id != "_" {
			if seenIDs[id] {
				return errAt(nameTok, "SemFunc", "duplicate parameter name %q", id)
			}
			seenIDs[id] = true
		}
	}

	retType := types.Void
	tok = p.next()
	if tok.Kind == token.ARROW {
		t, err := p.parseTypeAnnotationRest()
		if err != nil {
			return err
		}
		retType = t
		tok = p.next()
	}
	if tok.Kind != token.LBRACE {
		return errAt(tok, "SynErr", "expected { to begin the body of %q", nameTok.Lexeme)
	}
	p.pushBack(tok)

	existing, known := p.tab.LookupGlobal(nameTok.Lexeme)
	var sig *symtab.Signature
	if known {
		if existing.Signature == nil {
			return errAt(nameTok, "SemRedef", "%q is already declared and is not a function", nameTok.Lexeme)
		}
		sig = existing.Signature
		if sig.Defined {
			return errAt(nameTok, "SemRedef", "function %q is already defined", nameTok.Lexeme)
		}
		if len(sig.ParamTypes) != len(paramTypes) {
			return errAt(nameTok, "SemFunc", "%q redefined with a different number of parameters than its forward call", nameTok.Lexeme)
		}
		for i := range paramTypes {
			if sig.ParamNames[i] != paramNames[i] {
				return errAt(nameTok, "SemFunc", "%q parameter %d label %q does not match forward call's %q", nameTok.Lexeme, i+1, paramNames[i], sig.ParamNames[i])
			}
			if !sameBaseKind(sig.ParamTypes[i], paramTypes[i]) {
				return errAt(nameTok, "SemFunc", "%q parameter %d type %s is incompatible with forward call's inferred %s", nameTok.Lexeme, i+1, paramTypes[i], sig.ParamTypes[i])
			}
		}
		sig.ParamTypes = paramTypes
		sig.ParamIDs = paramIDs
		sig.ReturnType = retType
		sig.Defined = true
		p.tab.Reconcile(nameTok.Lexeme)
	} else {
		sig = &symtab.Signature{ReturnType: retType, ParamNames: paramNames, ParamIDs: paramIDs, ParamTypes: paramTypes, Defined: true}
		p.tab.InsertGlobal(&symtab.Entry{Name: nameTok.Lexeme, Type: types.Func, Signature: sig, Initialized: true})
	}

	p.em.EnterFunction()
	codenames := p.em.EmitFnPrologue(nameTok.Lexeme, paramIDs)
	p.tab.PushBlock(true, false)
	for i, id := range paramIDs {
		if id == "_" {
			continue
		}
		p.tab.InsertLocal(&symtab.Entry{Name: id, Type: paramTypes[i], Codename: codenames[i], Initialized: true})
	}

	p.funcReturnStack = append(p.funcReturnStack, retType)
	bodyErr := p.parseStmtsUntilRBrace()
	p.funcReturnStack = p.funcReturnStack[:len(p.funcReturnStack)-1]

	if bodyErr != nil {
		p.tab.PopBlock()
		p.em.LeaveFunction()
		return bodyErr
	}
	hasReturn := p.tab.BlockHasReturn()
	p.tab.PopBlock()

	if retType == types.Void {
		if !hasReturn {
			p.em.Emit("RETURN")
		}
	} else if !hasReturn {
		p.em.LeaveFunction()
		return errAt(nameTok, "SemReturn", "function %q must return a value on every path", nameTok.Lexeme)
	}
	p.em.LeaveFunction()
	return nil
}

// parseCall parses one call's argument list (`(` already consumed by the
// caller's two-token lookahead) and emits it, dispatching to the built-in
// inliner, the substring helper, or a user function's CALL/POPFRAME
// convention. Arguments are evaluated and pushed in
// their textual left-to-right order; user functions and substring pop them
// in the mirrored reverse order in their own prologue (see the emitter
// package's documented deviation).
func (p *Parser) parseCall(nameTok token.Token) (types.Tag, error) {
	name := nameTok.Lexeme
	if _, err := p.expect(token.LPAREN); err != nil {
		return types.Unknown, err
	}

	if name == "write" {
		return p.parseWriteCall()
	}

	entry, known := p.tab.Lookup(name)
	if known && entry.Signature == nil {
		return types.Unknown, errAt(nameTok, "SemOther", "%q is not callable", name)
	}

	labels, argTypes, err := p.parseCallArgs()
	if err != nil {
		return types.Unknown, err
	}

	var sig *symtab.Signature
	if !known {
		sig = &symtab.Signature{ParamNames: labels, ParamTypes: optionalizeArgTypes(argTypes)}
		entry = p.tab.DeclareForward(name, sig)
	} else {
		sig = entry.Signature
		if sig.Defined {
			if err := checkCallAgainstSignature(nameTok, sig, labels, argTypes); err != nil {
				return types.Unknown, err
			}
		}
	}

	if builtins.IsBuiltin(name) && name != "substring" {
		return p.emitSimpleBuiltin(name)
	}

	if name == "substring" {
		p.em.EmitFnCall(builtins.SubstringLabel)
		p.em.MarkSubstringUsed()
	} else {
		p.em.EmitFnCall(name)
	}
	p.em.Emit("POPFRAME")
	return sig.ReturnType, nil
}

// parseCallArgs parses a comma-separated argument list up to the closing
// `)` (already past the opening `(`), returning each argument's call-site
// label (`"_"` if none was given) and static type.
func (p *Parser) parseCallArgs() ([]string, []types.Tag, error) {
	var labels []string
	var argTypes []types.Tag

	tok := p.next()
	if tok.Kind == token.RPAREN {
		return labels, argTypes, nil
	}
	p.pushBack(tok)

	for {
		label, t, err := p.parseOneArg()
		if err != nil {
			return nil, nil, err
		}
		labels = append(labels, label)
		argTypes = append(argTypes, t)

		tok = p.next()
		if tok.Kind == token.RPAREN {
			break
		}
		if tok.Kind != token.COMMA {
			return nil, nil, errAt(tok, "SynErr", "expected , or ) in argument list")
		}
	}
	return labels, argTypes, nil
}

// parseOneArg parses a single `label: expr` or bare `expr` call argument.
func (p *Parser) parseOneArg() (string, types.Tag, error) {
	tok := p.next()
	label := "_"
	var an *exprs.Analyzer

	switch {
	case tok.Kind == token.IDENT:
		tok2 := p.next()
		if tok2.Kind == token.COLON {
			label = tok.Lexeme
			an = exprs.New(p.src, p.tab, p.em)
		} else {
			p.pushBack(tok2)
			an = exprs.New(&seededSource{seed: &tok, under: p.src}, p.tab, p.em)
		}
	default:
		p.pushBack(tok)
		an = exprs.New(p.src, p.tab, p.em)
	}

	t, _, err := an.Analyze()
	if err != nil {
		return "", types.Unknown, err
	}
	return label, t, nil
}

// parseWriteCall handles `write`'s variadic, unlabeled argument list: each
// argument is evaluated and written immediately with its own WRITE
// instruction. Since any compilation error anywhere discards the entire
// emit buffer, emitting eagerly per argument is observationally identical
// to buffering until the whole call succeeds.
func (p *Parser) parseWriteCall() (types.Tag, error) {
	tok := p.next()
	if tok.Kind == token.RPAREN {
		return types.Void, nil
	}
	p.pushBack(tok)

	for {
		argTok := p.next()
		var an *exprs.Analyzer
		if argTok.Kind == token.IDENT {
			peek := p.next()
			if peek.Kind == token.COLON {
				return types.Unknown, errAt(argTok, "SemFunc", "write's arguments must be unlabeled")
			}
			p.pushBack(peek)
			an = exprs.New(&seededSource{seed: &argTok, under: p.src}, p.tab, p.em)
		} else {
			p.pushBack(argTok)
			an = exprs.New(p.src, p.tab, p.em)
		}
		if _, _, err := an.Analyze(); err != nil {
			return types.Unknown, err
		}
		p.em.Emit("POPS " + emitter.Tmp1)
		p.em.Emit("WRITE " + emitter.Tmp1)

		tok = p.next()
		if tok.Kind == token.RPAREN {
			break
		}
		if tok.Kind != token.COMMA {
			return types.Unknown, errAt(tok, "SynErr", "expected , or ) in argument list")
		}
	}
	return types.Void, nil
}

// emitSimpleBuiltin inlines one of the non-frame built-ins: its
// argument(s) are already pushed on the data stack by parseCallArgs.
func (p *Parser) emitSimpleBuiltin(name string) (types.Tag, error) {
	switch name {
	case "readString":
		p.em.Emit("READ " + emitter.Tmp1 + " string")
		p.em.Emit("PUSHS " + emitter.Tmp1)
		return types.StringOpt, nil
	case "readInt":
		p.em.Emit("READ " + emitter.Tmp1 + " int")
		p.em.Emit("PUSHS " + emitter.Tmp1)
		return types.IntOpt, nil
	case "readDouble":
		p.em.Emit("READ " + emitter.Tmp1 + " float")
		p.em.Emit("PUSHS " + emitter.Tmp1)
		return types.DoubleOpt, nil
	case "Int2Double":
		p.em.Emit("POPS " + emitter.Tmp1)
		p.em.Emitf("INT2FLOAT %s %s", emitter.Tmp2, emitter.Tmp1)
		p.em.Emit("PUSHS " + emitter.Tmp2)
		return types.Double, nil
	case "Double2Int":
		p.em.Emit("FLOAT2INTS")
		return types.Int, nil
	case "length":
		p.em.Emit("POPS " + emitter.Tmp1)
		p.em.Emitf("STRLEN %s %s", emitter.Tmp2, emitter.Tmp1)
		p.em.Emit("PUSHS " + emitter.Tmp2)
		return types.Int, nil
	case "ord":
		p.em.Emit("POPS " + emitter.Tmp1)
		p.em.Emitf("STRI2INT %s %s int@0", emitter.Tmp2, emitter.Tmp1)
		p.em.Emit("PUSHS " + emitter.Tmp2)
		return types.Int, nil
	case "chr":
		p.em.Emit("INT2CHARS")
		return types.String, nil
	}
	return types.Unknown, errAt(token.Token{}, "InternalCompilerErr", "unknown simple built-in %q", name)
}

// optionalizeArgTypes applies the forward-call recording rule: Int/Double/
// String arguments are recorded as their optional variant (to remain
// compatible with a later, more permissive definition); Nil arguments
// record Unknown; anything else is recorded as-is.
func optionalizeArgTypes(argTypes []types.Tag) []types.Tag {
	out := make([]types.Tag, len(argTypes))
	for i, t := range argTypes {
		switch t {
		case types.Int:
			out[i] = types.IntOpt
		case types.Double:
			out[i] = types.DoubleOpt
		case types.String:
			out[i] = types.StringOpt
		case types.Nil:
			out[i] = types.Unknown
		default:
			out[i] = t
		}
	}
	return out
}

// checkCallAgainstSignature validates a call against an already-defined
// signature: arity, per-argument labels, and per-argument T1 compatibility.
func checkCallAgainstSignature(nameTok token.Token, sig *symtab.Signature, labels []string, argTypes []types.Tag) error {
	if len(argTypes) != len(sig.ParamTypes) {
		return errAt(nameTok, "SemFunc", "%q expects %d argument(s), got %d", nameTok.Lexeme, len(sig.ParamTypes), len(argTypes))
	}
	for i := range argTypes {
		want := sig.ParamNames[i]
		if want != "_" && labels[i] != want {
			return errAt(nameTok, "SemFunc", "%q argument %d expects label %q, got %q", nameTok.Lexeme, i+1, want, labels[i])
		}
		if want == "_" && labels[i] != "_" {
			return errAt(nameTok, "SemFunc", "%q argument %d takes no label", nameTok.Lexeme, i+1)
		}
		if !types.AssignableTo(sig.ParamTypes[i], argTypes[i]) {
			return errAt(nameTok, "SemType", "%q argument %d expects %s, got %s", nameTok.Lexeme, i+1, sig.ParamTypes[i], argTypes[i])
		}
	}
	return nil
}
