// Package source declares the Token Source boundary: the external
// collaborator that feeds tokens to the parser. The front end's own
// lexical scanner is one implementation of it, not the interface's reason
// for existing; this is the seam the statement parser and expression
// analyzer are written against, so that any conforming token source can
// drive them.
package source

import "github.com/ifjc/ifjc/lang/token"

// Source supplies the next lexical token and accepts exactly one token of
// pushback.
type Source interface {
	// Next returns the next token, consuming it. If a token was pushed back
	// with PushBack, it is returned instead and the pushback slot is cleared.
	Next() token.Token

	// PushBack returns tok to the source, so that the next call to Next
	// returns it again. It is a programming error to call PushBack twice
	// without an intervening Next; implementations panic in that case.
	PushBack(tok token.Token)
}
