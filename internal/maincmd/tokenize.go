package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/mainer"

	"github.com/ifjc/ifjc/lang/scanner"
	"github.com/ifjc/ifjc/lang/token"
)

// Tokenize runs only the scanner and prints the resulting token stream, one
// token per line, up to and including EOF.
func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	src, err := readSource(stdio, args)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	s := scanner.New(src)
	for {
		tok := s.Next()
		fmt.Fprintf(stdio.Stdout, "%d:%d: %s", tok.Line, tok.Col, tok.Kind)
		if tok.Lexeme != "" {
			fmt.Fprintf(stdio.Stdout, " %q", tok.Lexeme)
		}
		fmt.Fprintln(stdio.Stdout)
		if tok.Kind == token.EOF {
			break
		}
	}
	return nil
}
