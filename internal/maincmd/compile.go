package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/mainer"

	"github.com/ifjc/ifjc/internal/driver"
)

// Compile runs the full front end (see internal/driver) over the given
// source and writes the assembled IFJcode23 program to stdout, or a single
// diagnostic line to stderr in diag.Error.Error's own format.
func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	src, err := readSource(stdio, args)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	program, err := driver.Compile(src)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	fmt.Fprint(stdio.Stdout, program)
	return nil
}
