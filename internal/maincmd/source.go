package maincmd

import (
	"io"
	"os"

	"github.com/mna/mainer"
)

// readSource reads the single optional path argument, or standard input if
// path is omitted or "-"; a path argument is this tool's own convenience
// extension for testing against files directly.
func readSource(stdio mainer.Stdio, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(stdio.Stdin)
	}
	return os.ReadFile(args[0])
}
