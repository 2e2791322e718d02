package grammar

import (
	"os"
	"testing"

	"golang.org/x/exp/ebnf"
)

// TestEBNF is a conformance check only: it verifies grammar.ebnf is
// well-formed and every production is reachable from Program. It does
// not parse any source file against the grammar — lang/parser is the
// executable grammar; this is a cross-check that the two haven't drifted
// into contradicting each other on production shape.
func TestEBNF(t *testing.T) {
	f, err := os.Open("grammar.ebnf")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	g, err := ebnf.Parse("grammar.ebnf", f)
	if err != nil {
		t.Fatal(err)
	}
	if err := ebnf.Verify(g, "Program"); err != nil {
		t.Fatal(err)
	}
}
