package main

import (
	"testing"

	"github.com/lyzr/composer/internal/ast"
	"github.com/lyzr/composer/internal/builder"
)

func TestRunPlainPrintsASTUnlowered(t *testing.T) {
	seq, err := builder.Sequence(mustAction(t, "a"), mustAction(t, "b"))
	if err != nil {
		t.Fatal(err)
	}
	if err := run(seq, false, false, false); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunLowerProducesPrimitiveOnlyTree(t *testing.T) {
	seq, err := builder.IfElse(mustAction(t, "cond"), mustAction(t, "yes"), mustAction(t, "no"))
	if err != nil {
		t.Fatal(err)
	}
	if err := run(seq, true, false, false); err != nil {
		t.Fatalf("run --lower: %v", err)
	}
}

func TestRunEncodeEmitsConductorCode(t *testing.T) {
	seq, err := builder.Sequence(mustAction(t, "a"))
	if err != nil {
		t.Fatal(err)
	}
	seq.Name = "anonymous"
	if err := run(seq, false, true, false); err != nil {
		t.Fatalf("run --encode: %v", err)
	}
}

func mustAction(t *testing.T, name string) *ast.Node {
	t.Helper()
	n, err := builder.Action(name)
	if err != nil {
		t.Fatal(err)
	}
	return n
}
