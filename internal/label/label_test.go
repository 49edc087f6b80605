package label

import (
	"testing"

	"github.com/lyzr/composer/internal/builder"
)

func TestLabelRootPath(t *testing.T) {
	a, _ := builder.Action("DivideByTwo")
	b, _ := builder.Action("TripleAndIncrement")
	seq, err := builder.Sequence(a, b)
	if err != nil {
		t.Fatal(err)
	}
	out := Label(seq)
	if out.Path != "" {
		t.Fatalf("expected root path \"\", got %q", out.Path)
	}
	if out.Components[0].Path != "[0]" {
		t.Fatalf("expected [0], got %q", out.Components[0].Path)
	}
	if out.Components[1].Path != "[1]" {
		t.Fatalf("expected [1], got %q", out.Components[1].Path)
	}
}

func TestLabelNamedField(t *testing.T) {
	test, _ := builder.Action("isEven")
	k, _ := builder.Action("TripleAndIncrement")
	ifNode, err := builder.If(test, k)
	if err != nil {
		t.Fatal(err)
	}
	out := Label(ifNode)
	if out.Test.Path != ".test" {
		t.Fatalf("expected .test, got %q", out.Test.Path)
	}
	if out.Consequent.Path != ".consequent" {
		t.Fatalf("expected .consequent, got %q", out.Consequent.Path)
	}
}
