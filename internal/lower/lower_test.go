package lower

import (
	"testing"

	"github.com/lyzr/composer/internal/ast"
	"github.com/lyzr/composer/internal/builder"
)

func allPrimitive(t *testing.T, n *ast.Node) {
	t.Helper()
	if !ast.Primitive[n.Type] {
		t.Fatalf("non-primitive type %q survived lowering", n.Type)
	}
	for _, field := range ast.SubFields(n.Type) {
		if child := n.Get(field); child != nil {
			allPrimitive(t, child)
		}
	}
	for _, c := range n.Components {
		allPrimitive(t, c)
	}
}

func TestLowerValueToPrimitive(t *testing.T) {
	v, err := builder.Value(42)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Lower(v, nil)
	if err != nil {
		t.Fatal(err)
	}
	allPrimitive(t, out)
	if out.Type != ast.Let {
		t.Fatalf("expected top-level let, got %q", out.Type)
	}
}

func TestLowerRetainToPrimitive(t *testing.T) {
	act, err := builder.Action("DivideByTwo")
	if err != nil {
		t.Fatal(err)
	}
	retain, err := builder.Retain(act)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Lower(retain, nil)
	if err != nil {
		t.Fatal(err)
	}
	allPrimitive(t, out)
}

func TestLowerIfWhileRepeatRetryMergeToPrimitive(t *testing.T) {
	test, _ := builder.Action("isEven")
	k, _ := builder.Action("TripleAndIncrement")
	a, _ := builder.Action("DivideByTwo")

	ifNode, err := builder.IfElse(test, k, a)
	if err != nil {
		t.Fatal(err)
	}
	whileNode, err := builder.While(test, k)
	if err != nil {
		t.Fatal(err)
	}
	doWhileNode, err := builder.DoWhile(k, test)
	if err != nil {
		t.Fatal(err)
	}
	repeatNode, err := builder.Repeat(3, k)
	if err != nil {
		t.Fatal(err)
	}
	retryNode, err := builder.Retry(2, k)
	if err != nil {
		t.Fatal(err)
	}
	mergeNode, err := builder.Merge(k)
	if err != nil {
		t.Fatal(err)
	}
	sleepNode, err := builder.Sleep(100)
	if err != nil {
		t.Fatal(err)
	}

	for _, n := range []*ast.Node{ifNode, whileNode, doWhileNode, repeatNode, retryNode, mergeNode, sleepNode} {
		out, err := Lower(n, nil)
		if err != nil {
			t.Fatalf("lowering %q: %v", n.Type, err)
		}
		allPrimitive(t, out)
	}
}

func TestLowerPreservesPath(t *testing.T) {
	v, _ := builder.Value(1)
	v.Path = "root"
	out, err := Lower(v, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Path != "root" {
		t.Fatalf("expected preserved path %q, got %q", "root", out.Path)
	}
}

func TestLowerTargetStopsEarly(t *testing.T) {
	act, _ := builder.Action("DivideByTwo")
	retain, err := builder.Retain(act)
	if err != nil {
		t.Fatal(err)
	}
	target := map[ast.Type]bool{ast.Retain: true}
	out, err := Lower(retain, target)
	if err != nil {
		t.Fatal(err)
	}
	if out.Type != ast.Retain {
		t.Fatalf("expected lowering to stop at target type %q, got %q", ast.Retain, out.Type)
	}
}
