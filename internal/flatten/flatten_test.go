package flatten

import (
	"testing"

	"github.com/lyzr/composer/internal/ast"
	"github.com/lyzr/composer/internal/builder"
	"github.com/lyzr/composer/internal/label"
	"github.com/lyzr/composer/internal/lower"
)

func compileFull(t *testing.T, n *ast.Node) []Instruction {
	t.Helper()
	lowered, err := lower.Lower(n, nil)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	labeled := label.Label(lowered)
	fsm, err := Flatten(labeled)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	return fsm
}

func TestFlattenSingleAction(t *testing.T) {
	n, err := builder.Action("DivideByTwo")
	if err != nil {
		t.Fatal(err)
	}
	fsm := compileFull(t, n)
	if len(fsm) != 1 || fsm[0].Type != ActionK || fsm[0].Name != "/_/DivideByTwo" {
		t.Fatalf("unexpected fsm: %+v", fsm)
	}
}

func TestFlattenSequenceChaining(t *testing.T) {
	a, _ := builder.Action("DivideByTwo")
	b, _ := builder.Action("TripleAndIncrement")
	seq, err := builder.Sequence(a, b)
	if err != nil {
		t.Fatal(err)
	}
	fsm := compileFull(t, seq)

	// pass, action, action
	if len(fsm) != 3 {
		t.Fatalf("expected 3 instructions, got %d: %+v", len(fsm), fsm)
	}
	if fsm[0].Type != Pass {
		t.Fatalf("expected leading pass, got %+v", fsm[0])
	}
	if fsm[0].Next == nil || *fsm[0].Next != 1 {
		t.Fatalf("expected pass.next == 1, got %+v", fsm[0].Next)
	}
	if fsm[1].Next == nil || *fsm[1].Next != 1 {
		t.Fatalf("expected first action.next == 1, got %+v", fsm[1].Next)
	}
	if fsm[2].Next != nil {
		t.Fatalf("expected final instruction to have no next, got %+v", fsm[2].Next)
	}
}

func TestFlattenTryCatchOffsets(t *testing.T) {
	body, _ := builder.Action("DivideByTwo")
	handler, _ := builder.Action("TripleAndIncrement")
	tryNode, err := builder.TryCatch(body, handler)
	if err != nil {
		t.Fatal(err)
	}
	fsm := compileFull(t, tryNode)

	if fsm[0].Type != TryK {
		t.Fatalf("expected leading try, got %+v", fsm[0])
	}
	if fsm[0].Catch == nil {
		t.Fatalf("expected try.catch to be set")
	}
	target := 0 + *fsm[0].Catch
	if fsm[target].Type != FunctionK && fsm[target].Type != ActionK {
		// catch target should land on the start of the handler fragment
		t.Fatalf("catch target %d has unexpected type %+v", target, fsm[target])
	}
}

func TestFlattenFinallyCatchSkipsToFinalizer(t *testing.T) {
	body, _ := builder.Action("DivideByTwo")
	finalizer, _ := builder.Action("TripleAndIncrement")
	finallyNode, err := builder.Finally(body, finalizer)
	if err != nil {
		t.Fatal(err)
	}
	fsm := compileFull(t, finallyNode)

	if fsm[0].Type != TryK || fsm[0].Catch == nil {
		t.Fatalf("expected leading try with catch set, got %+v", fsm[0])
	}
	target := *fsm[0].Catch
	if fsm[target].Name != "/_/TripleAndIncrement" {
		t.Fatalf("expected catch to land directly on finalizer, landed on %+v", fsm[target])
	}
}

func TestFlattenLetMaskDistinguished(t *testing.T) {
	letNode, err := builder.Let(map[string]interface{}{"x": 1})
	if err != nil {
		t.Fatal(err)
	}
	fsm := compileFull(t, letNode)
	if fsm[0].Type != LetK || fsm[0].IsMask {
		t.Fatalf("expected non-mask let, got %+v", fsm[0])
	}

	maskNode, err := builder.Mask()
	if err != nil {
		t.Fatal(err)
	}
	fsm2 := compileFull(t, maskNode)
	if fsm2[0].Type != LetK || !fsm2[0].IsMask || fsm2[0].Declarations != nil {
		t.Fatalf("expected mask sentinel, got %+v", fsm2[0])
	}
}
