package encode

import (
	"encoding/json"
	"testing"

	"github.com/lyzr/composer/internal/ast"
	"github.com/lyzr/composer/internal/builder"
)

func TestEncodeProducesConductorActionForTopLevel(t *testing.T) {
	act, err := builder.Action("DivideByTwo")
	if err != nil {
		t.Fatal(err)
	}
	seq, err := builder.Sequence(act)
	if err != nil {
		t.Fatal(err)
	}

	enc, err := Encode(seq, nil)
	if err != nil {
		t.Fatal(err)
	}
	if enc.Composition == nil {
		t.Fatalf("expected a non-nil encoded composition node")
	}
	if len(enc.Actions) != 1 {
		t.Fatalf("expected exactly one generated conductor action, got %d", len(enc.Actions))
	}
	top := enc.Actions[0]
	if top.Action.Exec.Kind != "conductor" {
		t.Fatalf("expected conductor exec kind, got %q", top.Action.Exec.Kind)
	}
	var foundConductor, foundComposer bool
	for _, a := range top.Action.Annotations {
		if a.Key == "conductor" {
			foundConductor = true
		}
		if a.Key == "composer" {
			foundComposer = true
		}
	}
	if !foundConductor || !foundComposer {
		t.Fatalf("expected conductor and composer annotations, got %+v", top.Action.Annotations)
	}

	// the emitted code must be the serialized labeled/lowered AST, decodable
	// back into a node tree.
	var round ast.Node
	if err := json.Unmarshal([]byte(top.Action.Exec.Code), &round); err != nil {
		t.Fatalf("expected exec code to be valid JSON AST, got error: %v", err)
	}
}

func TestEncodeExtractsInlineActionBodies(t *testing.T) {
	act, err := builder.ActionWithExec("inline", &ast.Exec{Kind: "nodejs:default", Code: "function main(params) { return params }"})
	if err != nil {
		t.Fatal(err)
	}

	enc, err := Encode(act, nil)
	if err != nil {
		t.Fatal(err)
	}
	// one extracted inline action, plus the generated top-level conductor action
	if len(enc.Actions) != 2 {
		t.Fatalf("expected 2 actions (inline + conductor), got %d: %+v", len(enc.Actions), enc.Actions)
	}
	found := false
	for _, a := range enc.Actions {
		if a.Name == "/_/inline" && a.Action.Exec.Kind == "nodejs:default" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected inline action body to be extracted, got %+v", enc.Actions)
	}
}
