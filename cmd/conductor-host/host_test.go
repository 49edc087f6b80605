package main

import (
	"context"
	"testing"

	"github.com/lyzr/composer/internal/ast"
	"github.com/lyzr/composer/internal/builder"
	"github.com/lyzr/composer/internal/obslog"
	"github.com/lyzr/composer/internal/registry"
)

func testHost(t *testing.T) *host {
	t.Helper()
	log := obslog.New("error", "text")
	store := registry.NewInMemoryActionClient(leafInvoker)
	return newHost(log, store)
}

func TestHostDeployAndInvokeEchoAction(t *testing.T) {
	h := testHost(t)
	ctx := context.Background()

	composition, err := builder.Sequence(mustAction(t, "echo"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := h.deploy(ctx, "echo-flow", composition); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	result, err := h.invoke(ctx, "echo-flow", map[string]interface{}{"n": float64(3)})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Error != nil {
		t.Fatalf("unexpected error result: %v", result.Error)
	}
	if result.Params["n"] != float64(3) {
		t.Fatalf("expected params to pass through the echo action unchanged, got %+v", result.Params)
	}
}

func TestHostRedeployInvalidatesCachedConductor(t *testing.T) {
	h := testHost(t)
	ctx := context.Background()

	first, err := builder.Sequence(mustAction(t, "echo"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.deploy(ctx, "flow", first); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if _, err := h.invoke(ctx, "flow", map[string]interface{}{}); err != nil {
		t.Fatalf("invoke: %v", err)
	}

	second, err := builder.Sequence(mustAction(t, "echo"), mustAction(t, "echo"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.deploy(ctx, "flow", second); err != nil {
		t.Fatalf("redeploy: %v", err)
	}

	cnd, err := h.conductorFor(ctx, "flow")
	if err != nil {
		t.Fatalf("conductorFor after redeploy: %v", err)
	}
	if cnd == nil {
		t.Fatal("expected a rebuilt conductor after redeploy")
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
