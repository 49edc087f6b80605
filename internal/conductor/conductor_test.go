package conductor

import (
	"testing"

	"github.com/lyzr/composer/internal/ast"
	"github.com/lyzr/composer/internal/builder"
	"github.com/lyzr/composer/internal/flatten"
	"github.com/lyzr/composer/internal/label"
	"github.com/lyzr/composer/internal/lower" // init() registers the Lowerer's native helpers
)

func divideByTwo(_ map[string]interface{}, args interface{}) (interface{}, error) {
	m := args.(map[string]interface{})
	n := m["n"].(float64)
	return map[string]interface{}{"n": n / 2}, nil
}

func tripleAndIncrement(_ map[string]interface{}, args interface{}) (interface{}, error) {
	m := args.(map[string]interface{})
	n := m["n"].(float64)
	return map[string]interface{}{"n": n*3 + 1}, nil
}

func isEven(_ map[string]interface{}, args interface{}) (interface{}, error) {
	m := args.(map[string]interface{})
	n := m["n"].(float64)
	return int(n)%2 == 0, nil
}

func compile(t *testing.T, n *ast.Node) []flatten.Instruction {
	t.Helper()
	lowered, err := lower.Lower(n, nil)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	labeled := label.Label(lowered)
	fsm, err := flatten.Flatten(labeled)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	return fsm
}

func TestConductorRetainPairsParamsAndResult(t *testing.T) {
	triple := builder.Function("test.tripleAndIncrement", tripleAndIncrement)
	retain, err := builder.Retain(triple)
	if err != nil {
		t.Fatal(err)
	}
	fsm := compile(t, retain)
	c := New(fsm)

	res := c.Invoke(map[string]interface{}{"n": float64(3)})
	if res.Params == nil {
		t.Fatalf("expected terminal params, got %+v", res)
	}
	params, _ := res.Params["params"].(map[string]interface{})
	result, _ := res.Params["result"].(map[string]interface{})
	if params["n"] != float64(3) {
		t.Fatalf("expected retained input n=3, got %+v", params)
	}
	if result["n"] != float64(10) {
		t.Fatalf("expected result n=10, got %+v", result)
	}
}

func TestConductorIfElseBranches(t *testing.T) {
	test := builder.Function("test.isEven", isEven)
	k := builder.Function("test.divideByTwo", divideByTwo)
	a := builder.Function("test.tripleAndIncrement", tripleAndIncrement)
	ifNode, err := builder.IfElse(test, k, a)
	if err != nil {
		t.Fatal(err)
	}
	fsm := compile(t, ifNode)
	c := New(fsm)

	even := c.Invoke(map[string]interface{}{"n": float64(4)})
	if even.Params["n"] != float64(2) {
		t.Fatalf("expected even branch n=2, got %+v", even)
	}

	odd := c.Invoke(map[string]interface{}{"n": float64(3)})
	if odd.Params["n"] != float64(10) {
		t.Fatalf("expected odd branch n=10, got %+v", odd)
	}
}

func TestConductorWhileLoopsUntilEven(t *testing.T) {
	notEven := func(_ map[string]interface{}, args interface{}) (interface{}, error) {
		ok, _ := isEven(nil, args)
		return !ok.(bool), nil
	}
	loopTest := builder.Function("test.isOdd", notEven)
	body := builder.Function("test.tripleAndIncrement", tripleAndIncrement)
	whileNode, err := builder.While(loopTest, body)
	if err != nil {
		t.Fatal(err)
	}
	fsm := compile(t, whileNode)
	c := New(fsm)

	res := c.Invoke(map[string]interface{}{"n": float64(5)})
	if res.Params == nil {
		t.Fatalf("expected terminal result, got %+v", res)
	}
	if n, _ := res.Params["n"].(float64); int(n)%2 != 0 {
		t.Fatalf("expected an even result, got %v", res.Params["n"])
	}
}

func TestConductorRetryExhaustsAfterNPlus1Attempts(t *testing.T) {
	attempts := 0
	alwaysFails := func(_ map[string]interface{}, _ interface{}) (interface{}, error) {
		attempts++
		return map[string]interface{}{"error": "boom"}, nil
	}
	f := builder.Function("test.alwaysFails", alwaysFails)
	retry, err := builder.Retry(2, f)
	if err != nil {
		t.Fatal(err)
	}
	fsm := compile(t, retry)
	c := New(fsm)

	res := c.Invoke(map[string]interface{}{"n": float64(1)})
	if attempts != 3 {
		t.Fatalf("expected 3 attempts (n+1), got %d", attempts)
	}
	if res.Error == nil {
		t.Fatalf("expected a terminal error result, got %+v", res)
	}
}

func TestConductorTryRecoversFromError(t *testing.T) {
	failing := func(_ map[string]interface{}, _ interface{}) (interface{}, error) {
		return map[string]interface{}{"error": "boom"}, nil
	}
	recoverFn := func(_ map[string]interface{}, args interface{}) (interface{}, error) {
		m := args.(map[string]interface{})
		return map[string]interface{}{"recovered": m["error"]}, nil
	}
	body := builder.Function("test.failing", failing)
	handler := builder.Function("test.recover", recoverFn)
	tryNode, err := builder.TryCatch(body, handler)
	if err != nil {
		t.Fatal(err)
	}
	fsm := compile(t, tryNode)
	c := New(fsm)

	res := c.Invoke(map[string]interface{}{})
	if res.Params == nil {
		t.Fatalf("expected recovered terminal params, got %+v", res)
	}
	if res.Params["recovered"] != "boom" {
		t.Fatalf("expected recovered error, got %+v", res.Params)
	}
}

func TestConductorActionSuspendsAndResumes(t *testing.T) {
	act, err := builder.Action("echo")
	if err != nil {
		t.Fatal(err)
	}
	seq, err := builder.Sequence(act)
	if err != nil {
		t.Fatal(err)
	}
	fsm := compile(t, seq)
	c := New(fsm)

	first := c.Invoke(map[string]interface{}{"n": float64(1)})
	if first.Action != "/_/echo" {
		t.Fatalf("expected suspension on action \"/_/echo\", got %+v", first)
	}
	if first.Resume == nil {
		t.Fatalf("expected a $resume envelope")
	}

	resumed := map[string]interface{}{"n": float64(1), "$resume": first.Resume}
	second := c.Invoke(resumed)
	if second.Params == nil {
		t.Fatalf("expected terminal params after resume, got %+v", second)
	}
	if second.Params["n"] != float64(1) {
		t.Fatalf("expected echoed n=1, got %+v", second.Params)
	}
}

func TestConductorMaskCancelsOneOutwardLet(t *testing.T) {
	getX := func(env map[string]interface{}, _ interface{}) (interface{}, error) {
		v, ok := env["x"]
		return map[string]interface{}{"sawX": ok, "x": v}, nil
	}
	readFn := builder.Function("test.getX", getX)
	masked, err := builder.Mask(readFn)
	if err != nil {
		t.Fatal(err)
	}
	letNode, err := builder.Let(map[string]interface{}{"x": 1}, masked)
	if err != nil {
		t.Fatal(err)
	}
	fsm := compile(t, letNode)
	c := New(fsm)

	res := c.Invoke(map[string]interface{}{})
	if res.Params["sawX"] != false {
		t.Fatalf("expected mask to hide the outward let, got %+v", res.Params)
	}
}
