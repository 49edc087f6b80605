package conductor

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// celRuntime evaluates "cel" exec kind functions: the Go-native inline
// predicate/transform kind (see ast.Exec doc comment, DESIGN.md). Structure —
// a compiled-program cache guarded by a RWMutex — is grounded on the
// teacher's cmd/workflow-runner/condition.Evaluator, repurposed here to
// evaluate against the conductor's (env, args) pair instead of a branch
// condition's (output, ctx) pair.
type celRuntime struct {
	mu    sync.RWMutex
	cache map[string]cel.Program
}

func newCELRuntime() *celRuntime {
	return &celRuntime{cache: make(map[string]cel.Program)}
}

func (r *celRuntime) Eval(expr string, env map[string]interface{}, args interface{}) (interface{}, error) {
	prg, err := r.program(expr)
	if err != nil {
		return nil, err
	}
	out, _, err := prg.Eval(map[string]interface{}{"env": env, "args": args})
	if err != nil {
		return nil, fmt.Errorf("CEL evaluation error: %w", err)
	}
	return out.Value(), nil
}

func (r *celRuntime) program(expr string) (cel.Program, error) {
	r.mu.RLock()
	prg, ok := r.cache[expr]
	r.mu.RUnlock()
	if ok {
		return prg, nil
	}

	celEnv, err := cel.NewEnv(
		cel.Variable("env", cel.DynType),
		cel.Variable("args", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	astVal, issues := celEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}
	prg, err = celEnv.Program(astVal)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	r.mu.Lock()
	r.cache[expr] = prg
	r.mu.Unlock()
	return prg, nil
}

func (r *celRuntime) clearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]cel.Program)
}
