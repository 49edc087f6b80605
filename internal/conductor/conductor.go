// Package conductor implements the resumable step interpreter that drives a
// flattened instruction array: the single-threaded FSM described in spec
// §4.6, including let/mask lexical scoping, try/finally error propagation,
// and the $resume continuation protocol for suspending across action
// invocations.
//
// Grounded on original_source/src/composer/conductor.py's `conductor`/
// `guarded_invoke`/`invoke`/`run`/`inspect_errors` closures, restructured as
// an explicit Go state machine (no closures over mutable captured state).
package conductor

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/lyzr/composer/internal/ast"
	"github.com/lyzr/composer/internal/cerr"
	"github.com/lyzr/composer/internal/flatten"
	"github.com/lyzr/composer/internal/nativefn"
)

var (
	errBadResumeType  = cerr.NewBadRequest(`The type of optional $resume parameter must be object`)
	errBadResumeState = cerr.NewBadRequest(`The type of optional $resume["state"] parameter must be number`)
	errBadResumeStack = cerr.NewBadRequest(`The type of $resume["stack"] must be an array`)
)

// FunctionRuntime executes a wire-compatibility-only function exec kind
// ("python:3", "python:3+lambda", "nodejs:default"). The conductor ships with
// none registered by default (spec Non-goal: no embedded foreign-language
// interpreter); a host may register one to interoperate with compositions
// authored against the original composer.
type FunctionRuntime interface {
	Run(code string, env map[string]interface{}, args interface{}) (interface{}, error)
}

// Conductor drives one compiled composition's instruction array.
type Conductor struct {
	fsm      []flatten.Instruction
	runtimes map[string]FunctionRuntime
	cel      *celRuntime
}

// New builds a Conductor over a flattened instruction array. A CEL function
// runtime is always wired in (see cel.go) since "cel" is a first-class,
// natively supported exec kind, unlike the wire-compatibility-only kinds.
func New(fsm []flatten.Instruction) *Conductor {
	return &Conductor{
		fsm:      fsm,
		runtimes: map[string]FunctionRuntime{},
		cel:      newCELRuntime(),
	}
}

// RegisterRuntime wires a FunctionRuntime under an exec kind, e.g.
// "python:3". Intended for hosts that need to interoperate with
// compositions carrying foreign-language function bodies.
func (c *Conductor) RegisterRuntime(kind string, rt FunctionRuntime) {
	c.runtimes[kind] = rt
}

// Result is the conductor's step-loop outcome: exactly one of a terminal
// success (Params set), a terminal error (Error set), a suspension awaiting
// an external action (Action/Resume set), or a malformed-request/internal
// failure (Code/Message set) — spec §6.3/§6.4.
type Result struct {
	Params map[string]interface{}
	Error  interface{}

	Action string
	// ActionParams is the payload to send the external action; nil unless
	// Action is set.
	ActionParams map[string]interface{}
	Resume       map[string]interface{} // the $resume envelope to echo back

	Code    int
	Message string
}

// Done reports whether this Result is terminal (no further action needed).
func (r *Result) Done() bool { return r.Action == "" && r.Message == "" }

// GuardedInvoke runs Invoke, converting any panic (an unforeseen internal
// invariant violation) into a 500 Result rather than propagating it — the Go
// analogue of guarded_invoke's try/except Exception wrapper.
func (c *Conductor) GuardedInvoke(params map[string]interface{}) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			result = &Result{Code: 500, Message: fmt.Sprintf("An internal error occurred: %v", r)}
		}
	}()
	return c.Invoke(params)
}

// Invoke runs (or resumes) the composition against params, stepping the FSM
// until it either suspends on an action or terminates.
func (c *Conductor) Invoke(initial map[string]interface{}) *Result {
	var params interface{} = cloneMap(initial)
	zero := 0
	state := &zero
	var stack []Frame

	inspectErrors := func() {
		obj, ok := params.(map[string]interface{})
		if !ok {
			obj = map[string]interface{}{"value": params}
			params = obj
		}
		errVal, hasErr := obj["error"]
		if !hasErr {
			return
		}
		params = map[string]interface{}{"error": errVal}
		state = nil
		for len(stack) > 0 {
			first := stack[0]
			stack = stack[1:]
			if first.Catch != nil {
				s := *first.Catch
				state = &s
				break
			}
		}
	}

	if obj, ok := params.(map[string]interface{}); ok {
		if raw, has := obj["$resume"]; has {
			envelope, err := resumeFromWire(raw)
			if err != nil {
				br := err.(*cerr.BadRequest)
				return &Result{Code: 400, Message: br.Message}
			}
			state = envelope.State
			stack = envelope.Stack
			delete(obj, "$resume")
			inspectErrors()
		}
	}

	for {
		if state == nil {
			obj, _ := params.(map[string]interface{})
			if _, hasErr := obj["error"]; hasErr {
				return &Result{Error: obj["error"]}
			}
			return &Result{Params: obj}
		}

		if *state < 0 || *state >= len(c.fsm) {
			return &Result{Code: 500, Message: fmt.Sprintf("state %d is out of range", *state)}
		}
		instr := c.fsm[*state]
		current := *state
		if instr.Next != nil {
			s := current + *instr.Next
			state = &s
		} else {
			state = nil
		}

		switch instr.Type {
		case flatten.Choice:
			obj, _ := params.(map[string]interface{})
			var s int
			if isTruthy(obj["value"]) {
				s = current + *instr.Then
			} else {
				s = current + *instr.Else
			}
			state = &s

		case flatten.TryK:
			stack = append([]Frame{catchFrame(current + *instr.Catch)}, stack...)

		case flatten.LetK:
			if instr.IsMask {
				stack = append([]Frame{maskFrame()}, stack...)
			} else {
				stack = append([]Frame{letFrame(cloneMap(instr.Declarations))}, stack...)
			}

		case flatten.Exit:
			if len(stack) == 0 {
				return &Result{Code: 500, Message: fmt.Sprintf("state %d attempted to pop from an empty stack", current)}
			}
			stack = stack[1:]

		case flatten.ActionK:
			resume := EncodeResume(state, stack)
			obj, _ := params.(map[string]interface{})
			return &Result{Action: instr.Name, ActionParams: obj, Resume: resume}

		case flatten.FunctionK:
			result, err := c.runFunction(instr.Exec, stack, params)
			if err != nil {
				result = map[string]interface{}{"error": fmt.Sprintf("An exception was caught at state %d (see log for details)", current)}
			} else if isCallable(result) {
				result = map[string]interface{}{"error": fmt.Sprintf("State %d evaluated to a function", current)}
			}
			if result != nil {
				// a side-effecting function with no return value keeps params unchanged
				params = deepCopyValue(result)
			}
			inspectErrors()

		case flatten.EmptyK:
			inspectErrors()

		case flatten.Pass:
			// no-op

		default:
			return &Result{Code: 500, Message: fmt.Sprintf("state %d has an unknown type", current)}
		}
	}
}

func isCallable(v interface{}) bool {
	if v == nil {
		return false
	}
	return reflect.ValueOf(v).Kind() == reflect.Func
}

// isTruthy mirrors JS/Python-style truthiness for the choice instruction's
// params.value field: false, nil, 0, "", and empty collections are falsy.
func isTruthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case map[string]interface{}:
		return len(t) > 0
	case []interface{}:
		return len(t) > 0
	default:
		return true
	}
}

// cloneMap deep-copies m via a JSON round-trip. A shallow top-level copy
// would leave nested maps/slices aliased, letting a later step or a let
// frame's declarations mutate state shared with another scope (spec §5,
// §4.6: let frames and function results are isolated by deep copy).
func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	out, ok := deepCopyValue(m).(map[string]interface{})
	if !ok {
		out = make(map[string]interface{}, len(m))
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// deepCopyValue copies an arbitrary JSON-shaped value (a function's return
// value, destined to replace params) the same way: marshal/unmarshal instead
// of assigning the reference, so mutating the new params can't reach back
// into a caller's map or a previous step's result.
func deepCopyValue(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// runFunction evaluates a function/exec node against the let/mask-collapsed
// environment view, then writes mutated keys back to the topmost matching
// frame — the run()/set() logic of conductor.py, ported.
func (c *Conductor) runFunction(exec *ast.Exec, stack []Frame, args interface{}) (interface{}, error) {
	view := collapseView(stack)
	env := mergeEnv(view)

	result, err := c.dispatch(exec, env, args)

	writeBack(view, env)
	return result, err
}

func (c *Conductor) dispatch(exec *ast.Exec, env map[string]interface{}, args interface{}) (interface{}, error) {
	switch exec.Kind {
	case "native":
		fn, ok := nativefn.Lookup(exec.Code)
		if !ok {
			return nil, cerr.NewRuntimeError("native function %q is not registered", exec.Code)
		}
		return fn(env, args)
	case "cel":
		return c.cel.Eval(exec.Code, env, args)
	default:
		rt, ok := c.runtimes[exec.Kind]
		if !ok {
			return nil, cerr.NewUserError(fmt.Sprintf("no function runtime registered for exec kind %q", exec.Kind))
		}
		return rt.Run(exec.Code, env, args)
	}
}

// collapseView resolves stacked let/mask pairs into the ordered list of
// let frames actually visible to the running function (spec §4.6.2:
// "mask cancels exactly one subsequent outward let").
func collapseView(stack []Frame) []*Frame {
	view := make([]*Frame, 0, len(stack))
	n := 0
	for i := range stack {
		f := &stack[i]
		if !f.IsLet {
			continue
		}
		if f.IsMask {
			n++
			continue
		}
		if n == 0 {
			view = append(view, f)
		} else {
			n--
		}
	}
	return view
}

// mergeEnv folds the view outward-to-inward, so an inner let shadows an
// outer one declaring the same symbol (reduceRight in conductor.py).
func mergeEnv(view []*Frame) map[string]interface{} {
	env := map[string]interface{}{}
	for i := len(view) - 1; i >= 0; i-- {
		for k, v := range view[i].Let {
			env[k] = v
		}
	}
	return env
}

func writeBack(view []*Frame, env map[string]interface{}) {
	for name, value := range env {
		for _, f := range view {
			if f.Let == nil {
				continue
			}
			if _, declared := f.Let[name]; declared {
				f.Let[name] = value
				break
			}
		}
	}
}
