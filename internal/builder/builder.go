// Package builder provides typed constructors for every combinator, plus the
// generic dispatcher (Build) that backs them and that deserializes JSON
// composition payloads coming off the wire.
//
// Grounded on original_source/src/composer/composer.py: `declare()`,
// `Composition.__init__`, and `task()`.
package builder

import (
	"fmt"
	"reflect"

	"github.com/lyzr/composer/internal/ast"
	"github.com/lyzr/composer/internal/cerr"
	"github.com/lyzr/composer/internal/fqn"
	"github.com/lyzr/composer/internal/nativefn"
)

// NativeFunc is a Go-native inline function: the Go-idiomatic stand-in for a
// Python callable. Because Go cannot recover a closure's source the way
// CPython's inspect/marshal can, native functions must be registered under a
// stable name (see internal/nativefn) rather than passed bare to
// Task() — see SPEC_FULL.md §B and DESIGN.md for the resolved ambiguity.
type NativeFunc func(env map[string]interface{}, args interface{}) (interface{}, error)

// Task applies the task-coercion rule (spec §3.1): nil becomes Empty, an
// existing node passes through, a string becomes an Action, an *ast.Exec
// becomes a Function, anything else is an error.
func Task(t interface{}) (*ast.Node, error) {
	switch v := t.(type) {
	case nil:
		return Empty(), nil
	case *ast.Node:
		return v, nil
	case string:
		return Action(v)
	case *ast.Exec:
		return functionFromExec(v), nil
	default:
		if isCallable(v) {
			return nil, cerr.NewBuildError(`native functions must be built with builder.Function(name, fn)`, t)
		}
		return nil, cerr.NewBuildError(`Invalid argument "task" in "task" combinator`, t)
	}
}

func isCallable(v interface{}) bool {
	if v == nil {
		return false
	}
	return reflect.ValueOf(v).Kind() == reflect.Func
}

// Build is the generic constructor every typed combinator function (and the
// JSON decoder) funnels through. It enforces argument count, applies task
// coercion to composition-typed fields and every component, validates typed
// fields, and assembles the resulting node.
func Build(t ast.Type, args []interface{}) (*ast.Node, error) {
	schema, ok := Table[t]
	if !ok {
		return nil, cerr.NewBuildError(fmt.Sprintf("unknown combinator %q", t), t)
	}

	skip := len(schema.Args)
	if !schema.Components && len(args) > skip {
		return nil, cerr.NewBuildError(fmt.Sprintf("Too many arguments in %q combinator", t), args)
	}

	n := &ast.Node{Type: t}

	for i, spec := range schema.Args {
		var raw interface{}
		if i < len(args) {
			raw = args[i]
		} else if !spec.Optional {
			return nil, cerr.NewBuildError(fmt.Sprintf("Invalid argument %q in %q combinator", spec.Name, t), raw)
		}

		if raw == nil && spec.Optional && spec.Kind == ArgComposition {
			raw = nil // coerced to Empty below
		}

		switch spec.Kind {
		case ArgComposition:
			child, err := Task(raw)
			if err != nil {
				return nil, wrapField(err, spec.Name, t)
			}
			n = n.With(spec.Name, child)

		case ArgName:
			name, ok := raw.(string)
			if !ok {
				return nil, fqn.ParseNonString(raw)
			}
			parsed, err := fqn.Parse(name)
			if err != nil {
				return nil, err
			}
			n.Name = parsed

		case ArgValue:
			if isCallable(raw) {
				return nil, cerr.NewBuildError(`Invalid argument`, raw)
			}
			if spec.Name == "function" {
				exec, err := toExec(raw)
				if err != nil {
					return nil, err
				}
				n.Function = exec
			} else {
				n.Value = raw
			}

		case ArgNumber:
			count, err := toInt(raw)
			if err != nil {
				return nil, wrapField(err, spec.Name, t)
			}
			if (spec.Name == "count" || spec.Name == "ms" || spec.Name == "timeout") && count < 0 {
				return nil, cerr.NewBuildError(fmt.Sprintf("Invalid argument %q in %q combinator: must be non-negative", spec.Name, t), raw)
			}
			n.Count = count

		case ArgString:
			s, ok := raw.(string)
			if !ok {
				return nil, cerr.NewBuildError(fmt.Sprintf("Invalid argument %q in %q combinator", spec.Name, t), raw)
			}
			n.Name = s

		case ArgObject:
			decls, isMask, err := toDeclarations(raw)
			if err != nil {
				return nil, wrapField(err, spec.Name, t)
			}
			n.Declarations = decls
			n.IsMask = isMask
		}
	}

	if schema.Components {
		extra := args[skip:]
		components := make([]*ast.Node, len(extra))
		for i, raw := range extra {
			child, err := Task(raw)
			if err != nil {
				return nil, err
			}
			components[i] = child
		}
		n.Components = components
	}

	return n, nil
}

func wrapField(err error, field string, t ast.Type) error {
	if be, ok := err.(*cerr.BuildError); ok {
		return cerr.NewBuildError(fmt.Sprintf("Invalid argument %q in %q combinator: %s", field, t, be.Message), be.Argument)
	}
	return err
}

func toInt(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, cerr.NewBuildError("value is not an integer", raw)
		}
		return int(v), nil
	default:
		return 0, cerr.NewBuildError("value is not an integer", raw)
	}
}

func toDeclarations(raw interface{}) (map[string]interface{}, bool, error) {
	if raw == nil {
		return nil, true, nil // mask sentinel
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, false, cerr.NewBuildError("declarations must be an object", raw)
	}
	return m, false, nil
}

func toExec(raw interface{}) (*ast.Exec, error) {
	switch v := raw.(type) {
	case *ast.Exec:
		return v, nil
	case map[string]interface{}:
		exec := &ast.Exec{}
		if k, ok := v["kind"].(string); ok {
			exec.Kind = k
		}
		if c, ok := v["code"].(string); ok {
			exec.Code = c
		}
		if fn, ok := v["functionName"].(string); ok {
			exec.FunctionName = fn
		}
		return exec, nil
	default:
		return nil, cerr.NewBuildError(`Invalid argument "function" in "function" combinator`, raw)
	}
}

func functionFromExec(exec *ast.Exec) *ast.Node {
	return &ast.Node{Type: ast.Function, Function: exec}
}

// --- typed, ergonomic constructors -----------------------------------------

func Empty() *ast.Node { return &ast.Node{Type: ast.Empty} }

func Sequence(components ...interface{}) (*ast.Node, error) {
	return Build(ast.Sequence, components)
}

func If(test, consequent interface{}) (*ast.Node, error) {
	return Build(ast.If, []interface{}{test, consequent})
}

func IfElse(test, consequent, alternate interface{}) (*ast.Node, error) {
	return Build(ast.If, []interface{}{test, consequent, alternate})
}

func While(test, body interface{}) (*ast.Node, error) {
	return Build(ast.While, []interface{}{test, body})
}

func DoWhile(body, test interface{}) (*ast.Node, error) {
	return Build(ast.DoWhile, []interface{}{body, test})
}

// IfNoSave, WhileNoSave and DoWhileNoSave build the primitive (non-restoring)
// variants directly; the Lowerer uses these, ordinary callers use If/While/
// DoWhile and let lowering introduce the save/restore machinery (spec §4.3).
func IfNoSave(test, consequent, alternate interface{}) (*ast.Node, error) {
	return Build(ast.IfNoSave, []interface{}{test, consequent, alternate})
}

func WhileNoSave(test, body interface{}) (*ast.Node, error) {
	return Build(ast.WhileNoSave, []interface{}{test, body})
}

func DoWhileNoSave(body, test interface{}) (*ast.Node, error) {
	return Build(ast.DoWhileNoSave, []interface{}{body, test})
}

func TryCatch(body, handler interface{}) (*ast.Node, error) {
	return Build(ast.Try, []interface{}{body, handler})
}

func Finally(body, finalizer interface{}) (*ast.Node, error) {
	return Build(ast.Finally, []interface{}{body, finalizer})
}

func Let(declarations map[string]interface{}, components ...interface{}) (*ast.Node, error) {
	args := append([]interface{}{interface{}(declarations)}, components...)
	return Build(ast.Let, args)
}

func Mask(components ...interface{}) (*ast.Node, error) {
	return Build(ast.Mask, components)
}

func Retain(components ...interface{}) (*ast.Node, error) {
	return Build(ast.Retain, components)
}

func RetainCatch(components ...interface{}) (*ast.Node, error) {
	return Build(ast.RetainCatch, components)
}

func Repeat(count int, components ...interface{}) (*ast.Node, error) {
	args := append([]interface{}{interface{}(count)}, components...)
	return Build(ast.Repeat, args)
}

func Retry(count int, components ...interface{}) (*ast.Node, error) {
	args := append([]interface{}{interface{}(count)}, components...)
	return Build(ast.RetryT, args)
}

func Action(name string) (*ast.Node, error) {
	return Build(ast.Action, []interface{}{name})
}

func ActionWithExec(name string, exec *ast.Exec) (*ast.Node, error) {
	n, err := Build(ast.Action, []interface{}{name})
	if err != nil {
		return nil, err
	}
	n.ActionExec = exec
	return n, nil
}

func CompositionRef(name string) (*ast.Node, error) {
	return Build(ast.Composition, []interface{}{name})
}

func Value(value interface{}) (*ast.Node, error) {
	return Build(ast.ValueT, []interface{}{value})
}

func Literal(value interface{}) (*ast.Node, error) {
	return Build(ast.Literal, []interface{}{value})
}

// Function builds a native function node: a Go closure registered under a
// stable name (see internal/nativefn.Register) and resolved by the
// conductor at the point of execution.
func Function(name string, fn NativeFunc) *ast.Node {
	nativefn.Register(name, nativefn.Func(fn))
	return &ast.Node{Type: ast.Function, Function: &ast.Exec{Kind: "native", Code: name}}
}

// FunctionExec builds a function node directly from an already-serialized
// exec payload (used when deserializing JSON compositions off the wire).
func FunctionExec(exec *ast.Exec) *ast.Node {
	return functionFromExec(exec)
}

func Merge(components ...interface{}) (*ast.Node, error) {
	return Build(ast.Merge, components)
}

// Invoke builds the request-dispatch sugar (SPEC_FULL.md §C.4, grounded on
// original_source/src/composer/composer.py's `lowerer.invoke`): binds the
// request under `value` and lowers to a plain action dispatch against a
// host-provided "invoke" action, since this spec's primitive set has no
// dedicated `execute` combinator (see Sleep).
func Invoke(request interface{}, timeoutMs int) (*ast.Node, error) {
	return Build(ast.Invoke, []interface{}{request, timeoutMs})
}

// Sleep builds the ms-millisecond suspension sugar. It lowers to
// action("sleep", {ms}), a standard suspension point like any other action
// (SPEC_FULL.md §C; a dedicated `execute` primitive, as in the original
// composer, would fall outside this spec's closed primitive set).
func Sleep(ms int) (*ast.Node, error) {
	return Build(ast.Sleep, []interface{}{ms})
}
