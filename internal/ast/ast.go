// Package ast defines the combinator AST: a closed tagged-variant tree over
// the combinator schema table in spec §3.1.
//
// Grounded on original_source/src/composer/composer.py (the `combinators` /
// `extra` tables and the `Composition`/`visit`/`label` functions) and on the
// teacher's tagged IR node (Dutt23-agentic-orchestrator
// cmd/workflow-runner/sdk/types.go `Node`/`LoopConfig`/`BranchConfig`), which
// uses the same "one struct, optional pointer sub-fields" shape for a closed
// set of node kinds.
package ast

// Type is the combinator discriminator.
type Type string

const (
	Empty      Type = "empty"
	Sequence   Type = "sequence" // the "seq" spelling is not recognized by the Builder, Lowerer or Flattener
	If         Type = "if"
	IfNoSave   Type = "if_nosave"
	While      Type = "while"
	WhileNoSave Type = "while_nosave"
	DoWhile     Type = "dowhile"
	DoWhileNoSave Type = "dowhile_nosave"
	Try         Type = "try"
	Finally     Type = "finally"
	Let         Type = "let"
	Mask        Type = "mask"
	Retain      Type = "retain"
	RetainCatch Type = "retain_catch"
	Repeat      Type = "repeat"
	RetryT      Type = "retry"
	Action      Type = "action"
	Composition Type = "composition"
	ValueT      Type = "value"
	Literal     Type = "literal"
	Function    Type = "function"
	Merge       Type = "merge"  // supplemental (original_source lowerer.merge)
	Sleep       Type = "sleep"  // supplemental sugar, lowers to action("sleep")
	Invoke      Type = "invoke" // supplemental sugar, lowers to value+action("invoke")
)

// Primitive is the set the Lowerer rewrites everything down to when targeting
// the empty combinator set (spec §3.1 invariant).
var Primitive = map[Type]bool{
	Sequence:    true,
	IfNoSave:    true,
	WhileNoSave: true,
	DoWhileNoSave: true,
	Try:         true,
	Finally:     true,
	Let:         true,
	Mask:        true,
	Action:      true,
	Function:    true,
	Composition: true,
}

// Exec is the inline function/action specification carried by `function`
// nodes (their `function` field) and optionally by `action` nodes (their
// `action` field). Kind selects how `Code` is interpreted:
//
//   - "native"          — Code is a key into the conductor's built-in
//     function registry (internal/nativefn). This is the Go-idiomatic
//     replacement for the original's marshaled-bytecode lambdas: Go can't
//     introspect a closure's source the way CPython's `inspect.getsource`/
//     `marshal` can, so lowering-internal functions are named, not serialized.
//   - "python:3"         — Code is `def NAME(env, args): ...` source text,
//     kept for wire compatibility (§6.2); executed only through a registered
//     FunctionRuntime.
//   - "python:3+lambda"  — Code is base64-encoded marshaled bytecode, wire
//     compatibility only, never executed by this module.
//   - "nodejs:default"   — Code is JS source, wire compatibility only.
//   - "cel"              — Code is a CEL expression evaluated against `env`
//     and `args`; the Go-native inline-predicate kind (see DESIGN.md).
type Exec struct {
	Kind         string `json:"kind"`
	Code         string `json:"code"`
	FunctionName string `json:"functionName,omitempty"`
}

// Node is a single combinator in the AST.
type Node struct {
	Type Type   `json:"type"`
	Path string `json:"path,omitempty"`

	// sub-composition fields (always present, coerced to Empty when absent)
	Test       *Node `json:"test,omitempty"`
	Consequent *Node `json:"consequent,omitempty"`
	Alternate  *Node `json:"alternate,omitempty"`
	Body       *Node `json:"body,omitempty"`
	Handler    *Node `json:"handler,omitempty"`
	Finalizer  *Node `json:"finalizer,omitempty"`

	// ordered sub-composition list
	Components []*Node `json:"components,omitempty"`

	// let/mask declarations; a nil map denotes the mask sentinel
	Declarations map[string]interface{} `json:"declarations,omitempty"`

	// action / composition name
	Name string `json:"name,omitempty"`

	// optional inline action body (action nodes only)
	ActionExec *Exec `json:"action,omitempty"`

	// value / literal payload
	Value interface{} `json:"value,omitempty"`

	// inline function (function nodes only)
	Function *Exec `json:"function,omitempty"`

	// repeat / retry iteration count
	Count int `json:"count,omitempty"`

	// IsMask distinguishes mask (declarations == nil, IsMask == true) from a
	// let with literally empty declarations ({} != nil in Go's map zero
	// value once unmarshaled from JSON `null`); see label/lower packages.
	IsMask bool `json:"isMask,omitempty"`
}

// Clone returns a shallow copy of n (new struct, same child pointers). Passes
// that replace a child field return a fresh clone with that one field
// updated, so sibling fields and their paths are never mutated in place —
// this is what lets label/lower "preserve path... never rely on object
// identity across rewrites" (spec §4.4, design note).
func (n *Node) Clone() *Node {
	c := *n
	if n.Components != nil {
		c.Components = append([]*Node(nil), n.Components...)
	}
	if n.Declarations != nil {
		d := make(map[string]interface{}, len(n.Declarations))
		for k, v := range n.Declarations {
			d[k] = v
		}
		c.Declarations = d
	}
	return &c
}

// SubFields names the single-child sub-composition fields a given node type
// declares, in schema order (spec §3.1 schema table). Used generically by
// the labeler and lowerer so they don't need a type switch of their own.
func SubFields(t Type) []string {
	switch t {
	case If, IfNoSave:
		return []string{"test", "consequent", "alternate"}
	case While, WhileNoSave:
		return []string{"test", "body"}
	case DoWhile, DoWhileNoSave:
		return []string{"body", "test"}
	case Try:
		return []string{"body", "handler"}
	case Finally:
		return []string{"body", "finalizer"}
	default:
		return nil
	}
}

// HasComponents reports whether t's schema declares an ordered `components`
// field.
func HasComponents(t Type) bool {
	switch t {
	case Sequence, Let, Mask, Retain, RetainCatch, Repeat, RetryT, Merge:
		return true
	default:
		return false
	}
}

// Get returns the child bound to the named sub-composition field.
func (n *Node) Get(field string) *Node {
	switch field {
	case "test":
		return n.Test
	case "consequent":
		return n.Consequent
	case "alternate":
		return n.Alternate
	case "body":
		return n.Body
	case "handler":
		return n.Handler
	case "finalizer":
		return n.Finalizer
	default:
		return nil
	}
}

// With returns a clone of n with the named sub-composition field replaced.
func (n *Node) With(field string, child *Node) *Node {
	c := n.Clone()
	switch field {
	case "test":
		c.Test = child
	case "consequent":
		c.Consequent = child
	case "alternate":
		c.Alternate = child
	case "body":
		c.Body = child
	case "handler":
		c.Handler = child
	case "finalizer":
		c.Finalizer = child
	}
	return c
}

// WithComponents returns a clone of n with Components replaced.
func (n *Node) WithComponents(components []*Node) *Node {
	c := n.Clone()
	c.Components = components
	return c
}

// Visit applies f to every direct sub-composition field and every component
// of n, rebuilding n from the results. f receives the field name ("test",
// "consequent", ...) or "" for components, and the component index (-1 for
// named fields). Mirrors composer.py's `visit`.
func Visit(n *Node, f func(child *Node, field string, index int) *Node) *Node {
	out := n
	for _, field := range SubFields(n.Type) {
		if child := out.Get(field); child != nil {
			out = out.With(field, f(child, field, -1))
		}
	}
	if HasComponents(n.Type) && out.Components != nil {
		components := make([]*Node, len(out.Components))
		for i, c := range out.Components {
			components[i] = f(c, "", i)
		}
		out = out.WithComponents(components)
	}
	return out
}
