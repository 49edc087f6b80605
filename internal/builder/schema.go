package builder

import "github.com/lyzr/composer/internal/ast"

// ArgKind classifies a single declared positional argument of a combinator,
// mirroring the `type` field of an argument spec in composer.py's
// `combinators`/`extra` tables.
type ArgKind int

const (
	ArgComposition ArgKind = iota // untyped: coerced via task()
	ArgName                       // parsed with fqn.Parse
	ArgValue                      // arbitrary JSON, callables rejected
	ArgNumber                     // non-negative integer
	ArgString                     // Go string
	ArgObject                     // declarations map
)

// ArgSpec is one declared positional argument.
type ArgSpec struct {
	Name     string
	Kind     ArgKind
	Optional bool
}

// Schema is a combinator's arity/type metadata: the const registry the
// generic Builder (and, transitively, the Lowerer's rewrite table) consults
// instead of a dynamic per-combinator dictionary (spec §9 design note
// "Dynamic combinator table → tagged sum").
type Schema struct {
	Args       []ArgSpec
	Components bool
}

// Table is the combinator schema registry (spec §3.1 schema table, plus the
// derived combinators of §4.3 and the supplemental ones of SPEC_FULL.md §C).
var Table = map[ast.Type]Schema{
	ast.Empty:       {},
	ast.Sequence:    {Components: true},
	ast.If:          {Args: []ArgSpec{{Name: "test", Kind: ArgComposition}, {Name: "consequent", Kind: ArgComposition}, {Name: "alternate", Kind: ArgComposition, Optional: true}}},
	ast.IfNoSave:    {Args: []ArgSpec{{Name: "test", Kind: ArgComposition}, {Name: "consequent", Kind: ArgComposition}, {Name: "alternate", Kind: ArgComposition, Optional: true}}},
	ast.While:       {Args: []ArgSpec{{Name: "test", Kind: ArgComposition}, {Name: "body", Kind: ArgComposition}}},
	ast.WhileNoSave: {Args: []ArgSpec{{Name: "test", Kind: ArgComposition}, {Name: "body", Kind: ArgComposition}}},
	ast.DoWhile:     {Args: []ArgSpec{{Name: "body", Kind: ArgComposition}, {Name: "test", Kind: ArgComposition}}},
	ast.DoWhileNoSave: {Args: []ArgSpec{{Name: "body", Kind: ArgComposition}, {Name: "test", Kind: ArgComposition}}},
	ast.Try:         {Args: []ArgSpec{{Name: "body", Kind: ArgComposition}, {Name: "handler", Kind: ArgComposition}}},
	ast.Finally:     {Args: []ArgSpec{{Name: "body", Kind: ArgComposition}, {Name: "finalizer", Kind: ArgComposition}}},
	ast.Let:         {Args: []ArgSpec{{Name: "declarations", Kind: ArgObject}}, Components: true},
	ast.Mask:        {Components: true},
	ast.Retain:      {Components: true},
	ast.RetainCatch: {Components: true},
	ast.Repeat:      {Args: []ArgSpec{{Name: "count", Kind: ArgNumber}}, Components: true},
	ast.RetryT:      {Args: []ArgSpec{{Name: "count", Kind: ArgNumber}}, Components: true},
	ast.Action:      {Args: []ArgSpec{{Name: "name", Kind: ArgName}}},
	ast.Composition: {Args: []ArgSpec{{Name: "name", Kind: ArgName}}},
	ast.ValueT:      {Args: []ArgSpec{{Name: "value", Kind: ArgValue}}},
	ast.Literal:     {Args: []ArgSpec{{Name: "value", Kind: ArgValue}}},
	ast.Function:    {Args: []ArgSpec{{Name: "function", Kind: ArgValue}}},
	ast.Merge:       {Components: true},
	ast.Sleep:       {Args: []ArgSpec{{Name: "ms", Kind: ArgNumber}}},
	ast.Invoke:      {Args: []ArgSpec{{Name: "request", Kind: ArgValue}, {Name: "timeout", Kind: ArgNumber}}},
}
