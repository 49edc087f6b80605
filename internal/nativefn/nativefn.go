// Package nativefn is the conductor's built-in function registry: the
// Go-idiomatic substitute for the original composer's marshaled-bytecode
// lambdas (see internal/ast.Exec doc comment and DESIGN.md).
//
// Every function the Lowerer injects (set_params, get_params, dec_count, ...)
// is registered here under a stable name at package init; `ast.Exec{Kind:
// "native", Code: name}` nodes resolve through this table at conductor
// runtime. User code registers its own native functions the same way before
// building compositions that reference them.
package nativefn

import "fmt"

// Func is the signature every native function implements: it receives the
// flattened let/mask environment view and the current params, and returns
// the new params (or an error, converted by the conductor into a UserError
// the same way a thrown exception is, per spec §4.6.2).
type Func func(env map[string]interface{}, args interface{}) (interface{}, error)

var registry = map[string]Func{}

// Register adds fn under name, overwriting any previous registration. Typically
// called from package init functions.
func Register(name string, fn Func) {
	registry[name] = fn
}

// Lookup resolves a registered native function by name.
func Lookup(name string) (Func, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// MustLookup panics if name isn't registered, for callers where a missing
// registration is a programming error, not a runtime condition. Nothing in
// this module calls it.
func MustLookup(name string) Func {
	fn, ok := registry[name]
	if !ok {
		panic(fmt.Sprintf("nativefn: %q not registered", name))
	}
	return fn
}
