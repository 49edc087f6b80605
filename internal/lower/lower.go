// Package lower implements the Lowerer: the rewrite pass that reduces derived
// combinators to the primitive set (spec §4.3), to a fixpoint.
//
// Grounded on original_source/src/composer/composer.py's `Composition.lower`
// and the `lowerer` namespace (see rules.go, native.go).
package lower

import "github.com/lyzr/composer/internal/ast"

// Lower rewrites n, and every node reachable from it, until each node's type
// is in target (an empty target means "rewrite to the primitive set"). The
// path field, where already set, is preserved across rewrites.
func Lower(n *ast.Node, target map[ast.Type]bool) (*ast.Node, error) {
	cur := n
	for {
		if inTarget(cur.Type, target) {
			break
		}
		r, ok := rules[cur.Type]
		if !ok {
			break
		}
		next, err := r(cur)
		if err != nil {
			return nil, err
		}
		if cur.Path != "" {
			next.Path = cur.Path
		}
		cur = next
	}

	return visitLower(cur, target)
}

func inTarget(t ast.Type, target map[ast.Type]bool) bool {
	if len(target) == 0 {
		return ast.Primitive[t]
	}
	return target[t]
}

// visitLower recurses Lower into every sub-field and component of n,
// threading the first error encountered back to the caller. ast.Visit's
// callback signature has no error return, so the recursion is written out
// here rather than reused from it.
func visitLower(n *ast.Node, target map[ast.Type]bool) (*ast.Node, error) {
	out := n
	var err error

	for _, field := range ast.SubFields(out.Type) {
		child := out.Get(field)
		if child == nil {
			continue
		}
		var lowered *ast.Node
		lowered, err = Lower(child, target)
		if err != nil {
			return nil, err
		}
		out = out.With(field, lowered)
	}

	if ast.HasComponents(out.Type) && out.Components != nil {
		components := make([]*ast.Node, len(out.Components))
		for i, c := range out.Components {
			components[i], err = Lower(c, target)
			if err != nil {
				return nil, err
			}
		}
		out = out.WithComponents(components)
	}

	return out, nil
}
