// Package label implements the Labeler: the pass that annotates every node of
// a (lowered) composition tree with its JSON path from the root, used by the
// Flattener and surfaced in error reporting (spec §4.4).
//
// Grounded on original_source/src/composer/composer.py's `label` function,
// built on the same generic `visit` traversal as internal/lower.
package label

import (
	"strconv"

	"github.com/lyzr/composer/internal/ast"
)

// Label returns a copy of n with every reachable node's Path set: the root's
// path is "", a named sub-field's path is parent+"."+field, and a component's
// path is parent+"[index]".
func Label(n *ast.Node) *ast.Node {
	return label(n, "")
}

func label(n *ast.Node, path string) *ast.Node {
	out := n.Clone()
	out.Path = path
	return ast.Visit(out, func(child *ast.Node, field string, index int) *ast.Node {
		var childPath string
		switch {
		case field != "":
			childPath = path + "." + field
		default:
			childPath = path + "[" + strconv.Itoa(index) + "]"
		}
		return label(child, childPath)
	})
}
