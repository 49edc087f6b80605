// Package encode implements the wire-format encoder of spec §6.2:
// encode(composition, targetSet) -> {composition, actions}.
//
// Grounded on original_source/src/composer/composer.py's Composition.compile
// (the `flatten`/`label`/`lower` pipeline that collects inline action
// bodies into a separate actions list before labeling and lowering), adapted
// to this module's lower-then-label ordering (see DESIGN.md).
package encode

import (
	"encoding/json"

	"github.com/lyzr/composer/internal/ast"
	"github.com/lyzr/composer/internal/label"
	"github.com/lyzr/composer/internal/lower"
)

// ExecSpec is the `exec` field of an uploadable action.
type ExecSpec struct {
	Kind string `json:"kind"`
	Code string `json:"code"`
}

// Annotation is one {key, value} pair attached to a generated action.
type Annotation struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// ActionSpec is the body of an uploadable action: its exec plus annotations.
type ActionSpec struct {
	Exec        ExecSpec     `json:"exec"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// EncodedAction pairs a deployable name with its action body.
type EncodedAction struct {
	Name   string     `json:"name"`
	Action ActionSpec `json:"action"`
}

// EncodedComposition is the result of Encode: the outermost encoded node
// plus every action (inline leaf actions found in the tree, and the
// generated conductor action for the composition itself) ready for upload.
type EncodedComposition struct {
	Composition *ast.Node       `json:"composition"`
	Actions     []EncodedAction `json:"actions,omitempty"`
}

// ComposerVersion is embedded in every generated conductor action's
// "composer" annotation (spec §6.2).
const ComposerVersion = "1.0.0"

// Encode lowers composition to targetSet, labels it, and produces the wire
// payload described in spec §6.2. Any `action` node carrying an inline
// ActionExec (an action whose implementation travels with the composition
// rather than being pre-deployed under its name) is extracted into Actions
// and stripped from the tree, exactly as the original's compile() does
// before generating the top-level conductor action.
func Encode(composition *ast.Node, targetSet map[ast.Type]bool) (*EncodedComposition, error) {
	var actions []EncodedAction
	stripped := extractInlineActions(composition, &actions)

	lowered, err := lower.Lower(stripped, targetSet)
	if err != nil {
		return nil, err
	}
	labeled := label.Label(lowered)

	astJSON, err := json.Marshal(labeled)
	if err != nil {
		return nil, err
	}

	actions = append(actions, EncodedAction{
		Name: composition.Name,
		Action: ActionSpec{
			Exec: ExecSpec{Kind: "conductor", Code: string(astJSON)},
			Annotations: []Annotation{
				{Key: "conductor", Value: string(astJSON)},
				{Key: "composer", Value: ComposerVersion},
			},
		},
	})

	return &EncodedComposition{Composition: labeled, Actions: actions}, nil
}

// extractInlineActions walks n post-order, collecting every action node's
// inline ActionExec into actions and returning a clone of the tree with
// those inline execs stripped (the action is referenced by name alone, the
// way a pre-deployed action is).
func extractInlineActions(n *ast.Node, actions *[]EncodedAction) *ast.Node {
	visited := ast.Visit(n, func(child *ast.Node, _ string, _ int) *ast.Node {
		return extractInlineActions(child, actions)
	})

	if visited.Type == ast.Action && visited.ActionExec != nil {
		*actions = append(*actions, EncodedAction{
			Name: visited.Name,
			Action: ActionSpec{
				Exec: ExecSpec{Kind: visited.ActionExec.Kind, Code: visited.ActionExec.Code},
			},
		})
		out := visited.Clone()
		out.ActionExec = nil
		return out
	}
	return visited
}
