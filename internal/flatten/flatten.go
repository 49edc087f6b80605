// Package flatten implements the Flattener: compiling a labeled, primitive
// composition tree into a flat instruction array addressed by *relative*
// jump offsets (spec §3.2, §4.5).
//
// Grounded on original_source/src/composer/conductor.py's `chain`, `sequence`
// and `compile` functions, ported field-for-field.
package flatten

import "github.com/lyzr/composer/internal/ast"

// Kind is an instruction's opcode — a smaller, closed set than ast.Type: only
// the shapes the Conductor's step loop switches on.
type Kind string

const (
	Pass     Kind = "pass"
	Choice   Kind = "choice"
	TryK     Kind = "try"
	LetK     Kind = "let"
	Exit     Kind = "exit"
	ActionK  Kind = "action"
	FunctionK Kind = "function"
	EmptyK   Kind = "empty"
)

// Instruction is one flat FSM step. Jump fields are offsets relative to the
// instruction's own index; a nil offset means "no explicit jump" (Next nil on
// the program's last instruction is what ends execution).
type Instruction struct {
	Type Kind
	Path string

	Name string    // action
	Exec *ast.Exec // function, or an action's optional inline exec

	Declarations map[string]interface{} // let
	IsMask       bool                    // mask sentinel: Declarations must be nil

	Next  *int
	Then  *int
	Else  *int
	Catch *int
}

func ref(i int) *int { return &i }

// chain concatenates front and back, defaulting front's last instruction to
// fall through to back (relative offset 1) unless it is later overridden.
func chain(front, back []Instruction) []Instruction {
	if len(front) == 0 {
		return back
	}
	front[len(front)-1].Next = ref(1)
	return append(front, back...)
}

func chainAll(lists ...[]Instruction) []Instruction {
	out := lists[0]
	for _, l := range lists[1:] {
		out = chain(out, l)
	}
	return out
}

func sequence(components []*ast.Node) ([]Instruction, error) {
	if len(components) == 0 {
		return []Instruction{{Type: EmptyK}}, nil
	}
	compiled := make([][]Instruction, len(components))
	for i, c := range components {
		fsm, err := compile(c)
		if err != nil {
			return nil, err
		}
		compiled[i] = fsm
	}
	return chainAll(compiled...), nil
}

// Flatten compiles a lowered, labeled composition tree into its flat
// instruction array.
func Flatten(n *ast.Node) ([]Instruction, error) {
	return compile(n)
}

func compile(n *ast.Node) ([]Instruction, error) {
	switch n.Type {
	case ast.Sequence:
		body, err := sequence(n.Components)
		if err != nil {
			return nil, err
		}
		return chain([]Instruction{{Type: Pass, Path: n.Path}}, body), nil

	case ast.Action:
		return []Instruction{{Type: ActionK, Name: n.Name, Exec: n.ActionExec, Path: n.Path}}, nil

	case ast.Function:
		return []Instruction{{Type: FunctionK, Exec: n.Function, Path: n.Path}}, nil

	case ast.Finally:
		body, err := compile(n.Body)
		if err != nil {
			return nil, err
		}
		finalizer, err := compile(n.Finalizer)
		if err != nil {
			return nil, err
		}
		fsm := chainAll([]Instruction{{Type: TryK, Path: n.Path}}, body, []Instruction{{Type: Exit}}, finalizer)
		fsm[0].Catch = ref(len(fsm) - len(finalizer))
		return fsm, nil

	case ast.Let:
		body, err := sequence(n.Components)
		if err != nil {
			return nil, err
		}
		return chainAll([]Instruction{{Type: LetK, Declarations: n.Declarations, Path: n.Path}}, body, []Instruction{{Type: Exit}}), nil

	case ast.Mask:
		body, err := sequence(n.Components)
		if err != nil {
			return nil, err
		}
		return chainAll([]Instruction{{Type: LetK, IsMask: true, Path: n.Path}}, body, []Instruction{{Type: Exit}}), nil

	case ast.Try:
		body, err := compile(n.Body)
		if err != nil {
			return nil, err
		}
		handlerBody, err := compile(n.Handler)
		if err != nil {
			return nil, err
		}
		handler := chain(handlerBody, []Instruction{{Type: Pass}})

		fsm := chainAll([]Instruction{{Type: TryK, Path: n.Path}}, body, []Instruction{{Type: Exit}})
		fsm[0].Catch = ref(len(fsm))
		fsm[len(fsm)-1].Next = ref(len(handler))
		return append(fsm, handler...), nil

	case ast.IfNoSave:
		consequent, err := compile(n.Consequent)
		if err != nil {
			return nil, err
		}
		alternateBody, err := compile(n.Alternate)
		if err != nil {
			return nil, err
		}
		alternate := chain(alternateBody, []Instruction{{Type: Pass}})

		test, err := compile(n.Test)
		if err != nil {
			return nil, err
		}
		fsm := chainAll([]Instruction{{Type: Pass, Path: n.Path}}, test,
			[]Instruction{{Type: Choice, Then: ref(1), Else: ref(len(consequent) + 1)}})

		consequent[len(consequent)-1].Next = ref(len(alternate))
		fsm = append(fsm, consequent...)
		fsm = append(fsm, alternate...)
		return fsm, nil

	case ast.WhileNoSave:
		consequent, err := compile(n.Body)
		if err != nil {
			return nil, err
		}
		alternate := []Instruction{{Type: Pass}}

		test, err := compile(n.Test)
		if err != nil {
			return nil, err
		}
		fsm := chainAll([]Instruction{{Type: Pass, Path: n.Path}}, test,
			[]Instruction{{Type: Choice, Then: ref(1), Else: ref(len(consequent) + 1)}})

		consequent[len(consequent)-1].Next = ref(1 - len(fsm) - len(consequent))
		fsm = append(fsm, consequent...)
		fsm = append(fsm, alternate...)
		return fsm, nil

	case ast.DoWhileNoSave:
		body, err := compile(n.Body)
		if err != nil {
			return nil, err
		}
		test, err := compile(n.Test)
		if err != nil {
			return nil, err
		}
		fsm := chainAll([]Instruction{{Type: Pass, Path: n.Path}}, body, test,
			[]Instruction{{Type: Choice, Then: ref(1), Else: ref(2)}})

		fsm[len(fsm)-1].Then = ref(1 - len(fsm))
		fsm[len(fsm)-1].Else = ref(1)
		fsm = append(fsm, Instruction{Type: Pass})
		return fsm, nil

	case ast.Composition:
		// left unresolved here: resolving a named composition reference to
		// its own compiled FSM is the Conductor's job at load time (spec
		// §4.6.3), since it may require looking up a separately-registered
		// sub-composition.
		return []Instruction{{Type: ActionK, Name: n.Name, Path: n.Path}}, nil

	default:
		return nil, &unsupportedTypeError{n.Type}
	}
}

type unsupportedTypeError struct{ t ast.Type }

func (e *unsupportedTypeError) Error() string {
	return "flatten: node type " + string(e.t) + " is not primitive; lower it first"
}
