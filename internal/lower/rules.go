package lower

import (
	"github.com/lyzr/composer/internal/ast"
	"github.com/lyzr/composer/internal/builder"
)

// rule rewrites one node one step closer to the primitive set. Grounded on
// original_source/src/composer/composer.py's `lowerer` namespace.
type rule func(n *ast.Node) (*ast.Node, error)

var rules map[ast.Type]rule

func init() {
	rules = map[ast.Type]rule{
		ast.Empty:       emptyRule,
		ast.ValueT:      valueRule,
		ast.Literal:     valueRule,
		ast.Retain:      retainRule,
		ast.RetainCatch: retainCatchRule,
		ast.If:          ifRule,
		ast.While:       whileRule,
		ast.DoWhile:     dowhileRule,
		ast.Repeat:      repeatRule,
		ast.RetryT:      retryRule,
		ast.Merge:       mergeRule,
		ast.Sleep:       sleepRule,
		ast.Invoke:      invokeRule,
	}
}

func components(n *ast.Node) []interface{} {
	out := make([]interface{}, len(n.Components))
	for i, c := range n.Components {
		out[i] = c
	}
	return out
}

func nativeNode(name string) *ast.Node {
	return &ast.Node{Type: ast.Function, Function: &ast.Exec{Kind: "native", Code: name}}
}

// emptyRule: empty -> sequence()
func emptyRule(*ast.Node) (*ast.Node, error) {
	return builder.Sequence()
}

// valueRule: value(v)/literal(v) -> let({value:v}, get_value)
func valueRule(n *ast.Node) (*ast.Node, error) {
	return builder.Let(map[string]interface{}{"value": n.Value}, nativeNode(getValue))
}

// retainRule: retain(...c) -> let({params:null},
//
//	finally(set_params, seq(mask(...c), retain_result)))
func retainRule(n *ast.Node) (*ast.Node, error) {
	masked, err := builder.Mask(components(n)...)
	if err != nil {
		return nil, err
	}
	seq, err := builder.Sequence(masked, nativeNode(retainResult))
	if err != nil {
		return nil, err
	}
	fin, err := builder.Finally(nativeNode(setParams), seq)
	if err != nil {
		return nil, err
	}
	return builder.Let(map[string]interface{}{"params": nil}, fin)
}

// retainCatchRule: retain_catch(...c) -> seq(
//
//	retain(finally(seq(...c), set_nested_result)),
//	retain_nested_result)
func retainCatchRule(n *ast.Node) (*ast.Node, error) {
	inner, err := builder.Sequence(components(n)...)
	if err != nil {
		return nil, err
	}
	fin, err := builder.Finally(inner, nativeNode(setNestedResultName))
	if err != nil {
		return nil, err
	}
	ret, err := builder.Retain(fin)
	if err != nil {
		return nil, err
	}
	return builder.Sequence(ret, nativeNode(retainNestedResult))
}

// ifRule: if(t,k,a) -> let({params:null}, set_params,
//
//	finally(set_params, if_nosave(mask(t),
//	  finally(get_params, mask(k)),
//	  finally(get_params, mask(a)))))
func ifRule(n *ast.Node) (*ast.Node, error) {
	maskedTest, err := builder.Mask(n.Test)
	if err != nil {
		return nil, err
	}
	maskedK, err := builder.Mask(n.Consequent)
	if err != nil {
		return nil, err
	}
	maskedA, err := builder.Mask(n.Alternate)
	if err != nil {
		return nil, err
	}
	consFin, err := builder.Finally(nativeNode(getParams), maskedK)
	if err != nil {
		return nil, err
	}
	altFin, err := builder.Finally(nativeNode(getParams), maskedA)
	if err != nil {
		return nil, err
	}
	ifNoSave, err := builder.IfNoSave(maskedTest, consFin, altFin)
	if err != nil {
		return nil, err
	}
	outerFin, err := builder.Finally(nativeNode(setParams), ifNoSave)
	if err != nil {
		return nil, err
	}
	return builder.Let(map[string]interface{}{"params": nil}, nativeNode(setParams), outerFin)
}

// whileRule: while(t,b) -> let({params:null},
//
//	finally(set_params, seq(
//	  while_nosave(mask(t), finally(get_params, seq(mask(b), set_params))),
//	  get_params)))
func whileRule(n *ast.Node) (*ast.Node, error) {
	maskedTest, err := builder.Mask(n.Test)
	if err != nil {
		return nil, err
	}
	maskedBody, err := builder.Mask(n.Body)
	if err != nil {
		return nil, err
	}
	innerSeq, err := builder.Sequence(maskedBody, nativeNode(setParams))
	if err != nil {
		return nil, err
	}
	bodyFin, err := builder.Finally(nativeNode(getParams), innerSeq)
	if err != nil {
		return nil, err
	}
	whileNoSave, err := builder.WhileNoSave(maskedTest, bodyFin)
	if err != nil {
		return nil, err
	}
	outerSeq, err := builder.Sequence(whileNoSave, nativeNode(getParams))
	if err != nil {
		return nil, err
	}
	outerFin, err := builder.Finally(nativeNode(setParams), outerSeq)
	if err != nil {
		return nil, err
	}
	return builder.Let(map[string]interface{}{"params": nil}, outerFin)
}

// dowhileRule: dowhile(b,t) -> let({params:null},
//
//	finally(set_params, seq(
//	  dowhile_nosave(finally(get_params, seq(mask(b), set_params)), mask(t)),
//	  get_params)))
func dowhileRule(n *ast.Node) (*ast.Node, error) {
	maskedBody, err := builder.Mask(n.Body)
	if err != nil {
		return nil, err
	}
	maskedTest, err := builder.Mask(n.Test)
	if err != nil {
		return nil, err
	}
	innerSeq, err := builder.Sequence(maskedBody, nativeNode(setParams))
	if err != nil {
		return nil, err
	}
	bodyFin, err := builder.Finally(nativeNode(getParams), innerSeq)
	if err != nil {
		return nil, err
	}
	doWhileNoSave, err := builder.DoWhileNoSave(bodyFin, maskedTest)
	if err != nil {
		return nil, err
	}
	outerSeq, err := builder.Sequence(doWhileNoSave, nativeNode(getParams))
	if err != nil {
		return nil, err
	}
	outerFin, err := builder.Finally(nativeNode(setParams), outerSeq)
	if err != nil {
		return nil, err
	}
	return builder.Let(map[string]interface{}{"params": nil}, outerFin)
}

// repeatRule: repeat(n, ...c) -> let({count:n}, while(dec_count, mask(seq(...c))))
func repeatRule(n *ast.Node) (*ast.Node, error) {
	seq, err := builder.Sequence(components(n)...)
	if err != nil {
		return nil, err
	}
	masked, err := builder.Mask(seq)
	if err != nil {
		return nil, err
	}
	whileNode, err := builder.While(nativeNode(decCount), masked)
	if err != nil {
		return nil, err
	}
	return builder.Let(map[string]interface{}{"count": n.Count}, whileNode)
}

// retryRule: retry(n, ...c) -> let({count:n}, set_nested_params,
//
//	dowhile(finally(get_nested_params, mask(retain_catch(...c))), retry_cond),
//	get_nested_result)
func retryRule(n *ast.Node) (*ast.Node, error) {
	retainCatch, err := builder.RetainCatch(components(n)...)
	if err != nil {
		return nil, err
	}
	masked, err := builder.Mask(retainCatch)
	if err != nil {
		return nil, err
	}
	bodyFin, err := builder.Finally(nativeNode(getNestedParams), masked)
	if err != nil {
		return nil, err
	}
	doWhileNode, err := builder.DoWhile(bodyFin, nativeNode(retryCond))
	if err != nil {
		return nil, err
	}
	return builder.Let(map[string]interface{}{"count": n.Count}, nativeNode(setNestedParams), doWhileNode, nativeNode(getNestedResult))
}

// mergeRule: merge(...c) -> seq(retain(...c), merge_params_result)
func mergeRule(n *ast.Node) (*ast.Node, error) {
	ret, err := builder.Retain(components(n)...)
	if err != nil {
		return nil, err
	}
	return builder.Sequence(ret, nativeNode(mergeParamsResult))
}

// sleepRule: sleep(ms) -> seq(value({ms}), action("sleep"))
//
// The hosted "sleep" action receives params {ms: <duration>}
// (SPEC_FULL.md §C).
func sleepRule(n *ast.Node) (*ast.Node, error) {
	val, err := builder.Value(map[string]interface{}{"ms": n.Count})
	if err != nil {
		return nil, err
	}
	act, err := builder.Action("sleep")
	if err != nil {
		return nil, err
	}
	return builder.Sequence(val, act)
}

// invokeRule: invoke(req, timeout) -> seq(value({request:req, timeout}), action("invoke"))
//
// Like sleepRule, this dispatches through a standard action suspension point
// rather than a dedicated `execute` primitive (SPEC_FULL.md §C.4).
func invokeRule(n *ast.Node) (*ast.Node, error) {
	val, err := builder.Value(map[string]interface{}{"request": n.Value, "timeout": n.Count})
	if err != nil {
		return nil, err
	}
	act, err := builder.Action("invoke")
	if err != nil {
		return nil, err
	}
	return builder.Sequence(val, act)
}
