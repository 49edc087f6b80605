package lower

import (
	"github.com/lyzr/composer/internal/nativefn"
)

// Native function names the Lowerer's rewrite rules inject. Grounded
// one-for-one on original_source/src/composer/composer.py's utility
// functions (get_value, set_params, get_params, retain_result, ...).
const (
	getValue          = "composer.getValue"
	setParams         = "composer.setParams"
	getParams         = "composer.getParams"
	retainResult      = "composer.retainResult"
	retainNestedResult = "composer.retainNestedResult"
	decCount          = "composer.decCount"
	setNestedParams   = "composer.setNestedParams"
	getNestedParams   = "composer.getNestedParams"
	setNestedResultName = "composer.setNestedResult"
	retryCond         = "composer.retryCond"
	getNestedResult   = "composer.getNestedResult"
	mergeParamsResult = "composer.mergeParamsResult"
)

func init() {
	nativefn.Register(getValue, func(env map[string]interface{}, _ interface{}) (interface{}, error) {
		return env["value"], nil
	})

	nativefn.Register(setParams, func(env map[string]interface{}, args interface{}) (interface{}, error) {
		env["params"] = args
		return nil, nil // nil result keeps current dataflow params unchanged
	})

	nativefn.Register(getParams, func(env map[string]interface{}, _ interface{}) (interface{}, error) {
		return env["params"], nil
	})

	nativefn.Register(retainResult, func(env map[string]interface{}, args interface{}) (interface{}, error) {
		return map[string]interface{}{"params": env["params"], "result": args}, nil
	})

	nativefn.Register(retainNestedResult, func(_ map[string]interface{}, args interface{}) (interface{}, error) {
		m, _ := args.(map[string]interface{})
		result, _ := m["result"].(map[string]interface{})
		return map[string]interface{}{"params": m["params"], "result": result["result"]}, nil
	})

	nativefn.Register(decCount, func(env map[string]interface{}, _ interface{}) (interface{}, error) {
		c := asInt(env["count"])
		env["count"] = c - 1
		return c > 0, nil
	})

	nativefn.Register(setNestedParams, func(_ map[string]interface{}, args interface{}) (interface{}, error) {
		return map[string]interface{}{"params": args}, nil
	})

	nativefn.Register(getNestedParams, func(_ map[string]interface{}, args interface{}) (interface{}, error) {
		m, _ := args.(map[string]interface{})
		return m["params"], nil
	})

	nativefn.Register(setNestedResultName, func(_ map[string]interface{}, args interface{}) (interface{}, error) {
		return map[string]interface{}{"result": args}, nil
	})

	nativefn.Register(retryCond, func(env map[string]interface{}, args interface{}) (interface{}, error) {
		m, _ := args.(map[string]interface{})
		result, _ := m["result"].(map[string]interface{})
		_, hasError := result["error"]
		c := asInt(env["count"])
		env["count"] = c - 1
		return hasError && c > 0, nil
	})

	nativefn.Register(getNestedResult, func(_ map[string]interface{}, args interface{}) (interface{}, error) {
		m, _ := args.(map[string]interface{})
		return m["result"], nil
	})

	nativefn.Register(mergeParamsResult, func(_ map[string]interface{}, args interface{}) (interface{}, error) {
		m, _ := args.(map[string]interface{})
		params, _ := m["params"].(map[string]interface{})
		result, _ := m["result"].(map[string]interface{})
		merged := make(map[string]interface{}, len(params)+len(result))
		for k, v := range params {
			merged[k] = v
		}
		for k, v := range result {
			merged[k] = v
		}
		return merged, nil
	})
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
