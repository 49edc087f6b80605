package conductor

// Frame is one entry of the suspended continuation stack carried in the
// $resume envelope (spec §4.6.1/§6.3): either a try/finally catch target or a
// let/mask lexical binding (IsMask frames carry no declarations).
//
// Grounded on original_source/src/composer/conductor.py's stack frames
// ({'catch': n} / {'let': declarations-or-None}).
type Frame struct {
	Catch  *int
	IsLet  bool
	IsMask bool
	Let    map[string]interface{}
}

func catchFrame(target int) Frame { return Frame{Catch: &target} }

func letFrame(decls map[string]interface{}) Frame { return Frame{IsLet: true, Let: decls} }

func maskFrame() Frame { return Frame{IsLet: true, IsMask: true} }

// toWire renders a frame the way it crosses the wire: {"catch": n} or
// {"let": null} or {"let": {...}}.
func (f Frame) toWire() map[string]interface{} {
	if f.Catch != nil {
		return map[string]interface{}{"catch": *f.Catch}
	}
	if f.IsMask {
		return map[string]interface{}{"let": nil}
	}
	return map[string]interface{}{"let": f.Let}
}

func frameFromWire(raw interface{}) (Frame, bool) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return Frame{}, false
	}
	if c, has := m["catch"]; has {
		n, ok := toInt(c)
		if !ok {
			return Frame{}, false
		}
		return catchFrame(n), true
	}
	if l, has := m["let"]; has {
		if l == nil {
			return maskFrame(), true
		}
		decls, ok := l.(map[string]interface{})
		if !ok {
			return Frame{}, false
		}
		return letFrame(decls), true
	}
	return Frame{}, false
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// ResumeEnvelope is the $resume continuation: the instruction index to
// resume at (nil means the composition already ran to completion and the
// action's own output is the final result), plus the lexical/exception-
// handling stack (spec §4.6.4).
type ResumeEnvelope struct {
	State *int
	Stack []Frame
}

// EncodeResume renders a ResumeEnvelope into the plain JSON-value shape
// carried as params["$resume"] on a suspended Result (spec §6.3). A nil
// state encodes as JSON null: the action being invoked is the last step, so
// resuming performs no further stepping.
func EncodeResume(state *int, stack []Frame) map[string]interface{} {
	frames := make([]interface{}, len(stack))
	for i, f := range stack {
		frames[i] = f.toWire()
	}
	var stateValue interface{}
	if state != nil {
		stateValue = *state
	}
	return map[string]interface{}{"state": stateValue, "stack": frames}
}

func resumeFromWire(raw interface{}) (*ResumeEnvelope, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errBadResumeType
	}
	stateRaw, has := m["state"]
	if !has {
		return nil, errBadResumeState
	}
	var statePtr *int
	if stateRaw != nil {
		n, ok := toInt(stateRaw)
		if !ok {
			return nil, errBadResumeState
		}
		statePtr = &n
	}
	stackRaw, ok := m["stack"].([]interface{})
	if !ok {
		return nil, errBadResumeStack
	}
	stack := make([]Frame, len(stackRaw))
	for i, raw := range stackRaw {
		f, ok := frameFromWire(raw)
		if !ok {
			return nil, errBadResumeStack
		}
		stack[i] = f
	}
	return &ResumeEnvelope{State: statePtr, Stack: stack}, nil
}
