// conductor-host is the reference host platform described in spec §4.6.3
// and SPEC_FULL.md §B: an echo-based HTTP surface that deploys encoded
// compositions and, per invoke request, runs the conductor until it
// terminates, resolving each action it suspends on inline.
//
// Grounded on the teacher's cmd/orchestrator/main.go (echo setup,
// middleware, graceful bootstrap) and cmd/workflow-runner/condition's
// compiled-program cache pattern, adapted from workflow execution to
// conductor stepping.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/lyzr/composer/internal/ast"
	"github.com/lyzr/composer/internal/cerr"
	"github.com/lyzr/composer/internal/conductor"
	"github.com/lyzr/composer/internal/encode"
	"github.com/lyzr/composer/internal/flatten"
	"github.com/lyzr/composer/internal/nativefn"
	"github.com/lyzr/composer/internal/obslog"
	"github.com/lyzr/composer/internal/patchenv"
	"github.com/lyzr/composer/internal/registry"
)

// actionStore is what the host needs from the configured action backend:
// full ActionClient CRUD plus raw-spec reads so it can rebuild a conductor
// FSM from a deployed composition's exec code.
type actionStore interface {
	registry.ActionClient
	registry.ActionReader
}

// host wires the action store to the conductor execution engine: a
// conductor-kind action's exec.Code is the labeled/lowered AST JSON (spec
// §6.2's `composition`), re-flattened and cached, then stepped on every
// invoke.
type host struct {
	log   *obslog.Logger
	store actionStore

	// cas and activityLog are optional: nil means no Redis backend is
	// configured, and the host simply skips the extra recording.
	cas         *registry.RedisActionCache
	activityLog *registry.ActivationLogStream

	mu         sync.Mutex
	conductors map[string]*conductor.Conductor // lazily built, cached by action name
}

func newHost(log *obslog.Logger, store actionStore) *host {
	return &host{
		log:        log,
		store:      store,
		conductors: make(map[string]*conductor.Conductor),
	}
}

// withRedis attaches the content-addressable cache and activation-log
// stream. Called by main when CONDUCTOR_HOST_REDIS=on; the backend's
// reachability is not checked first.
func (h *host) withRedis(cas *registry.RedisActionCache, activityLog *registry.ActivationLogStream) *host {
	h.cas = cas
	h.activityLog = activityLog
	return h
}

// deploy encodes a composition AST and registers the resulting conductor
// action (plus any extracted inline leaf actions) with the action store.
func (h *host) deploy(ctx context.Context, name string, root *ast.Node) (*encode.EncodedComposition, error) {
	root = root.Clone()
	root.Name = name

	enc, err := encode.Encode(root, nil)
	if err != nil {
		return nil, err
	}

	for _, a := range enc.Actions {
		spec := registry.ActionSpec{Name: a.Name, Action: a.Action}
		if err := h.store.Create(ctx, spec); err != nil {
			return nil, fmt.Errorf("register action %q: %w", a.Name, err)
		}
		if h.cas != nil {
			if _, err := h.cas.Put(ctx, spec); err != nil {
				h.log.Error("cas put failed", "action", a.Name, "error", err)
			}
		}
	}

	h.mu.Lock()
	delete(h.conductors, name) // invalidate any cached FSM for a redeploy
	h.mu.Unlock()

	return enc, nil
}

// invoke runs (or resumes) the named deployed composition until the
// conductor returns a terminal result, running every leaf action it
// suspends on through runLeaf and resuming it with that action's output.
func (h *host) invoke(ctx context.Context, name string, params map[string]interface{}) (*conductor.Result, error) {
	activationID := uuid.NewString()
	// every log line for this hop onward carries the trace id (if any),
	// activation id, and composition name, so a suspended/resumed run's
	// steps can be grepped back together.
	log := h.log.WithContext(ctx).WithActivationID(activationID).WithPath(name)

	cnd, err := h.conductorFor(ctx, name)
	if err != nil {
		return nil, err
	}
	result := cnd.GuardedInvoke(params)
	h.recordHop(ctx, log, activationID, name, result)

	// a suspended conductor names the action it's waiting on; the reference
	// host resolves that one extra hop inline for the small set of leaf
	// actions it knows how to run itself.
	for result.Action != "" {
		out, err := h.runLeaf(result.Action, result.ActionParams)
		if err != nil {
			return nil, err
		}
		h.logParamsPatch(log, result.ActionParams, out)
		resumed := out
		resumed["$resume"] = result.Resume
		result = cnd.GuardedInvoke(resumed)
		h.recordHop(ctx, log, activationID, name, result)
	}
	return result, nil
}

// logParamsPatch computes the JSON merge patch a leaf hop applied to its
// params (before -> after) and logs it, round-tripping it through Apply as a
// self-check. Purely observability: the $resume envelope's own shape is
// untouched by this (SPEC_FULL.md §B), this only narrates what a hop changed.
func (h *host) logParamsPatch(log *obslog.Logger, before, after map[string]interface{}) {
	patch, err := patchenv.Diff(before, after)
	if err != nil {
		log.Debug("params patch diff skipped", "error", err)
		return
	}
	if _, err := patchenv.Apply(before, patch); err != nil {
		log.Error("params patch failed self-check", "error", err)
		return
	}
	log.Debug("leaf params patch", "patch", json.RawMessage(patch))
}

// recordHop appends one conductor step to the activation log, when a Redis
// backend is configured. Purely observational: replaying the log never
// drives execution (SPEC_FULL.md §B).
func (h *host) recordHop(ctx context.Context, log *obslog.Logger, activationID, name string, result *conductor.Result) {
	if h.activityLog == nil {
		return
	}
	if _, err := h.activityLog.Record(ctx, activationID, name, result.Action, result.Action != ""); err != nil {
		log.Error("activation log record failed", "error", err)
	}
}

func (h *host) conductorFor(ctx context.Context, name string) (*conductor.Conductor, error) {
	h.mu.Lock()
	if c, ok := h.conductors[name]; ok {
		h.mu.Unlock()
		return c, nil
	}
	h.mu.Unlock()

	spec, err := h.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if spec.Action.Exec.Kind != "conductor" {
		return nil, cerr.NewBadRequest(fmt.Sprintf("action %q is not a conductor composition", name))
	}

	var labeled ast.Node
	if err := json.Unmarshal([]byte(spec.Action.Exec.Code), &labeled); err != nil {
		return nil, fmt.Errorf("decode composition AST for %q: %w", name, err)
	}
	fsm, err := flatten.Flatten(&labeled)
	if err != nil {
		return nil, fmt.Errorf("flatten composition %q: %w", name, err)
	}

	cnd := conductor.New(fsm)
	h.mu.Lock()
	h.conductors[name] = cnd
	h.mu.Unlock()
	return cnd, nil
}

// runLeaf dispatches the small set of built-in leaf actions a bare
// conductor-host supports without an external runtime: "echo" returns
// params unchanged; "sleep" and "invoke" are acknowledged without actually
// suspending wall-clock time (this reference host has no scheduler); any
// other name falls through to a registered native function, if one exists.
// The built-ins match both their bare and their normalized ("/_/echo")
// names, since the conductor suspends on the normalized form.
func (h *host) runLeaf(name string, params map[string]interface{}) (map[string]interface{}, error) {
	switch name {
	case "echo", "sleep", "invoke", "/_/echo", "/_/sleep", "/_/invoke":
		return params, nil
	default:
		if fn, ok := nativefn.Lookup(name); ok {
			result, err := fn(map[string]interface{}{}, params)
			if err != nil {
				return nil, err
			}
			m, _ := result.(map[string]interface{})
			return m, nil
		}
		return nil, fmt.Errorf("no leaf runtime registered for action %q", name)
	}
}
