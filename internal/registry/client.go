// Package registry implements the external action client consumed by the
// core (spec §6.1): actions.delete/create/update/invoke. The core only ever
// depends on the ActionClient interface; every implementation here is
// swappable, matching spec.md's framing of this as "out of scope except for
// the interface it consumes".
//
// Grounded on the teacher's common/clients (CASClient / RedisCASClient) and
// common/db (pgxpool wrapper), generalized from "workflow artifact storage"
// to "action definition storage".
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/lyzr/composer/internal/encode"
)

// ActionSpec is the deployable unit the client manages: a name plus its
// exec/annotations, matching encode.EncodedAction's shape so the output of
// Encode can be handed straight to Create/Update.
type ActionSpec struct {
	Name   string
	Action encode.ActionSpec
}

// InvokeRequest is one invocation request against a registered action.
type InvokeRequest struct {
	Name     string
	Params   map[string]interface{}
	Blocking bool
}

// Activation is the result of invoking an action: either a conductor
// continuation (Resume set) or a terminal result.
type Activation struct {
	ActivationID string
	Result       map[string]interface{}
	Resume       map[string]interface{}
}

// ActionClient is the interface the core consumes (spec §6.1). Every
// method is context-aware; implementations must be safe for concurrent use.
type ActionClient interface {
	Delete(ctx context.Context, name string) error
	Create(ctx context.Context, spec ActionSpec) error
	Update(ctx context.Context, spec ActionSpec) error
	Invoke(ctx context.Context, req InvokeRequest) (*Activation, error)
}

// ActionReader is implemented by ActionClients that can hand back a stored
// action's raw spec. A host that builds its own conductor FSM from a
// deployed composition (rather than delegating invocation entirely to the
// client) needs this in addition to ActionClient.
type ActionReader interface {
	Get(ctx context.Context, name string) (*ActionSpec, error)
}

var ErrNotFound = fmt.Errorf("action not found")

// InMemoryActionClient is the default ActionClient: a plain map guarded by
// a mutex. Used by tests and by cmd/conductor-host when no Postgres/Redis
// backend is configured.
type InMemoryActionClient struct {
	mu      sync.RWMutex
	actions map[string]ActionSpec
	invoker func(ctx context.Context, spec ActionSpec, params map[string]interface{}) (map[string]interface{}, error)
}

// NewInMemoryActionClient builds an InMemoryActionClient. invoker dispatches
// a registered action's exec against params; nil means every invocation
// fails with "no invoker configured" (tests that only exercise
// create/update/delete can leave it nil).
func NewInMemoryActionClient(invoker func(ctx context.Context, spec ActionSpec, params map[string]interface{}) (map[string]interface{}, error)) *InMemoryActionClient {
	return &InMemoryActionClient{actions: make(map[string]ActionSpec), invoker: invoker}
}

func (c *InMemoryActionClient) Delete(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.actions[name]; !ok {
		return ErrNotFound
	}
	delete(c.actions, name)
	return nil
}

func (c *InMemoryActionClient) Create(_ context.Context, spec ActionSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions[spec.Name] = spec
	return nil
}

func (c *InMemoryActionClient) Update(_ context.Context, spec ActionSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.actions[spec.Name]; !ok {
		return ErrNotFound
	}
	c.actions[spec.Name] = spec
	return nil
}

func (c *InMemoryActionClient) Get(_ context.Context, name string) (*ActionSpec, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	spec, ok := c.actions[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &spec, nil
}

func (c *InMemoryActionClient) Invoke(ctx context.Context, req InvokeRequest) (*Activation, error) {
	c.mu.RLock()
	spec, ok := c.actions[req.Name]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if c.invoker == nil {
		return nil, fmt.Errorf("no invoker configured for action %q", req.Name)
	}
	result, err := c.invoker(ctx, spec, req.Params)
	if err != nil {
		return nil, err
	}
	act := &Activation{Result: result}
	if resume, ok := result["$resume"]; ok {
		if m, ok := resume.(map[string]interface{}); ok {
			act.Resume = m
		}
	}
	return act, nil
}
