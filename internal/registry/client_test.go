package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/composer/internal/encode"
)

func TestInMemoryActionClientCRUD(t *testing.T) {
	c := NewInMemoryActionClient(nil)
	ctx := context.Background()
	spec := ActionSpec{Name: "echo", Action: encode.ActionSpec{Exec: encode.ExecSpec{Kind: "native", Code: "echo"}}}

	require.NoError(t, c.Create(ctx, spec))
	require.NoError(t, c.Update(ctx, spec))
	require.NoError(t, c.Delete(ctx, "echo"))
	assert.ErrorIs(t, c.Delete(ctx, "echo"), ErrNotFound, "double delete should report ErrNotFound")
}

func TestInMemoryActionClientInvokeDispatchesToInvoker(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryActionClient(func(_ context.Context, spec ActionSpec, params map[string]interface{}) (map[string]interface{}, error) {
		n, _ := params["n"].(float64)
		return map[string]interface{}{"n": n + 1}, nil
	})
	spec := ActionSpec{Name: "increment", Action: encode.ActionSpec{Exec: encode.ExecSpec{Kind: "native", Code: "increment"}}}
	require.NoError(t, c.Create(ctx, spec))

	act, err := c.Invoke(ctx, InvokeRequest{Name: "increment", Params: map[string]interface{}{"n": float64(1)}})
	require.NoError(t, err)
	assert.Equal(t, float64(2), act.Result["n"])
}

func TestInMemoryActionClientInvokeMissingAction(t *testing.T) {
	_, err := NewInMemoryActionClient(nil).Invoke(context.Background(), InvokeRequest{Name: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}
