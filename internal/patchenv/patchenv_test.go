package patchenv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffApplyRoundTrip(t *testing.T) {
	prev := map[string]interface{}{"n": float64(1), "label": "start"}
	next := map[string]interface{}{"n": float64(2), "label": "start"}

	patch, err := Diff(prev, next)
	require.NoError(t, err)

	got, err := Apply(prev, patch)
	require.NoError(t, err)
	assert.Equal(t, float64(2), got["n"])
	assert.Equal(t, "start", got["label"])
}

func TestApplyRejectsOversizedPatch(t *testing.T) {
	huge := make([]byte, MaxPatchBytes+1)
	for i := range huge {
		huge[i] = ' '
	}
	huge[0] = '{'
	huge[len(huge)-1] = '}'

	_, err := Apply(map[string]interface{}{}, huge)
	assert.Error(t, err)
}
