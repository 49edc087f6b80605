// Package patchenv implements the optional delta-encoding of the $resume
// continuation envelope (spec §6.3, SPEC_FULL.md §B): instead of echoing the
// full params object on every hop, a host may diff the previous and next
// params with a JSON merge patch and ship only the delta.
//
// Grounded on the teacher's common/validation.PatchValidator (validate
// before apply) and common/models.PatchChainMember (a patch is meaningless
// without the head it applies against); adapted from workflow-node JSON
// Patch operations to whole-object JSON Merge Patch over conductor params.
package patchenv

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// MaxPatchBytes bounds a single patch, the same kind of sanity limit the
// teacher's PatchValidator enforces on patch operation counts.
const MaxPatchBytes = 1 << 20 // 1 MiB

// Diff computes the JSON merge patch that turns prev into next. The
// conductor's $resume envelope itself (the "state"/"stack" fields) is never
// patched, so the envelope's own shape (spec §6.3) is unchanged. Nothing in
// this module puts the patch on the wire: cmd/conductor-host only logs it,
// and params still travel in full on every hop.
func Diff(prev, next map[string]interface{}) ([]byte, error) {
	prevJSON, err := json.Marshal(prev)
	if err != nil {
		return nil, fmt.Errorf("marshal previous params: %w", err)
	}
	nextJSON, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("marshal next params: %w", err)
	}
	patch, err := jsonpatch.CreateMergePatch(prevJSON, nextJSON)
	if err != nil {
		return nil, fmt.Errorf("create merge patch: %w", err)
	}
	if err := validate(patch); err != nil {
		return nil, err
	}
	return patch, nil
}

// Apply reassembles next params from prev params plus a patch produced by
// Diff, validating it before applying (mirroring PatchValidator's
// validate-before-mutate ordering).
func Apply(prev map[string]interface{}, patch []byte) (map[string]interface{}, error) {
	if err := validate(patch); err != nil {
		return nil, err
	}
	prevJSON, err := json.Marshal(prev)
	if err != nil {
		return nil, fmt.Errorf("marshal previous params: %w", err)
	}
	nextJSON, err := jsonpatch.MergePatch(prevJSON, patch)
	if err != nil {
		return nil, fmt.Errorf("apply merge patch: %w", err)
	}
	var next map[string]interface{}
	if err := json.Unmarshal(nextJSON, &next); err != nil {
		return nil, fmt.Errorf("decode patched params: %w", err)
	}
	return next, nil
}

func validate(patch []byte) error {
	if len(patch) > MaxPatchBytes {
		return fmt.Errorf("params patch exceeds %d bytes", MaxPatchBytes)
	}
	if !json.Valid(patch) {
		return fmt.Errorf("params patch is not valid JSON")
	}
	return nil
}
