package registry

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	composerredis "github.com/lyzr/composer/common/redis"
	"github.com/redis/go-redis/v9"
)

// RedisActionCache is a content-addressable cache of encoded actions
// (SPEC_FULL.md §B): the key is the SHA-256 of the action spec's JSON (its
// name, exec and annotations), so re-encoding an unchanged composition under
// the same name is a pure cache hit. It does not
// implement ActionClient itself — a compiled action is looked up by content
// hash, not by name — callers pair it with an ActionClient for name-based
// dispatch.
//
// Grounded on common/clients/redis_cas.go's RedisCASClient: same
// sha256-keyed Put/Get, same "no caching, always query Redis" policy (the
// cache-ness lives entirely in the hash being of immutable content).
type RedisActionCache struct {
	redis *composerredis.Client
}

// NewRedisActionCache wraps an already-connected redis.Client.
func NewRedisActionCache(client *redis.Client, logger composerredis.Logger) *RedisActionCache {
	return &RedisActionCache{redis: composerredis.NewClient(client, logger)}
}

// Put stores the encoded action body and returns its content hash.
func (c *RedisActionCache) Put(ctx context.Context, action ActionSpec) (string, error) {
	data, err := json.Marshal(action)
	if err != nil {
		return "", fmt.Errorf("marshal action %q: %w", action.Name, err)
	}
	hash := fmt.Sprintf("sha256:%x", sha256.Sum256(data))
	if err := c.redis.SetWithExpiry(ctx, cacheKey(hash), string(data), 0); err != nil {
		return "", fmt.Errorf("cache action %q: %w", action.Name, err)
	}
	return hash, nil
}

// Get retrieves a previously cached action by content hash.
func (c *RedisActionCache) Get(ctx context.Context, hash string) (*ActionSpec, error) {
	raw, err := c.redis.Get(ctx, cacheKey(hash))
	if err != nil {
		return nil, ErrNotFound
	}
	var spec ActionSpec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return nil, fmt.Errorf("decode cached action %q: %w", hash, err)
	}
	return &spec, nil
}

func cacheKey(hash string) string { return "composer:cas:" + hash }

// ActivationLogStream records one conductor hop per call, for replay and
// debugging (SPEC_FULL.md §B: "not execution state, purely observability").
// Grounded on common/redis.Client.AddToStream (XADD), reused verbatim.
type ActivationLogStream struct {
	redis  *composerredis.Client
	stream string
}

// NewActivationLogStream wraps an already-connected redis.Client, logging
// activations onto the named stream.
func NewActivationLogStream(client *redis.Client, logger composerredis.Logger, stream string) *ActivationLogStream {
	return &ActivationLogStream{redis: composerredis.NewClient(client, logger), stream: stream}
}

// Record appends one hop: the action name, its labeled path (if known), and
// whether the hop suspended or terminated.
func (s *ActivationLogStream) Record(ctx context.Context, activationID, actionName, path string, suspended bool) (string, error) {
	return s.redis.AddToStream(ctx, s.stream, map[string]interface{}{
		"activation_id": activationID,
		"action":        actionName,
		"path":          path,
		"suspended":     suspended,
	})
}
