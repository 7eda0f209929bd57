package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get for absent or expired keys.
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the key-value surface the session store is written against.
// Values are strings or []byte stored as-is, anything else as JSON.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	Increment(ctx context.Context, key string) (int64, error)
	MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error
	MGet(ctx context.Context, keys ...string) (map[string]string, error)
	// AppendSeq atomically increments counter to n, stores value at
	// counter:n and writes every entry of extra. It returns n.
	AppendSeq(ctx context.Context, counter string, value interface{}, extra map[string]interface{}) (int64, error)
}

// MGetTyped decodes the JSON values of keys into T. Keys that are missing or
// hold something that does not decode are left out.
func MGetTyped[T any](ctx context.Context, c Service, keys ...string) (map[string]T, error) {
	out := make(map[string]T, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	raw, err := c.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}
	for key, v := range raw {
		var obj T
		if json.Unmarshal([]byte(v), &obj) == nil {
			out[key] = obj
		}
	}
	return out, nil
}
