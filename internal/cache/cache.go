package cache

import (
	"context"
	"time"
)

// HashStore is a thin wrapper over hash-map operations on a remote key-value store.
// Every call is atomic at the single-field or single-key level.
type HashStore interface {
	GetAll(ctx context.Context, key string) (map[string]string, error)
	SetField(ctx context.Context, key, field string, value any) error
	// SetFieldIfAbsent writes the field only when it does not exist yet.
	SetFieldIfAbsent(ctx context.Context, key, field string, value any) (bool, error)
	IncrementField(ctx context.Context, key, field string, delta int64) (int64, error)
	DeleteField(ctx context.Context, key, field string) error
	FieldExists(ctx context.Context, key, field string) (bool, error)
	DeleteKey(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
