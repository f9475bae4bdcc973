package port

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is a generic request cache keyed by semantic query keys such as
// "conversations:<userID>" or "presence". Entries are overwritten whole;
// there is no partial update, so concurrent writers converge on the last
// write.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
