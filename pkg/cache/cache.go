package cache

import (
	"context"
	"time"
)

// Tier is one level of a tiered byte cache. A miss is (nil, false, nil); an error means
// the tier itself is unhealthy.
type Tier interface {
	Name() string
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
