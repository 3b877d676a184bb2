// Package cache provides the distributed lock used to coordinate judge nodes.
package cache

import (
	"context"
	"time"
)

// LockOps defines distributed lock operations
type LockOps interface {
	// TryLock attempts to acquire a distributed lock
	// Returns true if lock was acquired, false otherwise
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Unlock releases a lock held by this client
	Unlock(ctx context.Context, key string) error

	// ExtendLock extends the TTL of a lock held by this client
	ExtendLock(ctx context.Context, key string, ttl time.Duration) error
}
