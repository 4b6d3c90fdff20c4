package domain

import (
	"context"
	"time"
)

// Clock supplies the ledger timestamp used for expiry math and allocation
// audit entries. Implementations must be monotonic from the caller's view.
type Clock interface {
	Now() time.Time
}

// Proof is the caller-supplied evidence that a principal authorized the
// current operation. The signature covers the principal and the timestamp;
// the Authorizer decides how to verify it.
type Proof struct {
	Timestamp int64
	Signature []byte
}

// Authorizer verifies that the claimed principal actually authorized the
// current operation. A failed check aborts the whole operation with
// ErrUnauthorized.
type Authorizer interface {
	RequireProof(ctx context.Context, principal string, proof Proof) error
}

// AssetTransfer moves a quantity of a fungible asset between two addresses
// in external custody. Any error is fatal to the enclosing operation.
type AssetTransfer interface {
	Transfer(ctx context.Context, asset, from, to string, amount int64) error
}

// TokenMinter mints an ownership token for a newly created commitment. It is
// an optional integration point; services treat a nil minter as disabled.
type TokenMinter interface {
	Mint(ctx context.Context, owner string) (uint64, error)
}

// StreamMessage is a single entry read back from a durable event stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// EventBus is the fire-and-forget event sink. Publish failures are logged
// but never abort the operation that emitted the event.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// LockManager serializes operations on a shared key across processes. The
// returned unlock function is safe to call multiple times.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter enforces a request budget per key within a rolling window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
