package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// CommitmentStore persists Commitment records. It is the single writer for a
// given commitment ID; no other mutation path exists.
type CommitmentStore interface {
	// NextID reserves the next value of the monotonic commitment counter.
	// Reserved values are never reused, even if the creation later fails.
	NextID(ctx context.Context) (uint64, error)
	Create(ctx context.Context, c Commitment) error
	// Update writes back mutable fields (current value, status).
	Update(ctx context.Context, c Commitment) error
	// GetByID returns ErrNotFound when no record exists.
	GetByID(ctx context.Context, id string) (Commitment, error)
	ListActive(ctx context.Context, opts ListOpts) ([]Commitment, error)
	ListByOwner(ctx context.Context, owner string, opts ListOpts) ([]Commitment, error)
}

// AllocationStore persists the per-commitment free balance and allocation
// sub-ledger. Tracking reads on an unseen commitment return zero values, not
// an error. RecordAllocation and RecordDeallocation apply the balance change,
// the running total, and the audit-trail entry as one atomic write.
type AllocationStore interface {
	// InitBalance sets the free balance at commitment creation.
	InitBalance(ctx context.Context, commitmentID string, amount int64) error
	FreeBalance(ctx context.Context, commitmentID string) (int64, error)
	Tracking(ctx context.Context, commitmentID string) (AllocationTracking, error)
	// RecordAllocation debits the free balance and appends a to the trail.
	// It returns ErrInsufficientBalance when the balance cannot cover a.Amount.
	RecordAllocation(ctx context.Context, a Allocation) error
	// RecordDeallocation credits the free balance and reduces the running
	// total. It returns ErrOverDeallocation when the total would go negative.
	RecordDeallocation(ctx context.Context, commitmentID, targetPool string, amount int64, at time.Time) error
}

// PrincipalRole distinguishes the delegated capabilities the registry tracks.
type PrincipalRole string

const (
	RoleAllocator PrincipalRole = "allocator"
	RoleValuator  PrincipalRole = "valuator"
)

// RegistryStore persists the singleton registry state: the admin principal,
// the one-time init marker, and the per-role allow-lists.
type RegistryStore interface {
	// Admin returns ErrNotFound before initialization.
	Admin(ctx context.Context) (string, error)
	Initialized(ctx context.Context) (bool, error)
	// Initialize persists the admin and auxiliary service reference and sets
	// the init marker in one write.
	Initialize(ctx context.Context, admin, tokenService string) error
	SetAuthorization(ctx context.Context, principal string, role PrincipalRole, authorized bool) error
	// IsAuthorized defaults to false for unknown principals.
	IsAuthorized(ctx context.Context, principal string, role PrincipalRole) (bool, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
