package domain

import "time"

// Allocation is an immutable audit-trail entry recording funds moved from a
// commitment's custody into an external yield pool.
type Allocation struct {
	CommitmentID string
	TargetPool   string
	Amount       int64
	Timestamp    time.Time
}

// AllocationTracking is the per-commitment sub-ledger: the running total
// currently parked in external pools plus the ordered trail of movements.
// It springs into existence as all-zero on first access.
type AllocationTracking struct {
	TotalAllocated int64
	Allocations    []Allocation
}
