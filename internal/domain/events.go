package domain

import "time"

// Event topics published on the bus. The WebSocket hub relays these to
// subscribed clients and the audit archiver snapshots them.
const (
	TopicCommitmentCreated   = "commitment.created"
	TopicValueUpdated        = "commitment.value_updated"
	TopicCommitmentViolated  = "commitment.violated"
	TopicCommitmentSettled   = "commitment.settled"
	TopicEarlyExit           = "commitment.early_exit"
	TopicAllocated           = "allocation.allocated"
	TopicDeallocated         = "allocation.deallocated"
	TopicAllocatorUpdated    = "registry.allocator_updated"
)

// CommitmentCreatedEvent is emitted after a commitment is persisted.
type CommitmentCreatedEvent struct {
	CommitmentID string          `json:"commitment_id"`
	Owner        string          `json:"owner"`
	Amount       int64           `json:"amount"`
	AssetAddress string          `json:"asset_address"`
	Rules        CommitmentRules `json:"rules"`
	CreatedAt    time.Time       `json:"created_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
}

// ValueUpdatedEvent is emitted after every value mark, including ones that
// trip the loss limit.
type ValueUpdatedEvent struct {
	CommitmentID string           `json:"commitment_id"`
	NewValue     int64            `json:"new_value"`
	Status       CommitmentStatus `json:"status"`
	LossPercent  int64            `json:"loss_percent"`
}

// SettledEvent is emitted when a commitment is resolved at maturity.
type SettledEvent struct {
	CommitmentID string `json:"commitment_id"`
	Owner        string `json:"owner"`
	Amount       int64  `json:"amount"`
}

// EarlyExitEvent is emitted when the owner exits before expiry.
type EarlyExitEvent struct {
	CommitmentID string `json:"commitment_id"`
	Caller       string `json:"caller"`
	Remaining    int64  `json:"remaining"`
	Penalty      int64  `json:"penalty"`
}

// AllocationEvent is emitted for both allocations and deallocations.
type AllocationEvent struct {
	CommitmentID string    `json:"commitment_id"`
	TargetPool   string    `json:"target_pool"`
	Amount       int64     `json:"amount"`
	Timestamp    time.Time `json:"timestamp"`
}

// AllocatorUpdatedEvent is emitted when the admin changes an allow-list.
type AllocatorUpdatedEvent struct {
	Principal  string        `json:"principal"`
	Role       PrincipalRole `json:"role"`
	Authorized bool          `json:"authorized"`
}
