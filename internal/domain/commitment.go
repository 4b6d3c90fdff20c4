// Package domain defines the core entities of the commitment ledger: the
// Commitment lifecycle, its rules, the allocation sub-ledger, and the
// interfaces through which the services reach storage and the external
// collaborators (clock, authorization, asset custody, event sink).
package domain

import (
	"fmt"
	"time"
)

// CommitmentStatus is the lifecycle state of a commitment. The only
// transitions are out of StatusActive; the other three states are terminal.
type CommitmentStatus string

const (
	StatusActive    CommitmentStatus = "active"
	StatusSettled   CommitmentStatus = "settled"
	StatusViolated  CommitmentStatus = "violated"
	StatusEarlyExit CommitmentStatus = "early_exit"
)

// Terminal reports whether the status admits no further lifecycle transition.
func (s CommitmentStatus) Terminal() bool {
	switch s {
	case StatusSettled, StatusViolated, StatusEarlyExit:
		return true
	default:
		return false
	}
}

// CommitmentType is the declared risk profile of a commitment. It is
// informational at this layer; allocation strategies interpret it.
type CommitmentType string

const (
	TypeSafe       CommitmentType = "safe"
	TypeBalanced   CommitmentType = "balanced"
	TypeAggressive CommitmentType = "aggressive"
)

// Valid reports whether t is one of the known risk profiles.
func (t CommitmentType) Valid() bool {
	switch t {
	case TypeSafe, TypeBalanced, TypeAggressive:
		return true
	default:
		return false
	}
}

// CommitmentRules are the risk parameters fixed at creation time. They are
// immutable once attached to a commitment.
type CommitmentRules struct {
	DurationDays     int            // commitment lifetime, must be > 0
	MaxLossPercent   int            // tolerated value drop, 0..100
	CommitmentType   CommitmentType // risk profile tag
	EarlyExitPenalty int            // percent of current value taken on early exit, 0..100
	MinFeeThreshold  int64          // reserved for fee logic, not enforced here
}

// Validate checks the rule parameters against their allowed ranges.
func (r CommitmentRules) Validate() error {
	if r.DurationDays <= 0 {
		return fmt.Errorf("%w: duration_days must be positive, got %d", ErrInvalidRules, r.DurationDays)
	}
	if r.MaxLossPercent < 0 || r.MaxLossPercent > 100 {
		return fmt.Errorf("%w: max_loss_percent must be in [0,100], got %d", ErrInvalidRules, r.MaxLossPercent)
	}
	if r.EarlyExitPenalty < 0 || r.EarlyExitPenalty > 100 {
		return fmt.Errorf("%w: early_exit_penalty must be in [0,100], got %d", ErrInvalidRules, r.EarlyExitPenalty)
	}
	if !r.CommitmentType.Valid() {
		return fmt.Errorf("%w: unknown commitment type %q", ErrInvalidRules, r.CommitmentType)
	}
	return nil
}

// Duration returns the commitment lifetime as a time.Duration.
func (r CommitmentRules) Duration() time.Duration {
	return time.Duration(r.DurationDays) * 24 * time.Hour
}

// Commitment is a single locked-fund position. Amount, rules, asset and owner
// are fixed at creation; only CurrentValue and Status change afterwards, and
// only through the lifecycle operations.
type Commitment struct {
	ID           string
	Owner        string // principal entitled to settlement / early-exit proceeds
	NFTTokenID   uint64 // external ownership token, 0 if no token service is wired
	Rules        CommitmentRules
	Amount       int64  // original locked principal, > 0
	AssetAddress string // fungible asset being locked
	CreatedAt    time.Time
	ExpiresAt    time.Time
	CurrentValue int64 // mark-to-value, starts equal to Amount
	Status       CommitmentStatus
}

// Expired reports whether the commitment has reached its expiry instant.
// The expiry instant itself counts as expired.
func (c Commitment) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// TimeRemaining returns the time until expiry, floored at zero.
func (c Commitment) TimeRemaining(now time.Time) time.Duration {
	if c.Expired(now) {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

// FormatCommitmentID renders a monotonic counter value as a commitment
// identifier. Identifiers are never reused.
func FormatCommitmentID(n uint64) string {
	return fmt.Sprintf("cmt-%06d", n)
}
