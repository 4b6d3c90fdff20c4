package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// AllocationService is the per-commitment sub-ledger of fund movements to and
// from external yield pools. Only principals on the allocator allow-list may
// move funds, and every movement keeps free balance + total allocated equal
// to the amount deposited for the commitment.
type AllocationService struct {
	publisher
	locker
	allocations domain.AllocationStore
	commitments domain.CommitmentStore
	registry    domain.RegistryStore
	clock       domain.Clock
	auth        domain.Authorizer
	transfer    domain.AssetTransfer
	custody     string
}

// NewAllocationService creates an AllocationService.
func NewAllocationService(
	allocations domain.AllocationStore,
	commitments domain.CommitmentStore,
	registry domain.RegistryStore,
	col Collaborators,
	logger *slog.Logger,
) *AllocationService {
	return &AllocationService{
		publisher: publisher{
			bus:    col.Bus,
			audit:  col.Audit,
			logger: logger.With(slog.String("component", "allocation_service")),
		},
		locker:      locker{locks: col.Locks},
		allocations: allocations,
		commitments: commitments,
		registry:    registry,
		clock:       col.Clock,
		auth:        col.Auth,
		transfer:    col.Transfer,
		custody:     col.Custody,
	}
}

// requireAllocator verifies the caller's proof and allocator authorization.
func (s *AllocationService) requireAllocator(ctx context.Context, caller string, proof domain.Proof) error {
	if err := s.auth.RequireProof(ctx, caller, proof); err != nil {
		return domain.ErrUnauthorized
	}
	ok, err := s.registry.IsAuthorized(ctx, caller, domain.RoleAllocator)
	if err != nil {
		return fmt.Errorf("check allocator authorization: %w", err)
	}
	if !ok {
		return fmt.Errorf("caller %s is not an authorized allocator: %w", caller, domain.ErrUnauthorized)
	}
	return nil
}

// Allocate moves amount from the commitment's custody into targetPool. The
// commitment must be active and its free balance must cover the amount. The
// transfer settles before any balance or tracking write, so a failed transfer
// changes nothing.
func (s *AllocationService) Allocate(ctx context.Context, caller string, proof domain.Proof, commitmentID, targetPool string, amount int64) error {
	if err := s.requireAllocator(ctx, caller, proof); err != nil {
		return fmt.Errorf("allocate %s: %w", commitmentID, err)
	}
	if amount <= 0 {
		return fmt.Errorf("allocate %s: %w: got %d", commitmentID, domain.ErrInvalidAmount, amount)
	}

	unlock, err := s.lock(ctx, commitmentID)
	if err != nil {
		return fmt.Errorf("allocate %s: %w", commitmentID, err)
	}
	defer unlock()

	c, err := s.commitments.GetByID(ctx, commitmentID)
	if err != nil {
		return fmt.Errorf("allocate %s: %w", commitmentID, err)
	}
	if c.Status != domain.StatusActive {
		return fmt.Errorf("allocate %s: status %s: %w", commitmentID, c.Status, domain.ErrInactiveCommitment)
	}

	balance, err := s.allocations.FreeBalance(ctx, commitmentID)
	if err != nil {
		return fmt.Errorf("allocate %s: read balance: %w", commitmentID, err)
	}
	if balance < amount {
		return fmt.Errorf("allocate %s: free %d < requested %d: %w", commitmentID, balance, amount, domain.ErrInsufficientBalance)
	}

	if err := s.transfer.Transfer(ctx, c.AssetAddress, s.custody, targetPool, amount); err != nil {
		return fmt.Errorf("allocate %s: %w: %v", commitmentID, domain.ErrTransferFailed, err)
	}

	a := domain.Allocation{
		CommitmentID: commitmentID,
		TargetPool:   targetPool,
		Amount:       amount,
		Timestamp:    s.clock.Now().UTC(),
	}
	if err := s.allocations.RecordAllocation(ctx, a); err != nil {
		return fmt.Errorf("allocate %s: record: %w", commitmentID, err)
	}

	s.logger.InfoContext(ctx, "funds allocated",
		slog.String("commitment_id", commitmentID),
		slog.String("target_pool", targetPool),
		slog.Int64("amount", amount),
	)
	s.publish(ctx, domain.TopicAllocated, domain.AllocationEvent{
		CommitmentID: commitmentID,
		TargetPool:   targetPool,
		Amount:       amount,
		Timestamp:    a.Timestamp,
	})
	s.auditLog(ctx, "allocation.allocated", map[string]any{
		"commitment_id": commitmentID,
		"target_pool":   targetPool,
		"amount":        amount,
	})
	return nil
}

// Deallocate returns amount from targetPool to the commitment's custody.
// Deallocating more than the running total fails with ErrOverDeallocation
// rather than clamping; a clamped total would hide a real accounting error.
func (s *AllocationService) Deallocate(ctx context.Context, caller string, proof domain.Proof, commitmentID, targetPool string, amount int64) error {
	if err := s.requireAllocator(ctx, caller, proof); err != nil {
		return fmt.Errorf("deallocate %s: %w", commitmentID, err)
	}
	if amount <= 0 {
		return fmt.Errorf("deallocate %s: %w: got %d", commitmentID, domain.ErrInvalidAmount, amount)
	}

	unlock, err := s.lock(ctx, commitmentID)
	if err != nil {
		return fmt.Errorf("deallocate %s: %w", commitmentID, err)
	}
	defer unlock()

	c, err := s.commitments.GetByID(ctx, commitmentID)
	if err != nil {
		return fmt.Errorf("deallocate %s: %w", commitmentID, err)
	}

	tracking, err := s.allocations.Tracking(ctx, commitmentID)
	if err != nil {
		return fmt.Errorf("deallocate %s: read tracking: %w", commitmentID, err)
	}
	if tracking.TotalAllocated < amount {
		return fmt.Errorf("deallocate %s: total %d < requested %d: %w", commitmentID, tracking.TotalAllocated, amount, domain.ErrOverDeallocation)
	}

	if err := s.transfer.Transfer(ctx, c.AssetAddress, targetPool, s.custody, amount); err != nil {
		return fmt.Errorf("deallocate %s: %w: %v", commitmentID, domain.ErrTransferFailed, err)
	}

	at := s.clock.Now().UTC()
	if err := s.allocations.RecordDeallocation(ctx, commitmentID, targetPool, amount, at); err != nil {
		return fmt.Errorf("deallocate %s: record: %w", commitmentID, err)
	}

	s.logger.InfoContext(ctx, "funds deallocated",
		slog.String("commitment_id", commitmentID),
		slog.String("target_pool", targetPool),
		slog.Int64("amount", amount),
	)
	s.publish(ctx, domain.TopicDeallocated, domain.AllocationEvent{
		CommitmentID: commitmentID,
		TargetPool:   targetPool,
		Amount:       amount,
		Timestamp:    at,
	})
	s.auditLog(ctx, "allocation.deallocated", map[string]any{
		"commitment_id": commitmentID,
		"target_pool":   targetPool,
		"amount":        amount,
	})
	return nil
}

// Tracking returns the allocation sub-ledger for the commitment. Unseen
// commitments yield an empty record, never an error.
func (s *AllocationService) Tracking(ctx context.Context, commitmentID string) (domain.AllocationTracking, error) {
	return s.allocations.Tracking(ctx, commitmentID)
}

// FreeBalance returns the portion of the commitment's funds not currently
// parked in an external pool.
func (s *AllocationService) FreeBalance(ctx context.Context, commitmentID string) (int64, error) {
	return s.allocations.FreeBalance(ctx, commitmentID)
}
