package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// CommitmentService owns the commitment lifecycle: creation with rule
// validation, value marks with loss-limit enforcement, violation reads,
// settlement at maturity, and owner-initiated early exit.
type CommitmentService struct {
	publisher
	locker
	commitments domain.CommitmentStore
	allocations domain.AllocationStore
	registry    domain.RegistryStore
	clock       domain.Clock
	auth        domain.Authorizer
	transfer    domain.AssetTransfer
	minter      domain.TokenMinter
	custody     string
}

// NewCommitmentService creates a CommitmentService.
func NewCommitmentService(
	commitments domain.CommitmentStore,
	allocations domain.AllocationStore,
	registry domain.RegistryStore,
	col Collaborators,
	logger *slog.Logger,
) *CommitmentService {
	return &CommitmentService{
		publisher: publisher{
			bus:    col.Bus,
			audit:  col.Audit,
			logger: logger.With(slog.String("component", "commitment_service")),
		},
		locker:      locker{locks: col.Locks},
		commitments: commitments,
		allocations: allocations,
		registry:    registry,
		clock:       col.Clock,
		auth:        col.Auth,
		transfer:    col.Transfer,
		minter:      col.Minter,
		custody:     col.Custody,
	}
}

// Create validates the rules, pulls the principal into custody, and persists
// a new active commitment. The owner must prove control of their principal.
// Validation and ID assignment happen before the transfer; the record is
// written only after the transfer confirms, so a failed transfer leaves no
// state behind.
func (s *CommitmentService) Create(
	ctx context.Context,
	owner string,
	proof domain.Proof,
	amount int64,
	assetAddress string,
	rules domain.CommitmentRules,
) (domain.Commitment, error) {
	if err := s.auth.RequireProof(ctx, owner, proof); err != nil {
		return domain.Commitment{}, fmt.Errorf("create commitment: %w", domain.ErrUnauthorized)
	}
	if amount <= 0 {
		return domain.Commitment{}, fmt.Errorf("create commitment: %w: got %d", domain.ErrInvalidAmount, amount)
	}
	if err := rules.Validate(); err != nil {
		return domain.Commitment{}, fmt.Errorf("create commitment: %w", err)
	}

	seq, err := s.commitments.NextID(ctx)
	if err != nil {
		return domain.Commitment{}, fmt.Errorf("create commitment: reserve id: %w", err)
	}
	id := domain.FormatCommitmentID(seq)

	var tokenID uint64
	if s.minter != nil {
		tokenID, err = s.minter.Mint(ctx, owner)
		if err != nil {
			return domain.Commitment{}, fmt.Errorf("create commitment %s: mint ownership token: %w", id, err)
		}
	}

	now := s.clock.Now().UTC()
	c := domain.Commitment{
		ID:           id,
		Owner:        owner,
		NFTTokenID:   tokenID,
		Rules:        rules,
		Amount:       amount,
		AssetAddress: assetAddress,
		CreatedAt:    now,
		ExpiresAt:    now.Add(rules.Duration()),
		CurrentValue: amount,
		Status:       domain.StatusActive,
	}

	// Move the principal into custody before any durable write.
	if err := s.transfer.Transfer(ctx, assetAddress, owner, s.custody, amount); err != nil {
		return domain.Commitment{}, fmt.Errorf("create commitment %s: %w: %v", id, domain.ErrTransferFailed, err)
	}

	if err := s.commitments.Create(ctx, c); err != nil {
		s.refund(ctx, c)
		return domain.Commitment{}, fmt.Errorf("create commitment %s: persist: %w", id, err)
	}
	if err := s.allocations.InitBalance(ctx, id, amount); err != nil {
		s.refund(ctx, c)
		return domain.Commitment{}, fmt.Errorf("create commitment %s: init balance: %w", id, err)
	}

	s.logger.InfoContext(ctx, "commitment created",
		slog.String("commitment_id", id),
		slog.String("owner", owner),
		slog.Int64("amount", amount),
		slog.String("type", string(rules.CommitmentType)),
	)
	s.publish(ctx, domain.TopicCommitmentCreated, domain.CommitmentCreatedEvent{
		CommitmentID: id,
		Owner:        owner,
		Amount:       amount,
		AssetAddress: assetAddress,
		Rules:        rules,
		CreatedAt:    c.CreatedAt,
		ExpiresAt:    c.ExpiresAt,
	})
	s.auditLog(ctx, "commitment.created", map[string]any{
		"commitment_id": id,
		"owner":         owner,
		"amount":        amount,
		"asset":         assetAddress,
	})
	return c, nil
}

// refund is the compensating path for a persist failure after the custody
// transfer already settled. Best effort; the failure is loud either way.
func (s *CommitmentService) refund(ctx context.Context, c domain.Commitment) {
	if err := s.transfer.Transfer(ctx, c.AssetAddress, s.custody, c.Owner, c.Amount); err != nil {
		s.logger.ErrorContext(ctx, "refund after failed persist did not complete",
			slog.String("commitment_id", c.ID),
			slog.String("owner", c.Owner),
			slog.Int64("amount", c.Amount),
			slog.String("error", err.Error()),
		)
	}
}

// Get returns the commitment, or ErrNotFound.
func (s *CommitmentService) Get(ctx context.Context, id string) (domain.Commitment, error) {
	return s.commitments.GetByID(ctx, id)
}

// ListActive returns active commitments with pagination.
func (s *CommitmentService) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Commitment, error) {
	return s.commitments.ListActive(ctx, opts)
}

// ListByOwner returns the owner's commitments with pagination.
func (s *CommitmentService) ListByOwner(ctx context.Context, owner string, opts domain.ListOpts) ([]domain.Commitment, error) {
	return s.commitments.ListByOwner(ctx, owner, opts)
}

// UpdateValue marks the commitment at newValue. The caller must prove control
// of the admin principal or of a principal on the valuator allow-list. When
// the mark pushes the truncated loss percentage strictly past the rule limit,
// the commitment transitions to violated, terminally. Duration alone never
// transitions here.
func (s *CommitmentService) UpdateValue(ctx context.Context, caller string, proof domain.Proof, id string, newValue int64) error {
	if err := s.auth.RequireProof(ctx, caller, proof); err != nil {
		return fmt.Errorf("update value %s: %w", id, domain.ErrUnauthorized)
	}
	ok, err := s.canUpdateValue(ctx, caller)
	if err != nil {
		return fmt.Errorf("update value %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("update value %s: caller %s: %w", id, caller, domain.ErrUnauthorized)
	}

	unlock, err := s.lock(ctx, id)
	if err != nil {
		return fmt.Errorf("update value %s: %w", id, err)
	}
	defer unlock()

	c, err := s.commitments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != domain.StatusActive {
		return fmt.Errorf("update value %s: status %s: %w", id, c.Status, domain.ErrInactiveCommitment)
	}

	c.CurrentValue = newValue
	lossPct := domain.LossPercent(c.Amount, c.CurrentValue)
	violated := newValue < c.Amount && lossPct > int64(c.Rules.MaxLossPercent)
	if violated {
		c.Status = domain.StatusViolated
	}
	if err := s.commitments.Update(ctx, c); err != nil {
		return fmt.Errorf("update value %s: persist: %w", id, err)
	}

	s.logger.InfoContext(ctx, "commitment value updated",
		slog.String("commitment_id", id),
		slog.Int64("new_value", newValue),
		slog.Int64("loss_percent", lossPct),
		slog.String("status", string(c.Status)),
	)
	s.publish(ctx, domain.TopicValueUpdated, domain.ValueUpdatedEvent{
		CommitmentID: id,
		NewValue:     newValue,
		Status:       c.Status,
		LossPercent:  lossPct,
	})
	if violated {
		s.publish(ctx, domain.TopicCommitmentViolated, domain.ValueUpdatedEvent{
			CommitmentID: id,
			NewValue:     newValue,
			Status:       c.Status,
			LossPercent:  lossPct,
		})
	}
	s.auditLog(ctx, "commitment.value_updated", map[string]any{
		"commitment_id": id,
		"new_value":     newValue,
		"status":        string(c.Status),
	})
	return nil
}

// canUpdateValue allows the admin and any principal on the valuator list.
func (s *CommitmentService) canUpdateValue(ctx context.Context, caller string) (bool, error) {
	admin, err := s.registry.Admin(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	if err == nil && caller == admin {
		return true, nil
	}
	return s.registry.IsAuthorized(ctx, caller, domain.RoleValuator)
}

// CheckViolations reports whether the commitment currently breaches either
// rule. Already-resolved commitments report false. This is a pure read; it
// never mutates status.
func (s *CommitmentService) CheckViolations(ctx context.Context, id string) (bool, error) {
	c, err := s.commitments.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if c.Status != domain.StatusActive {
		return false, nil
	}
	return domain.CheckViolations(c, s.clock.Now()).HasViolations, nil
}

// ViolationDetails returns the full violation evaluation regardless of the
// commitment's current status.
func (s *CommitmentService) ViolationDetails(ctx context.Context, id string) (domain.ViolationDetails, error) {
	c, err := s.commitments.GetByID(ctx, id)
	if err != nil {
		return domain.ViolationDetails{}, err
	}
	return domain.CheckViolations(c, s.clock.Now()), nil
}

// Settle resolves a matured commitment: the current value goes back to the
// owner and the status becomes settled. Settling before expiry fails with
// ErrNotExpired; settling a terminal commitment fails without moving funds.
func (s *CommitmentService) Settle(ctx context.Context, id string) error {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return fmt.Errorf("settle %s: %w", id, err)
	}
	defer unlock()

	c, err := s.commitments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.Status.Terminal() {
		return fmt.Errorf("settle %s: status %s: %w", id, c.Status, domain.ErrInactiveCommitment)
	}
	if !c.Expired(s.clock.Now()) {
		return fmt.Errorf("settle %s: %w", id, domain.ErrNotExpired)
	}

	if c.CurrentValue > 0 {
		if err := s.transfer.Transfer(ctx, c.AssetAddress, s.custody, c.Owner, c.CurrentValue); err != nil {
			return fmt.Errorf("settle %s: %w: %v", id, domain.ErrTransferFailed, err)
		}
	}
	c.Status = domain.StatusSettled
	if err := s.commitments.Update(ctx, c); err != nil {
		return fmt.Errorf("settle %s: persist: %w", id, err)
	}

	s.logger.InfoContext(ctx, "commitment settled",
		slog.String("commitment_id", id),
		slog.String("owner", c.Owner),
		slog.Int64("amount", c.CurrentValue),
	)
	s.publish(ctx, domain.TopicCommitmentSettled, domain.SettledEvent{
		CommitmentID: id,
		Owner:        c.Owner,
		Amount:       c.CurrentValue,
	})
	s.auditLog(ctx, "commitment.settled", map[string]any{
		"commitment_id": id,
		"owner":         c.Owner,
		"amount":        c.CurrentValue,
	})
	return nil
}

// EarlyExit resolves an active commitment before expiry at the owner's
// request. The penalty percentage of the current value stays in custody; the
// remainder goes back to the owner.
func (s *CommitmentService) EarlyExit(ctx context.Context, id, caller string, proof domain.Proof) error {
	if err := s.auth.RequireProof(ctx, caller, proof); err != nil {
		return fmt.Errorf("early exit %s: %w", id, domain.ErrUnauthorized)
	}

	unlock, err := s.lock(ctx, id)
	if err != nil {
		return fmt.Errorf("early exit %s: %w", id, err)
	}
	defer unlock()

	c, err := s.commitments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if caller != c.Owner {
		return fmt.Errorf("early exit %s: caller %s is not the owner: %w", id, caller, domain.ErrUnauthorized)
	}
	if c.Status != domain.StatusActive {
		return fmt.Errorf("early exit %s: status %s: %w", id, c.Status, domain.ErrInactiveCommitment)
	}

	penalty := domain.PercentOf(c.CurrentValue, c.Rules.EarlyExitPenalty)
	remaining := c.CurrentValue - penalty

	if remaining > 0 {
		if err := s.transfer.Transfer(ctx, c.AssetAddress, s.custody, c.Owner, remaining); err != nil {
			return fmt.Errorf("early exit %s: %w: %v", id, domain.ErrTransferFailed, err)
		}
	}
	c.CurrentValue = remaining
	c.Status = domain.StatusEarlyExit
	if err := s.commitments.Update(ctx, c); err != nil {
		return fmt.Errorf("early exit %s: persist: %w", id, err)
	}

	s.logger.InfoContext(ctx, "commitment exited early",
		slog.String("commitment_id", id),
		slog.String("caller", caller),
		slog.Int64("remaining", remaining),
		slog.Int64("penalty", penalty),
	)
	s.publish(ctx, domain.TopicEarlyExit, domain.EarlyExitEvent{
		CommitmentID: id,
		Caller:       caller,
		Remaining:    remaining,
		Penalty:      penalty,
	})
	s.auditLog(ctx, "commitment.early_exit", map[string]any{
		"commitment_id": id,
		"caller":        caller,
		"remaining":     remaining,
		"penalty":       penalty,
	})
	return nil
}
