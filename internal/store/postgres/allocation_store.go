package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// AllocationStore implements domain.AllocationStore using PostgreSQL. The
// balance change, the running total, and the trail entry for each movement
// are applied inside a single transaction.
type AllocationStore struct {
	pool *pgxpool.Pool
}

// NewAllocationStore creates a new AllocationStore.
func NewAllocationStore(pool *pgxpool.Pool) *AllocationStore {
	return &AllocationStore{pool: pool}
}

// InitBalance seeds the balance row at commitment creation.
func (s *AllocationStore) InitBalance(ctx context.Context, commitmentID string, amount int64) error {
	const query = `
		INSERT INTO commitment_balances (commitment_id, free_balance, total_allocated)
		VALUES ($1, $2, 0)`
	_, err := s.pool.Exec(ctx, query, commitmentID, amount)
	if err != nil {
		return fmt.Errorf("postgres: init balance %s: %w", commitmentID, err)
	}
	return nil
}

// FreeBalance returns the free balance, zero for unknown commitments.
func (s *AllocationStore) FreeBalance(ctx context.Context, commitmentID string) (int64, error) {
	const query = `SELECT free_balance FROM commitment_balances WHERE commitment_id = $1`
	var balance int64
	err := s.pool.QueryRow(ctx, query, commitmentID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: free balance %s: %w", commitmentID, err)
	}
	return balance, nil
}

// Tracking returns the sub-ledger in insertion order, all-zero when the
// commitment has never been touched.
func (s *AllocationStore) Tracking(ctx context.Context, commitmentID string) (domain.AllocationTracking, error) {
	var t domain.AllocationTracking

	const totalQuery = `SELECT total_allocated FROM commitment_balances WHERE commitment_id = $1`
	err := s.pool.QueryRow(ctx, totalQuery, commitmentID).Scan(&t.TotalAllocated)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return domain.AllocationTracking{}, fmt.Errorf("postgres: tracking total %s: %w", commitmentID, err)
	}

	const listQuery = `
		SELECT commitment_id, target_pool, amount, occurred_at
		FROM allocations WHERE commitment_id = $1 AND amount > 0 ORDER BY id`
	rows, err := s.pool.Query(ctx, listQuery, commitmentID)
	if err != nil {
		return domain.AllocationTracking{}, fmt.Errorf("postgres: tracking list %s: %w", commitmentID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var a domain.Allocation
		if err := rows.Scan(&a.CommitmentID, &a.TargetPool, &a.Amount, &a.Timestamp); err != nil {
			return domain.AllocationTracking{}, fmt.Errorf("postgres: scan allocation: %w", err)
		}
		t.Allocations = append(t.Allocations, a)
	}
	return t, rows.Err()
}

// RecordAllocation debits the free balance, credits the running total, and
// appends the trail entry. The guarded UPDATE rejects overdrafts.
func (s *AllocationStore) RecordAllocation(ctx context.Context, a domain.Allocation) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		const update = `
			UPDATE commitment_balances
			SET free_balance = free_balance - $2, total_allocated = total_allocated + $2
			WHERE commitment_id = $1 AND free_balance >= $2`
		tag, err := tx.Exec(ctx, update, a.CommitmentID, a.Amount)
		if err != nil {
			return fmt.Errorf("postgres: debit balance %s: %w", a.CommitmentID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: allocate %s: %w", a.CommitmentID, domain.ErrInsufficientBalance)
		}

		const insert = `
			INSERT INTO allocations (commitment_id, target_pool, amount, occurred_at)
			VALUES ($1, $2, $3, $4)`
		if _, err := tx.Exec(ctx, insert, a.CommitmentID, a.TargetPool, a.Amount, a.Timestamp); err != nil {
			return fmt.Errorf("postgres: append allocation %s: %w", a.CommitmentID, err)
		}
		return nil
	})
}

// RecordDeallocation credits the free balance and debits the running total.
// The guarded UPDATE fails instead of letting the total go negative; a
// deallocation entry is recorded with a negative amount so the trail stays
// complete.
func (s *AllocationStore) RecordDeallocation(ctx context.Context, commitmentID, targetPool string, amount int64, at time.Time) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		const update = `
			UPDATE commitment_balances
			SET free_balance = free_balance + $2, total_allocated = total_allocated - $2
			WHERE commitment_id = $1 AND total_allocated >= $2`
		tag, err := tx.Exec(ctx, update, commitmentID, amount)
		if err != nil {
			return fmt.Errorf("postgres: credit balance %s: %w", commitmentID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: deallocate %s: %w", commitmentID, domain.ErrOverDeallocation)
		}

		const insert = `
			INSERT INTO allocations (commitment_id, target_pool, amount, occurred_at)
			VALUES ($1, $2, $3, $4)`
		if _, err := tx.Exec(ctx, insert, commitmentID, targetPool, -amount, at); err != nil {
			return fmt.Errorf("postgres: append deallocation %s: %w", commitmentID, err)
		}
		return nil
	})
}

func (s *AllocationStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.AllocationStore = (*AllocationStore)(nil)
